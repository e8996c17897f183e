package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"

	"github.com/corebank/backend/internal/models"
)

// TransactionService is the HTTP surface over the ledger engine. It decodes
// and validates requests, resolves the acting user from the request context,
// and translates Result error codes into HTTP statuses. All business rules
// live in LedgerService.
type TransactionService struct {
	ledger    *LedgerService
	validator *ValidationHelper
}

func NewTransactionService(db *sql.DB, redisClient *redis.Client, identity IdentityGate) *TransactionService {
	accounts := NewAccountService(db)
	return &TransactionService{
		ledger:    NewLedgerService(db, redisClient, accounts, identity),
		validator: NewValidationHelper(),
	}
}

// Ledger exposes the underlying engine for wiring.
func (ts *TransactionService) Ledger() *LedgerService {
	return ts.ledger
}

// CreateTransaction creates a pending transaction
// @Summary Create a new transaction
// @Description Create a deposit, withdrawal or transfer in Pending state; balances are untouched until approval
// @Tags transactions
// @Accept json
// @Produce json
// @Param transaction body models.TransactionRequest true "Transaction data"
// @Success 201 {object} models.TransactionView
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /transactions [post]
func (ts *TransactionService) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	actorID, ok := ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req models.TransactionRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := ts.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result := ts.ledger.CreateTransaction(r.Context(), &req, actorID)
	if result.IsError() {
		WriteJSON(w, StatusForErrors(result.Errors), result)
		return
	}

	WriteJSON(w, http.StatusCreated, result)
}

// ApproveTransaction approves a pending transaction
// @Summary Approve transaction
// @Description Approve a pending transaction, applying its balance effect atomically
// @Tags transactions
// @Produce json
// @Param id path int true "Transaction ID"
// @Success 200 {object} models.Result[bool]
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /transactions/{id}/approve [post]
func (ts *TransactionService) ApproveTransaction(w http.ResponseWriter, r *http.Request) {
	ts.processTransaction(w, r, ts.ledger.ApproveTransaction)
}

// RejectTransaction rejects a pending transaction
// @Summary Reject transaction
// @Description Reject a pending transaction; no balance effect
// @Tags transactions
// @Produce json
// @Param id path int true "Transaction ID"
// @Success 200 {object} models.Result[bool]
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /transactions/{id}/reject [post]
func (ts *TransactionService) RejectTransaction(w http.ResponseWriter, r *http.Request) {
	ts.processTransaction(w, r, ts.ledger.RejectTransaction)
}

func (ts *TransactionService) processTransaction(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id int64, actor string) *models.Result[bool]) {
	actorID, ok := ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	transactionID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid transaction id", http.StatusBadRequest, nil)
		return
	}

	result := op(r.Context(), transactionID, actorID)
	if result.IsError() {
		if result.HasCode(models.CodeStoreFailure) {
			log.Printf("[TRANSACTION] Store failure processing transaction %d: %v", transactionID, result.Errors)
		}
		WriteJSON(w, StatusForErrors(result.Errors), result)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// GetTransaction returns a transaction by id
// @Summary Get transaction
// @Description Retrieve a transaction by its id
// @Tags transactions
// @Produce json
// @Param id path int true "Transaction ID"
// @Success 200 {object} models.TransactionView
// @Failure 404 {object} ErrorResponse
// @Router /transactions/{id} [get]
func (ts *TransactionService) GetTransaction(w http.ResponseWriter, r *http.Request) {
	transactionID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid transaction id", http.StatusBadRequest, nil)
		return
	}

	result := ts.ledger.GetTransactionByID(r.Context(), transactionID)
	if result.IsError() {
		WriteJSON(w, StatusForErrors(result.Errors), result)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// ListTransactions returns all transactions, newest first
// @Summary List transactions
// @Description List all transactions ordered newest first
// @Tags transactions
// @Produce json
// @Success 200 {object} models.Result[[]models.TransactionView]
// @Router /transactions [get]
func (ts *TransactionService) ListTransactions(w http.ResponseWriter, r *http.Request) {
	result := ts.ledger.GetAllTransactions(r.Context())
	if result.IsError() {
		WriteJSON(w, StatusForErrors(result.Errors), result)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// ListPendingTransactions returns pending transactions, oldest first
// @Summary List pending transactions
// @Description List transactions awaiting approval, oldest first
// @Tags transactions
// @Produce json
// @Success 200 {object} models.Result[[]models.TransactionView]
// @Router /transactions/pending [get]
func (ts *TransactionService) ListPendingTransactions(w http.ResponseWriter, r *http.Request) {
	result := ts.ledger.GetPendingTransactions(r.Context())
	if result.IsError() {
		WriteJSON(w, StatusForErrors(result.Errors), result)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// ListTransactionsByAccount returns transactions touching an account
// @Summary List transactions by account
// @Description List transactions where the account is source or transfer recipient, newest first
// @Tags transactions
// @Produce json
// @Param accountId path int true "Account ID"
// @Success 200 {object} models.Result[[]models.TransactionView]
// @Failure 400 {object} ErrorResponse
// @Router /transactions/account/{accountId} [get]
func (ts *TransactionService) ListTransactionsByAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "accountId"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid account id", http.StatusBadRequest, nil)
		return
	}

	result := ts.ledger.GetTransactionsByAccount(r.Context(), accountID)
	if result.IsError() {
		WriteJSON(w, StatusForErrors(result.Errors), result)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}
