package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/corebank/backend/internal/models"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrOptimisticLock  = errors.New("account was modified concurrently")
)

// accountNumberSeed is the highest pre-existing number; the first issued
// account gets seed+1.
const accountNumberSeed = 88855999

// AccountService is the account store: lookups consumed by the ledger engine
// plus the locked load/save pair used inside the approval unit of work.
type AccountService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewAccountService(db *sql.DB) *AccountService {
	return &AccountService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

const accountColumns = `a.account_id, a.account_number, a.customer_id, a.account_type_id,
	       a.balance, a.open_date, a.is_active, a.version, c.is_active`

func scanAccount(row *sql.Row) (*models.Account, error) {
	var account models.Account
	err := row.Scan(
		&account.AccountID, &account.AccountNumber, &account.CustomerID,
		&account.AccountTypeID, &account.Balance, &account.OpenDate,
		&account.IsActive, &account.Version, &account.CustomerActive,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// GetAccountByID loads a live account with its owner's active flag. Deleted
// rows are invisible by contract.
func (as *AccountService) GetAccountByID(ctx context.Context, accountID int64) (*models.Account, error) {
	row := as.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts a
		JOIN customers c ON c.customer_id = a.customer_id
		WHERE a.account_id = $1 AND a.is_deleted = FALSE`, accountID)
	return scanAccount(row)
}

// GetAccountByNumber resolves an account by its immutable account number.
func (as *AccountService) GetAccountByNumber(ctx context.Context, number string) (*models.Account, error) {
	row := as.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts a
		JOIN customers c ON c.customer_id = a.customer_id
		WHERE a.account_number = $1 AND a.is_deleted = FALSE`, number)
	return scanAccount(row)
}

// lockAccount reads an account inside an open transaction, taking a row lock
// so the balance seen here is the authoritative one until commit.
func (as *AccountService) lockAccount(tx *sql.Tx, accountID int64) (*models.Account, error) {
	row := tx.QueryRow(`
		SELECT `+accountColumns+`
		FROM accounts a
		JOIN customers c ON c.customer_id = a.customer_id
		WHERE a.account_id = $1 AND a.is_deleted = FALSE
		FOR UPDATE OF a`, accountID)
	var account models.Account
	err := row.Scan(
		&account.AccountID, &account.AccountNumber, &account.CustomerID,
		&account.AccountTypeID, &account.Balance, &account.OpenDate,
		&account.IsActive, &account.Version, &account.CustomerActive,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// saveBalanceTx writes a new balance inside the approval unit of work. The
// version predicate fails the second of two racing writers even if row locks
// were somehow bypassed.
func (as *AccountService) saveBalanceTx(tx *sql.Tx, account *models.Account, newBalance decimal.Decimal, actor string) error {
	result, err := tx.Exec(`
		UPDATE accounts
		SET balance = $1, version = version + 1, modified_by = $2, modified_date = $3
		WHERE account_id = $4 AND version = $5`,
		newBalance, actor, time.Now(), account.AccountID, account.Version)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: account %d", ErrOptimisticLock, account.AccountID)
	}
	return nil
}

// OpenAccount issues the next sequential account number and persists the
// account. A duplicate number produced by a racing open fails on the unique
// index and surfaces as a store failure the caller can retry.
func (as *AccountService) OpenAccount(ctx context.Context, req *models.OpenAccountRequest, actorID string) *models.Result[*models.Account] {
	if req.Deposit.IsNegative() {
		return models.Fail[*models.Account](models.CodeValidation, "Initial deposit cannot be negative")
	}

	var customerActive bool
	err := as.db.QueryRowContext(ctx, `
		SELECT is_active FROM customers
		WHERE customer_id = $1 AND is_deleted = FALSE`, req.CustomerID).Scan(&customerActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Fail[*models.Account](models.CodeAccountNotFound, "Customer not found")
		}
		return models.FailStore[*models.Account](err)
	}
	if !customerActive {
		return models.Fail[*models.Account](models.CodeCustomerInactive, "Customer is inactive")
	}

	var maxNumber int64
	err = as.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(account_number::bigint), $1) FROM accounts`, accountNumberSeed).Scan(&maxNumber)
	if err != nil {
		return models.FailStore[*models.Account](err)
	}

	account := &models.Account{
		AccountNumber: strconv.FormatInt(maxNumber+1, 10),
		CustomerID:    req.CustomerID,
		AccountTypeID: req.AccountTypeID,
		Balance:       req.Deposit,
		IsActive:      true,
		CreatedBy:     actorID,
	}

	err = as.db.QueryRowContext(ctx, `
		INSERT INTO accounts (account_number, customer_id, account_type_id, balance, open_date, is_active, version, created_by, created_date)
		VALUES ($1, $2, $3, $4, $5, TRUE, 0, $6, $5)
		RETURNING account_id, open_date`,
		account.AccountNumber, account.CustomerID, account.AccountTypeID,
		account.Balance, time.Now(), actorID).Scan(&account.AccountID, &account.OpenDate)
	if err != nil {
		return models.FailStore[*models.Account](err)
	}

	log.Printf("[ACCOUNT] Opened account %s (id=%d) for customer %d", account.AccountNumber, account.AccountID, account.CustomerID)
	return models.Ok(account)
}

// HTTP handlers

// GetAccount returns an account by id
// @Summary Get account
// @Description Retrieve an account by its id
// @Tags accounts
// @Produce json
// @Param id path int true "Account ID"
// @Success 200 {object} models.Account
// @Failure 404 {object} ErrorResponse
// @Router /accounts/{id} [get]
func (as *AccountService) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "Invalid account id", http.StatusBadRequest, nil)
		return
	}

	account, err := as.GetAccountByID(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		} else {
			log.Printf("[ACCOUNT] Lookup failed for id=%d: %v", accountID, err)
			SendErrorResponse(w, "Failed to fetch account", http.StatusInternalServerError, nil)
		}
		return
	}

	WriteJSON(w, http.StatusOK, account)
}

// GetAccountByNumberHandler returns an account by account number
// @Summary Get account by number
// @Description Retrieve an account by its account number
// @Tags accounts
// @Produce json
// @Param number path string true "Account number"
// @Success 200 {object} models.Account
// @Failure 404 {object} ErrorResponse
// @Router /accounts/number/{number} [get]
func (as *AccountService) GetAccountByNumberHandler(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	if number == "" {
		SendErrorResponse(w, "Account number is required", http.StatusBadRequest, nil)
		return
	}

	account, err := as.GetAccountByNumber(r.Context(), number)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		} else {
			log.Printf("[ACCOUNT] Lookup failed for number=%s: %v", number, err)
			SendErrorResponse(w, "Failed to fetch account", http.StatusInternalServerError, nil)
		}
		return
	}

	WriteJSON(w, http.StatusOK, account)
}

// CreateAccount opens a new account
// @Summary Open account
// @Description Open a new account with a freshly issued account number
// @Tags accounts
// @Accept json
// @Produce json
// @Param account body models.OpenAccountRequest true "Account data"
// @Success 201 {object} models.Account
// @Failure 400 {object} ErrorResponse
// @Router /accounts [post]
func (as *AccountService) CreateAccount(w http.ResponseWriter, r *http.Request) {
	actorID, ok := ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req models.OpenAccountRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := as.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result := as.OpenAccount(r.Context(), &req, actorID)
	if result.IsError() {
		WriteJSON(w, StatusForErrors(result.Errors), result)
		return
	}

	WriteJSON(w, http.StatusCreated, result.Response)
}
