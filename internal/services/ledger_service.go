package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"

	"github.com/corebank/backend/internal/audit"
	"github.com/corebank/backend/internal/models"
)

// processedQueue receives a JSON event for every approved transaction so
// downstream consumers (statements, notifications) can pick them up.
const processedQueue = "processed_transactions"

// LedgerService owns the transaction lifecycle: creation into Pending,
// the Pending -> Approved transition with its atomic balance mutation, and
// rejection. Account balances are written nowhere else.
type LedgerService struct {
	db       *sql.DB
	redis    *redis.Client
	accounts *AccountService
	identity IdentityGate
	audit    *audit.Logger
}

func NewLedgerService(db *sql.DB, redisClient *redis.Client, accounts *AccountService, identity IdentityGate) *LedgerService {
	return &LedgerService{
		db:       db,
		redis:    redisClient,
		accounts: accounts,
		identity: identity,
		audit:    audit.NewLogger(),
	}
}

// CreateTransaction validates the request and persists a Pending transaction.
// Validation is fail-fast: the first violated rule decides the error and
// nothing is written. No balance changes here; the balance check on
// withdrawals and transfers is an early rejection only and is repeated at
// approval against the then-current balance.
func (ls *LedgerService) CreateTransaction(ctx context.Context, req *models.TransactionRequest, actorID string) *models.Result[*models.TransactionView] {
	if !req.TransactionType.Valid() {
		return models.Fail[*models.TransactionView](models.CodeValidation, "Unsupported transaction type")
	}
	if !req.Amount.IsPositive() {
		return models.Fail[*models.TransactionView](models.CodeValidation, "Amount must be positive")
	}

	account, err := ls.accounts.GetAccountByID(ctx, req.AccountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return models.Fail[*models.TransactionView](models.CodeAccountNotFound, "Account not found")
		}
		return models.FailStore[*models.TransactionView](err)
	}

	if !account.IsActive {
		return models.Fail[*models.TransactionView](models.CodeAccountInactive, "Account is inactive")
	}

	ownerActive, err := ls.identity.IsCustomerActive(ctx, account.CustomerID)
	if err != nil {
		return models.FailStore[*models.TransactionView](err)
	}
	if !ownerActive {
		return models.Fail[*models.TransactionView](models.CodeCustomerInactive, "Customer is inactive")
	}

	if req.TransactionType.MovesFunds() && account.Balance.LessThan(req.Amount) {
		return models.Fail[*models.TransactionView](models.CodeInsufficientBalance, "Insufficient balance")
	}

	if req.TransactionType == models.TypeTransfer {
		recipient, failure := ls.resolveRecipient(ctx, req, account.AccountID)
		if failure != nil {
			return failure
		}
		req.RecipientAccountID = &recipient.AccountID
		req.RecipientAccountNumber = recipient.AccountNumber
	} else if req.RecipientAccountID != nil || req.RecipientAccountNumber != "" {
		return models.Fail[*models.TransactionView](models.CodeValidation, "Recipient is only valid for transfers")
	}

	now := time.Now()
	view := &models.TransactionView{
		AccountID:       account.AccountID,
		AccountNumber:   account.AccountNumber,
		TransactionType: req.TransactionType,
		Amount:          req.Amount,
		Description:     req.Description,
		Status:          models.StatusPending,
	}

	err = ls.db.QueryRowContext(ctx, `
		INSERT INTO transactions
		(account_id, transaction_type, amount, transaction_date, description, recipient_account_id, status, created_by, created_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $4)
		RETURNING transaction_id`,
		account.AccountID, int(req.TransactionType), req.Amount, now,
		req.Description, req.RecipientAccountID, int(models.StatusPending), actorID,
	).Scan(&view.TransactionID)
	if err != nil {
		return models.FailStore[*models.TransactionView](err)
	}

	view.TransactionDate = now
	view.RecipientAccountID = req.RecipientAccountID
	if req.RecipientAccountNumber != "" {
		n := req.RecipientAccountNumber
		view.RecipientAccountNumber = &n
	}

	log.Printf("[LEDGER] Created %s transaction %d on account %d for %s",
		req.TransactionType, view.TransactionID, account.AccountID, req.Amount.StringFixed(2))
	return models.Ok(view)
}

// resolveRecipient finds the transfer recipient by account number when given,
// falling back to an explicit id. The recipient must be live, active, owned
// by an active customer, and different from the source account.
func (ls *LedgerService) resolveRecipient(ctx context.Context, req *models.TransactionRequest, sourceID int64) (*models.Account, *models.Result[*models.TransactionView]) {
	var (
		recipient *models.Account
		err       error
	)

	switch {
	case req.RecipientAccountNumber != "":
		recipient, err = ls.accounts.GetAccountByNumber(ctx, req.RecipientAccountNumber)
	case req.RecipientAccountID != nil:
		recipient, err = ls.accounts.GetAccountByID(ctx, *req.RecipientAccountID)
	default:
		return nil, models.Fail[*models.TransactionView](models.CodeRecipientRequired, "Recipient account required for transfer")
	}

	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, models.Fail[*models.TransactionView](models.CodeRecipientNotFound, "Recipient account not found")
		}
		return nil, models.FailStore[*models.TransactionView](err)
	}

	if !recipient.IsActive {
		return nil, models.Fail[*models.TransactionView](models.CodeRecipientInactive, "Recipient account is inactive")
	}

	recipientOwnerActive, err := ls.identity.IsCustomerActive(ctx, recipient.CustomerID)
	if err != nil {
		return nil, models.FailStore[*models.TransactionView](err)
	}
	if !recipientOwnerActive {
		return nil, models.Fail[*models.TransactionView](models.CodeRecipientCustomerInactive, "Recipient customer is inactive")
	}

	if recipient.AccountID == sourceID {
		return nil, models.Fail[*models.TransactionView](models.CodeSameAccountTransfer, "Cannot transfer to the same account")
	}

	return recipient, nil
}

// ApproveTransaction moves a Pending transaction to Approved and applies its
// balance effect. Everything runs in one database transaction: the status
// check-and-set, the re-validation of active flags, the authoritative balance
// re-check, and the one or two balance writes. Any failure rolls the whole
// unit back and the transaction stays Pending.
func (ls *LedgerService) ApproveTransaction(ctx context.Context, transactionID int64, approverID string) *models.Result[bool] {
	tx, err := ls.db.BeginTx(ctx, nil)
	if err != nil {
		return models.FailStore[bool](err)
	}
	defer tx.Rollback()

	txn, result := ls.lockPendingTransaction(tx, transactionID)
	if result != nil {
		return result
	}

	// Lock accounts lowest-id first so two concurrent transfers between the
	// same pair cannot deadlock.
	source, recipient, err := ls.lockTransactionAccounts(tx, txn)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return models.Fail[bool](models.CodeAccountNotFound, "Account not found")
		}
		return models.FailStore[bool](err)
	}

	// State may have drifted since creation; re-validate under the lock.
	if !source.IsActive {
		return models.Fail[bool](models.CodeAccountInactive, "Account is inactive")
	}
	if !source.CustomerActive {
		return models.Fail[bool](models.CodeCustomerInactive, "Customer is inactive")
	}

	switch txn.TransactionType {
	case models.TypeDeposit:
		if err := ls.accounts.saveBalanceTx(tx, source, source.Balance.Add(txn.Amount), approverID); err != nil {
			return models.FailStore[bool](err)
		}

	case models.TypeWithdrawal:
		if source.Balance.LessThan(txn.Amount) {
			return models.Fail[bool](models.CodeInsufficientBalance, "Insufficient balance")
		}
		if err := ls.accounts.saveBalanceTx(tx, source, source.Balance.Sub(txn.Amount), approverID); err != nil {
			return models.FailStore[bool](err)
		}

	case models.TypeTransfer:
		if recipient == nil {
			return models.Fail[bool](models.CodeRecipientRequired, "Recipient account required for transfer")
		}
		if source.Balance.LessThan(txn.Amount) {
			return models.Fail[bool](models.CodeInsufficientBalance, "Insufficient balance")
		}
		if !recipient.IsActive {
			return models.Fail[bool](models.CodeRecipientInactive, "Recipient account is inactive")
		}
		if !recipient.CustomerActive {
			return models.Fail[bool](models.CodeRecipientCustomerInactive, "Recipient customer is inactive")
		}
		if err := ls.accounts.saveBalanceTx(tx, source, source.Balance.Sub(txn.Amount), approverID); err != nil {
			return models.FailStore[bool](err)
		}
		if err := ls.accounts.saveBalanceTx(tx, recipient, recipient.Balance.Add(txn.Amount), approverID); err != nil {
			return models.FailStore[bool](err)
		}

	default:
		return models.Fail[bool](models.CodeValidation, "Unsupported transaction type")
	}

	if result := ls.markProcessed(tx, transactionID, models.StatusApproved, approverID); result != nil {
		return result
	}

	if err := tx.Commit(); err != nil {
		ls.audit.LogError(transactionID, approverID, err)
		return models.FailStore[bool](err)
	}

	ls.audit.LogApproval(transactionID, txn.AccountID, txn.Amount, approverID)
	ls.notifyProcessed(ctx, txn, models.StatusApproved)
	return models.Ok(true)
}

// RejectTransaction moves a Pending transaction to Rejected. No balance
// effect; the same single-transition guarantee as approval applies.
func (ls *LedgerService) RejectTransaction(ctx context.Context, transactionID int64, rejecterID string) *models.Result[bool] {
	tx, err := ls.db.BeginTx(ctx, nil)
	if err != nil {
		return models.FailStore[bool](err)
	}
	defer tx.Rollback()

	txn, result := ls.lockPendingTransaction(tx, transactionID)
	if result != nil {
		return result
	}

	if result := ls.markProcessed(tx, transactionID, models.StatusRejected, rejecterID); result != nil {
		return result
	}

	if err := tx.Commit(); err != nil {
		ls.audit.LogError(transactionID, rejecterID, err)
		return models.FailStore[bool](err)
	}

	ls.audit.LogRejection(transactionID, rejecterID)
	ls.notifyProcessed(ctx, txn, models.StatusRejected)
	return models.Ok(true)
}

// lockPendingTransaction loads the transaction row under a lock and enforces
// the single-transition rule: only Pending rows may proceed.
func (ls *LedgerService) lockPendingTransaction(tx *sql.Tx, transactionID int64) (*models.Transaction, *models.Result[bool]) {
	var txn models.Transaction
	var txnType, status int
	err := tx.QueryRow(`
		SELECT transaction_id, account_id, transaction_type, amount, recipient_account_id, status
		FROM transactions
		WHERE transaction_id = $1 AND is_deleted = FALSE
		FOR UPDATE`, transactionID).Scan(
		&txn.TransactionID, &txn.AccountID, &txnType, &txn.Amount, &txn.RecipientAccountID, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.Fail[bool](models.CodeTransactionNotFound, "Transaction not found")
		}
		return nil, models.FailStore[bool](err)
	}
	txn.TransactionType = models.TransactionType(txnType)
	txn.Status = models.TransactionStatus(status)

	if txn.Status != models.StatusPending {
		return nil, models.Fail[bool](models.CodeAlreadyProcessed, "Transaction already processed")
	}
	return &txn, nil
}

func (ls *LedgerService) lockTransactionAccounts(tx *sql.Tx, txn *models.Transaction) (source, recipient *models.Account, err error) {
	if txn.TransactionType != models.TypeTransfer || txn.RecipientAccountID == nil {
		source, err = ls.accounts.lockAccount(tx, txn.AccountID)
		return source, nil, err
	}

	firstID, secondID := txn.AccountID, *txn.RecipientAccountID
	if firstID > secondID {
		firstID, secondID = secondID, firstID
	}

	first, err := ls.accounts.lockAccount(tx, firstID)
	if err != nil {
		return nil, nil, err
	}
	second, err := ls.accounts.lockAccount(tx, secondID)
	if err != nil {
		return nil, nil, err
	}

	if first.AccountID == txn.AccountID {
		return first, second, nil
	}
	return second, first, nil
}

// markProcessed flips the status with a guarded UPDATE. The status predicate
// makes the Pending -> terminal transition a check-and-set: a second writer
// that slipped past the row lock updates zero rows and gets AlreadyProcessed.
func (ls *LedgerService) markProcessed(tx *sql.Tx, transactionID int64, status models.TransactionStatus, actorID string) *models.Result[bool] {
	now := time.Now()
	result, err := tx.Exec(`
		UPDATE transactions
		SET status = $1, processed_by = $2, approval_date = $3, modified_by = $2, modified_date = $3
		WHERE transaction_id = $4 AND status = $5`,
		int(status), actorID, now, transactionID, int(models.StatusPending))
	if err != nil {
		return models.FailStore[bool](err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return models.FailStore[bool](err)
	}
	if rowsAffected == 0 {
		return models.Fail[bool](models.CodeAlreadyProcessed, "Transaction already processed")
	}
	return nil
}

func (ls *LedgerService) notifyProcessed(ctx context.Context, txn *models.Transaction, status models.TransactionStatus) {
	if ls.redis == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"transaction_id": txn.TransactionID,
		"account_id":     txn.AccountID,
		"type":           txn.TransactionType.String(),
		"amount":         txn.Amount.StringFixed(2),
		"status":         status.String(),
		"processed_at":   time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	if err := ls.redis.RPush(ctx, processedQueue, payload).Err(); err != nil {
		log.Printf("[LEDGER] Failed to queue processed notification for transaction %d: %v", txn.TransactionID, err)
	}
}

// Query paths. All reads exclude soft-deleted rows and never mutate state.

const viewColumns = `t.transaction_id, t.account_id, a.account_number, t.transaction_type, t.amount,
	       t.transaction_date, COALESCE(t.description, ''), t.recipient_account_id, r.account_number,
	       t.status, u.full_name, t.approval_date`

const viewJoins = `
		FROM transactions t
		JOIN accounts a ON a.account_id = t.account_id
		LEFT JOIN accounts r ON r.account_id = t.recipient_account_id
		LEFT JOIN users u ON u.user_id = t.processed_by`

// GetAllTransactions lists every live transaction, newest first.
func (ls *LedgerService) GetAllTransactions(ctx context.Context) *models.Result[[]models.TransactionView] {
	return ls.queryViews(ctx, `
		SELECT `+viewColumns+viewJoins+`
		WHERE t.is_deleted = FALSE
		ORDER BY t.transaction_date DESC`)
}

// GetPendingTransactions lists Pending transactions oldest first, the order
// an approver should work through them.
func (ls *LedgerService) GetPendingTransactions(ctx context.Context) *models.Result[[]models.TransactionView] {
	return ls.queryViews(ctx, `
		SELECT `+viewColumns+viewJoins+`
		WHERE t.is_deleted = FALSE AND t.status = $1
		ORDER BY t.transaction_date ASC`, int(models.StatusPending))
}

// GetTransactionsByAccount lists transactions where the account is either the
// source or the transfer recipient, newest first.
func (ls *LedgerService) GetTransactionsByAccount(ctx context.Context, accountID int64) *models.Result[[]models.TransactionView] {
	return ls.queryViews(ctx, `
		SELECT `+viewColumns+viewJoins+`
		WHERE t.is_deleted = FALSE AND (t.account_id = $1 OR t.recipient_account_id = $1)
		ORDER BY t.transaction_date DESC`, accountID)
}

// GetTransactionByID fetches a single live transaction.
func (ls *LedgerService) GetTransactionByID(ctx context.Context, transactionID int64) *models.Result[*models.TransactionView] {
	row := ls.db.QueryRowContext(ctx, `
		SELECT `+viewColumns+viewJoins+`
		WHERE t.transaction_id = $1 AND t.is_deleted = FALSE`, transactionID)

	view, err := scanView(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Fail[*models.TransactionView](models.CodeTransactionNotFound, "Transaction not found")
		}
		return models.FailStore[*models.TransactionView](err)
	}
	return models.Ok(view)
}

func (ls *LedgerService) queryViews(ctx context.Context, query string, args ...any) *models.Result[[]models.TransactionView] {
	rows, err := ls.db.QueryContext(ctx, query, args...)
	if err != nil {
		return models.FailStore[[]models.TransactionView](err)
	}
	defer rows.Close()

	views := []models.TransactionView{}
	for rows.Next() {
		view, err := scanViewRows(rows)
		if err != nil {
			return models.FailStore[[]models.TransactionView](err)
		}
		views = append(views, *view)
	}
	if err := rows.Err(); err != nil {
		return models.FailStore[[]models.TransactionView](err)
	}
	return models.Ok(views)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanViewFrom(s rowScanner) (*models.TransactionView, error) {
	var (
		view            models.TransactionView
		txnType, status int
		recipientNumber sql.NullString
		processedBy     sql.NullString
		approvalDate    sql.NullTime
		amount          decimal.Decimal
	)
	err := s.Scan(
		&view.TransactionID, &view.AccountID, &view.AccountNumber, &txnType, &amount,
		&view.TransactionDate, &view.Description, &view.RecipientAccountID, &recipientNumber,
		&status, &processedBy, &approvalDate,
	)
	if err != nil {
		return nil, err
	}

	view.TransactionType = models.TransactionType(txnType)
	view.Status = models.TransactionStatus(status)
	view.Amount = amount
	if recipientNumber.Valid {
		view.RecipientAccountNumber = &recipientNumber.String
	}
	if processedBy.Valid {
		view.ProcessedByName = &processedBy.String
	}
	if approvalDate.Valid {
		view.ApprovalDate = &approvalDate.Time
	}
	return &view, nil
}

func scanView(row *sql.Row) (*models.TransactionView, error) {
	return scanViewFrom(row)
}

func scanViewRows(rows *sql.Rows) (*models.TransactionView, error) {
	return scanViewFrom(rows)
}
