package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType mirrors the numeric wire values used by clients.
type TransactionType int

const (
	TypeDeposit    TransactionType = 1
	TypeWithdrawal TransactionType = 2
	TypeTransfer   TransactionType = 3
	// Reserved. Interest posting and fee transactions are not creatable
	// through the public surface.
	TypeInterest TransactionType = 4
	TypeFee      TransactionType = 5
)

func (t TransactionType) Valid() bool {
	return t == TypeDeposit || t == TypeWithdrawal || t == TypeTransfer
}

func (t TransactionType) String() string {
	switch t {
	case TypeDeposit:
		return "Deposit"
	case TypeWithdrawal:
		return "Withdrawal"
	case TypeTransfer:
		return "Transfer"
	case TypeInterest:
		return "Interest"
	case TypeFee:
		return "Fee"
	}
	return "Unknown"
}

// MovesFunds reports whether the type debits the source account, meaning a
// balance check applies both at creation and again at approval.
func (t TransactionType) MovesFunds() bool {
	return t == TypeWithdrawal || t == TypeTransfer
}

// TransactionStatus is the lifecycle state. Pending is the only non-terminal
// state; once Approved or Rejected a transaction never changes again.
type TransactionStatus int

const (
	StatusPending  TransactionStatus = 1
	StatusApproved TransactionStatus = 2
	StatusRejected TransactionStatus = 3
)

func (s TransactionStatus) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusApproved:
		return "Approved"
	case StatusRejected:
		return "Rejected"
	}
	return "Unknown"
}

// Terminal reports whether no further transition is allowed out of s.
func (s TransactionStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Transaction is the persisted entity. Balance mutation happens exactly once,
// at the Pending -> Approved transition, never at creation.
type Transaction struct {
	TransactionID      int64             `json:"transactionId"`
	AccountID          int64             `json:"accountId"`
	TransactionType    TransactionType   `json:"transactionType"`
	Amount             decimal.Decimal   `json:"amount"`
	TransactionDate    time.Time         `json:"transactionDate"`
	Description        string            `json:"description,omitempty"`
	RecipientAccountID *int64            `json:"recipientAccountId,omitempty"`
	ProcessedByUserID  *string           `json:"processedByUserId,omitempty"`
	Status             TransactionStatus `json:"status"`
	ApprovalDate       *time.Time        `json:"approvalDate,omitempty"`

	IsDeleted    bool       `json:"-"`
	CreatedBy    string     `json:"-"`
	CreatedDate  time.Time  `json:"-"`
	ModifiedBy   *string    `json:"-"`
	ModifiedDate *time.Time `json:"-"`
}

// TransactionRequest is the inbound shape for creating a transaction. The
// recipient may be identified by account number or by id; number wins when
// both are present.
type TransactionRequest struct {
	AccountID              int64           `json:"accountId" validate:"required,gt=0"`
	TransactionType        TransactionType `json:"transactionType" validate:"required"`
	Amount                 decimal.Decimal `json:"amount" validate:"required"`
	Description            string          `json:"description" validate:"max=200"`
	RecipientAccountID     *int64          `json:"recipientAccountId"`
	RecipientAccountNumber string          `json:"recipientAccountNumber" validate:"omitempty,max=20"`
}

// TransactionView is the read-side projection returned by all query paths,
// with account numbers and the processor's display name resolved.
type TransactionView struct {
	TransactionID          int64             `json:"transactionId"`
	AccountID              int64             `json:"accountId"`
	AccountNumber          string            `json:"accountNumber"`
	TransactionType        TransactionType   `json:"transactionType"`
	Amount                 decimal.Decimal   `json:"amount"`
	TransactionDate        time.Time         `json:"transactionDate"`
	Description            string            `json:"description,omitempty"`
	RecipientAccountID     *int64            `json:"recipientAccountId,omitempty"`
	RecipientAccountNumber *string           `json:"recipientAccountNumber,omitempty"`
	Status                 TransactionStatus `json:"status"`
	ProcessedByName        *string           `json:"processedByName,omitempty"`
	ApprovalDate           *time.Time        `json:"approvalDate,omitempty"`
}
