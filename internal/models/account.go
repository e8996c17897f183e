package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account holds a customer's balance. The balance column is owned by the
// ledger engine: every write goes through the approval unit of work, guarded
// by a row lock plus the version column for optimistic concurrency.
type Account struct {
	AccountID     int64           `json:"accountId"`
	AccountNumber string          `json:"accountNumber"`
	CustomerID    int64           `json:"customerId"`
	AccountTypeID int64           `json:"accountTypeId"`
	Balance       decimal.Decimal `json:"balance"`
	OpenDate      time.Time       `json:"openDate"`
	IsActive      bool            `json:"isActive"`
	Version       int             `json:"-"`

	IsDeleted    bool       `json:"-"`
	CreatedBy    string     `json:"-"`
	CreatedDate  time.Time  `json:"-"`
	ModifiedBy   *string    `json:"-"`
	ModifiedDate *time.Time `json:"-"`

	// Populated by joined reads; not a column of the accounts table.
	CustomerActive bool `json:"-"`
}

// OpenAccountRequest is the inbound shape for opening an account.
type OpenAccountRequest struct {
	CustomerID    int64           `json:"customerId" validate:"required,gt=0"`
	AccountTypeID int64           `json:"accountTypeId" validate:"required,gt=0"`
	Deposit       decimal.Decimal `json:"initialDeposit"`
}

// Customer carries only what the ledger needs: the active flag consulted at
// creation time and re-checked inside the approval unit.
type Customer struct {
	CustomerID int64  `json:"customerId"`
	UserID     string `json:"userId"`
	IsActive   bool   `json:"isActive"`
	IsDeleted  bool   `json:"-"`
}
