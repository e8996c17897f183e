package models

// Error codes returned across the service boundary. Callers translate these
// into transport-level statuses; the engine itself never panics or leaks raw
// errors for business-rule failures.
const (
	CodeStoreFailure              = "501"
	CodeTransactionNotFound       = "502"
	CodeAccountNotFound           = "503"
	CodeInsufficientBalance       = "504"
	CodeRecipientRequired         = "505"
	CodeAlreadyProcessed          = "506"
	CodeAccountInactive           = "507"
	CodeCustomerInactive          = "508"
	CodeRecipientNotFound         = "509"
	CodeRecipientInactive         = "510"
	CodeRecipientCustomerInactive = "511"
	CodeSameAccountTransfer       = "514"
	CodeValidation                = "500"
)

// ServiceError is a single (code, message) pair carried in a Result.
type ServiceError struct {
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// Result wraps either a payload or a list of service errors.
type Result[T any] struct {
	Response T              `json:"response"`
	Errors   []ServiceError `json:"errors,omitempty"`
	Warning  string         `json:"warningMessage,omitempty"`
}

func (r *Result[T]) IsError() bool {
	return len(r.Errors) > 0
}

// HasCode reports whether any error in the result carries the given code.
func (r *Result[T]) HasCode(code string) bool {
	for _, e := range r.Errors {
		if e.ErrorCode == code {
			return true
		}
	}
	return false
}

func (r *Result[T]) AddError(code, message string) *Result[T] {
	r.Errors = append(r.Errors, ServiceError{ErrorCode: code, ErrorMessage: message})
	return r
}

// Ok builds a successful result carrying v.
func Ok[T any](v T) *Result[T] {
	return &Result[T]{Response: v}
}

// Fail builds a result carrying a single error.
func Fail[T any](code, message string) *Result[T] {
	r := &Result[T]{}
	return r.AddError(code, message)
}

// FailStore wraps an underlying persistence error. The original error text is
// preserved in the message so transient failures are diagnosable by the caller.
func FailStore[T any](err error) *Result[T] {
	return Fail[T](CodeStoreFailure, err.Error())
}
