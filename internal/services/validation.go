package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/corebank/backend/internal/models"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	if validationErr != nil {
		errorResp.Details = make(map[string]string)
		for _, err := range validationErr.(validator.ValidationErrors) {
			errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
	}

	json.NewEncoder(w).Encode(errorResp)
}

// WriteJSON writes v as a JSON response body with the given status.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// StatusForErrors maps service error codes onto HTTP statuses. The first
// error decides; results carry at most one business error by construction.
func StatusForErrors(errs []models.ServiceError) int {
	if len(errs) == 0 {
		return http.StatusOK
	}
	switch errs[0].ErrorCode {
	case models.CodeTransactionNotFound, models.CodeAccountNotFound, models.CodeRecipientNotFound:
		return http.StatusNotFound
	case models.CodeAlreadyProcessed:
		return http.StatusConflict
	case models.CodeAccountInactive, models.CodeCustomerInactive,
		models.CodeRecipientInactive, models.CodeRecipientCustomerInactive:
		return http.StatusForbidden
	case models.CodeInsufficientBalance, models.CodeRecipientRequired,
		models.CodeSameAccountTransfer, models.CodeValidation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// ActorFromContext extracts the authenticated actor id placed in the request
// context by the auth middleware.
func ActorFromContext(ctx context.Context) (string, bool) {
	actor, ok := ctx.Value("userID").(string)
	return actor, ok && actor != ""
}
