package common

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"chainvoice/internal/models"
)

type contextKey string

const (
	// CreatorWalletKey carries the authenticated creator wallet address
	CreatorWalletKey contextKey = "creator_wallet"
)

var (
	walletAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	txnHashPattern       = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details,omitempty"`
	} `json:"error"`
}

// CreateErrorResponse creates a standardized error response
func CreateErrorResponse(code string, message string, details map[string]string) *ErrorResponse {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	resp.Error.Details = details
	return &resp
}

// SendValidationError sends a validation error response
func SendValidationError(c echo.Context, field, message string) error {
	details := map[string]string{
		field: message,
	}
	return c.JSON(http.StatusBadRequest, CreateErrorResponse("VALIDATION_ERROR", "Validation failed", details))
}

// SendClientError sends a client error response
func SendClientError(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, CreateErrorResponse("CLIENT_ERROR", message, nil))
}

// SendServerError sends a server error response
func SendServerError(c echo.Context, message string) error {
	return c.JSON(http.StatusInternalServerError, CreateErrorResponse("SERVER_ERROR", message, nil))
}

// SendNotFoundError sends a not found error response
func SendNotFoundError(c echo.Context, resource string) error {
	return c.JSON(http.StatusNotFound, CreateErrorResponse("NOT_FOUND", fmt.Sprintf("%s not found", resource), nil))
}

// SendUnauthorizedError sends an unauthorized error response
func SendUnauthorizedError(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, CreateErrorResponse("UNAUTHORIZED", "Unauthorized access", nil))
}

// SendDomainError maps the typed business-error taxonomy to HTTP status codes
func SendDomainError(c echo.Context, err error) error {
	switch {
	case IsValidation(err):
		return c.JSON(http.StatusBadRequest, CreateErrorResponse("VALIDATION_ERROR", err.Error(), nil))
	case IsConflict(err):
		return c.JSON(http.StatusConflict, CreateErrorResponse("CONFLICT", err.Error(), nil))
	case IsNotFound(err):
		return c.JSON(http.StatusNotFound, CreateErrorResponse("NOT_FOUND", err.Error(), nil))
	case IsInvalidOperation(err):
		return c.JSON(http.StatusUnprocessableEntity, CreateErrorResponse("INVALID_OPERATION", err.Error(), nil))
	default:
		return SendServerError(c, err.Error())
	}
}

// ValidateUUID validates UUID format
func ValidateUUID(idStr string, fieldName string) (uuid.UUID, error) {
	if strings.TrimSpace(idStr) == "" {
		return uuid.Nil, fmt.Errorf("%s is required", fieldName)
	}

	id, err := uuid.Parse(strings.TrimSpace(idStr))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s has invalid UUID format: %v", fieldName, err)
	}

	return id, nil
}

// ValidateWalletAddress validates a 0x-prefixed 20-byte hex EVM address
// (42 characters total)
func ValidateWalletAddress(addr, fieldName string) error {
	if strings.TrimSpace(addr) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	if len(addr) != 42 {
		return fmt.Errorf("%s must be exactly 42 characters", fieldName)
	}
	if !walletAddressPattern.MatchString(addr) {
		return fmt.Errorf("%s must be a 0x-prefixed 40-digit hex address", fieldName)
	}
	return nil
}

// ValidateTxnHash validates a 0x-prefixed 32-byte hex transaction hash
func ValidateTxnHash(hash, fieldName string) error {
	if strings.TrimSpace(hash) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	if !txnHashPattern.MatchString(hash) {
		return fmt.Errorf("%s must be a 0x-prefixed 64-digit hex hash", fieldName)
	}
	return nil
}

// ValidateCryptoToken validates the settlement token of a crypto payment
func ValidateCryptoToken(token string) error {
	if token != models.CryptoTokenUSDC && token != models.CryptoTokenUSDT {
		return fmt.Errorf("crypto token must be one of: %s, %s", models.CryptoTokenUSDC, models.CryptoTokenUSDT)
	}
	return nil
}

// ValidateInvoiceStatus validates invoice status values
func ValidateInvoiceStatus(status string) error {
	validStatuses := map[string]bool{
		models.StatusAwaitingPayment:            true,
		models.StatusPartiallyPaid:              true,
		models.StatusPaid:                       true,
		models.StatusOverdue:                    true,
		models.StatusRejected:                   true,
		models.StatusPaymentPendingVerification: true,
	}
	if !validStatuses[status] {
		return fmt.Errorf("invalid invoice status: %s", status)
	}
	return nil
}

// ValidatePaymentMethod validates the payment method of an invoice
func ValidatePaymentMethod(method string) error {
	if method != models.PaymentMethodCrypto && method != models.PaymentMethodBank {
		return fmt.Errorf("payment method must be either '%s' or '%s'", models.PaymentMethodCrypto, models.PaymentMethodBank)
	}
	return nil
}

// ValidatePositiveFloat validates positive float values with upper bounds
func ValidatePositiveFloat(value float64, fieldName string, maxValue float64) error {
	if value <= 0 {
		return fmt.Errorf("%s must be positive", fieldName)
	}
	if value > maxValue {
		return fmt.Errorf("%s cannot exceed %.2f", fieldName, maxValue)
	}
	return nil
}

// ValidateRequiredString validates required string fields
func ValidateRequiredString(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateOptionalString validates optional string fields
func ValidateOptionalString(value *string, fieldName string, maxLength int) error {
	if value != nil {
		if len(*value) > maxLength {
			return fmt.Errorf("%s cannot exceed %d characters", fieldName, maxLength)
		}
		*value = strings.TrimSpace(*value)
	}
	return nil
}

// SafeString safely handles string pointer operations
func SafeString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// SafeFloat64 safely handles float64 pointer operations
func SafeFloat64(f *float64) float64 {
	if f == nil {
		return 0.0
	}
	return *f
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}

// GetCreatorWalletFromContext extracts the authenticated creator wallet
// address from the request context
func GetCreatorWalletFromContext(ctx context.Context) (string, bool) {
	wallet, ok := ctx.Value(CreatorWalletKey).(string)
	return wallet, ok && wallet != ""
}

// ValidatePaginationParams validates pagination parameters
func ValidatePaginationParams(limit, offset int) (int, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}

	if offset < 0 {
		offset = 0
	}
	if offset > 1000000 {
		return 0, 0, fmt.Errorf("offset cannot exceed 1,000,000")
	}

	return limit, offset, nil
}

// ValidateDateRange validates date ranges to prevent abuse
func ValidateDateRange(startDate, endDate time.Time) error {
	if endDate.Before(startDate) {
		return fmt.Errorf("end date cannot be before start date")
	}

	duration := endDate.Sub(startDate)
	maxDuration := time.Hour * 24 * 365 * 10 // 10 years
	if duration > maxDuration {
		return fmt.Errorf("date range cannot exceed 10 years")
	}

	return nil
}
