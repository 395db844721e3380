package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/fotoyou/internal/auth/domain"
	"github.com/smallbiznis/fotoyou/internal/authorization"
	catalogdomain "github.com/smallbiznis/fotoyou/internal/catalog/domain"
	entitlementdomain "github.com/smallbiznis/fotoyou/internal/entitlement/domain"
	paymentdomain "github.com/smallbiznis/fotoyou/internal/payment/domain"
	"github.com/smallbiznis/fotoyou/internal/providers/pdf"
	purchasedomain "github.com/smallbiznis/fotoyou/internal/purchase/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if code, ok := validationErrorCode(err); ok {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrMissingToken):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authdomain.ErrInvalidToken),
		errors.Is(err, authdomain.ErrTokenExpired),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, authorization.ErrInvalidActor):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, entitlementdomain.ErrActivePurchaseExists),
		errors.Is(err, purchasedomain.ErrAlreadyInitiated):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "you have already initiated payment for this story",
		}
	case errors.Is(err, purchasedomain.ErrPurchaseNotPaid):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "purchase is not paid",
		}
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case isUpstreamError(err):
		return http.StatusBadGateway, errorPayload{
			Type:    "bad_gateway",
			Message: "upstream service failed",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, authdomain.ErrNotConfigured):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger a low-cardinality type and code.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

var validationSentinels = []error{
	ErrInvalidRequest,
	purchasedomain.ErrInvalidBuyer,
	purchasedomain.ErrInvalidStory,
	purchasedomain.ErrInvalidAmount,
	purchasedomain.ErrAmountTooHigh,
	purchasedomain.ErrAmountMismatch,
	entitlementdomain.ErrInvalidUser,
	entitlementdomain.ErrInvalidStory,
	entitlementdomain.ErrInvalidAmount,
	entitlementdomain.ErrInvalidStatus,
	entitlementdomain.ErrInvalidOrderID,
	catalogdomain.ErrInvalidPage,
	paymentdomain.ErrInvalidSignature,
	paymentdomain.ErrInvalidPayload,
	pdf.ErrInvalidReceipt,
}

func validationErrorCode(err error) (string, bool) {
	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel) {
			return sentinel.Error(), true
		}
	}
	return "", false
}

func validationErrorField(code string) string {
	switch code {
	case purchasedomain.ErrInvalidBuyer.Error(), entitlementdomain.ErrInvalidUser.Error():
		return "user"
	case purchasedomain.ErrInvalidStory.Error():
		return "storyId"
	case purchasedomain.ErrInvalidAmount.Error(), purchasedomain.ErrAmountTooHigh.Error(), purchasedomain.ErrAmountMismatch.Error():
		return "amount"
	case entitlementdomain.ErrInvalidStatus.Error():
		return "status"
	case entitlementdomain.ErrInvalidOrderID.Error():
		return "orderId"
	case catalogdomain.ErrInvalidPage.Error():
		return "page"
	case paymentdomain.ErrInvalidSignature.Error():
		return "signature_key"
	case paymentdomain.ErrInvalidPayload.Error(), ErrInvalidRequest.Error():
		return "request"
	default:
		return ""
	}
}

func validationErrorMessage(code string) string {
	switch code {
	case ErrInvalidRequest.Error():
		return "invalid request"
	case purchasedomain.ErrAmountMismatch.Error():
		return "amount does not match the story price"
	case purchasedomain.ErrAmountTooHigh.Error():
		return "amount exceeds the allowed maximum"
	case paymentdomain.ErrInvalidSignature.Error():
		return "notification signature does not match"
	default:
		return "invalid value"
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, catalogdomain.ErrStoryNotFound),
		errors.Is(err, entitlementdomain.ErrPurchaseNotFound),
		errors.Is(err, paymentdomain.ErrProviderNotFound),
		errors.Is(err, paymentdomain.ErrTransactionNotFound):
		return true
	default:
		return false
	}
}

func isUpstreamError(err error) bool {
	return paymentdomain.IsGatewayError(err) ||
		errors.Is(err, catalogdomain.ErrCatalogUnavailable) ||
		errors.Is(err, catalogdomain.ErrInvalidStory)
}
