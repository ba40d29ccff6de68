package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/greenbasket/backoffice/internal/catalog/domain"
	checkoutdomain "github.com/greenbasket/backoffice/internal/checkout/domain"
	orderdomain "github.com/greenbasket/backoffice/internal/order/domain"
	"github.com/greenbasket/backoffice/internal/pricing"
	stockdomain "github.com/greenbasket/backoffice/internal/stock/domain"
)

var validationErrs = []error{
	stockdomain.ErrInvalidProductID,
	stockdomain.ErrInvalidQuantity,
	stockdomain.ErrInvalidReason,
	stockdomain.ErrInvalidThreshold,
	catalogdomain.ErrInvalidName,
	catalogdomain.ErrInvalidPrice,
	orderdomain.ErrInvalidCustomer,
	orderdomain.ErrInvalidAddress,
	orderdomain.ErrInvalidTracking,
	orderdomain.ErrInvalidReason,
	orderdomain.ErrEmptyOrder,
	checkoutdomain.ErrEmptyCart,
	checkoutdomain.ErrInvalidQuantity,
	pricing.ErrInvalidQuantity,
	pricing.ErrInvalidPrice,
	pricing.ErrInvalidDiscount,
}

var notFoundErrs = []error{
	stockdomain.ErrRecordNotFound,
	catalogdomain.ErrProductNotFound,
	orderdomain.ErrOrderNotFound,
	checkoutdomain.ErrProductNotFound,
}

var conflictErrs = []error{
	stockdomain.ErrInsufficientStock,
	stockdomain.ErrCapacityExceeded,
	stockdomain.ErrRecordExists,
	catalogdomain.ErrProductExists,
	orderdomain.ErrInvalidTransition,
	checkoutdomain.ErrStockUnavailable,
	checkoutdomain.ErrProductInactive,
}

// Classify buckets an error for the request log.
func Classify(err error) (string, string) {
	switch status := statusFor(err); status {
	case http.StatusBadRequest:
		return "validation", rootCode(err)
	case http.StatusNotFound:
		return "not_found", rootCode(err)
	case http.StatusConflict:
		return "conflict", rootCode(err)
	case http.StatusPaymentRequired:
		return "payment", rootCode(err)
	case http.StatusServiceUnavailable:
		return "unavailable", rootCode(err)
	default:
		return "internal", "internal_error"
	}
}

func statusFor(err error) int {
	for _, target := range validationErrs {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	for _, target := range notFoundErrs {
		if errors.Is(err, target) {
			return http.StatusNotFound
		}
	}
	for _, target := range conflictErrs {
		if errors.Is(err, target) {
			return http.StatusConflict
		}
	}
	if errors.Is(err, checkoutdomain.ErrPaymentDeclined) {
		return http.StatusPaymentRequired
	}
	if errors.Is(err, stockdomain.ErrLockUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// rootCode walks to the sentinel so wrapped detail never leaks into the code
// field. The message keeps the full chain.
func rootCode(err error) string {
	for {
		unwrapped := errors.Unwrap(err)
		if unwrapped == nil {
			return err.Error()
		}
		err = unwrapped
	}
}

func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	status := statusFor(err)
	body := gin.H{"code": rootCode(err)}
	if status != http.StatusInternalServerError {
		body["message"] = err.Error()
	} else {
		body["message"] = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}
