package ai

import (
	"context"
	"errors"
	"net/http"
	"time"

	"omnigate/internal/utils"
)

// ClassifyVendorError maps a raw adapter-level failure onto the gateway error
// taxonomy. Vendor-specific error types stop here: everything downstream of an
// adapter sees only ErrorDetails.
func ClassifyVendorError(err error) *ErrorDetails {
	if err == nil {
		return nil
	}

	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Details()
	}

	if errors.Is(err, context.Canceled) {
		return &ErrorDetails{Message: "request cancelled", Kind: ErrorKindAborted}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ErrorDetails{Message: "vendor call timed out", Kind: ErrorKindTimeout}
	}

	var statusErr *utils.HTTPStatusError
	if errors.As(err, &statusErr) {
		kind := ErrorKindProvider
		if statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden {
			kind = ErrorKindAuth
		}
		return &ErrorDetails{
			Message: statusErr.Error(),
			Kind:    kind,
			Code:    http.StatusText(statusErr.StatusCode),
		}
	}

	return &ErrorDetails{Message: err.Error(), Kind: ErrorKindProvider}
}

// AuthErrorResponse builds the synthetic response reported when a vendor
// rejects (or is missing) credentials. Authentication failures never crash an
// adapter; the next call simply retries with whatever credential is then
// configured.
func AuthErrorResponse(vendor, model, message string) *NormalizedResponse {
	return &NormalizedResponse{
		Vendor:       vendor,
		Model:        model,
		CreatedAt:    time.Now().Unix(),
		FinishReason: FinishError,
		ErrorDetails: &ErrorDetails{Message: message, Kind: ErrorKindAuth},
	}
}
