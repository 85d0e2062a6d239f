package payment

import (
	"fmt"

	"github.com/JohanKoppenaal/shopware-ucp-app-sub001/internal/ucp"
)

// The constructors below are the only way adapters build results, so the
// success/status coupling holds for every processor: failed results always
// carry success=false plus a code and message, success results always carry
// success=true with status succeeded.

// Failed builds a failed result. transactionID may be empty; when the
// processor issued one before declining it is kept for reconciliation.
func Failed(code, message, transactionID string) ucp.PaymentResult {
	return ucp.PaymentResult{
		Success:       false,
		Status:        ucp.ResultFailed,
		TransactionID: transactionID,
		ErrorCode:     code,
		ErrorMessage:  message,
	}
}

// ValidationFailed builds the failed result for malformed caller input. No
// external call may have been made when this is returned.
func ValidationFailed(message string) ucp.PaymentResult {
	return Failed(ucp.ErrCodeValidation, message, "")
}

// Succeeded builds the immediate-capture success result.
func Succeeded(transactionID string) ucp.PaymentResult {
	return ucp.PaymentResult{
		Success:       true,
		Status:        ucp.ResultSucceeded,
		TransactionID: transactionID,
	}
}

// RequiresAction builds the redirect outcome. The redirect URL must be
// non-empty; a processor demanding customer interaction without telling us
// where is a processor fault.
func RequiresAction(transactionID, redirectURL, processorCode string) ucp.PaymentResult {
	if redirectURL == "" {
		return Failed(processorCode, "processor requested customer action without a redirect url", transactionID)
	}
	return ucp.PaymentResult{
		Success:       false,
		Status:        ucp.ResultRequiresAction,
		TransactionID: transactionID,
		RedirectURL:   redirectURL,
	}
}

// Pending builds the awaiting-confirmation outcome.
func Pending(transactionID string) ucp.PaymentResult {
	return ucp.PaymentResult{
		Success:       false,
		Status:        ucp.ResultPending,
		TransactionID: transactionID,
	}
}

// ProcessorErrorCode derives the stable <processor>_error code for a handler.
func ProcessorErrorCode(handlerID string) string {
	return handlerID + "_error"
}

// Guard converts a panic inside an adapter into a <processor>_error result.
// ProcessPayment implementations defer it so no fault ever escapes the
// adapter boundary.
func Guard(handlerID string, result *ucp.PaymentResult) {
	if r := recover(); r != nil {
		*result = Failed(ProcessorErrorCode(handlerID), fmt.Sprintf("internal adapter fault: %v", r), result.TransactionID)
	}
}
