package message

import (
	"errors"
	"fmt"

	"meta-relay/internal/graph"
)

type FailureReason string

const (
	FailureUnregistered  FailureReason = "unregistered"
	FailureInvalidNumber FailureReason = "invalid_number"
	FailureBlocked       FailureReason = "blocked"
	FailureUpstream      FailureReason = "upstream"
)

// Graph error codes with a dedicated failure reason.
const (
	codeInvalidParameter  = 100
	codeMessengerBlocked  = 551
	codeInvalidParamValue = 131009
	codeUndeliverable     = 131026
	codeMarketingOptOut   = 131050
	subcodeNoMatchingUser = 2018001
)

// SendError is returned when the provider refuses or never receives an outbound message.
// The local record has already been marked FAILED with Message as its reason.
type SendError struct {
	Reason    FailureReason
	Code      int
	Message   string
	MessageID string
	Err       error
}

func (e *SendError) Error() string {
	return e.Message
}

func (e *SendError) Unwrap() error {
	return e.Err
}

func classifySendError(err error, recipientID string) *SendError {
	sendErr := &SendError{Reason: FailureUpstream, Err: err}

	var apiErr *graph.APIError
	if !errors.As(err, &apiErr) {
		sendErr.Message = fmt.Sprintf("provider request failed: %v", err)
		return sendErr
	}
	sendErr.Code = apiErr.Code

	switch {
	case apiErr.Code == codeUndeliverable,
		apiErr.Code == codeInvalidParameter && apiErr.Subcode == subcodeNoMatchingUser:
		sendErr.Reason = FailureUnregistered
		sendErr.Message = fmt.Sprintf("recipient %s is not registered on the platform", recipientID)
	case apiErr.Code == codeInvalidParamValue, apiErr.Code == codeInvalidParameter:
		sendErr.Reason = FailureInvalidNumber
		sendErr.Message = fmt.Sprintf("recipient %s is not a valid number or id", recipientID)
	case apiErr.Code == codeMessengerBlocked, apiErr.Code == codeMarketingOptOut:
		sendErr.Reason = FailureBlocked
		sendErr.Message = fmt.Sprintf("recipient %s has blocked messages from this business", recipientID)
	default:
		raw := apiErr.Message
		if raw == "" {
			raw = apiErr.Body
		}
		sendErr.Message = fmt.Sprintf("provider rejected the message: %s", raw)
	}
	return sendErr
}
