package telegram

import (
	"errors"
	"fmt"
	"time"
)

// FlowControlError is returned when the transport demands a mandatory
// wait before further send operations are accepted (HTTP 429).
type FlowControlError struct {
	RetryAfter time.Duration
}

func (e *FlowControlError) Error() string {
	return fmt.Sprintf("flow control: retry after %s", e.RetryAfter)
}

// RequestError is any non-flow-control Bot API failure.
type RequestError struct {
	Code        int
	Description string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("telegram: %d %s", e.Code, e.Description)
}

// Permanent reports whether retrying the same request is pointless,
// e.g. the bot was blocked or the target is invalid.
func (e *RequestError) Permanent() bool {
	return e.Code == 400 || e.Code == 403
}

// RetryDelay extracts the mandated wait from a flow-control error.
// The second return is false for every other error.
func RetryDelay(err error) (time.Duration, bool) {
	var fc *FlowControlError
	if errors.As(err, &fc) {
		return fc.RetryAfter, true
	}
	return 0, false
}

// IsBlocked reports whether the error means the user blocked the bot.
func IsBlocked(err error) bool {
	var re *RequestError
	return errors.As(err, &re) && re.Code == 403
}
