// Package agent – errors.go defines the error taxonomy surfaced to the
// model. Every tool failure lands in exactly one of these categories so
// the assistant loop can decide whether to retry, rephrase, or stop.
package agent

import (
	"errors"
	"fmt"
)

// ErrBlocked marks operations the policy engine refused outright.
// Blocked results are terminal: the model is told why and must not
// retry the same operation.
var ErrBlocked = errors.New("blocked by policy")

// ErrApprovalDenied marks dangerous commands the user declined.
var ErrApprovalDenied = errors.New("approval denied")

// ErrApprovalTimeout marks dangerous commands nobody decided on in time.
var ErrApprovalTimeout = errors.New("approval timed out")

// BlockedErrorf wraps ErrBlocked with a reason. The reason is shown to
// the model verbatim so it can adjust instead of blindly retrying.
func BlockedErrorf(format string, args ...any) error {
	return fmt.Errorf("BLOCKED: "+format+": %w", append(args, ErrBlocked)...)
}

// IsBlockedError reports whether an error is a policy block. Approval
// denials and timeouts are not blocks: the command was legitimate to
// ask about, the user just said no.
func IsBlockedError(err error) bool {
	return errors.Is(err, ErrBlocked)
}
