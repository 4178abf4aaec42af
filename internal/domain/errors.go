package domain

import "errors"

var (
	// ErrNotFound is returned when the requested resource does not exist.
	// Keeping this sentinel in domain allows adapters to map it consistently to 404/NOT_FOUND.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidInput marks caller mistakes that should surface as 400s.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNetwork wraps transport failures and exhausted retries against the
	// remote authority. Retryable: callers downgrade it to a soft "error"
	// status instead of throwing further.
	ErrNetwork = errors.New("authority unreachable")
	// ErrDenied is an explicit refusal from the remote authority.
	// Final: never retried and never overridden locally.
	ErrDenied = errors.New("denied by authority")
	// ErrCorruptData marks locally cached records that no longer parse.
	// A corrupt trial is treated as expired, never as freshly eligible,
	// so data corruption cannot extend trial time.
	ErrCorruptData = errors.New("corrupt local record")
	// ErrNoIdentity means no device token could be resolved or created.
	// Every entitlement call needs one, so this is fatal for the request.
	ErrNoIdentity = errors.New("device identity unavailable")
)
