package domain

import (
	"fmt"
	"strings"
	"time"
)

// DefaultLedgerCap bounds the local usage ledger; oldest entries are evicted
// first. The ledger feeds local analytics/UI only, never entitlement
// decisions.
const DefaultLedgerCap = 100

// UsageEntry is one billable action recorded locally.
type UsageEntry struct {
	Action   string            `json:"action"`
	At       time.Time         `json:"at"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func ValidateUsageAction(action string) error {
	if strings.TrimSpace(action) == "" {
		return fmt.Errorf("%w: action is required", ErrInvalidInput)
	}
	return nil
}
