// Package ledger is the client side of the blockchain ledger oracle. The
// ledger is treated as an append-once key/value service: hashes are anchored
// once and can later be looked up. Signing and transaction submission live
// behind the gateway this package talks to.
package ledger

import (
	"context"
	"time"
)

// NotInitializedMessage is reported by every call on an unconfigured oracle.
const NotInitializedMessage = "Blockchain service not initialized"

// FailureKind types an oracle failure so callers do not have to inspect
// error text.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureHashMismatch
	FailureNotAnchored
	FailureUnavailable
	FailureOther
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureHashMismatch:
		return "hash_mismatch"
	case FailureNotAnchored:
		return "not_anchored"
	case FailureUnavailable:
		return "unavailable"
	default:
		return "other"
	}
}

type AnchorResult struct {
	Success     bool
	TxHash      string
	BlockNumber uint64
	Error       string
	Failure     FailureKind
}

type VerifyResult struct {
	Exists    bool
	Timestamp time.Time
	Error     string
	Failure   FailureKind
}

// Oracle is the ledger as seen by the integrity pipeline. Implementations
// never return Go errors: failures are folded into the result values.
type Oracle interface {
	Anchor(ctx context.Context, hash, eventType string) AnchorResult
	LogCriticalEvent(ctx context.Context, eventType, subjectID, details string) AnchorResult
	Verify(ctx context.Context, hash string) VerifyResult
	IsAvailable() bool
}

// Unconfigured is the oracle used when no ledger gateway is configured.
type Unconfigured struct{}

func (Unconfigured) Anchor(context.Context, string, string) AnchorResult {
	return AnchorResult{Error: NotInitializedMessage, Failure: FailureUnavailable}
}

func (Unconfigured) LogCriticalEvent(context.Context, string, string, string) AnchorResult {
	return AnchorResult{Error: NotInitializedMessage, Failure: FailureUnavailable}
}

func (Unconfigured) Verify(context.Context, string) VerifyResult {
	return VerifyResult{Error: NotInitializedMessage, Failure: FailureUnavailable}
}

func (Unconfigured) IsAvailable() bool { return false }
