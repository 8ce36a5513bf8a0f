// Package integrity re-checks stored audit records against the ledger and
// turns failures into classified findings.
package integrity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lzjever/lgu-integrity/internal/core"
	"github.com/lzjever/lgu-integrity/internal/ledger"
)

// ErrOracleUnavailable means the ledger could not be asked. It is never a
// tamper finding; callers skip the record.
var ErrOracleUnavailable = errors.New("ledger oracle unavailable")

const (
	MsgLocalMismatch = "Hash does not match current data (data may have been tampered)"
	MsgNotLogged     = "No transaction hash found (not logged to blockchain)"
	MsgNotOnLedger   = "Hash not found on blockchain"

	verifyFailedPrefix = "Blockchain verification failed: "
)

// Outcome is the result of verifying one record.
type Outcome struct {
	Verified        bool
	Matches         bool
	Error           string
	Failure         ledger.FailureKind
	LedgerTimestamp time.Time
}

func (o Outcome) OK() bool {
	return o.Verified && o.Matches && o.Error == ""
}

func (o Outcome) Result() core.VerificationResult {
	return core.VerificationResult{Verified: o.Verified, Matches: o.Matches, Error: o.Error}
}

type Verifier struct {
	oracle ledger.Oracle
}

func NewVerifier(oracle ledger.Oracle) *Verifier {
	return &Verifier{oracle: oracle}
}

// Verify checks rec in two steps. The stored fields are rehashed first; a
// mismatch is reported without asking the ledger. Otherwise the ledger is
// asked whether the stored hash was anchored.
func (v *Verifier) Verify(ctx context.Context, rec *core.AuditRecord) (Outcome, error) {
	if !rec.VerifyHash() {
		return Outcome{Error: MsgLocalMismatch, Failure: ledger.FailureHashMismatch}, nil
	}

	if !v.oracle.IsAvailable() {
		return Outcome{}, ErrOracleUnavailable
	}

	res := v.oracle.Verify(ctx, rec.Hash)
	if res.Failure == ledger.FailureUnavailable || strings.Contains(res.Error, ledger.NotInitializedMessage) {
		return Outcome{}, ErrOracleUnavailable
	}
	if res.Error != "" {
		failure := res.Failure
		if failure == ledger.FailureNone {
			failure = ledger.FailureFromMessage(res.Error)
		}
		return Outcome{Error: verifyFailedPrefix + res.Error, Failure: failure}, nil
	}
	if !res.Exists {
		if !rec.Anchored() {
			return Outcome{Error: MsgNotLogged, Failure: ledger.FailureNotAnchored}, nil
		}
		return Outcome{Error: MsgNotOnLedger, Failure: ledger.FailureOther}, nil
	}
	return Outcome{Verified: true, Matches: true, LedgerTimestamp: res.Timestamp}, nil
}

// LedgerAvailable reports whether ledger checks can currently run.
func (v *Verifier) LedgerAvailable() bool {
	return v.oracle.IsAvailable()
}
