package integrity

import (
	"github.com/lzjever/lgu-integrity/internal/core"
	"github.com/lzjever/lgu-integrity/internal/ledger"
)

const defaultIncidentMessage = "Audit log integrity issue detected"

// Classify maps a verification outcome to a finding. ok is false when the
// outcome is clean and no incident should be raised.
//
// The failure kind decides the category. Outcomes built without a kind fall
// back to matching the error text.
func Classify(o Outcome) (f core.Finding, ok bool) {
	if o.OK() {
		return core.Finding{}, false
	}

	kind := o.Failure
	if kind == ledger.FailureNone {
		kind = ledger.FailureFromMessage(o.Error)
	}

	switch kind {
	case ledger.FailureHashMismatch, ledger.FailureNone:
		// an unverified outcome without any error is treated as tampering
		f.VerificationStatus = core.StatusTamperDetected
	case ledger.FailureNotAnchored:
		f.VerificationStatus = core.StatusNotLogged
	default:
		f.VerificationStatus = core.StatusVerificationError
	}

	f.Severity = core.SeverityMedium
	if f.VerificationStatus == core.StatusTamperDetected {
		f.Severity = core.SeverityHigh
		f.ContainmentActive = true
	}

	f.Message = o.Error
	if f.Message == "" {
		f.Message = defaultIncidentMessage
	}
	f.Verification = o.Result()
	return f, true
}
