package api

import (
	"net/http"
)

// HealthHandler is the liveness probe.
func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// ReadyHandler fails only when the record store is unreachable. A ledger
// outage degrades anchoring and verification but keeps the API serving, so it
// is reported without failing the probe.
func (a *API) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.records.Ping(r.Context()); err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "db unavailable"})
		return
	}
	ledgerState := "unavailable"
	if a.verifier != nil && a.verifier.LedgerAvailable() {
		ledgerState = "available"
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "ledger": ledgerState})
}
