package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/lzjever/lgu-integrity/internal/anchor"
	"github.com/lzjever/lgu-integrity/internal/api"
	"github.com/lzjever/lgu-integrity/internal/core"
	"github.com/lzjever/lgu-integrity/internal/integrity"
)

var (
	stdout io.Writer = os.Stdout
	errOut io.Writer = os.Stderr
	exit             = os.Exit
)

func printResult(v interface{}) {
	if output == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		enc.Encode(v)
		return
	}
	printTable(v)
}

func printTable(v interface{}) {
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()
	switch data := v.(type) {
	case []api.IncidentSummary:
		if len(data) == 0 {
			fmt.Fprintln(w, "No incidents found.")
			return
		}
		fmt.Fprintln(w, "ID\tSTATUS\tSEVERITY\tKIND\tCONTAINED\tRECORDS\tDETECTED")
		for _, inc := range data {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%d\t%s\n",
				inc.ID, inc.Status, inc.Severity, inc.VerificationStatus,
				inc.ContainmentActive, len(inc.AuditLogIDs), stamp(inc.DetectedAt))
		}
	case *core.TamperIncident:
		fmt.Fprintf(w, "ID:\t%s\n", data.ID)
		fmt.Fprintf(w, "Status:\t%s\n", data.Status)
		fmt.Fprintf(w, "Severity:\t%s\n", data.Severity)
		fmt.Fprintf(w, "Kind:\t%s\n", data.VerificationStatus)
		fmt.Fprintf(w, "Message:\t%s\n", data.Message)
		fmt.Fprintf(w, "Containment:\t%t\n", data.ContainmentActive)
		fmt.Fprintf(w, "Audit records:\t%s\n", strings.Join(data.AuditLogIDs, ", "))
		fmt.Fprintf(w, "Affected users:\t%s\n", strings.Join(data.AffectedUserIDs, ", "))
		fmt.Fprintf(w, "Detected:\t%s\n", stamp(data.DetectedAt))
		fmt.Fprintf(w, "Last seen:\t%s\n", stamp(data.LastSeenAt))
		if data.AcknowledgedAt != nil {
			fmt.Fprintf(w, "Acknowledged:\t%s by %s\n", stamp(*data.AcknowledgedAt), data.AcknowledgedBy)
		}
		if data.ResolvedAt != nil {
			fmt.Fprintf(w, "Resolved:\t%s by %s\n", stamp(*data.ResolvedAt), data.ResolvedBy)
			fmt.Fprintf(w, "Notes:\t%s\n", truncate(data.ResolutionNotes, 60))
		}
		fmt.Fprintf(w, "Verification events:\t%d\n", len(data.VerificationEvents))
	case core.IncidentStats:
		fmt.Fprintf(w, "Total:\t%d\n", data.Total)
		fmt.Fprintf(w, "Open:\t%d\n", data.Open)
		fmt.Fprintf(w, "Acknowledged:\t%d\n", data.Acknowledged)
		fmt.Fprintf(w, "Resolved:\t%d\n", data.Resolved)
	case core.VerificationStats:
		fmt.Fprintf(w, "Total:\t%d\n", data.Total)
		fmt.Fprintf(w, "Verified:\t%d\n", data.Verified)
		fmt.Fprintf(w, "Unverified:\t%d\n", data.Unverified)
		fmt.Fprintf(w, "Not logged:\t%d\n", data.NotLogged)
	case *core.AuditRecord:
		fmt.Fprintf(w, "ID:\t%s\n", data.ID)
		fmt.Fprintf(w, "Subject:\t%s\n", data.SubjectID)
		fmt.Fprintf(w, "Event:\t%s\n", data.EventType)
		fmt.Fprintf(w, "Hash:\t%s\n", data.Hash)
		fmt.Fprintf(w, "Ledger tx:\t%s\n", orDash(data.LedgerTxRef))
		fmt.Fprintf(w, "Verified:\t%t\n", data.Verified)
		fmt.Fprintf(w, "Created:\t%s\n", stamp(data.CreatedAt))
	case anchor.Status:
		fmt.Fprintf(w, "Queue length:\t%d\n", data.QueueLength)
		fmt.Fprintf(w, "Processing:\t%t\n", data.Processing)
		if len(data.Items) > 0 {
			fmt.Fprintln(w, "\nOPERATION\tRECORD\tRETRIES\tENQUEUED")
			for _, it := range data.Items {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", it.Operation, orDash(it.RecordID), it.Retries, stamp(it.EnqueuedAt))
			}
		}
	case integrity.ScanResult:
		fmt.Fprintf(w, "Checked:\t%d\n", data.Checked)
		fmt.Fprintf(w, "Verified:\t%d\n", data.Verified)
		fmt.Fprintf(w, "Incidents:\t%d\n", data.Incidents)
		fmt.Fprintf(w, "Skipped:\t%d\n", data.Skipped)
		fmt.Fprintf(w, "Failed:\t%d\n", data.Failed)
	default:
		json.NewEncoder(stdout).Encode(v)
	}
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
