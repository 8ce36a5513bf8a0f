package main

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/lzjever/lgu-integrity/internal/core"
)

type recordResponse struct {
	Record *core.AuditRecord `json:"record"`
}

var recordCmd = &cobra.Command{
	Use:     "record",
	Aliases: []string{"rec"},
	Short:   "Audit record commands",
}

var recordGetCmd = &cobra.Command{
	Use:   "get <record-id>",
	Short: "Show an audit record",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var resp recordResponse
		if err := apiClient().Get("/v1/audit-records/"+url.PathEscape(args[0]), &resp); err != nil {
			fail(err)
			return
		}
		printResult(resp.Record)
	},
}

var recordVerifyCmd = &cobra.Command{
	Use:   "verify <record-id>",
	Short: "Verify an audit record against the ledger",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var resp struct {
			Verification core.VerificationResult `json:"verification"`
			Record       *core.AuditRecord       `json:"record"`
		}
		if err := apiClient().Post("/v1/audit-records/"+url.PathEscape(args[0])+"/verify", nil, &resp); err != nil {
			fail(err)
			return
		}
		if output == "json" {
			printResult(resp)
			return
		}
		v := resp.Verification
		switch {
		case v.Verified && v.Matches:
			fmt.Fprintf(stdout, "Record %s verified\n", args[0])
		default:
			fmt.Fprintf(stdout, "Record %s NOT verified: %s\n", args[0], v.Error)
		}
	},
}

var recordStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show verification counts",
	Run: func(cmd *cobra.Command, args []string) {
		var resp struct {
			Stats core.VerificationStats `json:"stats"`
		}
		if err := apiClient().Get("/v1/audit-records/stats", &resp); err != nil {
			fail(err)
			return
		}
		printResult(resp.Stats)
	},
}

var (
	createField    string
	createOld      string
	createNew      string
	createRole     string
	createMeta     string
	createCritical bool
)

var recordCreateCmd = &cobra.Command{
	Use:   "create <subject-id> <event-type>",
	Short: "Write an audit record",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		body := map[string]interface{}{
			"subjectId":    args[0],
			"eventType":    args[1],
			"fieldChanged": createField,
			"oldValue":     createOld,
			"newValue":     createNew,
			"role":         createRole,
			"critical":     createCritical,
		}
		if createMeta != "" {
			var meta map[string]interface{}
			if err := json.Unmarshal([]byte(createMeta), &meta); err != nil {
				fail(fmt.Errorf("--metadata: %w", err))
				return
			}
			body["metadata"] = meta
		}
		var resp recordResponse
		if err := apiClient().Post("/v1/audit-records", body, &resp); err != nil {
			fail(err)
			return
		}
		if output == "json" {
			printResult(resp.Record)
			return
		}
		fmt.Fprintf(stdout, "Record %s created (hash %s)\n", resp.Record.ID, resp.Record.Hash)
	},
}

func init() {
	recordCreateCmd.Flags().StringVar(&createField, "field", "", "Field changed")
	recordCreateCmd.Flags().StringVar(&createOld, "old", "", "Old value")
	recordCreateCmd.Flags().StringVar(&createNew, "new", "", "New value")
	recordCreateCmd.Flags().StringVar(&createRole, "role", "", "Actor role")
	recordCreateCmd.Flags().StringVar(&createMeta, "metadata", "", "Metadata as a JSON object")
	recordCreateCmd.Flags().BoolVar(&createCritical, "critical", false, "Also log as a critical event")

	recordCmd.AddCommand(recordGetCmd, recordVerifyCmd, recordStatsCmd, recordCreateCmd)
	rootCmd.AddCommand(recordCmd)
}
