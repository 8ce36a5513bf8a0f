package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lzjever/lgu-integrity/internal/integrity"
	"github.com/lzjever/lgu-integrity/internal/scanner"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Integrity scanner commands",
}

var scanTriggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Run an integrity scan now and wait for the result",
	Run: func(cmd *cobra.Command, args []string) {
		var resp struct {
			Result integrity.ScanResult `json:"result"`
		}
		if err := NewClient(scannerURL, token).Post("/scan", nil, &resp); err != nil {
			fail(err)
			return
		}
		printResult(resp.Result)
	},
}

var scanStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last scan run and the next scheduled run",
	Run: func(cmd *cobra.Command, args []string) {
		var resp struct {
			NextRun string             `json:"nextRun"`
			LastRun *scanner.RunRecord `json:"lastRun"`
		}
		if err := NewClient(scannerURL, token).Get("/scan", &resp); err != nil {
			fail(err)
			return
		}
		if output == "json" {
			printResult(resp)
			return
		}
		fmt.Fprintf(stdout, "Next run: %s\n", resp.NextRun)
		if resp.LastRun == nil {
			fmt.Fprintln(stdout, "No scan has run yet.")
			return
		}
		fmt.Fprintf(stdout, "Last run: %s (%s)\n", stamp(resp.LastRun.StartedAt), resp.LastRun.Trigger)
		if resp.LastRun.Error != "" {
			fmt.Fprintf(stdout, "Error: %s\n", resp.LastRun.Error)
		}
		printResult(resp.LastRun.Result)
	},
}

func init() {
	scanCmd.AddCommand(scanTriggerCmd, scanStatusCmd)
	rootCmd.AddCommand(scanCmd)
}
