package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lzjever/lgu-integrity/internal/anchor"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Anchor queue commands",
}

var queueStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending anchor jobs",
	Run: func(cmd *cobra.Command, args []string) {
		var resp anchor.Status
		if err := apiClient().Get("/v1/anchor-queue", &resp); err != nil {
			fail(err)
			return
		}
		printResult(resp)
	},
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Discard pending anchor jobs (the in-flight job still completes)",
	Run: func(cmd *cobra.Command, args []string) {
		var resp struct {
			Cleared int `json:"cleared"`
		}
		if err := apiClient().Delete("/v1/anchor-queue", &resp); err != nil {
			fail(err)
			return
		}
		fmt.Fprintf(stdout, "Cleared %d pending anchor jobs\n", resp.Cleared)
	},
}

func init() {
	queueCmd.AddCommand(queueStatusCmd, queueClearCmd)
	rootCmd.AddCommand(queueCmd)
}
