package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	apiURL     string
	scannerURL string
	token      string
	output     string
)

var rootCmd = &cobra.Command{
	Use:   "integrityctl",
	Short: "Audit integrity CLI - triage tamper incidents and inspect audit records",
	Long:  `integrityctl is a command line interface for the audit integrity API and scanner.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&apiURL, "api-url", "a", "http://localhost:8080", "Integrity API URL")
	rootCmd.PersistentFlags().StringVar(&scannerURL, "scanner-url", "http://localhost:9091", "Integrity scanner admin URL")
	rootCmd.PersistentFlags().StringVarP(&token, "token", "t", os.Getenv("INTEGRITY_TOKEN"), "Operator bearer token (defaults to $INTEGRITY_TOKEN)")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")
}
