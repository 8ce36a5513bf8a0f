package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lzjever/lgu-integrity/internal/api"
	"github.com/lzjever/lgu-integrity/internal/core"
)

type incidentResponse struct {
	Incident *core.TamperIncident `json:"incident"`
}

var incidentCmd = &cobra.Command{
	Use:     "incident",
	Aliases: []string{"inc"},
	Short:   "Tamper incident triage commands",
}

var (
	listStatus   string
	listSeverity string
	listLimit    int
)

var incidentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List incidents, newest first",
	Run: func(cmd *cobra.Command, args []string) {
		q := url.Values{}
		if listStatus != "" {
			q.Set("status", listStatus)
		}
		if listSeverity != "" {
			q.Set("severity", listSeverity)
		}
		if listLimit > 0 {
			q.Set("limit", strconv.Itoa(listLimit))
		}
		path := "/v1/incidents"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}

		var resp struct {
			Incidents []api.IncidentSummary `json:"incidents"`
		}
		if err := apiClient().Get(path, &resp); err != nil {
			fail(err)
			return
		}
		printResult(resp.Incidents)
	},
}

var incidentStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show incident counts by status",
	Run: func(cmd *cobra.Command, args []string) {
		var resp struct {
			Stats core.IncidentStats `json:"stats"`
		}
		if err := apiClient().Get("/v1/incidents/stats", &resp); err != nil {
			fail(err)
			return
		}
		printResult(resp.Stats)
	},
}

var incidentGetCmd = &cobra.Command{
	Use:   "get <incident-id>",
	Short: "Show incident details",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var resp incidentResponse
		if err := apiClient().Get("/v1/incidents/"+url.PathEscape(args[0]), &resp); err != nil {
			fail(err)
			return
		}
		printResult(resp.Incident)
	},
}

var ackContainment string

var incidentAckCmd = &cobra.Command{
	Use:   "ack <incident-id>",
	Short: "Acknowledge an incident",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		body := map[string]interface{}{}
		if ackContainment != "" {
			v, err := strconv.ParseBool(ackContainment)
			if err != nil {
				fail(fmt.Errorf("--containment: %w", err))
				return
			}
			body["containmentActive"] = v
		}
		var resp incidentResponse
		if err := apiClient().Post("/v1/incidents/"+url.PathEscape(args[0])+"/ack", body, &resp); err != nil {
			fail(err)
			return
		}
		fmt.Fprintf(stdout, "Incident %s status: %s\n", resp.Incident.ID, resp.Incident.Status)
	},
}

var containRelease bool

var incidentContainCmd = &cobra.Command{
	Use:   "contain <incident-id>",
	Short: "Enable (or with --release, disable) containment",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		body := map[string]interface{}{"containmentActive": !containRelease}
		var resp incidentResponse
		if err := apiClient().Post("/v1/incidents/"+url.PathEscape(args[0])+"/contain", body, &resp); err != nil {
			fail(err)
			return
		}
		fmt.Fprintf(stdout, "Incident %s containment: %t\n", resp.Incident.ID, resp.Incident.ContainmentActive)
	},
}

var (
	resolveNotes   string
	resolveContain bool
)

var incidentResolveCmd = &cobra.Command{
	Use:   "resolve <incident-id>",
	Short: "Resolve an incident",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		body := map[string]interface{}{
			"resolutionNotes":   resolveNotes,
			"containmentActive": resolveContain,
		}
		var resp incidentResponse
		if err := apiClient().Post("/v1/incidents/"+url.PathEscape(args[0])+"/resolve", body, &resp); err != nil {
			fail(err)
			return
		}
		fmt.Fprintf(stdout, "Incident %s status: %s\n", resp.Incident.ID, resp.Incident.Status)
	},
}

func init() {
	incidentListCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status (new, acknowledged, resolved)")
	incidentListCmd.Flags().StringVar(&listSeverity, "severity", "", "Filter by severity (low, medium, high)")
	incidentListCmd.Flags().IntVar(&listLimit, "limit", 0, "Maximum incidents to return (server default 50, max 200)")
	incidentAckCmd.Flags().StringVar(&ackContainment, "containment", "", "Override containment (true or false)")
	incidentContainCmd.Flags().BoolVar(&containRelease, "release", false, "Release containment instead of enabling it")
	incidentResolveCmd.Flags().StringVar(&resolveNotes, "notes", "", "Resolution notes")
	incidentResolveCmd.Flags().BoolVar(&resolveContain, "keep-containment", false, "Keep containment active after resolving")

	incidentCmd.AddCommand(incidentListCmd, incidentStatsCmd, incidentGetCmd, incidentAckCmd, incidentContainCmd, incidentResolveCmd)
	rootCmd.AddCommand(incidentCmd)
}
