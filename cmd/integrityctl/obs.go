package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"

	"github.com/spf13/cobra"
)

var obsCmd = &cobra.Command{
	Use:   "obs",
	Short: "Observability commands (query VictoriaMetrics)",
}

var vmsingleURL string

type VMResponse struct {
	Status string `json:"status"`
	Data   struct {
		Result []struct {
			Metric map[string]string `json:"metric"`
			Value  []interface{}     `json:"value"`
		} `json:"result"`
	} `json:"data"`
}

func queryCmd(use, short string, queries map[string]string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Run: func(cmd *cobra.Command, args []string) {
			names := make([]string, 0, len(queries))
			for name := range queries {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(stdout, "%s: %s\n", name, queryVM(vmsingleURL, queries[name]))
			}
		},
	}
}

var obsSummaryCmd = queryCmd("summary", "Show system summary metrics", map[string]string{
	"Incidents Opened (24h)": `sum(increase(integrity_incidents_total{action="opened"}[24h]))`,
	"HTTP Request Rate":      `sum(rate(integrity_http_requests_total[5m]))`,
	"Anchor Queue":           `integrity_anchor_queue_depth`,
	"Active Requests":        `integrity_active_requests`,
})

var obsAnchorCmd = queryCmd("anchor", "Show anchor queue metrics", map[string]string{
	"Queue Depth":       `integrity_anchor_queue_depth`,
	"Attempt Fail Rate": `sum(rate(integrity_anchor_attempts_total{result="failed"}[5m]))`,
	"Dropped (24h)":     `sum(increase(integrity_anchor_dropped_total[24h]))`,
	"Ledger Call P95":   `histogram_quantile(0.95, sum(rate(integrity_anchor_duration_seconds_bucket[5m])) by (le))`,
})

var obsScanCmd = queryCmd("scan", "Show integrity scan metrics", map[string]string{
	"Scan Runs (24h)":   `sum(increase(integrity_scan_runs_total[24h]))`,
	"Scan Duration P95": `histogram_quantile(0.95, sum(rate(integrity_scan_duration_seconds_bucket[1h])) by (le))`,
	"Incidents (24h)":   `sum(increase(integrity_scan_records_total{outcome="incident"}[24h]))`,
	"Skipped (24h)":     `sum(increase(integrity_scan_records_total{outcome="skipped"}[24h]))`,
})

func queryVM(baseURL, query string) string {
	resp, err := http.Get(baseURL + "/api/v1/query?query=" + url.QueryEscape(query))
	if err != nil {
		return "error: " + err.Error()
	}
	defer resp.Body.Close()

	var vmResp VMResponse
	if err := json.NewDecoder(resp.Body).Decode(&vmResp); err != nil {
		return "parse error"
	}

	if len(vmResp.Data.Result) == 0 {
		return "no data"
	}

	result := vmResp.Data.Result[0]
	if len(result.Value) >= 2 {
		return fmt.Sprintf("%v", result.Value[1])
	}
	return "no value"
}

func init() {
	obsCmd.PersistentFlags().StringVar(&vmsingleURL, "vm-url", "http://localhost:8428", "VictoriaMetrics URL")
	obsCmd.AddCommand(obsSummaryCmd, obsAnchorCmd, obsScanCmd)
	rootCmd.AddCommand(obsCmd)
}
