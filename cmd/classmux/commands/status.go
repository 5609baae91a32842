package commands

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/classmux/classmux/cmd/classmux/cmdutil"
	"github.com/classmux/classmux/internal/cli/health"
	"github.com/classmux/classmux/internal/cli/output"
	"github.com/classmux/classmux/internal/cli/timeutil"
	"github.com/classmux/classmux/pkg/config"
)

var statusURL string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show component status",
	Long: `Display the status of a running classmux component.

This command queries the component's ops endpoint and displays liveness,
uptime, and readiness details. Without --url it targets the ops address
from the configuration, which covers the single-host case; pass --url to
check a remote load balancer or server.

Examples:
  # Check the locally configured component
  classmux status

  # Check a remote server's ops endpoint
  classmux status --url http://10.0.0.12:8080

  # Output as JSON
  classmux status -o json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusURL, "url", "", "Ops endpoint URL (default: from config)")
}

// componentStatus is the probed state of one component, shaped for display.
type componentStatus struct {
	Endpoint  string         `json:"endpoint" yaml:"endpoint"`
	Status    string         `json:"status" yaml:"status"`
	Healthy   bool           `json:"healthy" yaml:"healthy"`
	Component string         `json:"component,omitempty" yaml:"component,omitempty"`
	StartedAt string         `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	Uptime    string         `json:"uptime,omitempty" yaml:"uptime,omitempty"`
	Ready     string         `json:"ready,omitempty" yaml:"ready,omitempty"`
	Details   map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
	Error     string         `json:"error,omitempty" yaml:"error,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	endpoint := statusURL
	if endpoint == "" {
		cfg, err := config.MustLoad(GetConfigFile())
		if err != nil {
			return err
		}
		endpoint = "http://" + net.JoinHostPort(cfg.Ops.Host, strconv.Itoa(cfg.Ops.Port))
	}
	endpoint = strings.TrimRight(endpoint, "/")

	client := &http.Client{Timeout: 5 * time.Second}
	status := probeComponent(client, endpoint)

	format, err := cmdutil.OutputFormat()
	if err != nil {
		return err
	}
	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, status)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, status)
	default:
		printStatusTable(status)
		return nil
	}
}

// probeComponent queries the liveness endpoint and, when the component
// reports healthy, the readiness endpoint too.
func probeComponent(client *http.Client, endpoint string) componentStatus {
	status := componentStatus{Endpoint: endpoint, Status: "unreachable"}

	resp, err := client.Get(endpoint + "/health")
	if err != nil {
		status.Error = err.Error()
		return status
	}
	defer func() { _ = resp.Body.Close() }()

	var live health.Response
	if err := json.NewDecoder(resp.Body).Decode(&live); err != nil {
		status.Status = "unknown"
		status.Error = "invalid health response"
		return status
	}

	status.Status = live.Status
	status.Healthy = live.Status == "healthy"
	status.Component = live.Data.Component
	status.StartedAt = live.Data.StartedAt
	status.Uptime = live.Data.Uptime
	if live.Error != "" {
		status.Error = live.Error
	}

	if status.Healthy {
		fillReadiness(client, endpoint, &status)
	}
	return status
}

// fillReadiness augments the status with the readiness probe result.
func fillReadiness(client *http.Client, endpoint string, status *componentStatus) {
	resp, err := client.Get(endpoint + "/health/ready")
	if err != nil {
		status.Ready = "unknown"
		return
	}
	defer func() { _ = resp.Body.Close() }()

	var ready health.ReadyResponse
	if err := json.NewDecoder(resp.Body).Decode(&ready); err != nil {
		status.Ready = "unknown"
		return
	}

	status.Ready = ready.Status
	status.Details = ready.Data
	if ready.Error != "" && status.Error == "" {
		status.Error = ready.Error
	}
}

func printStatusTable(status componentStatus) {
	rows := [][2]string{
		{"Endpoint", status.Endpoint},
		{"Status", coloredStatus(status)},
	}
	if status.Component != "" {
		rows = append(rows, [2]string{"Component", status.Component})
	}
	if status.StartedAt != "" {
		rows = append(rows, [2]string{"Started", timeutil.FormatTime(status.StartedAt)})
	}
	if status.Uptime != "" {
		rows = append(rows, [2]string{"Uptime", timeutil.FormatUptime(status.Uptime)})
	}
	if status.Ready != "" {
		rows = append(rows, [2]string{"Readiness", status.Ready})
	}

	fmt.Println()
	fmt.Println("classmux Component Status")
	fmt.Println("=========================")
	fmt.Println()
	for _, r := range rows {
		fmt.Printf("  %-11s %s\n", r[0]+":", r[1])
	}

	if len(status.Details) > 0 {
		keys := make([]string, 0, len(status.Details))
		for k := range status.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("    %s: %v\n", k, status.Details[k])
		}
	}
	if status.Error != "" {
		fmt.Printf("  %-11s %s\n", "Error:", status.Error)
	}
	fmt.Println()
}

// coloredStatus renders the status value, with an ANSI indicator unless
// colors are off.
func coloredStatus(status componentStatus) string {
	if cmdutil.Flags.NoColor {
		return status.Status
	}
	switch {
	case status.Healthy:
		return "\033[32m● " + status.Status + "\033[0m"
	case status.Status == "unreachable":
		return "\033[31m○ " + status.Status + "\033[0m"
	default:
		return "\033[33m● " + status.Status + "\033[0m"
	}
}
