package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/hdlplay/internal/config"
	"github.com/felixgeelhaar/hdlplay/internal/errors"
	"github.com/felixgeelhaar/hdlplay/internal/trace"
)

var (
	logsJSON  bool
	logsLimit int
)

var logsCmd = &cobra.Command{
	Use:   "logs [run-id]",
	Short: "Show recorded pipeline traces",
	Long: `View the trace events of earlier pipeline runs.

Traces are recorded when trace.enabled is set; each run gets its own
trace_<run-id>.jsonl file in trace.dir (default ~/.hdlplay/traces).

Examples:
  # Show the most recent run
  hdlplay logs

  # Show a specific run
  hdlplay logs 6f1c2b1e-...

  # List all recorded runs
  hdlplay logs list
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogs,
}

var logsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all recorded runs",
	Args:  cobra.NoArgs,
	RunE:  runLogsList,
}

func init() {
	logsCmd.Flags().BoolVar(&logsJSON, "json", false, "print raw JSON events")
	logsListCmd.Flags().IntVarP(&logsLimit, "limit", "n", 20, "number of runs to list (0 = all)")

	logsCmd.AddCommand(logsListCmd)
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	dir := traceDirectory(cc.Config)

	var path string
	if len(args) == 1 {
		path = filepath.Join(dir, fmt.Sprintf("trace_%s.jsonl", args[0]))
	} else {
		traces, err := getTraceFiles(dir)
		if err != nil {
			return err
		}
		if len(traces) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No traces recorded")
			return nil
		}
		path = traces[0].Path
	}

	events, err := trace.ReadFile(path)
	if os.IsNotExist(err) {
		return errors.NewFileNotFoundError(path).
			WithSuggestion("Run 'hdlplay logs list' to see recorded runs")
	}
	if err != nil {
		return err
	}
	return printEvents(cmd.OutOrStdout(), events, logsJSON)
}

func runLogsList(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	dir := traceDirectory(cc.Config)

	traces, err := getTraceFiles(dir)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if len(traces) == 0 {
		fmt.Fprintln(w, "No traces recorded")
		return nil
	}
	if logsLimit > 0 && len(traces) > logsLimit {
		traces = traces[:logsLimit]
	}

	fmt.Fprintf(w, "Traces in %s:\n\n", dir)
	for _, t := range traces {
		fmt.Fprintf(w, "  %s  %s  (%s)\n",
			t.CreatedAt.Format("2006-01-02 15:04:05"),
			t.ID,
			formatFileSize(t.Size))
	}
	fmt.Fprintf(w, "\nTotal: %d runs\n", len(traces))
	return nil
}

func traceDirectory(cfg *config.Config) string {
	if cfg.Trace.Dir != "" {
		return cfg.Trace.Dir
	}
	return trace.DefaultConfig().Dir
}

// TraceFileInfo holds information about a trace file
type TraceFileInfo struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// getTraceFiles lists trace files in dir, newest first. A missing
// directory holds no traces.
func getTraceFiles(dir string) ([]TraceFileInfo, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read trace directory: %w", err)
	}

	var traces []TraceFileInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "trace_") || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		traces = append(traces, TraceFileInfo{
			ID:        strings.TrimSuffix(strings.TrimPrefix(name, "trace_"), ".jsonl"),
			Path:      filepath.Join(dir, name),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	sort.Slice(traces, func(i, j int) bool {
		return traces[i].CreatedAt.After(traces[j].CreatedAt)
	})
	return traces, nil
}

func printEvents(w io.Writer, events []*trace.Event, raw bool) error {
	for _, e := range events {
		if raw {
			data, err := json.Marshal(e)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, string(data))
			continue
		}

		line := fmt.Sprintf("[%s] %-16s", e.Timestamp.Format("15:04:05.000"), e.Type)
		if e.Command != "" {
			line += " " + e.Command
		}
		if e.Message != "" {
			line += ": " + e.Message
		}
		if e.Duration > 0 {
			line += fmt.Sprintf(" (%s)", e.Duration.Round(time.Millisecond))
		}
		if e.Error != "" {
			line += " error=" + e.Error
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

func formatFileSize(size int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case size >= GB:
		return fmt.Sprintf("%.2f GB", float64(size)/float64(GB))
	case size >= MB:
		return fmt.Sprintf("%.2f MB", float64(size)/float64(MB))
	case size >= KB:
		return fmt.Sprintf("%.2f KB", float64(size)/float64(KB))
	default:
		return fmt.Sprintf("%d B", size)
	}
}
