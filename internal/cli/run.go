package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/gazette/internal/model"
)

var (
	runNames     []string
	runNamesFile string
	runStates    []string
	runOwner     string
	runTimeout   time.Duration
	runJSON      bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Search every source for attorney names and store the results",
	Long: `Run queries the national sources and the state court gazettes for
publications mentioning the given attorney names, deduplicates them and
stores them for the owner in a single batch.

Sources that fail or time out contribute no records; the run only fails
when the results cannot be stored.

Example:
  gazette run --name "Jane Doe" --owner acct-42
  gazette run --name "Jane Doe" --name "John Roe" --state SP --state RJ --owner acct-42
  gazette run --names-file attorneys.txt --owner acct-42 --timeout 2m --json`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringArrayVarP(&runNames, "name", "n", nil, "attorney name to search for (repeatable)")
	runCmd.Flags().StringVar(&runNamesFile, "names-file", "", "file with one attorney name per line")
	runCmd.Flags().StringSliceVarP(&runStates, "state", "s", nil, "restrict state tribunals to these jurisdictions (repeatable, e.g. SP,RJ)")
	runCmd.Flags().StringVar(&runOwner, "owner", "", "owner id the publications are stored for")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "overall run deadline (default: monitor.run_timeout)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the run summary as JSON")

	_ = runCmd.MarkFlagRequired("owner")
}

func runRun(cmd *cobra.Command, args []string) error {
	names := append([]string(nil), runNames...)
	if runNamesFile != "" {
		fromFile, err := readNamesFile(runNamesFile)
		if err != nil {
			return err
		}
		names = append(names, fromFile...)
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}

	a, err := newApp(parent, viper.GetViper())
	if err != nil {
		return err
	}
	defer a.close()

	deadline := runTimeout
	if deadline <= 0 {
		deadline = a.cfg.Monitor.RunTimeout
	}

	ctx, cancel := context.WithTimeout(parent, deadline)
	defer cancel()

	if !runJSON {
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
		fmt.Fprintf(os.Stderr, "  Gazette Monitoring Run\n")
		fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "  Names:        %d\n", len(names))
		fmt.Fprintf(os.Stderr, "  States:       %s\n", statesLabel(runStates))
		fmt.Fprintf(os.Stderr, "  Owner:        %s\n", runOwner)
		fmt.Fprintf(os.Stderr, "  Workers:      %d\n", a.cfg.Concurrency.Workers)
		fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", deadline)
		fmt.Fprintf(os.Stderr, "\n")
	}

	summary, err := a.monitor.Run(ctx, names, runStates, runOwner)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	if runJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	return printSummary(cmd.OutOrStdout(), summary)
}

func printSummary(w io.Writer, s *model.RunSummary) error {
	rows := make([][]string, 0, len(s.Reports))
	for _, r := range s.Reports {
		status := "ok"
		if r.Error != "" {
			status = r.Error
		}
		rows = append(rows, []string{
			r.ID,
			clip(r.Name, 48),
			strconv.Itoa(r.Records),
			r.Duration.Round(time.Millisecond).String(),
			status,
		})
	}

	if err := writeTable(w, []string{"SOURCE", "NAME", "RECORDS", "TIME", "STATUS"}, rows); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\n✓ Run %s stored %d publications from %d sources in %v\n",
		s.RunID, s.Count, len(s.Sources), s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
	return err
}

func statesLabel(states []string) string {
	if len(states) == 0 {
		return "all"
	}
	return strings.ToUpper(strings.Join(states, ","))
}

// readNamesFile reads attorney names (one per line), skipping blank lines,
// comments and repeats
func readNamesFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open names file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var names []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !seen[line] {
			seen[line] = true
			names = append(names, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read names file: %w", err)
	}

	return names, nil
}
