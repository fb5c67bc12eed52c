package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/gazette/internal/health"
	"github.com/ppiankov/gazette/internal/model"
	"github.com/ppiankov/gazette/internal/sources"
)

var (
	sourcesStates []string
	sourcesCheck  bool
)

// sourcesCmd lists the configured sources
var sourcesCmd = &cobra.Command{
	Use:   "sources [id...]",
	Short: "List the configured publication sources",
	Long: `List the sources a run would query: national sources first, then the
state tribunals in configuration order. Source ids restrict the listing to
those sources.

Example:
  gazette sources
  gazette sources --state SP --state RJ
  gazette sources --check
  gazette sources tjsp djen --check`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}

		reg, err := sources.LoadRegistry(cfg.Monitor.SourcesFile)
		if err != nil {
			return err
		}

		descs, err := pickSources(reg, args, sourcesStates)
		if err != nil {
			return err
		}
		if !sourcesCheck {
			return printSources(cmd.OutOrStdout(), descs)
		}

		client, err := sources.NewClient(cfg.HTTP)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.HTTP.Timeout*health.MaxAttempts)
		defer cancel()

		fmt.Fprintf(os.Stderr, "⚙️  Probing %d sources...\n\n", len(descs))
		statuses := health.NewChecker(client, cfg.Concurrency.Workers).Check(ctx, descs)
		return printHealth(cmd.OutOrStdout(), statuses)
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
	sourcesCmd.Flags().StringSliceVarP(&sourcesStates, "state", "s", nil, "only state tribunals in these jurisdictions")
	sourcesCmd.Flags().BoolVar(&sourcesCheck, "check", false, "probe each source and report whether it answers")
}

// pickSources resolves ids in the order given, or the run selection for states when no id is given
func pickSources(reg *sources.Registry, ids, states []string) ([]model.SourceDescriptor, error) {
	if len(ids) == 0 {
		return reg.Select(states), nil
	}

	descs := make([]model.SourceDescriptor, 0, len(ids))
	for _, id := range ids {
		d, ok := reg.Lookup(id)
		if !ok {
			return nil, fmt.Errorf("unknown source %q", id)
		}
		descs = append(descs, d)
	}
	return descs, nil
}

func printSources(w io.Writer, descs []model.SourceDescriptor) error {
	rows := make([][]string, 0, len(descs))
	for _, d := range descs {
		auth := ""
		if d.RequiresAuth {
			auth = "oauth"
		}
		rows = append(rows, []string{d.ID, d.Jurisdiction, string(d.Scope), d.Schema, auth, clip(d.Name, 56)})
	}

	if err := writeTable(w, []string{"ID", "UF", "SCOPE", "SCHEMA", "AUTH", "NAME"}, rows); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d sources\n", len(descs))
	return err
}

func printHealth(w io.Writer, statuses []health.Status) error {
	rows := make([][]string, 0, len(statuses))
	up := 0
	for _, st := range statuses {
		state := "✗ down"
		if st.Reachable {
			state = "✓ up"
			up++
		}
		code := ""
		if st.StatusCode > 0 {
			code = strconv.Itoa(st.StatusCode)
		}
		rows = append(rows, []string{st.ID, state, code, st.Latency.Round(time.Millisecond).String(), clip(st.Error, 60)})
	}

	if err := writeTable(w, []string{"ID", "STATE", "HTTP", "LATENCY", "ERROR"}, rows); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d of %d sources answering\n", up, len(statuses))
	return err
}
