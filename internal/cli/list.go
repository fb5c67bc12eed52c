package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/gazette/internal/store"
)

var (
	listOwner string
	listDays  int
	listLimit int
)

// listCmd shows stored publications
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show stored publications for an owner",
	Long: `List the publications stored for an owner, newest first.

Example:
  gazette list --owner acct-42
  gazette list --owner acct-42 --days 30 --limit 200`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}

		db, err := store.New(cmd.Context(), cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		var since time.Time
		if listDays > 0 {
			since = time.Now().UTC().AddDate(0, 0, -listDays)
		}

		rows, err := db.ListPublications(cmd.Context(), listOwner, since, listLimit)
		if err != nil {
			return err
		}
		return printPublications(cmd.OutOrStdout(), rows)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listOwner, "owner", "", "owner id")
	listCmd.Flags().IntVar(&listDays, "days", 7, "only publications from the last N days (0 for all)")
	listCmd.Flags().IntVar(&listLimit, "limit", 100, "maximum rows")

	_ = listCmd.MarkFlagRequired("owner")
}

func printPublications(w io.Writer, pubs []store.StoredPublication) error {
	rows := make([][]string, 0, len(pubs))
	for _, p := range pubs {
		rows = append(rows, []string{
			p.PublishedAt.Format("2006-01-02"),
			p.Jurisdiction,
			clip(p.Source, 24),
			p.CaseNumber,
			clip(p.AttorneyName, 24),
			clip(p.Title, 60),
		})
	}

	if err := writeTable(w, []string{"DATE", "UF", "SOURCE", "CASE", "ATTORNEY", "TITLE"}, rows); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d publications\n", len(pubs))
	return err
}
