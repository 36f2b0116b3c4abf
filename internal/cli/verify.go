package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/sqlite"
	"github.com/eleven-am/katas/internal/store"
	"github.com/spf13/cobra"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify the database schema",
		Long: `Inspects the database and checks that every table and column the site
uses is present, including the full-text search index.

Returns a non-zero exit code if anything is missing.`,
		RunE: runVerify,
	}
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Verifying database schema...")

	problems, err := schemaProblems(ctx, st)
	if err != nil {
		return err
	}
	if len(problems) > 0 {
		for _, p := range problems {
			fmt.Fprintf(out, "  %s\n", p)
		}
		return fmt.Errorf("schema verification failed: %d problem(s), run 'katas migrate'", len(problems))
	}

	fmt.Fprintln(out, "Schema verification passed")
	return nil
}

// schemaProblems compares the live schema against store.Tables.
func schemaProblems(ctx context.Context, st *store.Store) ([]string, error) {
	drv, err := sqlite.Open(st.DB().DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open schema inspector: %w", err)
	}

	names := make([]string, 0, len(store.Tables))
	for name := range store.Tables {
		names = append(names, name)
	}
	sort.Strings(names)

	live, err := drv.InspectSchema(ctx, "main", &schema.InspectOptions{Tables: names})
	if err != nil {
		return nil, fmt.Errorf("failed to inspect database: %w", err)
	}

	var problems []string
	for _, name := range names {
		t, ok := live.Table(name)
		if !ok {
			problems = append(problems, fmt.Sprintf("missing table %s", name))
			continue
		}
		for _, col := range store.Tables[name] {
			if _, ok := t.Column(col); !ok {
				problems = append(problems, fmt.Sprintf("missing column %s.%s", name, col))
			}
		}
	}
	return problems, nil
}
