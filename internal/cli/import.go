package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/eleven-am/katas/internal/importer"
	"github.com/eleven-am/katas/internal/store"
	"github.com/spf13/cobra"
)

func newImportCmd() *cobra.Command {
	var author string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Bulk import katas from a JSON file",
		Long: `Imports an array of katas from a JSON file on behalf of an existing user.
Each kata is stored on its own; invalid records are reported and skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], author)
		},
	}

	cmd.Flags().StringVar(&author, "author", "", "secret username of the user the katas belong to")
	_ = cmd.MarkFlagRequired("author")
	return cmd
}

func runImport(cmd *cobra.Command, path, author string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	user, err := st.UserBySecret(ctx, author)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no user with that secret username; log in on the site once to register")
	}
	if err != nil {
		return err
	}

	res, err := importer.New(st).Import(ctx, user.ID, importer.Source{Label: filepath.Base(path), Data: data})
	if errors.Is(err, importer.ErrNoInput) {
		return fmt.Errorf("%s is empty", path)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Successfully uploaded %d katas.\n", res.Uploaded)
	for _, msg := range res.Errors {
		fmt.Fprintf(out, "  %s\n", msg)
	}
	return nil
}
