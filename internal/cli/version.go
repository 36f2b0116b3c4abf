package cli

import (
	"fmt"

	"github.com/eleven-am/katas/pkg/katas"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display katas version and build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), katas.FullVersionInfo())
		},
	}
}
