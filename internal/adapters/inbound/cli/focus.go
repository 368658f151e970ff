package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noxaudit/noxaudit/internal/adapters/outbound/tui"
	"github.com/noxaudit/noxaudit/internal/domain/focus"
)

func newFocusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "focus",
		Short: "List focus areas",
		Long:  "List the focus areas a schedule or --focus can name. Combine them with + or , (e.g. security+testing).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderFocusAreas(focus.All()))
			fmt.Fprintln(cmd.OutOrStdout(), "\n  presets: all, does_it_work (security+testing)")
			return nil
		},
	}
}
