package commands

import (
	"sort"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/redisstore/internal/cli/ui"
	"github.com/conduit-lang/redisstore/internal/orm/identity"
)

func newCountersCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "counters",
		Short: "Print the identity counter of every type",
		Long:  "Print the " + identity.CounterKey + " hash: the highest identity issued per entity type.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, cleanup, err := a.open(ctx, false)
			if err != nil {
				return err
			}
			defer cleanup()

			counters, err := s.Registry().Counters().All(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(counters) == 0 {
				color.New(color.FgYellow).Fprintln(out, "No entities have been created")
				return nil
			}

			names := make([]string, 0, len(counters))
			for name := range counters {
				names = append(names, name)
			}
			sort.Strings(names)

			table := ui.NewTable(out, color.NoColor, "TYPE", "COUNTER")
			for _, name := range names {
				table.AddRow(name, strconv.FormatInt(counters[name], 10))
			}
			table.Render()
			return nil
		},
	}
}
