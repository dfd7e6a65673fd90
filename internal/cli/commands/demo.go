package commands

import (
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/redisstore/internal/cli/ui"
	"github.com/conduit-lang/redisstore/internal/demo/twitter"
)

func newDemoCommand(a *app) *cobra.Command {
	var embedded bool

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the Twitter demo",
		Long: `Sign up two users, post a tweet, then favorite, retweet and reply to it.

Against a shared server the demo is additive: handles alias the users of
earlier runs and tweets keep counting up.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, cleanup, err := a.open(ctx, embedded)
			if err != nil {
				return err
			}
			defer cleanup()

			svc, err := twitter.NewService(s, a.logger)
			if err != nil {
				return err
			}
			sum, err := svc.Run(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			color.New(color.FgGreen, color.Bold).Fprintln(out, "Demo complete")

			table := ui.NewKeyValueTable(out, color.NoColor)
			table.AddRow("Users", strings.Join(sum.Users, ", "))
			table.AddRow("Tweets", strconv.FormatInt(sum.Tweets, 10))
			table.AddRow("Reply", "/Tweet/"+strconv.FormatInt(sum.Reply, 10))
			table.Render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&embedded, "embedded", false, "run against an in-process server")
	return cmd
}
