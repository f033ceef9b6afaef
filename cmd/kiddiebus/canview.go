package main

import (
	"github.com/kiddiebus/kiddiebus-client/guard"
	"github.com/spf13/cobra"
)

func newCanViewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "can-view <path>",
		Short: "Show what the route guard decides for a path with the stored session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := a.session()
			if err := m.Initialize(cmd.Context()); err != nil {
				a.logger.Debug().Err(err).Msg("Stored session discarded")
			}
			d := guard.DefaultViews.Decide(m.Current(), args[0])
			switch d.Kind {
			case guard.Render:
				a.out.Success("%s: render", args[0])
			default:
				a.out.Warning("%s: %s %s", args[0], d.Kind, d.Target)
			}
			return nil
		},
	}
}
