package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BodaDayo/TODO-Mobile/internal/schema"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show the local store, account and remote reachability",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := openRuntime(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer rt.close(ctx)

		counts, err := rt.store.Counts(ctx)
		if err != nil {
			return err
		}
		active, err := rt.session.ActiveUser(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("%s %s\n", renderLabel("Database:"), cfg.DBPath())
		fmt.Printf("%s %s\n", renderLabel("Backend: "), cfg.Remote.Backend)
		if active == "" {
			fmt.Printf("%s %s\n", renderLabel("Account: "), renderMuted("signed out"))
		} else {
			fmt.Printf("%s %s\n", renderLabel("Account: "), active)
		}
		fmt.Printf("%s %d tasks, %d categories\n", renderLabel("Local:   "),
			counts[schema.KindTasks], counts[schema.KindCategories])

		if rt.monitor.Probe(ctx) {
			fmt.Printf("%s %s\n", renderLabel("Remote:  "), renderPass("reachable"))
		} else {
			fmt.Printf("%s %s\n", renderLabel("Remote:  "), renderFail("unreachable"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
