package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BodaDayo/TODO-Mobile/internal/daemon"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Upload local changes continuously",
	Long: `Run in the foreground and upload every local change as it happens,
including changes made by other todosync processes and avatar files dropped
into the avatars directory. Uploads wait while the remote is unreachable and
resume when it comes back. Stop with Ctrl-C.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rt, err := openRuntime(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer rt.close(ctx)

		if err := rt.monitor.Start(); err != nil {
			return err
		}
		rt.scheduler.Start()

		d, err := daemon.New(rt.store, rt.scheduler, cfg.AvatarsDir(), &daemon.Config{
			DebounceInterval: cfg.Daemon.Debounce,
			RefreshInterval:  daemon.DefaultConfig().RefreshInterval,
			Logger:           rt.logs.Logger("daemon"),
		})
		if err != nil {
			return err
		}

		fmt.Printf("%s Syncing %s (Ctrl-C to stop)\n", renderAccent("▶"), cfg.DBPath())
		if err := d.Run(ctx); err != nil {
			return err
		}
		if n := rt.scheduler.Len(); n > 0 {
			fmt.Printf("%s Stopped with %d upload(s) pending\n", renderWarn("!"), n)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
