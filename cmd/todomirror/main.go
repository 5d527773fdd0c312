// Command todomirror serves a remote store that todosync can sync against
// without a cloud project. Data is kept in a SQLite file through gorm.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BodaDayo/TODO-Mobile/internal/config"
	"github.com/BodaDayo/TODO-Mobile/internal/logging"
	"github.com/BodaDayo/TODO-Mobile/internal/mirror"
	"github.com/BodaDayo/TODO-Mobile/internal/mirror/gormstore"
)

var (
	flagPort   int
	flagDB     string
	flagMemory bool
)

var rootCmd = &cobra.Command{
	Use:           "todomirror",
	Short:         "Serve a todosync remote over HTTP",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Mirror.Port = flagPort
		}
		if flagDB != "" {
			cfg.Mirror.DBPath = flagDB
		}

		logs, err := logging.New(cfg.Log)
		if err != nil {
			return err
		}
		defer logs.Close()
		logger := logs.Logger("mirror")

		var store mirror.Store
		if flagMemory {
			store = mirror.NewMemoryStore()
			logger.Println("Using in-memory store; data is lost on exit")
		} else {
			path := cfg.Mirror.DBPath
			if !filepath.IsAbs(path) {
				path = filepath.Join(cfg.DataDir, path)
			}
			gs, err := gormstore.Open(path)
			if err != nil {
				return err
			}
			logger.Printf("Using %s", path)
			store = gs
		}
		defer store.Close()

		srv := mirror.NewServer(store, &mirror.Config{Port: cfg.Mirror.Port, Logger: logger})
		if err := srv.Start(); err != nil {
			return err
		}
		fmt.Printf("Serving on %s\n", srv.URL())

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		return srv.Stop()
	},
}

func init() {
	rootCmd.Flags().IntVarP(&flagPort, "port", "p", 0, "port to listen on (overrides mirror.port)")
	rootCmd.Flags().StringVar(&flagDB, "db", "", "SQLite file for mirror data (overrides mirror.db_path)")
	rootCmd.Flags().BoolVar(&flagMemory, "memory", false, "keep data in memory only")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
