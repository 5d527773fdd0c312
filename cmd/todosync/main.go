// Command todosync is a command-line client for the local-first task store.
//
// Every command works against the local database first; changes are uploaded
// in the background and the command waits briefly for them before exiting.
// Run "todosync daemon" to keep uploading continuously.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/BodaDayo/TODO-Mobile/internal/config"
)

var (
	flagDataDir string
	flagBackend string
	flagQuiet   bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "todosync",
	Short: "Local-first tasks with background sync",
	Long: `todosync keeps tasks, categories and your profile in a local SQLite
database and mirrors them to a remote store whenever the network allows.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if flagDataDir != "" {
			loaded.DataDir = flagDataDir
		}
		if flagBackend != "" {
			loaded.Remote.Backend = flagBackend
		}
		if flagQuiet {
			loaded.Log.Quiet = true
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "directory for the local database (overrides data_dir)")
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "remote backend: mirror, firestore or memory")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress component logs")

	rootCmd.AddGroup(
		&cobra.Group{ID: "tasks", Title: "Tasks:"},
		&cobra.Group{ID: "account", Title: "Account:"},
		&cobra.Group{ID: "sync", Title: "Sync:"},
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", renderFail("Error:"), err)
		os.Exit(1)
	}
}
