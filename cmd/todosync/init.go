package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/BodaDayo/TODO-Mobile/internal/config"
	"github.com/BodaDayo/TODO-Mobile/internal/db"
)

var (
	initProject bool
	initForce   bool
)

var initCmd = &cobra.Command{
	Use:     "init",
	GroupID: "sync",
	Short:   "Write a default config file and create the local database",
	Long: `Write a config file with every setting at its default and create the
local database under data_dir.

By default the config is written to ~/.todosync/config.yaml. With --project
it is written to .todosync/config.yaml in the current directory, which
overrides the global file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := initConfigPath()
		if err != nil {
			return err
		}

		if _, err := os.Stat(path); err == nil && !initForce {
			fmt.Printf("%s Config already exists at %s (use --force to overwrite)\n", renderWarn("!"), path)
		} else {
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			fmt.Printf("%s Wrote %s\n", renderPass("✓"), path)
		}

		store, err := db.Open(cfg.DBPath())
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.InitSchemaContext(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("%s Database ready at %s\n", renderPass("✓"), cfg.DBPath())
		return nil
	},
}

func initConfigPath() (string, error) {
	if initProject {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		return config.ProjectConfigPath(cwd), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return config.GlobalConfigPath(home), nil
}

func init() {
	initCmd.Flags().BoolVar(&initProject, "project", false, "write the config to the current directory")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config")
	rootCmd.AddCommand(initCmd)
}
