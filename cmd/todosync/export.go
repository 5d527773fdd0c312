package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:     "export",
	GroupID: "tasks",
	Short:   "Write every task as JSON Lines",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := openRuntime(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer rt.close(ctx)

		var w io.Writer = os.Stdout
		toFile := exportOutput != "" && exportOutput != "-"
		if toFile {
			f, err := os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", exportOutput, err)
			}
			defer f.Close()
			w = f
		}

		n, err := rt.store.ExportTasks(ctx, w)
		if err != nil {
			return err
		}
		if toFile {
			fmt.Printf("%s Exported %d task(s) to %s\n", renderPass("✓"), n, exportOutput)
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:     "import <file>",
	GroupID: "tasks",
	Short:   "Add or replace tasks from a JSON Lines file",
	Long: `Read tasks written by 'todosync export'. Tasks with an id that already
exists locally are replaced. The file is imported in one transaction, so an
invalid line leaves the local tasks unchanged.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer f.Close()

		return withRuntime(ctx, func(rt *runtime) error {
			n, err := rt.store.ImportTasks(ctx, f)
			if err != nil {
				return err
			}
			fmt.Printf("%s Imported %d task(s)\n", renderPass("✓"), n)
			return nil
		})
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
	rootCmd.AddCommand(exportCmd, importCmd)
}
