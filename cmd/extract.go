package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/academic-crs/internal/extract"
)

var (
	extractFile    string
	extractOffline bool
)

var extractCmd = &cobra.Command{
	Use:   "extract [text...]",
	Short: "Extract a student profile from free text",
	Long:  "Runs the heuristic extractor and, unless --offline is set, a structured extraction through the reasoning service. Prints the merged profile with its missing fields.",
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readText(args, extractFile, cmd.InOrStdin())
		if err != nil {
			return err
		}
		if extractOffline {
			return writeJSON(cmd.OutOrStdout(), extract.Offline(text))
		}

		env, err := initEnv(cmd.Context(), "extract")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Extractor.Extract(cmd.Context(), text, env.Defaults)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	extractCmd.Flags().StringVarP(&extractFile, "file", "f", "", "read text from file (- for stdin)")
	extractCmd.Flags().BoolVar(&extractOffline, "offline", false, "heuristic extraction only")
	rootCmd.AddCommand(extractCmd)
}
