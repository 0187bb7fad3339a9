package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/academic-crs/internal/pipeline"
)

var qaContext string

var qaCmd = &cobra.Command{
	Use:   "qa QUESTION...",
	Short: "Ask the application consultant a question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readProfile(qaContext, cmd.InOrStdin())
		if err != nil {
			return err
		}

		env, err := initEnv(cmd.Context(), "qa")
		if err != nil {
			return err
		}
		defer env.Close()

		ans, err := env.Controller.Answer(cmd.Context(), pipeline.Question{
			Question:    strings.Join(args, " "),
			Context:     doc,
			Credentials: env.Defaults,
		})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), ans.Text)
		return err
	},
}

func init() {
	qaCmd.Flags().StringVarP(&qaContext, "context", "c", "", "context document JSON file (- for stdin)")
	rootCmd.AddCommand(qaCmd)
}
