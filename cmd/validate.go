package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/academic-crs/internal/model"
	"github.com/sells-group/academic-crs/internal/validate"
)

var (
	validateProfile string
	validateLevel   string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "List the questions a profile still needs answered",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("validate"); err != nil {
			return err
		}
		profile, err := readProfile(validateProfile, cmd.InOrStdin())
		if err != nil {
			return err
		}
		level := validateLevel
		if level == "" {
			level = profile.String(model.FieldAcademicLevel)
		}

		missing := validate.Missing(profile, level)
		if len(missing) == 0 {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "profile complete")
			return err
		}
		for _, r := range missing {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", r.Field, r.Question); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVarP(&validateProfile, "profile", "p", "-", "profile JSON file (- for stdin)")
	validateCmd.Flags().StringVar(&validateLevel, "level", "", "academic level (default from profile)")
	rootCmd.AddCommand(validateCmd)
}
