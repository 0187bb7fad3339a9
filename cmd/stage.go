package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/academic-crs/internal/pipeline"
)

var (
	stageIndex    int
	stageName     string
	stageProfile  string
	stageFeedback string
	stageApply    bool
)

var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "Run one pipeline stage against a profile",
	Long:  "Runs a single stage by --index or --name. Prints the raw stage output, or with --apply the profile with the output merged in.",
	RunE: func(cmd *cobra.Command, args []string) error {
		index := stageIndex
		if stageName != "" {
			s, ok := pipeline.ByName(stageName)
			if !ok {
				return eris.Errorf("unknown stage %q", stageName)
			}
			index = s.Index
		}
		profile, err := readProfile(stageProfile, cmd.InOrStdin())
		if err != nil {
			return err
		}

		env, err := initEnv(cmd.Context(), "stage")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Controller.RunStage(cmd.Context(), pipeline.StageRequest{
			Index:       index,
			Profile:     profile,
			Feedback:    stageFeedback,
			Credentials: env.Defaults,
		})
		if err != nil {
			return err
		}
		if stageApply {
			return writeJSON(cmd.OutOrStdout(), pipeline.Apply(profile, res))
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Output)
		return err
	},
}

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "List the pipeline stages",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "INDEX\tNAME\tROLE\tREADS\tOUTPUT\tSEARCH") //nolint:errcheck
		for _, s := range pipeline.Stages() {
			reads := s.Reads
			if reads == "" {
				reads = "-"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%t\n", s.Index, s.Name, s.Role, reads, s.Output, s.UseSearch) //nolint:errcheck
		}
		return w.Flush()
	},
}

func init() {
	stageCmd.Flags().IntVarP(&stageIndex, "index", "i", 0, "stage index (0-4)")
	stageCmd.Flags().StringVarP(&stageName, "name", "n", "", "stage name (overrides --index)")
	stageCmd.Flags().StringVarP(&stageProfile, "profile", "p", "", "profile JSON file (- for stdin)")
	stageCmd.Flags().StringVar(&stageFeedback, "feedback", "", "user feedback for the stage")
	stageCmd.Flags().BoolVar(&stageApply, "apply", false, "print the profile with the stage output merged in")
	rootCmd.AddCommand(stageCmd)
	rootCmd.AddCommand(stagesCmd)
}
