package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/academic-crs/internal/reasoning"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Show or change the model override",
}

var modelGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the stored model override",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("model"); err != nil {
			return err
		}
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		name, ok, err := st.GetModelOverride(cmd.Context())
		if err != nil {
			return err
		}
		if !ok {
			name = reasoning.DefaultModelLabel
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), name)
		return err
	},
}

var modelSetCmd = &cobra.Command{
	Use:   "set NAME",
	Short: "Store a model override used by every operation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return storeOverride(cmd, args[0])
	},
}

var modelClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the model override",
	RunE: func(cmd *cobra.Command, args []string) error {
		return storeOverride(cmd, "")
	},
}

func storeOverride(cmd *cobra.Command, name string) error {
	if err := cfg.Validate("model"); err != nil {
		return err
	}
	st, err := initStore(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	if err := st.SetModelOverride(cmd.Context(), name); err != nil {
		return err
	}
	if name == "" {
		name = reasoning.DefaultModelLabel
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "model override: %s\n", name)
	return err
}

func init() {
	modelCmd.AddCommand(modelGetCmd, modelSetCmd, modelClearCmd)
	rootCmd.AddCommand(modelCmd)
}
