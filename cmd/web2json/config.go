package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"web2json/internal/configstore"
	"web2json/internal/models"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read or change the service API configuration",
	}
	cmd.AddCommand(newConfigGetCmd(a), newConfigSetCmd(a))
	return cmd
}

func (a *app) printAPIConfig(cfg models.APIConfig) {
	fmt.Fprintf(a.out, "api_key:          %s\n", configstore.Masked(cfg.APIKey))
	fmt.Fprintf(a.out, "api_base:         %s\n", cfg.APIBase)
	fmt.Fprintf(a.out, "iteration_rounds: %d\n", cfg.IterationRounds)
}

func newConfigGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show the current API configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config.Get(cmd.Context())
			if err != nil {
				return err
			}
			a.printAPIConfig(cfg)
			return nil
		},
	}
}

func newConfigSetCmd(a *app) *cobra.Command {
	var (
		apiKey  string
		apiBase string
		rounds  int
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Overwrite the given API configuration keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var upd models.APIConfigUpdate

			flags := cmd.Flags()
			if flags.Changed("api-key") {
				upd.APIKey = &apiKey
			}
			if flags.Changed("api-base") {
				upd.APIBase = &apiBase
			}
			if flags.Changed("rounds") {
				upd.IterationRounds = &rounds
			}

			if upd.APIKey == nil && upd.APIBase == nil && upd.IterationRounds == nil {
				fmt.Fprintln(a.out, a.t("configModal.noChanges", nil))
				return nil
			}

			res, err := a.config.Update(cmd.Context(), upd)
			if err != nil {
				fmt.Fprintln(a.out, color.RedString(a.t("configModal.saveFailed", nil)))
				return err
			}

			fmt.Fprintln(a.out, color.GreenString(a.t("configModal.saveSuccess", nil)))
			a.printAPIConfig(res.Config)
			return nil
		},
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key of the model provider")
	cmd.Flags().StringVar(&apiBase, "api-base", "", "base URL of the model provider")
	cmd.Flags().IntVar(&rounds, "rounds", 0, "number of samples used for learning")

	return cmd
}
