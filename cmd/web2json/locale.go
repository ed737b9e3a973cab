package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"web2json/internal/i18n"
)

func newLocaleCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locale",
		Short: "Show or change the display language",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(a.out, a.tr.Locale())
			return nil
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List the supported locales",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				for _, l := range i18n.Locales() {
					mark := " "
					if l == a.tr.Locale() {
						mark = "*"
					}
					fmt.Fprintf(a.out, "%s %s\n", mark, l)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:       "set <locale>",
			Short:     "Switch to the given locale",
			Args:      cobra.ExactArgs(1),
			ValidArgs: i18n.Locales(),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.tr.SetLocale(args[0]); err != nil {
					return err
				}
				fmt.Fprintln(a.out, a.t("cli.localeSet", i18n.Params{"locale": a.tr.Locale()}))
				return nil
			},
		},
		&cobra.Command{
			Use:   "toggle",
			Short: "Switch between zh-CN and en-US",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				locale, err := a.tr.Toggle()
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, a.t("cli.localeSet", i18n.Params{"locale": locale}))
				return nil
			},
		},
	)

	return cmd
}
