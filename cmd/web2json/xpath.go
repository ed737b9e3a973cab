package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"web2json/internal/errs"
	"web2json/internal/i18n"
	"web2json/internal/models"
	"web2json/internal/xpath"
)

const shownSamples = 3

func newXPathCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "xpath",
		Short: "Generate or evaluate XPath expressions",
	}
	cmd.AddCommand(newXPathGenerateCmd(a), newXPathEvalCmd(a))
	return cmd
}

func newXPathGenerateCmd(a *app) *cobra.Command {
	var (
		files  []string
		urls   []string
		fields fieldSlice
		rounds int
	)

	cmd := &cobra.Command{
		Use:     "generate",
		Short:   "Generate one XPath per field from the samples",
		Example: "  web2json xpath generate --html page.html --field title --field 'price:float:listed price'",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(fields) == 0 {
				return &errs.ValidationError{Field: "fields", Err: errs.ErrNoFields}
			}

			samples, err := readSamples(files)
			if err != nil {
				return err
			}

			req := models.XPathRequest{
				HTMLContents:    samples,
				URLs:            urls,
				Fields:          fields,
				IterationRounds: rounds,
			}

			fmt.Fprintln(a.out, a.t("step3.processing", i18n.Params{"count": len(samples) + len(urls)}))

			res, err := a.xpath.Generate(cmd.Context(), req)
			if err != nil {
				return err
			}

			fmt.Fprintln(a.out, a.t("step4.title", nil))
			for _, f := range res.Fields {
				expr := f.XPath
				if expr == "" {
					expr = a.t("step4.noXpath", nil)
				}
				fmt.Fprintf(a.out, "%s (%s)\n  %s\n", color.CyanString(f.Name), f.FieldType, expr)

				if len(f.ValueSample) == 0 {
					continue
				}
				shown := f.ValueSample
				if len(shown) > shownSamples {
					shown = shown[:shownSamples]
				}
				fmt.Fprintf(a.out, "  %s %s\n", a.t("step4.sampleValues", nil), strings.Join(shown, " | "))
				if rest := len(f.ValueSample) - len(shown); rest > 0 {
					fmt.Fprintln(a.out, "  "+a.t("step4.moreValues", i18n.Params{"count": rest}))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&files, "html", nil, "HTML sample file, repeatable")
	cmd.Flags().StringArrayVar(&urls, "url", nil, "URL of an HTML sample, repeatable")
	cmd.Flags().Var(&fields, "field", "field to locate as name[:type[:description]], repeatable")
	cmd.Flags().IntVar(&rounds, "rounds", 0, "number of samples to learn from")

	return cmd
}

func newXPathEvalCmd(a *app) *cobra.Command {
	var (
		file string
		expr string
	)

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate an XPath expression against a local HTML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return &errs.ValidationError{Field: "html", Err: err}
			}

			values, err := xpath.Evaluate(string(data), expr)
			if err != nil {
				return err
			}
			for _, v := range values {
				fmt.Fprintln(a.out, v)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "html", "", "HTML file")
	cmd.Flags().StringVar(&expr, "expr", "", "XPath expression")
	_ = cmd.MarkFlagRequired("html")
	_ = cmd.MarkFlagRequired("expr")

	return cmd
}
