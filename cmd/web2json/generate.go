package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"web2json/internal/errs"
	"web2json/internal/i18n"
	"web2json/internal/models"
	"web2json/internal/tasks"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		files   []string
		urls    []string
		fields  fieldSlice
		mode    string
		output  string
		domain  string
		rounds  int
		timeout time.Duration
		outDir  string
		kinds   []string
		detach  bool
	)

	cmd := &cobra.Command{
		Use:     "generate",
		Short:   "Create a parser generation task and follow it until it ends",
		Example: "  web2json generate --html a.html --html b.html --field title --field price:float --out ./out",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			samples, err := readSamples(files)
			if err != nil {
				return err
			}

			schemaMode := models.SchemaMode(mode)
			if schemaMode == "" {
				schemaMode = models.SchemaAuto
				if len(fields) > 0 {
					schemaMode = models.SchemaPredefined
				}
			}

			p := tasks.Params{
				Samples:         samples,
				URLs:            urls,
				SchemaMode:      schemaMode,
				Fields:          fields,
				OutputMode:      models.OutputMode(output),
				Domain:          domain,
				IterationRounds: rounds,
			}

			ctx := cmd.Context()

			h, err := a.tasks.Create(ctx, p)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, color.GreenString(a.t("cli.taskCreated", i18n.Params{"id": h.ID()})))
			fmt.Fprintln(a.out, a.t("step3.processing", i18n.Params{"count": len(samples) + len(urls)}))

			if detach {
				return nil
			}

			final, err := a.follow(ctx, h, timeout)
			if err != nil {
				return err
			}
			if final.State != tasks.StateCompleted {
				return nil
			}
			return a.saveArtifacts(ctx, h, outDir, kinds)
		},
	}

	cmd.Flags().StringArrayVar(&files, "html", nil, "HTML sample file, repeatable")
	cmd.Flags().StringArrayVar(&urls, "url", nil, "URL of an HTML sample, repeatable")
	cmd.Flags().Var(&fields, "field", "field to extract as name[:type[:description]], repeatable")
	cmd.Flags().StringVar(&mode, "mode", "", "schema mode: auto or predefined (default: predefined when fields are given)")
	cmd.Flags().StringVar(&output, "output", string(models.OutputStructuredData), "output mode: structured_data or xpath_only")
	cmd.Flags().StringVar(&domain, "domain", "", "domain hint passed to the service")
	cmd.Flags().IntVar(&rounds, "rounds", 0, "number of samples to learn the schema from")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "cancel the task when it runs longer than this")
	cmd.Flags().StringVar(&outDir, "out", ".", "directory for downloaded artifacts")
	cmd.Flags().StringSliceVar(&kinds, "type", nil, "artifact kinds to download (default: all)")
	cmd.Flags().BoolVar(&detach, "detach", false, "print the task id and exit without following the task")

	return cmd
}

func readSamples(files []string) ([]string, error) {
	samples := make([]string, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, &errs.ValidationError{Field: "html", Err: err}
		}
		samples = append(samples, string(data))
	}
	return samples, nil
}

// follow polls h until it ends. When timeout passes first the task is
// cancelled on the service.
func (a *app) follow(ctx context.Context, h *tasks.Handle, timeout time.Duration) (tasks.Task, error) {
	watchCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		watchCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	lastPhase := models.Phase("")

	final, err := a.tasks.Watch(watchCtx, h, 0, func(task tasks.Task, err error) {
		if err != nil {
			if errs.KindOf(err) != errs.KindNotFound {
				fmt.Fprintln(a.out, color.YellowString("%v", err))
			}
			return
		}
		if task.State == tasks.StateRunning && task.Phase != lastPhase {
			lastPhase = task.Phase
			fmt.Fprintf(a.out, "%s %s\n",
				color.CyanString("[%s]", since(start)),
				a.t("cli.progress", i18n.Params{
					"phase":    a.phase(task.Phase),
					"progress": int(task.Progress),
				}),
			)
		}
	})

	switch {
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		fmt.Fprintln(a.out, color.YellowString(a.t("cli.timedOut", i18n.Params{"id": h.ID()})))
		if _, err := a.tasks.Cancel(ctx, h); err != nil {
			return h.Snapshot(), err
		}
		final = h.Snapshot()
	case err != nil:
		return final, err
	}

	a.printState(final)

	if final.State == tasks.StateFailed {
		return final, final.Err
	}
	return final, nil
}

func (a *app) printState(task tasks.Task) {
	label := a.t("cli.states."+string(task.State), nil)

	switch task.State {
	case tasks.StateCompleted:
		label = color.GreenString(label)
	case tasks.StateFailed:
		label = color.RedString(label)
	case tasks.StateCancelled:
		label = color.YellowString(label)
	}

	fmt.Fprintf(a.out, "%s %s  %s: %s  %.0f%%\n", task.ID, label,
		a.t("parserTab.currentPhase", nil), a.phase(task.Phase), task.Progress)
	if task.Message != "" {
		fmt.Fprintln(a.out, task.Message)
	}
}

// saveArtifacts writes the requested artifacts of a completed task to dir.
func (a *app) saveArtifacts(ctx context.Context, h *tasks.Handle, dir string, kinds []string) error {
	available := a.tasks.ListArtifacts(h)
	if len(available) == 0 {
		fmt.Fprintln(a.out, a.t("cli.noArtifacts", nil))
		return nil
	}

	wanted := available
	if len(kinds) > 0 {
		wanted = make([]models.ArtifactKind, 0, len(kinds))
		for _, k := range kinds {
			wanted = append(wanted, models.ArtifactKind(k))
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create output dir")
	}

	for _, kind := range wanted {
		art, err := a.tasks.FetchArtifact(ctx, h, kind)
		if err != nil {
			return err
		}

		path := filepath.Join(dir, art.FileName(h.ID()))
		if err := os.WriteFile(path, art.Data, 0o644); err != nil {
			return errors.Wrapf(err, "write %s", path)
		}
		fmt.Fprintln(a.out, a.t("cli.saved", i18n.Params{"file": path}))
	}
	return nil
}
