package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"web2json/internal/errs"
	"web2json/internal/i18n"
	"web2json/internal/tasks"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// attach returns a handle for id brought up to date by one poll.
func (a *app) attach(cmd *cobra.Command, id string) (*tasks.Handle, tasks.Task, error) {
	h, err := a.tasks.Attach(id)
	if err != nil {
		return nil, tasks.Task{}, err
	}

	task, err := a.tasks.Poll(cmd.Context(), h)
	if err != nil {
		return h, task, err
	}
	return h, task, nil
}

func newStatusCmd(a *app) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "status <task-id>",
		Short: "Show the state of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, task, err := a.attach(cmd, args[0])
			if err != nil {
				return err
			}

			if watch && !task.State.Terminal() {
				_, err := a.follow(cmd.Context(), h, 0)
				return err
			}

			a.printState(task)
			if len(task.Details) > 0 {
				keys := make([]string, 0, len(task.Details))
				for k := range task.Details {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(a.out, "  %s: %v\n", k, task.Details[k])
				}
			}
			if task.State == tasks.StateCompleted {
				kinds := make([]string, 0, len(task.Artifacts))
				for _, k := range task.Artifacts {
					kinds = append(kinds, string(k))
				}
				fmt.Fprintf(a.out, "artifacts: %s\n", strings.Join(kinds, ", "))
			}
			if task.Err != nil {
				fmt.Fprintln(a.out, color.RedString("%v", task.Err))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "follow the task until it ends")

	return cmd
}

func newCancelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <task-id>",
		Short: "Cancel a running task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.tasks.Attach(args[0])
			if err != nil {
				return err
			}

			ack, err := a.tasks.Cancel(cmd.Context(), h)
			if err != nil {
				return err
			}
			if ack.Message != "" {
				fmt.Fprintln(a.out, ack.Message)
			}
			a.printState(h.Snapshot())
			return nil
		},
	}
}

func newDownloadCmd(a *app) *cobra.Command {
	var (
		kinds  []string
		outDir string
	)

	cmd := &cobra.Command{
		Use:   "download <task-id>",
		Short: "Download the artifacts of a completed task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, task, err := a.attach(cmd, args[0])
			if err != nil {
				return err
			}
			if task.State != tasks.StateCompleted {
				return &errs.StateError{TaskID: task.ID, Op: "download", State: string(task.State), Err: errs.ErrNotCompleted}
			}
			return a.saveArtifacts(cmd.Context(), h, outDir, kinds)
		},
	}

	cmd.Flags().StringSliceVar(&kinds, "type", nil, "artifact kinds: jsonl, csv, zip, parser (default: all)")
	cmd.Flags().StringVar(&outDir, "out", ".", "directory for downloaded artifacts")

	return cmd
}

func newResultsCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "results <task-id>",
		Short: "Print the parsed records of a completed task as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, _, err := a.attach(cmd, args[0])
			if err != nil {
				return err
			}

			res, err := a.tasks.FetchResults(cmd.Context(), h)
			if err != nil {
				return err
			}

			records := res.Results
			if limit > 0 && len(records) > limit {
				records = records[:limit]
			}
			if err := printJSON(a, records); err != nil {
				return err
			}
			if len(records) < len(res.Results) {
				fmt.Fprintln(a.out, a.t("parserTab.moreRows", i18n.Params{"count": len(res.Results) - len(records)}))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "print at most this many records, 0 for all")

	return cmd
}

func newSchemaCmd(a *app) *cobra.Command {
	var (
		files []string
		urls  []string
	)

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Ask the service for a draft schema of the samples",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			samples, err := readSamples(files)
			if err != nil {
				return err
			}

			res, err := a.tasks.PreliminarySchema(cmd.Context(), tasks.Params{Samples: samples, URLs: urls})
			if err != nil {
				return err
			}

			for _, f := range res.Fields {
				fmt.Fprintf(a.out, "%s %s", color.CyanString(f.Name), a.t("step2.types."+string(f.FieldType), nil))
				if f.Description != "" {
					fmt.Fprintf(a.out, "  %s", f.Description)
				}
				fmt.Fprintln(a.out)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&files, "html", nil, "HTML sample file, repeatable")
	cmd.Flags().StringArrayVar(&urls, "url", nil, "URL of an HTML sample, repeatable")

	return cmd
}

func printJSON(a *app, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, string(data))
	return err
}
