package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/hochfrequenz/flowctl/internal/domain"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "show ID",
		Args:  cobra.ExactArgs(1),
		Short: "Show an epic or task, merging runtime state for tasks",
		RunE:  runShow,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "epics",
		Short: "List every epic",
		RunE:  runEpics,
	})

	var tasksEpic, tasksStatus string
	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "List tasks, optionally filtered by epic or status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTasks(tasksEpic, tasksStatus)
		},
	}
	tasksCmd.Flags().StringVar(&tasksEpic, "epic", "", "restrict to one epic")
	tasksCmd.Flags().StringVar(&tasksStatus, "status", "", "restrict to one status")
	rootCmd.AddCommand(tasksCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every epic with its tasks",
		RunE:  runList,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "cat ID",
		Args:  cobra.ExactArgs(1),
		Short: "Print the markdown spec for an epic or task",
		RunE:  runCat,
	})
}

func runShow(cmd *cobra.Command, args []string) error {
	app, err := newAppContext()
	if err != nil {
		return err
	}
	if err := app.requireInit(); err != nil {
		return err
	}
	id := args[0]
	if strings.Contains(id, ".") {
		mt, err := app.Store.LoadMergedTask(id)
		if err != nil {
			return err
		}
		emitResult(mt, func() {
			assignee := "-"
			if mt.Assignee != nil {
				assignee = *mt.Assignee
			}
			updated := mt.UpdatedAt
			if mt.Status != domain.TaskTodo {
				updated = mt.RuntimeUpdatedAt
			}
			fmt.Printf("%s %s [%s] assignee=%s updated=%s\n", mt.ID, mt.Title, mt.Status, assignee, humanize.Time(updated))
		})
		return nil
	}
	epic, err := app.Store.Def.LoadEpic(id)
	if err != nil {
		return err
	}
	emitResult(epic, func() {
		fmt.Printf("%s %s [%s] plan=%s completion=%s updated=%s\n", epic.ID, epic.Title, epic.Status,
			epic.PlanReviewStatus, epic.CompletionReviewStatus, humanize.Time(epic.UpdatedAt))
	})
	return nil
}

func runEpics(cmd *cobra.Command, args []string) error {
	app, err := newAppContext()
	if err != nil {
		return err
	}
	if err := app.requireInit(); err != nil {
		return err
	}
	ids, err := app.Store.Def.ListEpicIDs()
	if err != nil {
		return err
	}
	var epics []domain.Epic
	for _, id := range ids {
		epic, err := app.Store.Def.LoadEpic(id)
		if err != nil {
			return err
		}
		epics = append(epics, epic)
	}
	emitResult(map[string]any{"epics": epics}, func() {
		for _, epic := range epics {
			fmt.Printf("%s %s [%s]\n", epic.ID, epic.Title, epic.Status)
		}
	})
	return nil
}

func runTasks(epicFilter, statusFilter string) error {
	app, err := newAppContext()
	if err != nil {
		return err
	}
	if err := app.requireInit(); err != nil {
		return err
	}
	epicIDs, err := resolveEpicIDs(app, epicFilter)
	if err != nil {
		return err
	}
	var tasks []domain.MergedTask
	for _, eid := range epicIDs {
		taskIDs, err := app.Store.Def.ListTaskIDs(eid)
		if err != nil {
			return err
		}
		for _, tid := range taskIDs {
			mt, err := app.Store.LoadMergedTask(tid)
			if err != nil {
				return err
			}
			if statusFilter != "" && string(mt.Status) != statusFilter {
				continue
			}
			tasks = append(tasks, mt)
		}
	}
	emitResult(map[string]any{"tasks": tasks}, func() {
		for _, t := range tasks {
			fmt.Printf("%s %s [%s]\n", t.ID, t.Title, t.Status)
		}
	})
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	app, err := newAppContext()
	if err != nil {
		return err
	}
	if err := app.requireInit(); err != nil {
		return err
	}
	epicIDs, err := app.Store.Def.ListEpicIDs()
	if err != nil {
		return err
	}
	type epicListing struct {
		Epic  domain.Epic        `json:"epic"`
		Tasks []domain.MergedTask `json:"tasks"`
	}
	var listing []epicListing
	for _, eid := range epicIDs {
		epic, err := app.Store.Def.LoadEpic(eid)
		if err != nil {
			return err
		}
		taskIDs, err := app.Store.Def.ListTaskIDs(eid)
		if err != nil {
			return err
		}
		var tasks []domain.MergedTask
		for _, tid := range taskIDs {
			mt, err := app.Store.LoadMergedTask(tid)
			if err != nil {
				return err
			}
			tasks = append(tasks, mt)
		}
		listing = append(listing, epicListing{Epic: epic, Tasks: tasks})
	}
	emitResult(map[string]any{"epics": listing}, func() {
		for _, e := range listing {
			fmt.Printf("%s %s [%s]\n", e.Epic.ID, e.Epic.Title, e.Epic.Status)
			for _, t := range e.Tasks {
				fmt.Printf("  %s %s [%s]\n", t.ID, t.Title, t.Status)
			}
		}
	})
	return nil
}

func runCat(cmd *cobra.Command, args []string) error {
	app, err := newAppContext()
	if err != nil {
		return err
	}
	if err := app.requireInit(); err != nil {
		return err
	}
	id := args[0]
	var spec string
	if strings.Contains(id, ".") {
		spec, err = app.Store.Def.LoadTaskSpec(id)
	} else {
		spec, err = app.Store.Def.LoadEpicSpec(id)
	}
	if err != nil {
		return err
	}
	emitResult(map[string]string{"id": id, "spec": spec}, func() {
		fmt.Print(spec)
	})
	return nil
}

// resolveEpicIDs returns either every epic id, or just filter if non-empty.
func resolveEpicIDs(app *appContext, filter string) ([]string, error) {
	if filter != "" {
		if _, err := app.Store.Def.LoadEpic(filter); err != nil {
			return nil, err
		}
		return []string{filter}, nil
	}
	return app.Store.Def.ListEpicIDs()
}
