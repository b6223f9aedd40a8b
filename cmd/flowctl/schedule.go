package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/hochfrequenz/flowctl/internal/domain"
	"github.com/hochfrequenz/flowctl/internal/flowerr"
	"github.com/hochfrequenz/flowctl/internal/lifecycle"
	"github.com/hochfrequenz/flowctl/internal/scheduler"
	"github.com/spf13/cobra"
)

func init() {
	var readyEpic string
	readyCmd := &cobra.Command{
		Use:   "ready",
		Short: "List ready, in-progress, and blocked tasks for one or all epics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReady(readyEpic)
		},
	}
	readyCmd.Flags().StringVar(&readyEpic, "epic", "", "restrict to one epic")
	rootCmd.AddCommand(readyCmd)

	var epicsFile string
	var requirePlanReview, requireCompletionReview bool
	nextCmd := &cobra.Command{
		Use:   "next",
		Short: "Pick the next unit of work across epics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNext(epicsFile, requirePlanReview, requireCompletionReview)
		},
	}
	nextCmd.Flags().StringVar(&epicsFile, "epics-file", "", "file listing epic ids in priority order, one per line (- for stdin)")
	nextCmd.Flags().BoolVar(&requirePlanReview, "require-plan-review", false, "gate on plan review having shipped")
	nextCmd.Flags().BoolVar(&requireCompletionReview, "require-completion-review", false, "gate on completion review having shipped")
	rootCmd.AddCommand(nextCmd)

	var startForce bool
	var startNote string
	startCmd := &cobra.Command{
		Use:   "start ID",
		Args:  cobra.ExactArgs(1),
		Short: "Claim and start a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}
			mt, err := app.engine().Start(args[0], lifecycle.StartOptions{Force: startForce, Note: startNote})
			if err != nil {
				return err
			}
			emitResult(mt, func() { fmt.Printf("%s started\n", mt.ID) })
			return nil
		},
	}
	startCmd.Flags().BoolVar(&startForce, "force", false, "override claim/blocked/dependency checks")
	startCmd.Flags().StringVar(&startNote, "note", "", "claim note")
	rootCmd.AddCommand(startCmd)

	var doneSummary, doneSummaryFile, doneEvidenceJSON string
	var doneForce bool
	doneCmd := &cobra.Command{
		Use:   "done ID",
		Args:  cobra.ExactArgs(1),
		Short: "Mark a task done, recording its summary and evidence",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDone(args[0], doneSummary, doneSummaryFile, doneEvidenceJSON, doneForce)
		},
	}
	doneCmd.Flags().StringVar(&doneSummary, "summary", "", "done summary text")
	doneCmd.Flags().StringVar(&doneSummaryFile, "summary-file", "", "path to done summary markdown (- for stdin)")
	doneCmd.Flags().StringVar(&doneEvidenceJSON, "evidence-json", "", "evidence as a JSON object {commits,tests,prs}")
	doneCmd.Flags().BoolVar(&doneForce, "force", false, "override claim checks")
	rootCmd.AddCommand(doneCmd)

	var blockReasonFile string
	blockCmd := &cobra.Command{
		Use:   "block ID",
		Args:  cobra.ExactArgs(1),
		Short: "Mark a task blocked with a reason",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}
			reason, err := readFileArg(blockReasonFile)
			if err != nil {
				return err
			}
			mt, err := app.engine().Block(args[0], reason)
			if err != nil {
				return err
			}
			emitResult(mt, func() { fmt.Printf("%s blocked\n", mt.ID) })
			return nil
		},
	}
	blockCmd.Flags().StringVar(&blockReasonFile, "reason-file", "", "path to block reason text (- for stdin)")
	rootCmd.AddCommand(blockCmd)
}

func runReady(epicFilter string) error {
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

	type epicReady struct {
		Epic    string                   `json:"epic"`
		Ready   []domain.MergedTask      `json:"ready"`
		InProgress []domain.MergedTask   `json:"in_progress"`
		Blocked []scheduler.BlockedTask  `json:"blocked"`
	}
	var out []epicReady
	for _, eid := range epicIDs {
		views, byID, err := taskViewsForEpic(app, eid)
		if err != nil {
			return err
		}
		result := scheduler.Ready(views)
		var ready []domain.MergedTask
		for _, v := range result.Ready {
			ready = append(ready, byID[v.ID.String()])
		}
		var inProgress []domain.MergedTask
		for _, v := range result.InProgress {
			inProgress = append(inProgress, byID[v.ID.String()])
		}
		out = append(out, epicReady{Epic: eid, Ready: ready, InProgress: inProgress, Blocked: result.Blocked})
	}
	emitResult(map[string]any{"epics": out}, func() {
		for _, e := range out {
			fmt.Printf("%s:\n", e.Epic)
			for _, t := range e.Ready {
				fmt.Printf("  ready %s %s\n", t.ID, t.Title)
			}
			for _, t := range e.InProgress {
				fmt.Printf("  in_progress %s %s\n", t.ID, t.Title)
			}
			for _, b := range e.Blocked {
				fmt.Printf("  blocked %s %s (missing: %v)\n", b.Task.ID, b.Task.Title, b.MissingDeps)
			}
		}
	})
	return nil
}

func taskViewsForEpic(app *appContext, epicID string) ([]scheduler.TaskView, map[string]domain.MergedTask, error) {
	taskIDs, err := app.Store.Def.ListTaskIDs(epicID)
	if err != nil {
		return nil, nil, err
	}
	views := make([]scheduler.TaskView, 0, len(taskIDs))
	byID := make(map[string]domain.MergedTask, len(taskIDs))
	for _, tid := range taskIDs {
		mt, err := app.Store.LoadMergedTask(tid)
		if err != nil {
			return nil, nil, err
		}
		byID[mt.ID.String()] = mt
		views = append(views, scheduler.TaskView{
			ID: mt.ID, Title: mt.Title, Priority: mt.Priority,
			DependsOn: mt.DependsOn, Status: mt.Status, Assignee: mt.Assignee,
		})
	}
	return views, byID, nil
}

func runNext(epicsFile string, requirePlanReview, requireCompletionReview bool) error {
	app, err := newAppContext()
	if err != nil {
		return err
	}
	if err := app.requireInit(); err != nil {
		return err
	}

	var epicIDs []string
	if epicsFile != "" {
		content, err := readFileArg(epicsFile)
		if err != nil {
			return err
		}
		epicIDs = splitNonEmptyLines(content)
	} else {
		epicIDs, err = app.Store.Def.ListEpicIDs()
		if err != nil {
			return err
		}
		sort.Strings(epicIDs)
	}

	views := make([]scheduler.EpicView, 0, len(epicIDs))
	for _, eid := range epicIDs {
		epic, err := app.Store.Def.LoadEpic(eid)
		if err != nil {
			return err
		}
		tasks, _, err := taskViewsForEpic(app, eid)
		if err != nil {
			return err
		}
		views = append(views, scheduler.EpicView{
			ID: epic.ID, Status: epic.Status, DependsOnEpics: epic.DependsOnEpics,
			PlanReviewStatus: epic.PlanReviewStatus, CompletionReviewStatus: epic.CompletionReviewStatus,
			Tasks: tasks,
		})
	}

	result := scheduler.Next(views, scheduler.NextOptions{
		RequirePlanReview: requirePlanReview, RequireCompletionReview: requireCompletionReview,
		CurrentActor: app.Actor,
	})
	emitResult(result, func() {
		switch result.Status {
		case scheduler.StatusTask:
			fmt.Printf("task %s (%s)\n", result.Task.ID, result.Reason)
		case scheduler.StatusPlan:
			fmt.Printf("plan_review %s\n", result.Epic)
		case scheduler.StatusCompletionReview:
			fmt.Printf("completion_review %s\n", result.Epic)
		default:
			fmt.Println("none")
		}
	})
	return nil
}

func runDone(taskID, summary, summaryFile, evidenceJSON string, force bool) error {
	app, err := newAppContext()
	if err != nil {
		return err
	}
	if summaryFile != "" {
		summary, err = readFileArg(summaryFile)
		if err != nil {
			return err
		}
	}
	evidence, err := parseEvidence(evidenceJSON)
	if err != nil {
		return err
	}
	mt, err := app.engine().Done(taskID, lifecycle.DoneOptions{Summary: summary, Evidence: evidence, Force: force})
	if err != nil {
		return err
	}
	emitResult(mt, func() { fmt.Printf("%s done\n", mt.ID) })
	return nil
}

// parseEvidence parses an optional JSON object {commits,tests,prs} into
// Evidence; an empty string yields an empty Evidence.
func parseEvidence(raw string) (domain.Evidence, error) {
	if strings.TrimSpace(raw) == "" {
		return domain.Evidence{}, nil
	}
	var ev domain.Evidence
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		return domain.Evidence{}, flowerr.Wrap(flowerr.KindMalformed, "parsing --evidence-json", err)
	}
	return ev, nil
}

func splitNonEmptyLines(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
