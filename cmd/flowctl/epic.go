package main

import (
	"fmt"

	"github.com/hochfrequenz/flowctl/internal/domain"
	"github.com/hochfrequenz/flowctl/internal/flowerr"
	"github.com/hochfrequenz/flowctl/internal/lifecycle"
	"github.com/spf13/cobra"
)

func init() {
	epicCmd := &cobra.Command{Use: "epic", Short: "Manage epics"}

	var createTitle, createBranch string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new epic",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}
			epic, err := app.engine().CreateEpic(lifecycle.CreateEpicOptions{Title: createTitle, BranchName: createBranch})
			if err != nil {
				return err
			}
			emitResult(epic, func() { fmt.Println(epic.ID.String()) })
			return nil
		},
	}
	createCmd.Flags().StringVar(&createTitle, "title", "", "epic title")
	createCmd.Flags().StringVar(&createBranch, "branch", "", "branch name")
	epicCmd.AddCommand(createCmd)

	var planFile string
	setPlanCmd := &cobra.Command{
		Use:   "set-plan ID",
		Args:  cobra.ExactArgs(1),
		Short: "Replace an epic's spec markdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}
			content, err := readFileArg(planFile)
			if err != nil {
				return err
			}
			if err := app.engine().SetEpicPlan(args[0], content); err != nil {
				return err
			}
			emitResult(map[string]string{"id": args[0]}, func() { fmt.Println("ok") })
			return nil
		},
	}
	setPlanCmd.Flags().StringVar(&planFile, "file", "", "path to plan markdown (- for stdin)")
	epicCmd.AddCommand(setPlanCmd)

	epicCmd.AddCommand(gateStatusCmd("set-plan-review-status", func(e *lifecycle.Engine, id string, status domain.ReviewGateStatus) (domain.Epic, error) {
		return e.SetEpicPlanReviewStatus(id, status)
	}))
	epicCmd.AddCommand(gateStatusCmd("set-completion-review-status", func(e *lifecycle.Engine, id string, status domain.ReviewGateStatus) (domain.Epic, error) {
		return e.SetEpicCompletionReviewStatus(id, status)
	}))

	var branchName string
	setBranchCmd := &cobra.Command{
		Use:   "set-branch ID",
		Args:  cobra.ExactArgs(1),
		Short: "Set an epic's branch name",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}
			epic, err := app.engine().SetEpicBranch(args[0], branchName)
			if err != nil {
				return err
			}
			emitResult(epic, func() { fmt.Println("ok") })
			return nil
		},
	}
	setBranchCmd.Flags().StringVar(&branchName, "branch", "", "branch name")
	epicCmd.AddCommand(setBranchCmd)

	var setTitleValue string
	setTitleCmd := &cobra.Command{
		Use:   "set-title ID",
		Args:  cobra.ExactArgs(1),
		Short: "Rename an epic, recomputing its id from the new title",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}
			result, err := app.engine().RenameEpic(args[0], setTitleValue)
			if err != nil {
				return err
			}
			emitResult(result, func() { fmt.Println(result.NewID) })
			return nil
		},
	}
	setTitleCmd.Flags().StringVar(&setTitleValue, "title", "", "new title")
	epicCmd.AddCommand(setTitleCmd)

	epicCmd.AddCommand(&cobra.Command{
		Use:   "add-dep ID DEP",
		Args:  cobra.ExactArgs(2),
		Short: "Add a dependency between two epics",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}
			epic, err := app.engine().AddEpicDep(args[0], args[1])
			if err != nil {
				return err
			}
			emitResult(epic, func() { fmt.Println("ok") })
			return nil
		},
	})
	epicCmd.AddCommand(&cobra.Command{
		Use:   "rm-dep ID DEP",
		Args:  cobra.ExactArgs(2),
		Short: "Remove a dependency between two epics",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}
			epic, err := app.engine().RmEpicDep(args[0], args[1])
			if err != nil {
				return err
			}
			emitResult(epic, func() { fmt.Println("ok") })
			return nil
		},
	})

	var backendImpl, backendReview, backendSync string
	setBackendCmd := &cobra.Command{
		Use:   "set-backend ID",
		Args:  cobra.ExactArgs(1),
		Short: "Set an epic's default_impl/default_review/default_sync field",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}
			field, value, err := resolveBackendFlag(backendImpl, backendReview, backendSync)
			if err != nil {
				return err
			}
			epic, err := app.engine().SetEpicBackend(args[0], field, value)
			if err != nil {
				return err
			}
			emitResult(epic, func() { fmt.Println("ok") })
			return nil
		},
	}
	setBackendCmd.Flags().StringVar(&backendImpl, "impl", "", "set default_impl")
	setBackendCmd.Flags().StringVar(&backendReview, "review", "", "set default_review")
	setBackendCmd.Flags().StringVar(&backendSync, "sync", "", "set default_sync")
	epicCmd.AddCommand(setBackendCmd)

	epicCmd.AddCommand(&cobra.Command{
		Use:   "close ID",
		Args:  cobra.ExactArgs(1),
		Short: "Close an epic (requires every task done)",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}
			epic, err := app.engine().CloseEpic(args[0])
			if err != nil {
				return err
			}
			emitResult(epic, func() { fmt.Println("ok") })
			return nil
		},
	})

	rootCmd.AddCommand(epicCmd)
}

// gateStatusCmd builds the shared shape of set-plan-review-status and
// set-completion-review-status: both take ID and --status.
func gateStatusCmd(use string, apply func(*lifecycle.Engine, string, domain.ReviewGateStatus) (domain.Epic, error)) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   use + " ID",
		Args:  cobra.ExactArgs(1),
		Short: "Set a review gate status",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}
			gate := domain.ReviewGateStatus(status)
			if gate != domain.GateShip && gate != domain.GateNeedsWork && gate != domain.GateUnknown {
				return flowerr.Newf(flowerr.KindMalformed, "invalid status %q", status)
			}
			epic, err := apply(app.engine(), args[0], gate)
			if err != nil {
				return err
			}
			emitResult(epic, func() { fmt.Println("ok") })
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "unknown|needs_work|ship")
	return cmd
}

func resolveBackendFlag(impl, review, sync string) (lifecycle.BackendField, string, error) {
	set := 0
	var field lifecycle.BackendField
	var value string
	if impl != "" {
		set++
		field, value = lifecycle.BackendImpl, impl
	}
	if review != "" {
		set++
		field, value = lifecycle.BackendReview, review
	}
	if sync != "" {
		set++
		field, value = lifecycle.BackendSync, sync
	}
	if set != 1 {
		return "", "", flowerr.New(flowerr.KindMalformed, "exactly one of --impl/--review/--sync must be set")
	}
	return field, value, nil
}
