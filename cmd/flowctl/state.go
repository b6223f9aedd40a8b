package main

import (
	"fmt"

	"github.com/hochfrequenz/flowctl/internal/checkpoint"
	"github.com/hochfrequenz/flowctl/internal/flowerr"
	"github.com/hochfrequenz/flowctl/internal/validate"
	"github.com/spf13/cobra"
)

func init() {
	var statePathTask string
	statePathCmd := &cobra.Command{
		Use:   "state-path",
		Short: "Print the resolved state directory, or one task's runtime file",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}
			if statePathTask != "" {
				path := app.Paths.RuntimeFile(statePathTask)
				emitResult(map[string]string{"path": path}, func() { fmt.Println(path) })
				return nil
			}
			emitResult(map[string]string{"path": app.Paths.StateDir}, func() { fmt.Println(app.Paths.StateDir) })
			return nil
		},
	}
	statePathCmd.Flags().StringVar(&statePathTask, "task", "", "print this task's runtime state file instead")
	rootCmd.AddCommand(statePathCmd)

	var migrateClean bool
	migrateCmd := &cobra.Command{
		Use:   "migrate-state",
		Short: "Extract legacy inline runtime fields into the runtime store",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}
			if err := app.requireInit(); err != nil {
				return err
			}
			results, err := app.Store.MigrateState(migrateClean)
			if err != nil {
				return err
			}
			emitResult(map[string]any{"tasks": results}, func() {
				for _, r := range results {
					if r.Migrated {
						fmt.Printf("%s migrated (cleaned=%v)\n", r.ID, r.Cleaned)
					}
				}
			})
			return nil
		},
	}
	migrateCmd.Flags().BoolVar(&migrateClean, "clean", false, "also strip legacy fields from definitions once migrated")
	rootCmd.AddCommand(migrateCmd)

	var validateEpic string
	var validateAll bool
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check root, one epic, or every epic's invariants",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(validateEpic, validateAll)
		},
	}
	validateCmd.Flags().StringVar(&validateEpic, "epic", "", "validate a single epic")
	validateCmd.Flags().BoolVar(&validateAll, "all", false, "validate every epic and cross-epic invariants")
	rootCmd.AddCommand(validateCmd)

	checkpointCmd := &cobra.Command{Use: "checkpoint", Short: "Snapshot or restore an epic's full state"}
	var cpEpic string
	saveCmd := &cobra.Command{
		Use:   "save",
		Short: "Snapshot an epic's definitions, specs, and runtime to a checkpoint file",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}
			cp, err := checkpoint.Save(app.Store, cpEpic)
			if err != nil {
				return err
			}
			emitResult(cp, func() { fmt.Printf("checkpoint saved for %s\n", cpEpic) })
			return nil
		},
	}
	saveCmd.Flags().StringVar(&cpEpic, "epic", "", "epic id")
	checkpointCmd.AddCommand(saveCmd)

	var cpRestoreEpic string
	restoreCmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore an epic from its checkpoint file",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}
			cp, err := checkpoint.Restore(app.Store, cpRestoreEpic)
			if err != nil {
				return err
			}
			emitResult(cp, func() { fmt.Printf("checkpoint restored for %s\n", cpRestoreEpic) })
			return nil
		},
	}
	restoreCmd.Flags().StringVar(&cpRestoreEpic, "epic", "", "epic id")
	checkpointCmd.AddCommand(restoreCmd)

	var cpDeleteEpic string
	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete an epic's checkpoint file, if any",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}
			if err := checkpoint.Delete(app.Store, cpDeleteEpic); err != nil {
				return err
			}
			emitResult(map[string]string{"epic": cpDeleteEpic}, func() { fmt.Println("deleted") })
			return nil
		},
	}
	deleteCmd.Flags().StringVar(&cpDeleteEpic, "epic", "", "epic id")
	checkpointCmd.AddCommand(deleteCmd)

	rootCmd.AddCommand(checkpointCmd)
}

func runValidate(epicFilter string, all bool) error {
	app, err := newAppContext()
	if err != nil {
		return err
	}
	if err := app.requireInit(); err != nil {
		return err
	}

	var result validate.Result
	switch {
	case all:
		result, err = validate.AllEpics(app.Store)
		if err != nil {
			return err
		}
	case epicFilter != "":
		root := validate.Root(app.Store)
		result.Errors = append(result.Errors, root.Errors...)
		result = mergeResult(result, validate.Epic(app.Store, epicFilter))
	default:
		result = validate.Root(app.Store)
	}

	emitResult(result, func() {
		for _, e := range result.Errors {
			fmt.Println("error:", e)
		}
		for _, w := range result.Warnings {
			fmt.Println("warning:", w)
		}
		if result.OK() {
			fmt.Println("ok")
		}
	})
	if !result.OK() {
		return flowerr.Newf(flowerr.KindPrecondition, "validation failed with %d error(s)", len(result.Errors))
	}
	return nil
}

func mergeResult(a, b validate.Result) validate.Result {
	a.Errors = append(a.Errors, b.Errors...)
	a.Warnings = append(a.Warnings, b.Warnings...)
	return a
}
