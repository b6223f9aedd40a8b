package main

import (
	"fmt"
	"strings"

	"github.com/hochfrequenz/flowctl/internal/flowerr"
	"github.com/hochfrequenz/flowctl/internal/lifecycle"
	"github.com/spf13/cobra"
)

func init() {
	taskCmd := &cobra.Command{Use: "task", Short: "Manage tasks"}

	var (
		createEpic     string
		createTitle    string
		createDeps     []string
		createPriority int
		acceptanceFile string
	)
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new task under an epic",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}
			var acceptance string
			if acceptanceFile != "" {
				acceptance, err = readFileArg(acceptanceFile)
				if err != nil {
					return err
				}
			}
			var priority *int
			if cmd.Flags().Changed("priority") {
				p := createPriority
				priority = &p
			}
			def, err := app.engine().CreateTask(lifecycle.CreateTaskOptions{
				EpicID: createEpic, Title: createTitle, Priority: priority,
				Deps: createDeps, Acceptance: acceptance,
			})
			if err != nil {
				return err
			}
			emitResult(def, func() { fmt.Println(def.ID.String()) })
			return nil
		},
	}
	createCmd.Flags().StringVar(&createEpic, "epic", "", "owning epic id")
	createCmd.Flags().StringVar(&createTitle, "title", "", "task title")
	createCmd.Flags().StringSliceVar(&createDeps, "deps", nil, "dependency task ids")
	createCmd.Flags().IntVar(&createPriority, "priority", 0, "priority (lower sorts first)")
	createCmd.Flags().StringVar(&acceptanceFile, "acceptance-file", "", "path to acceptance markdown (- for stdin)")
	taskCmd.AddCommand(createCmd)

	taskCmd.AddCommand(sectionPatchCmd("set-description", func(e *lifecycle.Engine, id, content string) error {
		return e.SetTaskDescription(id, content)
	}))
	taskCmd.AddCommand(sectionPatchCmd("set-acceptance", func(e *lifecycle.Engine, id, content string) error {
		return e.SetTaskAcceptance(id, content)
	}))

	var (
		specFile, specDescription, specAcceptance string
	)
	setSpecCmd := &cobra.Command{
		Use:   "set-spec ID",
		Args:  cobra.ExactArgs(1),
		Short: "Replace a task's full spec, or just its description/acceptance section",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}
			switch {
			case specFile != "":
				content, err := readFileArg(specFile)
				if err != nil {
					return err
				}
				if err := app.engine().SetTaskSpec(args[0], content); err != nil {
					return err
				}
			case specDescription != "":
				content, err := readFileArg(specDescription)
				if err != nil {
					return err
				}
				if err := app.engine().SetTaskDescription(args[0], content); err != nil {
					return err
				}
			case specAcceptance != "":
				content, err := readFileArg(specAcceptance)
				if err != nil {
					return err
				}
				if err := app.engine().SetTaskAcceptance(args[0], content); err != nil {
					return err
				}
			default:
				return flowerr.New(flowerr.KindMalformed, "one of --file/--description/--acceptance is required")
			}
			emitResult(map[string]string{"id": args[0]}, func() { fmt.Println("ok") })
			return nil
		},
	}
	setSpecCmd.Flags().StringVar(&specFile, "file", "", "path to full spec markdown (- for stdin)")
	setSpecCmd.Flags().StringVar(&specDescription, "description", "", "path to description markdown (- for stdin)")
	setSpecCmd.Flags().StringVar(&specAcceptance, "acceptance", "", "path to acceptance markdown (- for stdin)")
	taskCmd.AddCommand(setSpecCmd)

	var setDepsList []string
	setDepsCmd := &cobra.Command{
		Use:   "set-deps ID",
		Args:  cobra.ExactArgs(1),
		Short: "Add dependencies to a task (additive, deduplicating)",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}
			def, err := app.engine().SetTaskDeps(args[0], setDepsList)
			if err != nil {
				return err
			}
			emitResult(def, func() { fmt.Println("ok") })
			return nil
		},
	}
	setDepsCmd.Flags().StringSliceVar(&setDepsList, "deps", nil, "dependency task ids")
	taskCmd.AddCommand(setDepsCmd)

	var cascade bool
	resetCmd := &cobra.Command{
		Use:   "reset ID",
		Args:  cobra.ExactArgs(1),
		Short: "Reset a task (and optionally its dependents) to todo",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}
			results, err := app.engine().Reset(args[0], cascade)
			if err != nil {
				return err
			}
			emitResult(results, func() {
				for _, r := range results {
					fmt.Println(r.ID.String())
				}
			})
			return nil
		},
	}
	resetCmd.Flags().BoolVar(&cascade, "cascade", false, "also reset transitive dependents")
	taskCmd.AddCommand(resetCmd)

	var tBackendImpl, tBackendReview, tBackendSync string
	setTaskBackendCmd := &cobra.Command{
		Use:   "set-backend ID",
		Args:  cobra.ExactArgs(1),
		Short: "Set a task's impl/review/sync field",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}
			field, value, err := resolveBackendFlag(tBackendImpl, tBackendReview, tBackendSync)
			if err != nil {
				return err
			}
			def, err := app.engine().SetTaskBackend(args[0], field, value)
			if err != nil {
				return err
			}
			emitResult(def, func() { fmt.Println("ok") })
			return nil
		},
	}
	setTaskBackendCmd.Flags().StringVar(&tBackendImpl, "impl", "", "set impl")
	setTaskBackendCmd.Flags().StringVar(&tBackendReview, "review", "", "set review")
	setTaskBackendCmd.Flags().StringVar(&tBackendSync, "sync", "", "set sync")
	taskCmd.AddCommand(setTaskBackendCmd)

	taskCmd.AddCommand(&cobra.Command{
		Use:   "show-backend ID",
		Args:  cobra.ExactArgs(1),
		Short: "Show a task's impl/review/sync fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}
			def, err := app.Store.Def.LoadTask(args[0])
			if err != nil {
				return err
			}
			result := map[string]string{
				"impl":   lifecycle.ShowTaskBackend(def, lifecycle.BackendImpl),
				"review": lifecycle.ShowTaskBackend(def, lifecycle.BackendReview),
				"sync":   lifecycle.ShowTaskBackend(def, lifecycle.BackendSync),
			}
			emitResult(result, func() {
				fmt.Printf("impl=%s review=%s sync=%s\n", result["impl"], result["review"], result["sync"])
			})
			return nil
		},
	})

	rootCmd.AddCommand(taskCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "dep add TASK DEP",
		Args:  cobra.ExactArgs(3),
		Short: "Add a dependency edge (dep add TASK DEP)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.ToLower(args[0]) != "add" {
				return flowerr.Newf(flowerr.KindMalformed, "usage: dep add TASK DEP")
			}
			app, err := newAppContext()
			if err != nil {
				return err
			}
			def, err := app.engine().AddTaskDep(args[1], args[2])
			if err != nil {
				return err
			}
			emitResult(def, func() { fmt.Println("ok") })
			return nil
		},
	})
}

func sectionPatchCmd(use string, apply func(*lifecycle.Engine, string, string) error) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   use + " ID",
		Args:  cobra.ExactArgs(1),
		Short: "Replace a task spec section",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}
			content, err := readFileArg(file)
			if err != nil {
				return err
			}
			if err := apply(app.engine(), args[0], content); err != nil {
				return err
			}
			emitResult(map[string]string{"id": args[0]}, func() { fmt.Println("ok") })
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to section markdown (- for stdin)")
	return cmd
}
