package main

import (
	"fmt"

	"github.com/hochfrequenz/flowctl/internal/flowerr"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Initialize .flow in the current repository",
		RunE:  runInit,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Summarize epic and task counts",
		RunE:  runStatus,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "detect",
		Short: "Report whether .flow is initialized and where state lives",
		RunE:  runDetect,
	})

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Read or write .flow/config.json",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "get KEY",
		Args:  cobra.ExactArgs(1),
		Short: "Print a config value",
		RunE:  runConfigGet,
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "set KEY VALUE",
		Args:  cobra.ExactArgs(2),
		Short: "Set a config value",
		RunE:  runConfigSet,
	})
	rootCmd.AddCommand(configCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "review-backend",
		Short: "Print the active review backend",
		RunE:  runReviewBackend,
	})
}

func runInit(cmd *cobra.Command, args []string) error {
	app, err := newAppContext()
	if err != nil {
		return err
	}
	if err := app.Store.Def.Init(); err != nil {
		return err
	}
	emitResult(map[string]string{"flow_dir": app.Paths.FlowDir}, func() {
		fmt.Println("initialized", app.Paths.FlowDir)
	})
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
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
	var openEpics, doneEpics, todo, inProgress, blocked, done int
	for _, eid := range epicIDs {
		epic, err := app.Store.Def.LoadEpic(eid)
		if err != nil {
			continue
		}
		if epic.Status == "done" {
			doneEpics++
		} else {
			openEpics++
		}
		taskIDs, err := app.Store.Def.ListTaskIDs(eid)
		if err != nil {
			continue
		}
		for _, tid := range taskIDs {
			status, err := app.Store.MergedStatusOf(tid)
			if err != nil {
				continue
			}
			switch status {
			case "todo":
				todo++
			case "in_progress":
				inProgress++
			case "blocked":
				blocked++
			case "done":
				done++
			}
		}
	}

	summary := map[string]int{
		"epics_open": openEpics, "epics_done": doneEpics,
		"tasks_todo": todo, "tasks_in_progress": inProgress,
		"tasks_blocked": blocked, "tasks_done": done,
	}
	emitResult(summary, func() {
		fmt.Printf("Epics: %d open, %d done\n", openEpics, doneEpics)
		fmt.Printf("Tasks: %d todo, %d in_progress, %d blocked, %d done\n", todo, inProgress, blocked, done)
	})
	return nil
}

func runDetect(cmd *cobra.Command, args []string) error {
	app, err := newAppContext()
	if err != nil {
		return err
	}
	initialized := app.Store.Def.Exists()
	result := map[string]any{
		"initialized": initialized,
		"repo_root":   app.Paths.RepoRoot,
		"flow_dir":    app.Paths.FlowDir,
		"state_dir":   app.Paths.StateDir,
	}
	emitResult(result, func() {
		fmt.Printf("initialized=%v repo_root=%s flow_dir=%s state_dir=%s\n",
			initialized, app.Paths.RepoRoot, app.Paths.FlowDir, app.Paths.StateDir)
	})
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	app, err := newAppContext()
	if err != nil {
		return err
	}
	val, ok := app.Config.Get(args[0])
	if !ok {
		return flowerr.Newf(flowerr.KindMalformed, "unknown config key %q", args[0])
	}
	emitResult(map[string]string{"key": args[0], "value": val}, func() {
		fmt.Println(val)
	})
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	app, err := newAppContext()
	if err != nil {
		return err
	}
	if !app.Config.Set(args[0], args[1]) {
		return flowerr.Newf(flowerr.KindMalformed, "unknown config key %q", args[0])
	}
	if err := app.Config.Save(app.Paths.ConfigFile()); err != nil {
		return err
	}
	emitResult(map[string]string{"key": args[0], "value": args[1]}, func() {
		fmt.Printf("%s = %s\n", args[0], args[1])
	})
	return nil
}

func runReviewBackend(cmd *cobra.Command, args []string) error {
	app, err := newAppContext()
	if err != nil {
		return err
	}
	emitResult(map[string]string{"review_backend": string(app.Config.ReviewBackend)}, func() {
		fmt.Println(app.Config.ReviewBackend)
	})
	return nil
}
