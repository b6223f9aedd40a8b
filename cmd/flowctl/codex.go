package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/hochfrequenz/flowctl/internal/flowerr"
	"github.com/hochfrequenz/flowctl/internal/review"
	"github.com/spf13/cobra"
)

func init() {
	codexCmd := &cobra.Command{Use: "codex", Short: "Drive the external reviewer subprocess"}

	codexCmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Report whether the codex binary is on PATH",
		RunE:  runCodexCheck,
	})

	var implBase, implReceipt, implSandbox string
	implCmd := &cobra.Command{
		Use:   "impl-review [TASK]",
		Args:  cobra.MaximumNArgs(1),
		Short: "Review a task's implementation diff",
		RunE: func(cmd *cobra.Command, args []string) error {
			var taskID string
			if len(args) == 1 {
				taskID = args[0]
			}
			return runCodexReview(reviewKindImpl, taskID, implBase, nil, implReceipt)
		},
	}
	implCmd.Flags().StringVar(&implBase, "base", "", "git ref the diff is taken against")
	implCmd.Flags().StringVar(&implReceipt, "receipt", "", "also write the receipt JSON to this path")
	implCmd.Flags().StringVar(&implSandbox, "sandbox", "", "unused override, reserved for future sandbox selection")
	codexCmd.AddCommand(implCmd)

	var planFiles []string
	var planBase, planReceipt, planSandbox string
	planCmd := &cobra.Command{
		Use:   "plan-review EPIC",
		Args:  cobra.ExactArgs(1),
		Short: "Review an epic's plan spec",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCodexReview(reviewKindPlan, args[0], planBase, planFiles, planReceipt)
		},
	}
	planCmd.Flags().StringSliceVar(&planFiles, "files", nil, "files to embed for plan context")
	planCmd.Flags().StringVar(&planBase, "base", "", "git ref used only to list changed files when re-reviewing")
	planCmd.Flags().StringVar(&planReceipt, "receipt", "", "also write the receipt JSON to this path")
	planCmd.Flags().StringVar(&planSandbox, "sandbox", "", "unused override, reserved for future sandbox selection")
	codexCmd.AddCommand(planCmd)

	var completionBase, completionReceipt, completionSandbox string
	completionCmd := &cobra.Command{
		Use:   "completion-review EPIC",
		Args:  cobra.ExactArgs(1),
		Short: "Review an epic's full diff for requirement coverage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCodexReview(reviewKindCompletion, args[0], completionBase, nil, completionReceipt)
		},
	}
	completionCmd.Flags().StringVar(&completionBase, "base", "", "git ref the diff is taken against")
	completionCmd.Flags().StringVar(&completionReceipt, "receipt", "", "also write the receipt JSON to this path")
	completionCmd.Flags().StringVar(&completionSandbox, "sandbox", "", "unused override, reserved for future sandbox selection")
	codexCmd.AddCommand(completionCmd)

	rootCmd.AddCommand(codexCmd)
}

func runCodexCheck(cmd *cobra.Command, args []string) error {
	app, err := newAppContext()
	if err != nil {
		return err
	}
	_, lookErr := exec.LookPath("codex")
	available := lookErr == nil
	emitResult(map[string]any{"available": available, "review_backend": string(app.Config.ReviewBackend)}, func() {
		fmt.Printf("codex available=%v backend=%s\n", available, app.Config.ReviewBackend)
	})
	if !available {
		return flowerr.New(flowerr.KindExternalTool, "codex binary not found on PATH")
	}
	return nil
}

type reviewKind int

const (
	reviewKindImpl reviewKind = iota
	reviewKindPlan
	reviewKindCompletion
)

func runCodexReview(kind reviewKind, ownerID, base string, files []string, receiptPath string) error {
	app, err := newAppContext()
	if err != nil {
		return err
	}
	if err := app.requireInit(); err != nil {
		return err
	}

	runner := review.NewRunner(app.Store, app.Config)
	opts := review.RunOptions{Base: base, Files: files}

	var receipt any
	var ownerLabel string
	ctx := context.Background()
	switch kind {
	case reviewKindPlan:
		ownerLabel = ownerID
		receipt, err = runner.RunPlanReview(ctx, ownerID, opts)
	case reviewKindCompletion:
		ownerLabel = ownerID
		receipt, err = runner.RunCompletionReview(ctx, ownerID, opts)
	default:
		if ownerID == "" {
			return flowerr.New(flowerr.KindMalformed, "impl-review requires a task id")
		}
		ownerLabel = ownerID
		receipt, err = runner.RunImplReview(ctx, ownerID, opts)
	}
	if err != nil {
		return err
	}

	if receiptPath != "" {
		if werr := writeReceiptFile(receiptPath, receipt); werr != nil {
			return werr
		}
	}

	emitResult(receipt, func() {
		fmt.Printf("review complete for %s\n", ownerLabel)
	})
	return nil
}

func writeReceiptFile(path string, receipt any) error {
	data, err := json.MarshalIndent(receipt, "", "  ")
	if err != nil {
		return flowerr.Wrap(flowerr.KindMalformed, "encoding receipt", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return flowerr.Wrap(flowerr.KindExternalTool, "writing receipt file", err)
	}
	return nil
}
