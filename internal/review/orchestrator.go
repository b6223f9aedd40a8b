package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/hochfrequenz/flowctl/internal/config"
	"github.com/hochfrequenz/flowctl/internal/domain"
	"github.com/hochfrequenz/flowctl/internal/flowerr"
	"github.com/hochfrequenz/flowctl/internal/gitutil"
	"github.com/hochfrequenz/flowctl/internal/store"
)

// Runner wires the prompt builder, the subprocess invocation, verdict
// parsing, and receipt persistence into one call per review variant.
type Runner struct {
	Store    *store.Store
	Config   *config.Config
	Receipts *ReceiptStore
}

// NewRunner builds a Runner over s, reading reviewer settings from cfg.
func NewRunner(s *store.Store, cfg *config.Config) *Runner {
	return &Runner{Store: s, Config: cfg, Receipts: NewReceiptStore(s.Def.Paths)}
}

// RunOptions configures one review invocation.
type RunOptions struct {
	Base      string   // git ref the diff is taken against
	Iteration int
	Files     []string // extra files to embed verbatim (plan review has no diff to derive them from)
}

// RunPlanReview reviews an epic's plan spec (no diff) against its own spec,
// task specs, and any files the caller names (e.g. files the plan touches).
func (r *Runner) RunPlanReview(ctx context.Context, epicID string, opts RunOptions) (domain.ReviewReceipt, error) {
	epicSpec, err := r.Store.Def.LoadEpicSpec(epicID)
	if err != nil {
		return domain.ReviewReceipt{}, err
	}
	taskSpecs, err := r.collectTaskSpecs(epicID)
	if err != nil {
		return domain.ReviewReceipt{}, err
	}

	var embedded []EmbeddedFile
	if len(opts.Files) > 0 {
		embedded = CollectEmbeddedFiles(r.Store.Def.Paths.RepoRoot, opts.Files, r.Config.CodexEmbedMaxBytes, r.Config.CodexEmbedMaxBytes/4)
	}

	in := PromptInput{
		Spec:          epicSpec,
		TaskSpecs:     taskSpecs,
		EmbeddedFiles: embedded,
		Mode:          InstructionPlan,
	}
	return r.run(ctx, domain.ReceiptPlanReview, epicID, in, opts)
}

// RunImplReview reviews a task's diff against its own spec.
func (r *Runner) RunImplReview(ctx context.Context, taskID string, opts RunOptions) (domain.ReviewReceipt, error) {
	taskSpec, err := r.Store.Def.LoadTaskSpec(taskID)
	if err != nil {
		return domain.ReviewReceipt{}, err
	}

	in, err := r.buildDiffPromptInput(ctx, opts.Base, taskSpec, InstructionImpl)
	if err != nil {
		return domain.ReviewReceipt{}, err
	}
	return r.run(ctx, domain.ReceiptImplReview, taskID, in, opts)
}

// RunCompletionReview reviews an epic's full diff against its own spec and
// every owned task's spec, checking requirement coverage rather than code
// quality.
func (r *Runner) RunCompletionReview(ctx context.Context, epicID string, opts RunOptions) (domain.ReviewReceipt, error) {
	epicSpec, err := r.Store.Def.LoadEpicSpec(epicID)
	if err != nil {
		return domain.ReviewReceipt{}, err
	}
	taskSpecs, err := r.collectTaskSpecs(epicID)
	if err != nil {
		return domain.ReviewReceipt{}, err
	}

	in, err := r.buildDiffPromptInput(ctx, opts.Base, epicSpec+"\n\n"+taskSpecs, InstructionCompletion)
	if err != nil {
		return domain.ReviewReceipt{}, err
	}
	in.Spec = epicSpec
	in.TaskSpecs = taskSpecs
	return r.run(ctx, domain.ReceiptCompletionReview, epicID, in, opts)
}

func (r *Runner) collectTaskSpecs(epicID string) (string, error) {
	taskIDs, err := r.Store.Def.ListTaskIDs(epicID)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, id := range taskIDs {
		spec, err := r.Store.Def.LoadTaskSpec(id)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "### %s\n\n%s\n\n", id, spec)
	}
	return b.String(), nil
}

func (r *Runner) buildDiffPromptInput(ctx context.Context, base, spec string, mode InstructionMode) (PromptInput, error) {
	root := r.Store.Def.Paths.RepoRoot
	diff, err := gitutil.Diff(ctx, root, base)
	if err != nil {
		return PromptInput{}, flowerr.Wrap(flowerr.KindExternalTool, "collecting diff", err)
	}
	changed, err := gitutil.DiffNameOnly(ctx, root, base)
	if err != nil {
		return PromptInput{}, flowerr.Wrap(flowerr.KindExternalTool, "listing changed files", err)
	}

	diffContent, truncated := TruncateDiff(diff, r.Config.DiffCapBytes)

	fileContents := make(map[string]string, len(changed))
	for _, f := range changed {
		fileContents[f] = diff // symbol extraction only needs recent text; the diff itself carries the changed lines
	}
	hints := CollectContextHints(ctx, root, fileContents)
	embedded := CollectEmbeddedFiles(root, changed, r.Config.CodexEmbedMaxBytes, r.Config.CodexEmbedMaxBytes/4)

	return PromptInput{
		ContextHints:  hints,
		DiffSummary:   fmt.Sprintf("%d file(s) changed against %s", len(changed), base),
		DiffContent:   diffContent,
		DiffTruncated: truncated,
		EmbeddedFiles: embedded,
		TaskSpecs:     spec,
		Mode:          mode,
	}, nil
}

// run invokes the reviewer, resuming the deterministic session for
// ownerID/receiptType when a prior receipt exists, falling back to a fresh
// session silently if resume fails for any reason other than a sandbox
// denial. On success it writes the receipt; on any failure it clears a
// stale one so it can never be mistaken for current evidence.
func (r *Runner) run(ctx context.Context, receiptType domain.ReceiptType, ownerID string, in PromptInput, opts RunOptions) (domain.ReviewReceipt, error) {
	sessionID := SessionID(ownerID, string(receiptType))
	_, hadPrior, _ := r.Receipts.Load(ownerID, receiptType)

	if hadPrior {
		changed, _ := gitutil.DiffNameOnly(ctx, r.Store.Def.Paths.RepoRoot, opts.Base)
		in.ResumePreamble = ResumePreamble(changed)
	}

	prompt := BuildPrompt(in)

	result, err := r.invokeWithFallback(ctx, prompt, sessionID, hadPrior)
	if err != nil {
		_ = r.Receipts.Clear(ownerID, receiptType)
		if IsSandboxFailure(result.Transcript) {
			return domain.ReviewReceipt{}, flowerr.Newf(flowerr.KindSandbox, "reviewer sandbox denied the review for %s", ownerID)
		}
		return domain.ReviewReceipt{}, err
	}

	if IsSandboxFailure(result.Transcript) {
		_ = r.Receipts.Clear(ownerID, receiptType)
		return domain.ReviewReceipt{}, flowerr.Newf(flowerr.KindSandbox, "reviewer sandbox denied the review for %s", ownerID)
	}

	verdict, ok := ExtractVerdict(result.Transcript)
	if !ok {
		_ = r.Receipts.Clear(ownerID, receiptType)
		return domain.ReviewReceipt{}, flowerr.Newf(flowerr.KindExternalTool, "reviewer produced no verdict tag for %s", ownerID)
	}

	receipt := NewReceipt(receiptType, ownerID, string(in.Mode), verdict, sessionID, result.Transcript, opts.Iteration)
	if err := r.Receipts.Save(ownerID, receipt); err != nil {
		return domain.ReviewReceipt{}, err
	}
	return receipt, nil
}

func (r *Runner) invokeWithFallback(ctx context.Context, prompt, sessionID string, resume bool) (InvokeResult, error) {
	opts := InvokeOptions{
		Prompt:     prompt,
		SessionID:  sessionID,
		Resume:     resume,
		Model:      r.Config.CodexModel,
		Sandbox:    SandboxReadOnly,
		TimeoutSec: r.Config.ReviewerTimeoutSec,
		WorkDir:    r.Store.Def.Paths.RepoRoot,
	}
	result, err := Invoke(ctx, opts)
	if err != nil && resume && !IsSandboxFailure(result.Transcript) {
		opts.Resume = false
		result, err = Invoke(ctx, opts)
	}
	return result, err
}
