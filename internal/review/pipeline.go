package review

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/123zhaozheng/gitlab-code-reviewer/internal/config"
	"github.com/123zhaozheng/gitlab-code-reviewer/internal/core"
	"github.com/123zhaozheng/gitlab-code-reviewer/internal/llm"
)

// ResultCache stores finished reviews keyed by what was reviewed. A cache
// miss is (nil, nil). Implementations may be backed by Redis or disabled
// entirely.
type ResultCache interface {
	Get(ctx context.Context, project, headSHA, targetBranch string, rt core.ReviewType) (*core.ReviewResult, error)
	Set(ctx context.Context, project, headSHA, targetBranch string, rt core.ReviewType, res *core.ReviewResult) error
}

// HistoryStore persists finished reviews for later inspection.
type HistoryStore interface {
	SaveReview(ctx context.Context, project string, mrIID int, res *core.ReviewResult) error
}

// Pipeline is the Reviewer implementation: fetch diffs, fit them into the
// model's token budget, fan the chunks out to the model, and aggregate the
// answers into one result.
type Pipeline struct {
	cfg         *config.Config
	catalog     config.ModelCatalog
	hostFactory core.HostClientFactory
	prompts     *llm.PromptManager
	dispatcher  *llm.Dispatcher
	cache       ResultCache
	store       HistoryStore
	logger      *slog.Logger
}

var _ core.Reviewer = (*Pipeline)(nil)

// NewPipeline wires the pipeline. cache and store may be nil when the
// corresponding backend is not configured.
func NewPipeline(
	cfg *config.Config,
	catalog config.ModelCatalog,
	hostFactory core.HostClientFactory,
	prompts *llm.PromptManager,
	dispatcher *llm.Dispatcher,
	cache ResultCache,
	store HistoryStore,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		catalog:     catalog,
		hostFactory: hostFactory,
		prompts:     prompts,
		dispatcher:  dispatcher,
		cache:       cache,
		store:       store,
		logger:      logger,
	}
}

// Review runs one review end to end.
func (p *Pipeline) Review(ctx context.Context, req *core.ReviewRequest) (*core.ReviewResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Review.Timeout)
	defer cancel()

	host, err := p.hostFactory(req.Ref)
	if err != nil {
		return nil, err
	}

	info, files, err := p.fetch(ctx, host, req)
	if err != nil {
		return nil, p.mapTimeout(ctx, err)
	}

	if cached := p.cacheLookup(ctx, req, info); cached != nil {
		return cached, nil
	}

	model := req.Model
	if model == "" {
		model = p.cfg.AI.DefaultModel
	}
	budget := p.cfg.BudgetFor(p.catalog, model)

	sel := SelectFiles(files, budget, p.cfg.Review.MaxFiles)
	stats := statsFor(sel)

	if sel.Empty() {
		return p.emptyResult(req, info, sel, stats), nil
	}

	units, err := p.buildUnits(req, info, sel, budget)
	if err != nil {
		return nil, err
	}
	stats.PromptUnits = len(units)
	for _, u := range units {
		stats.TokensEstimate += u.TokenEstimate
	}

	results, usedModel, err := p.dispatchAll(ctx, req, units)
	if err != nil {
		return nil, p.mapTimeout(ctx, err)
	}

	score, summary, findings, suggestions := Aggregate(results)
	if req.Type == core.ReviewQuick {
		findings = MergeFindings(findings, Precheck(sel.Files))
	}

	result := &core.ReviewResult{
		ID:          uuid.NewString(),
		Status:      core.StatusCompleted,
		Type:        req.Type,
		Score:       score,
		Summary:     summary,
		Findings:    findings,
		Suggestions: suggestions,
		MR:          info,
		Stats:       stats,
		Model:       usedModel,
		CreatedAt:   time.Now().UTC(),
	}
	p.persist(ctx, req, info, result)

	p.logger.Info("review completed",
		"review_id", result.ID,
		"project", req.Ref.ProjectID,
		"type", req.Type,
		"score", result.Score,
		"findings", len(result.Findings),
		"units", stats.PromptUnits,
	)
	return result, nil
}

// ReviewAndComment runs the review and posts the result as a note on the
// merge request.
func (p *Pipeline) ReviewAndComment(ctx context.Context, req *core.ReviewRequest) (*core.ReviewResult, error) {
	result, err := p.Review(ctx, req)
	if err != nil {
		return nil, err
	}

	host, err := p.hostFactory(req.Ref)
	if err != nil {
		return nil, err
	}
	if err := host.CreateMRNote(ctx, req.Ref, result.Markdown()); err != nil {
		return nil, err
	}
	return result, nil
}

// ReviewAndUpdateDescription runs the review and appends the rendered result
// to the merge request description, keeping whatever the author wrote.
func (p *Pipeline) ReviewAndUpdateDescription(ctx context.Context, req *core.ReviewRequest) (*core.ReviewResult, error) {
	if req.Mode == core.ModeBranchCompare {
		return nil, core.NewError(core.ErrInvalidRequest, "updating a description requires a merge request, not a branch comparison")
	}

	result, err := p.Review(ctx, req)
	if err != nil {
		return nil, err
	}

	host, err := p.hostFactory(req.Ref)
	if err != nil {
		return nil, err
	}
	description := result.Markdown()
	if result.MR != nil && result.MR.Description != "" {
		description = result.MR.Description + "\n\n" + description
	}
	if err := host.UpdateMRDescription(ctx, req.Ref, description); err != nil {
		return nil, err
	}
	return result, nil
}

// fetch loads the merge request metadata and per-file diffs for the
// requested mode.
func (p *Pipeline) fetch(ctx context.Context, host core.HostClient, req *core.ReviewRequest) (*core.MRInfo, []core.FileDiff, error) {
	if req.Mode == core.ModeBranchCompare {
		files, err := host.CompareBranches(ctx, req.Ref, req.TargetBranch, req.SourceBranch)
		if err != nil {
			return nil, nil, err
		}
		info := &core.MRInfo{
			Title:        req.SourceBranch + " vs " + req.TargetBranch,
			SourceBranch: req.SourceBranch,
			TargetBranch: req.TargetBranch,
		}
		return info, files, nil
	}

	info, err := host.MRInfo(ctx, req.Ref)
	if err != nil {
		return nil, nil, err
	}
	files, err := host.DiffFiles(ctx, req.Ref)
	if err != nil {
		return nil, nil, err
	}
	return info, files, nil
}

// cacheLookup returns the cached result for this exact change, marked as
// served from cache. Branch-compare runs have no stable commit to key on and
// are never cached.
func (p *Pipeline) cacheLookup(ctx context.Context, req *core.ReviewRequest, info *core.MRInfo) *core.ReviewResult {
	if p.cache == nil || info.HeadSHA == "" {
		return nil
	}
	cached, err := p.cache.Get(ctx, req.Ref.ProjectID, info.HeadSHA, info.TargetBranch, req.Type)
	if err != nil {
		p.logger.Warn("cache lookup failed", "error", err)
		return nil
	}
	if cached == nil {
		return nil
	}
	copied := *cached
	copied.FromCache = true
	return &copied
}

// persist records a completed review. Budget-exhausted results are never
// persisted: a later budget or catalog change can make the same revision
// reviewable.
func (p *Pipeline) persist(ctx context.Context, req *core.ReviewRequest, info *core.MRInfo, result *core.ReviewResult) {
	if p.cache != nil && info.HeadSHA != "" {
		if err := p.cache.Set(ctx, req.Ref.ProjectID, info.HeadSHA, info.TargetBranch, req.Type, result); err != nil {
			p.logger.Warn("cache write failed", "error", err)
		}
	}
	if p.store != nil {
		if err := p.store.SaveReview(ctx, req.Ref.ProjectID, req.Ref.MRIID, result); err != nil {
			p.logger.Warn("history write failed", "error", err)
		}
	}
}

// buildUnits renders one prompt per chunk of selected files.
func (p *Pipeline) buildUnits(req *core.ReviewRequest, info *core.MRInfo, sel Selection, budget int) ([]core.PromptUnit, error) {
	chunks := Chunk(sel.Files, budget)
	units := make([]core.PromptUnit, 0, len(chunks))

	for _, files := range chunks {
		text, err := p.prompts.Render(req.Type, llm.DefaultProvider, llm.PromptData{
			Title:        info.Title,
			Description:  info.Description,
			Author:       info.Author,
			SourceBranch: info.SourceBranch,
			TargetBranch: info.TargetBranch,
			FileCount:    len(files),
			Diff:         RenderChunk(files),
		})
		if err != nil {
			return nil, err
		}
		units = append(units, core.PromptUnit{
			Text:          text,
			TokenEstimate: llm.EstimateTokens(text),
			Files:         files,
		})
	}
	return units, nil
}

// dispatchAll fans the prompt units out to the model with bounded
// concurrency. Any chunk failing fails the review; partial answers are
// discarded.
func (p *Pipeline) dispatchAll(ctx context.Context, req *core.ReviewRequest, units []core.PromptUnit) ([]ChunkResult, string, error) {
	results := make([]ChunkResult, len(units))
	models := make([]string, len(units))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Review.MaxConcurrentCalls)

	for i, unit := range units {
		g.Go(func() error {
			raw, usedModel, err := p.dispatcher.Dispatch(gctx, req.Model, llm.SystemPrompt, unit.Text)
			if err != nil {
				return err
			}
			parsed, err := llm.ParseReview(raw)
			if err != nil {
				return err
			}
			results[i] = ChunkResult{Unit: unit, Review: parsed}
			models[i] = usedModel
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, "", err
	}

	// When any chunk fell back, the fallback model is the one reported.
	primary := req.Model
	if primary == "" {
		primary = p.cfg.AI.DefaultModel
	}
	usedModel := models[0]
	for _, m := range models {
		if m != primary {
			usedModel = m
			break
		}
	}
	return results, usedModel, nil
}

// emptyResult is the terminal result when nothing reviewable remains after
// selection. No model is consulted; the status says why.
func (p *Pipeline) emptyResult(req *core.ReviewRequest, info *core.MRInfo, sel Selection, stats core.ReviewStats) *core.ReviewResult {
	summary := "No changes to review."
	if sel.Omitted > 0 {
		summary = "Changed files exceed the review token budget."
	}
	return &core.ReviewResult{
		ID:        uuid.NewString(),
		Status:    core.StatusBudgetExhausted,
		Type:      req.Type,
		Score:     10.0,
		Summary:   summary,
		MR:        info,
		Stats:     stats,
		Model:     "none",
		CreatedAt: time.Now().UTC(),
	}
}

// mapTimeout converts a failure caused by the review deadline into
// ErrReviewTimedOut so callers can distinguish it from upstream trouble.
func (p *Pipeline) mapTimeout(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return core.WrapError(core.ErrReviewTimedOut, "review deadline exceeded", err)
	}
	return err
}

func statsFor(sel Selection) core.ReviewStats {
	stats := core.ReviewStats{
		FilesAnalyzed: len(sel.Files),
		FilesExcluded: sel.Excluded + sel.Omitted,
	}
	for _, f := range sel.Files {
		stats.TotalAdditions += f.Added
		stats.TotalDeletions += f.Removed
	}
	return stats
}
