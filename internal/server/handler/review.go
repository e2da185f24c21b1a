// Package handler provides the HTTP handlers of the review API.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/123zhaozheng/gitlab-code-reviewer/internal/config"
	"github.com/123zhaozheng/gitlab-code-reviewer/internal/core"
	"github.com/123zhaozheng/gitlab-code-reviewer/internal/storage"
)

// maxBatchSize caps how many merge requests one batch call may queue.
const maxBatchSize = 10

// ReviewService is what the handlers need from the pipeline: synchronous
// reviews, plus the variants that write the result back to the merge request.
type ReviewService interface {
	core.Reviewer
	ReviewAndComment(ctx context.Context, req *core.ReviewRequest) (*core.ReviewResult, error)
	ReviewAndUpdateDescription(ctx context.Context, req *core.ReviewRequest) (*core.ReviewResult, error)
}

// ReviewHandler serves the review API.
type ReviewHandler struct {
	cfg        *config.Config
	service    ReviewService
	dispatcher core.JobDispatcher
	store      storage.Store
	logger     *slog.Logger
}

// NewReviewHandler wires the handler. store may be nil when history is not
// configured.
func NewReviewHandler(cfg *config.Config, service ReviewService, dispatcher core.JobDispatcher, store storage.Store, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{
		cfg:        cfg,
		service:    service,
		dispatcher: dispatcher,
		store:      store,
		logger:     logger,
	}
}

// reviewPayload is the inbound JSON shape shared by single and batch reviews.
type reviewPayload struct {
	GitLabURL    string `json:"gitlab_url"`
	ProjectID    string `json:"project_id"`
	MRID         int    `json:"mr_id"`
	AccessToken  string `json:"access_token"`
	ReviewType   string `json:"review_type"`
	AIModel      string `json:"ai_model"`
	Mode         string `json:"mode"`
	SourceBranch string `json:"source_branch"`
	TargetBranch string `json:"target_branch"`
}

func (p *reviewPayload) toRequest(defaultURL string) (*core.ReviewRequest, error) {
	rt, err := core.ParseReviewType(p.ReviewType)
	if err != nil {
		return nil, err
	}

	baseURL := p.GitLabURL
	if baseURL == "" {
		baseURL = defaultURL
	}

	req := &core.ReviewRequest{
		Ref: core.MergeRequestRef{
			BaseURL:   baseURL,
			ProjectID: p.ProjectID,
			MRIID:     p.MRID,
			Token:     p.AccessToken,
		},
		Mode:         core.ReviewMode(p.Mode),
		Type:         rt,
		SourceBranch: p.SourceBranch,
		TargetBranch: p.TargetBranch,
		Model:        p.AIModel,
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// Review handles POST /review: one synchronous review.
func (h *ReviewHandler) Review(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	result, err := h.service.Review(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// ReviewAndComment handles POST /review/comment: review, then post the
// result back to the merge request.
func (h *ReviewHandler) ReviewAndComment(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	result, err := h.service.ReviewAndComment(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// UpdateMR handles POST /review/update-mr: review, then append the result to
// the merge request description.
func (h *ReviewHandler) UpdateMR(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	result, err := h.service.ReviewAndUpdateDescription(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// ReviewTypes handles GET /review-types.
func (h *ReviewHandler) ReviewTypes(w http.ResponseWriter, _ *http.Request) {
	type typeInfo struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	var types []typeInfo
	for _, rt := range core.ReviewTypes() {
		types = append(types, typeInfo{Name: string(rt), Description: rt.Description()})
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"review_types": types})
}

// batchPayload is the inbound shape of POST /batch-review.
type batchPayload struct {
	Reviews []reviewPayload `json:"reviews"`
}

// BatchReview handles POST /batch-review: validate every entry, then queue
// them all for background processing. Validation failures reject the whole
// batch before anything is queued.
func (h *ReviewHandler) BatchReview(w http.ResponseWriter, r *http.Request) {
	var payload batchPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, core.WrapError(core.ErrInvalidRequest, "invalid JSON body", err))
		return
	}
	if len(payload.Reviews) == 0 {
		h.writeError(w, core.NewError(core.ErrInvalidRequest, "reviews must not be empty"))
		return
	}
	if len(payload.Reviews) > maxBatchSize {
		h.writeError(w, core.Errorf(core.ErrInvalidRequest, "batch size %d exceeds the maximum of %d", len(payload.Reviews), maxBatchSize))
		return
	}

	reqs := make([]*core.ReviewRequest, 0, len(payload.Reviews))
	for i := range payload.Reviews {
		req, err := payload.Reviews[i].toRequest(h.cfg.DefaultGitLabURL)
		if err != nil {
			h.writeError(w, err)
			return
		}
		reqs = append(reqs, req)
	}

	batchID := uuid.NewString()
	queued := 0
	for _, req := range reqs {
		if err := h.dispatcher.Dispatch(r.Context(), batchID, req); err != nil {
			h.logger.Warn("batch queue rejected review", "batch_id", batchID, "error", err)
			break
		}
		queued++
	}

	h.writeJSON(w, http.StatusAccepted, map[string]any{
		"batch_id": batchID,
		"queued":   queued,
		"total":    len(reqs),
	})
}

// LatestReview handles GET /review/latest. It is only routed when a history
// store is configured.
func (h *ReviewHandler) LatestReview(w http.ResponseWriter, r *http.Request) {
	project := r.URL.Query().Get("project_id")
	mrIID, err := strconv.Atoi(r.URL.Query().Get("mr_id"))
	if err != nil || project == "" {
		h.writeError(w, core.NewError(core.ErrInvalidRequest, "project_id and numeric mr_id query parameters are required"))
		return
	}

	result, err := h.store.LatestReview(r.Context(), project, mrIID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *ReviewHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (*core.ReviewRequest, bool) {
	var payload reviewPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, core.WrapError(core.ErrInvalidRequest, "invalid JSON body", err))
		return nil, false
	}
	req, err := payload.toRequest(h.cfg.DefaultGitLabURL)
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return req, true
}

func (h *ReviewHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError maps pipeline error kinds onto HTTP status codes.
func (h *ReviewHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch core.KindOf(err) {
	case core.ErrInvalidRequest:
		status = http.StatusBadRequest
	case core.ErrNotFound:
		status = http.StatusNotFound
	case core.ErrUpstreamUnavailable, core.ErrModelUnavailable, core.ErrMalformedModelOutput:
		status = http.StatusBadGateway
	case core.ErrReviewTimedOut:
		status = http.StatusGatewayTimeout
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	} else {
		h.logger.Warn("request rejected", "status", status, "error", err)
	}
	h.writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  string(core.KindOf(err)),
	})
}
