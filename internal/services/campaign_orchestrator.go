package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/marketeam/adpilot/internal/config"
	"github.com/marketeam/adpilot/internal/llm"
	"github.com/marketeam/adpilot/internal/metrics"
	"github.com/marketeam/adpilot/internal/store"
	"github.com/marketeam/adpilot/pkg/models"
)

// ErrNoMatches aborts a run in which not a single user matched any trend.
// Individual users without matches are tolerated; an empty join is not.
var ErrNoMatches = errors.New("no users matched any trends")

// previewFormats are the three aspect-ratio variants generated for the one
// sampled preview user per run.
var previewFormats = []struct {
	Name   string
	Width  int
	Height int
}{
	{"square", 1024, 1024},
	{"story", 768, 1344},
	{"banner", 1344, 768},
}

// CampaignRequest is one campaign-generation invocation.
type CampaignRequest struct {
	ProductDescription string
	CampaignTheme      string
	Style              models.StylePreset
	ProductImage       []byte
	ProductImageMIME   string
}

// CampaignRun holds all intermediate and final state of a single run. Each
// run owns its own maps, so concurrent runs never share mutable state, and
// the run's tally counts only its own calls.
type CampaignRun struct {
	ID        uuid.UUID
	StartedAt time.Time
	Tally     *metrics.Tally

	mu                sync.Mutex
	matches           map[int][]models.InterestMatch
	structuredPrompts map[string]*models.StructuredPrompt
	optimizedPrompts  map[string]string
	images            map[string]*models.GeneratedImage

	Response *models.CampaignResponse
}

func newCampaignRun() *CampaignRun {
	return &CampaignRun{
		ID:                uuid.New(),
		StartedAt:         time.Now(),
		Tally:             &metrics.Tally{},
		matches:           make(map[int][]models.InterestMatch),
		structuredPrompts: make(map[string]*models.StructuredPrompt),
		optimizedPrompts:  make(map[string]string),
		images:            make(map[string]*models.GeneratedImage),
	}
}

// MatchResults returns the run's per-user matches, ordered by user ID.
func (r *CampaignRun) MatchResults(users *store.UserStore) []models.UserMatchResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int, 0, len(r.matches))
	for id := range r.matches {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	results := make([]models.UserMatchResult, 0, len(ids))
	for _, id := range ids {
		name := ""
		if u := users.ByID(id); u != nil {
			name = u.Name
		}
		results = append(results, models.UserMatchResult{
			UserID:     id,
			UserName:   name,
			Matches:    r.matches[id],
			MatchCount: len(r.matches[id]),
		})
	}
	return results
}

// Prompts returns a copy of the run's optimized prompts by subject key.
func (r *CampaignRun) Prompts() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.optimizedPrompts))
	for k, v := range r.optimizedPrompts {
		out[k] = v
	}
	return out
}

// Images returns a copy of the run's generated images by subject key.
func (r *CampaignRun) Images() map[string]*models.GeneratedImage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*models.GeneratedImage, len(r.images))
	for k, v := range r.images {
		out[k] = v
	}
	return out
}

// CampaignOrchestrator coordinates a campaign run end to end: trend loading,
// optional filtering, parallel interest matching, parallel prompt building
// and optimization, one concurrent image-generation batch, and keyed
// aggregation that survives partial failure.
type CampaignOrchestrator struct {
	users     *store.UserStore
	trends    *store.TrendStore
	matcher   *InterestMatcher
	filter    *TrendFilter
	builder   *PromptBuilder
	optimizer *PromptOptimizer
	generator *ImageGenerator
	llm       *llm.Client
	cfg       config.CampaignConfig
	logger    *logrus.Logger

	// pickPreview selects which of n matched users gets the preview-format
	// variants. Overridable in tests.
	pickPreview func(n int) int

	lastMu  sync.RWMutex
	lastRun *CampaignRun
}

func NewCampaignOrchestrator(
	users *store.UserStore,
	trends *store.TrendStore,
	matcher *InterestMatcher,
	filter *TrendFilter,
	builder *PromptBuilder,
	optimizer *PromptOptimizer,
	generator *ImageGenerator,
	llmClient *llm.Client,
	cfg config.CampaignConfig,
	logger *logrus.Logger,
) *CampaignOrchestrator {
	return &CampaignOrchestrator{
		users:       users,
		trends:      trends,
		matcher:     matcher,
		filter:      filter,
		builder:     builder,
		optimizer:   optimizer,
		generator:   generator,
		llm:         llmClient,
		cfg:         cfg,
		logger:      logger,
		pickPreview: rand.Intn,
	}
}

// LastRun returns the most recently completed run, or nil.
func (o *CampaignOrchestrator) LastRun() *CampaignRun {
	o.lastMu.RLock()
	defer o.lastMu.RUnlock()
	return o.lastRun
}

// SubjectKey is the composite identifier an image is aggregated under.
func SubjectKey(userID int, interest string) string {
	return fmt.Sprintf("user:%d:%s", userID, interest)
}

// PreviewKey identifies one preview-format image for the sampled user.
func PreviewKey(format string, userID int) string {
	return fmt.Sprintf("preview:%s:%d", format, userID)
}

// GenerateCampaign executes one campaign run. Only missing pipeline inputs
// (no trend data, no matches at all) abort the run; everything else is
// absorbed into per-item statuses.
func (o *CampaignOrchestrator) GenerateCampaign(ctx context.Context, req CampaignRequest) (*models.CampaignResponse, error) {
	if !models.ValidStylePreset(req.Style) {
		req.Style = models.StyleRealistic
	}

	trends, err := o.trends.Categories()
	if err != nil {
		metrics.RecordCampaignRun("no_trends")
		return nil, err
	}

	run := newCampaignRun()
	ctx = metrics.WithTally(ctx, run.Tally)

	o.logger.WithFields(logrus.Fields{
		"run_id":  run.ID,
		"product": req.ProductDescription,
		"style":   req.Style,
	}).Info("Starting campaign run")

	// The uploaded product photo, when present, feeds both the optimizer
	// (as an analysis text) and the generator (as a reference image).
	imageAnalysis := ""
	referenceImage := ""
	if len(req.ProductImage) > 0 {
		imageAnalysis = o.llm.AnalyzeImage(ctx, req.ProductImage, req.ProductImageMIME)
		referenceImage = base64.StdEncoding.EncodeToString(req.ProductImage)
	}

	// Trend filtering is advisory and feature-flagged. The filtered set is
	// passed forward explicitly; the store's snapshot is never touched.
	campaignTrends := trends
	if o.cfg.TrendFilterEnabled {
		campaignTrends = o.filter.Filter(ctx, trends, req.CampaignTheme, o.cfg.CompanyValues)
	}

	if err := o.matchAllUsers(ctx, run, campaignTrends); err != nil {
		metrics.RecordCampaignRun("no_matches")
		return nil, err
	}

	matchedIDs := o.matchedUserIDs(run)
	previewUserID := matchedIDs[o.pickPreview(len(matchedIDs))]

	hasReference := referenceImage != ""
	o.buildAndOptimizePrompts(ctx, run, req, matchedIDs, previewUserID, imageAnalysis, hasReference)

	o.generateImages(ctx, run, referenceImage, previewUserID)

	response := o.aggregate(run, matchedIDs, previewUserID)
	run.Response = response

	o.lastMu.Lock()
	o.lastRun = run
	o.lastMu.Unlock()

	metrics.RecordCampaignRun("completed")
	o.logger.WithFields(logrus.Fields{
		"run_id":   run.ID,
		"users":    len(response.Results),
		"duration": response.Duration,
	}).Info("Campaign run completed")
	return response, nil
}

// matchAllUsers fans out interest matching across the roster with a bounded
// concurrency limit and joins on the full set. Users without matches are
// skipped; a join with zero matched users aborts the run.
func (o *CampaignOrchestrator) matchAllUsers(ctx context.Context, run *CampaignRun, trends []models.TrendCategory) error {
	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(o.cfg.MaxConcurrency)

	for _, user := range o.users.All() {
		grp.Go(func() error {
			matches := o.matcher.Match(grpCtx, user.AllInterests(), trends, user.Name)
			if len(matches) == 0 {
				return nil
			}
			run.mu.Lock()
			run.matches[user.ID] = matches
			run.mu.Unlock()
			return nil
		})
	}
	_ = grp.Wait()

	run.mu.Lock()
	matched := len(run.matches)
	run.mu.Unlock()
	if matched == 0 {
		return ErrNoMatches
	}

	o.logger.WithFields(logrus.Fields{
		"run_id":  run.ID,
		"matched": matched,
		"total":   len(o.users.All()),
	}).Info("Interest matching completed")
	return nil
}

func (o *CampaignOrchestrator) matchedUserIDs(run *CampaignRun) []int {
	run.mu.Lock()
	defer run.mu.Unlock()
	ids := make([]int, 0, len(run.matches))
	for id := range run.matches {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// buildAndOptimizePrompts builds one structured prompt per (user, interest)
// pair synchronously, then fans out the optimizer calls. Optimizer failures
// already degrade to the deterministic flattening inside Optimize, so every
// pair ends up with a prompt. The preview user additionally gets one
// trend-scene prompt reused across the three preview formats.
func (o *CampaignOrchestrator) buildAndOptimizePrompts(
	ctx context.Context,
	run *CampaignRun,
	req CampaignRequest,
	matchedIDs []int,
	previewUserID int,
	imageAnalysis string,
	hasReference bool,
) {
	type optimizeTask struct {
		key     string
		user    *models.UserProfile
		matches []models.InterestMatch
		base    *models.StructuredPrompt
	}

	var tasks []optimizeTask
	run.mu.Lock()
	for _, id := range matchedIDs {
		user := o.users.ByID(id)
		if user == nil {
			continue
		}
		for _, match := range run.matches[id] {
			key := SubjectKey(id, match.MatchedInterest)
			base := o.builder.BuildForUser(req.ProductDescription, user, []models.InterestMatch{match}, "", hasReference)
			run.structuredPrompts[key] = base
			tasks = append(tasks, optimizeTask{key: key, user: user, matches: []models.InterestMatch{match}, base: base})
		}
	}

	// Preview variants share one optimized prompt built from the sampled
	// user's strongest match.
	if previewUser := o.users.ByID(previewUserID); previewUser != nil {
		if userMatches := run.matches[previewUserID]; len(userMatches) > 0 {
			top := userMatches[0]
			base := o.builder.BuildForTrend(req.ProductDescription, top.Category, []string{top.MatchedInterest}, "", hasReference)
			for _, format := range previewFormats {
				run.structuredPrompts[PreviewKey(format.Name, previewUserID)] = base
			}
			tasks = append(tasks, optimizeTask{
				key:     PreviewKey(previewFormats[0].Name, previewUserID),
				user:    previewUser,
				matches: []models.InterestMatch{top},
				base:    base,
			})
		}
	}
	run.mu.Unlock()

	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(o.cfg.MaxConcurrency)
	for _, task := range tasks {
		grp.Go(func() error {
			optimized := o.optimizer.Optimize(grpCtx, req.ProductDescription, task.user, task.matches, task.base, req.Style, imageAnalysis)
			run.mu.Lock()
			run.optimizedPrompts[task.key] = optimized
			run.mu.Unlock()
			return nil
		})
	}
	_ = grp.Wait()

	// The preview formats reuse the one preview prompt.
	run.mu.Lock()
	if previewPrompt, ok := run.optimizedPrompts[PreviewKey(previewFormats[0].Name, previewUserID)]; ok {
		for _, format := range previewFormats[1:] {
			run.optimizedPrompts[PreviewKey(format.Name, previewUserID)] = previewPrompt
		}
	}
	run.mu.Unlock()

	o.logger.WithFields(logrus.Fields{
		"run_id":  run.ID,
		"prompts": len(run.Prompts()),
	}).Info("Prompt optimization completed")
}

// generateImages submits every optimized prompt as a single concurrent
// batch. Absent keys in the result map are tolerated and show up as failed
// entries during aggregation.
func (o *CampaignOrchestrator) generateImages(ctx context.Context, run *CampaignRun, referenceImage string, previewUserID int) {
	specs := make(map[string]GenerationSpec)

	previewDims := make(map[string]models.ImageDimensions, len(previewFormats))
	for _, format := range previewFormats {
		previewDims[PreviewKey(format.Name, previewUserID)] = models.ImageDimensions{Width: format.Width, Height: format.Height}
	}

	for key, prompt := range run.Prompts() {
		spec := GenerationSpec{
			Prompt:         prompt,
			Width:          o.cfg.ImageWidth,
			Height:         o.cfg.ImageHeight,
			ReferenceImage: referenceImage,
		}
		if dims, ok := previewDims[key]; ok {
			spec.Width = dims.Width
			spec.Height = dims.Height
		}
		specs[key] = spec
	}

	images := o.generator.GenerateMany(ctx, specs)

	run.mu.Lock()
	for key, image := range images {
		run.images[key] = image
	}
	run.mu.Unlock()
}

// aggregate maps images back onto users by composite key. Every matched
// interest yields an entry; a failed or absent image becomes a failed entry
// with a nil URL rather than dropping the user.
func (o *CampaignOrchestrator) aggregate(run *CampaignRun, matchedIDs []int, previewUserID int) *models.CampaignResponse {
	run.mu.Lock()
	defer run.mu.Unlock()

	results := make([]models.CampaignResult, 0, len(matchedIDs))
	for _, id := range matchedIDs {
		user := o.users.ByID(id)
		if user == nil {
			continue
		}

		result := models.CampaignResult{
			UserID:   id,
			UserName: user.Name,
		}
		for _, match := range run.matches[id] {
			result.Interests = append(result.Interests, match.MatchedInterest)
			key := SubjectKey(id, match.MatchedInterest)
			entry := models.InterestImage{Interest: match.MatchedInterest}

			image, ok := run.images[key]
			switch {
			case ok && image.Status == models.ImageGenerated:
				url := image.ImageURL
				entry.ImageURL = &url
				entry.Status = models.ImageGenerated
				result.ImagesCount++
			case ok:
				entry.Status = image.Status
				entry.Message = fmt.Sprintf("image generation ended with status %s", image.Status)
			default:
				entry.Status = models.ImageFailed
				entry.Message = "image generation unavailable"
			}
			result.GeneratedImages = append(result.GeneratedImages, entry)
		}
		results = append(results, result)
	}

	var previews []models.GeneratedImage
	for _, format := range previewFormats {
		if image, ok := run.images[PreviewKey(format.Name, previewUserID)]; ok {
			previews = append(previews, *image)
		}
	}

	return &models.CampaignResponse{
		RunID:         run.ID,
		PreviewUserID: previewUserID,
		Results:       results,
		Previews:      previews,
		CallTally:     run.Tally.Snapshot(),
		GeneratedAt:   time.Now(),
		Duration:      time.Since(run.StartedAt),
	}
}
