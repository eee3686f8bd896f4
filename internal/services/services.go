package services

import (
	"github.com/sirupsen/logrus"

	"github.com/marketeam/adpilot/internal/config"
	"github.com/marketeam/adpilot/internal/httpclient"
	"github.com/marketeam/adpilot/internal/imagegen"
	"github.com/marketeam/adpilot/internal/llm"
	"github.com/marketeam/adpilot/internal/store"
)

type Services struct {
	LLM            *llm.Client
	Users          *store.UserStore
	Trends         *store.TrendStore
	Matcher        *InterestMatcher
	TrendFilter    *TrendFilter
	PromptBuilder  *PromptBuilder
	Optimizer      *PromptOptimizer
	ImageGenerator *ImageGenerator
	Orchestrator   *CampaignOrchestrator
}

// New wires the pipeline. Missing provider credentials downgrade the run to
// the deterministic paths instead of failing startup: the matcher falls back
// to exact matching, the optimizer to flattened prompts, and image
// generation is skipped.
func New(cfg *config.Config, logger *logrus.Logger) (*Services, error) {
	users, err := store.LoadUsers(cfg.Data.UsersFile, logger)
	if err != nil {
		return nil, err
	}
	trends := store.NewTrendStore(cfg.Data.TrendsFile, logger)
	if _, err := trends.Refresh(); err != nil {
		// A missing trend file is not fatal; runs fail until a refresh
		// succeeds.
		logger.WithError(err).Warn("Trend data not loaded at startup")
	}

	var llmClient *llm.Client
	if cfg.LLM.APIKey != "" {
		llmClient, err = llm.New(cfg.LLM, httpclient.New(httpclient.Options{Timeout: cfg.LLM.Timeout}), logger)
		if err != nil {
			return nil, err
		}
	} else {
		logger.Warn("No LLM API key configured, running with deterministic fallbacks")
	}

	var imageClient *imagegen.Client
	if cfg.ImageGen.APIKey != "" {
		imageClient, err = imagegen.New(cfg.ImageGen, httpclient.New(httpclient.Options{Timeout: cfg.ImageGen.Timeout}), logger)
		if err != nil {
			return nil, err
		}
	} else {
		logger.Warn("No image generation API key configured, image generation disabled")
	}

	builder := NewPromptBuilder()
	matcher := NewInterestMatcher(llmClient, logger)
	trendFilter := NewTrendFilter(llmClient, cfg.Campaign.SafeCategories, logger)
	optimizer := NewPromptOptimizer(llmClient, builder, logger)
	generator := NewImageGenerator(imageClient, cfg.ImageGen, cfg.Campaign.MaxConcurrency, logger)

	orchestrator := NewCampaignOrchestrator(
		users, trends, matcher, trendFilter, builder, optimizer, generator,
		llmClient, cfg.Campaign, logger,
	)

	return &Services{
		LLM:            llmClient,
		Users:          users,
		Trends:         trends,
		Matcher:        matcher,
		TrendFilter:    trendFilter,
		PromptBuilder:  builder,
		Optimizer:      optimizer,
		ImageGenerator: generator,
		Orchestrator:   orchestrator,
	}, nil
}
