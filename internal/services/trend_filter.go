package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/marketeam/adpilot/internal/llm"
	"github.com/marketeam/adpilot/internal/metrics"
	"github.com/marketeam/adpilot/pkg/models"
)

// TrendFilter removes trend categories that are clearly unsuitable for a
// marketing campaign. Filtering is advisory: any failure returns the input
// unchanged, and a graduated fallback guarantees a non-empty result whenever
// the input was non-empty.
type TrendFilter struct {
	llm            *llm.Client
	safeCategories []string
	logger         *logrus.Logger
}

func NewTrendFilter(llmClient *llm.Client, safeCategories []string, logger *logrus.Logger) *TrendFilter {
	return &TrendFilter{
		llm:            llmClient,
		safeCategories: safeCategories,
		logger:         logger,
	}
}

type filterDecision struct {
	Category string `json:"category"`
	Action   string `json:"action"`
	Reason   string `json:"reason,omitempty"`
}

type filterResponse struct {
	Trends []filterDecision `json:"trends"`
}

// Filter classifies every category as KEEP or REMOVE. Without an LLM client
// the filter is a pass-through.
func (f *TrendFilter) Filter(
	ctx context.Context,
	trends []models.TrendCategory,
	campaignTheme string,
	companyValues []string,
) []models.TrendCategory {
	if f.llm == nil {
		f.logger.Warn("No LLM client, returning unfiltered trends")
		return trends
	}
	if len(trends) == 0 {
		return trends
	}
	if campaignTheme == "" {
		campaignTheme = "general marketing campaign"
	}

	kept, err := f.classify(ctx, trends, campaignTheme, companyValues)
	if err != nil {
		f.logger.WithError(err).Warn("Trend filtering failed, returning original trends")
		return trends
	}

	// Graduated fallback: a filter that removes everything falls back to
	// the safe-category allowlist, and past that to the original input.
	if len(kept) == 0 {
		f.logger.Warn("All trends were filtered out, applying safe-category fallback")
		kept = f.allowlisted(trends)
		if len(kept) == 0 {
			f.logger.Warn("No safe categories present, keeping all trends")
			kept = trends
		}
	}

	f.logger.WithFields(logrus.Fields{
		"input": len(trends),
		"kept":  len(kept),
	}).Info("Filtered trends for campaign")
	return kept
}

func (f *TrendFilter) classify(
	ctx context.Context,
	trends []models.TrendCategory,
	campaignTheme string,
	companyValues []string,
) ([]models.TrendCategory, error) {
	var trendsText strings.Builder
	for _, trend := range trends {
		fmt.Fprintf(&trendsText, "- Category: %s, Interests: %s, Popularity: %d\n",
			trend.Category, strings.Join(trend.Interests, ", "), trend.PopularityScore)
	}

	system := `You are an expert content moderator for marketing campaigns.
Your task is to filter out ONLY trends that are clearly inappropriate:
1. Violence, tragedies, disasters, or negative events
2. Adult content, gambling, or illegal activities
3. Highly controversial political or religious topics

Be LENIENT - keep positive and neutral trends related to technology, sports,
entertainment, travel, food, and creative hobbies.

Return only the trend categories that are suitable for a safe, positive marketing campaign.`

	user := fmt.Sprintf(`Campaign Theme: %s
Company Values: %s

Please review these trends and identify which ones are suitable for our marketing campaign:

%s
For each trend, respond with "KEEP" if it's suitable or "REMOVE" with a brief reason if it should be filtered out.
Format your response as a JSON object with a "trends" array of objects containing: category, action ("KEEP" or "REMOVE"), reason (optional).`,
		campaignTheme, strings.Join(companyValues, ", "), trendsText.String())

	content, err := f.llm.Complete(ctx, llm.ChatRequest{
		Tier:        metrics.TierFast,
		System:      system,
		User:        user,
		Temperature: 0.3,
		MaxTokens:   1500,
		JSONMode:    true,
	})
	if err != nil {
		return nil, err
	}

	var decoded filterResponse
	if err := json.Unmarshal([]byte(content), &decoded); err != nil {
		return nil, fmt.Errorf("parse filter response: %w", err)
	}

	keep := make(map[string]bool)
	for _, decision := range decoded.Trends {
		if strings.EqualFold(decision.Action, "KEEP") {
			keep[decision.Category] = true
		} else if decision.Reason != "" {
			f.logger.WithFields(logrus.Fields{
				"category": decision.Category,
				"reason":   decision.Reason,
			}).Info("Trend removed from campaign")
		}
	}

	kept := make([]models.TrendCategory, 0, len(trends))
	for _, trend := range trends {
		if keep[trend.Category] {
			kept = append(kept, trend)
		}
	}
	return kept, nil
}

func (f *TrendFilter) allowlisted(trends []models.TrendCategory) []models.TrendCategory {
	safe := make(map[string]bool, len(f.safeCategories))
	for _, c := range f.safeCategories {
		safe[c] = true
	}
	var kept []models.TrendCategory
	for _, trend := range trends {
		if safe[trend.Category] {
			kept = append(kept, trend)
		}
	}
	return kept
}
