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

// llmRelevanceThreshold is the minimum confidence an LLM-proposed match
// needs to be emitted. The exact-match strategy always emits 100.
const llmRelevanceThreshold = 80

// defaultPopularityScore stands in when an LLM match names a category that
// is not in the trend set. A documented approximation, not an error.
const defaultPopularityScore = 80

// InterestMatcher maps a user's free-text interests onto specific trend
// interests. The primary path is one LLM call per user; without a client,
// or on any call failure, it degrades to the deterministic exact matcher.
// Match never returns an error.
type InterestMatcher struct {
	llm    *llm.Client
	exact  *ExactMatcher
	logger *logrus.Logger
}

func NewInterestMatcher(llmClient *llm.Client, logger *logrus.Logger) *InterestMatcher {
	return &InterestMatcher{
		llm:    llmClient,
		exact:  NewExactMatcher(),
		logger: logger,
	}
}

type llmMatchResponse struct {
	Matches []struct {
		UserInterest         string `json:"user_interest"`
		MatchedTrendInterest string `json:"matched_trend_interest"`
		Category             string `json:"category"`
		RelevanceScore       int    `json:"relevance_score"`
		Reasoning            string `json:"reasoning"`
	} `json:"matches"`
}

// Match returns the trend matches for one user's interest list. The result
// may be empty but is never an error.
func (m *InterestMatcher) Match(
	ctx context.Context,
	userInterests []string,
	trends []models.TrendCategory,
	userName string,
) []models.InterestMatch {
	if m.llm == nil {
		return m.exact.Match(userInterests, trends)
	}

	matches, err := m.matchWithLLM(ctx, userInterests, trends, userName)
	if err != nil {
		m.logger.WithError(err).WithField("user", userName).
			Warn("LLM interest matching failed, falling back to exact matching")
		return m.exact.Match(userInterests, trends)
	}

	m.logger.WithFields(logrus.Fields{
		"user":    userName,
		"matches": len(matches),
	}).Info("LLM matched interests")
	return matches
}

func (m *InterestMatcher) matchWithLLM(
	ctx context.Context,
	userInterests []string,
	trends []models.TrendCategory,
	userName string,
) ([]models.InterestMatch, error) {
	var trendsText strings.Builder
	for _, trend := range trends {
		fmt.Fprintf(&trendsText, "Category: %s\nInterests: %s\n\n", trend.Category, strings.Join(trend.Interests, ", "))
	}

	system := `You are an expert at matching user interests with trending topics.
Your task is to find intelligent matches between user interests and available trend interests.

IMPORTANT RULES:
1. Match semantically similar interests (e.g., "Marathon Training" matches "Running")
2. Match broader interests to specific ones (e.g., "Gaming" matches "Video Gaming", "PC Gaming", etc.)
3. Match related concepts (e.g., "Cooking" matches "Baking", "Meal Prep", "Recipe", etc.)
4. Return the SPECIFIC trend interest, NOT the general category (e.g., "Football", not "Sports")
5. Only include confident matches (relevance > 80%)
6. One user interest can match multiple trend interests if relevant

FORMAT: Return JSON with array "matches", each entry containing:
- user_interest: original user interest
- matched_trend_interest: specific trend interest name
- category: trend category
- relevance_score: 0-100 (how confident the match is)
- reasoning: brief explanation why they match`

	user := fmt.Sprintf(`User Profile: %s
User Interests: %s

Available Trends:
%s
Find all relevant matches between the user's interests and the trend interests.
Return ONLY the JSON object, no additional text.`, userName, strings.Join(userInterests, ", "), trendsText.String())

	content, err := m.llm.Complete(ctx, llm.ChatRequest{
		Tier:        metrics.TierFast,
		System:      system,
		User:        user,
		Temperature: 0.3,
		MaxTokens:   2000,
		JSONMode:    true,
	})
	if err != nil {
		return nil, err
	}

	var decoded llmMatchResponse
	if err := json.Unmarshal([]byte(content), &decoded); err != nil {
		return nil, fmt.Errorf("parse match response: %w", err)
	}

	popularityByCategory := make(map[string]int, len(trends))
	for _, trend := range trends {
		popularityByCategory[trend.Category] = trend.PopularityScore
	}

	matches := make([]models.InterestMatch, 0, len(decoded.Matches))
	for _, match := range decoded.Matches {
		if match.RelevanceScore <= llmRelevanceThreshold {
			continue
		}
		popularity, ok := popularityByCategory[match.Category]
		if !ok {
			popularity = defaultPopularityScore
		}
		matches = append(matches, models.InterestMatch{
			UserInterest:    match.UserInterest,
			MatchedInterest: match.MatchedTrendInterest,
			Category:        match.Category,
			RelevanceScore:  match.RelevanceScore,
			PopularityScore: popularity,
			Reasoning:       match.Reasoning,
		})
	}
	return matches, nil
}

// ExactMatcher is the deterministic matching strategy: case-insensitive
// equality between user interests and the flattened trend-interest set.
// It is side-effect-free and used directly when no LLM is configured.
type ExactMatcher struct{}

func NewExactMatcher() *ExactMatcher {
	return &ExactMatcher{}
}

type trendEntry struct {
	interest   string
	category   string
	popularity int
}

// Match returns an exact match with relevance 100 for every user interest
// that equals a trend interest, ignoring case.
func (e *ExactMatcher) Match(userInterests []string, trends []models.TrendCategory) []models.InterestMatch {
	lookup := make(map[string]trendEntry)
	for _, trend := range trends {
		for _, interest := range trend.Interests {
			lookup[strings.ToLower(interest)] = trendEntry{
				interest:   interest,
				category:   trend.Category,
				popularity: trend.PopularityScore,
			}
		}
	}

	matches := make([]models.InterestMatch, 0)
	for _, userInterest := range userInterests {
		entry, ok := lookup[strings.ToLower(userInterest)]
		if !ok {
			continue
		}
		matches = append(matches, models.InterestMatch{
			UserInterest:    userInterest,
			MatchedInterest: entry.interest,
			Category:        entry.category,
			RelevanceScore:  100,
			PopularityScore: entry.popularity,
			Reasoning:       "Exact match",
		})
	}
	return matches
}
