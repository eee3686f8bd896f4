package models

import "time"

// TrendCategory is one named cluster of trending topics with a popularity
// score, as delivered by the trend source file.
type TrendCategory struct {
	Category        string   `json:"category"`
	Interests       []string `json:"interests"`
	PopularityScore int      `json:"popularity_score"`
}

// TrendSnapshot is the trend data set for one refresh, plus the metadata the
// scraper attaches to it.
type TrendSnapshot struct {
	Trends             []TrendCategory `json:"trends"`
	Timestamp          time.Time       `json:"timestamp"`
	TotalUsersAnalyzed int             `json:"total_users_analyzed,omitempty"`
	LastUpdate         *time.Time      `json:"last_update,omitempty"`
}

// RankedInterest is an interest annotated with its category and popularity,
// used by the top-interests view.
type RankedInterest struct {
	Interest string `json:"interest"`
	Category string `json:"category"`
	Score    int    `json:"score"`
}

// InterestMatch associates one of a user's stated interests with a specific
// trend-taxonomy entry. RelevanceScore is 0-100; the LLM path only emits
// matches above 80, the exact-match path always emits 100.
type InterestMatch struct {
	UserInterest    string `json:"user_interest"`
	MatchedInterest string `json:"matched_interest"`
	Category        string `json:"category"`
	RelevanceScore  int    `json:"relevance_score"`
	PopularityScore int    `json:"popularity_score"`
	Reasoning       string `json:"reasoning"`
}

// UserMatchResult is the per-user outcome of trend matching.
type UserMatchResult struct {
	UserID     int             `json:"user_id"`
	UserName   string          `json:"user_name"`
	Matches    []InterestMatch `json:"matched_interests"`
	MatchCount int             `json:"match_count"`
}
