package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xeipuuv/gojsonschema"

	"github.com/marketeam/adpilot/pkg/models"
)

// ErrNoTrendData is returned when no trend snapshot has been loaded yet, or
// the loaded snapshot is empty.
var ErrNoTrendData = errors.New("no trend data available")

const trendSchema = `{
	"type": "object",
	"required": ["trends"],
	"properties": {
		"trends": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["category", "interests", "popularity_score"],
				"properties": {
					"category": {"type": "string", "minLength": 1},
					"interests": {"type": "array", "items": {"type": "string"}},
					"popularity_score": {"type": "integer", "minimum": 0, "maximum": 100}
				}
			}
		},
		"total_users_analyzed": {"type": "integer"}
	}
}`

// TrendStore caches the most recent trend snapshot. The scrapers rewrite the
// trend file out of band; Refresh re-reads it on demand.
type TrendStore struct {
	path   string
	logger *logrus.Logger

	mu         sync.RWMutex
	snapshot   *models.TrendSnapshot
	lastUpdate time.Time
}

func NewTrendStore(path string, logger *logrus.Logger) *TrendStore {
	return &TrendStore{path: path, logger: logger}
}

// Refresh re-reads and validates the trend file, replacing the cached
// snapshot on success.
func (s *TrendStore) Refresh() (*models.TrendSnapshot, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read trends file: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(trendSchema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return nil, fmt.Errorf("validate trends file: %w", err)
	}
	if !result.Valid() {
		return nil, fmt.Errorf("trends file is invalid: %s", schemaErrors(result))
	}

	var snapshot models.TrendSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("parse trends file: %w", err)
	}

	s.mu.Lock()
	s.snapshot = &snapshot
	s.lastUpdate = time.Now()
	s.mu.Unlock()

	s.logger.WithField("categories", len(snapshot.Trends)).Info("Trend data refreshed")
	return &snapshot, nil
}

// Snapshot returns the cached snapshot with its last-update timestamp.
func (s *TrendStore) Snapshot() (*models.TrendSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil || len(s.snapshot.Trends) == 0 {
		return nil, ErrNoTrendData
	}
	out := *s.snapshot
	last := s.lastUpdate
	out.LastUpdate = &last
	return &out, nil
}

// Categories returns the cached trend categories.
func (s *TrendStore) Categories() ([]models.TrendCategory, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Trends, nil
}

// ByCategory returns one category by name, case-insensitively.
func (s *TrendStore) ByCategory(name string) (*models.TrendCategory, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	for i := range snap.Trends {
		if strings.EqualFold(snap.Trends[i].Category, name) {
			return &snap.Trends[i], nil
		}
	}
	return nil, fmt.Errorf("category %q not found", name)
}

// TopInterests returns the N highest-scoring interests across categories.
func (s *TrendStore) TopInterests(limit int) ([]models.RankedInterest, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}

	var ranked []models.RankedInterest
	for _, trend := range snap.Trends {
		for _, interest := range trend.Interests {
			ranked = append(ranked, models.RankedInterest{
				Interest: interest,
				Category: trend.Category,
				Score:    trend.PopularityScore,
			})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}
