package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/xeipuuv/gojsonschema"

	"github.com/marketeam/adpilot/pkg/models"
)

const userSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["id", "name", "interests"],
		"properties": {
			"id": {"type": "integer"},
			"name": {"type": "string", "minLength": 1},
			"age": {"type": "integer", "minimum": 0},
			"location": {"type": "string"},
			"language": {"type": "string"},
			"occupation": {"type": "string"},
			"interests": {"type": "array", "items": {"type": "string"}},
			"hobbies": {"type": "array", "items": {"type": "string"}}
		}
	}
}`

// UserStore holds the fixed user roster. It is loaded once at startup and
// read-only afterwards.
type UserStore struct {
	users  []models.UserProfile
	byID   map[int]*models.UserProfile
	logger *logrus.Logger
}

// LoadUsers reads and validates the user roster file. Duplicate IDs are a
// load error because every downstream cache is keyed by user ID.
func LoadUsers(path string, logger *logrus.Logger) (*UserStore, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read users file: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(userSchema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return nil, fmt.Errorf("validate users file: %w", err)
	}
	if !result.Valid() {
		return nil, fmt.Errorf("users file is invalid: %s", schemaErrors(result))
	}

	var users []models.UserProfile
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("parse users file: %w", err)
	}

	byID := make(map[int]*models.UserProfile, len(users))
	for i := range users {
		u := &users[i]
		if _, exists := byID[u.ID]; exists {
			return nil, fmt.Errorf("users file contains duplicate id %d", u.ID)
		}
		byID[u.ID] = u
	}

	logger.WithField("count", len(users)).Info("Loaded user profiles")
	return &UserStore{users: users, byID: byID, logger: logger}, nil
}

// All returns every profile in file order.
func (s *UserStore) All() []models.UserProfile {
	return s.users
}

// ByID returns a profile by its ID, or nil.
func (s *UserStore) ByID(id int) *models.UserProfile {
	return s.byID[id]
}

// Interests returns the combined interests and hobbies of a user, or nil
// when the user is unknown.
func (s *UserStore) Interests(id int) []string {
	u := s.byID[id]
	if u == nil {
		return nil
	}
	return u.AllInterests()
}

func schemaErrors(result *gojsonschema.Result) string {
	msg := ""
	for i, desc := range result.Errors() {
		if i > 0 {
			msg += "; "
		}
		msg += desc.String()
	}
	return msg
}
