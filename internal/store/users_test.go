package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validUsers = `[
	{"id": 1, "name": "Ada", "age": 30, "location": "Berlin", "language": "German", "occupation": "Engineer", "interests": ["running"], "hobbies": ["chess"]},
	{"id": 2, "name": "Ben", "age": 45, "interests": ["cooking"], "hobbies": []}
]`

func TestLoadUsers(t *testing.T) {
	store, err := LoadUsers(writeTempFile(t, "users.json", validUsers), testLogger())
	require.NoError(t, err)

	assert.Len(t, store.All(), 2)

	user := store.ByID(1)
	require.NotNil(t, user)
	assert.Equal(t, "Ada", user.Name)
	assert.Equal(t, []string{"running", "chess"}, store.Interests(1))

	assert.Nil(t, store.ByID(99))
	assert.Nil(t, store.Interests(99))
}

func TestLoadUsers_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing required field",
			content: `[{"id": 1, "interests": []}]`,
			wantErr: "invalid",
		},
		{
			name:    "wrong id type",
			content: `[{"id": "one", "name": "Ada", "interests": []}]`,
			wantErr: "invalid",
		},
		{
			name:    "duplicate ids",
			content: `[{"id": 1, "name": "Ada", "interests": []}, {"id": 1, "name": "Ben", "interests": []}]`,
			wantErr: "duplicate id 1",
		},
		{
			name:    "not an array",
			content: `{"id": 1}`,
			wantErr: "invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadUsers(writeTempFile(t, "users.json", tt.content), testLogger())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadUsers_MissingFile(t *testing.T) {
	_, err := LoadUsers(filepath.Join(t.TempDir(), "absent.json"), testLogger())
	assert.Error(t, err)
}
