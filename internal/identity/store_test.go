package identity

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetNameValidation(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "simple name", input: "Ann", want: "Ann"},
		{name: "trims whitespace", input: "  Ann  ", want: "Ann"},
		{name: "empty rejected", input: "", wantErr: true},
		{name: "whitespace only rejected", input: "   ", wantErr: true},
		{name: "twenty chars allowed", input: strings.Repeat("a", 20), want: strings.Repeat("a", 20)},
		{name: "over twenty chars rejected", input: strings.Repeat("a", 21), wantErr: true},
		{name: "twenty multibyte runes allowed", input: strings.Repeat("語", 20), want: strings.Repeat("語", 20)},
		{name: "over twenty multibyte runes rejected", input: strings.Repeat("語", 21), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(filepath.Join(t.TempDir(), "profile.yaml"))
			err := s.SetName(tt.input)
			if tt.wantErr {
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Empty(t, s.Name(), "rejected name must not be stored")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Name())
		})
	}
}

func TestNameSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")

	require.NoError(t, NewStore(path).SetName("Ann"))

	reopened := NewStore(path)
	assert.Equal(t, "Ann", reopened.Name())
}

func TestClearErasesPersistedName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")

	s := NewStore(path)
	require.NoError(t, s.SetName("Ann"))
	s.Clear()

	assert.Empty(t, s.Name())
	assert.Empty(t, NewStore(path).Name(), "cleared name must not come back after restart")
}

func TestMissingProfileStartsEmpty(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "missing", "profile.yaml"))
	assert.Empty(t, s.Name())
}
