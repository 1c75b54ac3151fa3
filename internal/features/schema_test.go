package features

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fullFeatureNames = []string{
	"Gender_Female",
	"Gender_Male",
	"Gender_Others",
	"Age_6-12",
	"Age_20-35",
	"Age_35-60",
	"Age_60+",
	"music_recc_rating",
	"low_music_engagement",
	"low_podcast_engagement",
	"low_recommendation_rating",
	"no_premium_interest",
	"engagement_score",
	"satisfaction_score",
	"monetization_score",
	"churn_pressure",
}

func testSchema(t *testing.T, names []string) *Schema {
	t.Helper()
	s, err := NewSchema(names)
	require.NoError(t, err)
	return s
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewSchema(t *testing.T) {
	tests := []struct {
		name    string
		names   []string
		wantErr bool
	}{
		{"ordered names", []string{"a", "b", "c"}, false},
		{"empty list", nil, true},
		{"empty name", []string{"a", ""}, true},
		{"duplicate", []string{"a", "b", "a"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSchema(tt.names)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.names, s.Names())
			assert.Equal(t, len(tt.names), s.Len())
		})
	}
}

func TestSchema_NamesIsACopy(t *testing.T) {
	s := testSchema(t, []string{"a", "b"})
	names := s.Names()
	names[0] = "mutated"
	assert.Equal(t, []string{"a", "b"}, s.Names())
	assert.False(t, s.Has("mutated"))
}

func TestParseSchema(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid", `["Age_6-12", "churn_pressure"]`, false},
		{"not json", `Age_6-12`, true},
		{"object", `{"features": ["a"]}`, true},
		{"empty array", `[]`, true},
		{"non-string item", `["a", 3]`, true},
		{"empty string", `["a", ""]`, true},
		{"duplicate", `["a", "a"]`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSchema([]byte(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadSchemaFile_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feature_names.json")
	_, err := LoadSchemaFile(path)

	var loadErr *SchemaLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, path, loadErr.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadSchemaFile_Malformed(t *testing.T) {
	path := writeFile(t, t.TempDir(), "feature_names.json", `["a",`)
	_, err := LoadSchemaFile(path)

	var loadErr *SchemaLoadError
	assert.True(t, errors.As(err, &loadErr))
}

func TestRegistry_LoadsOnce(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "feature_names.json", `["a", "b"]`)
	r := NewRegistry(path)

	first, err := r.Load()
	require.NoError(t, err)

	// The artifact changing on disk must not affect the cached schema.
	writeFile(t, dir, "feature_names.json", `["c"]`)
	second, err := r.Load()
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, []string{"a", "b"}, second.Names())
}

func TestRegistry_CachesFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feature_names.json")
	r := NewRegistry(path)

	_, err := r.Load()
	require.Error(t, err)

	writeFile(t, dir, "feature_names.json", `["a"]`)
	_, err = r.Load()
	var loadErr *SchemaLoadError
	assert.True(t, errors.As(err, &loadErr), "failed first load stays failed")
}

func TestRegistry_ConcurrentLoad(t *testing.T) {
	path := writeFile(t, t.TempDir(), "feature_names.json", `["a", "b", "c"]`)
	r := NewRegistry(path)

	const n = 16
	got := make([]*Schema, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := r.Load()
			if err == nil {
				got[i] = s
			}
		}(i)
	}
	wg.Wait()

	require.NotNil(t, got[0])
	for i := 1; i < n; i++ {
		assert.Same(t, got[0], got[i])
	}
}
