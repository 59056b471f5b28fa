package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
}

func TestDiscoverImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.jpg", "a.png", "c.JPEG", "d.bmp", "readme.md", "sub/e.png", "skip_f.png"} {
		touch(t, filepath.Join(dir, name))
	}

	tests := []struct {
		name      string
		recursive bool
		include   []string
		exclude   []string
		want      []string
	}{
		{"flat", false, nil, nil, []string{"a.png", "b.jpg", "c.JPEG", "d.bmp", "skip_f.png"}},
		{"recursive", true, nil, nil, []string{"a.png", "b.jpg", "c.JPEG", "d.bmp", "skip_f.png", "sub/e.png"}},
		{"include", false, []string{"*.png"}, nil, []string{"a.png", "skip_f.png"}},
		{"exclude", true, nil, []string{"skip_*"}, []string{"a.png", "b.jpg", "c.JPEG", "d.bmp", "sub/e.png"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DiscoverImages(dir, tt.recursive, tt.include, tt.exclude)
			require.NoError(t, err)
			want := make([]string, len(tt.want))
			for i, w := range tt.want {
				want[i] = filepath.Join(dir, filepath.FromSlash(w))
			}
			assert.Equal(t, want, got)
		})
	}
}

func TestDiscoverImages_Errors(t *testing.T) {
	_, err := DiscoverImages(filepath.Join(t.TempDir(), "missing"), false, nil, nil)
	require.Error(t, err)

	file := filepath.Join(t.TempDir(), "x.png")
	touch(t, file)
	_, err = DiscoverImages(file, false, nil, nil)
	require.Error(t, err)
}

func TestMatchesAnyPattern(t *testing.T) {
	assert.True(t, matchesAnyPattern("/a/b/car_01.jpg", []string{"car_*"}))
	assert.False(t, matchesAnyPattern("/a/car/01.jpg", []string{"car*"}))
	assert.False(t, matchesAnyPattern("x.jpg", nil))
}
