package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpen_Schemes(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cases := []struct {
		name    string
		uri     string
		wantErr error
		check   func(t *testing.T, s BlobStore)
	}{
		{
			name:  "memory",
			uri:   "mem://",
			check: func(t *testing.T, s BlobStore) { assert.IsType(t, &Memory{}, s) },
		},
		{
			name: "file absolute",
			uri:  "file://" + dir,
			check: func(t *testing.T, s BlobStore) {
				require.IsType(t, &File{}, s)
				assert.Equal(t, dir, s.(*File).root)
			},
		},
		{
			name:    "unknown scheme",
			uri:     "s3://bucket",
			wantErr: ErrUnsupportedScheme,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := Open(ctx, tc.uri, zap.NewNop())
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			defer s.Close()
			tc.check(t, s)
		})
	}
}

func TestOpen_BadRedisURL(t *testing.T) {
	_, err := Open(context.Background(), "redis://host:6379/notadb", zap.NewNop())
	assert.Error(t, err)
}

func TestCheckKey(t *testing.T) {
	cases := []struct {
		key string
		ok  bool
	}{
		{"cinemagames/hall/dino_run/a.json", true},
		{"a.json", true},
		{"", false},
		{"/etc/passwd", false},
		{"cinemagames/../../etc/passwd", false},
		{"a//b.json", false},
		{"a/./b.json", false},
	}

	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			err := checkKey(tc.key)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidKey)
			}
		})
	}
}

func TestMemory_PutReplaces(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "p/a.json", []byte(`{"v":1}`)))
	require.NoError(t, m.Put(ctx, "p/a.json", []byte(`{"v":2}`)))

	got, ok := m.Get("p/a.json")
	require.True(t, ok)
	assert.JSONEq(t, `{"v":2}`, string(got))
	assert.Equal(t, []string{"p/a.json"}, m.Keys())
}

func TestMemory_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewMemory().Put(ctx, "a.json", []byte("{}"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFile_PutCreatesDirsAndReplaces(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(dir)
	require.NoError(t, err)
	ctx := context.Background()

	key := "cinemagames/hall/dino_run/night.json"
	require.NoError(t, f.Put(ctx, key, []byte(`{"v":1}`)))
	require.NoError(t, f.Put(ctx, key, []byte(`{"v":2}`)))

	got, err := os.ReadFile(filepath.Join(dir, "cinemagames", "hall", "dino_run", "night.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(got))

	entries, err := os.ReadDir(filepath.Join(dir, "cinemagames", "hall", "dino_run"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFile_RejectsEscapingKeys(t *testing.T) {
	f, err := NewFile(t.TempDir())
	require.NoError(t, err)

	err = f.Put(context.Background(), "../outside.json", []byte("{}"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}
