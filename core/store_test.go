package core

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestImageStore_Save(t *testing.T) {
	fs := afero.NewMemMapFs()
	log, _ := newObservedLogger()
	dir := filepath.Join("snapshots", "gate", "2024")

	path, err := NewImageStore(fs, log).Save([]byte("X"), dir, "a.jpg")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.jpg"), path)
	isDir, err := afero.DirExists(fs, dir)
	require.NoError(t, err)
	assert.True(t, isDir)
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, []byte("X"), data)
}

func TestImageStore_SaveOverwrites(t *testing.T) {
	fs := afero.NewMemMapFs()
	log, _ := newObservedLogger()
	s := NewImageStore(fs, log)

	_, err := s.Save([]byte("first"), "out", "a.jpg")
	require.NoError(t, err)
	path, err := s.Save([]byte("second"), "out", "a.jpg")
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)
}

func TestImageStore_SaveFailure(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	log, logs := newObservedLogger()

	_, err := NewImageStore(fs, log).Save([]byte("X"), "out", "a.jpg")

	assert.Error(t, err)
	assert.Equal(t, 1, logs.FilterLevelExact(zap.ErrorLevel).Len())
}

func TestFilename(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 987654321, time.Local)
	tests := []struct {
		name   string
		camera string
		style  NameStyle
		want   string
	}{
		{name: "iso named", camera: "gate", style: ISOStyle, want: "gate_2024-01-02T03:04:05.jpg"},
		{name: "iso unnamed", style: ISOStyle, want: "2024-01-02T03:04:05.jpg"},
		{name: "compact named", camera: "gate", style: CompactStyle, want: "gate_20240102_030405.jpg"},
		{name: "compact unnamed", style: CompactStyle, want: "20240102_030405.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filename(tt.camera, ts, tt.style)
			assert.Equal(t, tt.want, got)
			if tt.style == CompactStyle {
				assert.False(t, strings.ContainsAny(got, ":-"))
			}
		})
	}
}

func TestFilename_DistinctPairsDoNotCollide(t *testing.T) {
	base := time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)
	names := []string{"", "gate", "gate_1", "yard", "2024"}
	for _, style := range []NameStyle{ISOStyle, CompactStyle} {
		seen := make(map[string]string)
		for _, name := range names {
			for s := 0; s < 120; s++ {
				fn := Filename(name, base.Add(time.Duration(s)*time.Second), style)
				key := fmt.Sprintf("%q@%d", name, s)
				if prev, ok := seen[fn]; ok {
					t.Fatalf("%s and %s both map to %s", prev, key, fn)
				}
				seen[fn] = key
			}
		}
	}
}

func TestFilename_SameSecondOverwrites(t *testing.T) {
	base := time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)
	assert.Equal(t,
		Filename("", base, ISOStyle),
		Filename("", base.Add(500*time.Millisecond), ISOStyle))
}
