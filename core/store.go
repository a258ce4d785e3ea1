package core

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// ImageStore writes snapshots to a filesystem.
type ImageStore struct {
	Fs  afero.Fs
	Log *zap.SugaredLogger
}

func NewImageStore(fs afero.Fs, log *zap.SugaredLogger) *ImageStore {
	return &ImageStore{Fs: fs, Log: log}
}

// Save writes img to dir/filename, creating missing directories and
// replacing any existing file. Failures are logged and returned.
func (s *ImageStore) Save(img []byte, dir, filename string) (string, error) {
	path := filepath.Join(dir, filename)
	s.Log.Infow("saving image", "path", path, "size", humanize.Bytes(uint64(len(img))))

	if err := s.Fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		s.Log.Errorw("cannot create snapshot directory", "path", path, zap.Error(err))
		return path, fmt.Errorf("creating directory for %s: %w", path, err)
	}
	if err := afero.WriteFile(s.Fs, path, img, 0o644); err != nil {
		s.Log.Errorw("cannot write snapshot", "path", path, zap.Error(err))
		return path, fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// NameStyle selects the timestamp layout used in snapshot filenames.
type NameStyle int

const (
	// ISOStyle renders 2006-01-02T15:04:05.
	ISOStyle NameStyle = iota
	// CompactStyle renders 20060102_150405, without colons or hyphens.
	CompactStyle
)

func (s NameStyle) layout() string {
	if s == CompactStyle {
		return "20060102_150405"
	}
	return "2006-01-02T15:04:05"
}

// Timestamp formats t in local time, truncated to the second.
func (s NameStyle) Timestamp(t time.Time) string {
	return t.Local().Truncate(time.Second).Format(s.layout())
}

// Filename returns name_timestamp.jpg, or timestamp.jpg for unnamed cameras.
// Two snapshots of the same camera within one second share a filename.
func Filename(name string, t time.Time, style NameStyle) string {
	ts := style.Timestamp(t)
	if name == "" {
		return ts + ".jpg"
	}
	return name + "_" + ts + ".jpg"
}
