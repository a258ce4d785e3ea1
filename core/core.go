package core

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	ErrNoImage    = errors.New("no image retrieved")
	ErrSaveFailed = errors.New("saving image failed")
)

// CamModule takes a snapshot of a camera and stores it.
type CamModule interface {
	Take(cam Camera) (string, error)
}

// Snapshots retrieves a snapshot, saves it and optionally forwards it.
// It holds no per-request state and is safe for concurrent use.
type Snapshots struct {
	Client   Fetcher
	Store    *ImageStore
	Notifier Notifier
	Style    NameStyle
	// StrictSave turns a failed write into an error. When false the failure
	// is only logged and the snapshot is reported as taken.
	StrictSave bool
	Now        func() time.Time
	Log        *zap.SugaredLogger
}

// Take returns the path the snapshot was written to.
func (s *Snapshots) Take(cam Camera) (string, error) {
	res := Retrieve(s.Client, cam.Model, cam.Endpoint)
	if !res.OK() {
		s.Log.Warnw("no picture from camera", "name", cam.Name, "model", cam.Model.String(),
			"host", cam.Host, "port", cam.Port, "result", res.String())
		return "", fmt.Errorf("%w from %s:%d (%s)", ErrNoImage, cam.Host, cam.Port, res)
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	taken := now()
	path, err := s.Store.Save(res.Image, cam.Dir, Filename(cam.Name, taken, s.Style))
	if err != nil {
		if s.StrictSave {
			return path, fmt.Errorf("%w: %v", ErrSaveFailed, err)
		}
		return path, nil
	}

	if s.Notifier != nil {
		if err := s.Notifier.Notify(cam, path, taken); err != nil {
			s.Log.Errorw("cannot forward snapshot", "path", path, zap.Error(err))
		}
	}
	return path, nil
}
