package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/ini.v1"
)

// GlobalSection holds settings shared by all cameras, such as the default dir.
const GlobalSection = "snapshot.exe"

var (
	ErrCameraNotFound = errors.New("camera not found")
	ErrMissingKey     = errors.New("missing required key")
	ErrInvalidPort    = errors.New("invalid port")
)

// Camera is a resolved camera entry.
type Camera struct {
	Name  string
	Model Model
	Endpoint
	Dir string
}

// Cameras reads camera definitions from an INI file. The file is read again
// on every call and never written.
type Cameras struct {
	Fs   afero.Fs
	Path string
}

func NewCameras(fs afero.Fs, path string) *Cameras {
	return &Cameras{Fs: fs, Path: path}
}

func (c *Cameras) load() (*ini.File, error) {
	data, err := afero.ReadFile(c.Fs, c.Path)
	if err != nil {
		return nil, fmt.Errorf("reading camera file: %w", err)
	}
	f, err := ini.LoadSources(ini.LoadOptions{InsensitiveKeys: true}, data)
	if err != nil {
		return nil, fmt.Errorf("parsing camera file %s: %w", c.Path, err)
	}
	return f, nil
}

// Lookup resolves a camera by section name.
func (c *Cameras) Lookup(name string) (Camera, error) {
	f, err := c.load()
	if err != nil {
		return Camera{}, err
	}
	return resolve(f, name)
}

// List returns every camera in file order, skipping the global section.
func (c *Cameras) List() ([]Camera, error) {
	f, err := c.load()
	if err != nil {
		return nil, err
	}
	var cams []Camera
	for _, name := range f.SectionStrings() {
		if isReserved(name) {
			continue
		}
		cam, err := resolve(f, name)
		if err != nil {
			return nil, err
		}
		cams = append(cams, cam)
	}
	return cams, nil
}

func isReserved(name string) bool {
	return name == ini.DefaultSection || name == GlobalSection
}

func resolve(f *ini.File, name string) (Camera, error) {
	if isReserved(name) || !f.HasSection(name) {
		return Camera{}, fmt.Errorf("%w: %q", ErrCameraNotFound, name)
	}
	sec := f.Section(name)

	required := func(key string) (string, error) {
		if !sec.HasKey(key) {
			return "", fmt.Errorf("camera %q: %w: %s", name, ErrMissingKey, key)
		}
		return sec.Key(key).String(), nil
	}

	cam := Camera{Name: name}
	var err error
	if cam.Model, err = ParseModel(sec.Key("model").String()); err != nil {
		return Camera{}, fmt.Errorf("camera %q: %w", name, err)
	}
	if cam.Host, err = required("host"); err != nil {
		return Camera{}, err
	}
	port, err := required("port")
	if err != nil {
		return Camera{}, err
	}
	if cam.Port, err = ParsePort(port); err != nil {
		return Camera{}, fmt.Errorf("camera %q: %w", name, err)
	}
	if cam.Username, err = required("username"); err != nil {
		return Camera{}, err
	}
	if cam.Password, err = required("password"); err != nil {
		return Camera{}, err
	}

	switch {
	case sec.HasKey("dir"):
		cam.Dir = sec.Key("dir").String()
	case f.HasSection(GlobalSection) && f.Section(GlobalSection).HasKey("dir"):
		cam.Dir = f.Section(GlobalSection).Key("dir").String()
	default:
		return Camera{}, fmt.Errorf("camera %q: %w: dir (in section or [%s])", name, ErrMissingKey, GlobalSection)
	}
	return cam, nil
}

// ParsePort parses a TCP port in the range 1-65535.
func ParsePort(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || p < 1 || p > 65535 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPort, s)
	}
	return p, nil
}
