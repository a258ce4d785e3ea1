package cmd

import (
	"errors"
	"path/filepath"
	"testing"

	c "github.com/chollinger93/ipcam-snapshot/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLifecycle struct {
	started, stopped int
	stopErr          error
}

func (f *fakeLifecycle) Start() error {
	f.started++
	return nil
}

func (f *fakeLifecycle) Stop() error {
	f.stopped++
	return f.stopErr
}

func TestProgram_Lifecycle(t *testing.T) {
	app := &fakeLifecycle{}
	p := &program{app: app}

	require.NoError(t, p.Start(nil))
	require.NoError(t, p.Stop(nil))

	assert.Equal(t, 1, app.started)
	assert.Equal(t, 1, app.stopped)
}

func TestProgram_ShutdownStopsListener(t *testing.T) {
	app := &fakeLifecycle{stopErr: errors.New("still busy")}
	p := &program{app: app}

	err := p.Shutdown(nil)

	assert.EqualError(t, err, "still busy")
	assert.Equal(t, 1, app.stopped)
}

func TestProgram_WithApp(t *testing.T) {
	a := newTestApp(t, defaultCfg, &MockCamModule{})
	p := &program{app: a}

	require.NoError(t, p.Start(nil))
	assert.NotNil(t, a.addr)
	assert.NoError(t, p.Shutdown(nil))
}

func Test_serviceConfig(t *testing.T) {
	cfg := &c.Config{CameraFile: "config.ini"}

	svc, err := serviceConfig(cfg, "")
	require.NoError(t, err)

	abs, _ := filepath.Abs("config.ini")
	assert.Equal(t, serviceName, svc.Name)
	assert.Equal(t, serviceDisplayName, svc.DisplayName)
	assert.Equal(t, []string{"service", "run", "--config", abs}, svc.Arguments)

	cfg.Log.File = "snapshot.log"
	svc, err = serviceConfig(cfg, "settings.yaml")
	require.NoError(t, err)
	assert.Len(t, svc.Arguments, 8)
	assert.Contains(t, svc.Arguments, "--settings")
	assert.Contains(t, svc.Arguments, "--log-file")
}
