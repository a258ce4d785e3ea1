package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/chollinger93/ipcam-snapshot/core"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	serviceName        = "QVMSSnapshotService"
	serviceDisplayName = "QVMS IP camera snapshot service"
	serviceDescription = "Captures camera snapshots."
)

// serviceCmd runs the HTTP service under the host service manager, or
// controls its installation.
var serviceCmd = &cobra.Command{
	Use:       "service <run|install|uninstall|start|stop|restart>",
	Short:     "Run or control the background snapshot service",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: append([]string{"run"}, service.ControlAction[:]...),
	RunE: func(cmd *cobra.Command, args []string) error {
		svcConfig, err := serviceConfig(cfg, settingsFile)
		if err != nil {
			return err
		}

		p := &program{}
		if args[0] == "run" {
			app, err := newApp(cfg)
			if err != nil {
				return err
			}
			p.app = app
		}

		s, err := service.New(p, svcConfig)
		if err != nil {
			return fmt.Errorf("creating service: %w", err)
		}
		if args[0] == "run" {
			return s.Run()
		}
		if err := service.Control(s, args[0]); err != nil {
			return err
		}
		zap.S().Infof("Service %s: %s done", serviceName, args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serviceCmd)
}

// lifecycle is the listener the service starts and stops.
type lifecycle interface {
	Start() error
	Stop() error
}

// program adapts a lifecycle to the service manager.
type program struct {
	app lifecycle
}

func (p *program) Start(s service.Service) error {
	zap.S().Info("Service started.")
	return p.app.Start()
}

func (p *program) Stop(s service.Service) error {
	zap.S().Info("Stopping service.")
	err := p.app.Stop()
	zap.S().Info("Service stopped.")
	return err
}

// Shutdown is called instead of Stop when the host is shutting down. The
// service manager delivers the shutdown notification, not pre-shutdown.
func (p *program) Shutdown(s service.Service) error {
	zap.S().Info("Service received a shutdown notification.")
	return p.Stop(s)
}

// serviceConfig registers the service to run with absolute paths, since the
// service manager does not start it in the caller's working directory.
func serviceConfig(cfg *core.Config, settings string) (*service.Config, error) {
	cameras, err := filepath.Abs(cfg.CameraFile)
	if err != nil {
		return nil, err
	}
	args := []string{"service", "run", "--config", cameras}
	if settings != "" {
		abs, err := filepath.Abs(settings)
		if err != nil {
			return nil, err
		}
		args = append(args, "--settings", abs)
	}
	if cfg.Log.File != "" {
		abs, err := filepath.Abs(cfg.Log.File)
		if err != nil {
			return nil, err
		}
		args = append(args, "--log-file", abs)
	}
	return &service.Config{
		Name:        serviceName,
		DisplayName: serviceDisplayName,
		Description: serviceDescription,
		Arguments:   args,
	}, nil
}
