package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/chollinger93/ipcam-snapshot/core"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const defaultCameraFile = "config.ini"

// Exit codes returned by Execute.
const (
	exitOK = iota
	exitError
	exitCameraNotFound
	exitNoImage
	exitSaveFailed
)

var (
	settingsFile string
	cfg          = &core.Config{}
	opts         snapshotOptions
)

type snapshotOptions struct {
	host     string
	port     int
	username string
	password string
	model    string
	dir      string
	list     bool
}

// rootCmd takes a single snapshot, or lists the configured cameras.
var rootCmd = &cobra.Command{
	Use:   "ipcam-snapshot [name]",
	Short: "IP camera snapshot tool",
	Long: `Fetch a still image from a Hikvision or Dahua IP camera and save it
with a timestamped filename.

Cameras are read from the camera file (config.ini) by name, or given
directly with --ip.`,
	Example: `  ipcam-snapshot gate
  ipcam-snapshot gate -i 10.0.0.5 -p 18100 -U admin -P secret -d /srv/pictures
  ipcam-snapshot -i 10.0.0.5 -U admin -P secret
  ipcam-snapshot -l`,
	Args:              cobra.MaximumNArgs(1),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		cams := core.NewCameras(afero.NewOsFs(), cfg.CameraFile)
		if opts.list {
			return listCameras(cmd.OutOrStdout(), cams)
		}

		var name string
		if len(args) == 1 {
			name = args[0]
		}
		cam, err := opts.camera(name, cams)
		if err != nil {
			return err
		}

		snaps := newSnapshots(cfg, core.ISOStyle)
		_, err = snaps.Take(cam)
		return err
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	_ = zap.L().Sync()
	return exitCode(err)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&settingsFile, "settings", "", "Path to an optional settings file (yaml, toml, json)")
	pf.String("config", "", "Path to the camera file (default config.ini)")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-file", "", "Also write logs to this file, rotated")
	_ = viper.BindPFlag("config", pf.Lookup("config"))
	_ = viper.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("log.file", pf.Lookup("log-file"))

	f := rootCmd.Flags()
	f.StringVarP(&opts.host, "ip", "i", "", "IP camera hostname/IP")
	f.IntVarP(&opts.port, "port", "p", 80, "IP camera port")
	f.StringVarP(&opts.username, "username", "U", "", "IP camera username")
	f.StringVarP(&opts.password, "password", "P", "", "IP camera password")
	f.StringVarP(&opts.model, "model", "m", "auto", "IP camera model: hikvision, dahua or auto")
	f.StringVarP(&opts.dir, "dir", "d", ".", "Save to directory")
	f.BoolVarP(&opts.list, "list", "l", false, "List cameras defined in the camera file")

	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("config", "")
	v.SetDefault("strict_save", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("server.listen", "127.0.0.1:8888")
	v.SetDefault("server.max_requests_per_hr", 0)
	v.SetDefault("telegram.api_key", "")
	v.SetDefault("telegram.chat_id", 0)
}

// initConfig reads .env, the optional settings file and IPCAM_* environment
// variables, then sets up logging.
func initConfig(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	if settingsFile != "" {
		viper.SetConfigFile(settingsFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("reading settings %s: %w", settingsFile, err)
		}
	}
	viper.SetEnvPrefix("ipcam")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("decoding settings: %w", err)
	}
	cfg.CameraFile = resolveCameraFile(cfg.CameraFile)

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(logger)
	return nil
}

// resolveCameraFile falls back to config.ini in the working directory, then
// next to the executable.
func resolveCameraFile(path string) string {
	if path != "" {
		return path
	}
	if _, err := os.Stat(defaultCameraFile); err == nil {
		return defaultCameraFile
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), defaultCameraFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return defaultCameraFile
}

// camera resolves the target from flags when --ip is set, otherwise from the
// camera file by name.
func (o snapshotOptions) camera(name string, cams *core.Cameras) (core.Camera, error) {
	if o.host == "" {
		if name == "" {
			return core.Camera{}, errors.New("a camera name or --ip is required")
		}
		return cams.Lookup(name)
	}

	model, err := core.ParseModel(o.model)
	if err != nil {
		return core.Camera{}, err
	}
	if o.port < 1 || o.port > 65535 {
		return core.Camera{}, fmt.Errorf("%w: %d", core.ErrInvalidPort, o.port)
	}
	return core.Camera{
		Name:  name,
		Model: model,
		Endpoint: core.Endpoint{
			Host:     o.host,
			Port:     o.port,
			Username: o.username,
			Password: o.password,
		},
		Dir: o.dir,
	}, nil
}

func listCameras(w io.Writer, cams *core.Cameras) error {
	list, err := cams.List()
	if err != nil {
		return err
	}
	for _, cam := range list {
		fmt.Fprintln(w)
		writeCamera(w, cam, "\n")
	}
	return nil
}

func writeCamera(w io.Writer, cam core.Camera, eol string) {
	fmt.Fprintf(w, " name: %s%s", cam.Name, eol)
	fmt.Fprintf(w, "model: %s%s", cam.Model, eol)
	fmt.Fprintf(w, "   ip: %s%s", cam.Host, eol)
	fmt.Fprintf(w, " port: %d%s", cam.Port, eol)
	fmt.Fprintf(w, "  dir: %s%s", cam.Dir, eol)
}

// newSnapshots wires the snapshot pipeline for one invocation surface.
func newSnapshots(cfg *core.Config, style core.NameStyle) *core.Snapshots {
	log := zap.S()
	snaps := &core.Snapshots{
		Client:     core.NewClient(log),
		Store:      core.NewImageStore(afero.NewOsFs(), log),
		Style:      style,
		StrictSave: cfg.StrictSave,
		Log:        log,
	}
	if cfg.Telegram.Enabled() {
		n, err := core.NewTelegramNotifier(cfg.Telegram, log)
		if err != nil {
			log.Errorw("Err creating Telegram bot, snapshots will not be forwarded", zap.Error(err))
		} else {
			snaps.Notifier = n
		}
	}
	return snaps
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, core.ErrCameraNotFound), errors.Is(err, core.ErrMissingKey):
		return exitCameraNotFound
	case errors.Is(err, core.ErrNoImage):
		return exitNoImage
	case errors.Is(err, core.ErrSaveFailed):
		return exitSaveFailed
	default:
		return exitError
	}
}
