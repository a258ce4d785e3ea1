package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chollinger93/ipcam-snapshot/core"
	"github.com/gorilla/mux"
	"github.com/patrickmn/go-cache"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/throttled/throttled/v2"
	"github.com/throttled/throttled/v2/store/memstore"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the snapshot HTTP service",
	Long: `Start the HTTP service in the foreground.

  GET /                  lists the configured cameras
  GET /snapshot?name=X   takes a snapshot of camera X and answers OK or ERROR`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cfg)
		if err != nil {
			return err
		}
		return app.Serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

type App struct {
	Router  *mux.Router
	Cfg     *core.Config
	Cameras *core.Cameras
	// Modules
	Snapshots core.CamModule
	// Recent maps camera names to the last snapshot path written.
	Recent *cache.Cache

	server *http.Server
	addr   net.Addr
}

func newApp(cfg *core.Config) (*App, error) {
	app := &App{
		Cfg:       cfg,
		Cameras:   core.NewCameras(afero.NewOsFs(), cfg.CameraFile),
		Snapshots: newSnapshots(cfg, core.CompactStyle),
		Recent:    cache.New(24*time.Hour, time.Hour),
	}
	if err := app.buildRouter(); err != nil {
		return nil, err
	}
	return app, nil
}

func (a *App) buildRouter() error {
	a.Router = mux.NewRouter()
	a.Router.HandleFunc("/", a.GetHandlerIndex).Methods(http.MethodGet)

	var snapshot http.Handler = http.HandlerFunc(a.GetHandlerSnapshot)
	if a.Cfg.Server.RateFilter > 0 {
		limited, err := rateLimit(snapshot, a.Cfg.Server.RateFilter)
		if err != nil {
			return err
		}
		snapshot = limited
	}
	a.Router.Handle("/snapshot", snapshot).Methods(http.MethodGet)
	return nil
}

// rateLimit allows perHour snapshots of each camera per hour. The burst lets
// the whole hourly allowance be used at once.
func rateLimit(h http.Handler, perHour int) (http.Handler, error) {
	store, err := memstore.New(65536)
	if err != nil {
		return nil, err
	}
	quota := throttled.RateQuota{MaxRate: throttled.PerHour(perHour), MaxBurst: perHour - 1}
	limiter, err := throttled.NewGCRARateLimiter(store, quota)
	if err != nil {
		return nil, fmt.Errorf("creating rate limiter: %w", err)
	}
	httpLimiter := throttled.HTTPRateLimiter{
		RateLimiter: limiter,
		VaryBy:      &throttled.VaryBy{Path: true, Params: []string{"name"}},
	}
	return httpLimiter.RateLimit(h), nil
}

func (a *App) sendText(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	w.Write([]byte(msg))
}

func (a *App) GetHandlerIndex(w http.ResponseWriter, r *http.Request) {
	cams, err := a.Cameras.List()
	if err != nil {
		zap.S().Errorw("cannot list cameras", zap.Error(err))
		a.sendText(w, "ERROR", http.StatusInternalServerError)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "configuration file: %s\r\n\r\n", a.Cameras.Path)
	for _, cam := range cams {
		writeCamera(&b, cam, "\r\n")
		if last, ok := a.Recent.Get(cam.Name); ok {
			fmt.Fprintf(&b, " last: %s\r\n", last)
		}
		b.WriteString("\r\n")
	}
	a.sendText(w, b.String(), http.StatusOK)
}

func (a *App) GetHandlerSnapshot(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		a.sendText(w, "ERROR", http.StatusBadRequest)
		return
	}

	cam, err := a.Cameras.Lookup(name)
	if err != nil {
		zap.S().Errorw("camera lookup failed", "name", name, zap.Error(err))
		a.sendText(w, "ERROR", http.StatusOK)
		return
	}

	path, err := a.Snapshots.Take(cam)
	if err != nil {
		zap.S().Warnw("snapshot failed", "name", name, zap.Error(err))
		a.sendText(w, "ERROR", http.StatusOK)
		return
	}
	a.Recent.SetDefault(cam.Name, path)
	a.sendText(w, "OK", http.StatusOK)
}

// Start begins serving in the background.
func (a *App) Start() error {
	ln, err := net.Listen("tcp", a.Cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.Cfg.Server.Listen, err)
	}
	a.addr = ln.Addr()
	a.server = &http.Server{Handler: a.Router, ReadHeaderTimeout: 10 * time.Second}
	zap.S().Infof("Listening on %s", a.addr)

	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.S().Errorw("server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Stop shuts the listener down, waiting for in-flight snapshots.
func (a *App) Stop() error {
	if a.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.server.Shutdown(ctx)
}

// Serve runs in the foreground until interrupted.
func (a *App) Serve() error {
	if err := a.Start(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	zap.S().Info("Stopping server")
	return a.Stop()
}
