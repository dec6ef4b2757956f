package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/ayusman/fingerfuse/internal/app"
	"github.com/ayusman/fingerfuse/internal/capture"
	"github.com/ayusman/fingerfuse/internal/config"
	"github.com/ayusman/fingerfuse/internal/depth"
	"github.com/ayusman/fingerfuse/internal/detector"
	"github.com/ayusman/fingerfuse/internal/fusion"
	"github.com/ayusman/fingerfuse/internal/keyboard"
	"github.com/ayusman/fingerfuse/internal/marker"
	"github.com/ayusman/fingerfuse/internal/plugin"
	"github.com/ayusman/fingerfuse/internal/server"
	"github.com/ayusman/fingerfuse/internal/store"
	"github.com/ayusman/fingerfuse/internal/tray"
)

// HighGUI windows and the tray must stay on the main thread.
func init() {
	runtime.LockOSThread()
}

const (
	pluginTimeoutMs   = 5000
	dispatchQueueSize = 32
	leapDialTimeout   = 2 * time.Second
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a JSON tuning file")
		dbPath     = flag.String("db", "", "database path (default ~/.fingerfuse/fingerfuse.db)")
		listen     = flag.String("listen", ":8080", "HTTP listen address, empty to disable")
		source     = flag.String("camera", "0", "camera device index or video file")
		leapURL    = flag.String("leap-url", depth.DefaultLeapURL, "Leap Motion service URL, empty to disable")
		pluginDir  = flag.String("plugins", "plugins", "plugin directory")
		headless   = flag.Bool("headless", false, "run from the system tray without a preview window")
	)
	flag.Parse()

	fmt.Println("FingerFuse - Multi-Sensor Virtual Keyboard")

	if *dbPath == "" {
		*dbPath = defaultDBPath()
	}
	st, err := store.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	tuning, err := loadTuning(*configPath, st)
	if err != nil {
		log.Fatalf("Failed to load tuning: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	det, err := detector.NewMediaPipeDetector(tuning.Detector())
	if err != nil {
		log.Fatalf("Failed to create hand detector: %v", err)
	}

	var tracker depth.Tracker
	if *leapURL != "" {
		dialCtx, cancel := context.WithTimeout(ctx, leapDialTimeout)
		leap, err := depth.DialLeap(dialCtx, *leapURL)
		cancel()
		if err != nil {
			log.Printf("Depth tracking disabled: %v", err)
		} else {
			tracker = leap
			log.Printf("Connected to Leap service at %s", *leapURL)
		}
	}

	layout := loadLayout(st, tuning.GetLayoutID())
	log.Printf("Using layout %q with %d keys", layout.Name, len(layout.Keys))

	camera := capture.NewCamera(*source)
	camera.SetFPS(tuning.GetCameraFPS())

	plugins := plugin.NewManager(*pluginDir)
	if err := plugins.Discover(); err != nil {
		log.Printf("Plugin discovery failed: %v", err)
	}
	for _, p := range plugins.List() {
		log.Printf("Loaded plugin %s %s", p.Manifest.Name, p.Manifest.Version)
	}
	dispatcher := plugin.NewDispatcher(
		plugins,
		plugin.NewExecutor(pluginTimeoutMs),
		app.NewBindingRouter(st.Bindings()),
		dispatchQueueSize,
	)
	go dispatcher.Run(ctx)

	hub := server.NewHub()
	publishers := app.Publishers{hub}

	var (
		display app.Display
		tr      *tray.Tray
	)
	if *headless {
		display = app.NewHeadlessDisplay()
		tr = tray.New()
		publishers = append(publishers, tr)
	} else {
		display = app.NewWindowDisplay("FingerFuse")
	}

	a, err := app.New(app.Config{
		Camera:     camera,
		Detector:   det,
		Depth:      tracker,
		Markers:    marker.NewDetector(tuning.Marker()),
		Keyboard:   keyboard.New(layout, tuning.GetPressDepth()),
		Engine:     fusion.NewEngine(tuning.Fusion()),
		Display:    display,
		Dispatcher: dispatcher,
		Publisher:  publishers,

		FuseAllHands: tuning.GetFuseAllHands(),
	})
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}

	if *listen != "" {
		srv := server.New(server.Config{
			StaticDir: findWebDir(),
			Store:     st,
			Hub:       hub,
			Status:    a,
			Plugins:   plugins,
		})
		go func() {
			log.Printf("Starting server on %s", *listen)
			if err := srv.ListenAndServe(ctx, *listen); err != nil {
				log.Printf("Server failed: %v", err)
			}
		}()
	}

	if tr == nil {
		if err := a.Run(ctx); err != nil {
			log.Fatalf("Frame loop failed: %v", err)
		}
		return
	}

	tr.OnToggle(a.SetEnabled)
	tr.OnQuit(stop)
	tr.OnOpen(func() {
		if *listen != "" {
			openBrowser(dashboardURL(*listen))
		}
	})

	done := make(chan error, 1)
	go func() {
		done <- a.Run(ctx)
		tr.Quit()
	}()
	tr.Run()
	stop()

	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Frame loop failed: %v", err)
	}
}

// loadTuning reads the tuning file, if any, and applies the overrides saved
// through /api/settings on top.
func loadTuning(path string, st *store.Store) (*config.TuningConfig, error) {
	tuning := config.EmptyTuningConfig()
	if path != "" {
		fileCfg, err := config.LoadTuningConfig(path)
		if err != nil {
			return nil, err
		}
		tuning = fileCfg
		log.Printf("Loaded tuning from %s", path)
	}

	raw, err := st.Settings().Get(store.SettingTuning)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return tuning, nil
	case err != nil:
		return nil, fmt.Errorf("read stored tuning: %w", err)
	}

	stored, err := config.ParseTuningConfig([]byte(raw))
	if err != nil {
		log.Printf("Ignoring stored tuning: %v", err)
		return tuning, nil
	}
	tuning.Merge(stored)
	return tuning, nil
}

// loadLayout returns the stored layout id, or the built-in layout when id
// is empty or cannot be loaded.
func loadLayout(st *store.Store, id string) keyboard.Layout {
	def := keyboard.DefaultLayout()
	if id == "" || id == def.ID {
		return def
	}

	rec, err := st.Layouts().GetByID(id)
	if err != nil {
		log.Printf("Layout %s unavailable, using %s: %v", id, def.Name, err)
		return def
	}
	return rec.Layout
}

func defaultDBPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("Failed to get home directory: %v", err)
	}

	dataDir := filepath.Join(homeDir, ".fingerfuse")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}
	return filepath.Join(dataDir, "fingerfuse.db")
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.fingerfuse/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".fingerfuse", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}

// dashboardURL returns the browser address of a server listening on listen.
// Wildcard hosts are reached through localhost.
func dashboardURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://localhost" + listen
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Printf("Failed to open browser: %v", err)
	}
}
