// Command geocache-world starts the Geocache World server.
//
// It supports two modes:
//  1. "server" (default) – runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//
// "init-config" writes the built-in world configuration to the config
// directory. A running server rereads its configs on SIGHUP.
//
// Settings come from GEOCACHE_* environment variables (optionally via .env)
// and are overridden by flags. Sessions are kept in memory, in per-session
// files, or in a SQLite database.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/geocache-world/api"
	"github.com/wricardo/geocache-world/game/config"
	"github.com/wricardo/geocache-world/game/engine"
	"github.com/wricardo/geocache-world/game/service"
	"github.com/wricardo/geocache-world/game/session"
	"github.com/wricardo/geocache-world/transport/mcp"
	"github.com/wricardo/geocache-world/transport/websocket"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Geocache World Server"
)

func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	} else {
		log.Println("Loaded environment variables from .env file")
	}

	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

// newCommand builds the CLI. Without a subcommand it runs the HTTP server.
func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "geocache-world",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "HTTP server host"},
			&cli.IntFlag{Name: "port", Usage: "HTTP server port"},
			&cli.StringFlag{Name: "config-dir", Usage: "Directory containing world configurations"},
			&cli.StringFlag{Name: "default-config", Usage: "World configuration used when a session names none"},
			&cli.StringFlag{Name: "data-dir", Usage: "Directory for persisted sessions"},
			&cli.StringFlag{Name: "storage", Usage: "Session storage: memory, file or sqlite"},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging"},
			&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel"},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token (or NGROK_AUTHTOKEN)"},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (optional)"},
		},
		Action: runServerCommand,
		Commands: []*cli.Command{
			{
				Name:    "server",
				Aliases: []string{"http"},
				Usage:   "Run HTTP server with API, WebSocket, and MCP endpoint",
				Action:  runServerCommand,
			},
			{
				Name:      "init-config",
				Usage:     "Write the built-in world configuration to the config directory",
				ArgsUsage: "[name]",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					settings, err := resolveSettings(cmd)
					if err != nil {
						return err
					}
					name := cmd.Args().First()
					if name == "" {
						name = "classic"
					}
					return initConfig(settings.ConfigDir, name)
				},
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "Run MCP stdio server with internal HTTP server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					settings, err := resolveSettings(cmd)
					if err != nil {
						return err
					}
					return runStdioMCPWithInternalServer(ctx, settings)
				},
			},
		},
	}
}

func runServerCommand(ctx context.Context, cmd *cli.Command) error {
	settings, err := resolveSettings(cmd)
	if err != nil {
		return err
	}
	return runHTTPServer(ctx, settings)
}

// resolveSettings reads the environment and applies any flags that were set
func resolveSettings(cmd *cli.Command) (*config.Settings, error) {
	settings, err := config.LoadSettings()
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("host") {
		settings.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		settings.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("config-dir") {
		settings.ConfigDir = cmd.String("config-dir")
	}
	if cmd.IsSet("default-config") {
		settings.DefaultConfig = cmd.String("default-config")
	}
	if cmd.IsSet("data-dir") {
		settings.DataDir = cmd.String("data-dir")
	}
	if cmd.IsSet("storage") {
		settings.Storage = cmd.String("storage")
	}
	if cmd.IsSet("debug") {
		settings.Debug = cmd.Bool("debug")
	}
	if cmd.IsSet("ngrok") {
		settings.NgrokEnabled = cmd.Bool("ngrok")
	}
	if cmd.IsSet("ngrok-auth") {
		settings.NgrokAuthToken = cmd.String("ngrok-auth")
	}
	if cmd.IsSet("ngrok-domain") {
		settings.NgrokDomain = cmd.String("ngrok-domain")
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	if settings.Debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	} else {
		log.SetFlags(log.LstdFlags)
	}
	return settings, nil
}

// services holds everything a running server owns
type services struct {
	game     service.GameService
	configs  *config.Manager
	sessions *session.Manager
	hub      *websocket.Hub
	close    func() error
}

// shutdown flushes session metadata and closes the storage backend
func (s *services) shutdown() {
	if err := s.sessions.SaveAllSessions(); err != nil {
		log.Printf("Failed to save sessions: %v", err)
	}
	if err := s.close(); err != nil {
		log.Printf("Failed to close storage: %v", err)
	}
}

// initConfig writes the built-in world configuration as name.yaml
func initConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	manager, err := config.NewManager(configDir)
	if err != nil {
		return err
	}
	if _, err := manager.LoadConfig(name); err == nil {
		return fmt.Errorf("config %q already exists in %s", name, configDir)
	}
	if err := manager.SaveConfig(name, engine.DefaultWorldConfig()); err != nil {
		return err
	}
	log.Printf("Wrote %s", filepath.Join(configDir, name+".yaml"))
	return nil
}

// openPersistence opens the session backend named by settings.Storage
func openPersistence(settings *config.Settings) (session.SessionPersistence, func() error, error) {
	noop := func() error { return nil }

	switch settings.Storage {
	case "memory":
		return session.NewMemoryPersistence(), noop, nil

	case "file":
		p, err := session.NewFilePersistence(filepath.Join(settings.DataDir, "sessions"))
		if err != nil {
			return nil, nil, err
		}
		return p, noop, nil

	case "sqlite":
		if err := os.MkdirAll(settings.DataDir, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		p, err := session.NewSQLitePersistence(filepath.Join(settings.DataDir, "geocache.db"))
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", settings.Storage)
}

// initializeServices wires the config manager, session storage, websocket hub
// and game service, then restores persisted sessions.
func initializeServices(settings *config.Settings) (*services, error) {
	configManager, err := config.NewManager(settings.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}
	if settings.DefaultConfig != "" {
		if err := configManager.SetDefault(settings.DefaultConfig); err != nil {
			return nil, fmt.Errorf("failed to set default config %q: %w", settings.DefaultConfig, err)
		}
	}
	log.Printf("Default world configuration: %s", configManager.DefaultName())

	persistence, closeStorage, err := openPersistence(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create session persistence: %w", err)
	}

	hub := websocket.NewHub()
	go hub.Run()

	sessionManager := session.NewManagerWithPersistence(persistence)

	// The service installs the hub as every world's notifier, so it must
	// exist before sessions are restored.
	gameService := service.NewGameService(sessionManager, configManager, hub)
	hub.SetTracker(gameService)

	if err := sessionManager.LoadPersistedSessions(); err != nil {
		log.Printf("Warning: Failed to load persisted sessions: %v", err)
	}

	go sessionCleanupRoutine(sessionManager)
	if settings.Storage != "memory" {
		go storageSyncRoutine(sessionManager, persistence)
	}

	log.Printf("Sessions stored in %s backend", settings.Storage)
	return &services{
		game:     gameService,
		configs:  configManager,
		sessions: sessionManager,
		hub:      hub,
		close:    closeStorage,
	}, nil
}

// newMainRouter mounts the REST API and an /mcp proxy endpoint
func newMainRouter(apiServer *api.Server, mcpClient *mcp.Client) http.Handler {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)

	mainRouter.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})

	return mainRouter
}

// runHTTPServer starts the HTTP server with REST API, WebSocket hub, and an /mcp proxy endpoint.
// If ngrok is enabled, it also provisions a public tunnel.
func runHTTPServer(ctx context.Context, settings *config.Settings) error {
	log.Printf("Starting %s v%s (mode: server)", AppName, Version)

	svc, err := initializeServices(settings)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer svc.shutdown()

	addr := fmt.Sprintf("%s:%d", settings.Host, settings.Port)
	apiServer := api.NewServer(svc.game, svc.hub)
	mainRouter := newMainRouter(apiServer, mcp.NewClient("http://"+addr))

	// No WriteTimeout: websocket connections are long-lived
	httpServer := &http.Server{
		Addr:        addr,
		Handler:     mainRouter,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	defer signal.Stop(reload)

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Printf("HTTP server listening on %s", addr)
		log.Printf("REST API: http://%s/api", addr)
		log.Printf("WebSocket: ws://%s/ws?session=<session_id>", addr)
		log.Printf("MCP endpoint: http://%s/mcp", addr)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	if settings.NgrokEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrokTunnel(ctx, settings, mainRouter)
		}()
	}

wait:
	for {
		select {
		case <-reload:
			if err := svc.configs.RefreshCache(); err != nil {
				log.Printf("Failed to reload world configurations: %v", err)
				continue
			}
			log.Printf("Reloaded world configurations (default: %s)", svc.configs.DefaultName())
		case sig := <-stop:
			log.Printf("Received signal: %v. Shutting down...", sig)
			break wait
		case err := <-serveErr:
			log.Printf("HTTP server failed: %v", err)
			cancel()
			wg.Wait()
			return err
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	wg.Wait()
	log.Println("Server stopped")
	return nil
}

// runNgrokTunnel serves handler through an ngrok endpoint until ctx is done
func runNgrokTunnel(ctx context.Context, settings *config.Settings, handler http.Handler) {
	if settings.NgrokAuthToken == "" {
		log.Println("WARNING: Ngrok enabled but no auth token provided (use --ngrok-auth or NGROK_AUTHTOKEN)")
		return
	}

	log.Println("Starting ngrok tunnel...")

	var tunnel ngrokConfig.Tunnel
	if settings.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(settings.NgrokDomain))
		log.Printf("Using custom ngrok domain: %s", settings.NgrokDomain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(settings.NgrokAuthToken))
	if err != nil {
		log.Printf("Failed to start ngrok tunnel: %v", err)
		return
	}
	defer func() {
		if err := tun.Close(); err != nil {
			log.Printf("Failed to close ngrok tunnel: %v", err)
		}
	}()

	ngrokURL := tun.URL()
	log.Printf("Ngrok tunnel established: %s", ngrokURL)
	log.Printf("  REST API (ngrok): %s/api", ngrokURL)
	log.Printf("  WebSocket (ngrok): %s/ws?session=<session_id>", ngrokURL)
	log.Printf("  MCP endpoint (ngrok): %s/mcp", ngrokURL)

	go func() {
		<-ctx.Done()
		tun.Close()
	}()

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		log.Printf("Ngrok server error: %v", err)
	}
	log.Println("Ngrok tunnel closed")
}

// sessionCleanupRoutine periodically drops sessions from memory that have
// not been accessed within a day. Persisted records are kept.
func sessionCleanupRoutine(manager *session.Manager) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		removed := manager.CleanupExpiredSessions(24 * time.Hour)
		if removed > 0 {
			log.Printf("Cleaned up %d expired sessions", removed)
		}
	}
}

// storageSyncRoutine removes sessions from memory when their persisted
// records have been deleted out from under the server.
func storageSyncRoutine(manager *session.Manager, persistence session.SessionPersistence) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		if pruned := pruneOrphans(manager, persistence); pruned > 0 {
			log.Printf("Storage sync: pruned %d orphaned sessions from memory", pruned)
		}
	}
}

func pruneOrphans(manager *session.Manager, persistence session.SessionPersistence) int {
	pruned := 0
	for _, s := range manager.List() {
		if persistence.Exists(s.ID) {
			continue
		}
		if err := manager.DeleteFromMemory(s.ID); err == nil {
			pruned++
			log.Printf("Pruned session %s from memory (records deleted)", s.ID)
		}
	}
	return pruned
}

// runStdioMCPWithInternalServer runs an MCP stdio server.
// It reuses an API already listening on the configured address; otherwise it
// starts an internal HTTP API on a random loopback port and targets that.
func runStdioMCPWithInternalServer(ctx context.Context, settings *config.Settings) error {
	externalURL := fmt.Sprintf("http://%s:%d", settings.Host, settings.Port)
	log.Printf("Checking for external API server at %s...", externalURL)

	baseURL := externalURL
	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(externalURL + "/health")
	if err == nil && resp.StatusCode < 500 {
		resp.Body.Close()
		log.Printf("External API server found at %s, using it for MCP", externalURL)
	} else {
		log.Printf("No external API server found, starting internal HTTP server")

		svc, err := initializeServices(settings)
		if err != nil {
			return fmt.Errorf("failed to initialize services: %w", err)
		}
		defer svc.shutdown()

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		internalAddr := listener.Addr().String()
		log.Printf("Starting internal HTTP server on %s for MCP stdio", internalAddr)

		httpServer := &http.Server{Handler: api.NewServer(svc.game, svc.hub)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Internal HTTP server error: %v", err)
			}
		}()
		defer httpServer.Shutdown(context.Background())

		baseURL = "http://" + internalAddr
	}

	mcpClient := mcp.NewClient(baseURL)
	log.Printf("MCP stdio server ready (API at %s)", baseURL)

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
