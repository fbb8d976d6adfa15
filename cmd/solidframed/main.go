package main

import (
	"context"
	"flag"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/btcsuite/btclog/v2"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	adminrpc "github.com/solidframe/solidframe/internal/api/grpc"
	"github.com/solidframe/solidframe/internal/baselib/actor"
	"github.com/solidframe/solidframe/internal/build"
	"github.com/solidframe/solidframe/internal/demoproto"
	"github.com/solidframe/solidframe/internal/mcp"
	"github.com/solidframe/solidframe/internal/reactor"
	"github.com/solidframe/solidframe/internal/store"
	"github.com/solidframe/solidframe/internal/web"
)

func main() {
	var (
		dbPath         = flag.String("db", "", "Path to SQLite database (default: ~/.solidframe/store.db)")
		listenAddr     = flag.String("listen", ":9090", "demoproto listener address (empty to disable)")
		webAddr        = flag.String("web", ":8080", "Status dashboard address (empty to disable)")
		grpcAddr       = flag.String("grpc", "localhost:10009", "Admin gRPC server address (empty to disable)")
		enableMCP      = flag.Bool("mcp", false, "Enable MCP stdio transport (default: web + gRPC only)")
		numReactors    = flag.Int("reactors", runtime.NumCPU(), "Number of reactors in the scheduler")
		logDir         = flag.String("log-dir", "~/.solidframe/logs", "Directory for log files (empty to disable file logging)")
		maxLogFiles    = flag.Int("max-log-files", build.DefaultMaxLogFiles, "Maximum number of rotated log files to keep")
		maxLogFileSize = flag.Int("max-log-file-size", build.DefaultMaxLogFileSize, "Maximum log file size in MB before rotation")
	)
	flag.Parse()

	logDirExpanded := expandHome(*logDir)

	var logRotator *build.RotatingLogWriter
	if logDirExpanded != "" {
		logRotator = build.NewRotatingLogWriter()
		err := logRotator.InitLogRotator(&build.LogRotatorConfig{
			LogDir:         logDirExpanded,
			MaxLogFiles:    *maxLogFiles,
			MaxLogFileSize: *maxLogFileSize,
			Filename:       "solidframed.log",
		})
		if err != nil {
			log.Printf("Failed to init log rotator: %v (continuing without file logging)", err)
			logRotator = nil
		} else {
			defer logRotator.Close()

			multiWriter := io.MultiWriter(os.Stderr, logRotator)
			log.SetOutput(multiWriter)
			log.SetFlags(log.LstdFlags)
		}
	}

	log.Printf("solidframed version %s go=%s", build.Version(), build.GoVersion)

	// Create btclog handlers for structured subsystem logging; console
	// plus the rotating file when enabled, matching the dual-stream
	// pattern lnd-style daemons use.
	var btclogHandlers []btclog.Handler
	btclogHandlers = append(btclogHandlers, btclog.NewDefaultHandler(os.Stderr))
	if logRotator != nil {
		btclogHandlers = append(btclogHandlers, btclog.NewDefaultHandler(logRotator))
	}
	combinedHandler := build.NewHandlerSet(btclogHandlers...)

	reactor.UseLogger(btclog.NewSLogger(combinedHandler))
	actor.UseLogger(btclog.NewSLogger(combinedHandler))

	dbPathExpanded := expandHome(*dbPath)
	if dbPathExpanded == "" {
		var err error
		dbPathExpanded, err = store.DefaultDBPath()
		if err != nil {
			log.Fatalf("Failed to resolve default db path: %v", err)
		}
	}

	sqliteStore, err := store.NewSqliteStore(&store.SqliteConfig{
		DatabaseFileName: dbPathExpanded,
	}, slog.Default())
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer sqliteStore.Close()

	sched, err := reactor.NewScheduler(*numReactors)
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}
	sched.Start()
	defer sched.Stop()
	log.Printf("Scheduler started with %d reactors", sched.NumReactors())

	if *listenAddr != "" {
		types, err := demoproto.NewTypeMap()
		if err != nil {
			log.Fatalf("Failed to build demoproto type map: %v", err)
		}

		lfd, err := listenTCP(*listenAddr)
		if err != nil {
			log.Fatalf("Failed to listen on %s: %v", *listenAddr, err)
		}

		cmdSvc := demoproto.NewCommandService()
		defer cmdSvc.Shutdown(context.Background())

		listener := demoproto.NewListenerActor(lfd, sched, types, cmdSvc)
		r, id := sched.Place(listener)
		if err := listener.Attach(r, id); err != nil {
			log.Fatalf("Failed to attach listener actor: %v", err)
		}
		log.Printf("demoproto listener on %s", *listenAddr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received %v, initiating graceful shutdown (send again to force exit)...", sig)
		cancel()

		sig = <-sigCh
		log.Printf("Received %v again, forcing immediate exit", sig)
		os.Exit(1)
	}()

	var grpcServer *adminrpc.Server
	if *grpcAddr != "" {
		grpcCfg := adminrpc.DefaultServerConfig()
		grpcCfg.ListenAddr = *grpcAddr
		grpcServer = adminrpc.NewServer(grpcCfg, sched, sqliteStore.Store)
		if err := grpcServer.Start(); err != nil {
			log.Fatalf("Failed to start admin gRPC server: %v", err)
		}
		defer grpcServer.Stop()
		log.Printf("Admin gRPC server listening on %s", *grpcAddr)
	}

	if *webAddr != "" {
		webCfg := web.DefaultConfig()
		webCfg.Addr = *webAddr
		webServer := web.NewServer(webCfg, sched, sqliteStore.Store)

		go func() {
			if err := webServer.Start(); err != nil {
				log.Printf("Status dashboard error: %v", err)
			}
		}()
		go func() {
			<-ctx.Done()
			webServer.Shutdown(context.Background())
		}()
		log.Printf("Status dashboard listening on %s", *webAddr)
	}

	if *enableMCP {
		mcpServer := mcp.NewServerWithConfig(mcp.Config{
			Scheduler:  sched,
			AuditStore: sqliteStore.Store,
		})
		log.Println("Starting solidframed MCP server...")
		if err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil {
			log.Fatalf("MCP server error: %v", err)
		}
	} else {
		log.Println("Running in web+gRPC mode (no MCP stdio)")
		<-ctx.Done()
	}
}

func expandHome(path string) string {
	if path == "" {
		return ""
	}
	expanded := os.ExpandEnv(path)
	if expanded == path && len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("Failed to get home directory: %v", err)
		}
		expanded = home + path[1:]
	}
	return expanded
}
