// Package adminrpc exposes the admin/control-plane gRPC surface over a
// running reactor.Scheduler: ListActors, ReactorStats, BufferPoolStats,
// and PostEvent. It is deliberately distinct from the core wire protocol
// C2-C4 implement, mirroring the teacher's separation between its own
// actor-messaging wire format and the gRPC surface layered on top of it.
package adminrpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	"github.com/solidframe/solidframe/internal/reactor"
	"github.com/solidframe/solidframe/internal/store"
)

// ServerConfig holds configuration for the admin gRPC server.
type ServerConfig struct {
	// ListenAddr is the address to listen on (e.g., "localhost:10009").
	ListenAddr string

	// ServerPingTime is the duration after which the server pings the
	// client. If not set, defaults to 5 minutes.
	ServerPingTime time.Duration

	// ServerPingTimeout is the duration the server waits for ping ack.
	// If not set, defaults to 1 minute.
	ServerPingTimeout time.Duration

	// ClientPingMinWait is the minimum time between client pings.
	// If not set, defaults to 5 seconds.
	ClientPingMinWait time.Duration

	// ClientAllowPingWithoutStream allows pings even without active
	// streams.
	ClientAllowPingWithoutStream bool
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:                   "localhost:10009",
		ServerPingTime:               5 * time.Minute,
		ServerPingTimeout:            1 * time.Minute,
		ClientPingMinWait:            5 * time.Second,
		ClientAllowPingWithoutStream: true,
	}
}

// Server is the admin gRPC server.
type Server struct {
	cfg ServerConfig

	sched      *reactor.Scheduler
	auditStore *store.Store

	grpcServer *grpc.Server
	listener   net.Listener

	started bool
	mu      sync.RWMutex

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewServer creates a new admin gRPC server bound to sched for
// introspection/control and auditStore for recording posted events.
// auditStore may be nil, in which case PostEvent does not audit.
func NewServer(cfg ServerConfig, sched *reactor.Scheduler,
	auditStore *store.Store) *Server {

	return &Server{
		cfg:        cfg,
		sched:      sched,
		auditStore: auditStore,
		quit:       make(chan struct{}),
	}
}

// Start starts the gRPC server.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("server already started")
	}

	lis, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr, err)
	}
	s.listener = lis

	opts := s.buildServerOptions()
	s.grpcServer = grpc.NewServer(opts...)
	registerAdminServer(s.grpcServer, s)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		slog.Info("admin gRPC server listening", "addr", s.cfg.ListenAddr)
		if err := s.grpcServer.Serve(lis); err != nil {
			select {
			case <-s.quit:
			default:
				slog.Error("admin gRPC server error", "error", err)
			}
		}
	}()

	s.started = true
	return nil
}

// Stop gracefully stops the gRPC server.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	close(s.quit)
	s.grpcServer.GracefulStop()
	s.wg.Wait()

	s.started = false
	slog.Info("admin gRPC server stopped")
	return nil
}

// buildServerOptions creates gRPC server options with keepalive and
// interceptors, a pattern mirrored from lnd-style long-lived RPC servers.
func (s *Server) buildServerOptions() []grpc.ServerOption {
	serverKeepalive := keepalive.ServerParameters{
		Time:    s.cfg.ServerPingTime,
		Timeout: s.cfg.ServerPingTimeout,
	}

	clientKeepalive := keepalive.EnforcementPolicy{
		MinTime:             s.cfg.ClientPingMinWait,
		PermitWithoutStream: s.cfg.ClientAllowPingWithoutStream,
	}

	return []grpc.ServerOption{
		grpc.KeepaliveParams(serverKeepalive),
		grpc.KeepaliveEnforcementPolicy(clientKeepalive),
		grpc.ChainUnaryInterceptor(
			s.loggingUnaryInterceptor,
			s.validationUnaryInterceptor,
		),
	}
}

func (s *Server) loggingUnaryInterceptor(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	start := time.Now()

	slog.Debug("RPC request", "method", info.FullMethod)

	resp, err := handler(ctx, req)

	duration := time.Since(start)
	if err != nil {
		slog.Warn("RPC failed",
			"method", info.FullMethod, "duration", duration, "error", err,
		)
	} else {
		slog.Debug("RPC completed",
			"method", info.FullMethod, "duration", duration,
		)
	}

	return resp, err
}

func (s *Server) validationUnaryInterceptor(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	select {
	case <-s.quit:
		return nil, status.Error(codes.Unavailable, "server is shutting down")
	default:
	}

	return handler(ctx, req)
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}
