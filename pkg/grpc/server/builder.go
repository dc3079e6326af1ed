package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
)

type Option func(*Options)

type Options struct {
	port              int
	listener          net.Listener
	logger            *zap.Logger
	reflection        bool
	unaryInterceptors []grpc.UnaryServerInterceptor
	enableLogging     bool
	enableRecovery    bool
	maxRecvMsgSize    int
	maxConnectionIdle time.Duration
}

func WithPort(port int) Option {
	return func(o *Options) {
		o.port = port
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.logger = logger
	}
}

func WithReflection(enabled bool) Option {
	return func(o *Options) {
		o.reflection = enabled
	}
}

// WithUnaryInterceptors appends interceptors that run after the built-in ones.
func WithUnaryInterceptors(interceptors ...grpc.UnaryServerInterceptor) Option {
	return func(o *Options) {
		o.unaryInterceptors = append(o.unaryInterceptors, interceptors...)
	}
}

func WithLogging(enabled bool) Option {
	return func(o *Options) {
		o.enableLogging = enabled
	}
}

// WithRecovery converts handler panics into Internal errors.
func WithRecovery(enabled bool) Option {
	return func(o *Options) {
		o.enableRecovery = enabled
	}
}

// WithListener serves on lis instead of opening a TCP port.
func WithListener(lis net.Listener) Option {
	return func(o *Options) {
		o.listener = lis
	}
}

// WithMaxRecvMsgSize raises the request size limit; rubric and transcript
// texts can exceed the 4MB default.
func WithMaxRecvMsgSize(bytes int) Option {
	return func(o *Options) {
		o.maxRecvMsgSize = bytes
	}
}

// WithMaxConnectionIdle closes client connections idle for longer than d.
func WithMaxConnectionIdle(d time.Duration) Option {
	return func(o *Options) {
		o.maxConnectionIdle = d
	}
}

// Server is a gRPC server with a health service. Every service registered
// through Register is reported SERVING until Shutdown.
type Server struct {
	grpcServer   *grpc.Server
	lis          net.Listener
	logger       *zap.Logger
	healthServer *health.Server

	mu       sync.Mutex
	services []string
}

// New creates a server from opts. It listens immediately so a bad port fails
// here rather than in Start.
func New(opts ...Option) (*Server, error) {
	options := &Options{
		port:   50051,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = zap.NewNop()
	}

	lis, err := listen(options)
	if err != nil {
		return nil, err
	}

	grpcServer := grpc.NewServer(serverOptions(options)...)
	if options.reflection {
		reflection.Register(grpcServer)
	}

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	return &Server{
		grpcServer:   grpcServer,
		lis:          lis,
		logger:       options.logger.Named("grpc-server"),
		healthServer: healthServer,
	}, nil
}

func listen(o *Options) (net.Listener, error) {
	if o.listener != nil {
		return o.listener, nil
	}
	if o.port < 1 || o.port > 65535 {
		return nil, fmt.Errorf("invalid port %d: must be between 1 and 65535", o.port)
	}
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", o.port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on port %d: %w", o.port, err)
	}
	return lis, nil
}

// serverOptions orders interceptors recovery first, then logging, so a
// recovered panic is still logged with its status.
func serverOptions(o *Options) []grpc.ServerOption {
	var out []grpc.ServerOption
	if o.maxRecvMsgSize > 0 {
		out = append(out, grpc.MaxRecvMsgSize(o.maxRecvMsgSize))
	}
	if o.maxConnectionIdle > 0 {
		out = append(out, grpc.KeepaliveParams(keepalive.ServerParameters{MaxConnectionIdle: o.maxConnectionIdle}))
	}

	var interceptors []grpc.UnaryServerInterceptor
	if o.enableRecovery {
		interceptors = append(interceptors, RecoveryInterceptor(o.logger))
	}
	if o.enableLogging {
		interceptors = append(interceptors, LoggingInterceptor(o.logger))
	}
	interceptors = append(interceptors, o.unaryInterceptors...)
	if len(interceptors) > 0 {
		out = append(out, grpc.ChainUnaryInterceptor(interceptors...))
	}
	return out
}

// Register installs a service and reports it SERVING under name.
func (s *Server) Register(name string, register func(s *grpc.Server)) {
	register(s.grpcServer)
	if name == "" {
		return
	}

	s.mu.Lock()
	s.services = append(s.services, name)
	s.mu.Unlock()

	s.healthServer.SetServingStatus(name, healthpb.HealthCheckResponse_SERVING)
	s.logger.Info("registered service with health check", zap.String("service", name))
}

// SetServiceHealth updates the health status of a specific service.
func (s *Server) SetServiceHealth(name string, status healthpb.HealthCheckResponse_ServingStatus) {
	s.healthServer.SetServingStatus(name, status)
	s.logger.Info("updated service health",
		zap.String("service", name),
		zap.String("status", status.String()))
}

// Start runs the server in a goroutine and returns immediately.
func (s *Server) Start() {
	s.logger.Info("gRPC server starting", zap.String("addr", s.lis.Addr().String()))

	go func() {
		if err := s.grpcServer.Serve(s.lis); err != nil {
			s.logger.Error("gRPC server failed", zap.Error(err))
		}
	}()
}

// Shutdown marks every service NOT_SERVING, then drains in-flight requests
// until ctx expires, after which remaining requests are cut off.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("gRPC server shutting down")

	s.mu.Lock()
	services := append([]string{""}, s.services...)
	s.mu.Unlock()
	for _, name := range services {
		s.healthServer.SetServingStatus(name, healthpb.HealthCheckResponse_NOT_SERVING)
	}

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("gRPC server stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("forced shutdown due to timeout")
		s.grpcServer.Stop()
		return ctx.Err()
	}
}

// Stop shuts the server down immediately.
func (s *Server) Stop() {
	s.grpcServer.Stop()
}

// Addr returns the server's listening address.
func (s *Server) Addr() net.Addr {
	return s.lis.Addr()
}
