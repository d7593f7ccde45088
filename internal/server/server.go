package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"braces.dev/errtrace"
	"golang.org/x/sync/errgroup"

	"github.com/zurustar/sipproxy/internal/config"
	"github.com/zurustar/sipproxy/internal/logging"
	"github.com/zurustar/sipproxy/internal/proxy"
	"github.com/zurustar/sipproxy/internal/registrar"
	"github.com/zurustar/sipproxy/internal/transport"
	"github.com/zurustar/sipproxy/internal/webadmin"
)

// bannerTimeFormat is used by the STARTED and ENDED log lines
const bannerTimeFormat = "Mon, 02 Jan 2006 15:04:05"

var errConsoleQuit = errors.New("quit requested from console")

// SIPServerImpl implements the Server interface
type SIPServerImpl struct {
	config         *config.Config
	codes          *config.ReasonTable
	logger         logging.Logger
	logCloser      io.Closer
	transport      *transport.UDPTransport
	registrar      *registrar.Store
	proxyEngine    *proxy.StatelessProxy
	webAdminServer *webadmin.Server
	console        Console
	hostname       func() (string, error)

	ip      string
	port    int
	started bool
	mu      sync.RWMutex
}

// Option configures a SIPServerImpl
type Option func(*SIPServerImpl)

// WithLogger makes the server log to logger instead of the configured sink
func WithLogger(logger logging.Logger) Option {
	return func(s *SIPServerImpl) {
		s.logger = logger
	}
}

// WithConsole sets the console watched for the quit command by Run.
// It is ignored when the configuration disables the console.
func WithConsole(console Console) Option {
	return func(s *SIPServerImpl) {
		s.console = console
	}
}

// NewSIPServer creates a new SIP proxy server instance
func NewSIPServer(opts ...Option) *SIPServerImpl {
	s := &SIPServerImpl{
		hostname: os.Hostname,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadConfig loads and validates the server configuration.
// An empty filename selects the defaults.
func (s *SIPServerImpl) LoadConfig(filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errtrace.Errorf("cannot load configuration while server is running")
	}

	configManager := config.NewManager()
	if filename == "" {
		cfg := config.GetDefaultConfig()
		if err := configManager.Validate(cfg); err != nil {
			return errtrace.Wrap(fmt.Errorf("configuration validation failed: %w", err))
		}
		s.config = cfg
		s.codes = configManager.Codes()
		return nil
	}

	cfg, err := configManager.Load(filename)
	if err != nil {
		return errtrace.Wrap(fmt.Errorf("failed to load configuration: %w", err))
	}

	s.config = cfg
	s.codes = configManager.Codes()
	return nil
}

// Start binds the socket and starts the receive worker and the web admin
func (s *SIPServerImpl) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errtrace.Errorf("server is already running")
	}

	if s.config == nil {
		return errtrace.Errorf("configuration not loaded")
	}

	if err := s.initializeComponents(); err != nil {
		s.cleanup()
		return errtrace.Wrap(fmt.Errorf("failed to initialize components: %w", err))
	}

	if err := s.startTransport(); err != nil {
		s.cleanup()
		return errtrace.Wrap(fmt.Errorf("failed to start transport: %w", err))
	}

	if s.config.WebAdmin.Enabled {
		if err := s.webAdminServer.Start(s.config.WebAdmin.Port); err != nil {
			s.transport.Stop()
			s.cleanup()
			return errtrace.Wrap(fmt.Errorf("failed to start web admin server: %w", err))
		}
	}

	s.started = true
	return nil
}

// Stop stops the receive worker after the in-flight datagram and closes everything
func (s *SIPServerImpl) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info("Initiating server shutdown...")

	var errs []error
	if err := s.transport.Stop(); err != nil {
		s.logger.Error("Error stopping transport", logging.ErrorField(err))
		errs = append(errs, err)
	}

	if s.webAdminServer != nil {
		if err := s.webAdminServer.Stop(); err != nil {
			s.logger.Error("Error stopping web admin server", logging.ErrorField(err))
			errs = append(errs, err)
		}
	}

	s.logger.Info("ENDED - " + time.Now().Format(bannerTimeFormat))
	s.cleanup()

	s.started = false
	return errtrace.Wrap(errors.Join(errs...))
}

// initializeComponents builds every component in dependency order
func (s *SIPServerImpl) initializeComponents() error {
	if s.logger == nil {
		logger, err := logging.NewLoggerFromConfig(logging.LoggerConfig{
			Level:  s.config.Logging.Level,
			File:   s.config.Logging.File,
			Format: s.config.Logging.Format,
		})
		if err != nil {
			return errtrace.Wrap(fmt.Errorf("failed to initialize logger: %w", err))
		}
		s.logger = logger
		s.logCloser = logger
	}

	s.logger.Info("STARTED - " + time.Now().Format(bannerTimeFormat))

	hostname, err := s.hostname()
	if err != nil {
		return errtrace.Wrap(fmt.Errorf("failed to read host name: %w", err))
	}
	s.logger.Info(hostname)

	s.ip = s.config.Server.Address
	if s.ip == "" {
		ip, err := resolveIPv4(hostname)
		if err != nil {
			return errtrace.Wrap(err)
		}
		s.ip = ip
	}

	s.registrar = registrar.NewStore(s.logger)
	s.transport = transport.NewUDPTransport(s.logger)
	s.webAdminServer = webadmin.NewServer(s.registrar, s.logger)
	return nil
}

// startTransport binds the socket, then builds the proxy from the bound port
// and attaches it. Datagrams arriving before that are dropped.
func (s *SIPServerImpl) startTransport() error {
	address := net.JoinHostPort(s.ip, strconv.Itoa(s.config.Server.UDPPort))
	if err := s.transport.Start(address); err != nil {
		return errtrace.Wrap(err)
	}

	s.port = s.transport.LocalAddr().(*net.UDPAddr).Port
	s.proxyEngine = proxy.NewStatelessProxy(s.registrar, s.codes, proxy.Config{
		TopVia:      config.TopVia(s.ip, s.port),
		RecordRoute: config.RecordRoute(s.ip, s.port),
		Language:    s.config.Server.Language,
	}, s.logger)
	s.transport.RegisterHandler(s.proxyEngine)

	s.logger.Info(fmt.Sprintf("%s:%d", s.ip, s.port))
	return nil
}

func (s *SIPServerImpl) cleanup() {
	if s.logCloser == nil {
		return
	}
	if err := s.logCloser.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to close log: %v\n", err)
	}
	s.logCloser = nil
	s.logger = nil
}

// resolveIPv4 returns the first IPv4 address of hostname
func resolveIPv4(hostname string) (string, error) {
	ips, err := net.LookupIP(hostname)
	if err != nil {
		return "", errtrace.Wrap(fmt.Errorf("failed to resolve host name %s: %w", hostname, err))
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4.String(), nil
		}
	}
	return "", errtrace.Errorf("host name %s has no IPv4 address", hostname)
}

// Run starts the server and blocks until ctx is cancelled or the console
// asks to quit, then stops it
func (s *SIPServerImpl) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return errtrace.Wrap(err)
	}

	g, gCtx := errgroup.WithContext(ctx)

	if s.console != nil && s.config.Console.Enabled {
		quit := make(chan struct{})
		logger := s.logger
		// not part of the group: a console read cannot be interrupted
		go func() {
			if err := s.console.WaitForQuit(); err != nil {
				logger.Debug("console closed, stop with a signal", logging.ErrorField(err))
				return
			}
			close(quit)
		}()
		g.Go(func() error {
			select {
			case <-quit:
				return errConsoleQuit
			case <-gCtx.Done():
				return nil
			}
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		return errtrace.Wrap(s.Stop())
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errConsoleQuit) {
		return errtrace.Wrap(err)
	}
	return nil
}

// RunWithSignalHandling runs the server with graceful shutdown on signals
func (s *SIPServerImpl) RunWithSignalHandling() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return errtrace.Wrap(s.Run(ctx))
}

// LocalAddr returns the bound SIP socket address, or nil when stopped
func (s *SIPServerImpl) LocalAddr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.transport == nil {
		return nil
	}
	return s.transport.LocalAddr()
}

// WebAdminAddr returns the web admin address, or nil when it is not running
func (s *SIPServerImpl) WebAdminAddr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.webAdminServer == nil {
		return nil
	}
	return s.webAdminServer.Addr()
}

var _ Server = (*SIPServerImpl)(nil)
