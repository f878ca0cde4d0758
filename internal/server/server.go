package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/josephgoksu/deepagent/internal/conversation"
	"github.com/josephgoksu/deepagent/internal/notes"
	"github.com/josephgoksu/deepagent/internal/planning"
	"golang.org/x/time/rate"
)

// Options configures the HTTP server.
type Options struct {
	Port              int
	APIKey            string   // empty disables the key check
	AllowedOrigins    []string // "*" allows any origin
	ChatRatePerSecond float64  // <= 0 disables chat rate limiting
	ChatBurst         int
	Version           string
	Logger            *slog.Logger
}

// Server exposes the conversation, planning and notes services over HTTP.
type Server struct {
	plans  *planning.Service
	chats  *conversation.Service
	notes  *notes.Service
	logger *slog.Logger

	version     string
	apiKey      string
	origins     map[string]struct{}
	anyOrigin   bool
	chatLimiter *rate.Limiter

	server *http.Server
}

// New builds a Server. A nil notes service leaves the /memory routes unmounted.
func New(plans *planning.Service, chats *conversation.Service, notesSvc *notes.Service, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		plans:   plans,
		chats:   chats,
		notes:   notesSvc,
		logger:  logger,
		version: opts.Version,
		apiKey:  strings.TrimSpace(opts.APIKey),
		origins: make(map[string]struct{}, len(opts.AllowedOrigins)),
	}
	for _, o := range opts.AllowedOrigins {
		o = strings.TrimSpace(o)
		if o == "*" {
			s.anyOrigin = true
		} else if o != "" {
			s.origins[o] = struct{}{}
		}
	}
	if opts.ChatRatePerSecond > 0 {
		burst := opts.ChatBurst
		if burst < 1 {
			burst = 1
		}
		s.chatLimiter = rate.NewLimiter(rate.Limit(opts.ChatRatePerSecond), burst)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           s.registerRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Addr is the listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start serves in a goroutine. Listen errors are sent to errChan.
func (s *Server) Start(wg *sync.WaitGroup, errChan chan<- error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.logger.Info("http server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
