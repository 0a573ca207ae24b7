// Package mcp serves the desk task and memo stores as MCP tools.
package mcp

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mycelian/mycelian-desk/client"
	"github.com/mycelian/mycelian-desk/devmode"
	"github.com/mycelian/mycelian-desk/internal/config"
	"github.com/mycelian/mycelian-desk/internal/logger"
	"github.com/mycelian/mycelian-desk/mcp/internal/handlers"
	"github.com/mycelian/mycelian-desk/store"
)

const (
	serverName      = "desk-mcp-server"
	serverVersion   = "0.1.0"
	shutdownTimeout = 10 * time.Second
)

type toolRegisterer interface {
	RegisterTools(s *server.MCPServer) error
}

// NewServer builds an MCP server exposing sess. users supplies the user set
// for company-wide memo detection.
func NewServer(sess *store.Session, users handlers.UserLister) (*server.MCPServer, error) {
	s := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	for name, h := range map[string]toolRegisterer{
		"task": handlers.NewTaskHandler(sess.Tasks),
		"memo": handlers.NewMemoHandler(sess, users),
	} {
		if err := h.RegisterTools(s); err != nil {
			return nil, fmt.Errorf("register %s tools: %w", name, err)
		}
	}
	return s, nil
}

// newClient uses the configured token, falling back to the development
// token when none is set.
func newClient(cfg *config.Config) (*client.Client, string, error) {
	opts := []client.Option{client.WithHTTPTimeout(cfg.HTTPTimeout), client.WithDebugLogging(cfg.Debug)}
	viewer := cfg.UserID
	if cfg.Token == "" {
		log.Warn().Msg("DESK_TOKEN not set; using development token")
		if viewer == "" {
			viewer = devmode.AdminUserID
		}
		c, err := client.NewWithDevMode(cfg.APIURL, opts...)
		return c, viewer, err
	}
	if viewer == "" {
		return nil, "", errors.New("DESK_USER_ID is required with DESK_TOKEN")
	}
	c, err := client.New(cfg.APIURL, cfg.Token, opts...)
	return c, viewer, err
}

// RunMCPServer starts the MCP server over stdio or streamable HTTP.
func RunMCPServer() error {
	cfg, err := config.New()
	if err != nil {
		return err
	}
	flag.StringVar(&cfg.APIURL, "api-url", cfg.APIURL, "Base URL of the desk API")
	flag.StringVar(&cfg.MCPTransport, "transport", cfg.MCPTransport, "stdio or http")
	flag.IntVar(&cfg.MCPPort, "port", cfg.MCPPort, "HTTP port for the http transport")
	flag.Parse()

	// stdout carries the stdio protocol, so logs go to stderr.
	log.Logger = logger.NewWithWriter(serverName, os.Stderr).Level(cfg.Level())
	zerolog.SetGlobalLevel(cfg.Level())

	c, viewer, err := newClient(cfg)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Failed to create client")
		return err
	}
	sess, err := store.NewSession(c, client.User{ID: viewer},
		store.WithLogger(log.Logger),
		store.WithNotifier(store.LogNotifier{Log: log.Logger}),
	)
	if err != nil {
		_ = c.Close()
		return err
	}
	defer func() { _ = sess.Logout() }()

	s, err := NewServer(sess, c)
	if err != nil {
		return err
	}
	log.Info().Str("api_url", cfg.APIURL).Str("viewer", viewer).Str("transport", cfg.MCPTransport).Msg("desk MCP server starting")

	if cfg.MCPTransport == "stdio" {
		return server.ServeStdio(s)
	}
	return serveHTTP(s, cfg.GetMCPAddr())
}

// serveHTTP serves MCP on /mcp plus /metrics until SIGINT or SIGTERM.
func serveHTTP(s *server.MCPServer, addr string) error {
	streamSrv := server.NewStreamableHTTPServer(
		s,
		server.WithEndpointPath("/mcp"),
		server.WithHeartbeatInterval(30*time.Second),
	)
	mux := http.NewServeMux()
	mux.Handle("/mcp", streamSrv)
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
		// No write deadline: streaming responses stay open.
		IdleTimeout: 120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("serving streamable HTTP on /mcp")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during HTTP server shutdown")
	}
	if err := streamSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during MCP server shutdown")
	}
	return nil
}
