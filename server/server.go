// Package server exposes the operational HTTP surface: health, usage
// status, and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hrygo/kulturbot/content"
	"github.com/hrygo/kulturbot/internal/version"
	"github.com/hrygo/kulturbot/ledger"
)

const shutdownTimeout = 10 * time.Second

// Server is the operational HTTP endpoint.
type Server struct {
	echo    *echo.Echo
	addr    string
	ledger  *ledger.Ledger
	content *content.Store
	logger  *slog.Logger
}

type statusResponse struct {
	Version             string    `json:"version"`
	TotalRequests       int64     `json:"total_requests"`
	EmbeddingTokens     int64     `json:"embedding_tokens"`
	SynthesisTokens     int64     `json:"synthesis_tokens"`
	Sections            int       `json:"sections"`
	Posts               int       `json:"posts"`
	SectionsRefreshedAt time.Time `json:"sections_refreshed_at"`
	PostsRefreshedAt    time.Time `json:"posts_refreshed_at"`
}

// New builds the server. It does not start listening.
func New(addr string, ldg *ledger.Ledger, contentStore *content.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:    e,
		addr:    addr,
		ledger:  ldg,
		content: contentStore,
		logger:  logger,
	}

	e.GET("/healthz", s.handleHealthz)
	e.GET("/api/v1/status", s.handleStatus)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	return s
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.logger.Info("http server listening", "addr", s.addr)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (s *Server) handleStatus(c echo.Context) error {
	report, err := s.ledger.Report(c.Request().Context())
	if err != nil {
		s.logger.Error("status report failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read usage report")
	}

	sections := s.content.Sections()
	posts := s.content.Posts()
	return c.JSON(http.StatusOK, statusResponse{
		Version:             version.String(),
		TotalRequests:       report.TotalRequests,
		EmbeddingTokens:     report.EmbeddingTokens,
		SynthesisTokens:     report.SynthesisTokens,
		Sections:            len(sections.Items),
		Posts:               len(posts.Items),
		SectionsRefreshedAt: sections.RefreshedAt,
		PostsRefreshedAt:    posts.RefreshedAt,
	})
}
