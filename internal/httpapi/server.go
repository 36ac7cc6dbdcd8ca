package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"horse.fit/newsroom/internal/db"
	"horse.fit/newsroom/internal/globaltime"
	"horse.fit/newsroom/internal/tasks"
)

const maxTaskBodyBytes = 64 << 10

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type Server struct {
	repo   db.Repository
	tasks  *tasks.Client
	logger zerolog.Logger
	opts   Options
}

type articleDetail struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Source      string     `json:"source"`
	Category    *string    `json:"category,omitempty"`
	URL         string     `json:"url"`
	ImageURL    *string    `json:"image_url,omitempty"`
	Author      *string    `json:"author,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Language    *string    `json:"language,omitempty"`
	Summary     *string    `json:"summary,omitempty"`
	IsProcessed bool       `json:"is_processed"`
	Tags        []string   `json:"tags"`
	CreatedAt   time.Time  `json:"created_at"`
}

func NewServer(repo db.Repository, taskClient *tasks.Client, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8090
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	return &Server{
		repo:   repo,
		tasks:  taskClient,
		logger: logger.With().Str("component", "httpapi").Logger(),
		opts: Options{
			Host:            host,
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
		},
	}
}

// Handler builds the Echo router with middleware and routes.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/stats", s.handleStats)
	api.GET("/articles/:id", s.handleArticle)
	api.POST("/articles/:id/process", s.handleProcessArticle)
	api.POST("/tasks", s.handleEnqueue)
	api.GET("/tasks/:id", s.handleTaskStatus)
	return e
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.repo == nil || s.tasks == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.Handler()
	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("newsroom ops server started")
	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("newsroom ops server stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	if status >= 500 {
		message = "Internal server error"
	}
	_ = respond(c, status, nil, message)
}

func (s *Server) handleHealth(c echo.Context) error {
	return ok(c, map[string]any{
		"service": "newsroom",
		"time":    globaltime.UTC(),
	})
}

func (s *Server) handleStats(c echo.Context) error {
	counts, err := s.repo.Counts(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("query counts failed")
		return respond(c, http.StatusInternalServerError, nil, "Failed to load stats")
	}
	return ok(c, counts)
}

func (s *Server) handleArticle(c echo.Context) error {
	id, err := parseArticleID(c.Param("id"))
	if err != nil {
		return invalid(c, "id", err.Error())
	}

	ctx := c.Request().Context()
	article, err := s.repo.GetArticle(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return respond(c, http.StatusNotFound, nil, "Article not found")
	}
	if err != nil {
		s.logger.Error().Err(err).Int64("article_id", id).Msg("load article failed")
		return respond(c, http.StatusInternalServerError, nil, "Failed to load article")
	}
	tags, err := s.repo.ArticleTagNames(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Int64("article_id", id).Msg("load article tags failed")
		return respond(c, http.StatusInternalServerError, nil, "Failed to load article")
	}
	if tags == nil {
		tags = []string{}
	}

	return ok(c, articleDetail{
		ID:          article.ID,
		Title:       article.Title,
		Source:      article.Source,
		Category:    article.Category,
		URL:         article.URL,
		ImageURL:    article.ImageURL,
		Author:      article.Author,
		PublishedAt: article.PublishedAt,
		Language:    article.Language,
		Summary:     article.Summary,
		IsProcessed: article.IsProcessed,
		Tags:        tags,
		CreatedAt:   article.CreatedAt,
	})
}

func (s *Server) handleProcessArticle(c echo.Context) error {
	id, err := parseArticleID(c.Param("id"))
	if err != nil {
		return invalid(c, "id", err.Error())
	}
	return s.enqueue(c, tasks.ProcessArticle, tasks.ArticleArgs{ArticleID: id})
}

type enqueueRequest struct {
	Task      string `json:"task"`
	ArticleID int64  `json:"article_id"`
}

func (s *Server) handleEnqueue(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxTaskBodyBytes))
	if err != nil {
		return invalid(c, "body", "could not be read")
	}
	var req enqueueRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return invalid(c, "body", "must be a JSON object")
	}

	name := strings.ToLower(strings.TrimSpace(req.Task))
	if !tasks.Known(name) {
		return invalid(c, "task", fmt.Sprintf("must be one of %s, %s, %s", tasks.FetchNews, tasks.ProcessNewArticles, tasks.ProcessArticle))
	}
	if name != tasks.ProcessArticle {
		return s.enqueue(c, name, nil)
	}
	if req.ArticleID <= 0 {
		return invalid(c, "article_id", "must be a positive integer")
	}
	return s.enqueue(c, name, tasks.ArticleArgs{ArticleID: req.ArticleID})
}

func (s *Server) enqueue(c echo.Context, name string, args any) error {
	handle, err := s.tasks.Enqueue(c.Request().Context(), name, args)
	if err != nil {
		s.logger.Error().Err(err).Str("task", name).Msg("enqueue failed")
		return respond(c, http.StatusInternalServerError, nil, "Failed to enqueue task")
	}
	return respond(c, http.StatusAccepted, handle, "")
}

func (s *Server) handleTaskStatus(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	status, err := s.tasks.Status(c.Request().Context(), id)
	if errors.Is(err, tasks.ErrTaskNotFound) {
		return respond(c, http.StatusNotFound, nil, "Task not found")
	}
	if err != nil {
		s.logger.Error().Err(err).Str("task_id", id).Msg("load task status failed")
		return respond(c, http.StatusInternalServerError, nil, "Failed to load task status")
	}
	return ok(c, status)
}

func parseArticleID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("must be a positive integer")
	}
	return id, nil
}
