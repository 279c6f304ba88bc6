// Package server exposes the outreach flow and the portfolio over a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/spigell/cold-mailer/internal/ai"
	"github.com/spigell/cold-mailer/internal/history"
	"github.com/spigell/cold-mailer/internal/outreach"
	"github.com/spigell/cold-mailer/internal/portfolio"
)

const (
	maxBodySize     = 1 << 20
	shutdownTimeout = 10 * time.Second
)

type emailService interface {
	Generate(ctx context.Context, req outreach.Request) (*outreach.Result, error)
	FollowUp(ctx context.Context, email string, days int) (string, error)
	RecordHistory(email, role, company, jobURL, style string) (history.Entry, error)
	History() []history.Entry
}

type Server struct {
	emails   emailService
	matcher  portfolio.Matcher
	defaults ai.Personalization
	logger   *zap.Logger
}

// New builds the API. defaults fills personalization fields a generate
// request leaves out.
func New(emails emailService, matcher portfolio.Matcher, defaults ai.Personalization, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{emails: emails, matcher: matcher, defaults: defaults, logger: logger}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok")
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/emails", s.generateEmail)
		r.Post("/emails/follow-up", s.followUp)

		r.Get("/portfolio", s.listPortfolio)
		r.Post("/portfolio", s.addPortfolio)
		r.Post("/portfolio/match", s.matchPortfolio)

		r.Get("/history", s.listHistory)
		r.Post("/history", s.addHistory)
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, listen string) error {
	srv := &http.Server{
		Addr:              listen,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server started", zap.String("listen", listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

type generateResponse struct {
	Job      ai.JobRecord        `json:"job"`
	Links    []string            `json:"links"`
	Research *ai.CompanyResearch `json:"research,omitempty"`
	Email    string              `json:"email"`
	Steps    []outreach.Step     `json:"steps"`
}

func (s *Server) generateEmail(w http.ResponseWriter, r *http.Request) {
	req := outreach.Request{Personalization: s.defaults}
	if !s.decode(w, r, &req) {
		return
	}

	result, err := s.emails.Generate(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, generateResponse{
		Job:      result.Job,
		Links:    result.Links,
		Research: result.Research,
		Email:    result.Email,
		Steps:    result.Steps,
	})
}

type followUpRequest struct {
	Email string `json:"email"`
	Days  int    `json:"days"`
}

func (s *Server) followUp(w http.ResponseWriter, r *http.Request) {
	var req followUpRequest
	if !s.decode(w, r, &req) {
		return
	}

	email, err := s.emails.FollowUp(r.Context(), req.Email, req.Days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"email": email})
}

func (s *Server) listPortfolio(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.matcher.Entries())
}

func (s *Server) addPortfolio(w http.ResponseWriter, r *http.Request) {
	var entry portfolio.Entry
	if !s.decode(w, r, &entry) {
		return
	}

	entry.TechStack = strings.TrimSpace(entry.TechStack)
	entry.Link = strings.TrimSpace(entry.Link)
	if entry.TechStack == "" || entry.Link == "" {
		s.writeError(w, r, fmt.Errorf("%w: tech_stack and link are required", outreach.ErrInvalidRequest))
		return
	}

	if err := s.matcher.Add(r.Context(), entry.TechStack, entry.Link); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

type matchRequest struct {
	Skills  any `json:"skills"`
	Results int `json:"results"`
}

func (s *Server) matchPortfolio(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if !s.decode(w, r, &req) {
		return
	}

	if req.Results == 0 {
		req.Results = outreach.DefaultLinks
	}
	if req.Results < 0 {
		s.writeError(w, r, fmt.Errorf("%w: results must be positive", outreach.ErrInvalidRequest))
		return
	}

	matches := s.matcher.Rank(r.Context(), portfolio.NormalizeSkills(req.Skills), req.Results)
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) listHistory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.emails.History())
}

func (s *Server) addHistory(w http.ResponseWriter, r *http.Request) {
	var req history.Entry
	if !s.decode(w, r, &req) {
		return
	}

	entry, err := s.emails.RecordHistory(req.Email, req.JobTitle, req.Company, req.URL, req.TemplateStyle)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := decoder.Decode(target); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: malformed json body: %v", outreach.ErrInvalidRequest, err))
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, outreach.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, outreach.ErrNoJobs):
		return http.StatusNotFound
	case errors.Is(err, ai.ErrUnparseable):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(started)),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
