package simulator

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"deckhand/internal/deck"
	"deckhand/internal/domain"
	"deckhand/internal/infra"
	"deckhand/internal/middleware"
)

// ServerOptions configures the simulated presentation API.
type ServerOptions struct {
	Store  *Store
	Runner *Runner
	Logger *infra.Logger

	// Token, when set, requires Authorization: Bearer <Token> on every
	// /presentations route.
	Token string

	// CORSOrigins lists origins allowed to call the simulator from a
	// browser; empty disables CORS handling.
	CORSOrigins []string
}

// Server exposes the presentation Job API over HTTP, backed by the in-memory
// store and the scripted runner. It implements the same wire contract the
// production backend does, which lets the client, CLI, and tests run against
// it unchanged.
type Server struct {
	store       *Store
	runner      *Runner
	logger      *infra.Logger
	token       string
	corsOrigins []string
}

// NewServer validates options and builds the server.
func NewServer(opts ServerOptions) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("simulator: store is required")
	}
	if opts.Runner == nil {
		return nil, errors.New("simulator: runner is required")
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Server{
		store:       opts.Store,
		runner:      opts.Runner,
		logger:      logger,
		token:       opts.Token,
		corsOrigins: opts.CORSOrigins,
	}, nil
}

// Router assembles the chi router with the full route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimw.RealIP, chimw.Recoverer, middleware.Logger(*s.logger))
	if len(s.corsOrigins) > 0 {
		r.Use(middleware.CORS(s.corsOrigins))
	}

	r.Get("/healthz", s.health)

	r.Route("/presentations", func(r chi.Router) {
		if s.token != "" {
			r.Use(s.requireAuth)
		}
		r.Post("/", s.create)
		r.Get("/", s.list)
		r.Post("/batch-delete", s.deleteBatch)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.get)
			r.Put("/", s.update)
			r.Delete("/", s.delete)
			r.Post("/steps/{step}/run", s.runStep)
			r.Get("/download-pptx", s.downloadPPTX)
		})
	})

	return r
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if got != s.token {
			s.error(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createRequest struct {
	Name   string         `json:"name"`
	Topic  string         `json:"topic,omitempty"`
	Author string         `json:"author,omitempty"`
	Slides []domain.Slide `json:"slides,omitempty"`
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.error(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		s.error(w, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}
	now := time.Now().UTC()
	p := &domain.Presentation{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Topic:     strings.TrimSpace(req.Topic),
		Author:    strings.TrimSpace(req.Author),
		Slides:    req.Slides,
		Steps:     domain.NewSteps(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for i := range p.Slides {
		if p.Slides[i].ID == "" {
			p.Slides[i].ID = uuid.NewString()
		}
	}
	domain.NormalizeSlideOrder(p.Slides)
	s.store.Put(p)
	s.logger.Info().Str("presentation_id", p.ID).Str("name", p.Name).Msg("sim: presentation created")
	s.json(w, http.StatusCreated, p)
}

func (s *Server) list(w http.ResponseWriter, _ *http.Request) {
	items := s.store.List()
	out := make([]domain.Presentation, 0, len(items))
	for _, p := range items {
		out = append(out, *p)
	}
	s.json(w, http.StatusOK, map[string]any{"items": out})
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	p, ok := s.store.Get(chi.URLParam(r, "id"))
	if !ok {
		s.error(w, http.StatusNotFound, "not_found", "presentation not found")
		return
	}
	s.json(w, http.StatusOK, p)
}

// update merges the client body into the stored record. Name, topic, author,
// and slides are client-owned and replaced wholesale; step state is
// server-owned and survives whatever the client sent.
func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.error(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	id := chi.URLParam(r, "id")
	ok := s.store.Mutate(id, func(p *domain.Presentation) {
		if name := strings.TrimSpace(req.Name); name != "" {
			p.Name = name
		}
		p.Topic = strings.TrimSpace(req.Topic)
		p.Author = strings.TrimSpace(req.Author)
		p.Slides = req.Slides
		for i := range p.Slides {
			if p.Slides[i].ID == "" {
				p.Slides[i].ID = uuid.NewString()
			}
		}
		domain.NormalizeSlideOrder(p.Slides)
		p.UpdatedAt = time.Now().UTC()
	})
	if !ok {
		s.error(w, http.StatusNotFound, "not_found", "presentation not found")
		return
	}
	p, _ := s.store.Get(id)
	s.json(w, http.StatusOK, p)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.store.Delete(id) {
		s.error(w, http.StatusNotFound, "not_found", "presentation not found")
		return
	}
	s.logger.Info().Str("presentation_id", id).Msg("sim: presentation deleted")
	w.WriteHeader(http.StatusNoContent)
}

type batchDeleteRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) deleteBatch(w http.ResponseWriter, r *http.Request) {
	var req batchDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.error(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	deleted := s.store.DeleteBatch(req.IDs)
	s.logger.Info().Int("deleted", deleted).Int("requested", len(req.IDs)).Msg("sim: batch delete")
	s.json(w, http.StatusOK, map[string]int{"deleted": deleted})
}

func (s *Server) runStep(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	step := domain.StepName(chi.URLParam(r, "step"))

	var params domain.RunStepParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil && !errors.Is(err, io.EOF) {
		s.error(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	params.Normalize()
	if err := params.Validate(); err != nil {
		s.error(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	err := s.runner.Start(id, step, params)
	switch {
	case err == nil:
		s.json(w, http.StatusAccepted, map[string]string{"status": "accepted", "step": string(step)})
	case errors.Is(err, domain.ErrStepUnknown):
		s.error(w, http.StatusBadRequest, "unknown_step", fmt.Sprintf("unknown step %q", step))
	case errors.Is(err, domain.ErrNotFound):
		s.error(w, http.StatusNotFound, "not_found", "presentation not found")
	case errors.Is(err, domain.ErrStepBusy):
		s.error(w, http.StatusConflict, "step_busy", fmt.Sprintf("step %q is already processing", step))
	default:
		s.logger.Error().Err(err).Str("presentation_id", id).Str("step", string(step)).Msg("sim: run step")
		s.error(w, http.StatusInternalServerError, "internal", "could not start step")
	}
}

func (s *Server) downloadPPTX(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, ok := s.store.Get(id)
	if !ok {
		s.error(w, http.StatusNotFound, "not_found", "presentation not found")
		return
	}
	data, ok := s.store.PPTX(id)
	if !ok {
		s.error(w, http.StatusNotFound, "pptx_not_ready", "pptx has not been generated yet")
		return
	}
	filename := deck.Slug(p.Name) + ".pptx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.presentationml.presentation")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		s.logger.Warn().Err(err).Str("presentation_id", id).Msg("sim: pptx write aborted")
	}
}

func (s *Server) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) error(w http.ResponseWriter, code int, codeStr, message string) {
	s.json(w, code, map[string]any{
		"error": map[string]string{"code": codeStr, "message": message},
	})
}
