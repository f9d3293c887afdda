// Package server exposes the structural checks over HTTP for one-off lookups.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/fumen-sieve/internal/config"
	"github.com/park285/fumen-sieve/internal/domain"
	"github.com/park285/fumen-sieve/internal/obslog"
	"github.com/park285/fumen-sieve/internal/pipeline"
	"github.com/park285/fumen-sieve/internal/render"
	"github.com/park285/fumen-sieve/internal/sieve"
)

const requestTimeout = 5 * time.Second

type CheckRequest struct {
	Reference string `json:"reference"`
	Before    string `json:"before"`
	After     string `json:"after"`
	Pivot     string `json:"pivot,omitempty"`
}

type CheckResponse struct {
	Outcome sieve.Outcome `json:"outcome"`
	Field   string        `json:"field,omitempty"`
	Error   string        `json:"error,omitempty"`
}

type Server struct {
	prefix   string
	pivot    string
	renderer render.Renderer
	cache    pipeline.VerdictCache
}

type Option func(*Server)

func WithCache(c pipeline.VerdictCache) Option { return func(s *Server) { s.cache = c } }

func WithRenderer(r render.Renderer) Option { return func(s *Server) { s.renderer = r } }

// WithPivot sets the pivot used when a request leaves it empty.
func WithPivot(pivot string) Option { return func(s *Server) { s.pivot = pivot } }

func New(referencePrefix string, opts ...Option) *Server {
	s := &Server{
		prefix:   referencePrefix,
		pivot:    config.Default().Pivot,
		renderer: render.NewSVGRenderer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Handler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/healthz":
			ctx.SetStatusCode(fasthttp.StatusOK)
			ctx.SetBodyString("ok")
		case "/v1/check":
			if !ctx.IsPost() {
				ctx.Error("method not allowed", fasthttp.StatusMethodNotAllowed)
				return
			}
			s.handleCheck(ctx)
		case "/v1/render":
			if !ctx.IsGet() {
				ctx.Error("method not allowed", fasthttp.StatusMethodNotAllowed)
				return
			}
			s.handleRender(ctx)
		default:
			ctx.Error("not found", fasthttp.StatusNotFound)
		}
	}
}

// ListenAndServe blocks until ctx is canceled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &fasthttp.Server{
		Handler:      s.Handler(),
		Name:         "fumen-sieve",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(addr) }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return srv.Shutdown()
	}
}

func (s *Server) data(ref string) string {
	ref = strings.TrimSpace(ref)
	if d, ok := strings.CutPrefix(ref, s.prefix); ok {
		return d
	}
	return ref
}

func (s *Server) handleCheck(ctx *fasthttp.RequestCtx) {
	var req CheckRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeJSON(ctx, fasthttp.StatusBadRequest, CheckResponse{Error: "invalid json"})
		return
	}
	pivot := req.Pivot
	if strings.TrimSpace(pivot) == "" {
		pivot = s.pivot
	}
	g, err := sieve.ParseGroups(req.Before, req.After, pivot)
	if err != nil {
		writeJSON(ctx, fasthttp.StatusBadRequest, CheckResponse{Error: err.Error()})
		return
	}
	data := s.data(req.Reference)
	cctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if s.cache != nil {
		if o, hit, err := s.cache.Get(cctx, g.Key(), data); err == nil && hit {
			writeJSON(ctx, fasthttp.StatusOK, CheckResponse{Outcome: o})
			return
		}
	}
	f, err := pipeline.DecodeField(data)
	if err != nil {
		writeJSON(ctx, fasthttp.StatusUnprocessableEntity, CheckResponse{Error: err.Error()})
		return
	}
	outcome, err := sieve.Evaluate(f, g)
	if err != nil {
		status := fasthttp.StatusInternalServerError
		if errors.Is(err, domain.ErrContractViolation) {
			status = fasthttp.StatusUnprocessableEntity
		}
		writeJSON(ctx, status, CheckResponse{Error: err.Error()})
		return
	}
	if s.cache != nil {
		if err := s.cache.Put(cctx, g.Key(), data, outcome); err != nil {
			obslog.L().Warn("sieve_cache_put", zap.Error(err))
		}
	}
	obslog.L().Info("sieve_http_check",
		zap.String("groups", g.Key()),
		zap.String("outcome", string(outcome)),
	)
	writeJSON(ctx, fasthttp.StatusOK, CheckResponse{Outcome: outcome, Field: trimmedField(f)})
}

func (s *Server) handleRender(ctx *fasthttp.RequestCtx) {
	ref := string(ctx.QueryArgs().Peek("ref"))
	if strings.TrimSpace(ref) == "" {
		ctx.Error("ref is required", fasthttp.StatusBadRequest)
		return
	}
	f, err := pipeline.DecodeField(s.data(ref))
	if err != nil {
		ctx.Error(err.Error(), fasthttp.StatusUnprocessableEntity)
		return
	}
	rctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	png, err := s.renderer.RenderPNG(rctx, f, render.Options{})
	if err != nil {
		ctx.Error(err.Error(), fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("image/png")
	ctx.SetBody(png)
}

// trimmedField renders only the occupied rows, top first.
func trimmedField(f *domain.Field) string {
	lines := strings.Split(f.String(), "\n")
	keep := f.TopOccupied() + 1
	if keep <= 0 {
		return ""
	}
	return strings.Join(lines[len(lines)-keep:], "\n")
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		ctx.Error("encode response", fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(raw)
}
