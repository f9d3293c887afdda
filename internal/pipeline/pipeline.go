// Package pipeline runs candidate records through the metric filter and the structural
// checks and emits the references that survive.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/fumen-sieve/internal/domain"
	"github.com/park285/fumen-sieve/internal/fumen"
	"github.com/park285/fumen-sieve/internal/obslog"
	"github.com/park285/fumen-sieve/internal/records"
	"github.com/park285/fumen-sieve/internal/render"
	"github.com/park285/fumen-sieve/internal/sieve"
)

// RecordSource yields records until io.EOF.
type RecordSource interface {
	Next() (records.Record, error)
}

// VerdictCache memoises structural outcomes by group key and fumen data.
type VerdictCache interface {
	Get(ctx context.Context, groups, data string) (sieve.Outcome, bool, error)
	Put(ctx context.Context, groups, data string, o sieve.Outcome) error
}

// AcceptedSink receives every accepted record, in order.
type AcceptedSink interface {
	SaveAccepted(ctx context.Context, runID string, ordinal, line int, reference string, metric int) error
}

// ImageSink receives a rendered PNG for every accepted record.
type ImageSink func(ordinal int, rec records.Record, png []byte) error

type Config struct {
	Groups          sieve.Groups
	MaxMetric       int
	ReferencePrefix string
	RunID           string
}

type Stats struct {
	Read           int
	NoReference    int
	OverMetric     int
	RejectedGap    int
	RejectedBefore int
	RejectedAfter  int
	CacheHits      int
	Accepted       int
}

type Pipeline struct {
	cfg      Config
	out      io.Writer
	cache    VerdictCache
	sink     AcceptedSink
	renderer render.Renderer
	images   ImageSink
}

type Option func(*Pipeline)

func WithCache(c VerdictCache) Option { return func(p *Pipeline) { p.cache = c } }

func WithAcceptedSink(s AcceptedSink) Option { return func(p *Pipeline) { p.sink = s } }

func WithImages(r render.Renderer, sink ImageSink) Option {
	return func(p *Pipeline) { p.renderer, p.images = r, sink }
}

func New(cfg Config, out io.Writer, opts ...Option) *Pipeline {
	p := &Pipeline{cfg: cfg, out: out}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes src to exhaustion. Rejected records are skipped; any error aborts the run
// and is returned together with the stats gathered so far.
func (p *Pipeline) Run(ctx context.Context, src RecordSource) (Stats, error) {
	var st Stats
	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			return st, nil
		}
		if err != nil {
			return st, err
		}
		st.Read++
		if err := p.process(ctx, rec, &st); err != nil {
			obslog.L().Error("sieve_record_fatal",
				zap.String("run_id", p.cfg.RunID),
				zap.Int("line", rec.Line),
				zap.String("reference", rec.Reference),
				zap.Error(err),
			)
			return st, fmt.Errorf("line %d: %w", rec.Line, err)
		}
	}
}

func (p *Pipeline) process(ctx context.Context, rec records.Record, st *Stats) error {
	data, ok := strings.CutPrefix(rec.Reference, p.cfg.ReferencePrefix)
	if !ok {
		st.NoReference++
		return nil
	}
	metric, err := rec.Metric()
	if err != nil {
		return err
	}
	if metric > p.cfg.MaxMetric {
		st.OverMetric++
		return nil
	}

	groupsKey := p.cfg.Groups.Key()
	var (
		outcome sieve.Outcome
		field   *domain.Field
		cached  bool
	)
	if p.cache != nil {
		o, hit, err := p.cache.Get(ctx, groupsKey, data)
		if err != nil {
			obslog.L().Warn("sieve_cache_get", zap.Error(err))
		} else if hit {
			outcome, cached = o, true
			st.CacheHits++
		}
	}
	if !cached || (outcome == sieve.Accepted && p.images != nil) {
		f, err := DecodeField(data)
		if err != nil {
			return err
		}
		field = f
	}
	if !cached {
		o, err := sieve.Evaluate(field, p.cfg.Groups)
		if err != nil {
			return err
		}
		outcome = o
		if p.cache != nil {
			if err := p.cache.Put(ctx, groupsKey, data, outcome); err != nil {
				obslog.L().Warn("sieve_cache_put", zap.Error(err))
			}
		}
	}

	switch outcome {
	case sieve.RejectedGap:
		st.RejectedGap++
		return nil
	case sieve.RejectedBefore:
		st.RejectedBefore++
		return nil
	case sieve.RejectedAfter:
		st.RejectedAfter++
		return nil
	}
	return p.emit(ctx, rec, metric, field, st)
}

func (p *Pipeline) emit(ctx context.Context, rec records.Record, metric int, field *domain.Field, st *Stats) error {
	ordinal := st.Accepted
	st.Accepted++
	if _, err := fmt.Fprintln(p.out, rec.Reference); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if p.sink != nil {
		if err := p.sink.SaveAccepted(ctx, p.cfg.RunID, ordinal, rec.Line, rec.Reference, metric); err != nil {
			return err
		}
	}
	if p.images != nil && p.renderer != nil {
		png, err := p.renderer.RenderPNG(ctx, field, render.Options{Caption: fmt.Sprintf("#%d line %d", ordinal+1, rec.Line)})
		if err != nil {
			return fmt.Errorf("render: %w", err)
		}
		if err := p.images(ordinal, rec, png); err != nil {
			return err
		}
	}
	return nil
}

// DecodeField decodes fumen data and returns its single page's field. More than one page
// violates the input contract.
func DecodeField(data string) (*domain.Field, error) {
	fm, err := fumen.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode fumen: %w", domain.ErrContractViolation, err)
	}
	if len(fm.Pages) != 1 {
		return nil, fmt.Errorf("%w: fumen has %d pages, want 1", domain.ErrContractViolation, len(fm.Pages))
	}
	return fm.Field, nil
}
