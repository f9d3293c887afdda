package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/park285/fumen-sieve/internal/domain"
	"github.com/park285/fumen-sieve/internal/records"
	"github.com/park285/fumen-sieve/internal/render"
	"github.com/park285/fumen-sieve/internal/sieve"
)

const (
	prefix        = "http://fumen.zui.jp/?"
	refEmpty      = prefix + "v115@vhAAgH"        // empty field
	refFloorI     = prefix + "v115@bhzhPeAgH"     // IIII on the floor
	refCovered    = prefix + "v115@RhwhJe4hJeAgH" // hole under an I
	refFloatingL  = prefix + "v115@RhglceAgH"     // L hanging over empty
	refSOnO       = prefix + "v115@RhQ4IeQpSeAgH" // S resting on O
	refTwoPages   = prefix + "v115@vhBAgHAAA"
	refLOnGarbage = prefix + "v115@RhglIeJ8JeAgH" // L over a solid garbage row
)

type sliceSource struct {
	recs []records.Record
	pos  int
}

func (s *sliceSource) Next() (records.Record, error) {
	if s.pos >= len(s.recs) {
		return records.Record{}, io.EOF
	}
	r := s.recs[s.pos]
	s.pos++
	return r, nil
}

func source(refs ...string) *sliceSource {
	s := &sliceSource{}
	for i, ref := range refs {
		s.recs = append(s.recs, records.Record{Line: i + 2, Reference: ref, RawMetric: "1"})
	}
	return s
}

func newTestPipeline(t *testing.T, before, after string, out io.Writer, opts ...Option) *Pipeline {
	t.Helper()
	g, err := sieve.ParseGroups(before, after, "T")
	if err != nil {
		t.Fatalf("ParseGroups: %v", err)
	}
	return New(Config{Groups: g, MaxMetric: 2, ReferencePrefix: prefix, RunID: "test"}, out, opts...)
}

func TestRunEmitsSurvivorsInOrder(t *testing.T) {
	var out bytes.Buffer
	p := newTestPipeline(t, "IL", "", &out)
	st, err := p.Run(context.Background(), source(refFloorI, refCovered, "https://example.com/x", refFloatingL, refEmpty))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := refFloorI + "\n" + refEmpty + "\n"
	if out.String() != want {
		t.Fatalf("output = %q want %q", out.String(), want)
	}
	if st.Read != 5 || st.Accepted != 2 || st.RejectedGap != 1 || st.RejectedBefore != 1 || st.NoReference != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestRunSkipsOverMetricWithoutChecks(t *testing.T) {
	var out bytes.Buffer
	p := newTestPipeline(t, "I", "", &out)
	// a multi-page reference would be fatal if it were decoded
	src := &sliceSource{recs: []records.Record{{Line: 2, Reference: refTwoPages, RawMetric: "3"}}}
	st, err := p.Run(context.Background(), src)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st.OverMetric != 1 || out.Len() != 0 {
		t.Fatalf("stats = %+v output = %q", st, out.String())
	}
}

func TestRunMultiPageIsFatal(t *testing.T) {
	var out bytes.Buffer
	p := newTestPipeline(t, "I", "", &out)
	st, err := p.Run(context.Background(), source(refFloorI, refTwoPages, refEmpty))
	if !errors.Is(err, domain.ErrContractViolation) {
		t.Fatalf("expected contract violation, got %v", err)
	}
	if st.Accepted != 1 || out.String() != refFloorI+"\n" {
		t.Fatalf("records before the fatal one should still be emitted: %+v %q", st, out.String())
	}
}

func TestRunMissingSequenceColorIsFatal(t *testing.T) {
	var out bytes.Buffer
	p := newTestPipeline(t, "", "S", &out)
	_, err := p.Run(context.Background(), source(refSOnO))
	if !errors.Is(err, domain.ErrContractViolation) {
		t.Fatalf("expected contract violation, got %v", err)
	}
}

type mapCache struct {
	m    map[string]sieve.Outcome
	puts int
}

func (c *mapCache) Get(_ context.Context, groups, data string) (sieve.Outcome, bool, error) {
	o, ok := c.m[groups+"|"+data]
	return o, ok, nil
}

func (c *mapCache) Put(_ context.Context, groups, data string, o sieve.Outcome) error {
	c.m[groups+"|"+data] = o
	c.puts++
	return nil
}

func TestRunUsesCache(t *testing.T) {
	c := &mapCache{m: map[string]sieve.Outcome{}}
	var out bytes.Buffer
	p := newTestPipeline(t, "I", "", &out, WithCache(c))
	if _, err := p.Run(context.Background(), source(refFloorI, refCovered)); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	st, err := p.Run(context.Background(), source(refFloorI, refCovered))
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if st.CacheHits != 2 || c.puts != 2 || st.Accepted != 1 || st.RejectedGap != 1 {
		t.Fatalf("stats = %+v puts = %d", st, c.puts)
	}
	if strings.Count(out.String(), refFloorI) != 2 {
		t.Fatalf("output = %q", out.String())
	}
}

type recordingSink struct{ ordinals []int }

func (s *recordingSink) SaveAccepted(_ context.Context, runID string, ordinal, line int, reference string, metric int) error {
	s.ordinals = append(s.ordinals, ordinal)
	return nil
}

func TestRunFeedsSinkAndImages(t *testing.T) {
	sink := &recordingSink{}
	var pngs int
	images := func(ordinal int, rec records.Record, png []byte) error {
		if len(png) == 0 {
			t.Fatalf("empty png for ordinal %d", ordinal)
		}
		pngs++
		return nil
	}
	var out bytes.Buffer
	p := newTestPipeline(t, "I", "", &out, WithAcceptedSink(sink), WithImages(render.NewSVGRenderer(), images))
	if _, err := p.Run(context.Background(), source(refEmpty, refCovered, refFloorI)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sink.ordinals) != 2 || sink.ordinals[0] != 0 || sink.ordinals[1] != 1 || pngs != 2 {
		t.Fatalf("ordinals = %v pngs = %d", sink.ordinals, pngs)
	}
}

func TestDecodeField(t *testing.T) {
	f, err := DecodeField("v115@bhzhPeAgH")
	if err != nil {
		t.Fatalf("DecodeField: %v", err)
	}
	if f.At(3, 0) != domain.Color(domain.PieceI) || !f.At(4, 0).IsEmpty() {
		t.Fatalf("unexpected field:\n%s", f)
	}
	if _, err := DecodeField("v115@vh!AgH"); !errors.Is(err, domain.ErrContractViolation) {
		t.Fatalf("expected contract violation, got %v", err)
	}
}

func TestRunGarbageSupportsTrackedPiece(t *testing.T) {
	var out bytes.Buffer
	p := newTestPipeline(t, "L", "", &out)
	st, err := p.Run(context.Background(), source(refLOnGarbage, refFloatingL))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.String() != refLOnGarbage+"\n" || st.Accepted != 1 || st.RejectedBefore != 1 {
		t.Fatalf("stats = %+v output = %q", st, out.String())
	}
}

func TestRunNonReferenceRowIgnoresMetric(t *testing.T) {
	var out bytes.Buffer
	p := newTestPipeline(t, "I", "", &out)
	src := &sliceSource{recs: []records.Record{
		{Line: 2, Reference: "https://example.com/x", RawMetric: "n/a"},
		{Line: 3, Reference: refFloorI, RawMetric: "1"},
	}}
	st, err := p.Run(context.Background(), src)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st.NoReference != 1 || st.Accepted != 1 {
		t.Fatalf("stats = %+v", st)
	}

	src = &sliceSource{recs: []records.Record{{Line: 2, Reference: refFloorI, RawMetric: "n/a"}}}
	if _, err := p.Run(context.Background(), src); !errors.Is(err, records.ErrMalformedRecord) {
		t.Fatalf("expected malformed record, got %v", err)
	}
}

func TestRunEmptyPayloadIsFatal(t *testing.T) {
	var out bytes.Buffer
	p := newTestPipeline(t, "I", "", &out)
	if _, err := p.Run(context.Background(), source(prefix)); !errors.Is(err, domain.ErrContractViolation) {
		t.Fatalf("expected contract violation, got %v", err)
	}
}
