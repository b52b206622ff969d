package stac

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/geodata-search/internal/core/model"
	"github.com/mohammed-shakir/geodata-search/internal/geometry"
	"github.com/mohammed-shakir/geodata-search/internal/mapper"
	"github.com/mohammed-shakir/geodata-search/internal/spatial"
)

type ChunkConfig struct {
	// Window is the initial temporal slice length.
	Window time.Duration
	// MaxDepth bounds how often a still-truncated chunk is split again.
	MaxDepth int
	// H3Res is the starting resolution for spatial chunks.
	H3Res int
	// PageLimit is the page size requested per chunk.
	PageLimit   int
	Concurrency int
}

func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Window:      30 * 24 * time.Hour,
		MaxDepth:    4,
		H3Res:       3,
		PageLimit:   MaxLimit,
		Concurrency: 4,
	}
}

// Chunker re-issues a search as many narrower direct searches: temporal
// windows when the query carries a closed datetime range, H3 cells over the
// spatial extent otherwise. A chunk that still looks truncated is split
// again, halving the window or descending one H3 resolution.
type Chunker struct {
	client *Client
	cells  mapper.Interface
	cfg    ChunkConfig
}

func NewChunker(c *Client, cells mapper.Interface, cfg ChunkConfig) *Chunker {
	def := DefaultChunkConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.MaxDepth < 0 {
		cfg.MaxDepth = 0
	}
	if cfg.H3Res < 0 || cfg.H3Res > 15 {
		cfg.H3Res = def.H3Res
	}
	cfg.PageLimit = clampLimit(cfg.PageLimit)
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Chunker{client: c, cells: cells, cfg: cfg}
}

// FetchChunked returns the concatenated chunk results in chunk order. Items
// repeated across chunk borders are left for the caller to de-duplicate.
func (ch *Chunker) FetchChunked(ctx context.Context, params model.SearchParams) ([]model.Item, error) {
	p := params.Clone()
	p.Limit = ch.cfg.PageLimit
	p.Token = ""

	if start, end, ok := ParseRange(p.Datetime); ok {
		return ch.temporal(ctx, p, start, end)
	}
	return ch.spatial(ctx, p)
}

func (ch *Chunker) temporal(ctx context.Context, p model.SearchParams, start, end time.Time) ([]model.Item, error) {
	type window struct{ from, to time.Time }
	var wins []window
	for from := start; ; from = from.Add(ch.cfg.Window) {
		to := from.Add(ch.cfg.Window)
		if !to.Before(end) {
			wins = append(wins, window{from, end})
			break
		}
		wins = append(wins, window{from, to})
	}
	ch.client.log.DebugContext(ctx, "chunking by time", "windows", len(wins), "window", ch.cfg.Window)

	return fanOut(ctx, ch.cfg.Concurrency, len(wins), func(ctx context.Context, i int) ([]model.Item, error) {
		return ch.window(ctx, p, wins[i].from, wins[i].to, 0)
	})
}

func (ch *Chunker) window(ctx context.Context, p model.SearchParams, from, to time.Time, depth int) ([]model.Item, error) {
	q := p.Clone()
	q.Datetime = formatRange(from, to)
	fc, err := ch.client.post(ctx, "chunk", ch.client.provider.SearchURL(), q)
	if err != nil {
		return nil, fmt.Errorf("window %s: %w", q.Datetime, err)
	}
	if !ch.truncated(fc) {
		return fc.Features, nil
	}
	span := to.Sub(from)
	if depth >= ch.cfg.MaxDepth || span < 2*time.Second {
		ch.client.log.WarnContext(ctx, "chunk still truncated at max depth", "datetime", q.Datetime, "items", len(fc.Features))
		return fc.Features, nil
	}
	mid := from.Add(span / 2)
	left, err := ch.window(ctx, p, from, mid, depth+1)
	if err != nil {
		return nil, err
	}
	right, err := ch.window(ctx, p, mid, to, depth+1)
	if err != nil {
		return nil, err
	}
	return append(left, right...), nil
}

func (ch *Chunker) spatial(ctx context.Context, p model.SearchParams) ([]model.Item, error) {
	var (
		boxes []model.BBox
		clip  geometry.Geometry
	)
	switch {
	case len(p.Intersects) > 0:
		g, err := geometry.FromGeoJSON(p.Intersects)
		if err != nil {
			return nil, fmt.Errorf("chunk intersects: %w", err)
		}
		env := g.Envelope()
		boxes = splitAntimeridian(model.BBox{West: env.West, South: env.South, East: env.East, North: env.North})
		// the upstream intersects filter keeps items that only touch the query
		clip = spatial.Touching(g)
		// bbox and intersects are mutually exclusive on the wire
		p.Intersects = nil
	case len(p.BBox) == 4:
		boxes = splitAntimeridian(model.BBox{West: p.BBox[0], South: p.BBox[1], East: p.BBox[2], North: p.BBox[3]})
	default:
		return nil, ErrNotChunkable
	}

	type chunk struct {
		cell string
		box  model.BBox
	}
	var chunks []chunk
	for _, bb := range boxes {
		bb = padDegenerate(bb)
		cells, err := ch.cells.CoverBBox(bb, ch.cfg.H3Res)
		if err != nil {
			return nil, fmt.Errorf("chunk cells: %w", err)
		}
		for _, c := range cells {
			chunks = append(chunks, chunk{cell: c, box: bb})
		}
	}
	ch.client.log.DebugContext(ctx, "chunking by space", "cells", len(chunks), "res", ch.cfg.H3Res)

	got, err := fanOut(ctx, ch.cfg.Concurrency, len(chunks), func(ctx context.Context, i int) ([]model.Item, error) {
		return ch.cell(ctx, p, chunks[i].cell, chunks[i].box, ch.cfg.H3Res, 0)
	})
	if err != nil {
		return nil, err
	}
	if clip != nil {
		got, _ = spatial.FilterNormalized(got, clip)
	}
	return got, nil
}

func (ch *Chunker) cell(ctx context.Context, p model.SearchParams, cell string, area model.BBox, res, depth int) ([]model.Item, error) {
	cb, err := ch.cells.CellBounds(cell)
	if err != nil {
		return nil, err
	}
	box, ok := intersectBoxes(cb, area)
	if !ok {
		return nil, nil
	}
	q := p.Clone()
	q.BBox = []float64{box.West, box.South, box.East, box.North}
	fc, err := ch.client.post(ctx, "chunk", ch.client.provider.SearchURL(), q)
	if err != nil {
		return nil, fmt.Errorf("cell %s: %w", cell, err)
	}
	if !ch.truncated(fc) {
		return fc.Features, nil
	}
	if depth >= ch.cfg.MaxDepth || res >= 15 {
		ch.client.log.WarnContext(ctx, "chunk still truncated at max depth", "cell", cell, "items", len(fc.Features))
		return fc.Features, nil
	}
	kids, err := ch.cells.ToChildren(cell, res+1)
	if err != nil {
		return nil, err
	}
	var out []model.Item
	for _, k := range kids {
		items, err := ch.cell(ctx, p, k, area, res+1, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
	}
	return out, nil
}

func (ch *Chunker) truncated(fc model.FeatureCollection) bool {
	if _, ok := fc.Next(); ok {
		return true
	}
	if m := fc.Matched(); m != nil {
		return *m > len(fc.Features)
	}
	return len(fc.Features) >= ch.cfg.PageLimit
}

// fanOut runs n jobs with bounded concurrency and concatenates their
// results in job order. The first error cancels the rest.
func fanOut(ctx context.Context, limit, n int, job func(ctx context.Context, i int) ([]model.Item, error)) ([]model.Item, error) {
	parts := make([][]model.Item, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			items, err := job(gctx, i)
			if err != nil {
				return err
			}
			parts[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []model.Item
	for _, part := range parts {
		out = append(out, part...)
	}
	return out, nil
}

func splitAntimeridian(bb model.BBox) []model.BBox {
	if bb.West <= bb.East {
		return []model.BBox{bb}
	}
	return []model.BBox{
		{West: bb.West, South: bb.South, East: 180, North: bb.North},
		{West: -180, South: bb.South, East: bb.East, North: bb.North},
	}
}

// padDegenerate widens zero-width or zero-height boxes so they can be
// covered by cells.
func padDegenerate(bb model.BBox) model.BBox {
	const pad = 1e-6
	if bb.West == bb.East {
		bb.West, bb.East = bb.West-pad, bb.East+pad
	}
	if bb.South == bb.North {
		bb.South, bb.North = bb.South-pad, bb.North+pad
	}
	return bb
}

func intersectBoxes(a, b model.BBox) (model.BBox, bool) {
	out := model.BBox{
		West:  max(a.West, b.West),
		South: max(a.South, b.South),
		East:  min(a.East, b.East),
		North: min(a.North, b.North),
	}
	if out.West > out.East || out.South > out.North {
		return model.BBox{}, false
	}
	return out, true
}
