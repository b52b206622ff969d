package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/geodata-search/internal/core/observability"
	"github.com/mohammed-shakir/geodata-search/internal/items"
	"github.com/mohammed-shakir/geodata-search/internal/snapshot"
	"github.com/mohammed-shakir/geodata-search/internal/stac"
)

// SearchQuery is a validated GET /search request.
type SearchQuery struct {
	Provider string
	Request  stac.Request
	// All resolves the full result set through the fallback tiers
	All bool
	// Filter is an optional geometry applied to the returned items
	Filter any
	// SortBy reorders the returned items after filtering
	SortBy []items.SortKey
	Status bool
}

// receives validated search requests and serves them
type SearchHandler interface {
	HandleSearch(ctx context.Context, w http.ResponseWriter, r *http.Request, q SearchQuery)
}

type SnapshotReader interface {
	Get(ctx context.Context, key string) (snapshot.Snapshot, error)
	List(ctx context.Context, provider string, limit int) ([]string, error)
}

// validates input query params and calls the handler
func HandleSearch(logger *slog.Logger, h SearchHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}

		q, warn, err := ParseSearchRequest(r)
		if warn != "" {
			logger.WarnContext(r.Context(), warn)
		}
		if err != nil {
			http.Error(sw, err.Error(), http.StatusBadRequest)
			observability.ObserveHTTP(r.Method, "/search", http.StatusBadRequest, time.Since(start).Seconds())
			return
		}

		h.HandleSearch(r.Context(), sw, r, q)
		observability.ObserveHTTP(r.Method, "/search", sw.code, time.Since(start).Seconds())
	}
}

// HandleSnapshot serves GET /snapshots/{key}.
func HandleSnapshot(logger *slog.Logger, store SnapshotReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			observability.ObserveHTTP(r.Method, "/snapshots/{key}", sw.code, time.Since(start).Seconds())
		}()

		key := chi.URLParam(r, "key")
		snap, err := store.Get(r.Context(), key)
		switch {
		case errors.Is(err, snapshot.ErrInvalidKey):
			http.Error(sw, err.Error(), http.StatusBadRequest)
			return
		case errors.Is(err, snapshot.ErrNotFound):
			http.Error(sw, "snapshot not found", http.StatusNotFound)
			return
		case err != nil:
			logger.ErrorContext(r.Context(), "snapshot load failed", "key", key, "err", err)
			http.Error(sw, "snapshot store unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(sw, http.StatusOK, snap)
	}
}

// HandleSnapshotList serves GET /snapshots.
func HandleSnapshotList(logger *slog.Logger, store SnapshotReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			observability.ObserveHTTP(r.Method, "/snapshots", sw.code, time.Since(start).Seconds())
		}()

		limit := 100
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				http.Error(sw, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		provider := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("provider")))
		ks, err := store.List(r.Context(), provider, limit)
		if err != nil {
			logger.ErrorContext(r.Context(), "snapshot list failed", "err", err)
			http.Error(sw, "snapshot store unavailable", http.StatusServiceUnavailable)
			return
		}
		if ks == nil {
			ks = []string{}
		}
		writeJSON(sw, http.StatusOK, map[string]any{"keys": ks})
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func ParseSearchRequest(r *http.Request) (SearchQuery, string, error) {
	var warn string
	qs := r.URL.Query()

	q := SearchQuery{
		Provider: strings.TrimSpace(qs.Get("provider")),
		Request: stac.Request{
			Collections: splitList(qs.Get("collections")),
			Datetime:    strings.TrimSpace(qs.Get("datetime")),
			IDs:         splitList(qs.Get("ids")),
		},
	}

	rawBBox := strings.TrimSpace(qs.Get("bbox"))
	rawIntersects := strings.TrimSpace(qs.Get("intersects"))

	// intersects wins over bbox
	if rawBBox != "" && rawIntersects != "" {
		warn = "both bbox and intersects supplied; preferring intersects"
		rawBBox = ""
	}
	if rawBBox != "" {
		bb, err := parseFloats(rawBBox)
		if err != nil {
			return SearchQuery{}, warn, fmt.Errorf("invalid bbox: %w", err)
		}
		q.Request.BBox = bb
	}
	if rawIntersects != "" {
		q.Request.Intersects = rawIntersects
	}

	var err error
	if q.Request.Limit, err = parseInt(qs.Get("limit")); err != nil {
		return SearchQuery{}, warn, fmt.Errorf("invalid limit: %w", err)
	}
	if q.Request.MaxItems, err = parseInt(qs.Get("max_items")); err != nil {
		return SearchQuery{}, warn, fmt.Errorf("invalid max_items: %w", err)
	}
	if q.All, err = parseBool(qs.Get("all")); err != nil {
		return SearchQuery{}, warn, fmt.Errorf("invalid all: %w", err)
	}
	if q.Status, err = parseBool(qs.Get("status")); err != nil {
		return SearchQuery{}, warn, fmt.Errorf("invalid status: %w", err)
	}

	if rawFilter := strings.TrimSpace(qs.Get("geometry")); rawFilter != "" {
		// "w,s,e,n" or "x,y" is read as numbers, anything else as WKT or GeoJSON
		if nums, err := parseFloats(rawFilter); err == nil {
			q.Filter = nums
		} else {
			q.Filter = rawFilter
		}
	}
	if raw := strings.TrimSpace(qs.Get("sortby")); raw != "" {
		if q.SortBy, err = items.ParseSortBy(raw); err != nil {
			return SearchQuery{}, warn, fmt.Errorf("invalid sortby: %w", err)
		}
	}
	return q, warn, nil
}

func splitList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseFloats(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		out = append(out, f)
	}
	return out, nil
}

func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parse int: %w", err)
	}
	if n < 0 {
		return 0, errors.New("must not be negative")
	}
	return n, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return false, nil
	case "1", "t", "true", "y", "yes":
		return true, nil
	case "0", "f", "false", "n", "no":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}
