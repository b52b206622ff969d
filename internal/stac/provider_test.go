package stac

import (
	"io"
	"log/slog"
	"slices"
	"testing"
)

func TestResolveProvider(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	p, err := ResolveProvider("EarthSearch", "", logger)
	if err != nil || p.Name != "earthsearch" || p.SearchURL() != "https://earth-search.aws.element84.com/v1/search" {
		t.Fatalf("p=%+v err=%v", p, err)
	}

	p, err = ResolveProvider("", "http://localhost:9000/stac/", logger)
	if err != nil || p.Name != "custom" || p.CollectionsURL() != "http://localhost:9000/stac/collections" {
		t.Fatalf("custom p=%+v err=%v", p, err)
	}

	p, err = ResolveProvider("totally-unknown", "", logger)
	if err != nil || p.Name != DefaultProvider {
		t.Fatalf("expected fallback to %s, got %+v err=%v", DefaultProvider, p, err)
	}

	if !slices.Contains(Providers(), "planetary") {
		t.Fatalf("providers=%v", Providers())
	}
}
