package stac

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Provider names a STAC API root.
type Provider struct {
	Name    string
	BaseURL string
}

func (p Provider) SearchURL() string { return p.BaseURL + "/search" }

func (p Provider) CollectionsURL() string { return p.BaseURL + "/collections" }

const DefaultProvider = "earthsearch"

var reg = map[string]Provider{}

func Register(p Provider) {
	p.Name = strings.ToLower(strings.TrimSpace(p.Name))
	p.BaseURL = strings.TrimRight(p.BaseURL, "/")
	reg[p.Name] = p
}

func init() {
	Register(Provider{Name: "earthsearch", BaseURL: "https://earth-search.aws.element84.com/v1"})
	Register(Provider{Name: "planetary", BaseURL: "https://planetarycomputer.microsoft.com/api/stac/v1"})
}

// Providers lists registered provider names.
func Providers() []string {
	out := make([]string, 0, len(reg))
	for n := range reg {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// ResolveProvider picks the provider for name. A non-empty url overrides
// the registry; an unknown name falls back to the default provider.
func ResolveProvider(name, url string, logger *slog.Logger) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if url != "" {
		if name == "" {
			name = "custom"
		}
		return Provider{Name: name, BaseURL: strings.TrimRight(url, "/")}, nil
	}
	if p, ok := reg[name]; ok {
		return p, nil
	}
	if p, ok := reg[DefaultProvider]; ok {
		if logger != nil {
			logger.Warn("unknown provider; falling back to default", "provider", name, "default", DefaultProvider)
		}
		return p, nil
	}
	return Provider{}, fmt.Errorf("no provider %q and no default registered", name)
}
