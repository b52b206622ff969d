package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type ChunkCfg struct {
	Window      time.Duration
	MaxDepth    int
	H3Res       int
	Concurrency int
}

type SnapshotCfg struct {
	Enabled   bool
	RedisAddr string
	TTL       time.Duration
	OpTimeout time.Duration
}

type EventsCfg struct {
	Enabled bool
	Brokers string
	Topic   string
	Queue   int
}

type InvalidationCfg struct {
	Enabled bool
	Topic   string
	GroupID string
}

type MetricsCfg struct {
	Enabled bool
	Addr    string
	Path    string
}

type Config struct {
	Addr                string
	LogLevel            string
	LogConsole          bool
	Provider            string
	ProviderURL         string
	PageSize            int
	MaxItems            int
	PaginateMaxPages    int
	UpstreamTimeout     time.Duration
	Verbose             bool
	CollectionCacheSize int
	ValidateCollections bool
	Chunk               ChunkCfg
	Snapshot            SnapshotCfg
	Events              EventsCfg
	Invalidation        InvalidationCfg
	Metrics             MetricsCfg
}

func FromEnv() Config {
	res := getint("CHUNK_H3_RES", 3)
	if res < 0 {
		res = 0
	}
	if res > 15 {
		res = 15
	}

	pageSize := getint("PAGE_SIZE", 100)
	if pageSize <= 0 {
		pageSize = 100
	}

	return Config{
		Addr:                getenv("ADDR", ":8090"),
		LogLevel:            getenv("LOG_LEVEL", "info"),
		LogConsole:          getbool("LOG_CONSOLE", false),
		Provider:            getenv("STAC_PROVIDER", "earthsearch"),
		ProviderURL:         getenv("STAC_URL", ""),
		PageSize:            pageSize,
		MaxItems:            getint("MAX_ITEMS", 0),
		PaginateMaxPages:    getint("PAGINATE_MAX_PAGES", 0),
		UpstreamTimeout:     getduration("UPSTREAM_TIMEOUT", 30*time.Second),
		Verbose:             getbool("VERBOSE", false),
		CollectionCacheSize: getint("COLLECTION_CACHE_SIZE", 256),
		ValidateCollections: getbool("VALIDATE_COLLECTIONS", true),
		Chunk: ChunkCfg{
			Window:      getduration("CHUNK_WINDOW", 30*24*time.Hour),
			MaxDepth:    getint("CHUNK_MAX_DEPTH", 4),
			H3Res:       res,
			Concurrency: getint("CHUNK_CONCURRENCY", 4),
		},
		Snapshot: SnapshotCfg{
			Enabled:   getbool("SNAPSHOT_ENABLED", false),
			RedisAddr: getenv("REDIS_ADDR", "localhost:6379"),
			TTL:       getduration("SNAPSHOT_TTL", 10*time.Minute),
			OpTimeout: getduration("SNAPSHOT_OP_TIMEOUT", 250*time.Millisecond),
		},
		Events: EventsCfg{
			Enabled: getbool("EVENTS_ENABLED", false),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			Topic:   getenv("KAFKA_TOPIC", "stac-resolutions"),
			Queue:   getint("EVENTS_QUEUE", 1024),
		},
		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Topic:   getenv("INVALIDATION_TOPIC", "stac-invalidation"),
			GroupID: getenv("KAFKA_GROUP_ID", "snapshot-invalidator"),
		},
		Metrics: MetricsCfg{
			Enabled: getbool("METRICS_ENABLED", true),
			Addr:    getenv("METRICS_ADDR", ""),
			Path:    getenv("METRICS_PATH", "/metrics"),
		},
	}
}

// BrokerList splits the comma separated KAFKA_BROKERS value.
func (e EventsCfg) BrokerList() []string {
	var out []string
	for b := range strings.SplitSeq(e.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
