package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/IBM/sarama"

	obs "github.com/mohammed-shakir/geodata-search/internal/core/observability"
	"github.com/mohammed-shakir/geodata-search/internal/geometry"
	"github.com/mohammed-shakir/geodata-search/internal/invalidation"
	mylog "github.com/mohammed-shakir/geodata-search/internal/logger"
	"github.com/mohammed-shakir/geodata-search/internal/snapshot"
	"github.com/mohammed-shakir/geodata-search/internal/spatial"
)

// SnapshotIndex is the part of snapshot.Store the consumer needs.
type SnapshotIndex interface {
	List(ctx context.Context, provider string, limit int) ([]string, error)
	Get(ctx context.Context, key string) (snapshot.Snapshot, error)
	Delete(ctx context.Context, key string) error
}

type Consumer struct {
	cfg    Config
	logger *slog.Logger
	store  SnapshotIndex
	dedupe *itemDedupe
}

func New(cfg Config, logger *slog.Logger, store SnapshotIndex) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{cfg: cfg, logger: logger, store: store, dedupe: newItemDedupe(cfg.DedupeSize)}
}

// consumes invalidation events from kafka and processing them
func (c *Consumer) Start(ctx context.Context) error {
	if c.store == nil {
		return errors.New("kafkaconsumer: missing snapshot store")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	ctx = mylog.WithComponent(ctx, "kafka_consumer")
	handler := &groupHandler{process: c.ProcessOne}

	c.logger.InfoContext(ctx, "snapshot invalidation consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "snapshot invalidation consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				c.logger.ErrorContext(ctx, "kafka consumer error",
					"err", err, "brokers", c.cfg.Brokers, "topic", c.cfg.Topic)
				time.Sleep(2 * time.Second)
			}
		}
	}
}

// ProcessOne deletes every stored snapshot the event makes stale. Payloads
// that do not decode or validate are logged and skipped so they cannot
// block the partition; store failures are returned for redelivery.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		obs.ObserveInvalidation("unknown", "invalid", 0)
		c.logger.WarnContext(ctx, "skipping undecodable invalidation event",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
		return nil
	}
	if err := ev.Validate(); err != nil {
		obs.ObserveInvalidation(ev.Op, "invalid", 0)
		c.logger.WarnContext(ctx, "skipping invalid invalidation event",
			"collection", ev.Collection, "offset", msg.Offset, "err", err)
		return nil
	}
	if c.dedupe.stale(ev) {
		obs.ObserveInvalidation(ev.Op, "duplicate", 0)
		c.logger.DebugContext(ctx, "skipping replayed invalidation event",
			"collection", ev.Collection, "item", ev.ItemID, "ts", ev.TS)
		return nil
	}

	deleted, err := c.invalidate(ctx, ev)
	if err != nil {
		obs.ObserveInvalidation(ev.Op, "error", deleted)
		return err
	}
	c.dedupe.applied(ev)
	obs.ObserveInvalidation(ev.Op, "ok", deleted)
	c.logger.DebugContext(ctx, "invalidated snapshots",
		"op", ev.Op, "collection", ev.Collection, "provider", ev.Provider, "deleted", deleted)
	return nil
}

func (c *Consumer) invalidate(ctx context.Context, ev invalidation.Event) (int, error) {
	region, hasRegion, err := ev.Region()
	if err != nil {
		return 0, err
	}
	ks, err := c.store.List(ctx, ev.Provider, 0)
	if err != nil {
		return 0, fmt.Errorf("list snapshots: %w", err)
	}

	deleted := 0
	for _, k := range ks {
		snap, err := c.store.Get(ctx, k)
		if errors.Is(err, snapshot.ErrNotFound) {
			continue // expired meanwhile
		}
		if err != nil {
			return deleted, fmt.Errorf("load snapshot: %w", err)
		}
		if !Affects(snap, ev.Collection, region, hasRegion) {
			continue
		}
		if err := c.store.Delete(ctx, k); err != nil {
			return deleted, fmt.Errorf("delete snapshot: %w", err)
		}
		deleted++
	}
	return deleted, nil
}

// Affects reports whether a change in collection within region can alter
// the snapshot's result set. A snapshot without collections or without a
// spatial constraint is affected by every matching event.
func Affects(snap snapshot.Snapshot, collection string, region geometry.Geometry, hasRegion bool) bool {
	cols := snap.Params.Collections
	if len(cols) > 0 && !slices.Contains(cols, collection) {
		return false
	}
	if !hasRegion {
		return true
	}
	var extent geometry.Geometry
	var err error
	switch {
	case len(snap.Params.Intersects) > 0:
		extent, err = geometry.FromGeoJSON(snap.Params.Intersects)
	case len(snap.Params.BBox) > 0:
		extent, err = geometry.Normalize(snap.Params.BBox)
	default:
		return true
	}
	if err != nil {
		// unreadable extent, drop the snapshot rather than serve it stale
		return true
	}
	return spatial.Intersects(region, extent)
}
