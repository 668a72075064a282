// Command relay runs one domain relay process: it loads its configuration,
// builds the registry/topic-strategy/policy the configuration describes,
// and blocks accepting connections on the configured transport while
// serving an admin HTTP surface alongside it.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/torqfin/messaging-core/pkg/config"
	"github.com/torqfin/messaging-core/recovery"
	"github.com/torqfin/messaging-core/relay"
	"github.com/torqfin/messaging-core/transport"
	"github.com/torqfin/messaging-core/types"
)

// statsView is the JSON shape torqctl's "relay stats" command parses.
type statsView struct {
	Domain      string                            `json:"domain"`
	Connections map[relay.ConsumerID]relay.Stats `json:"connections"`
	DropCounts  map[relay.DroppedReason]uint64   `json:"drop_counts"`
}

func domainFromName(name string) types.RelayDomain {
	switch name {
	case "market_data":
		return types.DomainMarketData
	case "signal":
		return types.DomainSignal
	case "execution":
		return types.DomainExecution
	default:
		return types.DomainUnknown
	}
}

func strategyFromConfig(cfg config.TopicConfig) relay.TopicStrategy {
	switch cfg.Strategy {
	case "fixed":
		return relay.FixedTopic{Topic: cfg.FixedTopic}
	case "by_source":
		table := make(map[types.SourceType]string, len(cfg.SourceTable))
		for name, topic := range cfg.SourceTable {
			table[sourceFromName(name)] = topic
		}
		return relay.BySourceTopic{Table: table}
	case "by_instrument_venue":
		table := make(map[types.VenueId]string, len(cfg.VenueTable))
		for name, topic := range cfg.VenueTable {
			table[venueFromName(name)] = topic
		}
		return relay.ByInstrumentVenueTopic{Table: table}
	default:
		return relay.FixedTopic{Topic: cfg.FixedTopic}
	}
}

func sourceFromName(name string) types.SourceType {
	switch name {
	case "binance_collector":
		return types.SourceBinanceCollector
	case "kraken_collector":
		return types.SourceKrakenCollector
	case "coinbase_collector":
		return types.SourceCoinbaseCollector
	case "polygon_collector":
		return types.SourcePolygonCollector
	case "arbitrum_collector":
		return types.SourceArbitrumCollector
	case "base_collector":
		return types.SourceBaseCollector
	case "arbitrage_strategy":
		return types.SourceArbitrageStrategy
	case "market_maker_strategy":
		return types.SourceMarketMakerStrategy
	case "execution_engine":
		return types.SourceExecutionEngine
	case "dashboard_consumer":
		return types.SourceDashboardConsumer
	default:
		return types.SourceUnknown
	}
}

func venueFromName(name string) types.VenueId {
	switch name {
	case "binance":
		return types.VenueBinance
	case "kraken":
		return types.VenueKraken
	case "coinbase":
		return types.VenueCoinbase
	case "ethereum":
		return types.VenueEthereum
	case "polygon":
		return types.VenuePolygon
	case "arbitrum":
		return types.VenueArbitrum
	case "base":
		return types.VenueBase
	case "optimism":
		return types.VenueOptimism
	case "bsc":
		return types.VenueBSC
	default:
		return types.VenueUnknown
	}
}

func applyValidationOverrides(policy *relay.ValidationPolicy, cfg config.ValidationConfig) {
	policy.Checksum = cfg.Checksum
	policy.Audit = cfg.Audit
	policy.Strict = cfg.Strict
	if cfg.MaxMessageSize > 0 {
		policy.MaxMessageSize = cfg.MaxMessageSize
	}
}

func acceptLoop(ctx context.Context, logger *log.Logger, r *relay.Relay, ln *transport.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.WithError(err).Warn("accept failed")
			continue
		}
		c := r.Accept(conn)
		go readLoop(logger, r, c)
	}
}

func readLoop(logger *log.Logger, r *relay.Relay, c *relay.Connection) {
	for {
		buf, err := c.Conn.Receive()
		if err != nil {
			logger.WithFields(log.Fields{"consumer_id": c.ID, "error": err}).Info("connection read loop exiting")
			r.Disconnect(c)
			return
		}
		r.Ingest(c, buf)
	}
}

func adminRouter(r *relay.Relay) http.Handler {
	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Get("/debug/subscriptions", func(w http.ResponseWriter, req *http.Request) {
		topic := req.URL.Query().Get("topic")
		names := r.SubscriberNames(topic)
		fmt.Fprintf(w, "topic=%s subscribers=%d names=%s\n", topic, len(names), strings.Join(names, ","))
	})
	router.Get("/debug/drops", func(w http.ResponseWriter, _ *http.Request) {
		for reason, count := range r.DropCounts() {
			fmt.Fprintf(w, "%s=%d\n", reason, count)
		}
	})
	router.Get("/recovery/pending", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(r.PendingRecovery())
	})
	router.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		view := statsView{
			Domain:      r.Domain.String(),
			Connections: r.ConnectionStats(),
			DropCounts:  r.DropCounts(),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(view)
	})
	return router
}

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := log.New()
	if level, lerr := log.ParseLevel(cfg.Logging.Level); lerr == nil {
		logger.SetLevel(level)
	}

	domain := domainFromName(cfg.Domain)
	if !domain.Valid() {
		logger.Fatalf("unknown relay domain %q", cfg.Domain)
	}

	registry := relay.NewRegistry(cfg.Topic.Topics, cfg.Topic.AutoDiscover)
	strategy := strategyFromConfig(cfg.Topic)

	r := relay.New(domain, registry, strategy, logger)
	applyValidationOverrides(&r.Policy, cfg.Validation)
	if cfg.Queue.Capacity > 0 {
		r.QueueCapacity = cfg.Queue.Capacity
	}
	if cfg.Queue.HighWatermark > 0 {
		r.HighWatermark = cfg.Queue.HighWatermark
	}
	if cfg.Queue.LowWatermark > 0 {
		r.LowWatermark = cfg.Queue.LowWatermark
	}
	if cfg.Queue.DegradedTimeout > 0 {
		r.DegradedTimeout = time.Duration(cfg.Queue.DegradedTimeout) * time.Millisecond
	}
	r.Recovery = recovery.NewProducer(cfg.Retention, logger)

	ln, err := transport.Listen(transport.Kind(cfg.Transport), cfg.Bind, transport.Options{
		MaxMessageSize: r.Policy.MaxMessageSize,
	})
	if err != nil {
		logger.Fatalf("listen on %s %s: %v", cfg.Transport, cfg.Bind, err)
	}
	logger.WithFields(log.Fields{"domain": domain, "bind": cfg.Bind, "transport": cfg.Transport}).Info("relay listening")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go acceptLoop(ctx, logger, r, ln)

	sweep := time.NewTicker(5 * time.Second)
	defer sweep.Stop()
	go func() {
		for range sweep.C {
			r.SweepDegraded()
		}
	}()

	if cfg.AdminAddr != "" {
		go func() {
			logger.WithField("admin_addr", cfg.AdminAddr).Info("admin http listening")
			if err := http.ListenAndServe(cfg.AdminAddr, adminRouter(r)); err != nil {
				logger.WithError(err).Error("admin http server exited")
			}
		}()
	}

	select {}
}
