// cmd/tools/assess/main.go

// assess runs a single prior-authorization request through the
// assessment pipeline from the command line and prints the sealed
// waypoint. Useful for rubric tuning and connector smoke checks without
// a running workflow engine.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"priorauth-engine/internal/common/config"
	"priorauth-engine/internal/common/database"
	"priorauth-engine/internal/common/logger"
	"priorauth-engine/internal/connectors"
	"priorauth-engine/internal/engine"
	"priorauth-engine/internal/normalizer"
	"priorauth-engine/internal/orchestrator"
	"priorauth-engine/internal/store"
)

func main() {
	requestFile := flag.String("file", "", "Path to the request JSON file (required)")
	configFile := flag.String("config", "", "Path to a config file (default: standard lookup)")
	save := flag.Bool("save", false, "Persist the waypoint to the database")
	pretty := flag.Bool("pretty", true, "Pretty-print the waypoint record")
	timeout := flag.Duration("timeout", 60*time.Second, "Overall assessment deadline")
	flag.Parse()

	if *requestFile == "" {
		flag.Usage()
		os.Exit(1)
	}

	raw, err := os.ReadFile(*requestFile)
	if err != nil {
		fatal("read request file: %v", err)
	}

	var cfg *config.Config
	if *configFile != "" {
		cfg, err = config.LoadFromFile(*configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fatal("load config: %v", err)
	}

	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		fatal("postgres: %v", err)
	}
	defer pg.Close()

	esClient, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	if err != nil {
		fatal("elasticsearch: %v", err)
	}

	redis, err := database.NewRedis(cfg.Database.Redis)
	if err != nil {
		fatal("redis: %v", err)
	}
	defer redis.Close()

	cacheTTL := time.Duration(cfg.Connectors.CacheTTL) * time.Second
	conns := []connectors.Connector{
		connectors.NewCachedProviderRegistry(
			connectors.NewProviderRegistryConnector(cfg.Connectors.ProviderRegistry, log),
			redis.Client, cacheTTL, log,
		),
		connectors.NewCachedCodeValidation(
			connectors.NewCodeValidationConnector(cfg.Connectors.CodeValidation, log),
			redis.Client, cacheTTL, log,
		),
		connectors.NewPolicySearchConnector(
			esClient.Client, cfg.Database.Elasticsearch.PolicyIndex,
			cfg.Connectors.PolicySearch, log,
		),
		connectors.NewFeeScheduleConnector(pg.DB, cfg.Connectors.FeeSchedule, log),
		connectors.NewLiteratureSearchConnector(cfg.Connectors.LiteratureSearch, log),
	}

	norm, err := normalizer.New(log)
	if err != nil {
		fatal("normalizer: %v", err)
	}

	opts := []engine.Option{}
	if *save {
		opts = append(opts, engine.WithWaypointSaver(store.NewWaypointStore(pg.DB, log)))
	}

	orch := orchestrator.New(conns, config.GetDuration(cfg.Connectors.OptionalGrace), log)
	assessmentEngine := engine.New(norm, orch, cfg.Rubric, log, opts...)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	w, err := assessmentEngine.Assess(ctx, raw)
	if err != nil {
		fatal("assessment failed: %v", err)
	}

	record, err := w.Serialize()
	if err != nil {
		fatal("serialize waypoint: %v", err)
	}

	if *pretty {
		var buf bytes.Buffer
		if err := json.Indent(&buf, record, "", "  "); err == nil {
			record = buf.Bytes()
		}
	}

	fmt.Println(string(record))
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
