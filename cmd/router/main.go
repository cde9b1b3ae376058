package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/laitim2001/itsm-intent-router/pkg/apiserver"
	"github.com/laitim2001/itsm-intent-router/pkg/audit"
	"github.com/laitim2001/itsm-intent-router/pkg/classification"
	"github.com/laitim2001/itsm-intent-router/pkg/config"
	"github.com/laitim2001/itsm-intent-router/pkg/dialog"
	"github.com/laitim2001/itsm-intent-router/pkg/gateway"
	"github.com/laitim2001/itsm-intent-router/pkg/observability/logging"
	"github.com/laitim2001/itsm-intent-router/pkg/risk"
	"github.com/laitim2001/itsm-intent-router/pkg/router"
	"github.com/laitim2001/itsm-intent-router/pkg/semantic"
)

const shutdownGrace = 15 * time.Second

func main() {
	var (
		configPath  = flag.String("config", "config/config.yaml", "Path to the configuration file")
		apiPort     = flag.Int("port", 8080, "Port for the HTTP API")
		metricsPort = flag.Int("metrics-port", 9190, "Port for Prometheus metrics")
		watch       = flag.Bool("watch-config", true, "Reload rule tables when the config file changes")
	)
	flag.Parse()

	if _, err := logging.InitFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
	}
	defer logging.Sync()

	if _, err := os.Stat(*configPath); os.IsNotExist(err) {
		logging.Fatalf("Config file not found: %s", *configPath)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics server.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", *metricsPort)
		logging.Infof("Starting metrics server on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logging.Errorf("Metrics server error: %v", err)
		}
	}()

	// Rule-driven layers sit behind swappable wrappers so a config reload
	// replaces their prepped tables without restarting the pipeline.
	patterns := &patternLayer{}
	patterns.swap(classification.NewPatternMatcher(cfg.PatternRules))
	semantics := &semanticLayer{}
	semantics.swap(newSemanticRouter(cfg))
	fields := &completenessLayer{}
	fields.swap(classification.NewCompletenessChecker(cfg.FieldDefinitions))

	auditor := audit.NewLogger(cfg.Audit)

	var llm classification.IntentClassifier
	if cfg.Classifier.LLMFallbackEnabled() {
		llm = classification.NewLLMClassifier(cfg.Backends.LLM)
	}

	cascade := router.New(patterns, semantics, llm, fields, router.Options{
		PatternThreshold:   cfg.Classifier.PatternThreshold,
		SemanticThreshold:  cfg.Classifier.SemanticThreshold,
		EnableLLMFallback:  cfg.Classifier.LLMFallbackEnabled(),
		EnableCompleteness: cfg.Classifier.CompletenessEnabled(),
	}, auditor)

	assessor := risk.NewAssessor(risk.NewPolicyTable(cfg.RiskPolicies))

	// Dialog engine.
	store, err := newDialogStore(ctx, cfg.Dialog)
	if err != nil {
		logging.Fatalf("Failed to initialize dialog store: %v", err)
	}
	questions := dialog.NewQuestionGenerator(classification.NewCompletenessChecker(cfg.FieldDefinitions))
	refiner := dialog.NewRefiner(cfg.RefinementRules)
	engine := dialog.NewEngine(cascade, fields, questions, refiner, store, auditor, cfg.Dialog.MaxTurns)

	// Gateway with per-source handlers.
	snowHandler := &swapHandler{}
	snowHandler.swap(gateway.NewServiceNowHandler(cfg.Gateway.ServiceNowMappings, classification.NewPatternMatcher(cfg.PatternRules)))
	promHandler := &swapHandler{}
	promHandler.swap(gateway.NewPrometheusHandler(cfg.Gateway.AlertMappings))

	gw := gateway.New(map[string]gateway.SourceHandler{
		gateway.SourceServiceNow: snowHandler,
		gateway.SourcePrometheus: promHandler,
		gateway.SourceUser:       gateway.NewUserHandler(cascade, cfg.Gateway.MaxInputLength),
	}, cfg.Gateway.DefaultSource, auditor)

	if *watch {
		go func() {
			if err := config.Watch(ctx, *configPath); err != nil && ctx.Err() == nil {
				logging.Errorf("Config watcher stopped: %v", err)
			}
		}()
		go func() {
			for newCfg := range config.WatchConfigUpdates() {
				patterns.swap(classification.NewPatternMatcher(newCfg.PatternRules))
				semantics.swap(newSemanticRouter(newCfg))
				fields.swap(classification.NewCompletenessChecker(newCfg.FieldDefinitions))
				assessor.ReplaceTable(risk.NewPolicyTable(newCfg.RiskPolicies))
				refiner.Replace(newCfg.RefinementRules)
				snowHandler.swap(gateway.NewServiceNowHandler(newCfg.Gateway.ServiceNowMappings, classification.NewPatternMatcher(newCfg.PatternRules)))
				promHandler.swap(gateway.NewPrometheusHandler(newCfg.Gateway.AlertMappings))
				logging.LogEvent("config_reloaded", map[string]interface{}{
					"pattern_rules":    len(newCfg.PatternRules),
					"semantic_routes":  len(newCfg.SemanticRoutes),
					"risk_policies":    len(newCfg.RiskPolicies),
					"refinement_rules": len(newCfg.RefinementRules),
				})
			}
		}()
	}

	server := apiserver.New(gw, engine, assessor, cascade.Stats(), patterns, cfg.Classifier.MatchTopN, auditor, *apiPort)
	go func() {
		if err := server.Start(); err != nil {
			logging.Fatalf("API server error: %v", err)
		}
	}()

	<-ctx.Done()
	logging.Infof("Shutdown signal received, draining")

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(drainCtx); err != nil {
		logging.Errorf("API server shutdown: %v", err)
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logging.Warnf("Dialog store close: %v", err)
		}
	}
	logging.Infof("Shutdown complete")
}

func newSemanticRouter(cfg *config.RouterConfig) *semantic.Router {
	var encoder semantic.Encoder
	if enc := semantic.NewOpenAIEncoder(cfg.Backends.Embedding); enc != nil {
		encoder = enc
	}
	return semantic.NewRouter(cfg.SemanticRoutes, cfg.Classifier.SemanticThreshold, encoder)
}

func newDialogStore(ctx context.Context, cfg config.DialogConfig) (dialog.Store, error) {
	ttl := time.Duration(cfg.ConversationTTLMinutes) * time.Minute
	if cfg.Store == "redis" {
		store := dialog.NewRedisStore(cfg.Redis, ttl)
		if err := store.Ping(ctx); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		logging.Infof("Dialog state store: redis at %s", cfg.Redis.Addr)
		return store, nil
	}
	logging.Infof("Dialog state store: in-memory (ttl %s)", ttl)
	return dialog.NewMemoryStore(ttl), nil
}
