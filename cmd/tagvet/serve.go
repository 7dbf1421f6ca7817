package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.etcd.io/bbolt"

	"github.com/yairfalse/tagvet/audit"
	"github.com/yairfalse/tagvet/config"
	"github.com/yairfalse/tagvet/faults"
	"github.com/yairfalse/tagvet/policy"
	awsprovider "github.com/yairfalse/tagvet/provider/aws"
	"github.com/yairfalse/tagvet/ratelimit"
	"github.com/yairfalse/tagvet/scanner"
	"github.com/yairfalse/tagvet/session"
	"github.com/yairfalse/tagvet/storage"
	"github.com/yairfalse/tagvet/telemetry"
	"github.com/yairfalse/tagvet/tools"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the tool catalog over HTTP",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	shutdown, err := telemetry.InitOTEL(ctx, telemetry.Config{
		ServiceName:    "tagvet",
		ServiceVersion: version,
		OTELEndpoint:   cfg.OTELEndpoint,
		Insecure:       true,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(shutdownCtx)
	}()

	logger := telemetry.NewLogger("serve")

	catalog, db, err := buildCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() { _ = db.Close() }()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(telemetry.PrometheusRegistry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /tools", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"tools": catalog.Names()})
	})
	mux.HandleFunc("POST /tools/{name}", func(w http.ResponseWriter, r *http.Request) {
		handleInvoke(catalog, w, r)
	})

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var group run.Group
	group.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))
	group.Add(func() error {
		logger.WithContext(ctx).Info().Str("addr", cfg.Listen).Msg("serving tool catalog")
		return server.ListenAndServe()
	}, func(error) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	})

	err = group.Run()
	if _, ok := err.(run.SignalError); ok {
		logger.WithContext(ctx).Info().Msg("shutting down")
		return nil
	}
	return err
}

// buildCatalog wires every collaborator from the config. The returned
// database handle stays open for the process lifetime.
func buildCatalog(ctx context.Context, cfg *config.Config) (*tools.Catalog, *bbolt.DB, error) {
	tagPolicy, err := policy.Load(cfg.PolicyPath)
	if err != nil {
		return nil, nil, err
	}
	engine, err := policy.NewEngine(tagPolicy)
	if err != nil {
		return nil, nil, err
	}

	provider, err := awsprovider.NewProvider(ctx)
	if err != nil {
		return nil, nil, err
	}

	logger := telemetry.NewLogger("storage")
	var sink audit.Sink
	var counters session.CounterStore

	db, err := storage.Open(cfg.StorageDir)
	if err != nil {
		// Degraded mode: session state and audit records live in
		// process memory only. The guards still enforce their limits.
		logger.LogFault(ctx, "durable store unavailable, running with in-memory state", err)
		sink = audit.NewMemorySink()
		counters = session.NewMemoryCounterStore()
		db = nil
	} else {
		boltSink, err := storage.NewBoltAuditStore(db)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		sink = boltSink
		counters = session.NewFallbackCounterStore(storage.NewBoltCounterStore(db), func(err error) {
			logger.LogFault(ctx, "shared counter store degraded to local", err)
		})
	}

	limiter := ratelimit.New(ratelimit.Options{
		MinInterval: cfg.RateLimit.MinInterval,
		MaxInFlight: cfg.RateLimit.MaxInFlight,
		MaxAttempts: cfg.RateLimit.MaxAttempts,
		BackoffBase: cfg.RateLimit.BackoffBase,
		Jitter:      cfg.RateLimit.Jitter,
	})

	catalog := tools.New(tools.Options{
		Policy:  tagPolicy,
		Engine:  engine,
		Scanner: scanner.New(provider, limiter, cfg.ScanTimeout),
		Costs:   provider,
		Budget:  session.NewBudgetTracker(counters, cfg.Budget.Ceiling, cfg.Budget.TTL),
		Loops:   session.NewLoopDetector(counters, cfg.Loop.Window, cfg.Loop.Threshold),
		Sink:    sink,
		Regions: cfg.Regions,
	})
	return catalog, db, nil
}

// invokeRequest is the wire shape of one tool call.
type invokeRequest struct {
	SessionID string         `json:"session_id"`
	Params    map[string]any `json:"params"`
}

func handleInvoke(catalog *tools.Catalog, w http.ResponseWriter, r *http.Request) {
	var req invokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	if req.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session_id is required"})
		return
	}

	payload, fail := catalog.Invoke(r.Context(), req.SessionID, r.PathValue("name"), req.Params)
	if fail != nil {
		writeJSON(w, statusFor(fail.Kind), fail)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": payload})
}

func statusFor(kind faults.Kind) int {
	switch kind {
	case faults.KindInvalidInput, faults.KindSecurityViolation:
		return http.StatusBadRequest
	case faults.KindPermissionDenied:
		return http.StatusForbidden
	case faults.KindBudgetExhausted, faults.KindLoopDetected:
		return http.StatusTooManyRequests
	case faults.KindTimeout:
		return http.StatusGatewayTimeout
	case faults.KindUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
