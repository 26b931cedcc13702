package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"log"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	alertapp "github.com/Moori-Sense/Backend/internal/alerts/application"
	alertmemory "github.com/Moori-Sense/Backend/internal/alerts/infrastructure/memory"
	alertpostgres "github.com/Moori-Sense/Backend/internal/alerts/infrastructure/postgres"
	"github.com/Moori-Sense/Backend/internal/alerts/notify"
	apihttp "github.com/Moori-Sense/Backend/internal/api/http"
	"github.com/Moori-Sense/Backend/internal/audit"
	"github.com/Moori-Sense/Backend/internal/auth"
	"github.com/Moori-Sense/Backend/internal/config"
	"github.com/Moori-Sense/Backend/internal/dashboard"
	"github.com/Moori-Sense/Backend/internal/eventing"
	"github.com/Moori-Sense/Backend/internal/lines"
	"github.com/Moori-Sense/Backend/internal/observability/metrics"
	"github.com/Moori-Sense/Backend/internal/realtime"
	"github.com/Moori-Sense/Backend/internal/simulation"
	"github.com/Moori-Sense/Backend/internal/tension/application"
	"github.com/Moori-Sense/Backend/internal/tension/application/events"
	tension "github.com/Moori-Sense/Backend/internal/tension/domain"
	tensionmemory "github.com/Moori-Sense/Backend/internal/tension/infrastructure/memory"
	tensionpostgres "github.com/Moori-Sense/Backend/internal/tension/infrastructure/postgres"
	"github.com/Moori-Sense/Backend/internal/weather"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := log.New(os.Stdout, "", log.LstdFlags)

	metrics.Init()

	registry, err := lines.NewRegistry(lines.DefaultRoster())
	if err != nil {
		logger.Fatalf("line registry error: %v", err)
	}

	classifier, err := tension.NewClassifier(cfg.WarningPct, cfg.CriticalMaxRatio)
	if err != nil {
		logger.Fatalf("classifier error: %v", err)
	}

	var (
		store     application.Store
		alertRepo alertapp.Repository
		auditor   audit.Logger
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
		store = tensionpostgres.NewStore(db)
		alertRepo = alertpostgres.NewRepository(db)
		auditor = audit.NewRepository(db)
		logger.Printf("storage: postgres")
	} else {
		store = tensionmemory.NewStore()
		alertRepo = alertmemory.NewRepository()
		auditor = audit.NewLogWriter(logger)
		logger.Printf("storage: in-memory")
	}

	alertManager, err := alertapp.NewManager(alertRepo, classifier,
		alertapp.WithLifespanWarningPct(cfg.LifespanWarningPct))
	if err != nil {
		logger.Fatalf("alert manager error: %v", err)
	}

	holder := weather.NewHolder()
	bus := eventing.NewInMemoryBus()

	gateway, err := application.NewGateway(registry, store, alertManager, holder, bus, classifier, logger,
		application.WithLifespanDecay(tension.LifespanDecay{PctPerOverloadHour: cfg.LifespanDecayPerHour}))
	if err != nil {
		logger.Fatalf("ingestion gateway error: %v", err)
	}

	queryService, err := application.NewQueryService(registry, store, alertManager,
		application.WithDownsampleCap(cfg.DownsampleCap))
	if err != nil {
		logger.Fatalf("query service error: %v", err)
	}

	aggregator, err := dashboard.NewAggregator(registry, alertManager, holder)
	if err != nil {
		logger.Fatalf("dashboard aggregator error: %v", err)
	}

	notifier, err := buildNotifier(cfg, logger)
	if err != nil {
		logger.Fatalf("alert notifier error: %v", err)
	}

	hub := realtime.NewHub()
	bus.Subscribe(eventing.EventTypeOf[events.BatchIngested](), func(ctx context.Context, event any) error {
		evt, ok := event.(events.BatchIngested)
		if !ok {
			return eventing.ErrInvalidEventType
		}
		hub.Broadcast(realtime.Event{
			Type:      realtime.EventSensorDataUpdate,
			Timestamp: evt.OccurredAt,
			Payload:   evt.Updates,
		})
		// Notification does HTTP; keep it off the ingest path.
		for _, transition := range evt.AlertEvents {
			go notifier.Notify(context.Background(), notify.Event{
				Kind:  transition.Event,
				Alert: transition.Alert,
			})
		}
		snapshot, err := aggregator.Snapshot(ctx)
		if err != nil {
			logger.Printf("dashboard snapshot error: %v", err)
			return nil
		}
		hub.Broadcast(realtime.Event{
			Type:      realtime.EventDashboardUpdate,
			Timestamp: evt.OccurredAt,
			Payload:   snapshot,
		})
		return nil
	})

	seed := cfg.SimSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	source, err := buildSource(cfg, registry, rand.New(rand.NewSource(seed)), logger)
	if err != nil {
		logger.Fatalf("simulation source error: %v", err)
	}
	engine, err := simulation.NewEngine(source, gateway, logger, simulation.WithInterval(cfg.SimInterval))
	if err != nil {
		logger.Fatalf("simulation engine error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The in-memory store starts cold; backfill so charts are not empty
	// before the first live tick.
	if cfg.DatabaseURL == "" && cfg.SeedHistoryWindow > 0 {
		seedSource, err := buildSource(cfg, registry, rand.New(rand.NewSource(seed+1)), logger)
		if err != nil {
			logger.Fatalf("history seed source error: %v", err)
		}
		if err := simulation.SeedHistory(ctx, gateway, seedSource, cfg.SeedHistoryWindow, cfg.SeedHistoryStep, time.Now().UTC()); err != nil {
			logger.Fatalf("history seed error: %v", err)
		}
		logger.Printf("seeded %s of tension history", cfg.SeedHistoryWindow)
	}

	if cfg.SimAutoStart {
		engine.Start(ctx)
	}

	linesHandler, err := apihttp.NewLinesHandler(registry, queryService)
	if err != nil {
		logger.Fatalf("lines handler error: %v", err)
	}
	readingsHandler, err := apihttp.NewReadingsHandler(gateway)
	if err != nil {
		logger.Fatalf("readings handler error: %v", err)
	}
	alertsHandler, err := apihttp.NewAlertsHandler(alertManager, apihttp.WithAlertsAudit(auditor))
	if err != nil {
		logger.Fatalf("alerts handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)
	if cfg.JWTSecret == "" {
		logger.Printf("auth disabled: JWT_SECRET is empty")
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/dashboard", apihttp.NewDashboardHandler(aggregator))
	mux.Handle("/api/v1/lines", linesHandler)
	mux.Handle("/api/v1/lines/", linesHandler)
	mux.Handle("/api/v1/readings", readingsHandler)
	mux.Handle("/api/v1/alerts", alertsHandler)
	mux.Handle("/api/v1/alerts/", alertsHandler)
	mux.Handle("/api/v1/weather/current", apihttp.NewWeatherHandler(holder))
	mux.Handle("/api/v1/simulation/", apihttp.NewSimulationHandler(engine, ctx, apihttp.WithSimulationAudit(auditor)))
	mux.Handle("/api/v1/stream", apihttp.NewStreamHandler(hub))
	mux.Handle("/ws", apihttp.NewWSHandler(hub, logger))
	mux.Handle("/api/v1/exports/alerts.xlsx", apihttp.NewExportAlertsXLSXHandler(alertManager))
	mux.Handle("/api/v1/exports/lines/", apihttp.NewLineReportPDFHandler(registry, queryService))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	go func() {
		logger.Printf("http listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Printf("shutting down")
	engine.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("http shutdown error: %v", err)
	}
}

// buildNotifier wires alert notifications: always to the log, plus a
// webhook when one is configured.
func buildNotifier(cfg config.Config, logger *log.Logger) (notify.Notifier, error) {
	logNotifier, err := notify.NewAlertNotifier(notify.NewLogChannel(logger), nil, logger)
	if err != nil {
		return nil, err
	}
	if cfg.AlertWebhookURL == "" {
		return logNotifier, nil
	}
	webhookNotifier, err := notify.NewAlertNotifier(
		notify.NewWebhookChannel(cfg.AlertWebhookURL), nil, logger,
		notify.WithCooldown(cfg.NotifyCooldown))
	if err != nil {
		return nil, err
	}
	logger.Printf("alert webhook enabled")
	return notify.NewMulti(logNotifier, webhookNotifier), nil
}

// buildSource picks the tick source: captured sensor frames when a
// capture file is configured, otherwise a synthetic walk over the
// roster.
func buildSource(cfg config.Config, registry *lines.Registry, rng *rand.Rand, logger *log.Logger) (simulation.Source, error) {
	if cfg.SimFramesFile != "" {
		frames, err := simulation.LoadFrames(cfg.SimFramesFile, rng)
		if err != nil {
			return nil, err
		}
		logger.Printf("loaded %d sensor frames from %s", len(frames), cfg.SimFramesFile)
		return simulation.NewReplaySource(frames, rng)
	}

	roster := registry.List()
	refs := make(map[string]float64, len(roster))
	maxes := make(map[string]float64, len(roster))
	order := make([]string, 0, len(roster))
	for _, line := range roster {
		refs[line.LineID] = line.ReferenceTension
		maxes[line.LineID] = line.MaxTension
		order = append(order, line.LineID)
	}
	return simulation.NewSyntheticSource(refs, maxes, order, rng)
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

// statusWriter records the status code and forwards Flush and Hijack
// so the SSE stream and the WebSocket upgrade keep working behind the
// logging middleware.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := w.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, errors.New("hijack unsupported")
}
