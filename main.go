package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"relaycloud/internal/auth"
	"relaycloud/internal/observability/metrics"
	"relaycloud/internal/relay/application"
	relayhttp "relaycloud/internal/relay/interfaces/http"
	"relaycloud/internal/relay/notify"
	"relaycloud/internal/store"
	"relaycloud/internal/store/memory"
	storepostgres "relaycloud/internal/store/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	appCfg, err := application.LoadConfig()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	var docs store.Store
	var db *sql.DB
	switch cfg.StoreBackend {
	case "memory":
		docs = memory.New()
	case "postgres":
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
		pg := storepostgres.New(db)
		if err := pg.Migrate(context.Background()); err != nil {
			logger.Fatalf("db migrate error: %v", err)
		}
		docs = pg
	default:
		logger.Fatalf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	metrics.Init(db, logger)

	provider, err := auth.NewProvider([]byte(cfg.JWTSecret), cfg.TokenTTL)
	if err != nil {
		logger.Fatalf("auth provider error: %v", err)
	}
	provider.OnAuthStateChanged(func(_ auth.Identity, active bool) {
		if active {
			metrics.ObserveSignIn()
		} else {
			metrics.ObserveSignOut()
		}
	})

	authHandler, err := auth.NewHandler(provider)
	if err != nil {
		logger.Fatalf("auth handler error: %v", err)
	}

	broker := relayhttp.NewBroker(appCfg.StreamBuffer)
	logNotifier := notify.NewLogNotifier(logger)
	notifierFor := func(userID string) application.Notifier {
		return notify.NewMultiNotifier(logNotifier, broker.NotifierFor(userID))
	}

	relayHandler, err := relayhttp.NewHandler(docs, notifierFor, appCfg.Suggestions)
	if err != nil {
		logger.Fatalf("relay handler error: %v", err)
	}
	streamHandler, err := relayhttp.NewStreamHandler(docs, provider, broker)
	if err != nil {
		logger.Fatalf("stream handler error: %v", err)
	}
	exportHandler, err := relayhttp.NewExportHandler(docs)
	if err != nil {
		logger.Fatalf("export handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/api/v1/auth/"})
	authMiddleware := auth.NewMiddleware(provider, policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/auth/", authHandler)
	mux.Handle("/api/v1/relays", relayHandler)
	mux.Handle("/api/v1/relays/", relayHandler)
	mux.Handle("/api/v1/relays/stream", streamHandler)
	mux.Handle("/api/v1/exports/relays.xlsx", exportHandler)
	mux.Handle("/api/v1/exports/relays.pdf", exportHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	HTTPAddr     string
	JWTSecret    string
	TokenTTL     time.Duration
	StoreBackend string
	DatabaseURL  string
}

func loadConfig() config {
	cfg := config{
		HTTPAddr:     getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:    getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		TokenTTL:     getenvDuration("AUTH_TOKEN_TTL", 24*time.Hour),
		StoreBackend: getenvDefault("STORE_BACKEND", "memory"),
		DatabaseURL:  getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	if cfg.StoreBackend == "postgres" && cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required for the postgres backend")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush keeps event streams working behind the logging wrapper.
func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
