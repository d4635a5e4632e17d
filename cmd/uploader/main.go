package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/afero"

	"file-uploader/internal/auth"
	"file-uploader/internal/database"
	"file-uploader/internal/filesystem"
	"file-uploader/internal/handlers"
	"file-uploader/internal/jobs"
	"file-uploader/internal/logging"
	"file-uploader/internal/memory"
	"file-uploader/internal/metrics"
	"file-uploader/internal/middleware"
	"file-uploader/internal/startup"
	"file-uploader/internal/transcoder"
	"file-uploader/internal/uploads"
)

const (
	// Queued transcodes allowed per worker before uploads get 503.
	queuePerWorker    = 8
	metricsInterval   = 15 * time.Second
	shutdownTimeout   = 30 * time.Second
	jobDrainTimeout   = 5 * time.Minute
	readHeaderTimeout = 15 * time.Second
)

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	// After LoadConfig so MEMORY_LIMIT may come from .env.
	memory.ConfigureFromEnv()

	metrics.InitializeMetrics()
	metrics.AppInfo.WithLabelValues(startup.Version, startup.Commit, startup.GoVersion).Set(1)

	gate := auth.NewGate(config.AllowedPasswords)
	startup.LogAuthInit(gate.Open(), gate.Size())

	db := openHistory(config)

	startup.LogTranscoderInit(config.TranscodeWorkers, config.HardwareAcceleration)
	trans := transcoder.New(transcoder.Config{})

	store := jobs.NewStore(jobs.StoreConfig{TTL: config.JobTTL})
	manager := jobs.NewManager(store, jobs.ManagerConfig{
		Workers:   config.TranscodeWorkers,
		QueueSize: config.TranscodeWorkers * queuePerWorker,
	})
	manager.Start()

	var history uploads.History
	var historyReader handlers.History
	if db != nil {
		history = db
		historyReader = db
	}

	fs := filesystem.NewRetryFs(afero.NewOsFs(), filesystem.DefaultRetryConfig())
	svc := uploads.NewService(fs, uploads.Config{
		UploadDir:            config.UploadDir,
		WorkDir:              config.WorkDir,
		HardwareAcceleration: config.HardwareAcceleration,
		SessionTTL:           config.SessionTTL,
	}, trans, manager, history)

	if _, err := svc.ClearWorkDir(); err != nil {
		logging.Warn("Failed to clear work directory: %v", err)
	}

	stats := metrics.StatsFunc(func() metrics.Stats {
		return metrics.Stats{
			JobStoreEntries: store.Len(),
			ActiveSessions:  svc.ActiveSessions(),
			QueuedJobs:      manager.Queued(),
		}
	})
	collector := metrics.NewCollector(stats, metricsInterval)
	collector.Start()

	h := handlers.New(handlers.Config{
		Uploader:       svc,
		Jobs:           store,
		History:        historyReader,
		Auth:           gate,
		Stats:          stats,
		Files:          fs,
		UploadDir:      config.UploadDir,
		MaxUploadBytes: config.MaxChunkBytes,
	})

	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogStaticFiles, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(middleware.CORS(config.CORSOrigin)(router))

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		// Chunk bodies and synchronous transcodes can take minutes.
		ReadTimeout:  0,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", h.MetricsHandler())
		metricsSrv = &http.Server{
			Addr:              ":" + config.MetricsPort,
			Handler:           metricsMux,
			ReadHeaderTimeout: readHeaderTimeout,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		handleShutdown(shutdownDeps{
			srv:        srv,
			metricsSrv: metricsSrv,
			handlers:   h,
			manager:    manager,
			trans:      trans,
			svc:        svc,
			store:      store,
			collector:  collector,
			db:         db,
		})
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
}

func openHistory(config *startup.Config) *database.Database {
	if !config.HistoryEnabled {
		startup.LogDatabaseInit(0, errors.New("database directory is not usable"))
		return nil
	}

	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	startup.LogDatabaseInit(time.Since(dbStart), err)
	if err != nil {
		return nil
	}
	return db
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	r.HandleFunc("/", h.Root).Methods("GET")
	r.HandleFunc("/upload", h.Upload).Methods("POST")
	r.HandleFunc("/job/{id}", h.GetJob).Methods("GET")
	r.HandleFunc("/files/{path:.+}", h.ServeFiles).Methods("GET", "HEAD")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/uploads", h.ListUploads).Methods("GET")

	return r
}

type shutdownDeps struct {
	srv        *http.Server
	metricsSrv *http.Server
	handlers   *handlers.Handlers
	manager    *jobs.Manager
	trans      *transcoder.Transcoder
	svc        *uploads.Service
	store      *jobs.Store
	collector  *metrics.Collector
	db         *database.Database
}

func handleShutdown(d shutdownDeps) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())
	d.handlers.SetShuttingDown()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := d.srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Waiting for transcode jobs")
	jobCtx, jobCancel := context.WithTimeout(context.Background(), jobDrainTimeout)
	if err := d.manager.Shutdown(jobCtx); err != nil {
		logging.Warn("Transcode jobs abandoned: %v", err)
	} else {
		startup.LogShutdownStepComplete("Transcode jobs finished")
	}
	jobCancel()

	startup.LogShutdownStep("Cleaning up transcoder")
	d.trans.Cleanup()
	startup.LogShutdownStepComplete("Transcoder cleanup complete")

	d.collector.Stop()
	d.svc.Close()
	d.store.Close()

	if d.metricsSrv != nil {
		if err := d.metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		}
	}

	if d.db != nil {
		if err := d.db.Close(); err != nil {
			logging.Warn("Failed to close database: %v", err)
		} else {
			startup.LogShutdownStepComplete("Database closed")
		}
	}

	startup.LogShutdownComplete()
}
