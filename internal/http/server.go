package http

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"finboard/internal/cache"
	"finboard/internal/core"
	"finboard/internal/ledger"
	"finboard/internal/log"
	"finboard/internal/middleware/ratelimit"
	"finboard/internal/middleware/security"
	"finboard/internal/middleware/trace"
	appweb "finboard/web"
)

// RecordService is the ledger surface the handlers depend on.
type RecordService interface {
	SaveRecord(ctx context.Context, r core.MonthlyRecord) core.MonthlyRecord
	DeleteRecord(ctx context.Context, id string) bool
	GetRecordByMonth(ctx context.Context, month string) (core.MonthlyRecord, bool)
	Reports(ctx context.Context) []core.MonthlyReport
	Snapshot(ctx context.Context) ledger.Snapshot
	Stats() ledger.Stats
}

// Config tunes the HTTP server.
type Config struct {
	Addr            string
	Currency        string
	RateLimitPerMin int
	// BlockSuspicious rejects flagged requests instead of only logging them.
	BlockSuspicious bool
	// TrustedProxies are CIDRs, beyond the private ranges, whose forwarding
	// headers are believed.
	TrustedProxies []string
	// Ready backs /readyz; nil means always ready.
	Ready func(context.Context) error
}

// Server wraps http.Server with the dashboard's routes and middleware.
type Server struct {
	http.Server

	records   RecordService
	templates *template.Template
	formatter core.Formatter
	validate  *validator.Validate
	logger    *log.Logger
	ready     func(context.Context) error
	startedAt time.Time

	tracer    *trace.Middleware
	detector  *security.Detector
	limiter   *ratelimit.Limiter
	caches    *cache.Manager
	xlsxCache *cache.LRUCache[[]byte]

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewServer parses the embedded templates and mounts every route.
func NewServer(cfg Config, records RecordService, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	formatter := core.NewFormatter(cfg.Currency)

	t, err := template.New("finboard").Funcs(templateFuncs(formatter)).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}

	detector := security.NewDetector(logger.WithComponent(log.ComponentSecurity), cfg.BlockSuspicious)
	for _, cidr := range cfg.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}

	s := &Server{
		records:   records,
		templates: t,
		formatter: formatter,
		validate:  newValidator(),
		logger:    logger,
		ready:     cfg.Ready,
		startedAt: time.Now(),
		detector:  detector,
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMin}),
		caches:    cache.NewManager(logger),
		xlsxCache: cache.NewLRUCache[[]byte](8, 10*time.Minute),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)
	s.caches.Register(s.xlsxCache)
	s.caches.StartCleanup(5 * time.Minute)

	mux := http.NewServeMux()
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(
		http.StripPrefix("/static/", http.FileServer(http.FS(static)))))

	mux.HandleFunc("GET /{$}", s.handleDashboard)
	mux.HandleFunc("GET /entry", s.handleEntry)
	mux.HandleFunc("GET /ui/summary", s.handleSummary)
	mux.HandleFunc("GET /ui/reports-table", s.handleReportsTable)
	mux.HandleFunc("POST /records", s.handleSaveRecord)
	mux.HandleFunc("POST /records/{id}", s.handleDeleteRecord)
	mux.HandleFunc("DELETE /records/{id}", s.handleDeleteRecord)

	mux.HandleFunc("GET /api/reports", s.handleAPIReports)
	mux.HandleFunc("GET /api/records", s.handleAPIRecordByMonth)
	mux.HandleFunc("POST /api/records", s.handleAPISaveRecord)
	mux.HandleFunc("DELETE /api/records/{id}", s.handleAPIDeleteRecord)
	mux.HandleFunc("GET /api/charts", s.handleAPICharts)
	mux.HandleFunc("GET /reports.xlsx", s.handleXLSX)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limited := s.limiter.Middleware(s.detector.ExtractClientIP, http.MethodPost, http.MethodDelete)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.tracer.Handler(s.detector.Middleware(headers.Middleware(limited(mux)))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Shutdown stops background goroutines and drains the HTTP server. Safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		s.caches.Stop()
		s.shutdownErr = s.Server.Shutdown(ctx)
	})
	return s.shutdownErr
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.FieldOperation, log.OpRender,
			"template", name,
			log.FieldError, err)
		InternalServerError("Could not render page").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
