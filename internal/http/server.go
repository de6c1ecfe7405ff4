package http

import (
	"bytes"
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"invoicedash/internal/backend"
	"invoicedash/internal/cache"
	"invoicedash/internal/log"
	"invoicedash/internal/middleware/ratelimit"
	"invoicedash/internal/middleware/security"
	"invoicedash/internal/middleware/trace"
	"invoicedash/internal/notify"
	"invoicedash/internal/services"
	"invoicedash/internal/session"
	appweb "invoicedash/web"
)

// Settings are the request-independent knobs of the dashboard.
type Settings struct {
	DefaultWorksheet string
	// SpreadsheetID is used for credential uploads that don't name one.
	SpreadsheetID   string
	AllowUpload     bool
	MailConcurrency int
	StoreTimeout    time.Duration
	SecureCookies   bool
}

// Dependencies are the collaborators the server is built from. Default
// may be nil; sessions then have to connect with uploaded credentials.
type Dependencies struct {
	Logger   *log.Logger
	Sessions *session.Manager
	Factory  backend.Factory
	Default  *services.InvoiceService
	Mailer   notify.Mailer
	Caches   *cache.Manager
	Settings Settings
}

type Server struct {
	http.Server
	templates *template.Template
	logger    *log.Logger

	sessions   *session.Manager
	factory    backend.Factory
	defaultSvc *services.InvoiceService
	mailer     notify.Mailer
	actions    *services.ActionRegistry
	caches     *cache.Manager
	settings   Settings

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

// appMetrics counts user actions for /metrics.
type appMetrics struct {
	uptime        time.Time
	appends       int64
	saves         int64
	emailsSent    int64
	emailsFailed  int64
	exports       int64
	actionsFailed int64
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	settings := deps.Settings
	if settings.DefaultWorksheet == "" {
		settings.DefaultWorksheet = "Sheet1"
	}
	if settings.MailConcurrency <= 0 {
		settings.MailConcurrency = notify.DefaultConcurrency
	}
	if settings.StoreTimeout <= 0 {
		settings.StoreTimeout = 10 * time.Second
	}

	sessions := deps.Sessions
	if sessions == nil {
		sessions = session.NewManager(30*time.Minute, 0, logger)
	}
	caches := deps.Caches
	if caches == nil {
		caches = cache.NewManager(logger)
	}
	mailer := deps.Mailer
	if mailer == nil {
		mailer = notify.NewLogMailer(logger)
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger:           logger,
		sessions:         sessions,
		factory:          deps.Factory,
		defaultSvc:       deps.Default,
		mailer:           mailer,
		actions:          services.DefaultActions(mailer),
		caches:           caches,
		settings:         settings,
		rateLimiter:      ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		securityDetector: security.NewDetector(),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP)

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.WithComponent(log.ComponentTemplate).Error("Failed parsing templates", log.FieldError, err)
	} else {
		s.templates = t
	}

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	page := func(h http.HandlerFunc) http.Handler { return security.NoStore(h) }
	mux.Handle("GET /{$}", page(s.handleIndex))
	mux.Handle("POST /connect", page(s.handleConnect))
	mux.Handle("POST /disconnect", page(s.handleDisconnect))
	mux.Handle("GET /dashboard", page(s.handleDashboard))
	mux.Handle("GET /ui/view", page(s.handleView))
	mux.Handle("POST /ui/filters/reset", page(s.handleResetFilters))
	mux.Handle("POST /invoices", page(s.handleAppendInvoice))
	mux.Handle("POST /invoices/edits", page(s.handleSaveEdits))
	mux.Handle("POST /invoices/remind-overdue", page(s.handleRemindOverdue))
	mux.Handle("POST /invoices/{row}/actions/{action}", page(s.handleRowAction))
	mux.Handle("GET /export/{format}", page(s.handleExport))

	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, ratelimit.OnlyMethods(http.MethodPost), s.handleRateLimited)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	var handler http.Handler = mux
	handler = limited(handler)
	handler = headers.Middleware(handler)
	handler = s.securityDetector.Middleware(logger)(handler)
	handler = s.traceMiddleware.Middleware(handler)
	s.Handler = handler

	return s
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Too many requests. Please wait a minute.").
		TriggerErrorNotification("Too many requests. Please wait a minute.").
		Write(w)
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	s.renderWith(w, r, NewHTMXResponse(), name, data)
}

// renderWith executes a template into b's body so that a failing template
// never leaves a half-written page behind.
func (s *Server) renderWith(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data any) {
	if s.templates == nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded",
			log.FieldPath, r.URL.Path,
			log.FieldErrorType, log.ErrorTypeConfiguration)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err,
			log.FieldOperation, log.OpRender,
			"template", name)
		http.Error(w, "rendering failed", http.StatusInternalServerError)
		return
	}
	b.BodyHTML(buf.String()).Write(w)
}
