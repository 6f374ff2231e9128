package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	appdelivery "github.com/bryanwahyu/kinetic-intake/internal/application/delivery"
	appreports "github.com/bryanwahyu/kinetic-intake/internal/application/reports"
	"github.com/bryanwahyu/kinetic-intake/internal/domain/assistant"
	"github.com/bryanwahyu/kinetic-intake/internal/domain/delivery"
	"github.com/bryanwahyu/kinetic-intake/internal/domain/intake"
	domain "github.com/bryanwahyu/kinetic-intake/internal/domain/reports"
	"github.com/bryanwahyu/kinetic-intake/internal/middleware"
)

const maxBodyBytes = 5 << 20

// Options holds the router's collaborators besides the services.
type Options struct {
	CORSOrigins []string
	RateLimiter *middleware.RateLimiter
	Metrics     *middleware.Metrics
	Health      map[string]middleware.HealthChecker
	Ready       map[string]middleware.HealthChecker
	Log         *zap.Logger
}

type Router struct {
	reportsSvc  *appreports.Service
	deliverySvc *appdelivery.Service
	log         *zap.Logger
}

func NewRouter(reportsSvc *appreports.Service, deliverySvc *appdelivery.Service, opts Options) http.Handler {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = middleware.NewMetrics()
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := &Router{reportsSvc: reportsSvc, deliverySvc: deliverySvc, log: log}
	mux := chi.NewRouter()

	mux.Use(chimw.RealIP)
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Recovery(log))
	mux.Use(middleware.Logging(log))
	mux.Use(metrics.Middleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{"Content-Disposition", middleware.RequestIDHeader},
		MaxAge:         300,
	}))
	if opts.RateLimiter != nil {
		mux.Use(middleware.RateLimit(opts.RateLimiter))
	}

	mux.Get("/health", middleware.HealthHandler(opts.Health))
	mux.Get("/health/live", middleware.LivenessHandler)
	mux.Get("/health/ready", middleware.ReadinessHandler(opts.Ready))
	mux.Get("/metrics", metrics.Handler)

	mux.Route("/api", func(rt chi.Router) {
		rt.Get("/chat", r.wrap(r.handleChatInfo))
		rt.Post("/chat", r.wrap(r.handleChat))

		rt.Get("/reports", r.wrap(r.handleList))
		rt.Get("/reports/{id}", r.wrap(r.handleGet))
		rt.Post("/reports/generate-pdf", r.wrap(r.handleGeneratePDF))
		rt.Post("/reports/send-email", r.wrap(r.handleSendEmail))
	})

	mux.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusNotFound, envelope{"success": false, "error": "Not found"})
	})
	mux.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, envelope{"success": false, "error": "Method not allowed"})
	})

	return mux
}

type envelope map[string]any

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequest marks an error as the client's fault.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

// publicMessages are the messages clients see for known failures.
var publicMessages = []struct {
	err error
	msg string
}{
	{intake.ErrMissingInput, "Missing input to send to AI"},
	{delivery.ErrReportRequired, "Report data is required"},
	{delivery.ErrInvalidRecipient, "Valid recipient email is required"},
	{delivery.ErrSMTPNotConfigured, "SMTP configuration missing"},
	{assistant.ErrRunTimeout, "Assistant run timed out"},
	{assistant.ErrInvalidThreadID, "Invalid thread ID received from OpenAI"},
	{assistant.ErrInvalidRunID, "Invalid run ID received from OpenAI"},
	{assistant.ErrQuotaExceeded, "AI quota exceeded"},
	{domain.ErrNotFound, "Report not found"},
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		status := statusOf(err)
		if status >= 500 {
			r.log.Error("request failed",
				zap.String("path", req.URL.Path),
				zap.String("request_id", middleware.GetRequestID(req.Context())),
				zap.Error(err),
			)
		}
		writeJSON(w, status, envelope{"success": false, "error": publicMessage(err)})
	}
}

func statusOf(err error) int {
	var br badRequest
	switch {
	case errors.As(err, &br), appreports.IsValidation(err), appdelivery.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, assistant.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

func publicMessage(err error) string {
	for _, m := range publicMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	var runErr *assistant.RunError
	if errors.As(err, &runErr) {
		msg := runErr.Message
		if msg == "" {
			msg = "Unknown error"
		}
		return "Assistant run " + runErr.Status + ": " + msg
	}
	var upErr *assistant.UpstreamError
	if errors.As(err, &upErr) {
		return upErr.Err.Error()
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body. An empty or malformed body is a bad request.
func decode(req *http.Request, w http.ResponseWriter, v any) error {
	req.Body = http.MaxBytesReader(w, req.Body, maxBodyBytes)
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return badRequest{"Request body too large"}
		case errors.Is(err, io.EOF):
			return badRequest{"Request body is required"}
		}
		return badRequest{"Invalid JSON body"}
	}
	return nil
}

// GET /api/chat
func (r *Router) handleChatInfo(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, envelope{
		"success": true,
		"message": "Hydrawav3 Assistant API running",
		"example": envelope{"input": "Generate a general_mobility_kinetic_chain report"},
	})
}

// POST /api/chat
// Body: {"input": "..."} or {"formData": {...}}
func (r *Router) handleChat(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Input    json.RawMessage `json:"input"`
		FormData json.RawMessage `json:"formData"`
	}
	if err := decode(req, w, &body); err != nil {
		return err
	}

	// non-string input is ignored, same as an absent one
	var input string
	_ = json.Unmarshal(body.Input, &input)

	res, err := r.reportsSvc.Generate(req.Context(), appreports.GenerateCommand{
		Input:    input,
		FormData: body.FormData,
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, envelope{
		"success": true,
		"message": "Response generated successfully",
		"data":    res,
	})
}

// GET /api/reports?page=&page_size=
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))
	page, size = domain.NormalizePage(page, size)

	list, err := r.reportsSvc.List(req.Context(), page, size)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, envelope{
		"success":   true,
		"data":      list,
		"page":      page,
		"page_size": size,
	})
}

// GET /api/reports/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateReportID(id); err != nil {
		return badRequest{err.Error()}
	}

	rep, err := r.reportsSvc.Get(req.Context(), domain.ID(id))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, envelope{"success": true, "data": rep})
}

// POST /api/reports/generate-pdf
// Body: {"report": {...}}
func (r *Router) handleGeneratePDF(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Report any `json:"report"`
	}
	if err := decode(req, w, &body); err != nil {
		return err
	}

	pdf, err := r.deliverySvc.RenderPDF(req.Context(), body.Report)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+pdf.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf.Content)))
	if pdf.ArchiveURL != "" {
		w.Header().Set("X-Report-Archive-URL", pdf.ArchiveURL)
	}
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(pdf.Content)
	return err
}

// POST /api/reports/send-email
// Body: {"to": "...", "subject": "...", "message": "...", "report": {...}}
func (r *Router) handleSendEmail(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		To      string `json:"to"`
		Subject string `json:"subject"`
		Message string `json:"message"`
		Report  any    `json:"report"`
	}
	if err := decode(req, w, &body); err != nil {
		return err
	}

	id, err := r.deliverySvc.SendEmail(req.Context(), appdelivery.SendEmailCommand{
		To:      strings.TrimSpace(body.To),
		Subject: middleware.SanitizeHeader(body.Subject),
		Message: middleware.SanitizeString(body.Message),
		Report:  body.Report,
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, envelope{
		"success":   true,
		"message":   "Email sent successfully",
		"messageId": id,
	})
}
