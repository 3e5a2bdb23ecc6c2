package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"shareit/internal/config"
	"shareit/internal/domain"
	"shareit/internal/metrics"
	"shareit/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	requestIDHeader = "X-Request-Id"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ReadinessCheck reports whether backing stores are reachable.
type ReadinessCheck func(ctx context.Context) error

// HTTPServer exposes the booking API over JSON/HTTP.
type HTTPServer struct {
	cfg      *config.APIConfig
	bookings domain.BookingService
	queries  Queries
	ready    ReadinessCheck
	server   *http.Server
	auth     *HTTPAuth
	logger   zerolog.Logger
}

func NewHTTPServer(
	cfg *config.APIConfig,
	bookings domain.BookingService,
	queries Queries,
	ready ReadinessCheck,
	logger *zerolog.Logger,
) *HTTPServer {
	srv := &HTTPServer{
		cfg:      cfg,
		bookings: bookings,
		queries:  queries,
		ready:    ready,
		auth:     NewHTTPAuth(cfg),
		logger:   logger.With().Str("component", "http").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", srv.handleHealth)
	mux.HandleFunc("GET /readyz", srv.handleReady)

	srv.route(mux, "POST /api/v1/bookings", "bookings.create", srv.handleCreate)
	srv.route(mux, "PATCH /api/v1/bookings/{id}", "bookings.approve", srv.handleApprove)
	srv.route(mux, "DELETE /api/v1/bookings/{id}", "bookings.remove", srv.handleRemove)
	srv.route(mux, "GET /api/v1/bookings/{id}", "bookings.get", srv.handleGet)
	srv.route(mux, "GET /api/v1/bookings", "bookings.list_booker", srv.handleListBooker)
	srv.route(mux, "GET /api/v1/bookings/owner", "bookings.list_owner", srv.handleListOwner)
	srv.route(mux, "GET /api/v1/bookings/owner/export", "bookings.export_owner", srv.handleExportOwner)
	srv.route(mux, "GET /api/v1/items/{id}/bookings/nearest", "items.nearest", srv.handleNearest)
	srv.route(mux, "GET /api/v1/items/owner/nearest", "items.owner_nearest", srv.handleOwnerNearest)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.auth.Wrap(mux),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

// Handler returns the root handler, used by tests and embedding servers.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type apiHandler func(w http.ResponseWriter, r *http.Request) error

// route оборачивает обработчик: request id, лог, метрики и перевод ошибок в статусы
func (s *HTTPServer) route(mux *http.ServeMux, pattern, endpoint string, h apiHandler) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		err := h(recorder, r)
		if err != nil {
			s.writeServiceError(recorder, requestID, err)
		}

		elapsed := time.Since(start)
		metrics.ObserveHTTP(endpoint, recorder.status, elapsed)

		event := s.logger.Info()
		if recorder.status >= http.StatusInternalServerError {
			event = s.logger.Error().Err(err)
		}
		event.
			Str("request_id", requestID).
			Str("endpoint", endpoint).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", elapsed).
			Msg("http request")
	})
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, requestID string, err error) {
	code := httpStatusFor(err)
	if code == http.StatusInternalServerError {
		writeJSON(w, code, map[string]string{"error": "internal error", "request_id": requestID})
		return
	}

	body := map[string]string{"error": err.Error()}
	if kind := domain.KindOf(err); kind != 0 {
		body["kind"] = kind.String()
	}
	writeJSON(w, code, body)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("readiness check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type createBookingRequest struct {
	ItemID int64  `json:"itemId"`
	Start  string `json:"start"`
	End    string `json:"end"`
}

func (s *HTTPServer) handleCreate(w http.ResponseWriter, r *http.Request) error {
	userID, err := actingUser(r)
	if err != nil {
		return err
	}

	var body createBookingRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		return badRequest("invalid JSON body")
	}
	if body.ItemID == 0 {
		return badRequest("itemId is required")
	}
	start, err := parseTime("start", body.Start)
	if err != nil {
		return err
	}
	end, err := parseTime("end", body.End)
	if err != nil {
		return err
	}

	booking, err := s.bookings.CreateBooking(r.Context(), userID, body.ItemID, start, end)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, newBookingView(booking))
	return nil
}

func (s *HTTPServer) handleApprove(w http.ResponseWriter, r *http.Request) error {
	userID, err := actingUser(r)
	if err != nil {
		return err
	}
	bookingID, err := pathID(r)
	if err != nil {
		return err
	}
	approved, err := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get("approved")))
	if err != nil {
		return badRequest("approved must be true or false")
	}

	booking, err := s.bookings.SetApproval(r.Context(), bookingID, userID, approved)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, newBookingView(booking))
	return nil
}

func (s *HTTPServer) handleRemove(w http.ResponseWriter, r *http.Request) error {
	userID, err := actingUser(r)
	if err != nil {
		return err
	}
	bookingID, err := pathID(r)
	if err != nil {
		return err
	}

	booking, err := s.bookings.RemoveBooking(r.Context(), bookingID, userID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, newBookingView(booking))
	return nil
}

func (s *HTTPServer) handleGet(w http.ResponseWriter, r *http.Request) error {
	userID, err := actingUser(r)
	if err != nil {
		return err
	}
	bookingID, err := pathID(r)
	if err != nil {
		return err
	}

	booking, err := s.bookings.GetBooking(r.Context(), bookingID, userID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, newBookingView(booking))
	return nil
}

func (s *HTTPServer) handleListBooker(w http.ResponseWriter, r *http.Request) error {
	return s.list(w, r, s.queries.ListByBookerState)
}

func (s *HTTPServer) handleListOwner(w http.ResponseWriter, r *http.Request) error {
	return s.list(w, r, s.queries.ListByOwnerState)
}

type listFunc func(ctx context.Context, actorID int64, state string, page models.Page) ([]*models.Booking, error)

func (s *HTTPServer) list(w http.ResponseWriter, r *http.Request, fn listFunc) error {
	userID, err := actingUser(r)
	if err != nil {
		return err
	}
	state, page, err := listParams(r)
	if err != nil {
		return err
	}

	bookings, err := fn(r.Context(), userID, state, page)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, newBookingViews(bookings))
	return nil
}

func (s *HTTPServer) handleExportOwner(w http.ResponseWriter, r *http.Request) error {
	userID, err := actingUser(r)
	if err != nil {
		return err
	}
	state := stateParam(r)

	// файл собирается целиком, чтобы ошибка не обрезала ответ на середине
	var buf bytes.Buffer
	if err := s.queries.ExportOwnerBookings(r.Context(), userID, state, &buf); err != nil {
		return err
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="bookings.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
	return nil
}

func (s *HTTPServer) handleNearest(w http.ResponseWriter, r *http.Request) error {
	userID, err := actingUser(r)
	if err != nil {
		return err
	}
	itemID, err := pathID(r)
	if err != nil {
		return err
	}

	ann, err := s.queries.ResolveNearest(r.Context(), itemID, userID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, newItemBookingsView(ann))
	return nil
}

func (s *HTTPServer) handleOwnerNearest(w http.ResponseWriter, r *http.Request) error {
	userID, err := actingUser(r)
	if err != nil {
		return err
	}

	anns, err := s.queries.AnnotateOwnerItems(r.Context(), userID)
	if err != nil {
		return err
	}
	out := make([]*itemBookingsView, 0, len(anns))
	for _, ann := range anns {
		out = append(out, newItemBookingsView(ann))
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

func actingUser(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get(models.UserHeader))
	if raw == "" {
		return 0, badRequest(models.UserHeader + " header is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, badRequest("invalid " + models.UserHeader + " header")
	}
	return id, nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, badRequest("invalid id")
	}
	return id, nil
}

func stateParam(r *http.Request) string {
	if state := r.URL.Query().Get("state"); state != "" {
		return state
	}
	return models.DefaultState
}

func listParams(r *http.Request) (string, models.Page, error) {
	q := r.URL.Query()
	page := models.Page{From: 0, Size: models.DefaultPageSize}

	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		from, err := strconv.Atoi(raw)
		if err != nil {
			return "", page, badRequest("from must be an integer")
		}
		page.From = from
	}
	if raw := strings.TrimSpace(q.Get("size")); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return "", page, badRequest("size must be an integer")
		}
		page.Size = size
	}
	return stateParam(r), page, nil
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
