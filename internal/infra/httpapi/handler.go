package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"rent_autopay/internal/app"
	"rent_autopay/internal/domain/schedule"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const (
	tenantHeader    = "X-Tenant-ID"
	dateLayout      = "2006-01-02"
	defaultHorizon  = 30 * 24 * time.Hour
	maxRequestBytes = 1 << 20
)

type tenantKey struct{}

type Handler struct {
	svc    *app.AutopayService
	bus    *app.NotificationBus
	logger *logrus.Entry
}

func NewHandler(svc *app.AutopayService, bus *app.NotificationBus, logger *logrus.Entry) *Handler {
	return &Handler{svc: svc, bus: bus, logger: logger.WithField("component", "http_api")}
}

// Router builds the API routes. Every route except /metrics needs the tenant header.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/").Subrouter()
	api.Use(h.tenantMiddleware)
	api.HandleFunc("/autopay", h.EnableAutopay).Methods(http.MethodPost)
	api.HandleFunc("/autopay", h.DisableAutopay).Methods(http.MethodDelete)
	api.HandleFunc("/scheduled-payments", h.SchedulePayment).Methods(http.MethodPost)
	api.HandleFunc("/scheduled-payments/{id}", h.GetEntry).Methods(http.MethodGet)
	api.HandleFunc("/scheduled-payments/{id}", h.CancelScheduledPayment).Methods(http.MethodDelete)
	api.HandleFunc("/scheduled-payments/{id}/process", h.ProcessNow).Methods(http.MethodPost)
	api.HandleFunc("/scheduled-payments/{id}/attempts", h.History).Methods(http.MethodGet)
	api.HandleFunc("/upcoming", h.Upcoming).Methods(http.MethodGet)
	api.HandleFunc("/notifications", h.Inbox).Methods(http.MethodGet)
	api.HandleFunc("/notifications/read-all", h.MarkAllRead).Methods(http.MethodPost)
	api.HandleFunc("/notifications/{id}/read", h.MarkRead).Methods(http.MethodPost)
	return r
}

func (h *Handler) tenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := r.Header.Get(tenantHeader)
		if tenantID == "" {
			writeError(w, http.StatusUnauthorized, "missing "+tenantHeader+" header")
			return
		}
		ctx := context.WithValue(r.Context(), tenantKey{}, tenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func tenantFrom(r *http.Request) string {
	tenantID, _ := r.Context().Value(tenantKey{}).(string)
	return tenantID
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log := h.logger.WithFields(logrus.Fields{
		"method":    r.Method,
		"path":      r.URL.Path,
		"tenant_id": tenantFrom(r),
		"status":    status,
	}).WithError(err)
	if status == http.StatusInternalServerError {
		log.Error("Request failed")
		writeError(w, status, "internal error")
		return
	}
	log.Info("Request rejected")
	writeError(w, status, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &schedule.ValidationError{Field: "body", Message: "malformed JSON: " + err.Error()}
	}
	return nil
}

type enableAutopayBody struct {
	PropertyID    string `json:"property_id"`
	Amount        int64  `json:"amount"`
	PaymentMethod string `json:"payment_method"`
	DayOfMonth    int    `json:"day_of_month"`
	PhoneNumber   string `json:"phone_number"`
	Timezone      string `json:"timezone"`
}

func (h *Handler) EnableAutopay(w http.ResponseWriter, r *http.Request) {
	var body enableAutopayBody
	if err := decodeBody(w, r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	entry, err := h.svc.EnableAutopay(r.Context(), app.EnableAutopayRequest{
		TenantID:    tenantFrom(r),
		PropertyID:  body.PropertyID,
		Amount:      body.Amount,
		Method:      schedule.PaymentMethod(body.PaymentMethod),
		DayOfMonth:  body.DayOfMonth,
		PhoneNumber: body.PhoneNumber,
		Timezone:    body.Timezone,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryView(entry))
}

func (h *Handler) DisableAutopay(w http.ResponseWriter, r *http.Request) {
	entry, err := h.svc.DisableAutopay(r.Context(), tenantFrom(r), r.URL.Query().Get("property_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryView(entry))
}

type schedulePaymentBody struct {
	PropertyID    string `json:"property_id"`
	Amount        int64  `json:"amount"`
	PaymentMethod string `json:"payment_method"`
	Date          string `json:"date"`
	PhoneNumber   string `json:"phone_number"`
	Timezone      string `json:"timezone"`
}

func (h *Handler) SchedulePayment(w http.ResponseWriter, r *http.Request) {
	var body schedulePaymentBody
	if err := decodeBody(w, r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	date, err := time.Parse(dateLayout, body.Date)
	if err != nil {
		h.fail(w, r, &schedule.ValidationError{Field: "date", Message: "must be formatted as YYYY-MM-DD"})
		return
	}
	entry, err := h.svc.SchedulePayment(r.Context(), app.SchedulePaymentRequest{
		TenantID:    tenantFrom(r),
		PropertyID:  body.PropertyID,
		Amount:      body.Amount,
		Method:      schedule.PaymentMethod(body.PaymentMethod),
		Date:        date,
		PhoneNumber: body.PhoneNumber,
		Timezone:    body.Timezone,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryView(entry))
}

func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.svc.Entry(r.Context(), tenantFrom(r), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryView(entry))
}

func (h *Handler) CancelScheduledPayment(w http.ResponseWriter, r *http.Request) {
	entry, err := h.svc.CancelScheduledPayment(r.Context(), tenantFrom(r), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryView(entry))
}

func (h *Handler) ProcessNow(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.svc.ProcessNow(r.Context(), tenantFrom(r), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOutcomeView(outcome))
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.svc.History(r.Context(), tenantFrom(r), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAttemptViews(attempts))
}

// Upcoming accepts ?horizon= as a Go duration ("720h") or a number of days ("30d").
func (h *Handler) Upcoming(w http.ResponseWriter, r *http.Request) {
	horizon, err := parseHorizon(r.URL.Query().Get("horizon"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	entries, err := h.svc.Upcoming(r.Context(), tenantFrom(r), horizon)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryViews(entries))
}

func parseHorizon(raw string) (time.Duration, error) {
	if raw == "" {
		return defaultHorizon, nil
	}
	invalid := &schedule.ValidationError{Field: "horizon", Message: "must be a positive duration such as 72h or 30d"}
	if n := len(raw); n > 1 && raw[n-1] == 'd' {
		days, err := strconv.Atoi(raw[:n-1])
		if err != nil || days <= 0 {
			return 0, invalid
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, invalid
	}
	return d, nil
}

type inboxView struct {
	Unread        int                `json:"unread"`
	Notifications []notificationView `json:"notifications"`
}

func (h *Handler) Inbox(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFrom(r)
	items, err := h.bus.Inbox(r.Context(), tenantID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	unread, err := h.bus.UnreadCount(r.Context(), tenantID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inboxView{Unread: unread, Notifications: toNotificationViews(items)})
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.bus.MarkRead(r.Context(), tenantFrom(r), mux.Vars(r)["id"]); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	changed, err := h.bus.MarkAllRead(r.Context(), tenantFrom(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"changed": changed})
}
