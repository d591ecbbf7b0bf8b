// Package api exposes HTTP handlers for the sleep-log service.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/domain"
	"github.com/EvgeniyVishnevskiy/sleep-logger/internal/persistence"
)

const (
	// DateLayout is the wire format of sleepDate and the observation range.
	DateLayout = "01/02/2006"

	timestampLayout = "01/02/2006 15:04:05"

	headerUserID       = "userId"
	headerNumberOfDays = "numberOfDays"

	// maxTrailingDays caps numberOfDays at roughly a century.
	maxTrailingDays = 36600

	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
	logger  *zap.Logger
	now     func() time.Time
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger, now: time.Now}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/sleeplog", h.sleepLog)
	mux.HandleFunc("/v1/sleeplog/last-x-days", h.lastXDays)
	mux.HandleFunc("/v1/sleeplog/history", h.history)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) sleepLog(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.recordSleep(w, r)
	case http.MethodGet:
		h.lastNight(w, r)
	default:
		h.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) recordSleep(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireInt64Header(w, r, headerUserID)
	if !ok {
		return
	}

	var req RecordSleepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			h.writeError(w, http.StatusBadRequest, "invalid_format", "Invalid parameter format: "+typeErr.Value)
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	input, err := req.toInput(userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	stored, err := h.service.RecordSleep(r.Context(), input)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSleepLogView(*stored))
}

func (h *Handler) lastNight(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireInt64Header(w, r, headerUserID)
	if !ok {
		return
	}

	latest, err := h.service.GetMostRecentSleep(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if latest == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, toSleepLogView(*latest))
}

func (h *Handler) lastXDays(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	userID, ok := h.requireInt64Header(w, r, headerUserID)
	if !ok {
		return
	}
	days, ok := h.requireInt64Header(w, r, headerNumberOfDays)
	if !ok {
		return
	}
	if days > maxTrailingDays || days < -maxTrailingDays {
		h.writeDomainError(w, invalidFormat(strconv.FormatInt(days, 10)))
		return
	}

	result, err := h.service.GetTrailingAverage(r.Context(), userID, int(days))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if result == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, toAverageView(*result))
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	userID, ok := h.requireInt64Header(w, r, headerUserID)
	if !ok {
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			if parsed > maxHistoryLimit {
				parsed = maxHistoryLimit
			}
			limit = parsed
		}
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_format", "invalid cursor")
		return
	}

	items, next, err := h.service.ListSleepHistory(r.Context(), userID, cursor, limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := SleepHistoryResponse{
		Items:      make([]SleepLogView, 0, len(items)),
		NextCursor: persistence.EncodeCursor(next),
	}
	for _, item := range items {
		resp.Items = append(resp.Items, toSleepLogView(item))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) requireInt64Header(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := strings.TrimSpace(r.Header.Get(name))
	value, err := strconv.ParseInt(raw, 10, 64)
	if raw == "" || err != nil {
		h.writeError(w, http.StatusBadRequest, "missing_parameter", "Missing required parameter")
		return 0, false
	}
	return value, true
}

// RecordSleepRequest is the payload for POST /v1/sleeplog. An empty
// sleepDate means today.
type RecordSleepRequest struct {
	SleepDate    string `json:"sleepDate" validate:"omitempty"`
	SleepStart   string `json:"sleepStart" validate:"required"`
	SleepEnd     string `json:"sleepEnd" validate:"required"`
	SleepQuality string `json:"sleepQuality" validate:"required,oneof=BAD OK GOOD"`
}

func (r RecordSleepRequest) toInput(userID int64) (domain.RecordSleepInput, error) {
	if err := validate.Struct(r); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			if fe.Tag() == "required" {
				return domain.RecordSleepInput{}, &domain.MissingFieldError{Field: fe.Field()}
			}
			return domain.RecordSleepInput{}, invalidFormat(fmt.Sprint(fe.Value()))
		}
		return domain.RecordSleepInput{}, err
	}

	input := domain.RecordSleepInput{UserID: userID}
	if r.SleepDate != "" {
		date, err := time.Parse(DateLayout, r.SleepDate)
		if err != nil {
			return domain.RecordSleepInput{}, invalidFormat(r.SleepDate)
		}
		input.Date = date
	}

	start, err := domain.ParseTimeOfDay(r.SleepStart)
	if err != nil {
		return domain.RecordSleepInput{}, invalidFormat(r.SleepStart)
	}
	end, err := domain.ParseTimeOfDay(r.SleepEnd)
	if err != nil {
		return domain.RecordSleepInput{}, invalidFormat(r.SleepEnd)
	}
	quality, err := domain.ParseQuality(r.SleepQuality)
	if err != nil {
		return domain.RecordSleepInput{}, invalidFormat(r.SleepQuality)
	}

	input.Start = &start
	input.End = &end
	input.Quality = &quality
	return input, nil
}

type invalidFormatError struct {
	value string
}

func (e *invalidFormatError) Error() string {
	return "Invalid parameter format: " + e.value
}

func invalidFormat(value string) error {
	return &invalidFormatError{value: value}
}

// SleepLogView is the JSON shape of a stored sleep session. sleepDate is
// the date the session ended on.
type SleepLogView struct {
	ID           string           `json:"id"`
	UserID       int64            `json:"userId"`
	SleepDate    string           `json:"sleepDate"`
	SleepStart   domain.TimeOfDay `json:"sleepStart"`
	SleepEnd     domain.TimeOfDay `json:"sleepEnd"`
	SleepTime    domain.TimeOfDay `json:"sleepTime"`
	SleepQuality domain.Quality   `json:"sleepQuality"`
}

// AverageView is the JSON shape of a trailing-window average.
type AverageView struct {
	UserID                    int64               `json:"userId"`
	ObservationRangeDateStart string              `json:"observationRangeDateStart"`
	ObservationRangeDateEnd   string              `json:"observationRangeDateEnd"`
	AvgSleepStart             domain.TimeOfDay    `json:"avgSleepStart"`
	AvgSleepEnd               domain.TimeOfDay    `json:"avgSleepEnd"`
	AvgSleepTime              domain.TimeOfDay    `json:"avgSleepTime"`
	SleepQualityCount         domain.QualityCount `json:"sleepQualityCount"`
}

// SleepHistoryResponse packages a page of history.
type SleepHistoryResponse struct {
	Items      []SleepLogView `json:"items"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

// ErrorResponse is the body written for every failed request.
type ErrorResponse struct {
	Type      string `json:"type"`
	Detail    string `json:"detail"`
	Status    int    `json:"status"`
	Timestamp string `json:"timestamp"`
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var (
		missing  *domain.MissingFieldError
		invalid  *domain.InvalidIntervalError
		format   *invalidFormatError
		conflict *domain.SleepLogAlreadyExistsError
	)
	switch {
	case errors.As(err, &missing):
		h.writeError(w, http.StatusBadRequest, "missing_field", missing.Error())
	case errors.As(err, &format):
		h.writeError(w, http.StatusBadRequest, "invalid_format", format.Error())
	case errors.As(err, &invalid):
		h.writeError(w, http.StatusBadRequest, "invalid_interval", invalid.Error())
	case errors.Is(err, domain.ErrInvalidQuality):
		h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.As(err, &conflict):
		h.writeError(w, http.StatusNotAcceptable, "sleep_log_exists", conflict.Error())
	default:
		h.logger.Error("request failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "server_error", "internal server error")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, ErrorResponse{
		Type:      code,
		Detail:    detail,
		Status:    status,
		Timestamp: h.now().Format(timestampLayout),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toSleepLogView(s domain.SleepInterval) SleepLogView {
	return SleepLogView{
		ID:           s.ID,
		UserID:       s.UserID,
		SleepDate:    s.End.Format(DateLayout),
		SleepStart:   domain.TimeOfDayOf(s.Start),
		SleepEnd:     domain.TimeOfDayOf(s.End),
		SleepTime:    s.SleepTime(),
		SleepQuality: s.Quality,
	}
}

func toAverageView(a domain.AggregateResult) AverageView {
	return AverageView{
		UserID:                    a.UserID,
		ObservationRangeDateStart: a.WindowStart.Format(DateLayout),
		ObservationRangeDateEnd:   a.WindowEnd.Format(DateLayout),
		AvgSleepStart:             a.AvgStart,
		AvgSleepEnd:               a.AvgEnd,
		AvgSleepTime:              a.AvgSleepTime,
		SleepQualityCount:         a.Qualities,
	}
}
