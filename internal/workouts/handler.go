package workouts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=workouts_test

type workoutsService interface {
	SaveWorkout(ctx context.Context, owner string, entries Entries, date, timeOfDay string) (SaveStatus, error)
	GetWorkout(ctx context.Context, owner, date string) ([]DayWorkout, error)
	GetRecentWorkouts(ctx context.Context, owner, throughDate string) ([]Record, error)
}

// SaveWorkoutRequest accepts both the current field names and the ones
// older app builds send (email, workouts).
type SaveWorkoutRequest struct {
	Owner    string          `json:"owner"`
	Email    string          `json:"email"`
	Entries  json.RawMessage `json:"entries"`
	Workouts json.RawMessage `json:"workouts"`
	Date     string          `json:"date"`
	Time     string          `json:"time"`
}

type DayWorkoutResponse struct {
	Entries  Entries `json:"entries"`
	Workouts Entries `json:"workouts"`
	Time     string  `json:"time"`
}

type RecordResponse struct {
	Owner    string  `json:"owner"`
	Email    string  `json:"email"`
	Date     string  `json:"date"`
	Entries  Entries `json:"entries"`
	Workouts Entries `json:"workouts"`
	Time     string  `json:"time"`
}

type Handler struct {
	service        workoutsService
	legacyNotFound bool
}

func NewHandler(service workoutsService, legacyNotFound bool) *Handler {
	return &Handler{
		service:        service,
		legacyNotFound: legacyNotFound,
	}
}

func (h *Handler) SetupRoutes(r *mux.Router) {
	r.HandleFunc("/save-workout", h.HandleSave).Methods("POST", "OPTIONS").Name("save-workout")
	r.HandleFunc("/get-workout", h.HandleGet).Methods("GET", "OPTIONS").Name("get-workout")
	r.HandleFunc("/recent-workout", h.HandleRecent).Methods("GET", "OPTIONS").Name("recent-workout")
}

func (h *Handler) HandleSave(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.save")
	defer span.End()

	if !strings.HasPrefix(r.Header.Get("Content-Type"), pkg.ContentType.JSON) {
		pkg.WriteMessage(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var req SaveWorkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("save workout, unmarshal json params: %s", err)
		pkg.WriteMessage(w, "invalid request data", http.StatusBadRequest)
		return
	}

	rawEntries := req.Entries
	if len(rawEntries) == 0 {
		rawEntries = req.Workouts
	}
	entries, err := decodeEntries(rawEntries)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		h.writeError(w, err)
		return
	}

	owner := firstNonEmpty(req.Owner, req.Email)
	status, err := h.service.SaveWorkout(ctx, owner, entries, req.Date, req.Time)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		h.writeError(w, err)
		return
	}

	span.SetAttributes(attribute.String("status", status.String()))
	statusCode := http.StatusOK
	if status == Created {
		statusCode = http.StatusCreated
	}
	pkg.WriteMessage(w, status.Message(), statusCode)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.get")
	defer span.End()

	owner, date := ownerAndDate(r)
	dayWorkouts, err := h.service.GetWorkout(ctx, owner, date)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		h.writeError(w, err)
		return
	}

	if len(dayWorkouts) == 0 && h.legacyNotFound {
		pkg.WriteMessage(w, "No workouts found for this date", http.StatusNotFound)
		return
	}

	resp := make([]DayWorkoutResponse, 0, len(dayWorkouts))
	for _, dw := range dayWorkouts {
		resp = append(resp, DayWorkoutResponse{
			Entries:  dw.Entries,
			Workouts: dw.Entries,
			Time:     dw.Time,
		})
	}
	pkg.WriteJSON(w, resp, http.StatusOK)
}

func (h *Handler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.recent")
	defer span.End()

	owner, date := ownerAndDate(r)
	records, err := h.service.GetRecentWorkouts(ctx, owner, date)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		h.writeError(w, err)
		return
	}

	if len(records) == 0 && h.legacyNotFound {
		pkg.WriteMessage(w, "No workouts found for the last 7 days", http.StatusNotFound)
		return
	}

	resp := make([]RecordResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, RecordResponse{
			Owner:    rec.Owner,
			Email:    rec.Owner,
			Date:     rec.Date,
			Entries:  rec.Entries,
			Workouts: rec.Entries,
			Time:     rec.LastUpdatedTime,
		})
	}
	pkg.WriteJSON(w, resp, http.StatusOK)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr):
		pkg.WriteMessage(w, validationErr.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrStoreUnavailable):
		log.Errorf("workouts store unavailable: %s", err)
		pkg.WriteMessage(w, "store unavailable, try again later", http.StatusServiceUnavailable)
	default:
		log.Errorf("workouts: %s", err)
		pkg.WriteMessage(w, "server error", http.StatusInternalServerError)
	}
}

// decodeEntries only accepts a JSON object. A list is the payload shape of
// old client builds and is rejected on its own.
func decodeEntries(raw json.RawMessage) (Entries, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	switch raw[0] {
	case '[':
		return nil, NewValidationError("entries", "must be an object, not a list")
	case '{':
		var entries Entries
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, NewValidationError("entries", "must map workout names to status strings")
		}
		return entries, nil
	default:
		return nil, NewValidationError("entries", "must be an object")
	}
}

func ownerAndDate(r *http.Request) (string, string) {
	q := r.URL.Query()
	return firstNonEmpty(q.Get("owner"), q.Get("email")), q.Get("date")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
