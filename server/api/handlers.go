package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/GoCodeAlone/pacer/calendar"
	"github.com/GoCodeAlone/pacer/comms"
	"github.com/GoCodeAlone/pacer/estimate"
	"github.com/GoCodeAlone/pacer/internal/version"
	"github.com/GoCodeAlone/pacer/learning"
	"github.com/GoCodeAlone/pacer/planner"
	"github.com/GoCodeAlone/pacer/task"
)

const maxImportBytes = 1 << 20

// Handlers bundles all REST API handler dependencies.
type Handlers struct {
	Planner Service
	Bus     comms.Bus
	Logger  *slog.Logger
	StartAt time.Time
}

// RegisterRoutes registers all API routes on the given mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tasks", h.listTasks)
	mux.HandleFunc("POST /api/tasks", h.createTask)
	mux.HandleFunc("GET /api/tasks/{id}", h.getTask)
	mux.HandleFunc("PATCH /api/tasks/{id}", h.updateTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", h.deleteTask)
	mux.HandleFunc("POST /api/tasks/{id}/complete", h.completeTask)

	mux.HandleFunc("POST /api/estimates", h.estimate)
	mux.HandleFunc("GET /api/recommendations/daily", h.dailyRecommendation)

	mux.HandleFunc("GET /api/schedule", h.listCommitments)
	mux.HandleFunc("POST /api/schedule", h.addCommitment)
	mux.HandleFunc("POST /api/schedule/teaching", h.importTeaching)
	mux.HandleFunc("DELETE /api/schedule/{id}", h.deleteCommitment)

	mux.HandleFunc("GET /api/analytics/learning", h.insights)
	mux.HandleFunc("GET /api/analytics/completions", h.completions)
	mux.HandleFunc("GET /api/pace", h.pace)

	mux.HandleFunc("GET /api/events", h.listEvents)

	mux.HandleFunc("GET /api/status", h.status)
	mux.HandleFunc("GET /api/version", h.version)
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps planner errors to status codes.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, task.ErrNotFound), errors.Is(err, calendar.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, task.ErrInvalid),
		errors.Is(err, task.ErrInvalidTransition),
		errors.Is(err, learning.ErrInvalidCompletion),
		errors.Is(err, calendar.ErrInvalidInterval):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.Logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// --- Task handlers ---

func (h *Handlers) listTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := task.Filter{Tag: strings.ToLower(q.Get("tag"))}

	switch s := q.Get("status"); s {
	case "":
	case "open":
		filter = task.OpenFilter()
		filter.Tag = strings.ToLower(q.Get("tag"))
	default:
		for _, part := range strings.Split(s, ",") {
			st := task.Status(strings.TrimSpace(part))
			if !st.Valid() {
				writeError(w, http.StatusBadRequest, "unknown status "+strconv.Quote(part))
				return
			}
			filter.Statuses = append(filter.Statuses, st)
		}
	}
	if l := q.Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			filter.Limit = n
		}
	}
	if o := q.Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil {
			filter.Offset = n
		}
	}

	tasks, err := h.Planner.ListTasks(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

type createTaskRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Deadline    string   `json:"deadline"` // RFC 3339 or YYYY-MM-DD
	Priority    string   `json:"priority"`
	Tags        []string `json:"tags"`
}

func (h *Handlers) createTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if !decode(w, r, &req) {
		return
	}
	deadline, err := h.parseDeadline(req.Deadline)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := h.Planner.CreateTask(r.Context(), planner.NewTask{
		Title:       req.Title,
		Description: req.Description,
		Deadline:    deadline,
		Priority:    task.Priority(req.Priority),
		Tags:        req.Tags,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// parseDeadline accepts an RFC 3339 instant or a date, which means the end
// of that day in the planning location. Empty stays zero.
func (h *Handlers) parseDeadline(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	day, err := h.Planner.ParseDay(s)
	if err != nil {
		return time.Time{}, errors.New("deadline must be RFC 3339 or YYYY-MM-DD")
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, 23, 59, 0, 0, day.Location()), nil
}

func (h *Handlers) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.Planner.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) updateTask(w http.ResponseWriter, r *http.Request) {
	var u planner.TaskUpdate
	if !decode(w, r, &u) {
		return
	}
	t, err := h.Planner.UpdateTask(r.Context(), r.PathValue("id"), u)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.Planner.DeleteTask(r.Context(), r.PathValue("id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type completeRequest struct {
	ActualHours float64 `json:"actual_hours"`
}

func (h *Handlers) completeTask(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if !decode(w, r, &req) {
		return
	}
	rec, err := h.Planner.RecordCompletion(r.Context(), r.PathValue("id"), req.ActualHours)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// --- Estimation and scheduling ---

func (h *Handlers) estimate(w http.ResponseWriter, r *http.Request) {
	var req estimate.Request
	if !decode(w, r, &req) {
		return
	}
	res, err := h.Planner.EstimateTask(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) dailyRecommendation(w http.ResponseWriter, r *http.Request) {
	day, err := h.Planner.ParseDay(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	rec, err := h.Planner.DailyRecommendation(r.Context(), day)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// --- Fixed commitments ---

func (h *Handlers) listCommitments(w http.ResponseWriter, r *http.Request) {
	list, err := h.Planner.Commitments(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []calendar.Interval{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handlers) addCommitment(w http.ResponseWriter, r *http.Request) {
	var iv calendar.Interval
	if !decode(w, r, &iv) {
		return
	}
	saved, err := h.Planner.AddCommitment(r.Context(), iv)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (h *Handlers) importTeaching(w http.ResponseWriter, r *http.Request) {
	slots, err := h.Planner.ImportTeaching(r.Context(), http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, slots)
}

func (h *Handlers) deleteCommitment(w http.ResponseWriter, r *http.Request) {
	if err := h.Planner.DeleteCommitment(r.Context(), r.PathValue("id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Learning ---

func (h *Handlers) insights(w http.ResponseWriter, r *http.Request) {
	in, err := h.Planner.Insights(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}

// completions lists records completed between from (inclusive) and to
// (exclusive), both YYYY-MM-DD. The default is the last 30 days.
func (h *Handlers) completions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	today, _ := h.Planner.ParseDay("")
	to := time.Date(today.Year(), today.Month(), today.Day()+1, 0, 0, 0, 0, today.Location())
	from := to.AddDate(0, 0, -30)

	if s := q.Get("from"); s != "" {
		d, err := h.Planner.ParseDay(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
			return
		}
		from = d
	}
	if s := q.Get("to"); s != "" {
		d, err := h.Planner.ParseDay(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
			return
		}
		to = d
	}

	recs, err := h.Planner.Completions(r.Context(), from, to)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *Handlers) pace(w http.ResponseWriter, r *http.Request) {
	p, err := h.Planner.PaceProfile(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// --- Events ---

func (h *Handlers) listEvents(w http.ResponseWriter, r *http.Request) {
	topic := comms.TopicAll
	if t := r.URL.Query().Get("topic"); t != "" {
		topic = comms.Topic(t)
	}
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			limit = n
		}
	}

	events := []*comms.Event{}
	if h.Bus != nil {
		hist, err := h.Bus.History(topic, limit)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		if hist != nil {
			events = hist
		}
	}
	writeJSON(w, http.StatusOK, events)
}

// --- Status / version ---

func (h *Handlers) status(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"version": version.Version,
	}
	if !h.StartAt.IsZero() {
		resp["uptime_seconds"] = int64(time.Since(h.StartAt).Seconds())
	}
	writeJSON(w, http.StatusOK, resp)
}

// StatusHandler returns the status handler function for external registration.
func (h *Handlers) StatusHandler() http.HandlerFunc {
	return h.status
}

func (h *Handlers) version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, version.Get())
}
