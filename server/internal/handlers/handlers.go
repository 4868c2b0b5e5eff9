package handlers

import (
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/alexedwards/scs/v2"
	"github.com/zhaobenny/timeslice/internal/auth"
	"github.com/zhaobenny/timeslice/internal/bucket"
	"github.com/zhaobenny/timeslice/internal/export"
	"github.com/zhaobenny/timeslice/internal/viewmodel"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	store      *Store
	rebuilder  *RebuildDebouncer
	sessionMgr *scs.SessionManager
	auth       *auth.Middleware
	templates  *template.Template
	logger     *slog.Logger
}

// New creates a new Handler
func New(store *Store, rebuilder *RebuildDebouncer, sessionMgr *scs.SessionManager, authMiddleware *auth.Middleware, templates *template.Template, logger *slog.Logger) *Handler {
	return &Handler{
		store:      store,
		rebuilder:  rebuilder,
		sessionMgr: sessionMgr,
		auth:       authMiddleware,
		templates:  templates,
		logger:     logger,
	}
}

// Prefs are the chart selections remembered per session
type Prefs struct {
	Slice string `json:"slice"`
	By    string `json:"by"`
	Count string `json:"count"`
	Year  string `json:"year"`
	Month string `json:"month"`
	Day   string `json:"day"`
}

var defaultPrefs = Prefs{
	Slice: "hourCount",
	By:    "type",
	Count: string(viewmodel.CountHours),
}

const prefsKey = "prefs"

func (h *Handler) prefs(r *http.Request) Prefs {
	p := defaultPrefs
	if data := h.sessionMgr.GetBytes(r.Context(), prefsKey); data != nil {
		json.Unmarshal(data, &p)
	}
	return p
}

// TopRow is one time type of the byTime.top table
type TopRow struct {
	TimeType string
	Raw      bool
	Values   []export.TimeValue
}

// TotalRow is one tag's total time
type TotalRow struct {
	Key     string
	Seconds int64
}

// Index handles the main page
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data := map[string]any{
		"AuthEnabled": h.auth.Enabled(),
		"Prefs":       h.prefs(r),
		"SliceTypes":  sliceNames(),
		"Dimensions":  []string{"type", "project", "group"},
		"Pending":     h.rebuilder.Pending(),
	}

	doc, err := h.store.Document()
	if doc == nil {
		data["Missing"] = []string{export.SectionByTime, export.SectionByType, export.SectionByGroup, export.SectionByProject}
		if err != nil {
			data["Error"] = err.Error()
		}
		h.render(w, "index.html", data)
		return
	}

	data["Missing"] = doc.Missing()
	data["LoadedAt"] = h.store.LoadedAt()
	data["Top"] = topRows(doc)
	data["Totals"] = totalRows(doc.ByType.Totals)
	h.render(w, "index.html", data)
}

func sliceNames() []string {
	names := make([]string, len(bucket.SliceTypes))
	for i, st := range bucket.SliceTypes {
		names[i] = st.Name
	}
	return names
}

func topRows(doc *export.Document) []TopRow {
	var rows []TopRow
	for _, tt := range bucket.TimeTypes {
		values := doc.ByTime.Top[tt.Name]
		if len(values) == 0 {
			continue
		}
		rows = append(rows, TopRow{TimeType: tt.Name, Raw: tt.Source == bucket.Raw, Values: values})
	}
	return rows
}

func totalRows(totals map[string]int64) []TotalRow {
	rows := make([]TotalRow, 0, len(totals))
	for k, v := range totals {
		rows = append(rows, TotalRow{Key: k, Seconds: v})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Seconds != rows[j].Seconds {
			return rows[i].Seconds > rows[j].Seconds
		}
		return rows[i].Key < rows[j].Key
	})
	return rows
}

// LoginPage renders the login form
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if h.auth.Authenticated(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.render(w, "login.html", nil)
}

// Login handles the login form
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.LoginPage(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.renderError(w, "login.html", "Invalid form data", http.StatusBadRequest)
		return
	}

	password := r.FormValue("password")
	if password == "" {
		h.renderError(w, "login.html", "Password is required", http.StatusBadRequest)
		return
	}

	ok, err := h.auth.Login(r, password)
	if err != nil {
		h.logger.Error("login failed", "error", err)
		h.renderError(w, "login.html", "An error occurred", http.StatusInternalServerError)
		return
	}
	if !ok {
		h.renderError(w, "login.html", "Invalid password", http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout ends the session
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r); err != nil {
		h.logger.Error("logout failed", "error", err)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// DataJSON serves the current document
func (h *Handler) DataJSON(w http.ResponseWriter, r *http.Request) {
	doc, err := h.store.Document()
	if doc == nil {
		msg := "data not built yet"
		if err != nil {
			msg = err.Error()
		}
		h.jsonError(w, msg, http.StatusServiceUnavailable)
		return
	}
	h.writeJSON(w, doc)
}

// Histogram returns the chart view model for one slice type. Query values
// override the session prefs.
func (h *Handler) Histogram(w http.ResponseWriter, r *http.Request) {
	doc, _ := h.store.Document()
	if doc == nil {
		h.jsonError(w, "data not built yet", http.StatusServiceUnavailable)
		return
	}

	p := mergePrefs(h.prefs(r), r)

	var sources []viewmodel.Source
	switch p.By {
	case "type":
		sources = viewmodel.TypeSources(doc)
	case "project":
		sources = viewmodel.ProjectSources(doc)
	case "group":
		sources = viewmodel.GroupSources(doc)
	default:
		h.jsonError(w, "by must be type, project or group", http.StatusBadRequest)
		return
	}

	chart, err := viewmodel.Build(p.Slice, sources, viewmodel.Options{
		Year:      p.Year,
		Month:     p.Month,
		Weekday:   p.Day,
		CountType: viewmodel.CountType(p.Count),
	})
	if errors.Is(err, viewmodel.ErrMissingOption) || errors.Is(err, viewmodel.ErrUnknownSlice) {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		h.logger.Error("building chart", "slice", p.Slice, "error", err)
		h.jsonError(w, "Failed to build chart", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, chart)
}

func mergePrefs(p Prefs, r *http.Request) Prefs {
	q := r.URL.Query()
	for key, dst := range map[string]*string{
		"slice": &p.Slice,
		"by":    &p.By,
		"count": &p.Count,
		"year":  &p.Year,
		"month": &p.Month,
		"day":   &p.Day,
	} {
		if q.Has(key) {
			*dst = strings.TrimSpace(q.Get(key))
		}
	}
	return p
}

// PrefsHandler returns the session prefs on GET and updates them on POST
func (h *Handler) PrefsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.writeJSON(w, h.prefs(r))
	case http.MethodPost:
		p := h.prefs(r)
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			h.jsonError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if _, err := bucket.LookupSlice(p.Slice); err != nil {
			h.jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if p.Count != string(viewmodel.CountHours) && p.Count != string(viewmodel.CountDays) {
			h.jsonError(w, "count must be hourCount or count", http.StatusBadRequest)
			return
		}
		data, err := json.Marshal(p)
		if err != nil {
			h.jsonError(w, "Failed to save prefs", http.StatusInternalServerError)
			return
		}
		h.sessionMgr.Put(r.Context(), prefsKey, data)
		h.writeJSON(w, p)
	default:
		w.Header().Set("Allow", "GET, POST")
		h.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Rebuild schedules a debounced pipeline run
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		h.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.rebuilder.Schedule()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "scheduled"})
}

// Health handles the health check endpoint
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	doc, err := h.store.Document()
	if doc == nil {
		msg := "data not built yet"
		if err != nil {
			msg = err.Error()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "error": msg})
		return
	}

	h.writeJSON(w, map[string]any{
		"status":   "healthy",
		"missing":  doc.Missing(),
		"loadedAt": h.store.LoadedAt(),
	})
}

func (h *Handler) render(w http.ResponseWriter, name string, data any) {
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		h.logger.Error("render template", "template", name, "error", err)
	}
}

func (h *Handler) renderError(w http.ResponseWriter, name, message string, status int) {
	w.WriteHeader(status)
	h.render(w, name, map[string]any{"Error": message})
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", "error", err)
	}
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
