package web

import (
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"

	"memeatlas/internal/gallery"
	"memeatlas/internal/geolocation"
	"memeatlas/internal/location"
	"memeatlas/internal/logger"
	"memeatlas/internal/meme"
	"memeatlas/models"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	sessionName = "memeatlas-session"
	shownKey    = "shown_memes"
)

type WebHandler struct {
	memes        *meme.Service
	gallery      *gallery.Service
	registry     *location.Registry
	resolver     meme.GeoResolver
	templates    *template.Template
	sessionStore *sessions.CookieStore
}

type PageData struct {
	Locations []string
	Other     string
}

type memeRequest struct {
	Location      string   `json:"location"`
	Thought       string   `json:"thought"`
	ExcludedMemes []string `json:"excluded_memes"`
}

type memeResponse struct {
	Status   string  `json:"status"`
	MemeHTML *string `json:"meme_html"`
	MemeID   *string `json:"meme_id"`
	Warning  bool    `json:"warning,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewWebHandler(
	memes *meme.Service,
	gallery *gallery.Service,
	registry *location.Registry,
	resolver meme.GeoResolver,
	sessionSecret string,
) (*WebHandler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	store := sessions.NewCookieStore([]byte(sessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400, // 1 day
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	return &WebHandler{
		memes:        memes,
		gallery:      gallery,
		registry:     registry,
		resolver:     resolver,
		templates:    tmpl,
		sessionStore: store,
	}, nil
}

// Index renders the meme form with the location labels nearest to the visitor.
func (h *WebHandler) Index(w http.ResponseWriter, r *http.Request) {
	geo := h.resolver.Resolve(r.Context(), geolocation.ClientIP(r))

	labels, err := h.registry.Labels(r.Context(), geo)
	if err != nil {
		logger.L().Warn("index_labels_failed", "err", err)
		labels = []string{models.OtherLocationOption}
	}

	data := PageData{Locations: labels, Other: models.OtherLocationOption}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		logger.L().Error("index_render_failed", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *WebHandler) GenerateMeme(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMemeRequest(w, r)
	if !ok {
		return
	}

	out := h.memes.Create(r.Context(), meme.Submission{
		Location: req.Location,
		Thought:  req.Thought,
		Excluded: req.ExcludedMemes,
		ClientIP: geolocation.ClientIP(r),
	})
	if out.Success() {
		h.setShown(w, r, []string{out.Meme.TemplateID})
	}

	writeJSON(w, http.StatusOK, toResponse(out))
}

// RegenerateMeme is GenerateMeme excluding every template this visitor has
// already been shown.
func (h *WebHandler) RegenerateMeme(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMemeRequest(w, r)
	if !ok {
		return
	}

	excluded := mergeIDs(h.shown(r), req.ExcludedMemes)
	out := h.memes.Regenerate(r.Context(), meme.Submission{
		Location: req.Location,
		Thought:  req.Thought,
		Excluded: excluded,
		ClientIP: geolocation.ClientIP(r),
	})
	if out.Success() {
		h.setShown(w, r, mergeIDs(excluded, []string{out.Meme.TemplateID}))
	}

	writeJSON(w, http.StatusOK, toResponse(out))
}

func (h *WebHandler) PreviousMemes(w http.ResponseWriter, r *http.Request) {
	geo := h.resolver.Resolve(r.Context(), geolocation.ClientIP(r))

	result, err := h.gallery.Query(r.Context(), geo.City, geo.Region, geo.Country)
	if err != nil {
		logger.L().Error("gallery_query_failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load memes"})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *WebHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeMemeRequest(w http.ResponseWriter, r *http.Request) (memeRequest, bool) {
	var req memeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return req, false
	}
	return req, true
}

func toResponse(out meme.Outcome) memeResponse {
	resp := memeResponse{Status: out.Status, Warning: out.Warning}
	if out.Success() {
		html, id := out.MemeHTML, out.Meme.TemplateID
		resp.MemeHTML = &html
		resp.MemeID = &id
	}
	return resp
}

func (h *WebHandler) shown(r *http.Request) []string {
	session, _ := h.sessionStore.Get(r, sessionName)
	raw, _ := session.Values[shownKey].(string)
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

func (h *WebHandler) setShown(w http.ResponseWriter, r *http.Request, ids []string) {
	// A cookie that cannot be decoded yields a fresh session, which is fine here.
	session, _ := h.sessionStore.Get(r, sessionName)
	session.Values[shownKey] = strings.Join(ids, ",")
	if err := session.Save(r, w); err != nil {
		logger.L().Warn("session_save_failed", "err", err)
	}
}

// mergeIDs returns the union of a and b in first-seen order, skipping blanks.
func mergeIDs(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, id := range list {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L().Warn("json_encode_failed", "err", err)
	}
}
