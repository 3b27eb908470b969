package ingest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"danmaku-ingest/internal/danmaku"
	"danmaku-ingest/internal/media"
	"danmaku-ingest/internal/platform/logger"
	"danmaku-ingest/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

// maxShiftSeconds keeps a shift within the range of time.Duration.
const maxShiftSeconds = float64(math.MaxInt64 / int64(time.Second))

// Handler exposes ingest HTTP endpoints using go-chi.
type Handler struct {
	svc     *Service
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler that uses the given Service, Logger, and optional Metrics.
// Metrics may be nil to disable metric recording (e.g. in tests).
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, log: log, metrics: m}
}

// Routes mounts the handler's endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/danmaku/decode", h.DecodeComments)
	r.Post("/match/resolve", h.ResolveMatch)
	r.Route("/media/cache", func(r chi.Router) {
		r.Post("/", h.CacheMedia)
		r.Post("/search", h.SearchCache)
		r.Get("/{media_id}", h.GetCachedMedia)
		r.Delete("/{media_id}", h.EvictMedia)
	})
}

type matchResponse struct {
	Matched bool              `json:"matched"`
	Matches []danmaku.Episode `json:"matches"`
}

type upstreamFailureResponse struct {
	ErrorCode    int    `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

type entryResponse struct {
	Media    media.View          `json:"media"`
	Metadata media.CacheMetadata `json:"metadata"`
	CachedAt time.Time           `json:"cachedAt"`
}

func toEntryResponse(e *media.Entry) entryResponse {
	return entryResponse{Media: media.ViewOf(e.Media), Metadata: e.Metadata, CachedAt: e.CachedAt}
}

// DecodeComments handles POST /danmaku/decode[?shift=<seconds>].
// Body: a comment list response, { "count": 1, "comments": [{ "cid": 1, "p": "...", "m": "..." }] }.
func (h *Handler) DecodeComments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var shift time.Duration
	if s := r.URL.Query().Get("shift"); s != "" {
		secs, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(secs) || math.Abs(secs) > maxShiftSeconds {
			h.log.Debug("invalid shift", slog.String("shift", s))
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		shift = time.Duration(secs * float64(time.Second))
	}

	var body danmaku.ListResponse
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.log.Debug("invalid comment list body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	res, err := h.svc.DecodeComments(r.Context(), body, shift)
	if err != nil {
		h.log.Warn("decode comments aborted",
			slog.String("request_id", logger.RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	if res.Rejected > 0 {
		h.log.Debug("skipped malformed comments",
			slog.String("request_id", logger.RequestIDFromContext(r.Context())),
			slog.Int("rejected", res.Rejected),
			slog.Int("decoded", res.Decoded))
	}
	if h.metrics != nil {
		h.metrics.AddComments(res.Decoded, res.Rejected)
	}
	h.writeJSON(w, http.StatusOK, res)
}

// ResolveMatch handles POST /match/resolve.
// A failed upstream call is answered with 502 and its code and message, and
// the matches it carried are discarded.
func (h *Handler) ResolveMatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var body danmaku.MatchResponse
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.log.Debug("invalid match body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	episodes, err := h.svc.ResolveMatch(body)
	if err != nil {
		var upstream *danmaku.UpstreamError
		if !errors.As(err, &upstream) {
			h.log.Error("resolve match failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		h.log.Info("match service reported failure",
			slog.String("request_id", logger.RequestIDFromContext(r.Context())),
			slog.Int("error_code", upstream.Code),
			slog.String("error_message", upstream.Message))
		if h.metrics != nil {
			h.metrics.IncMatchFailures()
		}
		h.writeJSON(w, http.StatusBadGateway, upstreamFailureResponse{
			ErrorCode:    upstream.Code,
			ErrorMessage: upstream.Message,
		})
		return
	}

	if episodes == nil {
		episodes = []danmaku.Episode{}
	}
	h.writeJSON(w, http.StatusOK, matchResponse{Matched: len(episodes) > 0, Matches: episodes})
}

// CacheMedia handles POST /media/cache.
// Body: { "origin": {...}, "cacheSourceId": "localfs", "download": {...}, "metadata": {...} }.
func (h *Handler) CacheMedia(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req CacheRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid cache body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	e, err := h.svc.CacheMedia(req)
	if err != nil {
		if errors.Is(err, media.ErrNilOrigin) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		h.log.Error("cache media failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	h.log.Info("media cached",
		slog.String("media_id", e.Media.ID()),
		slog.String("origin_id", e.Media.Origin().ID()),
		slog.String("cache_source_id", e.Media.SourceID()))
	h.writeJSON(w, http.StatusCreated, toEntryResponse(e))
}

// GetCachedMedia handles GET /media/cache/{media_id}.
func (h *Handler) GetCachedMedia(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "media_id")
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	e, err := h.svc.CachedMedia(id)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, toEntryResponse(e))
}

// EvictMedia handles DELETE /media/cache/{media_id}.
func (h *Handler) EvictMedia(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "media_id")
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.svc.EvictMedia(id); err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	h.log.Info("media evicted", slog.String("media_id", id))
	w.WriteHeader(http.StatusNoContent)
}

// SearchCache handles POST /media/cache/search with a fetch request body.
func (h *Handler) SearchCache(w http.ResponseWriter, r *http.Request) {
	var req media.FetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid fetch request body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	found := h.svc.FindCached(req)
	out := make([]entryResponse, 0, len(found))
	for _, e := range found {
		out = append(out, toEntryResponse(e))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("encode response failed", slog.String("error", err.Error()))
	}
}
