package ingest

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"danmaku-ingest/internal/media"
	"danmaku-ingest/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	svc := NewService(media.NewRegistry(), ServiceConfig{DecodeWorkers: 2})
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewHandler(svc, log, nil)
}

func newTestRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func do(t *testing.T, r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

const commentList = `{"count": 3, "comments": [
	{"cid": 1, "p": "12.34,1,255,1001", "m": "hi"},
	{"cid": 2, "p": "12.34,2,255,1001", "m": "bad mode"},
	{"cid": 3, "p": "20.00,4,16777215,abc_1", "m": "bottom"}
]}`

func TestHandler_DecodeComments(t *testing.T) {
	r := newTestRouter(newTestHandler(t))

	rec := do(t, r, http.MethodPost, "/danmaku/decode", commentList)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var res DecodeResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if res.Advertised != 3 || res.Decoded != 2 || res.Rejected != 1 {
		t.Errorf("unexpected counts: %+v", res)
	}
	if res.Events[0].Content.PlayTimeMillis != 12340 || res.Events[1].SenderID != "abc_1" {
		t.Errorf("unexpected events: %+v", res.Events)
	}
}

func TestHandler_DecodeComments_shift(t *testing.T) {
	r := newTestRouter(newTestHandler(t))

	rec := do(t, r, http.MethodPost, "/danmaku/decode?shift=-0.5", commentList)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var res DecodeResult
	_ = json.Unmarshal(rec.Body.Bytes(), &res)
	if res.Events[0].Content.PlayTimeMillis != 11840 {
		t.Errorf("expected 11840ms after shift, got %d", res.Events[0].Content.PlayTimeMillis)
	}
}

func TestHandler_DecodeComments_bad_request(t *testing.T) {
	r := newTestRouter(newTestHandler(t))

	if rec := do(t, r, http.MethodPost, "/danmaku/decode", "not json"); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad body, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodPost, "/danmaku/decode?shift=soon", commentList); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad shift, got %d", rec.Code)
	}
	for _, shift := range []string{"1e300", "-1e300", "Inf", "9300000000"} {
		if rec := do(t, r, http.MethodPost, "/danmaku/decode?shift="+shift, commentList); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for out of range shift %s, got %d", shift, rec.Code)
		}
	}
}

func TestHandler_DecodeComments_empty_events_not_null(t *testing.T) {
	r := newTestRouter(newTestHandler(t))

	rec := do(t, r, http.MethodPost, "/danmaku/decode", `{"count": 1, "comments": [{"cid": 1, "p": "x", "m": "y"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"events":[]`)) {
		t.Errorf("expected empty events array: %s", rec.Body.String())
	}
}

func TestHandler_DecodeComments_records_metrics(t *testing.T) {
	h := newTestHandler(t)
	m := metrics.New()
	h.metrics = m
	r := newTestRouter(h)

	if rec := do(t, r, http.MethodPost, "/danmaku/decode", commentList); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	expected := `
# HELP danmaku_comments_rejected_total Total number of malformed comment records skipped
# TYPE danmaku_comments_rejected_total counter
danmaku_comments_rejected_total 1
`
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "danmaku_comments_rejected_total"); err != nil {
		t.Error(err)
	}
}

func TestHandler_ResolveMatch(t *testing.T) {
	r := newTestRouter(newTestHandler(t))

	body := `{"isMatched": true, "matches": [{"animeId": 1, "animeTitle": "Show", "episodeId": 10001,
		"episodeTitle": "Ep 1", "shift": 1.5, "type": "tvseries", "typeDescription": "TV"}],
		"errorCode": 0, "success": true, "errorMessage": ""}`
	rec := do(t, r, http.MethodPost, "/match/resolve", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var res matchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if !res.Matched || len(res.Matches) != 1 || res.Matches[0].Shift != 1.5 {
		t.Errorf("unexpected match response: %+v", res)
	}
}

func TestHandler_ResolveMatch_not_matched(t *testing.T) {
	r := newTestRouter(newTestHandler(t))

	rec := do(t, r, http.MethodPost, "/match/resolve", `{"isMatched": false, "errorCode": 0, "success": true, "errorMessage": ""}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"matches":[]`)) {
		t.Errorf("expected empty matches: %s", rec.Body.String())
	}
}

func TestHandler_ResolveMatch_upstream_failure(t *testing.T) {
	r := newTestRouter(newTestHandler(t))

	body := `{"isMatched": true, "matches": [{"episodeId": 1}], "errorCode": 1001, "success": false, "errorMessage": "bad hash"}`
	rec := do(t, r, http.MethodPost, "/match/resolve", body)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}

	var res upstreamFailureResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.ErrorCode != 1001 || res.ErrorMessage != "bad hash" {
		t.Errorf("unexpected failure body: %+v", res)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("matches")) {
		t.Errorf("failed response must not expose matches: %s", rec.Body.String())
	}
}

const cacheBody = `{
	"origin": {
		"mediaId": "dmhy.1", "mediaSourceId": "dmhy", "originalUrl": "https://example.com/1",
		"download": {"kind": "magnet", "uri": "magnet:?xt=urn:btih:abc"},
		"originalTitle": "[G] Show - 01", "size": 2048, "publishedTime": 7,
		"properties": {"subtitleLanguages": ["CHS"], "resolution": "1080P", "alliance": "G"}
	},
	"download": {"kind": "local-file", "uri": "/cache/1.mkv"},
	"metadata": {"episodeId": null, "subjectNames": ["Show"], "episodeSort": "01", "episodeName": "Start"}
}`

func TestHandler_CacheMedia_lifecycle(t *testing.T) {
	r := newTestRouter(newTestHandler(t))

	rec := do(t, r, http.MethodPost, "/media/cache", cacheBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created entryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	v := created.Media
	if v.ID != "localfs-dmhy.1" || v.SourceID != "localfs" || v.Location != media.LocationLocal {
		t.Errorf("unexpected overridden fields: %+v", v)
	}
	if v.OriginalTitle != "[G] Show - 01" || v.Size != 2048 || v.Properties.Resolution != "1080P" {
		t.Errorf("origin fields not forwarded: %+v", v)
	}
	if v.Download.URI != "/cache/1.mkv" || v.OriginID != "dmhy.1" {
		t.Errorf("unexpected download or origin: %+v", v)
	}

	if rec := do(t, r, http.MethodGet, "/media/cache/localfs-dmhy.1", ""); rec.Code != http.StatusOK {
		t.Errorf("expected 200 on get, got %d", rec.Code)
	}

	rec = do(t, r, http.MethodPost, "/media/cache/search", `{"subjectNames": ["show"], "episodeSort": "1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on search, got %d", rec.Code)
	}
	var found []entryResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &found)
	if len(found) != 1 || found[0].Media.ID != "localfs-dmhy.1" {
		t.Errorf("unexpected search result: %+v", found)
	}

	if rec := do(t, r, http.MethodDelete, "/media/cache/localfs-dmhy.1", ""); rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 on delete, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodGet, "/media/cache/localfs-dmhy.1", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodDelete, "/media/cache/localfs-dmhy.1", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestHandler_CacheMedia_missing_origin(t *testing.T) {
	r := newTestRouter(newTestHandler(t))

	if rec := do(t, r, http.MethodPost, "/media/cache", `{"cacheSourceId": "localfs"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodPost, "/media/cache", "{"); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad json, got %d", rec.Code)
	}
}

func TestHandler_SearchCache_empty(t *testing.T) {
	r := newTestRouter(newTestHandler(t))

	rec := do(t, r, http.MethodPost, "/media/cache/search", `{"episodeId": "x"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty list, got %s", rec.Body.String())
	}
}
