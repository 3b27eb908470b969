package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"danmaku-ingest/internal/danmaku"
	"danmaku-ingest/internal/media"
)

const (
	// DefaultDecodeWorkers is used when ServiceConfig.DecodeWorkers is not positive.
	DefaultDecodeWorkers = 4
	// DefaultCacheSourceID is used when ServiceConfig.CacheSourceID is empty.
	DefaultCacheSourceID = "localfs"
)

// ErrNotFound is returned when a cached media id is unknown.
var ErrNotFound = errors.New("cached media not found")

// ServiceConfig tunes a Service.
type ServiceConfig struct {
	DecodeWorkers int
	// CacheSourceID is used for cache requests that do not name a source.
	CacheSourceID string
}

// Service decodes upstream payloads and manages the cached media registry.
type Service struct {
	registry *media.Registry
	cfg      ServiceConfig
}

// NewService returns a Service backed by registry.
func NewService(registry *media.Registry, cfg ServiceConfig) *Service {
	if cfg.DecodeWorkers <= 0 {
		cfg.DecodeWorkers = DefaultDecodeWorkers
	}
	if cfg.CacheSourceID == "" {
		cfg.CacheSourceID = DefaultCacheSourceID
	}
	return &Service{registry: registry, cfg: cfg}
}

// DecodeResult is the outcome of decoding one comment list.
type DecodeResult struct {
	// Advertised is the count the upstream claimed; it may differ from the
	// number of records actually sent.
	Advertised int             `json:"advertised"`
	Decoded    int             `json:"decoded"`
	Rejected   int             `json:"rejected"`
	Events     []danmaku.Event `json:"events"`
}

// DecodeComments decodes every record of resp, skipping malformed ones, and
// moves the resulting events by shift.
func (s *Service) DecodeComments(ctx context.Context, resp danmaku.ListResponse, shift time.Duration) (DecodeResult, error) {
	events, err := danmaku.DecodeBatchParallel(ctx, resp.Comments, s.cfg.DecodeWorkers)
	if err != nil {
		return DecodeResult{}, fmt.Errorf("decode comments: %w", err)
	}
	if shift != 0 {
		events = danmaku.ApplyShift(events, shift)
	}
	return DecodeResult{
		Advertised: resp.Count,
		Decoded:    len(events),
		Rejected:   len(resp.Comments) - len(events),
		Events:     events,
	}, nil
}

// ResolveMatch returns the usable episodes of resp. Upstream failures are
// returned as *danmaku.UpstreamError before matches are looked at.
func (s *Service) ResolveMatch(resp danmaku.MatchResponse) ([]danmaku.Episode, error) {
	return resp.Episodes()
}

// CacheRequest asks the registry to record a local copy of Origin.
type CacheRequest struct {
	Origin *media.DefaultMedia `json:"origin"`
	// Nil means the configured source; an explicit "" is kept as is.
	CacheSourceID *string                `json:"cacheSourceId"`
	Download      media.ResourceLocation `json:"download"`
	Metadata      media.CacheMetadata    `json:"metadata"`
}

// CacheMedia records req in the registry.
func (s *Service) CacheMedia(req CacheRequest) (*media.Entry, error) {
	if req.Origin == nil {
		return nil, media.ErrNilOrigin
	}
	sourceID := s.cfg.CacheSourceID
	if req.CacheSourceID != nil {
		sourceID = *req.CacheSourceID
	}
	return s.registry.Put(req.Origin, sourceID, req.Download, req.Metadata)
}

// CachedMedia returns the registry entry for id.
func (s *Service) CachedMedia(id string) (*media.Entry, error) {
	e, ok := s.registry.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// EvictMedia removes id from the registry.
func (s *Service) EvictMedia(id string) error {
	if !s.registry.Remove(id) {
		return ErrNotFound
	}
	return nil
}

// FindCached returns the cached media that can serve req.
func (s *Service) FindCached(req media.FetchRequest) []*media.Entry {
	return s.registry.FindMatching(req)
}

// CachedCount returns the number of cached media. Used for metrics.
func (s *Service) CachedCount() int {
	return s.registry.Count()
}
