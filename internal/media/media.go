package media

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Location describes where a media can be played from.
type Location string

const (
	LocationOnline Location = "ONLINE"
	LocationLocal  Location = "LOCAL"
)

// FileSize is a size in bytes. FileSizeZero means the size is unknown.
type FileSize int64

const FileSizeZero FileSize = 0

// String renders the size with binary units, e.g. "1.50 GB".
func (s FileSize) String() string {
	const unit = 1024
	if s < unit {
		return fmt.Sprintf("%d B", int64(s))
	}
	div, exp := int64(unit), 0
	for n := int64(s) / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(s)/float64(div), "KMGTPE"[exp])
}

// ResourceKind identifies how a ResourceLocation is fetched.
type ResourceKind string

const (
	ResourceHTTPTorrent ResourceKind = "http-torrent"
	ResourceMagnet      ResourceKind = "magnet"
	ResourceWebVideo    ResourceKind = "web-video"
	ResourceLocalFile   ResourceKind = "local-file"
)

// ResourceLocation describes how to download a media.
type ResourceLocation struct {
	Kind ResourceKind `json:"kind"`
	URI  string       `json:"uri"`
}

// Properties holds the attributes of a media that are useful for filtering.
type Properties struct {
	// Empty means no subtitles.
	SubtitleLanguages []string `json:"subtitleLanguages"`
	// Free-form label, e.g. "1080P" or "4K".
	Resolution string `json:"resolution"`
	// Release group.
	ReleaseGroup string `json:"alliance"`
}

func (p Properties) clone() Properties {
	p.SubtitleLanguages = slices.Clone(p.SubtitleLanguages)
	return p
}

// Media describes one playable variant of an episode.
type Media interface {
	// ID is unique across sources, e.g. "dmhy.1".
	ID() string
	SourceID() string
	OriginalURL() string
	Download() ResourceLocation
	OriginalTitle() string
	// Size may be FileSizeZero when unknown.
	Size() FileSize
	PublishedTime() int64
	Properties() Properties
	Location() Location
}

// DefaultMediaParams are the fields of a DefaultMedia.
type DefaultMediaParams struct {
	ID            string           `json:"mediaId"`
	SourceID      string           `json:"mediaSourceId"`
	OriginalURL   string           `json:"originalUrl"`
	Download      ResourceLocation `json:"download"`
	OriginalTitle string           `json:"originalTitle"`
	Size          FileSize         `json:"size"`
	PublishedTime int64            `json:"publishedTime"`
	Properties    Properties       `json:"properties"`
	Location      Location         `json:"location,omitempty"`
}

// DefaultMedia is a media whose fields are all supplied directly. It is
// usually ONLINE, but a local source may produce LOCAL ones on first search.
type DefaultMedia struct {
	p DefaultMediaParams
}

// NewDefaultMedia returns a DefaultMedia. An empty Location means LocationOnline.
func NewDefaultMedia(p DefaultMediaParams) *DefaultMedia {
	if p.Location == "" {
		p.Location = LocationOnline
	}
	p.Properties = p.Properties.clone()
	return &DefaultMedia{p: p}
}

func (m *DefaultMedia) ID() string                 { return m.p.ID }
func (m *DefaultMedia) SourceID() string           { return m.p.SourceID }
func (m *DefaultMedia) OriginalURL() string        { return m.p.OriginalURL }
func (m *DefaultMedia) Download() ResourceLocation { return m.p.Download }
func (m *DefaultMedia) OriginalTitle() string      { return m.p.OriginalTitle }
func (m *DefaultMedia) Size() FileSize             { return m.p.Size }
func (m *DefaultMedia) PublishedTime() int64       { return m.p.PublishedTime }
func (m *DefaultMedia) Properties() Properties     { return m.p.Properties.clone() }
func (m *DefaultMedia) Location() Location         { return m.p.Location }

// MarshalJSON implements json.Marshaler.
func (m *DefaultMedia) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.p)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *DefaultMedia) UnmarshalJSON(data []byte) error {
	var p DefaultMediaParams
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*m = *NewDefaultMedia(p)
	return nil
}

// CachedMedia is a media that has been cached to a local location. It keeps
// the descriptive fields of its origin and overrides the id, the source id,
// the download location and the location.
type CachedMedia struct {
	origin   Media
	id       string
	sourceID string
	download ResourceLocation
}

// NewCachedMedia wraps origin. The id becomes cacheSourceID + "-" + origin.ID().
// cacheSourceID is not validated; an empty one yields an id starting with "-".
func NewCachedMedia(origin Media, cacheSourceID string, download ResourceLocation) *CachedMedia {
	return &CachedMedia{
		origin:   origin,
		id:       cacheSourceID + "-" + origin.ID(),
		sourceID: cacheSourceID,
		download: download,
	}
}

// Origin returns the wrapped media.
func (m *CachedMedia) Origin() Media { return m.origin }

func (m *CachedMedia) ID() string                 { return m.id }
func (m *CachedMedia) SourceID() string           { return m.sourceID }
func (m *CachedMedia) Download() ResourceLocation { return m.download }

// Location is always LocationLocal, whatever the origin declares.
func (m *CachedMedia) Location() Location { return LocationLocal }

func (m *CachedMedia) OriginalURL() string    { return m.origin.OriginalURL() }
func (m *CachedMedia) OriginalTitle() string  { return m.origin.OriginalTitle() }
func (m *CachedMedia) Size() FileSize         { return m.origin.Size() }
func (m *CachedMedia) PublishedTime() int64   { return m.origin.PublishedTime() }
func (m *CachedMedia) Properties() Properties { return m.origin.Properties().clone() }

var (
	_ Media = (*DefaultMedia)(nil)
	_ Media = (*CachedMedia)(nil)
)

// View is a flat JSON projection of any Media.
type View struct {
	ID            string           `json:"mediaId"`
	SourceID      string           `json:"mediaSourceId"`
	OriginalURL   string           `json:"originalUrl"`
	Download      ResourceLocation `json:"download"`
	OriginalTitle string           `json:"originalTitle"`
	Size          FileSize         `json:"size"`
	PublishedTime int64            `json:"publishedTime"`
	Properties    Properties       `json:"properties"`
	Location      Location         `json:"location"`
	OriginID      string           `json:"originMediaId,omitempty"`
}

// ViewOf reads every accessor of m into a View.
func ViewOf(m Media) View {
	v := View{
		ID:            m.ID(),
		SourceID:      m.SourceID(),
		OriginalURL:   m.OriginalURL(),
		Download:      m.Download(),
		OriginalTitle: m.OriginalTitle(),
		Size:          m.Size(),
		PublishedTime: m.PublishedTime(),
		Properties:    m.Properties(),
		Location:      m.Location(),
	}
	if c, ok := m.(*CachedMedia); ok {
		v.OriginID = c.Origin().ID()
	}
	return v
}
