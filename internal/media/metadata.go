package media

import "strings"

// CacheMetadata is stored next to a cached media so the cache can later be
// matched against a FetchRequest.
type CacheMetadata struct {
	// Nil when the episode was unknown at cache time.
	EpisodeID    *string  `json:"episodeId"`
	SubjectNames []string `json:"subjectNames"`
	// Ordering label such as "01" or "SP1"; not necessarily numeric.
	EpisodeSort string            `json:"episodeSort"`
	EpisodeName string            `json:"episodeName"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// ExtraValue returns the extra field for key, or "" when absent.
func (m CacheMetadata) ExtraValue(key string) string {
	return m.Extra[key]
}

// FetchRequest describes the episode a client wants media for.
type FetchRequest struct {
	EpisodeID    string   `json:"episodeId"`
	SubjectNames []string `json:"subjectNames"`
	EpisodeSort  string   `json:"episodeSort"`
	EpisodeName  string   `json:"episodeName"`
}

// Matches reports whether a cache created with meta can serve r.
// Episode ids decide when both sides have one. Otherwise the episode sorts
// must agree and at least one subject name must be shared.
func (r FetchRequest) Matches(meta CacheMetadata) bool {
	if meta.EpisodeID != nil && *meta.EpisodeID != "" && r.EpisodeID != "" {
		return *meta.EpisodeID == r.EpisodeID
	}
	if normalizeSort(r.EpisodeSort) != normalizeSort(meta.EpisodeSort) {
		return false
	}
	names := make(map[string]struct{}, len(meta.SubjectNames))
	for _, n := range meta.SubjectNames {
		if k := normalizeName(n); k != "" {
			names[k] = struct{}{}
		}
	}
	for _, n := range r.SubjectNames {
		if _, ok := names[normalizeName(n)]; ok {
			return true
		}
	}
	return false
}

// normalizeSort treats "01" and "1" as the same sort. Labels that are not
// plain digits are only trimmed and upper-cased.
func normalizeSort(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" || strings.Trim(s, "0123456789") != "" {
		return s
	}
	if t := strings.TrimLeft(s, "0"); t != "" {
		return t
	}
	return "0"
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
