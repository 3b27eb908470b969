package danmaku

import "time"

// Placement is the on-screen lane a comment is rendered in.
type Placement string

const (
	PlacementScrolling Placement = "SCROLLING"
	PlacementBottom    Placement = "BOTTOM"
	PlacementTop       Placement = "TOP"
)

// ServiceID identifies the service a comment originated from.
type ServiceID string

// ServiceDandanplay tags comments decoded from the dandanplay comment API.
const ServiceDandanplay ServiceID = "dandanplay"

// Record is a single comment as delivered on the wire.
// P has the form "<seconds>,<mode>,<color>,<userId>[,...]".
type Record struct {
	CID int64  `json:"cid"`
	P   string `json:"p"`
	M   string `json:"m"`
}

// Content is the renderable part of a decoded comment.
type Content struct {
	PlayTimeMillis int64     `json:"playTimeMillis"`
	Color          int32     `json:"color"`
	Text           string    `json:"text"`
	Placement      Placement `json:"placement"`
}

// RGB splits Color using the R*256*256 + G*256 + B encoding.
func (c Content) RGB() (r, g, b uint8) {
	v := uint32(c.Color)
	return uint8(v >> 16), uint8(v >> 8), uint8(v)
}

// Event is a validated comment. It is only produced by a successful decode.
type Event struct {
	ID        string    `json:"id"`
	ServiceID ServiceID `json:"serviceId"`
	SenderID  string    `json:"senderId"`
	Content   Content   `json:"content"`
}

// ListResponse is the comment list envelope. Count is the advertised size and
// is not checked against len(Comments).
type ListResponse struct {
	Count    int      `json:"count"`
	Comments []Record `json:"comments"`
}

// Episode is one candidate returned by the match service.
type Episode struct {
	AnimeID         int64   `json:"animeId"`
	AnimeTitle      string  `json:"animeTitle"`
	EpisodeID       int64   `json:"episodeId"`
	EpisodeTitle    string  `json:"episodeTitle"`
	Shift           float64 `json:"shift"` // seconds; negative means comments appear earlier
	Type            string  `json:"type"`
	TypeDescription string  `json:"typeDescription"`
}

// ShiftDuration returns Shift as a duration.
func (e Episode) ShiftDuration() time.Duration {
	return time.Duration(e.Shift * float64(time.Second))
}

// MatchResponse is the match service envelope. Matches is nil when the service
// omits the field or sends null; callers must check Success before using it.
type MatchResponse struct {
	IsMatched    bool      `json:"isMatched"`
	Matches      []Episode `json:"matches"`
	ErrorCode    int       `json:"errorCode"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"errorMessage"`
}
