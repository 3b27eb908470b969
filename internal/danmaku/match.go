package danmaku

import (
	"errors"
	"fmt"
)

// ErrUpstreamFailure is matched by every *UpstreamError.
var ErrUpstreamFailure = errors.New("upstream reported failure")

// UpstreamError carries the error code and message reported by the match
// service. Codes are passed through uninterpreted.
type UpstreamError struct {
	Code    int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("match service failed: code %d: %s", e.Code, e.Message)
}

// Is reports whether target is ErrUpstreamFailure.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamFailure
}

// Err returns an *UpstreamError when the call failed, nil otherwise.
// A failed response may still carry a stale IsMatched value.
func (m MatchResponse) Err() error {
	if m.Success && m.ErrorCode == 0 {
		return nil
	}
	return &UpstreamError{Code: m.ErrorCode, Message: m.ErrorMessage}
}

// Episodes returns the usable matches. It checks Success before looking at
// IsMatched or Matches.
func (m MatchResponse) Episodes() ([]Episode, error) {
	if err := m.Err(); err != nil {
		return nil, err
	}
	if !m.IsMatched || len(m.Matches) == 0 {
		return nil, nil
	}
	out := make([]Episode, len(m.Matches))
	copy(out, m.Matches)
	return out, nil
}
