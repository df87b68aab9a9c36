package subscriber

import "time"

// Unlimited is the remaining count reported for premium subscribers.
const Unlimited = -1

// Quota enforces the daily on-demand search allowance. Days roll over at
// midnight UTC.
type Quota struct {
	MaxDaily int
	Now      func() time.Time
}

// Today returns the current quota day as YYYY-MM-DD.
func (q Quota) Today() string {
	now := time.Now
	if q.Now != nil {
		now = q.Now
	}
	return now().UTC().Format(time.DateOnly)
}

// Refresh resets the counter when the session's search date is not today.
// It reports whether the session changed.
func (q Quota) Refresh(s *Session) bool {
	today := q.Today()
	if s.SearchDate == today {
		return false
	}
	s.SearchDate = today
	s.SearchCount = 0
	return true
}

// CheckAndConsume decides whether s may search now. Premium sessions are
// always allowed and never counted. Otherwise the search is denied once the
// counter reached MaxDaily, and consumed (counter incremented) when allowed.
func (q Quota) CheckAndConsume(s *Session) (allowed bool, remaining int) {
	q.Refresh(s)
	if s.Premium {
		return true, Unlimited
	}
	if s.SearchCount >= q.MaxDaily {
		return false, 0
	}
	s.SearchCount++
	return true, q.MaxDaily - s.SearchCount
}

// Remaining reports the searches left today without consuming one.
func (q Quota) Remaining(s Session) int {
	if s.Premium {
		return Unlimited
	}
	if s.SearchDate != q.Today() {
		return q.MaxDaily
	}
	if r := q.MaxDaily - s.SearchCount; r > 0 {
		return r
	}
	return 0
}
