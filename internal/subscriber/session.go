package subscriber

import (
	"fmt"
	"strconv"
	"strings"
)

// Session is one subscriber's persisted state.
type Session struct {
	ChatID        int64
	Username      string
	Filters       FilterSet
	Notifications bool
	Premium       bool
	SearchCount   int
	SearchDate    string
}

// NewSession returns a session with notifications enabled and no filters.
func NewSession(chatID int64) Session {
	return Session{ChatID: chatID, Notifications: true}
}

// ID is the session key used by the file layout ("<from>:<chat>").
func (s Session) ID() string {
	return SessionID(s.ChatID)
}

func SessionID(chatID int64) string {
	v := strconv.FormatInt(chatID, 10)
	return v + ":" + v
}

// ParseSessionID extracts the chat id from a "<from>:<chat>" key.
func ParseSessionID(id string) (int64, error) {
	id = strings.TrimSpace(id)
	if i := strings.LastIndexByte(id, ':'); i >= 0 {
		id = id[i+1:]
	}
	v, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("session id %q: %w", id, err)
	}
	return v, nil
}

// EnsureFilters materializes the default filters when the session has none,
// and fills any dimension missing from a partial set. It returns the
// resulting set and whether the session was changed.
func (s *Session) EnsureFilters() (FilterSet, bool) {
	if s.Filters == nil {
		s.Filters = DefaultFilters()
		return s.Filters, true
	}
	changed := false
	for _, d := range Definitions {
		if _, ok := s.Filters[d.Name]; !ok {
			s.Filters[d.Name] = Filter{Title: d.Title, Value: Any}
			changed = true
		}
	}
	return s.Filters, changed
}

// SetFilter validates value against the filter's offered values and stores it.
func (s *Session) SetFilter(name, value string) error {
	d, ok := Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFilter, name)
	}
	value = strings.TrimSpace(value)
	match := ""
	for _, v := range d.Values {
		if strings.EqualFold(v, value) {
			match = v
			break
		}
	}
	if match == "" {
		return fmt.Errorf("%w: %s=%q", ErrInvalidValue, d.Name, value)
	}
	s.EnsureFilters()
	s.Filters[d.Name] = Filter{Title: d.Title, Value: match}
	return nil
}
