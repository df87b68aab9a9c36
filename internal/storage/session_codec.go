package storage

import (
	"bytes"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	"auctionwatch/internal/subscriber"
)

// sessionData is the per-session "data" object. Field names match the
// long-standing session file layout.
type sessionData struct {
	Username      string               `json:"username,omitempty"`
	Filters       subscriber.FilterSet `json:"filters,omitempty"`
	Notifications *bool                `json:"notifications,omitempty"`
	Premium       flag                 `json:"premium,omitempty"`
	SearchCount   int                  `json:"searchCount,omitempty"`
	SearchDate    string               `json:"searchDate,omitempty"`
}

// flag accepts true/false, 1/0 and "1"/"true". It is written as 1.
type flag bool

func (f flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

func (f *flag) UnmarshalJSON(b []byte) error {
	v := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		*f = true
	default:
		*f = false
	}
	return nil
}

func decodeSession(chatID int64, raw []byte) (subscriber.Session, error) {
	var d sessionData
	if err := json.Unmarshal(raw, &d); err != nil {
		return subscriber.Session{}, err
	}
	s := subscriber.Session{
		ChatID:        chatID,
		Username:      d.Username,
		Filters:       d.Filters,
		Notifications: true,
		Premium:       bool(d.Premium),
		SearchCount:   d.SearchCount,
		SearchDate:    d.SearchDate,
	}
	if d.Notifications != nil {
		s.Notifications = *d.Notifications
	}
	return s, nil
}

// encodeSession renders s, keeping any unknown keys already present in prev.
func encodeSession(s subscriber.Session, prev []byte) ([]byte, error) {
	notif := s.Notifications
	d := sessionData{
		Username:      s.Username,
		Filters:       s.Filters,
		Notifications: &notif,
		Premium:       flag(s.Premium),
		SearchCount:   s.SearchCount,
		SearchDate:    s.SearchDate,
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(prev)) == 0 {
		return b, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(prev, &merged); err != nil || merged == nil {
		return b, nil
	}
	for _, k := range []string{"username", "filters", "notifications", "premium", "searchCount", "searchDate"} {
		delete(merged, k)
	}
	var fresh map[string]json.RawMessage
	if err := json.Unmarshal(b, &fresh); err != nil {
		return nil, fmt.Errorf("session encode: %w", err)
	}
	for k, v := range fresh {
		merged[k] = v
	}
	return json.Marshal(merged)
}
