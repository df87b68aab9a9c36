// Package catalog holds the auction listing model and the snapshot diff.
package catalog

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Key identifies a listing. The feed sends numeric ids; they are kept as
// their decimal text so comparisons never depend on float formatting.
type Key string

func (k *Key) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*k = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*k = Key(strings.TrimSpace(s))
		return nil
	}
	if _, err := strconv.ParseFloat(string(b), 64); err != nil {
		return fmt.Errorf("catalog: invalid listing id %s", b)
	}
	*k = Key(b)
	return nil
}

// Number accepts a JSON number or a numeric string.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*n = Number(math.NaN())
			return nil
		}
		*n = Number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, f, 'f', -1, 64), nil
}

func (n Number) Float() float64 { return float64(n) }

// Text accepts either a string or an array of strings.
type Text []string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = nil
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*t = nil
			return nil
		}
		*t = Text{s}
		return nil
	}
	var ss []string
	if err := json.Unmarshal(b, &ss); err != nil {
		return err
	}
	*t = Text(ss)
	return nil
}

func (t Text) String() string { return strings.Join(t, ", ") }

// Listing is one auctioned server as published by the feed.
// Unknown feed fields are ignored.
type Listing struct {
	Key         Key      `json:"key"`
	Name        string   `json:"name,omitempty"`
	CPU         string   `json:"cpu"`
	RAMSize     Number   `json:"ram_size"`
	DiskHR      []string `json:"hdd_hr"`
	DiskCount   Number   `json:"hdd_count"`
	Price       Number   `json:"price"`
	Description Text     `json:"description,omitempty"`
	NextReduce  int64    `json:"next_reduce"`
	SetupPrice  *Number  `json:"setup_price,omitempty"`
	Datacenter  string   `json:"datacenter,omitempty"`
}
