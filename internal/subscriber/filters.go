// Package subscriber models subscriber sessions, their filters and the daily
// search quota.
package subscriber

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"auctionwatch/internal/catalog"
)

// Any is the sentinel filter value meaning "no constraint".
const Any = "Any"

const (
	FilterMaxPrice = "maxprice"
	FilterMinHD    = "minhd"
	FilterMinRAM   = "minram"
	FilterCPUType  = "cputype"
)

// Definition describes one filter dimension and the values offered to users.
type Definition struct {
	Name   string
	Title  string
	Prompt string
	Values []string
}

// Definitions lists the filter dimensions in display order.
var Definitions = []Definition{
	{
		Name:   FilterMaxPrice,
		Title:  "Max. Price",
		Prompt: "Set the max. price (excl. VAT):",
		Values: []string{Any, "30", "40", "50", "60", "70", "80", "90", "100", "110", "120", "130", "140", "150", "200"},
	},
	{
		Name:   FilterMinHD,
		Title:  "Min. HD",
		Prompt: "Set the min. number of disks:",
		Values: []string{Any, "1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12", "13", "14", "15"},
	},
	{
		Name:   FilterMinRAM,
		Title:  "Min. RAM",
		Prompt: "Set the min. RAM size in GB:",
		Values: []string{Any, "2", "4", "8", "12", "16", "24", "32", "48", "64", "96", "128", "256", "512", "768"},
	},
	{
		Name:   FilterCPUType,
		Title:  "CPU Type",
		Prompt: "Set the preferred CPU type:",
		Values: []string{Any, "Intel", "AMD"},
	},
}

var (
	ErrUnknownFilter = errors.New("unknown filter")
	ErrInvalidValue  = errors.New("invalid filter value")
)

// Lookup returns the definition for name.
func Lookup(name string) (Definition, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, d := range Definitions {
		if d.Name == name {
			return d, true
		}
	}
	return Definition{}, false
}

// Filter is one (title, value) pair. It is stored as a two-element JSON array.
type Filter struct {
	Title string
	Value string
}

func (f Filter) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{f.Title, f.Value})
}

func (f *Filter) UnmarshalJSON(b []byte) error {
	var pair []any
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("filter: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("filter: want [title, value], got %d elements", len(pair))
	}
	f.Title = fmt.Sprint(pair[0])
	switch v := pair[1].(type) {
	case string:
		f.Value = v
	case float64:
		f.Value = strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		f.Value = Any
	default:
		f.Value = fmt.Sprint(v)
	}
	return nil
}

// IsAny reports whether f places no constraint.
func (f Filter) IsAny() bool { return f.Value == Any }

// FilterSet maps a filter name to its selection. A nil set means the
// subscriber never configured filters.
type FilterSet map[string]Filter

// DefaultFilters returns a set with every dimension at Any.
func DefaultFilters() FilterSet {
	fs := make(FilterSet, len(Definitions))
	for _, d := range Definitions {
		fs[d.Name] = Filter{Title: d.Title, Value: Any}
	}
	return fs
}

// Clone returns a deep copy of fs.
func (fs FilterSet) Clone() FilterSet {
	if fs == nil {
		return nil
	}
	out := make(FilterSet, len(fs))
	for k, v := range fs {
		out[k] = v
	}
	return out
}

// Matches reports whether l passes every filter in fs. A dimension missing
// from fs is unconstrained. Stored numeric values are coerced leniently: an
// empty value is 0 and anything unparsable is NaN, which fails every
// comparison and therefore rejects the listing.
func Matches(l catalog.Listing, fs FilterSet) bool {
	if f, ok := fs[FilterMaxPrice]; ok && !f.IsAny() && !(l.Price.Float() <= coerce(f.Value)) {
		return false
	}
	if f, ok := fs[FilterMinHD]; ok && !f.IsAny() && !(l.DiskCount.Float() >= coerce(f.Value)) {
		return false
	}
	if f, ok := fs[FilterMinRAM]; ok && !f.IsAny() && !(l.RAMSize.Float() >= coerce(f.Value)) {
		return false
	}
	if f, ok := fs[FilterCPUType]; ok && !f.IsAny() && !strings.Contains(l.CPU, f.Value) {
		return false
	}
	return true
}

func coerce(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
