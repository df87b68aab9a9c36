package catalog

import (
	"encoding/hex"
	"time"

	json "github.com/goccy/go-json"
	"github.com/zeebo/blake3"
)

// Snapshot is the full listing set observed at one instant.
type Snapshot struct {
	Listings    []Listing `json:"server"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	FetchedAt   time.Time `json:"fetched_at,omitempty"`
}

// NewSnapshot builds a snapshot and stamps its fingerprint.
func NewSnapshot(listings []Listing, at time.Time) Snapshot {
	if listings == nil {
		listings = []Listing{}
	}
	return Snapshot{
		Listings:    listings,
		Fingerprint: Fingerprint(listings),
		FetchedAt:   at.UTC(),
	}
}

// Fingerprint is the hex BLAKE3 digest of the canonical JSON encoding of the
// listings. Encoding failures yield an empty fingerprint, which never equals
// a real one.
func Fingerprint(listings []Listing) string {
	if listings == nil {
		listings = []Listing{}
	}
	b, err := json.Marshal(listings)
	if err != nil {
		return ""
	}
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Keys returns the set of listing keys in s.
func (s Snapshot) Keys() map[Key]struct{} {
	out := make(map[Key]struct{}, len(s.Listings))
	for _, l := range s.Listings {
		out[l.Key] = struct{}{}
	}
	return out
}

// Len returns the number of listings.
func (s Snapshot) Len() int { return len(s.Listings) }
