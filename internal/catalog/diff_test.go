package catalog

import (
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listing(key string, price float64) Listing {
	return Listing{Key: Key(key), CPU: "Intel Core i7-6700", RAMSize: 64, Price: Number(price)}
}

func snap(ls ...Listing) Snapshot { return NewSnapshot(ls, time.Unix(0, 0)) }

func keys(ls []Listing) []Key {
	out := make([]Key, 0, len(ls))
	for _, l := range ls {
		out = append(out, l.Key)
	}
	return out
}

func TestDiff(t *testing.T) {
	t.Parallel()

	a, b, c := listing("A", 30), listing("B", 40), listing("C", 50)

	tests := []struct {
		name string
		prev Snapshot
		cur  Snapshot
		want []Key
	}{
		{name: "identical", prev: snap(a, b), cur: snap(a, b), want: []Key{}},
		{name: "added in cur order", prev: snap(a), cur: snap(c, a, b), want: []Key{"C", "B"}},
		{name: "removed not reported", prev: snap(a, b, c), cur: snap(a), want: []Key{}},
		{name: "empty prev", prev: Snapshot{}, cur: snap(a, b), want: []Key{"A", "B"}},
		{name: "modified same key ignored", prev: snap(a), cur: snap(listing("A", 99)), want: []Key{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, keys(Diff(tc.prev, tc.cur)))
		})
	}
}

func TestDiffOrderOfPrevIrrelevant(t *testing.T) {
	t.Parallel()

	a, b, c := listing("A", 30), listing("B", 40), listing("C", 50)
	cur := snap(a, b, c)
	assert.Equal(t, keys(Diff(snap(a, b), cur)), keys(Diff(snap(b, a), cur)))
}

func TestDiffIdempotent(t *testing.T) {
	t.Parallel()

	s := snap(listing("A", 30), listing("B", 40))
	assert.Empty(t, Diff(s, s))
}

func TestFingerprintStable(t *testing.T) {
	t.Parallel()

	a := []Listing{listing("A", 30), listing("B", 40)}
	b := []Listing{listing("A", 30), listing("B", 40)}
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(a[:1]))
	assert.Len(t, Fingerprint(nil), 64)
}

func TestListingDecodeLenient(t *testing.T) {
	t.Parallel()

	raw := `{"key":2419412,"cpu":"AMD Ryzen 7 3700X","ram_size":"64","hdd_hr":["2x 1 TB NVMe SSD"],
	"hdd_count":2,"price":"39.50","description":"single line","next_reduce":3600,"setup_price":0,"extra":true}`

	var l Listing
	require.NoError(t, json.Unmarshal([]byte(raw), &l))
	assert.Equal(t, Key("2419412"), l.Key)
	assert.InDelta(t, 64.0, l.RAMSize.Float(), 0)
	assert.InDelta(t, 39.5, l.Price.Float(), 0)
	assert.Equal(t, Text{"single line"}, l.Description)
	require.NotNil(t, l.SetupPrice)
	assert.Zero(t, l.SetupPrice.Float())

	var arr Listing
	require.NoError(t, json.Unmarshal([]byte(`{"key":"x","description":["a","b"]}`), &arr))
	assert.Equal(t, "a, b", arr.Description.String())
}
