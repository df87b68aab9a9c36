package message

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"auctionwatch/internal/catalog"
	"auctionwatch/internal/subscriber"
)

func sample() catalog.Listing {
	setup := catalog.Number(0)
	return catalog.Listing{
		Key:         "1234567",
		CPU:         "Intel Xeon E3-1275V6",
		RAMSize:     64,
		DiskHR:      []string{"2x 480 GB SATA SSD", "2x 4.0 TB HDD"},
		DiskCount:   4,
		Price:       39.5,
		Description: catalog.Text{"ECC", "Redundant PSU"},
		NextReduce:  3723,
		SetupPrice:  &setup,
	}
}

func TestBody(t *testing.T) {
	t.Parallel()

	got := NewComposer(Options{}).Body(sample())
	want := "📌 *ID:* 1234567\n" +
		"🖥️ *CPU:* Intel Xeon E3-1275V6\n" +
		"🧮 *RAM:* 64G\n" +
		"💽 *HDD:* 2x 480 GB SATA SSD, 2x 4.0 TB HDD\n" +
		"💵 *Price:* 39.50 €/month (excl. VAT)\n" +
		"📋 *Description:* ECC, Redundant PSU\n" +
		"⏲️ *Expires in:* 1hour 2minutes 3seconds\n"
	assert.Equal(t, want, got)
}

func TestBroadcastFraming(t *testing.T) {
	t.Parallel()

	var c Composer
	got := c.Broadcast(sample())
	assert.True(t, strings.HasPrefix(got, "Via @HetznerAuctionServersBot:\n📌"))
	assert.Contains(t, got, "[server auction page](https://www.hetzner.com/sb?country=ot)")
	assert.True(t, strings.HasSuffix(got, "to create your own filters.\n"))

	l := sample()
	l.Description = nil
	setup := catalog.Number(49)
	l.SetupPrice = &setup
	got = c.Listing(l)
	assert.Contains(t, got, "No description available")
	assert.Contains(t, got, "🧾 *Setup:* 49.00 €")
}

func TestHumanize(t *testing.T) {
	t.Parallel()

	tests := map[time.Duration]string{
		0:                                 "0seconds",
		time.Second:                       "1second",
		time.Hour:                         "1hour",
		2*time.Hour + 30*time.Second:      "2hours 30seconds",
		61 * time.Minute:                  "1hour 1minute",
		1500 * time.Millisecond:           "2seconds",
	}
	for d, want := range tests {
		assert.Equal(t, want, Humanize(d), d.String())
	}
}

func TestEscape(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `a\_b\*c\[d\`+"`", Escape("a_b*c[d`"))
}

func TestSearchResults(t *testing.T) {
	t.Parallel()

	c := NewComposer(Options{})
	ls := []catalog.Listing{sample(), sample()}
	got := c.SearchResults(ls[:1], 1, 2, 0)
	assert.True(t, strings.HasPrefix(got, "Here are the most recent 1 servers (out of 2):\n"))
	assert.True(t, strings.HasSuffix(got, "You can do 0 more searches today."))

	premium := c.SearchResults(ls, 10, 2, subscriber.Unlimited)
	assert.NotContains(t, premium, "more searches today")

	assert.Equal(t, NoMatches, c.SearchResults(nil, 3, 0, 2))
}

func TestFilterSummary(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "You don't have defined your own filters yet.", FilterSummary(nil))
	got := FilterSummary(subscriber.DefaultFilters())
	assert.Contains(t, got, " - *Max. Price*: Any\n")
	assert.Contains(t, got, " - *CPU Type*: Any\n")
}
