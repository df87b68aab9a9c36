// Package message renders listings and bot replies as Telegram Markdown.
package message

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"auctionwatch/internal/catalog"
	"auctionwatch/internal/subscriber"
)

const ParseMode = "Markdown"

const (
	DefaultBotUsername = "HetznerAuctionServersBot"
	DefaultAuctionURL  = "https://www.hetzner.com/sb?country=ot"
)

type Options struct {
	BotUsername string
	AuctionURL  string
	ChannelURL  string
}

// Composer builds message texts. The zero value uses the defaults.
type Composer struct {
	opt Options
}

func NewComposer(opt Options) Composer {
	if strings.TrimSpace(opt.BotUsername) == "" {
		opt.BotUsername = DefaultBotUsername
	}
	opt.BotUsername = strings.TrimPrefix(strings.TrimSpace(opt.BotUsername), "@")
	if strings.TrimSpace(opt.AuctionURL) == "" {
		opt.AuctionURL = DefaultAuctionURL
	}
	return Composer{opt: opt}
}

func (c Composer) options() Options {
	if c.opt.BotUsername == "" {
		return NewComposer(c.opt).opt
	}
	return c.opt
}

// Body renders the listing card shared by every message kind.
func (c Composer) Body(l catalog.Listing) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📌 *ID:* %s\n", Escape(string(l.Key)))
	fmt.Fprintf(&b, "🖥️ *CPU:* %s\n", Escape(l.CPU))
	fmt.Fprintf(&b, "🧮 *RAM:* %sG\n", formatNumber(l.RAMSize.Float()))
	fmt.Fprintf(&b, "💽 *HDD:* %s\n", Escape(strings.Join(l.DiskHR, ", ")))
	fmt.Fprintf(&b, "💵 *Price:* %.2f €/month (excl. VAT)\n", l.Price.Float())
	if l.SetupPrice != nil && l.SetupPrice.Float() > 0 {
		fmt.Fprintf(&b, "🧾 *Setup:* %.2f €\n", l.SetupPrice.Float())
	}
	desc := "No description available"
	if len(l.Description) > 0 {
		desc = Escape(l.Description.String())
	}
	fmt.Fprintf(&b, "📋 *Description:* %s\n", desc)
	fmt.Fprintf(&b, "⏲️ *Expires in:* %s\n", Humanize(time.Duration(l.NextReduce)*time.Second))
	return b.String()
}

// Listing is the message sent to a subscriber for a new listing.
func (c Composer) Listing(l catalog.Listing) string {
	o := c.options()
	return c.Body(l) + "\n" +
		"Open the [server auction page](" + o.AuctionURL + ") and type the *ID* in the search box to find the details.\n"
}

// Broadcast is the channel message for a new listing.
func (c Composer) Broadcast(l catalog.Listing) string {
	o := c.options()
	return "Via @" + Escape(o.BotUsername) + ":\n" +
		c.Listing(l) +
		"You can also talk privately with [the bot](https://t.me/" + o.BotUsername + ") to create your own filters.\n"
}

// Humanize renders d as "1hour 2minutes 3seconds", omitting zero units.
func Humanize(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	secs := int64(math.Round(d.Seconds()))
	h, m, s := secs/3600, (secs%3600)/60, secs%60

	var parts []string
	add := func(n int64, unit string) {
		if n == 0 {
			return
		}
		if n != 1 {
			unit += "s"
		}
		parts = append(parts, fmt.Sprintf("%d%s", n, unit))
	}
	add(h, "hour")
	add(m, "minute")
	add(s, "second")
	if len(parts) == 0 {
		return "0seconds"
	}
	return strings.Join(parts, " ")
}

func formatNumber(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "?"
	}
	return humanize.Ftoa(v)
}

var escaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// Escape quotes the legacy Markdown control characters.
func Escape(s string) string { return escaper.Replace(s) }

// FilterSummary lists a subscriber's filters in definition order.
func FilterSummary(fs subscriber.FilterSet) string {
	if fs == nil {
		return "You don't have defined your own filters yet."
	}
	var b strings.Builder
	b.WriteString("This is the current filters configuration:\n")
	for _, d := range subscriber.Definitions {
		f, ok := fs[d.Name]
		if !ok {
			f = subscriber.Filter{Title: d.Title, Value: subscriber.Any}
		}
		fmt.Fprintf(&b, " - *%s*: %s\n", Escape(f.Title), Escape(f.Value))
	}
	return b.String()
}
