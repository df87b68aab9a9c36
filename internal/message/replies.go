package message

import (
	"fmt"
	"strings"

	"auctionwatch/internal/catalog"
	"auctionwatch/internal/subscriber"
)

const NoMatches = "There are no active servers that match your criteria."

func LimitReached(maxDaily int) string {
	return fmt.Sprintf("You have reached the daily limit of %d searches. Please try again tomorrow or unlock Premium features.", maxDaily)
}

// SearchResults renders an on-demand search reply. remaining < 0 hides the
// quota footer.
func (c Composer) SearchResults(shown []catalog.Listing, limit, total, remaining int) string {
	if total == 0 || len(shown) == 0 {
		return NoMatches
	}
	lines := make([]string, 0, len(shown)+2)
	lines = append(lines, fmt.Sprintf("Here are the most recent %d servers (out of %d):", limit, total))
	for _, l := range shown {
		lines = append(lines, c.Body(l))
	}
	if remaining >= 0 {
		lines = append(lines, fmt.Sprintf("You can do %d more searches today.", remaining))
	}
	return strings.Join(lines, "\n")
}

// Start is the greeting for /start.
func (c Composer) Start(s subscriber.Session) string {
	state := "enabled"
	if !s.Notifications {
		state = "disabled"
	}
	var b strings.Builder
	b.WriteString("Choose an option:\n")
	b.WriteString(" - /filters to view your search preferences\n")
	b.WriteString(" - /set <filter> <value> to change one of them\n")
	b.WriteString(" - /search to search the current servers now\n")
	fmt.Fprintf(&b, " - /notifications on|off (currently %s)\n", state)
	b.WriteString(" - /help for instructions\n")
	return b.String()
}

// Help lists the instructions.
func (c Composer) Help() string {
	o := c.options()
	var b strings.Builder
	if o.ChannelURL != "" {
		b.WriteString("This is a helper bot for [Hetzner Auction Servers channel](" + o.ChannelURL + ").\n\n")
	} else {
		b.WriteString("This is a helper bot for Hetzner Auction Servers.\n\n")
	}
	b.WriteString("*INSTRUCTIONS*:\n")
	b.WriteString(" - Use /start to show the main menu at any moment.\n")
	b.WriteString(" - Use /filters and /set to set your search preferences and you will get notified for new servers matching your criteria.\n")
	b.WriteString(" - Messages from the bot may be deleted automatically after some time in order to keep the chat history clean.\n")
	b.WriteString(" - Disable the notifications at your convenience with /notifications off.\n")
	b.WriteString(" - Premium features available.\n")
	return b.String()
}

// SetUsage explains /set and lists the values accepted per filter.
func SetUsage() string {
	var b strings.Builder
	b.WriteString("Usage: /set <filter> <value>\n")
	for _, d := range subscriber.Definitions {
		fmt.Fprintf(&b, " - *%s* (%s): %s\n", d.Name, Escape(d.Prompt), strings.Join(d.Values, ", "))
	}
	return b.String()
}

func FilterUpdated(name, value string) string {
	d, ok := subscriber.Lookup(name)
	title := name
	if ok {
		title = d.Title
	}
	return fmt.Sprintf("*%s* set to %s.", Escape(title), Escape(value))
}

func NotificationsToggled(on bool) string {
	if on {
		return "Notifications enabled."
	}
	return "Notifications disabled."
}
