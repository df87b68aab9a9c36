// Package dispatch delivers composed notifications to the broadcast chat and
// to matching subscribers, one recipient at a time.
package dispatch

import (
	"errors"
	"time"

	"auctionwatch/internal/catalog"
)

var ErrNoTarget = errors.New("dispatch: no target chat")

type Config struct {
	// BroadcastChatID is the channel that receives every new listing.
	// Zero disables broadcasting.
	BroadcastChatID int64
	ThreadID        int

	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	SendTimeout   time.Duration
}

type TargetKind string

const (
	TargetBroadcast  TargetKind = "broadcast"
	TargetSubscriber TargetKind = "subscriber"
)

// Target is one destination for one send.
type Target struct {
	Kind   TargetKind
	ChatID int64
}

// Outcome is the result of delivering one message to one target.
type Outcome struct {
	Target     Target
	ListingKey catalog.Key
	Attempts   int
	Err        error
}

func (o Outcome) OK() bool { return o.Err == nil }

// Report collects every outcome of one dispatch run in send order.
type Report struct {
	Outcomes []Outcome
}

func (r Report) Sent() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err == nil {
			n++
		}
	}
	return n
}

func (r Report) Failed() int { return len(r.Outcomes) - r.Sent() }

// For returns the outcomes addressed to chatID.
func (r Report) For(chatID int64) []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Target.ChatID == chatID {
			out = append(out, o)
		}
	}
	return out
}

// Composer renders the messages for one listing.
type Composer interface {
	Broadcast(l catalog.Listing) string
	Listing(l catalog.Listing) string
}
