package app

import (
	"context"
	"sync/atomic"

	"auctionwatch/internal/catalog"
	"auctionwatch/internal/message"
	"auctionwatch/internal/source"
)

// fetcherRef lets a config reload swap the source while ticks run.
type fetcherRef struct{ p atomic.Pointer[source.Fetcher] }

func (r *fetcherRef) Fetch(ctx context.Context) (catalog.Snapshot, error) {
	return r.p.Load().Fetch(ctx)
}

// composerRef does the same for message templates.
type composerRef struct{ v atomic.Value } // message.Composer

func (r *composerRef) get() message.Composer {
	c, _ := r.v.Load().(message.Composer)
	return c
}

func (r *composerRef) Broadcast(l catalog.Listing) string { return r.get().Broadcast(l) }
func (r *composerRef) Listing(l catalog.Listing) string   { return r.get().Listing(l) }
