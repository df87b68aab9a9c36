package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"auctionwatch/internal/message"
	"auctionwatch/internal/storage"
	"auctionwatch/internal/subscriber"
	logx "auctionwatch/pkg/logx"
)

// Reply lifetimes, in multiples of ReplyTimeout.
const (
	shortReply = 1
	longReply  = 2
)

func (r *Router) builtins() map[string]Command {
	cmds := []Command{
		{Name: "start", Description: "Show the main menu", Handle: r.handleStart},
		{Name: "help", Description: "Show instructions", Handle: r.handleHelp},
		{Name: "filters", Description: "View your search preferences", Handle: r.handleFilters},
		{Name: "set", Description: "Change a search preference", Handle: r.handleSet},
		{Name: "notifications", Description: "Turn notifications on or off", Handle: r.handleNotifications},
		{Name: "search", Description: "Search the current servers now", Handle: r.handleSearch},
	}
	out := make(map[string]Command, len(cmds))
	for _, c := range cmds {
		out[c.Name] = c
	}
	return out
}

func (r *Router) handleStart(ctx context.Context, req *Request) error {
	sess, err := r.update(ctx, req, nil)
	if err != nil {
		return err
	}
	_, c := r.config()
	return r.reply(ctx, req, c.Start(sess), shortReply)
}

func (r *Router) handleHelp(ctx context.Context, req *Request) error {
	_, c := r.config()
	return r.reply(ctx, req, c.Help(), longReply)
}

func (r *Router) handleFilters(ctx context.Context, req *Request) error {
	sess, err := r.update(ctx, req, nil)
	if err != nil {
		return err
	}
	return r.reply(ctx, req, message.FilterSummary(sess.Filters), shortReply)
}

func (r *Router) handleSet(ctx context.Context, req *Request) error {
	if len(req.Args) < 2 {
		return r.reply(ctx, req, message.SetUsage(), longReply)
	}
	name, value := strings.ToLower(req.Args[0]), strings.Join(req.Args[1:], " ")

	var setErr error
	sess, err := r.update(ctx, req, func(s *subscriber.Session) bool {
		setErr = s.SetFilter(name, value)
		return setErr == nil
	})
	if err != nil {
		return err
	}
	switch {
	case errors.Is(setErr, subscriber.ErrUnknownFilter):
		return r.reply(ctx, req, fmt.Sprintf("Unknown filter %q.\n\n%s", name, message.SetUsage()), longReply)
	case errors.Is(setErr, subscriber.ErrInvalidValue):
		return r.reply(ctx, req, fmt.Sprintf("Invalid value %q.\n\n%s", value, message.SetUsage()), longReply)
	case setErr != nil:
		return setErr
	}
	req.Log.Debug("filter set", logx.String("filter", name), logx.String("value", sess.Filters[name].Value))
	return r.reply(ctx, req, message.FilterUpdated(name, sess.Filters[name].Value), shortReply)
}

func (r *Router) handleNotifications(ctx context.Context, req *Request) error {
	arg := ""
	if len(req.Args) > 0 {
		arg = strings.ToLower(req.Args[0])
	}
	switch arg {
	case "", "toggle", "on", "off":
	default:
		return r.reply(ctx, req, "Usage: /notifications on|off", shortReply)
	}

	sess, err := r.update(ctx, req, func(s *subscriber.Session) bool {
		switch arg {
		case "on":
			s.Notifications = true
		case "off":
			s.Notifications = false
		default:
			s.Notifications = !s.Notifications
		}
		return true
	})
	if err != nil {
		return err
	}
	req.Log.Debug("notifications set", logx.Bool("on", sess.Notifications))
	return r.reply(ctx, req, message.NotificationsToggled(sess.Notifications), shortReply)
}

func (r *Router) handleSearch(ctx context.Context, req *Request) error {
	res, err := r.searcher.Search(ctx, req.Msg.ChatID, req.Msg.FromUsername)
	if err != nil {
		return err
	}
	if !res.Allowed {
		return r.reply(ctx, req, message.LimitReached(r.searcher.MaxDaily()), longReply)
	}
	_, c := r.config()
	return r.reply(ctx, req, c.SearchResults(res.Listings, res.Limit, res.Total, res.Remaining), longReply)
}

func (r *Router) handleUnknown(ctx context.Context, req *Request) error {
	return r.reply(ctx, req, "Unknown command. Try /help", shortReply)
}

// update loads the chat's session (fresh when absent or unreadable),
// materializes its filters, applies mutate and persists the result when
// anything changed.
func (r *Router) update(ctx context.Context, req *Request, mutate func(*subscriber.Session) bool) (subscriber.Session, error) {
	sess, found, err := r.sessions.Session(ctx, req.Msg.ChatID)
	if err != nil && !errors.Is(err, storage.ErrCorrupt) {
		return subscriber.Session{}, fmt.Errorf("load session: %w", err)
	}
	if err != nil {
		req.Log.Warn("session unreadable, starting fresh", logx.Err(err))
		found = false
	}
	if !found {
		sess = subscriber.NewSession(req.Msg.ChatID)
	}

	dirty := !found
	if u := req.Msg.FromUsername; u != "" && u != sess.Username {
		sess.Username = u
		dirty = true
	}
	if _, changed := sess.EnsureFilters(); changed {
		dirty = true
	}
	if mutate != nil && mutate(&sess) {
		dirty = true
	}
	if !dirty {
		return sess, nil
	}
	if err := r.sessions.PutSession(ctx, sess); err != nil {
		return sess, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}
