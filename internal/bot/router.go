// Package bot serves the subscriber commands received over the chat
// transport. It is the only writer of sessions.
package bot

import (
	"context"
	"hash/fnv"
	"sort"
	"strconv"
	"sync"
	"time"

	"auctionwatch/internal/message"
	"auctionwatch/internal/search"
	"auctionwatch/internal/storage"
	kit "auctionwatch/internal/transport"
	logx "auctionwatch/pkg/logx"
)

type Config struct {
	// ReplyTimeout is how long a reply stays in the chat. Long replies stay
	// twice as long. Zero keeps replies.
	ReplyTimeout   time.Duration
	Workers        int
	QueueSize      int
	HandlerTimeout time.Duration
}

// Chat is what the router needs from the transport.
type Chat interface {
	kit.Sender
	DeleteMessage(ctx context.Context, ref kit.MessageRef) error
}

type Searcher interface {
	Search(ctx context.Context, chatID int64, username string) (search.Result, error)
	MaxDaily() int
}

type Command struct {
	Name        string
	Description string
	Handle      HandlerFunc
}

// Request is one command invocation.
type Request struct {
	Msg  kit.Message
	Name string
	Args []string
	Log  logx.Logger
}

type Router struct {
	chat     Chat
	sessions storage.SessionStore
	searcher Searcher
	composer message.Composer
	log      logx.Logger

	mu       sync.RWMutex
	cfg      Config
	commands map[string]Command

	reaper *reaper
}

func New(cfg Config, chat Chat, sessions storage.SessionStore, searcher Searcher, composer message.Composer, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "bot"))
	r := &Router{
		chat:     chat,
		sessions: sessions,
		searcher: searcher,
		composer: composer,
		log:      log,
		cfg:      withDefaults(cfg),
		reaper:   newReaper(chat, log),
	}
	r.commands = r.builtins()
	return r
}

func withDefaults(cfg Config) Config {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = 30 * time.Second
	}
	if cfg.ReplyTimeout < 0 {
		cfg.ReplyTimeout = 0
	}
	return cfg
}

// Apply swaps the runtime config. Worker count changes take effect on the
// next Run.
func (r *Router) Apply(cfg Config) {
	r.mu.Lock()
	r.cfg = withDefaults(cfg)
	r.mu.Unlock()
}

// SetComposer replaces the reply templates.
func (r *Router) SetComposer(c message.Composer) {
	r.mu.Lock()
	r.composer = c
	r.mu.Unlock()
}

func (r *Router) config() (Config, message.Composer) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg, r.composer
}

// Commands lists the command menu in name order.
func (r *Router) Commands() []kit.BotCommand {
	out := make([]kit.BotCommand, 0, len(r.commands))
	for _, c := range r.commands {
		out = append(out, kit.BotCommand{Command: c.Name, Description: c.Description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Command < out[j].Command })
	return out
}

// Run consumes updates until ctx is done or updates is closed. Requests of
// one chat always land on the same worker, so they run in arrival order.
func (r *Router) Run(ctx context.Context, updates <-chan kit.Update) error {
	cfg, _ := r.config()
	r.reaper.open()
	shards := make([]chan func(), cfg.Workers)
	var wg sync.WaitGroup
	for i := range shards {
		shards[i] = make(chan func(), cfg.QueueSize)
		wg.Add(1)
		go func(jobs <-chan func()) {
			defer wg.Done()
			for job := range jobs {
				job()
			}
		}(shards[i])
	}
	r.log.Info("command router started", logx.Int("workers", cfg.Workers), logx.Int("queue", cfg.QueueSize))

	defer func() {
		for _, s := range shards {
			close(s)
		}
		wg.Wait()
		r.reaper.close()
		r.log.Info("command router stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.route(ctx, up, shards)
		}
	}
}

func (r *Router) route(ctx context.Context, up kit.Update, shards []chan func()) {
	if up.Kind != kit.UpdateMessage || up.Message == nil {
		return
	}
	msg := *up.Message
	if !msg.IsPrivate {
		return
	}
	name, args, ok := parseCommand(msg.Text)
	if !ok {
		return
	}

	req := &Request{
		Msg:  msg,
		Name: name,
		Args: args,
		Log: r.log.With(
			logx.Int64("chat_id", msg.ChatID),
			logx.Int64("from_id", msg.FromID),
			logx.String("cmd", name),
		),
	}
	cmd, known := r.commands[name]
	if !known {
		cmd = Command{Name: name, Handle: r.handleUnknown}
	}
	cfg, _ := r.config()
	h := chain(cmd.Handle, withRecover(), withRequestLog(), withTimeout(cfg.HandlerTimeout))

	select {
	case shards[shardFor(msg.ChatID, len(shards))] <- func() { _ = h(ctx, req) }:
	default:
		req.Log.Warn("command queue full, request dropped")
		_, _ = r.chat.SendText(ctx, kit.ChatTarget{ChatID: msg.ChatID}, "Busy, try again.", nil)
	}
}

func shardFor(chatID int64, n int) int {
	h := fnv.New32a()
	h.Write([]byte(strconv.FormatInt(chatID, 10)))
	return int(h.Sum32() % uint32(n))
}

// reply sends text and schedules its deletion after ReplyTimeout*factor.
func (r *Router) reply(ctx context.Context, req *Request, text string, factor int) error {
	ref, err := r.chat.SendText(ctx, kit.ChatTarget{ChatID: req.Msg.ChatID}, text, &kit.SendOptions{
		ParseMode:      message.ParseMode,
		DisablePreview: true,
	})
	if err != nil {
		return err
	}
	cfg, _ := r.config()
	if cfg.ReplyTimeout > 0 && ref.MessageID != 0 {
		r.reaper.schedule(ref, cfg.ReplyTimeout*time.Duration(factor))
	}
	return nil
}
