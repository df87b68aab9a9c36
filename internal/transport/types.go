package transport

import (
	"context"
	"errors"
)

// ErrPermanent marks a delivery failure that retrying will not fix
// (blocked bot, deleted chat, ...). Adapters wrap platform errors with it.
var ErrPermanent = errors.New("permanent delivery failure")

// IsPermanent reports whether err was marked permanent by the adapter.
func IsPermanent(err error) bool { return errors.Is(err, ErrPermanent) }

type UpdateKind string

const (
	UpdateMessage UpdateKind = "message"
)

type Update struct {
	Kind    UpdateKind
	Message *Message
}

type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	Text         string
	IsPrivate    bool
}

type ChatTarget struct {
	ChatID   int64
	ThreadID int // telegram forum topic thread id (0 if none)
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Sender delivers one text message to one chat.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}

type Adapter interface {
	Sender

	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	DeleteMessage(ctx context.Context, ref MessageRef) error
}

// BotCommand is one entry of the client-side command menu.
type BotCommand struct {
	Command     string
	Description string
}
