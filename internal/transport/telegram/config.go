package telegram

import "time"

type Config struct {
	Token       string
	PollTimeout time.Duration
	// UpdateBuffer is the capacity the app uses for the update channel.
	UpdateBuffer int
	// Offline skips the getMe call. The adapter can then only be used for
	// one-shot commands that never poll.
	Offline bool
}
