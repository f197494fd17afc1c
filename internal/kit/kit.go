package kit

import "context"

// UpdateKind discriminates incoming transport updates.
type UpdateKind string

const (
	UpdateMessage UpdateKind = "message"
)

// Update is a transport-neutral incoming event.
type Update struct {
	Kind    UpdateKind
	Message *Message
}

// Message is an incoming chat message.
type Message struct {
	ID            int
	ChatID        int64
	ThreadID      int
	FromID        int64
	FromUsername  string
	FromFirstName string
	Text          string
}

// ChatTarget identifies where to send a message.
type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

// SendOptions carries transport send knobs.
//
// ReplyMarkupAdapter is an adapter-specific keyboard value (for Telegram a
// *tele.ReplyMarkup); the adapter type-asserts and ignores anything else.
type SendOptions struct {
	ParseMode          string
	DisablePreview     bool
	ReplyMarkupAdapter any
}

// MessageRef points at a previously sent message.
type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

// BotCommand is one entry of the transport's command menu.
type BotCommand struct {
	Command     string
	Description string
}

// Notification is a rendered outbound message handed to the notifier.
type Notification struct {
	Target  ChatTarget
	Text    string
	Options *SendOptions
}

// Adapter abstracts the chat transport.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
