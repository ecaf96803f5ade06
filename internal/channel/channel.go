// Package channel defines the abstraction between the support desk and the
// external one-to-one messaging transport. One Session represents the live
// connection for one channel account; the Manager owns the account-id to
// session mapping with explicit register/deregister lifecycle.
package channel

import (
	"context"
	"time"
)

// EventType tags the kind of inbound event a session delivers.
type EventType string

const (
	EventMessage    EventType = "message"     // new inbound or self-echoed message
	EventMediaReady EventType = "media_ready" // media payload became downloadable
	EventAck        EventType = "ack"         // delivery-acknowledgment change
)

// Message content types the pipeline accepts. Anything else is discarded at
// ingestion, as are status-broadcast pseudo-messages.
const (
	TypeChat     = "chat"
	TypeAudio    = "audio"
	TypePTT      = "ptt"
	TypeVideo    = "video"
	TypeImage    = "image"
	TypeDocument = "document"
	TypeVCard    = "vcard"
	TypeSticker  = "sticker"
)

// StatusBroadcast is the channel-native pseudo-identity used for status
// updates. Events from it are never conversation traffic.
const StatusBroadcast = "status@broadcast"

// ContactInfo is the channel-native identity attached to an event.
type ContactInfo struct {
	NativeID   string
	Name       string
	IsGroup    bool
	ProfilePic string
}

// Event is one inbound channel event for an account session.
type Event struct {
	Type      EventType
	AccountID string

	NativeID string // channel-native message id
	From     string // sender native id
	To       string // recipient native id
	Body     string
	MsgType  string // chat/audio/ptt/video/image/document/vcard/sticker/...
	FromMe   bool
	IsGroup  bool
	HasMedia bool
	Unread   int // chat unread count hint at delivery time

	QuotedNativeID string // native id of the quoted message, if any

	Contact      ContactInfo  // resolved sender (or recipient when FromMe)
	GroupContact *ContactInfo // group identity when IsGroup

	Ack int // for EventAck: new acknowledgment level

	Timestamp time.Time
}

// Media is a downloaded binary payload.
type Media struct {
	Data     []byte
	MimeType string
	Filename string // may be empty; the recorder generates one from the MIME type
}

// Outbound is content to deliver through a session.
type Outbound struct {
	Body      string
	MediaPath string // when set, send as media with Body as caption
}

// Session is one live channel connection for one account.
type Session interface {
	// ID returns the channel account id this session serves.
	ID() string

	// Send delivers content to a chat and returns the sent message's
	// channel-native id.
	Send(ctx context.Context, chatNativeID string, out Outbound) (string, error)

	// DownloadMedia fetches the binary payload of a media message.
	DownloadMedia(ctx context.Context, nativeMsgID string) (*Media, error)
}

// Handler consumes inbound events from a session. Implementations must not
// block event delivery; a failing event is logged and dropped, never fatal.
type Handler func(ctx context.Context, ev Event)
