// Package bus defines the event types flowing from the pipeline to the
// real-time broadcaster. The gateway's websocket hub is the production
// Publisher; tests use a recording publisher.
package bus

// Room names used for fan-out. Ticket status values ("open", "pending",
// "closed") are rooms too, as is each ticket's own id.
const (
	RoomNotification = "notification"
)

// Event names on the wire.
const (
	EventTicket  = "ticket"
	EventMessage = "appMessage"
)

// Actions.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Event is one state change broadcast to subscribed agent sessions.
type Event struct {
	Name    string   `json:"name"`
	Action  string   `json:"action"`
	Rooms   []string `json:"-"` // routing only, not serialized
	Payload any      `json:"payload,omitempty"`
}

// Publisher fans out events to connected agent sessions.
type Publisher interface {
	Broadcast(ev Event)
}

// Nop is a Publisher that drops everything.
type Nop struct{}

func (Nop) Broadcast(Event) {}
