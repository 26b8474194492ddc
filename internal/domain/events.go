package domain

// Outbound event names. Clients receive these as {"event": name, "data": payload}.
const (
	EventConnected                = "connected"
	EventInitialData              = "initialData"
	EventVitalsUpdate             = "vitalsUpdate"
	EventPatientRemoved           = "patientRemoved"
	EventNewPost                  = "newPost"
	EventPostUpdated              = "postUpdated"
	EventCommunityMessage         = "communityMessage"
	EventConnectionUpdate         = "connectionUpdate"
	EventSwitchToPrivateCommunity = "switchToPrivateCommunity"
	EventSeriousAlarm             = "seriousAlarm"
	EventError                    = "error"
)

// Event is one outbound broadcast. TargetUser, when set, restricts
// delivery to connections identified as that user; otherwise the event
// goes to every connected client. Delivery is at-most-once per
// connection: clients joining after emission never see it.
type Event struct {
	Name       string `json:"event"`
	Data       any    `json:"data"`
	TargetUser string `json:"-"`
}

// NewEvent builds a broadcast-to-all event.
func NewEvent(name string, data any) Event {
	return Event{Name: name, Data: data}
}

// TargetedEvent builds an event delivered only to the given user's
// connections.
func TargetedEvent(name string, user string, data any) Event {
	return Event{Name: name, Data: data, TargetUser: user}
}

// ErrorEvent wraps a failure message in the error event envelope.
func ErrorEvent(message string) Event {
	return Event{Name: EventError, Data: map[string]string{"message": message}}
}

// Broadcaster delivers outbound events to connected clients. Implemented
// by the websocket hub; handlers and the simulator depend only on this.
type Broadcaster interface {
	// Broadcast fans the event out to every connected client, or to the
	// target user's connections when the event carries one.
	Broadcast(event Event)
}
