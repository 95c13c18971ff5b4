package domain

// EventType names a record in the output stream
type EventType string

const (
	EventStatusUpdate EventType = "charger_status_update"
	EventRemoved      EventType = "charger_removed"
	EventAppeared     EventType = "charger_appeared"
)

// Event is one self-contained record of the output stream.
// Removed and appeared events carry IP, status updates carry Data.
type Event struct {
	Type     EventType   `json:"event"`
	IP       string      `json:"ip,omitempty"`
	Hostname string      `json:"hostname,omitempty"`
	Data     *DeviceInfo `json:"data,omitempty"`
}

// StatusUpdate returns a charger_status_update event for info
func StatusUpdate(info DeviceInfo) Event {
	return Event{Type: EventStatusUpdate, Data: &info}
}

// Removed returns a charger_removed event for addr
func Removed(addr string) Event {
	return Event{Type: EventRemoved, IP: addr}
}

// Appeared returns a charger_appeared event for unit
func Appeared(unit Unit) Event {
	return Event{Type: EventAppeared, IP: unit.Address, Hostname: unit.DisplayHostname()}
}

// Address returns the charger address the event refers to
func (e Event) Address() string {
	if e.Data != nil {
		return e.Data.IP
	}
	return e.IP
}
