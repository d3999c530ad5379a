package core

// Client is one connection as seen by the session coordinator. A client
// is bound to at most one room at a time.
type Client struct {
	ID     string // connection id
	UserID string
	Name   string // display name
	Guest  bool
	Events chan *Event
}

// NewClient constructs a client with an initialized event channel.
func NewClient(id, userID, name string, guest bool) *Client {
	if name == "" {
		name = userID
	}
	return &Client{
		ID:     id,
		UserID: userID,
		Name:   name,
		Guest:  guest,
		Events: make(chan *Event, 32),
	}
}

// send delivers an event to the client without blocking the caller.
func (c *Client) send(event *Event) {
	select {
	case c.Events <- event:
	default:
		// Drop if slow consumer.
	}
}
