// Package envelope provides the message structure shared by CommHub and
// the mesh. Every message that flows through the hub's pub/sub and
// request/reply API, and every message routed between actors, is carried
// inside an Envelope.
//
// Envelopes are immutable from the caller's point of view: mutation
// methods (AddHop) update the receiver in place, but no
// component other than the one currently holding the envelope should
// call them concurrently. Clone produces an independent copy when a
// component needs to hand off ownership across a boundary (e.g. hub
// history, mesh routing hops).
package envelope

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Priority orders CommHub delivery inside a mailbox; lower value drains first.
type Priority int

const (
	Critical   Priority = 0
	High       Priority = 1
	Normal     Priority = 2
	Low        Priority = 3
	Background Priority = 4
)

func (p Priority) String() string {
	switch p {
	case Critical:
		return "critical"
	case High:
		return "high"
	case Normal:
		return "normal"
	case Low:
		return "low"
	case Background:
		return "background"
	default:
		return "unknown"
	}
}

// Type distinguishes the mesh's ask/tell/reply discipline. CommHub messages
// leave Type at its zero value (Tell) and ignore it.
type Type int

const (
	Tell Type = iota
	Ask
	Reply
	ErrorReply
)

func (t Type) String() string {
	switch t {
	case Tell:
		return "tell"
	case Ask:
		return "ask"
	case Reply:
		return "reply"
	case ErrorReply:
		return "error-reply"
	default:
		return "unknown"
	}
}

// Broadcast is the wildcard recipient address and wildcard subscription topic.
const Broadcast = "*"

// Envelope is the immutable message record exchanged between agents.
type Envelope struct {
	ID            string      `json:"id"`
	From          string      `json:"from"`
	To            string      `json:"to"`
	Topic         string      `json:"topic,omitempty"`
	Payload       interface{} `json:"payload"`
	Priority      Priority    `json:"priority"`
	Type          Type        `json:"type,omitempty"`
	Correlation   string      `json:"correlation,omitempty"`
	TimestampUnix int64       `json:"timestamp"` // milliseconds since epoch
	TTL           int64       `json:"ttl,omitempty"` // milliseconds; 0 = no expiry
	Hops          []string    `json:"hops,omitempty"`
}

// New creates an envelope with a fresh ID and the current timestamp.
func New(from, to, topic string, payload interface{}, priority Priority) *Envelope {
	return &Envelope{
		ID:            uuid.New().String(),
		From:          from,
		To:            to,
		Topic:         topic,
		Payload:       payload,
		Priority:      priority,
		TimestampUnix: time.Now().UnixMilli(),
		Hops:          make([]string, 0),
	}
}

// NewAsk builds an envelope of type Ask, ready to be routed by the mesh
// router's Ask call. Correlation is left empty: the reply's Correlation
// carries this envelope's ID.
func NewAsk(from, to string, payload interface{}, priority Priority) *Envelope {
	e := New(from, to, "", payload, priority)
	e.Type = Ask
	return e
}

// NewReply constructs a reply envelope correlated to the original.
func NewReply(original *Envelope, from string, payload interface{}) *Envelope {
	reply := New(from, original.From, original.Topic, payload, original.Priority)
	reply.Type = Reply
	reply.Correlation = original.ID
	return reply
}

// NewErrorReply constructs an error-reply envelope correlated to the original.
func NewErrorReply(original *Envelope, from string, errMsg string) *Envelope {
	reply := New(from, original.From, original.Topic, errMsg, original.Priority)
	reply.Type = ErrorReply
	reply.Correlation = original.ID
	return reply
}

// AddHop appends addr to the route, recording that this envelope passed
// through it. Used by the router for loop detection (spec R2).
func (e *Envelope) AddHop(addr string) {
	e.Hops = append(e.Hops, addr)
}

// HasHop reports whether addr already appears in the route.
func (e *Envelope) HasHop(addr string) bool {
	for _, h := range e.Hops {
		if h == addr {
			return true
		}
	}
	return false
}

// Timestamp returns the creation time as a time.Time.
func (e *Envelope) Timestamp() time.Time {
	return time.UnixMilli(e.TimestampUnix)
}

// IsExpired reports whether the envelope has outlived its TTL, measured
// against the current time (spec P7).
func (e *Envelope) IsExpired() bool {
	if e.TTL <= 0 {
		return false
	}
	age := time.Since(e.Timestamp()).Milliseconds()
	return age > e.TTL
}

// Clone returns a deep copy safe to hand to a second owner (history
// ring, a second subscriber, ...).
func (e *Envelope) Clone() *Envelope {
	clone := *e
	if e.Hops != nil {
		clone.Hops = make([]string, len(e.Hops))
		copy(clone.Hops, e.Hops)
	}
	return &clone
}

// Validate checks the invariants required before an envelope may be routed
// (spec I2, I3).
func (e *Envelope) Validate() error {
	if e.ID == "" {
		return &ValidationError{Field: "id", Message: "envelope id is required"}
	}
	if e.From == "" {
		return &ValidationError{Field: "from", Message: "from address is required (I3)"}
	}
	if e.To == "" {
		return &ValidationError{Field: "to", Message: "to address is required"}
	}
	if e.Type == Reply && e.Correlation == "" {
		return &ValidationError{Field: "correlation", Message: "reply envelope must carry a correlation id (I2)"}
	}
	return nil
}

// ToJSON serializes the envelope. Payload is marshaled opaquely: the core
// never inspects its shape.
func (e *Envelope) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON deserializes an envelope.
func FromJSON(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// ValidationError reports a structurally invalid envelope.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
