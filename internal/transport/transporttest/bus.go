// Package transporttest provides an in-memory Bus for testing components
// that talk to the server. Events and acknowledgments are delivered
// synchronously on the caller's goroutine, mirroring the real dispatcher's
// one-at-a-time guarantee.
package transporttest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/animeshcode007/quizerr-go-client/internal/transport"
)

// Request records one emitted event and, when acknowledged, its pending
// callback.
type Request struct {
	Event   string
	Payload json.RawMessage
	ack     transport.AckHandler
	settled bool
}

// Bus is a scriptable in-memory transport.Bus.
type Bus struct {
	SessionID string
	Online    bool

	nextSub  int
	handlers map[string]map[string]transport.Handler
	requests []*Request
}

// New returns a connected fake bus with the given session id.
func New(sessionID string) *Bus {
	return &Bus{
		SessionID: sessionID,
		Online:    true,
		handlers:  make(map[string]map[string]transport.Handler),
	}
}

func (b *Bus) ID() string {
	if !b.Online {
		return ""
	}
	return b.SessionID
}

func (b *Bus) Connected() bool { return b.Online }

func (b *Bus) On(event string, h transport.Handler) transport.Subscription {
	b.nextSub++
	id := fmt.Sprintf("sub-%d", b.nextSub)
	if b.handlers[event] == nil {
		b.handlers[event] = make(map[string]transport.Handler)
	}
	b.handlers[event][id] = h
	return transport.NewSubscription(event, id)
}

func (b *Bus) Off(sub transport.Subscription) {
	if hs, ok := b.handlers[sub.Event]; ok {
		delete(hs, sub.SubID())
	}
}

func (b *Bus) Emit(event string, payload any) error {
	if !b.Online {
		return transport.ErrNotConnected
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	b.requests = append(b.requests, &Request{Event: event, Payload: data, settled: true})
	return nil
}

func (b *Bus) EmitWithAck(event string, payload any, ack transport.AckHandler) error {
	if !b.Online {
		return transport.ErrNotConnected
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	b.requests = append(b.requests, &Request{Event: event, Payload: data, ack: ack})
	return nil
}

// Connect/Close let the fake satisfy connector-style interfaces.
func (b *Bus) Connect(context.Context) error { b.Online = true; return nil }
func (b *Bus) Close() error                  { b.Online = false; return nil }

// Push delivers a server push event to every subscribed handler.
func (b *Bus) Push(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	for _, h := range b.snapshot(event) {
		h(data)
	}
}

// PushRaw delivers a pre-encoded payload, for malformed-input tests.
func (b *Bus) PushRaw(event string, data json.RawMessage) {
	for _, h := range b.snapshot(event) {
		h(data)
	}
}

func (b *Bus) snapshot(event string) []transport.Handler {
	hs := make([]transport.Handler, 0, len(b.handlers[event]))
	for _, h := range b.handlers[event] {
		hs = append(hs, h)
	}
	return hs
}

// HandlerCount reports how many handlers are subscribed for event.
func (b *Bus) HandlerCount(event string) int { return len(b.handlers[event]) }

// Requests returns every request emitted for event, in order.
func (b *Bus) Requests(event string) []*Request {
	var out []*Request
	for _, r := range b.requests {
		if r.Event == event {
			out = append(out, r)
		}
	}
	return out
}

// LastRequest returns the most recent unsettled request for event, or nil.
func (b *Bus) LastRequest(event string) *Request {
	reqs := b.Requests(event)
	for i := len(reqs) - 1; i >= 0; i-- {
		if !reqs[i].settled {
			return reqs[i]
		}
	}
	return nil
}

// Ack resolves the oldest unsettled request for event with payload.
func (b *Bus) Ack(event string, payload any) {
	r := b.oldestPending(event)
	if r == nil {
		panic(fmt.Sprintf("transporttest: no pending request for %q", event))
	}
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	r.settled = true
	r.ack(data, nil)
}

// FailAck fails the oldest unsettled request for event, as an ack timeout
// or dropped connection would.
func (b *Bus) FailAck(event string, err error) {
	r := b.oldestPending(event)
	if r == nil {
		panic(fmt.Sprintf("transporttest: no pending request for %q", event))
	}
	r.settled = true
	r.ack(nil, err)
}

// Unmarshal decodes the request payload into v.
func (r *Request) Unmarshal(v any) error { return json.Unmarshal(r.Payload, v) }

func (b *Bus) oldestPending(event string) *Request {
	for _, r := range b.requests {
		if r.Event == event && !r.settled && r.ack != nil {
			return r
		}
	}
	return nil
}
