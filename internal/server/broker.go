package server

import (
	"context"
	"errors"
	"sync"
)

// Envelope kinds.
const (
	KindDeliver       = "deliver"
	KindAddMembers    = "addMembers"
	KindRemoveMembers = "removeMembers"
	KindDropRoom      = "dropRoom"
)

var ErrBrokerClosed = errors.New("broker closed")

// Envelope is a room operation fanned out to every server instance.
type Envelope struct {
	Kind    string         `json:"kind"`
	RoomId  string         `json:"room_id"`
	UserIds []string       `json:"user_ids,omitempty"`
	Message *ServerMessage `json:"message,omitempty"`
}

// Broker carries envelopes between the publishing side and the hub loops
// of all instances.
type Broker interface {
	Publish(ctx context.Context, env Envelope) error
	// Envelopes returns the stream consumed by the hub.
	Envelopes() <-chan Envelope
	Close() error
}

// LocalBroker delivers envelopes within the process.
type LocalBroker struct {
	ch        chan Envelope
	done      chan struct{}
	closeOnce sync.Once
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{
		ch:   make(chan Envelope, 256),
		done: make(chan struct{}),
	}
}

func (b *LocalBroker) Publish(ctx context.Context, env Envelope) error {
	select {
	case <-b.done:
		return ErrBrokerClosed
	default:
	}

	select {
	case b.ch <- env:
		return nil
	case <-b.done:
		return ErrBrokerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *LocalBroker) Envelopes() <-chan Envelope {
	return b.ch
}

// Close stops accepting envelopes. The stream is not closed because
// publishers may still be racing with Close; the hub stops on its own
// stop signal.
func (b *LocalBroker) Close() error {
	b.closeOnce.Do(func() { close(b.done) })
	return nil
}
