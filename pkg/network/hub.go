// Package network is the client facing layer of the network station.
package network

import (
	"errors"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/dccex.go/pkg/dccex"
)

// ErrEmptyCommand indicates nothing to submit.
var ErrEmptyCommand = errors.New("empty command")

// Client is a connection of a throttle or any other controller.
type Client interface {
	// Name is used for reporting.
	Name() string
	// Send delivers a reply to the client. It must not block.
	Send(payload string) error
}

// Enqueuer queues commands for the command station.
// dccex.Channel implements it.
type Enqueuer interface {
	EnqueueOutbound(client int32, tag dccex.ProtocolTag, payload string) (dccex.Envelope, error)
}

// Hub assigns client ids and routes replies back by id.
type Hub struct {
	Channel Enqueuer

	lock    sync.RWMutex
	clients map[int32]Client
	lastID  int32
}

// NewHub creates a Hub. Channel must be set before Submit.
func NewHub() *Hub {
	return &Hub{clients: make(map[int32]Client)}
}

// Register adds a client and returns its id.
func (h *Hub) Register(c Client) int32 {
	h.lock.Lock()
	defer h.lock.Unlock()
	for {
		h.lastID++
		if h.lastID <= 0 {
			h.lastID = 1
		}
		if _, exists := h.clients[h.lastID]; !exists {
			break
		}
	}
	h.clients[h.lastID] = c
	glog.Infof("client %d connected: %s", h.lastID, c.Name())
	return h.lastID
}

// Unregister removes a client.
func (h *Hub) Unregister(id int32) {
	h.lock.Lock()
	c, ok := h.clients[id]
	delete(h.clients, id)
	h.lock.Unlock()
	if ok {
		glog.Infof("client %d disconnected: %s", id, c.Name())
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.clients)
}

// Submit queues a command from the client.
func (h *Hub) Submit(id int32, payload string) error {
	tag := dccex.ClassifyPayload(payload)
	if tag == dccex.TagUnknown {
		return ErrEmptyCommand
	}
	_, err := h.Channel.EnqueueOutbound(id, tag, payload)
	return err
}

// Deliver implements dccex.ClientSink. Only REPLY envelopes are routed.
func (h *Hub) Deliver(env dccex.Envelope) {
	if env.Tag != dccex.TagReply {
		glog.Warningf("not a reply, dropped: %s", env)
		return
	}
	h.lock.RLock()
	c := h.clients[env.Client]
	h.lock.RUnlock()
	if c == nil {
		glog.Warningf("client %d is gone, reply dropped: %s", env.Client, env.Payload)
		return
	}
	if err := c.Send(env.Payload); err != nil {
		glog.Errorf("reply to client %d (%s) failed: %v", env.Client, c.Name(), err)
	}
}
