package dccex

import (
	"fmt"

	"github.com/golang/glog"
)

// Link indices route frames to the station they are destined for.
const (
	// IndexToNetwork tags frames sent by the command station.
	IndexToNetwork byte = 0x34
	// IndexToCommandStation tags frames sent by the network station.
	IndexToCommandStation byte = 0x12
)

// Role is the station specific behavior of a Channel.
type Role interface {
	// Name is used for reporting.
	Name() string
	// TxIndex is the link index of frames this station sends.
	TxIndex() byte
	// RxIndex is the link index of frames this station receives.
	RxIndex() byte
	// HandleInbound processes an envelope received from the other
	// station and optionally returns a reply to be queued outbound.
	HandleInbound(Envelope) (reply Envelope, ok bool)
}

// ClientSink receives envelopes destined for network clients.
type ClientSink interface {
	Deliver(Envelope)
}

// DeliverFunc is func type of ClientSink.
type DeliverFunc func(Envelope)

// Deliver implements ClientSink.
func (f DeliverFunc) Deliver(env Envelope) {
	f(env)
}

// NetworkStation is the role of the network facing unit. Envelopes
// received from the command station are passed to Sink.
type NetworkStation struct {
	Sink ClientSink
}

// Name implements Role.
func (r *NetworkStation) Name() string { return "network" }

// TxIndex implements Role.
func (r *NetworkStation) TxIndex() byte { return IndexToCommandStation }

// RxIndex implements Role.
func (r *NetworkStation) RxIndex() byte { return IndexToNetwork }

// HandleInbound implements Role.
func (r *NetworkStation) HandleInbound(env Envelope) (Envelope, bool) {
	glog.V(1).Infof("processing message from CS: %s", env.Payload)
	if r.Sink != nil {
		r.Sink.Deliver(env)
	}
	return Envelope{}, false
}

// CommandStation is the role of the command station facing unit.
// Every envelope received is answered with a REPLY envelope for the
// same client.
type CommandStation struct {
	// Execute runs the command and returns the reply text.
	// If nil, the reply echoes the client, sequence and payload.
	Execute func(Envelope) string
}

// Name implements Role.
func (r *CommandStation) Name() string { return "command-station" }

// TxIndex implements Role.
func (r *CommandStation) TxIndex() byte { return IndexToNetwork }

// RxIndex implements Role.
func (r *CommandStation) RxIndex() byte { return IndexToCommandStation }

// HandleInbound implements Role.
func (r *CommandStation) HandleInbound(env Envelope) (Envelope, bool) {
	glog.V(1).Infof("processing message from NW: %s", env.Payload)
	var payload string
	if r.Execute != nil {
		payload = r.Execute(env)
	} else {
		payload = fmt.Sprintf("reply from CS: %d:%d:%s", env.Client, env.Seq, env.Payload)
	}
	return NewEnvelope(env.Client, TagReply, payload), true
}
