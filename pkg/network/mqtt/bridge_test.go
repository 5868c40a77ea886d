package mqtt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/dccex.go/pkg/dccex"
	"github.com/robotalks/dccex.go/pkg/network"
)

type enqueued struct {
	client  int32
	tag     dccex.ProtocolTag
	payload string
}

type recorder struct {
	items []enqueued
}

func (r *recorder) EnqueueOutbound(client int32, tag dccex.ProtocolTag, payload string) (dccex.Envelope, error) {
	r.items = append(r.items, enqueued{client, tag, payload})
	return dccex.NewEnvelope(client, tag, payload), nil
}

func TestBridgeHandleCommand(t *testing.T) {
	rec := &recorder{}
	hub := network.NewHub()
	hub.Channel = rec
	b, err := NewBridge("mqtt://localhost:1883/dccex/", "dccex:test", hub)
	require.NoError(t, err)
	require.Equal(t, "dccex/", b.Queue.TopicPrefix)

	b.HandleCommand("cmd/t1", []byte("<t 1 3 20 1>\n"))
	b.HandleCommand("cmd/t2", []byte("#ping"))
	b.HandleCommand("cmd/t1", []byte("<0>"))
	b.HandleCommand("cmd/t1", []byte(""))
	b.HandleCommand("status", []byte("<1>"))

	require.Equal(t, []enqueued{
		{1, dccex.TagDCCEX, "<t 1 3 20 1>"},
		{2, dccex.TagControl, "#ping"},
		{1, dccex.TagDCCEX, "<0>"},
	}, rec.items)
	require.Equal(t, 2, hub.Len())

	b.reset()
	require.Zero(t, hub.Len())
}
