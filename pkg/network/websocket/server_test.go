package websocket

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/robotalks/dccex.go/pkg/dccex"
	"github.com/robotalks/dccex.go/pkg/network"
)

type recorder struct {
	lock sync.Mutex
	envs []dccex.Envelope
}

func (r *recorder) EnqueueOutbound(client int32, tag dccex.ProtocolTag, payload string) (dccex.Envelope, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	env := dccex.NewEnvelope(client, tag, payload)
	r.envs = append(r.envs, env)
	return env, nil
}

func (r *recorder) snapshot() []dccex.Envelope {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]dccex.Envelope(nil), r.envs...)
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	ws, err := websocket.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), "", "http://localhost/")
	require.NoError(t, err)
	return ws
}

func TestServerRoundTrip(t *testing.T) {
	rec := &recorder{}
	hub := network.NewHub()
	hub.Channel = rec
	srv := httptest.NewServer(NewServer("", hub).Handler())
	defer srv.Close()

	ws := dial(t, srv)
	defer ws.Close()
	require.NoError(t, websocket.Message.Send(ws, "<t 1 3 20 1>"))
	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 1
	}, time.Second, time.Millisecond)
	env := rec.snapshot()[0]
	require.Equal(t, dccex.TagDCCEX, env.Tag)
	require.Equal(t, "<t 1 3 20 1>", env.Payload)

	hub.Deliver(dccex.Envelope{Client: env.Client, Tag: dccex.TagReply, Payload: "reply from CS: 1:0:<t 1 3 20 1>"})
	var reply string
	ws.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, websocket.Message.Receive(ws, &reply))
	require.Equal(t, "reply from CS: 1:0:<t 1 3 20 1>", reply)

	require.NoError(t, websocket.Message.Send(ws, "  "))
	require.NoError(t, websocket.Message.Receive(ws, &reply))
	require.Equal(t, "error: "+network.ErrEmptyCommand.Error(), reply)
}

func TestServerUnregistersOnClose(t *testing.T) {
	hub := network.NewHub()
	hub.Channel = &recorder{}
	srv := httptest.NewServer(NewServer("", hub).Handler())
	defer srv.Close()

	ws1, ws2 := dial(t, srv), dial(t, srv)
	require.Eventually(t, func() bool { return hub.Len() == 2 }, time.Second, time.Millisecond)
	ws1.Close()
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, time.Millisecond)
	ws2.Close()
	require.Eventually(t, func() bool { return hub.Len() == 0 }, time.Second, time.Millisecond)
}
