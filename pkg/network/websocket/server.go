// Package websocket accepts throttles over websocket connections.
// Each text message is one command, each reply is sent back as one
// text message.
package websocket

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	fx "github.com/robotalks/dccex.go/pkg/framework"
	"github.com/robotalks/dccex.go/pkg/network"
)

// DefaultBacklog is the number of replies buffered per connection.
const DefaultBacklog = 16

var errBacklogFull = errors.New("reply backlog full")

// Server serves websocket clients of a Hub.
type Server struct {
	Addr    string
	Hub     *network.Hub
	Backlog int
}

// NewServer creates a Server listening on addr.
func NewServer(addr string, hub *network.Hub) *Server {
	return &Server{Addr: addr, Hub: hub, Backlog: DefaultBacklog}
}

type conn struct {
	ws      *websocket.Conn
	replies chan string
	done    chan struct{}
}

func (c *conn) Name() string {
	return "ws:" + c.ws.Request().RemoteAddr
}

func (c *conn) Send(payload string) error {
	select {
	case <-c.done:
		return net.ErrClosed
	case c.replies <- payload:
		return nil
	default:
		return errBacklogFull
	}
}

func (c *conn) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.replies:
			if err := websocket.Message.Send(c.ws, payload); err != nil {
				glog.Errorf("%s write error: %v", c.Name(), err)
				c.ws.Close()
				return
			}
		}
	}
}

// Handler returns the websocket handler.
func (s *Server) Handler() http.Handler {
	return websocket.Handler(s.serve)
}

func (s *Server) serve(ws *websocket.Conn) {
	backlog := s.Backlog
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	c := &conn{ws: ws, replies: make(chan string, backlog), done: make(chan struct{})}
	id := s.Hub.Register(c)
	defer func() {
		s.Hub.Unregister(id)
		close(c.done)
	}()
	go c.writeLoop()
	for {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			glog.V(1).Infof("%s closed: %v", c.Name(), err)
			return
		}
		if err := s.Hub.Submit(id, strings.TrimSpace(msg)); err != nil {
			glog.Errorf("%s command rejected: %v", c.Name(), err)
			c.Send("error: " + err.Error())
		}
	}
}

// Name implements framework.Named.
func (s *Server) Name() string {
	return "websocket"
}

// Run implements framework.Runnable.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/", s.Handler())
	server := &http.Server{Addr: s.Addr, Handler: mux}
	glog.Infof("websocket listening on %s", s.Addr)
	err := fx.RunWithContextCloser(ctx, server, server.ListenAndServe)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
