package mqtt

import (
	"context"
	"strings"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/dccex.go/pkg/network"
)

// Topics relative to the prefix of the broker URL.
const (
	CommandTopics = "cmd/+"
	ReplyTopic    = "reply/"
	StatusTopic   = "status"
)

// Bridge turns each topic cmd/<name> into a client of the Hub.
// Replies to the client are published on reply/<name>.
type Bridge struct {
	Queue *Queue
	Hub   *network.Hub

	lock    sync.Mutex
	clients map[string]int32
}

type topicClient struct {
	queue *Queue
	name  string
}

func (c *topicClient) Name() string {
	return "mqtt:" + c.name
}

func (c *topicClient) Send(payload string) error {
	// not waiting on the token, Deliver must not block
	c.queue.Pub(ReplyTopic+c.name, []byte(payload))
	return nil
}

// NewBridge creates a Bridge connecting to brokerURL. clientID is used
// unless the URL specifies one.
func NewBridge(brokerURL, clientID string, hub *network.Hub) (*Bridge, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	if opts.ClientID == "" {
		opts.SetClientID(clientID)
	}
	opts.SetBinaryWill(topicPrefix+StatusTopic, []byte("offline"), 1, true)
	b := &Bridge{
		Queue:   NewQueue(opts, topicPrefix),
		Hub:     hub,
		clients: make(map[string]int32),
	}
	b.Queue.OnConnect = func(q *Queue) {
		q.PubWith(StatusTopic, []byte("online"), 1, true)
	}
	return b, nil
}

// Name implements framework.Named.
func (b *Bridge) Name() string {
	return "mqtt"
}

// Run implements framework.Runnable.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.Queue.Sub(CommandTopics, b.HandleCommand)
	token := b.Queue.Connect()
	if token.Wait() && token.Error() != nil {
		glog.Errorf("mqtt connect failed: %v", token.Error())
		return token.Error()
	}
	<-ctx.Done()
	b.Queue.PubWith(StatusTopic, []byte("offline"), 1, true).Wait()
	sub.Close()
	b.Queue.Close()
	b.reset()
	return ctx.Err()
}

// HandleCommand submits payload received on cmd/<name>.
func (b *Bridge) HandleCommand(topic string, payload []byte) {
	name := strings.TrimPrefix(topic, "cmd/")
	if name == "" || name == topic {
		glog.Warningf("mqtt command on unexpected topic %q", topic)
		return
	}
	id := b.clientID(name)
	if err := b.Hub.Submit(id, strings.TrimSpace(string(payload))); err != nil {
		glog.Errorf("mqtt command from %s rejected: %v", name, err)
		b.Queue.Pub(ReplyTopic+name, []byte("error: "+err.Error()))
	}
}

func (b *Bridge) clientID(name string) int32 {
	b.lock.Lock()
	defer b.lock.Unlock()
	id, ok := b.clients[name]
	if !ok {
		id = b.Hub.Register(&topicClient{queue: b.Queue, name: name})
		b.clients[name] = id
	}
	return id
}

func (b *Bridge) reset() {
	b.lock.Lock()
	defer b.lock.Unlock()
	for name, id := range b.clients {
		b.Hub.Unregister(id)
		delete(b.clients, name)
	}
}
