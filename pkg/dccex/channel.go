package dccex

import (
	"io"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/dccex.go/pkg/framework"
	"github.com/robotalks/dccex.go/pkg/link"
	"github.com/robotalks/dccex.go/pkg/queue"
)

// DefaultCapacity is the default number of envelopes each queue holds.
const DefaultCapacity = 50

// Direction selects one of the queues of a Channel.
type Direction int

// Directions.
const (
	// Inbound holds envelopes received from the link, waiting to be processed.
	Inbound Direction = iota
	// Outbound holds envelopes waiting to be sent over the link.
	Outbound
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	switch d {
	case Inbound:
		return "inbound"
	case Outbound:
		return "outbound"
	}
	return "unknown"
}

// Transport is the framing layer used by a Channel.
// link.Packetizer implements it.
type Transport interface {
	// Subscribe registers the handler of frames with index.
	Subscribe(index byte, h link.PacketHandler)
	// Send transmits data in one frame tagged with index.
	Send(index byte, data []byte) error
	// Update delivers frames received since the last call to
	// subscribers, on the calling goroutine.
	Update() error
}

// State is the lifecycle state of a Channel.
type State int

// States.
const (
	StateUninitialized State = iota
	StateReady
	StateClosed
)

// Stats counts envelopes going through a Channel.
type Stats struct {
	Enqueued     uint64
	Sent         uint64
	Received     uint64
	Processed    uint64
	Dropped      uint64
	DecodeErrors uint64
	SendErrors   uint64
}

// Option configures a Channel.
type Option func(*Channel)

// WithCapacity sets the number of envelopes each queue holds.
func WithCapacity(capacity int) Option {
	return func(c *Channel) {
		c.capacity = capacity
	}
}

// Channel moves envelopes between its queues and a Transport.
//
// Inbound frames are queued from Transport.Update, which is only called
// from ServiceTick. Enqueue and EnqueueOutbound may be called from any
// goroutine. ServiceTick, DrainOutboundOnce and ProcessInboundOnce are
// serialized.
type Channel struct {
	role     Role
	capacity int

	// serviceLock serializes consumers of the queues.
	serviceLock sync.Mutex

	lock      sync.Mutex
	state     State
	transport Transport
	inbound   *queue.Bounded[Envelope]
	outbound  *queue.Bounded[Envelope]
	seq       uint64
	stats     Stats
}

// NewChannel creates a Channel for the role. Both queues are allocated
// here and never grow.
func NewChannel(role Role, opts ...Option) *Channel {
	c := &Channel{role: role, capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(c)
	}
	if c.capacity < 1 {
		c.capacity = DefaultCapacity
	}
	c.inbound = queue.NewWithCapacity[Envelope](c.capacity).Named(Inbound.String())
	c.outbound = queue.NewWithCapacity[Envelope](c.capacity).Named(Outbound.String())
	return c
}

// Role returns the role of the channel.
func (c *Channel) Role() Role {
	return c.role
}

// Capacity returns the number of envelopes each queue holds.
func (c *Channel) Capacity() int {
	return c.capacity
}

// State gets the lifecycle state.
func (c *Channel) State() State {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.state
}

// Setup binds the channel to the transport and subscribes to frames
// destined for this station. It must be called exactly once.
func (c *Channel) Setup(t Transport) error {
	if t == nil {
		return link.ErrNoTransport
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	switch c.state {
	case StateReady:
		return ErrAlreadySetup
	case StateClosed:
		return ErrClosed
	}
	glog.Infof("setting up %s channel ...", c.role.Name())
	c.transport = t
	t.Subscribe(c.role.RxIndex(), link.HandlePacketFunc(c.handlePacket))
	c.state = StateReady
	glog.Infof("%s channel ready, tx 0x%02x, rx 0x%02x", c.role.Name(), c.role.TxIndex(), c.role.RxIndex())
	return nil
}

// SetupSerial opens the serial port and sets up the channel on it.
// The returned Packetizer must be run to receive frames, AddToLoop
// does that.
func (c *Channel) SetupSerial(port string, baud int) (*link.Packetizer, error) {
	rw, err := link.OpenSerial(port, baud)
	if err != nil {
		return nil, err
	}
	p := link.NewPacketizer(rw)
	if err = c.Setup(p); err != nil {
		rw.Close()
		return nil, err
	}
	return p, nil
}

func (c *Channel) checkReady() error {
	switch c.state {
	case StateUninitialized:
		return ErrNotReady
	case StateClosed:
		return ErrClosed
	}
	return nil
}

func (c *Channel) queue(dir Direction) *queue.Bounded[Envelope] {
	switch dir {
	case Inbound:
		return c.inbound
	case Outbound:
		return c.outbound
	}
	return nil
}

func (c *Channel) nextSeq() uint64 {
	seq := c.seq
	c.seq++
	return seq
}

func (c *Channel) push(q *queue.Bounded[Envelope], env Envelope) error {
	if err := q.Push(env); err != nil {
		c.stats.Dropped++
		return err
	}
	c.stats.Enqueued++
	return nil
}

// EnqueueOutbound creates an envelope with the next sequence number and
// queues it for sending. queue.ErrFull is returned if it was dropped.
func (c *Channel) EnqueueOutbound(client int32, tag ProtocolTag, payload string) (Envelope, error) {
	env := NewEnvelope(client, tag, payload)
	c.lock.Lock()
	defer c.lock.Unlock()
	if err := c.checkReady(); err != nil {
		return env, err
	}
	env.Seq = c.nextSeq()
	glog.V(2).Infof("queuing %s", env)
	return env, c.push(c.outbound, env)
}

// Enqueue queues env in the given direction. The sequence number of env
// is replaced by the next one of the channel.
func (c *Channel) Enqueue(dir Direction, env Envelope) (Envelope, error) {
	env.Payload = truncate(env.Payload)
	c.lock.Lock()
	defer c.lock.Unlock()
	if err := c.checkReady(); err != nil {
		return env, err
	}
	q := c.queue(dir)
	if q == nil {
		glog.Errorf("cannot queue: direction %d must be inbound or outbound", int(dir))
		return env, ErrInvalidDirection
	}
	env.Seq = c.nextSeq()
	glog.V(2).Infof("queuing %s %s", dir, env)
	return env, c.push(q, env)
}

// QueueDepth returns the number of envelopes in the given queue.
func (c *Channel) QueueDepth(dir Direction) (int, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if err := c.checkReady(); err != nil {
		return 0, err
	}
	q := c.queue(dir)
	if q == nil {
		glog.Errorf("unknown queue %d, specify either inbound or outbound", int(dir))
		return 0, ErrInvalidDirection
	}
	return q.Size(), nil
}

// Stats returns a snapshot of counters.
func (c *Channel) Stats() Stats {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.stats
}

// DrainOutboundOnce sends at most one envelope from the outbound queue.
func (c *Channel) DrainOutboundOnce() (bool, error) {
	c.serviceLock.Lock()
	defer c.serviceLock.Unlock()
	return c.drainOutboundOnce()
}

func (c *Channel) drainOutboundOnce() (bool, error) {
	c.lock.Lock()
	if err := c.checkReady(); err != nil {
		c.lock.Unlock()
		return false, err
	}
	if c.outbound.IsEmpty() {
		c.lock.Unlock()
		return false, nil
	}
	env, _ := c.outbound.Pop()
	t, index := c.transport, c.role.TxIndex()
	c.lock.Unlock()

	glog.V(2).Infof("sending %s", env)
	data, err := env.MarshalBinary()
	if err == nil {
		err = t.Send(index, data)
	}
	c.lock.Lock()
	if err != nil {
		c.stats.SendErrors++
	} else {
		c.stats.Sent++
	}
	c.lock.Unlock()
	if err != nil {
		glog.Errorf("send %s failed: %v", env, err)
		return false, err
	}
	return true, nil
}

// ProcessInboundOnce processes at most one envelope from the inbound
// queue. A reply produced by the role is queued outbound.
func (c *Channel) ProcessInboundOnce() (bool, error) {
	c.serviceLock.Lock()
	defer c.serviceLock.Unlock()
	return c.processInboundOnce()
}

func (c *Channel) processInboundOnce() (bool, error) {
	c.lock.Lock()
	if err := c.checkReady(); err != nil {
		c.lock.Unlock()
		return false, err
	}
	if c.inbound.IsEmpty() {
		c.lock.Unlock()
		return false, nil
	}
	env, _ := c.inbound.Peek()
	c.lock.Unlock()

	var err error
	if reply, ok := c.role.HandleInbound(env); ok {
		_, err = c.EnqueueOutbound(reply.Client, reply.Tag, reply.Payload)
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	// Close may have discarded the queue while the role was running
	if c.state != StateReady {
		return false, ErrClosed
	}
	c.inbound.Pop()
	c.stats.Processed++
	return true, err
}

// ServiceTick drains one outbound envelope, processes one inbound
// envelope, then lets the transport deliver received frames.
// Failures are reported and returned, but never stop the tick.
func (c *Channel) ServiceTick() error {
	c.serviceLock.Lock()
	defer c.serviceLock.Unlock()
	c.lock.Lock()
	err := c.checkReady()
	t := c.transport
	c.lock.Unlock()
	if err != nil {
		return err
	}

	var errs fx.AggregatedError
	_, err = c.drainOutboundOnce()
	errs.Add(err)
	_, err = c.processInboundOnce()
	errs.Add(err)
	errs.Add(t.Update())
	return errs.Aggregate()
}

func (c *Channel) handlePacket(pkt *link.Packet) {
	var env Envelope
	if err := env.UnmarshalBinary(pkt.Data); err != nil {
		glog.Errorf("invalid envelope in frame 0x%02x: %v", pkt.Index, err)
		c.lock.Lock()
		c.stats.DecodeErrors++
		c.lock.Unlock()
		return
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.state != StateReady {
		return
	}
	c.stats.Received++
	glog.V(2).Infof("received %d: %s", c.inbound.Size(), env)
	if err := c.push(c.inbound, env); err != nil {
		glog.Errorf("inbound queue is full, %s has not been processed", env)
	}
}

// Close tears the channel down. Queued envelopes are discarded and the
// transport is closed if it implements io.Closer.
func (c *Channel) Close() error {
	c.lock.Lock()
	if c.state == StateClosed {
		c.lock.Unlock()
		return nil
	}
	t := c.transport
	c.state = StateClosed
	c.transport = nil
	c.inbound.Reset()
	c.outbound.Reset()
	c.lock.Unlock()

	if t == nil {
		return nil
	}
	t.Subscribe(c.role.RxIndex(), nil)
	glog.Infof("%s channel closed", c.role.Name())
	if closer, ok := t.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Control implements framework.Controller.
func (c *Channel) Control(fx.ControlContext) error {
	return c.ServiceTick()
}

// AddToLoop implements framework.LoopAdder. The transport is run in
// the background if it is a framework.Runnable.
func (c *Channel) AddToLoop(l *fx.Loop) {
	c.lock.Lock()
	t := c.transport
	c.lock.Unlock()
	if adder, ok := t.(fx.LoopAdder); ok {
		l.Add(adder)
	} else if runnable, ok := t.(fx.Runnable); ok {
		l.AddRunnable(fx.NamedRun("transport", runnable))
	}
	l.AddController(fx.PrLvLink, c)
}
