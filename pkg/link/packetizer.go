package link

import (
	"context"
	"io"
	"sync"

	"github.com/golang/glog"
)

// PacketHandler is called when a packet is received.
type PacketHandler interface {
	HandlePacket(*Packet)
}

// HandlePacketFunc is func type of PacketHandler.
type HandlePacketFunc func(*Packet)

// HandlePacket implements PacketHandler.
func (f HandlePacketFunc) HandlePacket(pkt *Packet) {
	f(pkt)
}

// DefaultBacklog is the default number of received frames held
// until the next Update.
const DefaultBacklog = 16

// Packetizer sends frames and dispatches received frames to
// subscribers by index.
//
// Run reads and parses in the background. Subscribers are only
// invoked from Update, on the goroutine calling it.
type Packetizer struct {
	ReadWriter io.ReadWriter
	Backlog    int

	subs     map[byte]PacketHandler
	subsLock sync.RWMutex
	sendLock sync.Mutex

	initOnce sync.Once
	frames   chan *Packet
	errLock  sync.Mutex
	err      error
}

// NewPacketizer creates a Packetizer.
func NewPacketizer(rw io.ReadWriter) *Packetizer {
	return &Packetizer{ReadWriter: rw, Backlog: DefaultBacklog}
}

func (p *Packetizer) init() {
	p.initOnce.Do(func() {
		backlog := p.Backlog
		if backlog <= 0 {
			backlog = DefaultBacklog
		}
		p.frames = make(chan *Packet, backlog)
	})
}

// Subscribe registers the handler for frames with index.
// A nil handler removes the subscription.
func (p *Packetizer) Subscribe(index byte, h PacketHandler) {
	p.subsLock.Lock()
	defer p.subsLock.Unlock()
	if p.subs == nil {
		p.subs = make(map[byte]PacketHandler)
	}
	if h == nil {
		delete(p.subs, index)
		return
	}
	p.subs[index] = h
}

// Send writes data as one frame with index.
func (p *Packetizer) Send(index byte, data []byte) error {
	if p.ReadWriter == nil {
		return ErrNoTransport
	}
	pkt := &Packet{Index: index, Data: data}
	p.sendLock.Lock()
	defer p.sendLock.Unlock()
	_, err := pkt.WriteTo(p.ReadWriter)
	return err
}

// Update dispatches received frames to subscribers without blocking.
// It returns the error that stopped the reader, if any.
func (p *Packetizer) Update() error {
	p.init()
	for {
		select {
		case pkt := <-p.frames:
			p.dispatch(pkt)
		default:
			return p.Err()
		}
	}
}

// Err returns the error that stopped Run.
func (p *Packetizer) Err() error {
	p.errLock.Lock()
	defer p.errLock.Unlock()
	return p.err
}

func (p *Packetizer) dispatch(pkt *Packet) {
	p.subsLock.RLock()
	h := p.subs[pkt.Index]
	p.subsLock.RUnlock()
	if h == nil {
		glog.V(2).Infof("no subscriber for frame 0x%02x, dropped", pkt.Index)
		return
	}
	h.HandlePacket(pkt)
}

// Run reads from ReadWriter until it fails or ctx is done.
func (p *Packetizer) Run(ctx context.Context) (err error) {
	p.init()
	if p.ReadWriter == nil {
		return ErrNoTransport
	}
	defer func() {
		if err != nil && err != context.Canceled {
			p.errLock.Lock()
			p.err = err
			p.errLock.Unlock()
		}
	}()

	chunkCh, errCh := make(chan []byte), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go p.readLoop(subCtx, chunkCh, errCh)

	var parser Parser
	for {
		select {
		case chunk := <-chunkCh:
			for _, b := range chunk {
				pkt, perr := parser.Parse(b)
				if perr != nil {
					glog.Warningf("frame dropped: %v", perr)
					continue
				}
				if pkt == nil {
					continue
				}
				select {
				case p.frames <- pkt:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		case err = <-errCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Packetizer) readLoop(ctx context.Context, chunkCh chan []byte, errCh chan error) {
	buf := make([]byte, 64)
	for {
		n, err := p.ReadWriter.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case chunkCh <- chunk:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			errCh <- err
			return
		}
	}
}

// Close implements io.Closer.
func (p *Packetizer) Close() error {
	if closer, ok := p.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
