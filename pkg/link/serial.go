package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/jpillora/backoff"
	"go.bug.st/serial"
)

// Serial port defaults.
const (
	DefaultBaudRate         = 115200
	DefaultMaxRetryInterval = 10 * time.Second
)

// OpenSerial opens a serial port at the given speed.
func OpenSerial(port string, baud int) (io.ReadWriteCloser, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	p, err := serial.Open(port, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", port, err)
	}
	return p, nil
}

// Dialer opens a serial port, retrying with backoff.
type Dialer struct {
	Port             string
	BaudRate         int
	MaxRetryInterval time.Duration
	// MaxRetryCount limits attempts, negative for unlimited.
	MaxRetryCount int

	open func(string, int) (io.ReadWriteCloser, error)
}

// NewDialer creates a Dialer with defaults.
func NewDialer(port string, baud int) *Dialer {
	return &Dialer{
		Port:             port,
		BaudRate:         baud,
		MaxRetryInterval: DefaultMaxRetryInterval,
		MaxRetryCount:    -1,
	}
}

// Dial opens the port, retrying until it succeeds, the retry count
// is exhausted or ctx is done.
func (d *Dialer) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	open := d.open
	if open == nil {
		open = OpenSerial
	}
	maxInterval := d.MaxRetryInterval
	if maxInterval <= 0 {
		maxInterval = DefaultMaxRetryInterval
	}
	b := &backoff.Backoff{Min: 100 * time.Millisecond, Max: maxInterval}
	for {
		rw, err := open(d.Port, d.BaudRate)
		if err == nil {
			return rw, nil
		}
		attempt := int(b.Attempt())
		if d.MaxRetryCount >= 0 && attempt >= d.MaxRetryCount {
			return nil, err
		}
		dur := b.Duration()
		glog.Warningf("%v (attempt %d), retrying in %s", err, attempt+1, dur)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(dur):
		}
	}
}

// ErrNotConnected is returned by Redialer.Write while the port is
// being reopened.
var ErrNotConnected = errors.New("serial port not connected")

// Redialer is a serial connection which reopens the port with the
// Dialer whenever reading fails. Read only returns an error when the
// Dialer gives up or the Redialer is closed.
type Redialer struct {
	Dialer *Dialer

	ctx    context.Context
	cancel context.CancelFunc

	lock sync.Mutex
	port io.ReadWriteCloser
}

// NewRedialer creates a Redialer. The port is opened by the first Read.
func NewRedialer(d *Dialer) *Redialer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Redialer{Dialer: d, ctx: ctx, cancel: cancel}
}

func (r *Redialer) current() (io.ReadWriteCloser, error) {
	r.lock.Lock()
	port := r.port
	r.lock.Unlock()
	if port != nil {
		return port, nil
	}
	port, err := r.Dialer.Dial(r.ctx)
	if err != nil {
		return nil, err
	}
	r.lock.Lock()
	if err = r.ctx.Err(); err != nil {
		r.lock.Unlock()
		port.Close()
		return nil, err
	}
	r.port = port
	r.lock.Unlock()
	glog.Infof("serial %s connected", r.Dialer.Port)
	return port, nil
}

func (r *Redialer) drop(port io.ReadWriteCloser, err error) {
	r.lock.Lock()
	current := r.port == port
	if current {
		r.port = nil
	}
	r.lock.Unlock()
	if current {
		glog.Warningf("serial %s lost: %v", r.Dialer.Port, err)
		port.Close()
	}
}

// Read implements io.Reader.
func (r *Redialer) Read(p []byte) (int, error) {
	for {
		port, err := r.current()
		if err != nil {
			return 0, err
		}
		n, err := port.Read(p)
		if err != nil {
			r.drop(port, err)
		}
		if n > 0 || err == nil {
			return n, nil
		}
		if err = r.ctx.Err(); err != nil {
			return 0, err
		}
	}
}

// Write implements io.Writer. Nothing is buffered while the port is
// down.
func (r *Redialer) Write(p []byte) (int, error) {
	r.lock.Lock()
	port := r.port
	r.lock.Unlock()
	if port == nil {
		return 0, ErrNotConnected
	}
	n, err := port.Write(p)
	if err != nil {
		r.drop(port, err)
	}
	return n, err
}

// Close implements io.Closer.
func (r *Redialer) Close() error {
	r.cancel()
	r.lock.Lock()
	port := r.port
	r.port = nil
	r.lock.Unlock()
	if port != nil {
		return port.Close()
	}
	return nil
}
