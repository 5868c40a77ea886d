package link

import (
	"io"
)

const (
	frameMark byte = 0x7e

	// MaxDataSize is the maximum number of data bytes in one frame.
	MaxDataSize = 0xff
)

// Packet is the content of one frame.
type Packet struct {
	Index byte
	Data  []byte
}

func (p *Packet) checksum() byte {
	sum := p.Index ^ byte(len(p.Data))
	for _, b := range p.Data {
		sum ^= b
	}
	return sum
}

// Bytes returns encoded bytes for sending.
func (p *Packet) Bytes() []byte {
	b := make([]byte, len(p.Data)+4)
	b[0], b[1], b[2] = frameMark, p.Index, byte(len(p.Data))
	copy(b[3:], p.Data)
	b[len(b)-1] = p.checksum()
	return b
}

// WriteTo writes the encoded frame.
func (p *Packet) WriteTo(w io.Writer) (int64, error) {
	if len(p.Data) > MaxDataSize {
		return 0, ErrFrameTooLarge
	}
	n, err := w.Write(p.Bytes())
	return int64(n), err
}
