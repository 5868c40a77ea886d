package link

// Parser parses bytes received into packets.
type Parser struct {
	state   parseState
	packet  *Packet
	recvLen int
}

type parseState int

const (
	stateMark     parseState = iota // waiting for frameMark
	stateIndex                      // waiting for index
	stateLen                        // waiting for data length
	stateData                       // waiting for data
	stateChecksum                   // waiting for checksum
)

// Receiving indicates it's in the middle of a frame.
func (p *Parser) Receiving() bool {
	return p.state != stateMark
}

// Reset drops any partially received frame.
func (p *Parser) Reset() {
	p.state, p.packet, p.recvLen = stateMark, nil, 0
}

// Parse consumes one byte. A packet is returned once a frame completes.
// A *ChecksumError is returned if the frame is corrupted; the parser is
// then ready for the next frame.
func (p *Parser) Parse(b byte) (*Packet, error) {
	switch p.state {
	case stateMark:
		if b == frameMark {
			p.state = stateIndex
		}
	case stateIndex:
		p.packet = &Packet{Index: b}
		p.state = stateLen
	case stateLen:
		if b == 0 {
			p.state = stateChecksum
			break
		}
		p.packet.Data, p.recvLen = make([]byte, b), 0
		p.state = stateData
	case stateData:
		p.packet.Data[p.recvLen] = b
		p.recvLen++
		if p.recvLen >= len(p.packet.Data) {
			p.state = stateChecksum
		}
	case stateChecksum:
		pkt := p.packet
		p.Reset()
		if sum := pkt.checksum(); sum != b {
			return nil, &ChecksumError{Index: pkt.Index, Expected: sum, Actual: b}
		}
		return pkt, nil
	}
	return nil, nil
}
