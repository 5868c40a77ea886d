package link

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func parseAll(t *testing.T, p *Parser, in []byte) (pkts []*Packet, errs []error) {
	for _, b := range in {
		pkt, err := p.Parse(b)
		if err != nil {
			errs = append(errs, err)
		}
		if pkt != nil {
			pkts = append(pkts, pkt)
		}
	}
	return
}

func TestParser(t *testing.T) {
	frame := func(index byte, data ...byte) []byte {
		return (&Packet{Index: index, Data: data}).Bytes()
	}
	join := func(parts ...[]byte) (out []byte) {
		for _, p := range parts {
			out = append(out, p...)
		}
		return
	}

	testCases := []struct {
		name    string
		in      []byte
		expect  []*Packet
		corrupt int
	}{
		{
			name:   "single",
			in:     frame(0x34, 'a', 'b'),
			expect: []*Packet{{Index: 0x34, Data: []byte{'a', 'b'}}},
		},
		{
			name:   "empty data",
			in:     frame(0x12),
			expect: []*Packet{{Index: 0x12}},
		},
		{
			name: "back to back",
			in:   join(frame(0x12, 1), frame(0x34, 2, 3)),
			expect: []*Packet{
				{Index: 0x12, Data: []byte{1}},
				{Index: 0x34, Data: []byte{2, 3}},
			},
		},
		{
			name:   "garbage before mark",
			in:     join([]byte{0x00, 0x41, 0x42}, frame(0x12, 9)),
			expect: []*Packet{{Index: 0x12, Data: []byte{9}}},
		},
		{
			name:    "bad checksum",
			in:      join([]byte{0x7e, 0x12, 1, 5, 0x00}, frame(0x34, 6)),
			expect:  []*Packet{{Index: 0x34, Data: []byte{6}}},
			corrupt: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var p Parser
			pkts, errs := parseAll(t, &p, tc.in)
			require.Len(t, errs, tc.corrupt)
			for _, err := range errs {
				var csErr *ChecksumError
				require.ErrorAs(t, err, &csErr)
			}
			require.Len(t, pkts, len(tc.expect))
			for n, pkt := range pkts {
				require.Equal(t, tc.expect[n].Index, pkt.Index)
				if len(tc.expect[n].Data) > 0 {
					require.Equal(t, tc.expect[n].Data, pkt.Data)
				} else {
					require.Empty(t, pkt.Data)
				}
			}
			require.False(t, p.Receiving())
		})
	}
}

func TestParserReset(t *testing.T) {
	var p Parser
	pkts, _ := parseAll(t, &p, []byte{0x7e, 0x12, 3, 1})
	require.Empty(t, pkts)
	require.True(t, p.Receiving())
	p.Reset()
	require.False(t, p.Receiving())
	pkts, errs := parseAll(t, &p, (&Packet{Index: 1, Data: []byte{2}}).Bytes())
	require.Empty(t, errs)
	require.Len(t, pkts, 1)
}
