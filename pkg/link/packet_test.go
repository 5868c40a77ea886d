package link

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPacket(t *testing.T) {
	testCases := []struct {
		name   string
		packet Packet
		expect []byte
	}{
		{"no data", Packet{Index: 0x12}, []byte{0x7e, 0x12, 0, 0x12}},
		{"small data", Packet{Index: 0x34, Data: []byte{1}}, []byte{0x7e, 0x34, 1, 1, 0x34}},
		{"data", Packet{Index: 0x34, Data: []byte{1, 2, 3}}, []byte{0x7e, 0x34, 3, 1, 2, 3, 0x34 ^ 3 ^ 1 ^ 2 ^ 3}},
		{"mark in data", Packet{Index: 0x12, Data: []byte{0x7e}}, []byte{0x7e, 0x12, 1, 0x7e, 0x12 ^ 1 ^ 0x7e}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, tc.packet.Bytes())
			var buf bytes.Buffer
			n, err := tc.packet.WriteTo(&buf)
			require.NoError(t, err)
			require.Equal(t, tc.expect, buf.Bytes())
			require.Equal(t, int64(len(tc.expect)), n)
		})
	}
}

func TestPacketTooLarge(t *testing.T) {
	pkt := &Packet{Index: 1, Data: make([]byte, MaxDataSize+1)}
	var buf bytes.Buffer
	_, err := pkt.WriteTo(&buf)
	require.ErrorIs(t, err, ErrFrameTooLarge)
	require.Zero(t, buf.Len())
}
