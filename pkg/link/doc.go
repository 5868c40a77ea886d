// Package link provides the framing layer of the serial link between
// the network station and the command station.
package link

// Every unit on the wire is a frame:
//
//	0x7E | index | len | data[len] | checksum
//
// index routes the frame to a subscriber on the receiving side, len is
// the number of data bytes (at most 255) and checksum is the XOR of
// index, len and all data bytes. A frame with a bad checksum is dropped
// and the parser waits for the next start marker.
//
// Producer: either station
// Consumer: the other station
