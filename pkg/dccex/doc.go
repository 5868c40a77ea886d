// Package dccex links a network station and a command station over
// a single serial link.
package dccex

// Each side owns a Channel with one inbound and one outbound queue of
// fixed capacity. Envelopes queued for the other side are stamped with
// a sequence number and drained one per service tick into the link.
// Envelopes received from the link are queued inbound and processed one
// per service tick by the Role of the station.
//
// Nothing is retransmitted: a full queue drops the new envelope.
