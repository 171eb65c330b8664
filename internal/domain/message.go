package domain

import "time"

// Result is the tagged union of everything the message router can translate
// into an outbound message. The marker method keeps the set closed so the
// router's type switch stays exhaustive.
type Result interface {
	isResult()
}

// OutboundMessage is a serialized payload bound for one bus topic. It is
// owned by the publisher's send queue from enqueue until it is sent, expired,
// or dropped.
type OutboundMessage struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
	Created time.Time
}
