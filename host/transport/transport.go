// Package transport adapts the Klipper-style framed serial transport onto
// the synchronizer's narrow view of the wire: an opaque, order-preserving
// byte sink that accepts a whole flush's worth of messages at once.
package transport

import (
	"stepcompress/protocol"
	"stepcompress/stepcompress"
)

// Adapter implements stepcompress.Transport over a *protocol.HostTransport.
type Adapter struct {
	ht *protocol.HostTransport
}

// New wraps an already-connected HostTransport for use by a SteppersSync.
func New(ht *protocol.HostTransport) *Adapter {
	return &Adapter{ht: ht}
}

// SendBatch hands a synchronizer flush's messages to the underlying
// transport in one call, preserving their relative order.
func (a *Adapter) SendBatch(msgs []*stepcompress.QueueMessage) error {
	payloads := make([][]byte, len(msgs))
	for i, m := range msgs {
		payloads[i] = m.Data
	}
	return a.ht.SendRawBatch(payloads)
}
