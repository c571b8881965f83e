package stepcompress

import "stepcompress/protocol"

// QueueMessage is an opaque-to-the-transport encoded command plus the two
// scheduling fields the synchronizer needs. Data is already fully encoded
// (msgtag/oid/args VLQ-packed) - the transport only frames
// and writes it.
//
// MinClock is intentionally overloaded: on input, for a
// queue_step message, it is the MCU clock at which the move-queue slot
// this command will occupy becomes free again (used by SteppersSync to
// drive its heap); a set_next_step_dir message or an out-of-band queue_msg
// leaves it zero, meaning "does not consume a move-queue slot". After
// SteppersSync.Flush processes a message it overwrites MinClock with the
// minimum clock at which the message may be transmitted.
type QueueMessage struct {
	Data     []byte
	ReqClock uint64
	MinClock uint64
}

// Transport is the synchronizer's only view of the serial link: an opaque
// byte sink that preserves batch order. Framing, ACKs, and retransmission
// are the transport's concern (an external collaborator).
type Transport interface {
	SendBatch(msgs []*QueueMessage) error
}

// encodeQueueStep builds a queue_step payload: (msgtag, oid, interval,
// count, add), each VLQ-packed, matching the five-u32 wire layout the
// protocol mandates bit-exact. add is intentionally encoded as a signed VLQ - it
// is sign-extended from an i16 on the wire.
func encodeQueueStep(msgtag int32, oid uint32, move StepMove) []byte {
	out := protocol.NewScratchOutput()
	protocol.EncodeVLQInt(out, msgtag)
	protocol.EncodeVLQUint(out, oid)
	protocol.EncodeVLQUint(out, move.Interval)
	protocol.EncodeVLQUint(out, uint32(move.Count))
	protocol.EncodeVLQInt(out, int32(move.Add))
	return append([]byte(nil), out.Result()...)
}

// encodeSetNextStepDir builds a set_next_step_dir payload: (msgtag, oid,
// dir_bit), matching the three-u32 wire layout the protocol mandates.
func encodeSetNextStepDir(msgtag int32, oid uint32, dirBit uint32) []byte {
	out := protocol.NewScratchOutput()
	protocol.EncodeVLQInt(out, msgtag)
	protocol.EncodeVLQUint(out, oid)
	protocol.EncodeVLQUint(out, dirBit)
	return append([]byte(nil), out.Result()...)
}
