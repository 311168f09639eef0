package control

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MessageType tags the single control-socket message kind this protocol
// carries today. It is a byte, not an enum with string names, because the
// wire format is a length-prefixed binary tag, not text (spec.md §6).
type MessageType uint8

// UpdateWatches is the only message rsincrontab sends: "re-read the watch
// table and rebuild the registry."
const UpdateWatches MessageType = 0

// maxMessageLen bounds the length prefix so a corrupt or hostile peer
// cannot make the daemon allocate an unbounded buffer. The only message
// this protocol defines is one byte long; 100 matches the original
// implementation's fixed read-buffer size.
const maxMessageLen = 100

// EncodeUpdateWatches writes a length-prefixed UpdateWatches message.
func EncodeUpdateWatches(w io.Writer) error {
	payload := []byte{byte(UpdateWatches)}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("writing control message length: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("writing control message payload: %w", err)
	}
	return nil
}

// DecodeMessage reads one length-prefixed message and returns its tag.
// A malformed or oversized message is reported as an error; the caller
// (the connection handler) closes the connection and keeps serving —
// decode failures are never fatal to the listener itself.
func DecodeMessage(r io.Reader) (MessageType, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return 0, fmt.Errorf("reading control message length: %w", err)
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n == 0 || n > maxMessageLen {
		return 0, fmt.Errorf("control message length %d out of range", n)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, fmt.Errorf("reading control message payload: %w", err)
	}

	switch MessageType(payload[0]) {
	case UpdateWatches:
		return UpdateWatches, nil
	default:
		return 0, fmt.Errorf("unrecognized control message tag %d", payload[0])
	}
}
