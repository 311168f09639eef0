package control

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestEncodeDecodeUpdateWatchesRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeUpdateWatches(&buf); err != nil {
		t.Fatalf("EncodeUpdateWatches() error: %v", err)
	}

	tag, err := DecodeMessage(&buf)
	if err != nil {
		t.Fatalf("DecodeMessage() error: %v", err)
	}
	if tag != UpdateWatches {
		t.Errorf("tag = %d, want %d", tag, UpdateWatches)
	}
}

func TestDecodeMessageRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xff, 0xff, 0xff, 0x7f}) // absurd length prefix
	if _, err := DecodeMessage(&buf); err == nil {
		t.Fatal("expected DecodeMessage to reject an oversized length prefix")
	}
}

func TestDecodeMessageRejectsZeroLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x00, 0x00, 0x00})
	if _, err := DecodeMessage(&buf); err == nil {
		t.Fatal("expected DecodeMessage to reject a zero-length message")
	}
}

func TestDecodeMessageRejectsUnknownTag(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x01, 0x00, 0x00, 0x00, 0xfe}) // 0xfe is not a recognized tag; 0 is UpdateWatches
	if _, err := DecodeMessage(&buf); err == nil {
		t.Fatal("expected DecodeMessage to reject an unrecognized tag")
	}
}

func TestListenServeSendUpdateWatches(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "rsincron.socket")

	ln, err := Listen(socketPath, zerolog.Nop())
	if err != nil {
		t.Fatalf("Listen() error: %v", err)
	}
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan struct{}, 1)
	go ln.Serve(ctx, func() { received <- struct{}{} })

	if err := SendUpdateWatches(socketPath); err != nil {
		t.Fatalf("SendUpdateWatches() error: %v", err)
	}

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for onUpdateWatches callback")
	}
}

func TestListenRemovesStaleSocket(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "rsincron.socket")

	first, err := Listen(socketPath, zerolog.Nop())
	if err != nil {
		t.Fatalf("first Listen() error: %v", err)
	}
	// Simulate an unclean shutdown: the listener's file descriptor goes
	// away but the socket path is left behind on disk. A UnixListener
	// unlinks its path on Close by default, so that is turned off first.
	first.ln.(*net.UnixListener).SetUnlinkOnClose(false)
	first.ln.Close()

	second, err := Listen(socketPath, zerolog.Nop())
	if err != nil {
		t.Fatalf("second Listen() over a stale socket file: %v", err)
	}
	defer second.Close()
}
