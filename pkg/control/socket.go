// Package control implements the UNIX-domain control socket rsincrontab
// uses to tell a running rsincrond to reload its watch table without a
// signal, adapted from mutagen's pkg/ipc listener/dialer split.
package control

import (
	"context"
	"net"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// DialTimeout bounds how long a client waits to connect before giving up.
const DialTimeout = 1 * time.Second

// Listener serves UpdateWatches notifications on a UNIX-domain socket.
type Listener struct {
	path string
	ln   net.Listener
	log  zerolog.Logger
}

// Listen binds the control socket at path. Any stale socket file left
// behind by a previous, uncleanly-terminated daemon is removed first.
// spec.md §7 (SocketSetup) treats a bind failure as non-fatal to the
// daemon as a whole: the caller should log and run without the feature
// rather than refuse to start.
func Listen(path string, log zerolog.Logger) (*Listener, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "removing stale control socket")
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, errors.Wrap(err, "binding control socket")
	}
	if err := os.Chmod(path, 0600); err != nil {
		ln.Close()
		return nil, errors.Wrap(err, "setting control socket permissions")
	}

	return &Listener{path: path, ln: ln, log: log}, nil
}

// Serve accepts connections until ctx is cancelled, decoding one message
// per connection and invoking onUpdateWatches for each UpdateWatches it
// receives. A decode error or unexpected tag closes that connection and
// keeps serving; it never brings down the listener.
func (l *Listener) Serve(ctx context.Context, onUpdateWatches func()) {
	go func() {
		<-ctx.Done()
		l.ln.Close()
	}()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			l.log.Warn().Err(err).Msg("control socket accept failed")
			return
		}
		go l.handle(conn, onUpdateWatches)
	}
}

func (l *Listener) handle(conn net.Conn, onUpdateWatches func()) {
	defer conn.Close()

	tag, err := DecodeMessage(conn)
	if err != nil {
		l.log.Warn().Err(err).Msg("malformed control message; closing connection")
		return
	}
	switch tag {
	case UpdateWatches:
		onUpdateWatches()
	}
}

// Close removes the socket file and stops accepting connections.
func (l *Listener) Close() error {
	err := l.ln.Close()
	os.Remove(l.path)
	return err
}

// SendUpdateWatches dials the control socket at path and sends a single
// UpdateWatches message. Used by rsincrontab after it saves a new table,
// so the running daemon picks up the change without a restart.
func SendUpdateWatches(path string) error {
	ctx, cancel := context.WithTimeout(context.Background(), DialTimeout)
	defer cancel()

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return errors.Wrap(err, "connecting to control socket")
	}
	defer conn.Close()

	if err := EncodeUpdateWatches(conn); err != nil {
		return errors.Wrap(err, "sending update-watches message")
	}
	return nil
}
