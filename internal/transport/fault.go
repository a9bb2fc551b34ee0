package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"

	"github.com/thruflo/tracksync/internal/protocol"
)

// FaultKind classifies why a connection became unusable.
type FaultKind int

const (
	// FaultDisconnected means the editor closed or reset the stream.
	FaultDisconnected FaultKind = iota + 1
	// FaultTransport is any other read, write or dial failure.
	FaultTransport
	// FaultProtocol means the editor sent bytes that are not a valid message.
	FaultProtocol
)

// String returns the kind name used in logs.
func (k FaultKind) String() string {
	switch k {
	case FaultDisconnected:
		return "disconnected"
	case FaultTransport:
		return "transport"
	case FaultProtocol:
		return "protocol"
	default:
		return fmt.Sprintf("fault(%d)", int(k))
	}
}

// Fault is the error returned by every Conn operation that requires the
// connection to be dropped.
type Fault struct {
	Kind FaultKind
	Op   string
	Err  error
}

func (f *Fault) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s fault", f.Op, f.Kind)
	}
	return fmt.Sprintf("%s: %s fault: %v", f.Op, f.Kind, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// KindOf returns the fault kind of err, or 0 if err is not a Fault.
func KindOf(err error) FaultKind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return 0
}

// IsDisconnect reports whether err is a Fault caused by the peer going away.
func IsDisconnect(err error) bool {
	return KindOf(err) == FaultDisconnected
}

// classify wraps an I/O error from op into a Fault.
func classify(op string, err error) *Fault {
	var f *Fault
	if errors.As(err, &f) {
		return f
	}
	kind := FaultTransport
	switch {
	case errors.Is(err, protocol.ErrMalformed):
		kind = FaultProtocol
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ECONNABORTED):
		kind = FaultDisconnected
	}
	return &Fault{Kind: kind, Op: op, Err: err}
}

// isTimeout reports whether err is a deadline expiry, which for a poll read
// just means no data was pending.
func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
