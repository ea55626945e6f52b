package realtime

import (
	"errors"
	"fmt"
)

// Validation errors: the offending input is rejected locally, nothing is
// transmitted.
var (
	ErrUnsupportedChannelLayout = errors.New("realtime: unsupported channel layout")
	ErrAudioTooShort            = errors.New("realtime: audio below minimum duration")
)

// TransportError wraps a connection-level failure. Once one is observed the
// connection is not recoverable; there is no reconnection.
type TransportError struct {
	Op  string // connect, send, close
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("realtime: transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
