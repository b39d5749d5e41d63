package scan

import (
	"errors"
	"time"

	"github.com/soocke/pixel-scan-go/device"
	"github.com/soocke/pixel-scan-go/domain/capture"
	"github.com/soocke/pixel-scan-go/remote"
)

var (
	// ErrSessionClosed is returned when a session was torn down before or
	// during the requested operation.
	ErrSessionClosed = errors.New("scan: session closed")
	// ErrCaptureInProgress is returned when Capture is called while a capture
	// pipeline is already running.
	ErrCaptureInProgress = errors.New("scan: capture in progress")
	// ErrNoCamera is returned by camera controls on a session without a device.
	ErrNoCamera = errors.New("scan: no camera")
)

// Phase is the presentation-visible state of a session.
type Phase int

const (
	Scanning Phase = iota
	Captured
	Analyzing
	Presenting
)

func (p Phase) String() string {
	switch p {
	case Scanning:
		return "scanning"
	case Captured:
		return "captured"
	case Analyzing:
		return "analyzing"
	case Presenting:
		return "presenting"
	default:
		return "unknown"
	}
}

// canTransition encodes the phase graph. Presenting is terminal and reachable
// from every other phase.
func canTransition(from, to Phase) bool {
	switch to {
	case Captured:
		return from == Scanning
	case Analyzing:
		return from == Captured
	case Presenting:
		return from != Presenting
	default:
		return false
	}
}

// Kind discriminates outcomes.
type Kind int

const (
	KindNone Kind = iota
	BarcodeConfirmed
	ImageAcceptedForAnalysis
	ManualEntryRequired
)

func (k Kind) String() string {
	switch k {
	case BarcodeConfirmed:
		return "barcode_confirmed"
	case ImageAcceptedForAnalysis:
		return "image_accepted_for_analysis"
	case ManualEntryRequired:
		return "manual_entry_required"
	default:
		return "none"
	}
}

// Reason explains a ManualEntryRequired outcome.
type Reason int

const (
	ReasonNone Reason = iota
	PermissionDenied
	DeviceUnavailable
	CaptureFailed
	UserRequested
)

func (r Reason) String() string {
	switch r {
	case PermissionDenied:
		return "permission_denied"
	case DeviceUnavailable:
		return "device_unavailable"
	case CaptureFailed:
		return "capture_failed"
	case UserRequested:
		return "user_requested"
	default:
		return "none"
	}
}

func reasonFor(err error) Reason {
	switch {
	case errors.Is(err, device.ErrPermissionDenied):
		return PermissionDenied
	case errors.Is(err, capture.ErrCaptureFailed):
		return CaptureFailed
	default:
		return DeviceUnavailable
	}
}

// Outcome is the terminal result of a session. Only the fields relevant to
// Kind are set.
type Outcome struct {
	Kind Kind

	// BarcodeConfirmed
	Value         string
	Format        string
	ChecksumValid bool
	Product       *remote.Product

	// ImageAcceptedForAnalysis
	Frame    capture.StillFrame
	Upload   []byte
	Analysis *remote.Analysis

	// ManualEntryRequired
	Reason Reason

	ResolvedAt time.Time
}

// Resolved reports whether o is terminal.
func (o Outcome) Resolved() bool { return o.Kind != KindNone }
