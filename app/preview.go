package app

import (
	"log/slog"
	"sync"

	"github.com/soocke/pixel-scan-go/device"
)

// Preview stands in for the live preview surface of a headless run. It
// receives the camera stream and honours freeze requests while a capture is
// in flight.
type Preview struct {
	logger *slog.Logger

	mu       sync.Mutex
	stream   device.Stream
	frozen   bool
	freezes  int
	attaches int
}

var _ device.Sink = (*Preview)(nil)

func NewPreview(logger *slog.Logger) *Preview { return &Preview{logger: logger} }

func (p *Preview) Attach(s device.Stream) {
	p.mu.Lock()
	p.stream = s
	p.attaches++
	p.mu.Unlock()
	if tr := s.VideoTrack(); tr != nil {
		st := tr.Settings()
		p.logger.Debug("preview attached", "device", st.DeviceID, "width", st.Width, "height", st.Height)
	}
}

func (p *Preview) Detach() {
	p.mu.Lock()
	p.stream = nil
	p.frozen = false
	p.mu.Unlock()
	p.logger.Debug("preview detached")
}

func (p *Preview) Freeze() {
	p.mu.Lock()
	p.frozen = true
	p.freezes++
	p.mu.Unlock()
}

func (p *Preview) Unfreeze() {
	p.mu.Lock()
	p.frozen = false
	p.mu.Unlock()
}

// State reports whether a stream is attached and whether the preview is frozen.
func (p *Preview) State() (attached, frozen bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stream != nil, p.frozen
}
