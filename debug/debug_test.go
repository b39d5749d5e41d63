package debug

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestLoggers_EmitUntilCancelled(t *testing.T) {
	buf := &syncBuffer{}
	logger := slog.New(slog.NewJSONHandler(buf, nil))
	ctx, cancel := context.WithCancel(context.Background())

	StartGoroutineLogger(ctx, 5*time.Millisecond, func() int { return 3 }, logger)
	StartMemLogger(ctx, 5*time.Millisecond, logger)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		out := buf.String()
		if strings.Contains(out, `"live_handles":3`) && strings.Contains(out, `"msg":"memstats"`) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	out := buf.String()
	if !strings.Contains(out, `"live_handles":3`) {
		t.Fatalf("goroutine logger missing live handles: %s", out)
	}
	if !strings.Contains(out, `"msg":"memstats"`) {
		t.Fatalf("mem logger silent: %s", out)
	}
}
