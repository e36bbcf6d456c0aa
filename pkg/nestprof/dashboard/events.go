package dashboard

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"time"
)

// Event is one sink line received through Writer.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"` // start, stop, warning or line
	Message   string    `json:"message"`
}

func classify(line string) string {
	switch {
	case strings.Contains(line, "Timer start: "):
		return "start"
	case strings.Contains(line, "Timer stop:  "):
		return "stop"
	case strings.HasPrefix(line, "Warning:"):
		return "warning"
	default:
		return "line"
	}
}

// Writer returns a sink for a verbose profiler. Every complete line becomes
// an Event, kept in a ring of the most recent 50 and pushed to websocket
// clients. Partial lines wait for their newline.
func (s *Server) Writer() io.Writer {
	return &lineWriter{server: s}
}

type lineWriter struct {
	mu     sync.Mutex
	server *Server
	buf    bytes.Buffer
}

func (lw *lineWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	lw.buf.Write(p)
	for {
		i := bytes.IndexByte(lw.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := string(lw.buf.Next(i + 1))
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		lw.server.addEvent(Event{
			Timestamp: time.Now(),
			Type:      classify(line),
			Message:   line,
		})
	}
	return len(p), nil
}

func (s *Server) addEvent(e Event) {
	s.mutex.Lock()
	s.eventBuffer[s.eventIndex] = e
	s.eventIndex = (s.eventIndex + 1) % len(s.eventBuffer)
	if s.eventCount < len(s.eventBuffer) {
		s.eventCount++
	}
	s.mutex.Unlock()

	s.enqueue(message{Type: "event", Data: e})
}

// Events returns the buffered events, oldest first.
func (s *Server) Events() []Event {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	events := make([]Event, s.eventCount)
	if s.eventCount == 0 {
		return events
	}
	size := len(s.eventBuffer)
	if s.eventCount == size {
		// Buffer is full, start from oldest
		for i := 0; i < size; i++ {
			events[i] = s.eventBuffer[(s.eventIndex+i)%size]
		}
	} else {
		copy(events, s.eventBuffer[:s.eventCount])
	}
	return events
}
