package modules

import (
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bft-labs/ambient/internal/adapters/httpget"
	"github.com/bft-labs/ambient/internal/ports"
)

var testNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

// source is a test HTTP endpoint whose response can be swapped between
// fetches.
type source struct {
	srv      *httptest.Server
	mu       sync.Mutex
	status   int
	body     string
	requests atomic.Int32
}

func newSource(t *testing.T, body string) *source {
	t.Helper()
	s := &source{status: http.StatusOK, body: body}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		s.mu.Lock()
		status, body := s.status, s.body
		s.mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *source) set(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status, s.body = status, body
}

func (s *source) URL() string { return s.srv.URL }

func testGetter() *httpget.Getter {
	return httpget.NewGetter(http.DefaultClient, nil)
}

type published struct {
	topic   string
	sender  string
	payload any
}

// recordingBus publishes synchronously to in-process handlers and keeps a
// log of everything published.
type recordingBus struct {
	mu       sync.Mutex
	log      []published
	handlers map[string][]func(ports.Notification)
}

func newRecordingBus() *recordingBus {
	return &recordingBus{handlers: make(map[string][]func(ports.Notification))}
}

func (b *recordingBus) Publish(topic, sender string, payload any) {
	b.mu.Lock()
	b.log = append(b.log, published{topic, sender, payload})
	handlers := slices.Clone(b.handlers[topic])
	b.mu.Unlock()

	for _, h := range handlers {
		h(ports.Notification{ID: topic, Topic: topic, Sender: sender, Payload: payload, SentAt: testNow})
	}
}

func (b *recordingBus) Subscribe(handler func(ports.Notification), topics ...string) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range topics {
		b.handlers[t] = append(b.handlers[t], handler)
	}
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.handlers = make(map[string][]func(ports.Notification))
	}
}

func (b *recordingBus) Published(topic string) []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []published
	for _, p := range b.log {
		if p.topic == topic {
			out = append(out, p)
		}
	}
	return out
}
