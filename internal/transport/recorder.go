package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wadesk/wadesk/internal/media"
)

// RecorderAdapter implements Adapter for testing. It records sent payloads
// and can be primed to fail.
type RecorderAdapter struct {
	mu      sync.Mutex
	sent    []SentMessage
	failErr error
	counter int
}

// SentMessage is one recorded send.
type SentMessage struct {
	JID     string
	Payload media.Payload
}

// NewRecorderAdapter creates an empty RecorderAdapter.
func NewRecorderAdapter() *RecorderAdapter {
	return &RecorderAdapter{}
}

// FailWith makes every subsequent Send return err (nil restores success).
func (r *RecorderAdapter) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failErr = err
}

// Send records the message and returns a synthetic receipt.
func (r *RecorderAdapter) Send(ctx context.Context, jid string, payload media.Payload) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return Receipt{}, r.failErr
	}
	r.counter++
	r.sent = append(r.sent, SentMessage{JID: jid, Payload: payload})
	return Receipt{
		MessageID: fmt.Sprintf("msg-%04d", r.counter),
		JID:       jid,
		Timestamp: time.Now(),
	}, nil
}

// Sent returns a copy of all recorded sends.
func (r *RecorderAdapter) Sent() []SentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SentMessage, len(r.sent))
	copy(out, r.sent)
	return out
}
