// Package transport is the capability boundary to the WhatsApp messaging
// library: send arbitrary message content to a contact identifier and get a
// delivery handle back. The wire protocol itself lives outside this repo.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wadesk/wadesk/internal/media"
)

// JID domains for direct chats and groups.
const (
	UserDomain  = "s.whatsapp.net"
	GroupDomain = "g.us"
)

// ErrNoSession means no transport session is registered for a channel.
var ErrNoSession = errors.New("transport: no session for channel")

// Adapter is the interface a connected messaging session must satisfy.
type Adapter interface {
	// Send delivers a payload to the recipient JID and returns a
	// delivery receipt. Implementations must honor ctx cancellation.
	Send(ctx context.Context, jid string, payload media.Payload) (Receipt, error)
}

// Receipt is the delivery handle returned by the transport.
type Receipt struct {
	MessageID string
	JID       string
	Timestamp time.Time
}

// JID builds the recipient address for a contact number.
func JID(number string, group bool) string {
	domain := UserDomain
	if group {
		domain = GroupDomain
	}
	return number + "@" + domain
}

// Resolver maps a channel ID to its live transport session.
type Resolver interface {
	For(channelID uint) (Adapter, error)
}

// Registry is a concurrency-safe Resolver backed by a map. The connection
// layer registers sessions as channels come online and removes them on
// disconnect.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uint]Adapter
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uint]Adapter)}
}

// Register installs or replaces the session for a channel.
func (r *Registry) Register(channelID uint, session Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[channelID] = session
}

// Remove drops the session for a channel.
func (r *Registry) Remove(channelID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, channelID)
}

// For returns the session for a channel, or ErrNoSession.
func (r *Registry) For(channelID uint) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[channelID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoSession, channelID)
	}
	return session, nil
}
