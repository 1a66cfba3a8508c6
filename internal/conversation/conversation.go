// Package conversation tracks per-chat multi-step dialog state. A chat
// holds at most one active conversation; starting a new one supersedes
// whatever was in progress.
package conversation

import (
	"context"
	"sync"
	"time"
)

// Step identifies what kind of reply the bot is waiting for in a chat.
type Step int

const (
	StepAwaitingName Step = iota + 1
	StepAwaitingSecret
	StepAwaitingNewName
)

func (s Step) String() string {
	switch s {
	case StepAwaitingName:
		return "awaiting_name"
	case StepAwaitingSecret:
		return "awaiting_secret"
	case StepAwaitingNewName:
		return "awaiting_new_name"
	default:
		return "unknown"
	}
}

// Conversation is the pending dialog state for a single chat.
type Conversation struct {
	ChatID int64
	Step   Step

	// PendingName carries the accepted credential name while the secret
	// is awaited; PendingOldName carries the rename target.
	PendingName    string
	PendingOldName string

	touchedAt time.Time
}

// Registry holds active conversations keyed by chat id. All methods are
// safe for concurrent use.
type Registry struct {
	mu    sync.Mutex
	byID  map[int64]*Conversation
	ttl   time.Duration
	clock func() time.Time
}

// NewRegistry creates a registry whose entries expire after ttl of
// inactivity. A zero ttl disables expiry.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		byID:  make(map[int64]*Conversation),
		ttl:   ttl,
		clock: time.Now,
	}
}

// Begin starts a conversation at the given step, replacing any existing
// state for the chat.
func (r *Registry) Begin(chatID int64, step Step) *Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := &Conversation{ChatID: chatID, Step: step, touchedAt: r.clock()}
	r.byID[chatID] = c
	return c
}

// Get returns the active conversation for the chat, or nil when there is
// none or when it has expired. Expired entries are removed on access.
func (r *Registry) Get(chatID int64) *Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byID[chatID]
	if !ok {
		return nil
	}
	if r.expired(c) {
		delete(r.byID, chatID)
		return nil
	}
	return c
}

// Advance moves the chat's conversation to the next step, carrying the
// pending names forward, and refreshes its expiry.
func (r *Registry) Advance(chatID int64, step Step, mutate func(*Conversation)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byID[chatID]
	if !ok || r.expired(c) {
		delete(r.byID, chatID)
		return false
	}
	c.Step = step
	c.touchedAt = r.clock()
	if mutate != nil {
		mutate(c)
	}
	return true
}

// Clear drops the chat's conversation, if any.
func (r *Registry) Clear(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, chatID)
}

// Len reports the number of tracked conversations, expired ones included
// until they are swept.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// Sweep removes all expired conversations and returns how many were
// dropped.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := 0
	for id, c := range r.byID {
		if r.expired(c) {
			delete(r.byID, id)
			dropped++
		}
	}
	return dropped
}

// Run sweeps the registry periodically until the context is cancelled.
// It is a no-op when expiry is disabled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if r.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *Registry) expired(c *Conversation) bool {
	if r.ttl <= 0 {
		return false
	}
	return r.clock().Sub(c.touchedAt) > r.ttl
}
