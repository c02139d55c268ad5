package presence

import (
	"context"
	"log"
	"sync"
	"time"

	"social-chat/internal/models"
	"social-chat/internal/observability"
	"social-chat/internal/repositories"
)

// Sink pushes presence events to connected clients.
type Sink interface {
	SendToUser(userID int64, event models.WSEvent)
}

// Session is one live websocket attachment of a user. A user has at most
// one tracked session; a new connection replaces the old one.
type Session struct {
	UserID        int64
	SessionID     string
	ConnectedAt   time.Time
	LastHeartbeat time.Time
}

// Tracker keeps the in-memory online set and notifies interested users on
// transitions. State is process-local and rebuilt from reconnects after a
// restart.
type Tracker struct {
	conversations repositories.ConversationRepository
	users         repositories.UserRepository
	sink          Sink

	timeout       time.Duration
	sweepInterval time.Duration

	mu       sync.RWMutex
	sessions map[int64]*Session

	now func() time.Time
}

// NewTracker constructs a Tracker. Sessions idle longer than timeout are
// evicted by the sweep loop.
func NewTracker(conversations repositories.ConversationRepository, users repositories.UserRepository, sink Sink, timeout, sweepInterval time.Duration) *Tracker {
	return &Tracker{
		conversations: conversations,
		users:         users,
		sink:          sink,
		timeout:       timeout,
		sweepInterval: sweepInterval,
		sessions:      make(map[int64]*Session),
		now:           time.Now,
	}
}

// Connect registers a session and announces the user as online. An existing
// session for the same user is silently replaced.
func (t *Tracker) Connect(ctx context.Context, userID int64, sessionID string) {
	now := t.now()

	t.mu.Lock()
	t.sessions[userID] = &Session{
		UserID:        userID,
		SessionID:     sessionID,
		ConnectedAt:   now,
		LastHeartbeat: now,
	}
	online := len(t.sessions)
	t.mu.Unlock()

	observability.SetPresenceOnline(online)
	log.Printf("presence connect user=%d session=%s online=%d", userID, sessionID, online)
	t.announce(ctx, userID, models.PresenceOnline, nil)
}

// Disconnect removes the session and announces the user as offline. The
// session id must match the tracked one so a stale close racing a fresh
// reconnect cannot knock the new session out.
func (t *Tracker) Disconnect(ctx context.Context, userID int64, sessionID string) {
	t.mu.Lock()
	session, ok := t.sessions[userID]
	if !ok || session.SessionID != sessionID {
		t.mu.Unlock()
		return
	}
	delete(t.sessions, userID)
	online := len(t.sessions)
	t.mu.Unlock()

	lastSeen := t.now().UTC()
	if err := t.users.TouchLastSeen(ctx, userID, lastSeen); err != nil {
		log.Printf("presence last-seen update failed user=%d: %v", userID, err)
	}

	observability.SetPresenceOnline(online)
	log.Printf("presence disconnect user=%d session=%s online=%d", userID, sessionID, online)
	t.announce(ctx, userID, models.PresenceOffline, &lastSeen)
}

// Heartbeat refreshes the liveness of the user's tracked session. Only the
// user id is needed; clients never learn their session id, so disconnect is
// the only place that matches on it. Reports false when no session is
// tracked, telling the caller to reconnect.
func (t *Tracker) Heartbeat(userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	session, ok := t.sessions[userID]
	if !ok {
		return false
	}
	session.LastHeartbeat = t.now()
	return true
}

// Run sweeps idle sessions until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.sweep(ctx)
		}
	}
}

func (t *Tracker) sweep(ctx context.Context) {
	cutoff := t.now().Add(-t.timeout)

	t.mu.Lock()
	var evicted []int64
	for userID, session := range t.sessions {
		if session.LastHeartbeat.Before(cutoff) {
			delete(t.sessions, userID)
			evicted = append(evicted, userID)
		}
	}
	online := len(t.sessions)
	t.mu.Unlock()

	if len(evicted) == 0 {
		return
	}

	observability.SetPresenceOnline(online)
	lastSeen := t.now().UTC()
	for _, userID := range evicted {
		log.Printf("presence sweep evicted user=%d", userID)
		if err := t.users.TouchLastSeen(ctx, userID, lastSeen); err != nil {
			log.Printf("presence last-seen update failed user=%d: %v", userID, err)
		}
		t.announce(ctx, userID, models.PresenceOffline, &lastSeen)
	}
}

// IsOnline reports whether the user currently has a tracked session.
func (t *Tracker) IsOnline(userID int64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.sessions[userID]
	return ok
}

// Snapshot returns the presence of the given users, enriched with last-seen
// timestamps from the directory.
func (t *Tracker) Snapshot(ctx context.Context, userIDs []int64) ([]models.UserPresence, error) {
	users, err := t.users.Bulk(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	return t.presences(users), nil
}

// AllPresence reports presence for the whole active user population.
func (t *Tracker) AllPresence(ctx context.Context) ([]models.UserPresence, error) {
	users, err := t.users.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return t.presences(users), nil
}

func (t *Tracker) presences(users []models.User) []models.UserPresence {
	t.mu.RLock()
	defer t.mu.RUnlock()

	presences := make([]models.UserPresence, 0, len(users))
	for _, user := range users {
		presence := models.UserPresence{
			UserID:   user.ID,
			Username: user.Username,
			Status:   models.PresenceOffline,
			LastSeen: user.LastSeen,
		}
		if _, ok := t.sessions[user.ID]; ok {
			presence.Status = models.PresenceOnline
			presence.LastSeen = nil
		}
		presences = append(presences, presence)
	}
	return presences
}

// announce pushes the transition to everyone sharing a conversation with
// the user. Directory failures drop the announcement; presence is advisory.
func (t *Tracker) announce(ctx context.Context, userID int64, status models.PresenceStatus, lastSeen *time.Time) {
	presence := models.UserPresence{UserID: userID, Status: status, LastSeen: lastSeen}
	if user, err := t.users.Get(ctx, userID); err == nil {
		presence.Username = user.Username
	}

	event := models.WSEvent{Type: models.EventPresence, Data: presence}
	for _, interestedID := range t.interestedUsers(ctx, userID) {
		t.sink.SendToUser(interestedID, event)
	}
}

// interestedUsers is the deduplicated union of participants across the
// user's conversations, excluding the user.
func (t *Tracker) interestedUsers(ctx context.Context, userID int64) []int64 {
	conversations, err := t.conversations.ListForUser(ctx, userID)
	if err != nil {
		log.Printf("presence interest lookup failed user=%d: %v", userID, err)
		return nil
	}

	seen := map[int64]struct{}{}
	var interested []int64
	for _, conversation := range conversations {
		for _, participantID := range conversation.ParticipantIDs {
			if participantID == userID {
				continue
			}
			if _, ok := seen[participantID]; ok {
				continue
			}
			seen[participantID] = struct{}{}
			interested = append(interested, participantID)
		}
	}
	return interested
}
