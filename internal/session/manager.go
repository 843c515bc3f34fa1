// Package session tracks which user, if any, is logged in on this install.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/huertohogar/internal/model"
	"github.com/iliyamo/huertohogar/internal/prefs"
)

// PrefKey is the preference under which the session user id is persisted.
const PrefKey = "logged_in_user_id"

// Manager owns the session state.  It starts in model.Loading and leaves
// it on the first successful Load.  Every transition is persisted before it
// is published to subscribers, and transitions run one at a time, so the
// published state always matches the stored one.
type Manager struct {
	store prefs.Store
	log   logrus.FieldLogger

	// writeMu serializes Load, SetLoggedInUser and Logout across the store
	// write and the publish.  mu only guards state and subs.
	writeMu sync.Mutex

	mu    sync.Mutex
	state model.AuthState
	subs  map[*Subscription]struct{}
}

func NewManager(store prefs.Store, log logrus.FieldLogger) *Manager {
	return &Manager{
		store: store,
		log:   log.WithField("component", "session"),
		state: model.Loading,
		subs:  make(map[*Subscription]struct{}),
	}
}

// Load reads the persisted session user.  On error the state is left
// unchanged.
func (m *Manager) Load(ctx context.Context) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	id, ok, err := m.store.GetInt(ctx, PrefKey)
	if err != nil {
		return fmt.Errorf("session: load: %w", err)
	}
	st := model.Unauthenticated
	if ok && id > 0 {
		st = model.AuthenticatedAs(uint64(id))
	}
	m.publish(st)
	m.log.WithField("state", st.Status.String()).Debug("session loaded")
	return nil
}

// SetLoggedInUser persists userID as the session user and publishes it.
func (m *Manager) SetLoggedInUser(ctx context.Context, userID uint64) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := m.store.SetInt(ctx, PrefKey, int64(userID)); err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	m.publish(model.AuthenticatedAs(userID))
	m.log.WithField("user_id", userID).Info("user logged in")
	return nil
}

// Logout clears the persisted session user.
func (m *Manager) Logout(ctx context.Context) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := m.store.Remove(ctx, PrefKey); err != nil {
		return fmt.Errorf("session: clear: %w", err)
	}
	m.publish(model.Unauthenticated)
	m.log.Info("user logged out")
	return nil
}

// State returns the current state.
func (m *Manager) State() model.AuthState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// CurrentUser returns the logged-in user id, if any.
func (m *Manager) CurrentUser() (uint64, bool) {
	return m.State().Authenticated()
}

// Subscription delivers session states on C.  C holds at most one pending
// value and a newer state replaces an unread one, so a reader always sees
// the latest state.  The current state is delivered right away.
type Subscription struct {
	C <-chan model.AuthState

	c    chan model.AuthState
	m    *Manager
	once sync.Once
}

// Subscribe registers a new subscription.
func (m *Manager) Subscribe() *Subscription {
	c := make(chan model.AuthState, 1)
	s := &Subscription{C: c, c: c, m: m}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[s] = struct{}{}
	c <- m.state
	return s
}

// Close stops delivery and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.m.mu.Lock()
		defer s.m.mu.Unlock()
		delete(s.m.subs, s)
		close(s.c)
	})
}

func (m *Manager) publish(st model.AuthState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = st
	for s := range m.subs {
		// only publish sends, and it holds mu, so after draining the
		// buffer there is room for st
		select {
		case <-s.c:
		default:
		}
		select {
		case s.c <- st:
		default:
		}
	}
}
