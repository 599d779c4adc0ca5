package wordchain

import (
	"errors"
	"sync"
	"time"
)

var ErrSessionExists = errors.New("a game is already running in this channel")

// Store maps channel id -> the one session for that channel. It is the sole
// owner of sessions; handlers look sessions up per operation instead of
// holding references, so Remove is immediately visible everywhere.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create fails if the channel already has a session. It never overwrites.
func (st *Store) Create(channelID, guildID, masterID string, set Settings) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, busy := st.sessions[channelID]; busy {
		return nil, ErrSessionExists
	}

	s := &Session{
		ChannelID: channelID,
		GuildID:   guildID,
		Status:    StatusLobby,
		MasterID:  masterID,
		Settings:  set,
		Players:   []*Player{},
		Used:      make(map[string]struct{}),
		Rolls:     make(map[string]int),
		Banned:    make(map[string]struct{}),
		CreatedAt: time.Now(),
	}
	st.sessions[channelID] = s
	return s, nil
}

// Get never creates as a side effect.
func (st *Store) Get(channelID string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[channelID]
	return s, ok
}

// Remove deletes unconditionally and returns the removed session (nil if
// absent) so the caller can cancel its timer.
func (st *Store) Remove(channelID string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.sessions[channelID]
	delete(st.sessions, channelID)
	return s
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
