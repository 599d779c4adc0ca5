package wordchain

import (
	"log"
	"time"
)

// StartTurnTimer arms the countdown for the current turn, cancelling any
// previous timer first. onExpire runs only if, at expiry, the session still
// exists, is still playing, and the turn has not been resolved some other
// way in the meantime; the generation captured here is the identity check.
func (e *Engine) StartTurnTimer(channelID string, onExpire func(TurnResult)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, found := e.store.Get(channelID)
	if !found || s.Status != StatusPlaying {
		return
	}

	s.stopTimer()
	gen := s.turnGen
	s.turnStartedAt = time.Now()

	d := time.Duration(s.Settings.TurnSeconds) * time.Second
	s.timer = time.AfterFunc(d, func() {
		e.expireTurn(channelID, gen, onExpire)
	})
}

// ClearTurnTimer is an idempotent cancel, used whenever a turn resolves by
// any means other than the timeout itself.
func (e *Engine) ClearTurnTimer(channelID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s, found := e.store.Get(channelID); found {
		s.stopTimer()
	}
}

func (e *Engine) expireTurn(channelID string, gen int, onExpire func(TurnResult)) {
	e.mu.Lock()
	s, found := e.store.Get(channelID)
	if !found || s.Status != StatusPlaying || s.turnGen != gen {
		// The turn (or the whole session) resolved before we fired.
		e.mu.Unlock()
		return
	}
	p := s.currentPlayer()
	if p == nil {
		e.mu.Unlock()
		return
	}
	res := e.resolveGiveUp(s, p, "ran out of time")
	e.mu.Unlock()

	if onExpire != nil {
		// A panicking callback must not take the process down with it.
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[wordchain] turn-expiry callback panicked: %v", r)
			}
		}()
		onExpire(res)
	}
}
