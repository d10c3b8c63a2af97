// Package player tracks playback of one record at a time.
//
// The player is a small state machine:
//
//	idle -> loading -> ready -> playing <-> paused -> ended
//
// It renders nothing. It tells its Observer when a record was opened and
// when a playback position should be saved, which is how the times-opened
// counter and resume positions reach the store.
package player

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"media-library/internal/database"
	"media-library/internal/logging"
)

// State is a playback state.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateEnded   State = "ended"
)

// ErrInvalidTransition is returned for an event the current state does not
// accept.
var ErrInvalidTransition = errors.New("invalid player transition")

var transitions = map[State][]State{
	StateIdle:    {StateLoading},
	StateLoading: {StateReady, StateIdle, StateLoading},
	StateReady:   {StatePlaying, StatePaused, StateIdle, StateLoading},
	StatePlaying: {StatePaused, StateEnded, StateIdle, StateLoading},
	StatePaused:  {StatePlaying, StatePaused, StateIdle, StateLoading},
	StateEnded:   {StatePlaying, StatePaused, StateIdle, StateLoading},
}

// Observer receives playback events that change stored state.
type Observer interface {
	Opened(ctx context.Context, id string) error
	PositionSaved(ctx context.Context, id string, position float64) error
}

// Status is a snapshot of the player.
type Status struct {
	State    State   `json:"state"`
	RecordID string  `json:"recordId,omitempty"`
	Position float64 `json:"position"`
	Duration float64 `json:"duration"`
	Error    string  `json:"error,omitempty"`
}

// Player is safe for concurrent use.
type Player struct {
	observer Observer

	mu       sync.Mutex
	state    State
	record   database.Record
	position float64
	duration float64
	lastErr  string
}

// New creates an idle player. observer may be nil.
func New(observer Observer) *Player {
	return &Player{observer: observer, state: StateIdle}
}

func (p *Player) moveLocked(to State) error {
	if !slices.Contains(transitions[p.state], to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.state, to)
	}
	logging.Debug("Player %s -> %s (%s)", p.state, to, p.record.Path)
	p.state = to
	return nil
}

// Status returns the current snapshot.
func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{
		State:    p.state,
		RecordID: p.record.ID,
		Position: p.position,
		Duration: p.duration,
		Error:    p.lastErr,
	}
}

// Load starts loading rec. A record already playing or paused has its
// position saved first.
func (p *Player) Load(ctx context.Context, rec database.Record) error {
	p.mu.Lock()
	prev, pos, save := p.record, p.position, p.hasPositionLocked()
	if err := p.moveLocked(StateLoading); err != nil {
		p.mu.Unlock()
		return err
	}
	p.record = rec.Clone()
	p.position = 0
	p.duration = 0
	p.lastErr = ""
	p.mu.Unlock()

	if save {
		return p.savePosition(ctx, prev.ID, pos)
	}
	return nil
}

// Ready completes loading once the duration is known. Playback resumes from
// the record's saved position when it lies inside the media.
func (p *Player) Ready(ctx context.Context, duration float64) error {
	p.mu.Lock()
	if p.state != StateLoading {
		defer p.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.state, StateReady)
	}
	_ = p.moveLocked(StateReady)
	p.duration = duration
	if sp := p.record.SavedPosition; sp != nil && *sp > 0 && (duration <= 0 || *sp < duration) {
		p.position = *sp
	}
	id := p.record.ID
	p.mu.Unlock()

	if p.observer != nil {
		if err := p.observer.Opened(ctx, id); err != nil {
			return fmt.Errorf("failed to record open: %w", err)
		}
	}
	return nil
}

// Fail aborts loading and returns to idle.
func (p *Player) Fail(cause error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateLoading {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.state, StateIdle)
	}
	_ = p.moveLocked(StateIdle)
	p.lastErr = cause.Error()
	logging.Warn("Playback of %s failed: %v", p.record.Path, cause)
	p.record = database.Record{}
	return nil
}

// Play starts or resumes playback. From ended it restarts at zero.
func (p *Player) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	from := p.state
	if err := p.moveLocked(StatePlaying); err != nil {
		return err
	}
	if from == StateEnded {
		p.position = 0
	}
	return nil
}

// Pause pauses playback and saves the position.
func (p *Player) Pause(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StatePlaying {
		defer p.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.state, StatePaused)
	}
	_ = p.moveLocked(StatePaused)
	id, pos := p.record.ID, p.position
	p.mu.Unlock()

	return p.savePosition(ctx, id, pos)
}

// Seek moves the position, clamped to the media. Seeking an ended record
// pauses it at the new position.
func (p *Player) Seek(position float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case StateReady, StatePlaying, StatePaused:
	case StateEnded:
		_ = p.moveLocked(StatePaused)
	default:
		return fmt.Errorf("%w: seek while %s", ErrInvalidTransition, p.state)
	}
	p.position = p.clampLocked(position)
	return nil
}

// Advance reports playback progress. Reaching the duration ends playback
// and saves the final position.
func (p *Player) Advance(ctx context.Context, position float64) error {
	p.mu.Lock()
	if p.state != StatePlaying {
		defer p.mu.Unlock()
		return fmt.Errorf("%w: advance while %s", ErrInvalidTransition, p.state)
	}
	p.position = p.clampLocked(position)
	if p.duration <= 0 || p.position < p.duration {
		p.mu.Unlock()
		return nil
	}
	_ = p.moveLocked(StateEnded)
	id, pos := p.record.ID, p.position
	p.mu.Unlock()

	return p.savePosition(ctx, id, pos)
}

// Stop returns to idle, saving the position of a started record.
func (p *Player) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.state == StateIdle {
		p.mu.Unlock()
		return nil
	}
	id, pos, save := p.record.ID, p.position, p.hasPositionLocked()
	_ = p.moveLocked(StateIdle)
	p.record = database.Record{}
	p.position = 0
	p.duration = 0
	p.mu.Unlock()

	if save {
		return p.savePosition(ctx, id, pos)
	}
	return nil
}

func (p *Player) hasPositionLocked() bool {
	return p.state == StatePlaying || p.state == StatePaused
}

func (p *Player) clampLocked(pos float64) float64 {
	if pos < 0 {
		return 0
	}
	if p.duration > 0 && pos > p.duration {
		return p.duration
	}
	return pos
}

func (p *Player) savePosition(ctx context.Context, id string, pos float64) error {
	if p.observer == nil || id == "" {
		return nil
	}
	if err := p.observer.PositionSaved(ctx, id, pos); err != nil {
		return fmt.Errorf("failed to save position: %w", err)
	}
	return nil
}
