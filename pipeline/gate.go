package pipeline

import (
	"context"
	"sync"
)

type GateState int

const (
	GateOpen GateState = iota
	GateClosed
	// GateLocked is terminal. Open and Close are ignored once locked.
	GateLocked
)

func (s GateState) String() string {
	switch s {
	case GateOpen:
		return "open"
	case GateClosed:
		return "closed"
	case GateLocked:
		return "locked"
	}
	return "unknown"
}

// Gate lets goroutines wait for a condition without polling.
type Gate struct {
	mu    sync.Mutex
	state GateState
	// closed while the gate is open or locked.
	ch  chan struct{}
	err error
}

func NewGate(open bool) *Gate {
	g := &Gate{ch: make(chan struct{})}
	if open {
		close(g.ch)
	} else {
		g.state = GateClosed
	}
	return g
}

func (g *Gate) Open() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != GateClosed {
		return
	}
	g.state = GateOpen
	close(g.ch)
}

func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != GateOpen {
		return
	}
	g.state = GateClosed
	g.ch = make(chan struct{})
}

func (g *Gate) SetOpenState(open bool) {
	if open {
		g.Open()
	} else {
		g.Close()
	}
}

// Lock permanently locks the gate, releasing all waiters.
func (g *Gate) Lock() {
	g.LockWith(nil)
}

// LockWith locks the gate and records err as the reason. Only the first
// lock records its error.
func (g *Gate) LockWith(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == GateLocked {
		return
	}
	if g.state == GateClosed {
		close(g.ch)
	}
	g.state = GateLocked
	g.err = err
}

func (g *Gate) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Gate) IsOpen() bool {
	return g.State() == GateOpen
}

func (g *Gate) IsLocked() bool {
	return g.State() == GateLocked
}

// Err returns the error the gate was locked with.
func (g *Gate) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

// Check waits while the gate is closed. It returns true once the gate is
// open and false once it is locked. A canceled ctx returns its error.
func (g *Gate) Check(ctx context.Context) (bool, error) {
	for {
		g.mu.Lock()
		state, ch := g.state, g.ch
		g.mu.Unlock()
		switch state {
		case GateOpen:
			return true, nil
		case GateLocked:
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ch:
		}
	}
}
