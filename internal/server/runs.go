package server

import (
	"context"
	"sync"
)

// ActiveRun tracks a live WebSocket connection. Ctx is cancelled when the
// connection is closed or the server shuts down; submissions already running
// still finish.
type ActiveRun struct {
	LabID  int64
	Client string             // rate limiter key
	Ctx    context.Context
	Cancel context.CancelFunc
	mu     sync.Mutex         // one submission at a time per connection
}

// RunManager tracks open connections so shutdown can close them.
type RunManager struct {
	mu   sync.RWMutex
	runs map[string]*ActiveRun
}

// NewRunManager creates a new RunManager.
func NewRunManager() *RunManager {
	return &RunManager{
		runs: make(map[string]*ActiveRun),
	}
}

// Get returns an active run if it exists.
func (rm *RunManager) Get(id string) (*ActiveRun, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	ar, ok := rm.runs[id]
	return ar, ok
}

// Open registers a connection and returns its run, creating it if needed.
func (rm *RunManager) Open(id string, labID int64) *ActiveRun {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if ar, ok := rm.runs[id]; ok {
		return ar
	}

	ctx, cancel := context.WithCancel(context.Background())
	ar := &ActiveRun{LabID: labID, Ctx: ctx, Cancel: cancel}
	rm.runs[id] = ar
	return ar
}

// Len reports the number of open connections.
func (rm *RunManager) Len() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.runs)
}

// Remove removes a connection and cancels its context.
func (rm *RunManager) Remove(id string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if ar, ok := rm.runs[id]; ok {
		ar.Cancel()
		delete(rm.runs, id)
	}
}

// CloseAll cancels all open connections.
func (rm *RunManager) CloseAll() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	for id, ar := range rm.runs {
		ar.Cancel()
		delete(rm.runs, id)
	}
}
