package limiter

import (
    "strings"
    "sync"
)

// Slots hands out a fixed number of in-process slots per key. The session
// controller uses one slot so at most one preview or transformation runs.
type Slots struct {
    maxInflight int
    mu          sync.Mutex
    sem         map[string]chan struct{}
}

func New(maxInflight int) *Slots {
    if maxInflight <= 0 { maxInflight = 1 }
    return &Slots{maxInflight: maxInflight, sem: map[string]chan struct{}{}}
}

// Allow tries to reserve a slot for key.
// Returns a release function and true if allowed; otherwise a no-op, false.
func (s *Slots) Allow(key string) (func(), bool) {
    key = strings.ToLower(key)
    s.mu.Lock()
    ch, ok := s.sem[key]
    if !ok {
        ch = make(chan struct{}, s.maxInflight)
        s.sem[key] = ch
    }
    s.mu.Unlock()
    select {
    case ch <- struct{}{}:
        var once sync.Once
        return func() { once.Do(func() { <-ch }) }, true
    default:
        return func(){}, false
    }
}

// InFlight reports the slots currently held for key.
func (s *Slots) InFlight(key string) int {
    s.mu.Lock()
    ch, ok := s.sem[strings.ToLower(key)]
    s.mu.Unlock()
    if !ok { return 0 }
    return len(ch)
}
