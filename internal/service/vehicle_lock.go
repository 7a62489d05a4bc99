package service

import "sync"

// vehicleLocker serializes mileage-affecting writes per vehicle. Two
// near-simultaneous submissions for the same vehicle would otherwise both
// read the same resolved mileage and both pass validation.
type vehicleLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newVehicleLocker() *vehicleLocker {
	return &vehicleLocker{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for the given vehicle, creating it on first use.
func (l *vehicleLocker) Lock(vehicleID string) {
	l.mu.Lock()
	m, ok := l.locks[vehicleID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[vehicleID] = m
	}
	l.mu.Unlock()
	m.Lock()
}

// Unlock releases the mutex for the given vehicle.
func (l *vehicleLocker) Unlock(vehicleID string) {
	l.mu.Lock()
	m, ok := l.locks[vehicleID]
	l.mu.Unlock()
	if ok {
		m.Unlock()
	}
}
