package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	UsersRegistered        uint64
	LoginsSucceeded        uint64
	LoginsFailed           uint64
	NotesCreated           uint64
	NotesUpdated           uint64
	NotesDeleted           uint64
	ImagesUploaded         uint64
	RateLimited            uint64
	RequestDurationCount   uint64
	RequestDurationTotalNs int64
}

// InMemoryRecorder keeps counters in memory and backs the /metrics endpoint.
type InMemoryRecorder struct {
	usersRegistered        atomic.Uint64
	loginsSucceeded        atomic.Uint64
	loginsFailed           atomic.Uint64
	notesCreated           atomic.Uint64
	notesUpdated           atomic.Uint64
	notesDeleted           atomic.Uint64
	imagesUploaded         atomic.Uint64
	rateLimited            atomic.Uint64
	requestDurationCount   atomic.Uint64
	requestDurationTotalNs atomic.Int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		UsersRegistered:        m.usersRegistered.Load(),
		LoginsSucceeded:        m.loginsSucceeded.Load(),
		LoginsFailed:           m.loginsFailed.Load(),
		NotesCreated:           m.notesCreated.Load(),
		NotesUpdated:           m.notesUpdated.Load(),
		NotesDeleted:           m.notesDeleted.Load(),
		ImagesUploaded:         m.imagesUploaded.Load(),
		RateLimited:            m.rateLimited.Load(),
		RequestDurationCount:   m.requestDurationCount.Load(),
		RequestDurationTotalNs: m.requestDurationTotalNs.Load(),
	}
}

// IncUserRegistered increments the registration counter.
func (m *InMemoryRecorder) IncUserRegistered() {
	m.usersRegistered.Add(1)
}

// IncLogin increments the login counter for result.
func (m *InMemoryRecorder) IncLogin(result string) {
	if result == LoginSuccess {
		m.loginsSucceeded.Add(1)
		return
	}
	m.loginsFailed.Add(1)
}

// IncNoteCreated increments note created counter.
func (m *InMemoryRecorder) IncNoteCreated() {
	m.notesCreated.Add(1)
}

// IncNoteUpdated increments note updated counter.
func (m *InMemoryRecorder) IncNoteUpdated() {
	m.notesUpdated.Add(1)
}

// IncNoteDeleted increments note deleted counter.
func (m *InMemoryRecorder) IncNoteDeleted() {
	m.notesDeleted.Add(1)
}

// IncImageUploaded increments the image upload counter.
func (m *InMemoryRecorder) IncImageUploaded() {
	m.imagesUploaded.Add(1)
}

// IncRateLimited increments the rejected-by-rate-limit counter.
func (m *InMemoryRecorder) IncRateLimited() {
	m.rateLimited.Add(1)
}

// ObserveRequestDuration records one request duration.
func (m *InMemoryRecorder) ObserveRequestDuration(duration time.Duration) {
	m.requestDurationCount.Add(1)
	m.requestDurationTotalNs.Add(duration.Nanoseconds())
}
