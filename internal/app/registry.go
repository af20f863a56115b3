package app

import (
	"time"

	"github.com/google/uuid"
	"live-quiz-service/internal/domain"
)

// Connection is the outbound handle of one client. Send must not block; transports
// queue the event or fail fast.
type Connection interface {
	ID() string
	Send(event domain.Event) error
}

type member struct {
	participant *domain.Participant
	conn        Connection
}

// Registry tracks the participants of one session in join order. It is not safe for
// concurrent use; the owning Session serializes access.
type Registry struct {
	order   []string
	members map[string]*member
	newID   func() string
}

func newRegistry() *Registry {
	return &Registry{
		members: make(map[string]*member),
		newID:   uuid.NewString,
	}
}

// Join allocates a fresh participant with zero score and streak.
func (r *Registry) Join(displayName, userID string, conn Connection, now time.Time) domain.Participant {
	id := r.newID()
	for _, taken := r.members[id]; taken; _, taken = r.members[id] {
		id = r.newID()
	}
	p := &domain.Participant{
		ID:       id,
		UserID:   userID,
		Name:     displayName,
		JoinedAt: now,
	}
	r.members[id] = &member{participant: p, conn: conn}
	r.order = append(r.order, id)
	return *p
}

// Leave removes a participant. Leaving an absent participant is a no-op and reports false.
func (r *Registry) Leave(participantID string) bool {
	if _, ok := r.members[participantID]; !ok {
		return false
	}
	delete(r.members, participantID)
	for i, id := range r.order {
		if id == participantID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns a copy of the participant.
func (r *Registry) Get(participantID string) (domain.Participant, error) {
	m, ok := r.members[participantID]
	if !ok {
		return domain.Participant{}, domain.ErrUnknownParticipant
	}
	return *m.participant, nil
}

// List returns copies of all participants in join order.
func (r *Registry) List() []domain.Participant {
	out := make([]domain.Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.members[id].participant)
	}
	return out
}

// Len returns the number of registered participants.
func (r *Registry) Len() int {
	return len(r.order)
}

func (r *Registry) participant(participantID string) (*domain.Participant, bool) {
	m, ok := r.members[participantID]
	if !ok {
		return nil, false
	}
	return m.participant, true
}

func (r *Registry) connections() []Connection {
	conns := make([]Connection, 0, len(r.order))
	for _, id := range r.order {
		if c := r.members[id].conn; c != nil {
			conns = append(conns, c)
		}
	}
	return conns
}
