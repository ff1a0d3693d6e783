package booking

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

const ReservationIDLength = 8

// IDIssuer hands out short reservation ids that are unique for the life of
// the process.
type IDIssuer struct {
	mu     sync.Mutex
	issued map[string]struct{}
	gen    func() string
}

func NewIDIssuer() *IDIssuer {
	return &IDIssuer{
		issued: map[string]struct{}{},
		gen: func() string {
			return strings.ToLower(uuid.NewString()[:ReservationIDLength])
		},
	}
}

func (i *IDIssuer) Issue() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	for {
		id := i.gen()
		if _, taken := i.issued[id]; taken {
			continue
		}
		i.issued[id] = struct{}{}
		return id
	}
}

// Reserve marks ids the caller already holds so they are never reissued.
func (i *IDIssuer) Reserve(ids ...string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			i.issued[strings.ToLower(id)] = struct{}{}
		}
	}
}
