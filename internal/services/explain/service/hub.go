package service

import (
	"sync"

	"ruleexplain/internal/services/explain/domain"
)

// runEvents bounds the events of one run: authorization, submitting, acceptance,
// one polling event per attempt and the terminal event
func runEvents(maxAttempts int) int { return maxAttempts + 4 }

// hub fans live events out to stream subscribers, keyed by submission id
// Each subscriber buffers a whole run so a slow reader never loses the terminal event
type hub struct {
	mu     sync.Mutex
	buffer int
	subs   map[string]map[chan domain.EventRecord]struct{}
}

func newHub(buffer int) *hub {
	return &hub{buffer: buffer, subs: make(map[string]map[chan domain.EventRecord]struct{})}
}

func (h *hub) subscribe(id string) (<-chan domain.EventRecord, func()) {
	ch := make(chan domain.EventRecord, h.buffer)
	h.mu.Lock()
	set, ok := h.subs[id]
	if !ok {
		set = make(map[chan domain.EventRecord]struct{})
		h.subs[id] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if set, ok := h.subs[id]; ok {
				if _, live := set[ch]; live {
					delete(set, ch)
					close(ch)
				}
				if len(set) == 0 {
					delete(h.subs, id)
				}
			}
		})
	}
}

// publish never blocks; it reports how many subscribers missed the event
func (h *hub) publish(id string, ev domain.EventRecord) (dropped int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[id] {
		select {
		case ch <- ev:
		default:
			dropped++
		}
	}
	return dropped
}

// finish closes every subscriber of id
func (h *hub) finish(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[id] {
		close(ch)
	}
	delete(h.subs, id)
}

func (h *hub) count(id string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[id])
}
