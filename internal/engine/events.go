package engine

import "log/slog"

// Event categories.
const (
	CategoryMining   = "mining"
	CategoryHazard   = "hazard"
	CategoryFuel     = "fuel"
	CategoryHull     = "hull"
	CategoryShop     = "shop"
	CategoryItem     = "item"
	CategorySurface  = "surface"
	CategoryDepth    = "depth"
	CategoryGameOver = "game_over"
	CategoryReset    = "reset"
)

const (
	maxEvents   = 1000
	subQueueLen = 64
)

// Event is a notable occurrence in the run.
type Event struct {
	Tick        uint64 `json:"tick" db:"tick"`
	Description string `json:"description" db:"description"`
	Category    string `json:"category" db:"category"`
}

// emit records an event and offers it to subscribers. Callers hold s.mu.
func (s *Simulation) emit(category, description string) {
	e := Event{Tick: s.tick, Description: description, Category: category}
	s.emitted++
	s.events = append(s.events, e)
	if len(s.events) > maxEvents {
		s.events = s.events[len(s.events)-maxEvents:]
	}
	for id, ch := range s.subs {
		select {
		case ch <- e:
		default:
			slog.Debug("subscriber lagging, event dropped", "sub_id", id, "category", category)
		}
	}
}

// Subscribe returns a channel receiving every new event. Slow subscribers
// miss events rather than stall the tick.
func (s *Simulation) Subscribe() (int, <-chan Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	ch := make(chan Event, subQueueLen)
	s.subs[s.nextSub] = ch
	return s.nextSub, ch
}

// Unsubscribe closes and removes a subscription.
func (s *Simulation) Unsubscribe(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subs[id]; ok {
		close(ch)
		delete(s.subs, id)
	}
}

// Events returns up to limit of the most recent events, oldest first.
func (s *Simulation) Events(limit int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if limit > 0 && len(s.events) > limit {
		start = len(s.events) - limit
	}
	out := make([]Event, len(s.events)-start)
	copy(out, s.events[start:])
	return out
}

// DrainEvents returns events recorded since the previous drain. Used by
// persistence to append to its log without duplicates.
func (s *Simulation) DrainEvents() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := min(int(s.emitted-s.drained), len(s.events))
	out := make([]Event, n)
	copy(out, s.events[len(s.events)-n:])
	s.drained = s.emitted
	return out
}
