package events

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"nftmarket/core/types"
)

const streamHistoryLimit = 2048

// Update is a committed event annotated with its stream position.
type Update struct {
	Sequence uint64       `json:"sequence"`
	Cursor   string       `json:"cursor"`
	Height   uint64       `json:"height"`
	Event    *types.Event `json:"event"`
}

func cloneUpdate(update Update) Update {
	cloned := update
	cloned.Event = update.Event.Clone()
	return cloned
}

// Stream fans committed events out to subscribers and keeps a bounded
// history so reconnecting clients can resume from a cursor.
type Stream struct {
	mu      sync.Mutex
	seq     uint64
	nextID  uint64
	subs    map[uint64]chan Update
	history []Update
}

// NewStream constructs an empty stream.
func NewStream() *Stream {
	return &Stream{subs: make(map[uint64]chan Update)}
}

// Publish appends the events to the history and delivers them to every
// subscriber. Slow subscribers miss updates rather than blocking the host.
func (s *Stream) Publish(height uint64, evts []*types.Event) {
	if s == nil || len(evts) == 0 {
		return
	}
	s.mu.Lock()
	updates := make([]Update, 0, len(evts))
	for _, evt := range evts {
		if evt == nil {
			continue
		}
		s.seq++
		update := Update{
			Sequence: s.seq,
			Cursor:   strconv.FormatUint(s.seq, 10),
			Height:   height,
			Event:    evt,
		}
		stored := cloneUpdate(update)
		s.history = append(s.history, stored)
		updates = append(updates, stored)
	}
	if len(s.history) > streamHistoryLimit {
		excess := len(s.history) - streamHistoryLimit
		trimmed := make([]Update, streamHistoryLimit)
		copy(trimmed, s.history[excess:])
		s.history = trimmed
	}
	// Sends stay under the lock so cancel cannot close a channel mid-send.
	for _, update := range updates {
		for _, ch := range s.subs {
			select {
			case ch <- cloneUpdate(update):
			default:
			}
		}
	}
	s.mu.Unlock()
}

// Subscribe registers a subscriber for updates after the supplied cursor. The
// backlog holds retained history newer than the cursor.
func (s *Stream) Subscribe(ctx context.Context, cursor string) (<-chan Update, func(), []Update) {
	updates := make(chan Update, 64)

	var since uint64
	if trimmed := strings.TrimSpace(cursor); trimmed != "" {
		if parsed, err := strconv.ParseUint(trimmed, 10, 64); err == nil {
			since = parsed
		}
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = updates
	backlog := make([]Update, 0, len(s.history))
	for _, entry := range s.history {
		if entry.Sequence > since {
			backlog = append(backlog, cloneUpdate(entry))
		}
	}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub)
			}
			s.mu.Unlock()
		})
	}
	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return updates, cancel, backlog
}
