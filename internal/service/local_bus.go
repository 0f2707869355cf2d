package service

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"sync"

	"github.com/alanyoungcy/skewscan/internal/domain"
)

// LocalBus is an in-process domain.SignalBus used when Redis is not
// configured. Channel patterns follow path.Match; streams keep the last
// maxLen entries.
type LocalBus struct {
	mu      sync.Mutex
	subs    map[*localSub]struct{}
	streams map[string][]domain.StreamMessage
	seq     int64
	maxLen  int
}

type localSub struct {
	pattern string
	out     chan []byte
}

// NewLocalBus creates a LocalBus. maxLen <= 0 keeps 1000 entries per stream.
func NewLocalBus(maxLen int) *LocalBus {
	if maxLen <= 0 {
		maxLen = 1000
	}
	return &LocalBus{
		subs:    make(map[*localSub]struct{}),
		streams: make(map[string][]domain.StreamMessage),
		maxLen:  maxLen,
	}
}

// Publish delivers payload to every matching subscriber. Slow subscribers
// miss messages rather than block the publisher.
func (b *LocalBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		if ok, _ := path.Match(s.pattern, channel); !ok {
			continue
		}
		select {
		case s.out <- payload:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel that is closed when ctx ends.
func (b *LocalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	if _, err := path.Match(channel, ""); err != nil {
		return nil, fmt.Errorf("local bus: subscribe %s: %w", channel, err)
	}
	s := &localSub{pattern: channel, out: make(chan []byte, 64)}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, s)
		close(s.out)
		b.mu.Unlock()
	}()
	return s.out, nil
}

// StreamAppend adds payload to stream, trimming the oldest entries.
func (b *LocalBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	entries := append(b.streams[stream], domain.StreamMessage{
		ID:      strconv.FormatInt(b.seq, 10) + "-0",
		Payload: payload,
	})
	if len(entries) > b.maxLen {
		entries = entries[len(entries)-b.maxLen:]
	}
	b.streams[stream] = entries
	return nil
}

// StreamRead returns up to count entries after lastID ("0" or "" reads from
// the start).
func (b *LocalBus) StreamRead(_ context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	after := int64(0)
	if lastID != "" && lastID != "0" {
		var err error
		if after, err = streamSeq(lastID); err != nil {
			return nil, fmt.Errorf("local bus: read %s: %w", stream, err)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.StreamMessage
	for _, m := range b.streams[stream] {
		seq, _ := streamSeq(m.ID)
		if seq <= after {
			continue
		}
		out = append(out, m)
		if count > 0 && len(out) == count {
			break
		}
	}
	return out, nil
}

func streamSeq(id string) (int64, error) {
	for i := 0; i < len(id); i++ {
		if id[i] == '-' {
			id = id[:i]
			break
		}
	}
	return strconv.ParseInt(id, 10, 64)
}

var _ domain.SignalBus = (*LocalBus)(nil)
