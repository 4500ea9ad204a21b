// Package registry multiplexes many logical subscribers onto a bounded set of
// live push channels: at most one per distinct topic, regardless of how many
// views have asked for it.
package registry

import (
	"context"
	"sync"

	"ordersync/internal/common/logger"
	"ordersync/internal/domain"
	"ordersync/internal/feed"
)

type Callback func(domain.OrderEvent)

// Registry is constructed once at process start and lives for the life of the
// process; topic entries come and go with their subscribers. All refcount
// bookkeeping happens under one mutex, and the open/close of the underlying
// channel completes before that mutex is released.
type Registry struct {
	opener feed.Opener
	lg     *logger.Logger

	mu     sync.Mutex
	topics map[string]*topicState
}

type topicState struct {
	handle feed.Handle
	subs   map[int]Callback
	nextID int
}

func New(opener feed.Opener, lg *logger.Logger) *Registry {
	return &Registry{opener: opener, lg: lg, topics: make(map[string]*topicState)}
}

// Subscribe attaches cb to the filter's topic, opening the topic's single
// live channel if this is the first subscriber. The returned closure removes
// exactly this callback; calling it more than once is a no-op. When the last
// subscriber leaves, the live channel is closed synchronously with the
// removal.
func (r *Registry) Subscribe(ctx context.Context, f feed.TopicFilter, cb Callback) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.topics[f.Topic]
	if !ok {
		h, err := r.opener.OpenChannel(ctx, f)
		if err != nil {
			return nil, err
		}
		st = &topicState{handle: h, subs: make(map[int]Callback)}
		r.topics[f.Topic] = st
		go r.pump(f.Topic, h)
		r.lg.Info("channel_opened", map[string]any{"topic": f.Topic})
	}

	id := st.nextID
	st.nextID++
	st.subs[id] = cb

	done := false
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if done {
			return
		}
		done = true
		cur, ok := r.topics[f.Topic]
		if !ok || cur != st {
			return
		}
		delete(st.subs, id)
		if len(st.subs) == 0 {
			delete(r.topics, f.Topic)
			if err := st.handle.Close(); err != nil {
				r.lg.Error("channel_close", err, map[string]any{"topic": f.Topic})
			}
			r.lg.Info("channel_closed", map[string]any{"topic": f.Topic})
		}
	}, nil
}

// LiveChannels reports how many topics currently hold an open channel.
func (r *Registry) LiveChannels() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.topics)
}

// Subscribers reports the subscriber count for one topic.
func (r *Registry) Subscribers(topic string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.topics[topic]; ok {
		return len(st.subs)
	}
	return 0
}

// pump fans every event out to the topic's current subscribers, in feed
// order. It exits when the handle's event channel closes.
func (r *Registry) pump(topic string, h feed.Handle) {
	for ev := range h.Events() {
		r.mu.Lock()
		var cbs []Callback
		if st, ok := r.topics[topic]; ok && st.handle == h {
			cbs = make([]Callback, 0, len(st.subs))
			for _, cb := range st.subs {
				cbs = append(cbs, cb)
			}
		}
		r.mu.Unlock()
		for _, cb := range cbs {
			r.deliver(topic, cb, ev)
		}
	}
}

// deliver isolates one callback: a panicking subscriber must not stop
// delivery to the rest.
func (r *Registry) deliver(topic string, cb Callback, ev domain.OrderEvent) {
	defer func() {
		if p := recover(); p != nil {
			r.lg.Error("subscriber_panic", nil, map[string]any{"topic": topic, "panic": p})
		}
	}()
	cb(ev)
}
