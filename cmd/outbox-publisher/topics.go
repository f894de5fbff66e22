package main

import (
	"context"
	"errors"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	Stop()
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// topicPublishers opens one publisher per topic on first use and keeps it
// until StopAll.
type topicPublishers struct {
	open func(topic string) publisher

	mu    sync.Mutex
	cache map[string]publisher
}

func newTopicPublishers(open func(topic string) publisher) *topicPublishers {
	return &topicPublishers{open: open, cache: make(map[string]publisher)}
}

// gcpTopics opens topics on a real Pub/Sub client.
func gcpTopics(client interface {
	Publisher(string) *gcppubsub.Publisher
}) *topicPublishers {
	return newTopicPublishers(func(topic string) publisher {
		p := client.Publisher(topic)
		if p == nil {
			return nil
		}
		return gcpPublisher{p}
	})
}

// For returns nil when the topic cannot be opened.
func (t *topicPublishers) For(topic string) publisher {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.cache[topic]; ok {
		return p
	}
	p := t.open(topic)
	if p != nil {
		t.cache[topic] = p
	}
	return p
}

// StopAll flushes pending messages and forgets every publisher.
func (t *topicPublishers) StopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for topic, p := range t.cache {
		p.Stop()
		delete(t.cache, topic)
	}
}

func (t *topicPublishers) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.cache)
}

type gcpPublisher struct {
	p *gcppubsub.Publisher
}

func (g gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return gcpResult{g.p.Publish(ctx, msg)}
}

func (g gcpPublisher) Stop() { g.p.Stop() }

type gcpResult struct {
	r *gcppubsub.PublishResult
}

func (g gcpResult) Get(ctx context.Context) (string, error) {
	if g.r == nil {
		return "", errors.New("nil publish result")
	}
	return g.r.Get(ctx)
}
