// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

type fakeQueue struct {
	mu       sync.Mutex
	pending  int
	handled  int
	released int
	err      error
}

func (q *fakeQueue) ProcessNext(context.Context) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return false, q.err
	}
	if q.pending == 0 {
		return false, nil
	}
	q.pending--
	q.handled++
	return true, nil
}

func (q *fakeQueue) ReleaseStale(context.Context, time.Duration) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.released++
	return 0, nil
}

func (q *fakeQueue) add(n int) {
	q.mu.Lock()
	q.pending += n
	q.mu.Unlock()
}

func (q *fakeQueue) counts() (handled, released int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.handled, q.released
}

func TestDrainEmptiesQueue(t *testing.T) {
	q := &fakeQueue{pending: 3}
	p := New(q, time.Hour, time.Hour)

	assert.Equal(t, 3, p.drain(context.Background()))
	assert.Equal(t, 0, p.drain(context.Background()))
}

func TestDrainIsBounded(t *testing.T) {
	q := &fakeQueue{pending: maxBatch + 5}
	p := New(q, time.Hour, time.Hour)

	assert.Equal(t, maxBatch, p.drain(context.Background()))
}

func TestDrainStopsOnError(t *testing.T) {
	q := &fakeQueue{pending: 3, err: errors.New("db down")}
	p := New(q, time.Hour, time.Hour)

	assert.Equal(t, 0, p.drain(context.Background()))
}

func TestDrainStopsOnCancel(t *testing.T) {
	q := &fakeQueue{pending: 3}
	p := New(q, time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, 0, p.drain(ctx))
}

func TestRunPollsAndStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := &fakeQueue{pending: 2}
	p := New(q, 10*time.Millisecond, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		handled, _ := q.counts()
		return handled == 2
	}, time.Second, 5*time.Millisecond)

	q.add(1)
	assert.Eventually(t, func() bool {
		handled, _ := q.counts()
		return handled == 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
	_, released := q.counts()
	assert.Equal(t, 1, released)
}

func TestRunReleasesStalePeriodically(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := &fakeQueue{}
	p := New(q, 5*time.Millisecond, 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		_, released := q.counts()
		return released >= 2
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
