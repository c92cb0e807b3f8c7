/*
Copyright 2024 Authflow Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package alerts holds transient user-facing notifications with optional
// auto-expiry. A queue is owned by one session; it is never shared across
// sessions.
package alerts

import (
	"sync"
	"time"

	"github.com/netbankhq/authflow/model"
)

// Queue is a FIFO queue of alerts. IDs are unique and monotonically
// increasing for the lifetime of the queue, and display order is insertion
// order regardless of kind. Every auto-close timer is owned by the queue
// and released on dismissal or teardown, so no timer can act on a stale id.
type Queue struct {
	mu     sync.Mutex
	nextID int64
	items  []model.Alert
	timers map[int64]*time.Timer
	closed bool
}

func NewQueue() *Queue {
	return &Queue{timers: make(map[int64]*time.Timer)}
}

// Push appends an alert and returns its id. When autoClose is positive the
// alert removes itself after that duration unless dismissed earlier; zero
// disables auto-close.
func (q *Queue) Push(kind model.AlertKind, message string, autoClose time.Duration) int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return 0
	}

	q.nextID++
	id := q.nextID
	q.items = append(q.items, model.Alert{
		ID:          id,
		Kind:        kind,
		Message:     message,
		AutoCloseMs: int(autoClose / time.Millisecond),
	})

	if autoClose > 0 {
		q.timers[id] = time.AfterFunc(autoClose, func() {
			q.Dismiss(id)
		})
	}
	return id
}

// Dismiss removes the alert with the given id and stops its timer, if any.
// Dismissing an unknown or already-expired id is a no-op.
func (q *Queue) Dismiss(id int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dismissLocked(id)
}

func (q *Queue) dismissLocked(id int64) {
	if t, ok := q.timers[id]; ok {
		t.Stop()
		delete(q.timers, id)
	}
	for i, a := range q.items {
		if a.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return
		}
	}
}

// Active returns the currently displayed alerts in insertion order.
func (q *Queue) Active() []model.Alert {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]model.Alert, len(q.items))
	copy(out, q.items)
	return out
}

// Close tears the queue down, stopping all outstanding timers. Pushes after
// Close are dropped.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
	q.items = nil
}
