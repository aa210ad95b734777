/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package audit keeps a bounded trail of recent mapping lifecycle events.
package audit

import (
	"fmt"
	"strconv"
	"sync"

	queuepkg "github.com/Workiva/go-datastructures/queue"
	"github.com/valyala/bytebufferpool"

	"github.com/srediag/plugin-mmap/api"
)

const defaultCapacity = 256

// Trail is a FIFO of the most recent events; the oldest event is dropped once
// capacity is reached.
type Trail struct {
	mu       sync.Mutex
	q        *queuepkg.Queue
	capacity int64
}

// NewTrail keeps up to capacity events; a non-positive capacity means 256.
func NewTrail(capacity int) *Trail {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Trail{
		q:        queuepkg.New(int64(capacity)),
		capacity: int64(capacity),
	}
}

// Record appends ev, evicting the oldest entries beyond capacity.
func (t *Trail) Record(ev api.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.q.Put(ev); err != nil {
		return fmt.Errorf("audit record: %w", err)
	}
	for t.q.Len() > t.capacity {
		if _, err := t.q.Get(t.q.Len() - t.capacity); err != nil {
			return fmt.Errorf("audit evict: %w", err)
		}
	}
	return nil
}

// Events returns the recorded events, oldest first. Reading does not consume
// them.
func (t *Trail) Events() ([]api.Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.q.Disposed() {
		return nil, fmt.Errorf("audit events: %w", queuepkg.ErrDisposed)
	}
	n := t.q.Len()
	if n == 0 {
		return nil, nil
	}
	items, err := t.q.Get(n)
	if err != nil {
		return nil, fmt.Errorf("audit events: %w", err)
	}
	events := make([]api.Event, 0, len(items))
	for _, it := range items {
		if ev, ok := it.(api.Event); ok {
			events = append(events, ev)
		}
	}
	if err := t.q.Put(items...); err != nil {
		return events, fmt.Errorf("audit requeue: %w", err)
	}
	return events, nil
}

func (t *Trail) Len() int {
	return int(t.q.Len())
}

// Close disposes the trail; later Record calls fail.
func (t *Trail) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.q.Dispose()
}

// FormatEvent renders ev as a single key=value line.
func FormatEvent(ev api.Event) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	_, _ = buf.WriteString(string(ev.Op))
	if ev.ID != "" {
		_, _ = buf.WriteString(" id=")
		_, _ = buf.WriteString(ev.ID)
	}
	_, _ = buf.WriteString(" path=")
	buf.B = strconv.AppendQuote(buf.B, ev.Path)
	if ev.ReadOnly {
		_, _ = buf.WriteString(" mode=ro")
	} else {
		_, _ = buf.WriteString(" mode=rw")
	}
	_, _ = buf.WriteString(" size=")
	buf.B = strconv.AppendInt(buf.B, ev.Size, 10)
	if ev.Attempts > 1 {
		_, _ = buf.WriteString(" attempts=")
		buf.B = strconv.AppendInt(buf.B, int64(ev.Attempts), 10)
	}
	_, _ = buf.WriteString(" took=")
	_, _ = buf.WriteString(ev.Duration.String())
	_, _ = buf.WriteString(" result=")
	_, _ = buf.WriteString(ev.Result())
	if ev.Err != nil {
		_, _ = buf.WriteString(" err=")
		buf.B = strconv.AppendQuote(buf.B, ev.Err.Error())
	}
	return buf.String()
}
