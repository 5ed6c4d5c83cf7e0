package mqtt

import "log"

// queuedMsg is a serialized message held until the broker is reachable.
type queuedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// offlineQueue holds messages published while disconnected, oldest first.
// At its limit it evicts the oldest non-retained message, so retained
// lifecycle events outlive a burst of pecks; only when every queued
// message is retained does the oldest of those go.
// Not safe for concurrent use; RealPublisher guards it with its mutex.
type offlineQueue struct {
	msgs    []queuedMsg
	limit   int
	dropped int // evictions since the last drain
}

func newOfflineQueue(limit int) *offlineQueue {
	if limit < 1 {
		limit = 1
	}
	return &offlineQueue{limit: limit}
}

func (q *offlineQueue) push(msg queuedMsg) {
	if len(q.msgs) >= q.limit {
		if q.dropped == 0 {
			log.Printf("mqtt: offline queue full (%d messages), dropping oldest", q.limit)
		}
		q.evict()
		q.dropped++
	}
	q.msgs = append(q.msgs, msg)
}

func (q *offlineQueue) evict() {
	victim := 0
	for i, m := range q.msgs {
		if !m.retained {
			victim = i
			break
		}
	}
	q.msgs = append(q.msgs[:victim], q.msgs[victim+1:]...)
}

// drain empties the queue, returning its messages oldest first and the
// number evicted since the previous drain.
func (q *offlineQueue) drain() ([]queuedMsg, int) {
	msgs, dropped := q.msgs, q.dropped
	q.msgs, q.dropped = nil, 0
	if len(msgs) == 0 {
		return nil, dropped
	}
	return msgs, dropped
}

func (q *offlineQueue) len() int {
	return len(q.msgs)
}
