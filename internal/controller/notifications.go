package controller

import (
	"github.com/google/uuid"

	"rradio/internal/messages"
)

// notificationRequest is one queued notification: notifications preempt
// user-visible state minimally, and back-to-back notifications are queued
// and played in submission order. id exists only for log correlation
// between "queued" and "playing" log lines.
type notificationRequest struct {
	id     uuid.UUID
	uri    string
	phase  messages.NotificationPhase
	resume phaseKind
}

func newNotificationRequest(uri string, phase messages.NotificationPhase, resume phaseKind) notificationRequest {
	return notificationRequest{id: uuid.New(), uri: uri, phase: phase, resume: resume}
}

// notificationQueue is the small FIFO sub-state-machine backing
// notification playback: notifications play in submission order, and once
// the queue drains the Controller resumes the return state recorded with
// the last notification played.
type notificationQueue struct {
	pending []notificationRequest
}

func (q *notificationQueue) push(req notificationRequest) {
	q.pending = append(q.pending, req)
}

func (q *notificationQueue) empty() bool { return len(q.pending) == 0 }

// pop removes and returns the next queued notification in submission order.
func (q *notificationQueue) pop() (notificationRequest, bool) {
	if len(q.pending) == 0 {
		return notificationRequest{}, false
	}
	req := q.pending[0]
	q.pending = q.pending[1:]
	return req, true
}
