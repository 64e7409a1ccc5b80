// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package notify

import (
	"context"
	"sync"
	"time"
)

// Recorder is a [Sink] that keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Notify implements [Sink].
func (recorder *Recorder) Notify(_ context.Context, userID string, eventType Type, payload Payload) {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	recorder.events = append(recorder.events, Event{UserID: userID, Type: eventType, Payload: payload, OccurredAt: time.Now()})
}

// Events returns a snapshot of recorded events.
func (recorder *Recorder) Events() []Event {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	return append([]Event(nil), recorder.events...)
}

// Count returns how many events of a type were sent to userID.
func (recorder *Recorder) Count(userID string, eventType Type) int {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()

	count := 0
	for _, event := range recorder.events {
		if event.UserID == userID && event.Type == eventType {
			count++
		}
	}
	return count
}
