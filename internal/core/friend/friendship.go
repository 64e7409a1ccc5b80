// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package friend implements the friend graph: requests, acceptance, removal and
the read-repair that keeps both sides of a pair consistent.

# Storage Model

A relationship between A and B is stored twice, once under each user:

  - A's edge toward B ("A:B") and B's edge toward A ("B:A").
  - A pending request is (PENDING_OUT at the sender, PENDING_IN at the receiver).
  - A friendship is ACCEPTED on both sides. Absence is NONE.

The store has no multi-document transaction. Every mutation writes the two
edges one after the other, guarded by per-edge compare-and-swap, and any reader
that observes a half-applied pair repairs it before trusting it.
*/
package friend

import (
	"time"

	"github.com/taibuivan/kinship/internal/platform/apperr"
)

// # Edge States

// State is the state of one directed edge.
type State string

const (
	StatePendingOut State = "PENDING_OUT"
	StatePendingIn  State = "PENDING_IN"
	StateAccepted   State = "ACCEPTED"
)

// IsPending reports whether the state is one side of an open request.
func (state State) IsPending() bool {
	return state == StatePendingOut || state == StatePendingIn
}

// Edge is one user's view of their relationship with another user.
type Edge struct {
	OwnerID   string    `json:"owner_id"`
	OtherID   string    `json:"other_id"`
	State     State     `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Version is the store version the edge was read at.
	Version int64 `json:"-"`
}

// # Relationship Status

// Status is the relationship between two users as seen by one of them.
type Status string

const (
	StatusNone            Status = "NONE"
	StatusRequestSent     Status = "REQUEST_SENT"
	StatusRequestReceived Status = "REQUEST_RECEIVED"
	StatusFriends         Status = "FRIENDS"
)

// Friendship is the result returned by mutating operations.
type Friendship struct {
	UserID  string    `json:"user_id"`
	OtherID string    `json:"other_id"`
	Status  Status    `json:"status"`
	Since   time.Time `json:"since,omitempty"`

	// AutoAccepted is set when a request met a request in the opposite direction.
	AutoAccepted bool `json:"auto_accepted,omitempty"`
}

// Request is a pending request as listed for one of its parties.
type Request struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// # Domain Errors

const (
	CodeAlreadyFriends        = "ALREADY_FRIENDS"
	CodeRequestAlreadyPending = "REQUEST_ALREADY_PENDING"
	CodeNoSuchRequest         = "NO_SUCH_REQUEST"
	CodeNotFriends            = "NOT_FRIENDS"
)

var (
	// ErrAlreadyFriends is returned when sending a request to an existing friend.
	ErrAlreadyFriends = apperr.Conflict("Users are already friends").WithCode(CodeAlreadyFriends)

	// ErrRequestAlreadyPending is returned when the caller already has an open request to the target.
	ErrRequestAlreadyPending = apperr.Conflict("A friend request is already pending").WithCode(CodeRequestAlreadyPending)

	// ErrNoSuchRequest is returned when accepting or rejecting a request that does not exist.
	ErrNoSuchRequest = apperr.InvalidState("No pending friend request").WithCode(CodeNoSuchRequest)

	// ErrNotFriends is returned when removing a friendship that does not exist.
	ErrNotFriends = apperr.InvalidState("Users are not friends").WithCode(CodeNotFriends)

	// ErrSelfRequest is returned when a user targets themselves.
	ErrSelfRequest = apperr.ValidationError("Cannot befriend yourself", apperr.FieldError{Field: "user_id", Message: "Must differ from the caller"})

	// ErrUnauthenticated is returned when no caller identity is present.
	ErrUnauthenticated = apperr.Unauthorized("Authentication required")
)
