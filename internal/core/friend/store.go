// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package friend

import "context"

// # Edge Data Access

// Repository defines the data access contract for friend edges.
//
// Every write takes the version the caller read; a mismatch is reported as
// docstore.ErrConflict and the caller restarts its read-decide-write cycle.
type Repository interface {

	/*
		Get reads the edge owner keeps about other.

		Parameters:
		  - ctx: context.Context
		  - owner, other: string

		Returns:
		  - *Edge: nil when there is no edge
		  - error: Store failures
	*/
	Get(ctx context.Context, owner, other string) (*Edge, error)

	/*
		Put writes an edge under a version precondition.

		Parameters:
		  - ctx: context.Context
		  - edge: *Edge
		  - expectedVersion: int64 (docstore.MustNotExist to create)

		Returns:
		  - int64: New version
		  - error: docstore.ErrConflict or store failures
	*/
	Put(ctx context.Context, edge *Edge, expectedVersion int64) (int64, error)

	/*
		Delete removes an edge under a version precondition.

		Parameters:
		  - ctx: context.Context
		  - owner, other: string
		  - expectedVersion: int64

		Returns:
		  - error: docstore.ErrConflict or store failures
	*/
	Delete(ctx context.Context, owner, other string, expectedVersion int64) error

	/*
		ListByState returns owner's edges in the given state, ordered by the other user's ID.

		Parameters:
		  - ctx: context.Context
		  - owner: string
		  - state: State
		  - limit: int

		Returns:
		  - []*Edge: Matching edges
		  - error: Store failures
	*/
	ListByState(ctx context.Context, owner string, state State, limit int) ([]*Edge, error)
}
