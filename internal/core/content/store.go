// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package content

import "context"

// # Post Data Access

// Repository defines the data access contract for posts.
type Repository interface {

	/*
		FindByID retrieves a post.

		Returns:
		  - *Post: nil when absent
		  - error: Store failures
	*/
	FindByID(ctx context.Context, id string) (*Post, error)

	/*
		Put writes a post under a version precondition.

		Parameters:
		  - ctx: context.Context
		  - post: *Post
		  - expectedVersion: int64 (docstore.MustNotExist to create)

		Returns:
		  - int64: New version
		  - error: docstore.ErrConflict or store failures
	*/
	Put(ctx context.Context, post *Post, expectedVersion int64) (int64, error)

	// ListByGroup returns a group's posts in one approval state.
	ListByGroup(ctx context.Context, groupID string, status ApprovalStatus, limit int) ([]*Post, error)
}
