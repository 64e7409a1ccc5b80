// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package group

import "context"

// # Group Data Access

// Repository defines the data access contract for groups, memberships and
// admission records.
//
// Getters return nil without error when the record does not exist. Every write
// takes the version the caller read and fails with docstore.ErrConflict when
// the stored version differs.
type Repository interface {

	/*
		FindByID retrieves a group by its UUID.

		Parameters:
		  - ctx: context.Context
		  - id: string (UUIDv7)

		Returns:
		  - *Group: nil when absent
		  - error: Store failures
	*/
	FindByID(ctx context.Context, id string) (*Group, error)

	/*
		FindBySlug retrieves a group by its human-readable identifier.

		Parameters:
		  - ctx: context.Context
		  - slug: string

		Returns:
		  - *Group: nil when absent
		  - error: Store failures
	*/
	FindBySlug(ctx context.Context, slug string) (*Group, error)

	// PutGroup writes a group under a version precondition.
	PutGroup(ctx context.Context, group *Group, expectedVersion int64) (int64, error)

	// DeleteGroup removes a group. Only used to undo a failed creation.
	DeleteGroup(ctx context.Context, id string, expectedVersion int64) error

	// # Members

	// GetMember returns the member row of userID in groupID.
	GetMember(ctx context.Context, groupID, userID string) (*Member, error)

	// PutMember writes a member row under a version precondition.
	PutMember(ctx context.Context, member *Member, expectedVersion int64) (int64, error)

	// DeleteMember removes a member row under a version precondition.
	DeleteMember(ctx context.Context, groupID, userID string, expectedVersion int64) error

	/*
		ListMembers returns the roster of a group ordered by user ID.

		Parameters:
		  - ctx: context.Context
		  - groupID: string
		  - limit: int (0 for no limit)

		Returns:
		  - []*Member: Member rows
		  - error: Store failures
	*/
	ListMembers(ctx context.Context, groupID string, limit int) ([]*Member, error)

	// ListMemberships returns every member row of a user.
	ListMemberships(ctx context.Context, userID string, limit int) ([]*Member, error)

	// CountMembers returns the authoritative number of member rows of a group.
	CountMembers(ctx context.Context, groupID string) (int64, error)

	// # Join Requests

	GetJoinRequest(ctx context.Context, groupID, userID string) (*JoinRequest, error)
	PutJoinRequest(ctx context.Context, request *JoinRequest, expectedVersion int64) (int64, error)
	ListJoinRequests(ctx context.Context, groupID string, status RequestStatus, limit int) ([]*JoinRequest, error)

	// # Invitations

	GetInvitation(ctx context.Context, groupID, inviteeID string) (*Invitation, error)
	PutInvitation(ctx context.Context, invitation *Invitation, expectedVersion int64) (int64, error)
	ListInvitations(ctx context.Context, inviteeID string, status RequestStatus, limit int) ([]*Invitation, error)

	// # Bans

	// GetBan returns the ban record of userID in groupID.
	GetBan(ctx context.Context, groupID, userID string) (*Ban, error)

	// PutBan writes a ban record under a version precondition.
	PutBan(ctx context.Context, ban *Ban, expectedVersion int64) (int64, error)

	// DeleteBan lifts a ban under a version precondition.
	DeleteBan(ctx context.Context, groupID, userID string, expectedVersion int64) error

	// ListBans returns the ban records of a group ordered by user ID.
	ListBans(ctx context.Context, groupID string, limit int) ([]*Ban, error)
}
