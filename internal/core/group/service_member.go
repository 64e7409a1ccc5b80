// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package group

import (
	"context"
	"log/slog"

	"github.com/taibuivan/kinship/internal/platform/docstore"
	"github.com/taibuivan/kinship/internal/platform/notify"
)

// # Joining and Leaving

/*
Join admits a user into a group.

Description: A PUBLIC group creates the member row immediately and increments
memberCount. A PRIVATE group records a pending join request for its admins
instead.

Parameters:
  - ctx: context.Context
  - groupID: string
  - userID: string (the caller)

Returns:
  - *JoinResult: JOINED with the member row, or REQUESTED with the join request
  - error: ErrAlreadyMember, ErrMemberBanned, ErrJoinRequestPending, ErrGroupArchived
*/
func (service *Service) Join(ctx context.Context, groupID, userID string) (*JoinResult, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if err := checkID(FieldGroupID, groupID); err != nil {
		return nil, err
	}

	var (
		result *JoinResult
		owner  string
	)
	err := docstore.RetryOnConflict(ctx, service.attempts, func(ctx context.Context) error {
		group, err := service.activeGroup(ctx, groupID)
		if err != nil {
			return err
		}

		member, err := service.repo.GetMember(ctx, groupID, userID)
		if err != nil {
			return err
		}
		if member != nil {
			return ErrAlreadyMember.WithMeta("role", string(member.Role))
		}
		if err := service.refuseBanned(ctx, groupID, userID); err != nil {
			return err
		}

		owner = group.OwnerID
		if group.Privacy == PrivacyPublic {
			member, err := service.addMember(ctx, groupID, userID, RoleMember)
			if err != nil {
				return err
			}
			result = &JoinResult{Outcome: OutcomeJoined, Member: member}
			return nil
		}

		request, err := service.openJoinRequest(ctx, groupID, userID, "")
		if err != nil {
			return err
		}
		result = &JoinResult{Outcome: OutcomeRequested, Request: request}
		return nil
	})
	if err != nil {
		return nil, docstore.ToAppError(err)
	}

	if result.Outcome == OutcomeJoined {
		service.adjustCount(ctx, groupID, 1)
		service.logger.InfoContext(ctx, "group_joined",
			slog.String("group_id", groupID),
			slog.String("user_id", userID),
		)
		return result, nil
	}

	service.logger.InfoContext(ctx, "group_join_requested",
		slog.String("group_id", groupID),
		slog.String("user_id", userID),
	)
	service.sink.Notify(ctx, owner, notify.GroupJoinRequest, notify.Payload{"group_id": groupID, "user_id": userID})
	return result, nil
}

/*
Leave removes the caller's own membership.

Parameters:
  - ctx: context.Context
  - groupID: string
  - userID: string (the caller)

Returns:
  - error: ErrCreatorCannotLeave, ErrNotMember
*/
func (service *Service) Leave(ctx context.Context, groupID, userID string) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	if err := checkID(FieldGroupID, groupID); err != nil {
		return err
	}

	removed, err := service.deleteMember(ctx, groupID, userID, func(*Member) error { return nil })
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotMember.WithMeta("group_id", groupID)
	}

	service.logger.InfoContext(ctx, "group_left",
		slog.String("group_id", groupID),
		slog.String("user_id", userID),
	)
	return nil
}

/*
RemoveMember removes another member on behalf of an admin.

Description: The actor must be ADMIN or CREATOR and strictly outrank the target,
so admins remove members and only the creator removes admins.

Parameters:
  - ctx: context.Context
  - actorID: string (the caller)
  - groupID, targetID: string

Returns:
  - error: ErrInsufficientRole, ErrNotMember, ErrCreatorCannotLeave
*/
func (service *Service) RemoveMember(ctx context.Context, actorID, groupID, targetID string) error {
	actor, err := service.requireRole(ctx, groupID, actorID, RoleAdmin)
	if err != nil {
		return err
	}
	if err := checkID(FieldUserID, targetID); err != nil {
		return err
	}

	removed, err := service.deleteMember(ctx, groupID, targetID, func(target *Member) error {
		if !actor.Role.Outranks(target.Role) {
			return ErrInsufficientRole.WithMeta("target_role", string(target.Role))
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotMember.WithMeta("user_id", targetID)
	}

	service.logger.InfoContext(ctx, "group_member_removed",
		slog.String("group_id", groupID),
		slog.String("actor_id", actorID),
		slog.String("target_id", targetID),
	)
	return nil
}

/*
ForceRemove removes a member without an acting admin and bans them from the
group, so a moderation removal cannot be undone by joining again. It backs
moderation outcomes and is idempotent: a user who is no longer a member, or is
already banned, is not an error.

Parameters:
  - ctx: context.Context
  - groupID, userID: string

Returns:
  - error: ErrCreatorCannotLeave or store failures
*/
func (service *Service) ForceRemove(ctx context.Context, groupID, userID string) error {
	if err := checkID(FieldGroupID, groupID); err != nil {
		return err
	}
	if err := checkID(FieldUserID, userID); err != nil {
		return err
	}

	_, err := service.ban(ctx, groupID, userID, "", "moderation", func(*Member) error { return nil })
	return err
}

// deleteMember removes a member row after authorize approves it.
//
// The CREATOR row is never removed. It reports false when there was no row.
func (service *Service) deleteMember(ctx context.Context, groupID, userID string, authorize func(*Member) error) (bool, error) {
	var removed bool

	err := docstore.RetryOnConflict(ctx, service.attempts, func(ctx context.Context) error {
		member, err := service.repo.GetMember(ctx, groupID, userID)
		if err != nil {
			return err
		}
		if member == nil {
			return nil
		}
		if member.Role == RoleCreator {
			return ErrCreatorCannotLeave
		}
		if err := authorize(member); err != nil {
			return err
		}

		if err := service.repo.DeleteMember(ctx, groupID, userID, member.Version); err != nil {
			return err
		}
		removed = true
		return nil
	})
	if err != nil {
		return false, docstore.ToAppError(err)
	}

	if removed {
		service.adjustCount(ctx, groupID, -1)
	}
	return removed, nil
}

// addMember creates a member row. A concurrent identical write surfaces as ErrConflict.
func (service *Service) addMember(ctx context.Context, groupID, userID string, role Role) (*Member, error) {
	member := &Member{GroupID: groupID, UserID: userID, Role: role, JoinedAt: service.clock()}

	version, err := service.repo.PutMember(ctx, member, docstore.MustNotExist)
	if err != nil {
		return nil, err
	}
	member.Version = version
	return member, nil
}

// # Roles

/*
ChangeRole promotes or demotes a member.

Description: Allowed only when the actor strictly outranks the target and the
new role does not exceed the actor's own. Granting or revoking ADMIN is
reserved to the CREATOR, and nobody can grant CREATOR.

Parameters:
  - ctx: context.Context
  - actorID: string (the caller)
  - groupID, targetID: string
  - newRole: Role

Returns:
  - *Member: The updated member row
  - error: ErrInsufficientRole, ErrNotMember, validation or conflict errors
*/
func (service *Service) ChangeRole(ctx context.Context, actorID, groupID, targetID string, newRole Role) (*Member, error) {
	if actorID == "" {
		return nil, ErrUnauthenticated
	}
	if !newRole.Valid() {
		return nil, invalidEnum(FieldRole, string(newRole))
	}
	if newRole == RoleCreator {
		return nil, ErrInsufficientRole.WithMeta("new_role", string(newRole))
	}
	if err := checkID(FieldGroupID, groupID); err != nil {
		return nil, err
	}
	if err := checkID(FieldUserID, targetID); err != nil {
		return nil, err
	}

	var (
		updated *Member
		changed bool
	)
	err := docstore.RetryOnConflict(ctx, service.attempts, func(ctx context.Context) error {
		actor, err := service.repo.GetMember(ctx, groupID, actorID)
		if err != nil {
			return err
		}
		target, err := service.repo.GetMember(ctx, groupID, targetID)
		if err != nil {
			return err
		}
		if actor == nil {
			return ErrInsufficientRole
		}
		if target == nil {
			return ErrNotMember.WithMeta("user_id", targetID)
		}

		if err := authorizeRoleChange(actor.Role, target.Role, newRole); err != nil {
			return err
		}
		if target.Role == newRole {
			updated = target
			return nil
		}

		target.Role = newRole
		version, err := service.repo.PutMember(ctx, target, target.Version)
		if err != nil {
			return err
		}
		target.Version = version
		updated, changed = target, true
		return nil
	})
	if err != nil {
		return nil, docstore.ToAppError(err)
	}

	if changed {
		service.logger.InfoContext(ctx, "group_role_changed",
			slog.String("group_id", groupID),
			slog.String("actor_id", actorID),
			slog.String("target_id", targetID),
			slog.String("role", string(newRole)),
		)
		service.sink.Notify(ctx, targetID, notify.GroupRoleChanged, notify.Payload{"group_id": groupID, "role": string(newRole)})
	}
	return updated, nil
}

// authorizeRoleChange applies the role hierarchy to a role change.
func authorizeRoleChange(actor, target, newRole Role) error {
	denied := func() error {
		return ErrInsufficientRole.WithMeta("actor_role", string(actor)).WithMeta("target_role", string(target))
	}

	switch {
	case newRole == RoleCreator:
		return denied()
	case !actor.Outranks(target):
		return denied()
	case !actor.AtLeast(newRole):
		return denied()
	case newRole == RoleAdmin && actor != RoleCreator:
		return denied()
	}
	return nil
}

// # Posting Policy

/*
CanPost evaluates whether a user may publish into a group and whether the post
needs admin approval first.

Parameters:
  - ctx: context.Context
  - userID: string
  - groupID: string

Returns:
  - *PostDecision: Allowed, RequiresApproval and the denial reason
  - error: ErrGroupNotFound or store failures
*/
func (service *Service) CanPost(ctx context.Context, userID, groupID string) (*PostDecision, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if err := checkID(FieldGroupID, groupID); err != nil {
		return nil, err
	}

	group, err := service.loadGroup(ctx, groupID)
	if err != nil {
		return nil, docstore.ToAppError(err)
	}
	switch group.Status {
	case StatusArchived:
		return &PostDecision{Reason: ReasonArchived}, nil
	case StatusBanned:
		return &PostDecision{Reason: ReasonBanned}, nil
	}

	member, err := service.repo.GetMember(ctx, groupID, userID)
	if err != nil {
		return nil, docstore.ToAppError(err)
	}
	if member == nil {
		return &PostDecision{Reason: ReasonNotMember}, nil
	}

	if group.PostingPermission == PostingAdminsOnly && !member.Role.AtLeast(RoleAdmin) {
		return &PostDecision{Reason: ReasonAdminsOnly, Role: member.Role}, nil
	}

	return &PostDecision{
		Allowed:          true,
		RequiresApproval: group.RequirePostApproval && member.Role == RoleMember,
		Role:             member.Role,
	}, nil
}

// # Counters

/*
ReconcileCount recomputes memberCount from the member rows.

Description: The stored counter is rewritten with compare-and-swap only when it
differs from the row count by more than the configured tolerance.

Parameters:
  - ctx: context.Context
  - groupID: string

Returns:
  - int64: memberCount after reconciliation
  - error: ErrGroupNotFound, conflict or store failures
*/
func (service *Service) ReconcileCount(ctx context.Context, groupID string) (int64, error) {
	var count int64

	err := docstore.RetryOnConflict(ctx, service.attempts, func(ctx context.Context) error {
		group, err := service.loadGroup(ctx, groupID)
		if err != nil {
			return err
		}

		actual, err := service.repo.CountMembers(ctx, groupID)
		if err != nil {
			return err
		}

		drift := actual - group.MemberCount
		if drift < 0 {
			drift = -drift
		}
		if drift <= service.tolerance {
			count = group.MemberCount
			return nil
		}

		previous := group.MemberCount
		group.MemberCount = actual
		if _, err := service.repo.PutGroup(ctx, group, group.Version); err != nil {
			return err
		}

		service.logger.InfoContext(ctx, "member_count_reconciled",
			slog.String("group_id", groupID),
			slog.Int64("previous", previous),
			slog.Int64("actual", actual),
		)
		count = actual
		return nil
	})
	if err != nil {
		return 0, docstore.ToAppError(err)
	}
	return count, nil
}
