// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package group

import (
	"context"
	"log/slog"

	"github.com/taibuivan/kinship/internal/platform/docstore"
	"github.com/taibuivan/kinship/internal/platform/validate"
)

const maxBanReasonLength = 200

// # Member Bans

/*
BanUser bans a user from a group on behalf of an admin.

Description: The actor must be ADMIN or CREATOR and strictly outrank the target
when the target is a member. The member row, if any, is removed. Users who are
not members can be banned pre-emptively. Banning twice keeps the first record.

Parameters:
  - ctx: context.Context
  - actorID: string (the caller)
  - groupID, targetID: string
  - reason: string (optional audit note)

Returns:
  - *Ban: The ban record
  - error: ErrInsufficientRole, ErrCreatorCannotLeave, validation or store failures
*/
func (service *Service) BanUser(ctx context.Context, actorID, groupID, targetID, reason string) (*Ban, error) {
	actor, err := service.requireRole(ctx, groupID, actorID, RoleAdmin)
	if err != nil {
		return nil, err
	}

	validator := &validate.Validator{}
	validator.ID(FieldUserID, targetID).MaxLen(FieldReason, reason, maxBanReasonLength)
	validator.Custom(FieldUserID, targetID == actorID, "Cannot ban yourself")
	if err := validator.Err(); err != nil {
		return nil, err
	}

	return service.ban(ctx, groupID, targetID, actorID, reason, func(target *Member) error {
		if !actor.Role.Outranks(target.Role) {
			return ErrInsufficientRole.WithMeta("target_role", string(target.Role))
		}
		return nil
	})
}

/*
Unban lifts a ban so the user may join again. Lifting a ban that does not exist
is not an error.

Parameters:
  - ctx: context.Context
  - actorID: string (must be ADMIN or CREATOR)
  - groupID, targetID: string

Returns:
  - error: ErrInsufficientRole or store failures
*/
func (service *Service) Unban(ctx context.Context, actorID, groupID, targetID string) error {
	if _, err := service.requireRole(ctx, groupID, actorID, RoleAdmin); err != nil {
		return err
	}
	if err := checkID(FieldUserID, targetID); err != nil {
		return err
	}

	var lifted bool
	err := docstore.RetryOnConflict(ctx, service.attempts, func(ctx context.Context) error {
		ban, err := service.repo.GetBan(ctx, groupID, targetID)
		if err != nil || ban == nil {
			return err
		}
		if err := service.repo.DeleteBan(ctx, groupID, targetID, ban.Version); err != nil {
			return err
		}
		lifted = true
		return nil
	})
	if err != nil {
		return docstore.ToAppError(err)
	}

	if lifted {
		service.logger.InfoContext(ctx, "group_member_unbanned",
			slog.String("group_id", groupID),
			slog.String("actor_id", actorID),
			slog.String("target_id", targetID),
		)
	}
	return nil
}

// ListBans returns the ban records of a group. The caller must be ADMIN or above.
func (service *Service) ListBans(ctx context.Context, actorID, groupID string) ([]*Ban, error) {
	if _, err := service.requireRole(ctx, groupID, actorID, RoleAdmin); err != nil {
		return nil, err
	}

	bans, err := service.repo.ListBans(ctx, groupID, 0)
	if err != nil {
		return nil, docstore.ToAppError(err)
	}
	return bans, nil
}

// # Internal Helpers

// ban writes the ban record, then removes the member row.
//
// The record goes first so a Join racing the removal is already refused.
// authorize only runs when the user is a member.
func (service *Service) ban(ctx context.Context, groupID, userID, bannedBy, reason string, authorize func(*Member) error) (*Ban, error) {
	var (
		ban     *Ban
		created bool
	)
	err := docstore.RetryOnConflict(ctx, service.attempts, func(ctx context.Context) error {
		if _, err := service.loadGroup(ctx, groupID); err != nil {
			return err
		}

		member, err := service.repo.GetMember(ctx, groupID, userID)
		if err != nil {
			return err
		}
		if member != nil {
			if member.Role == RoleCreator {
				return ErrCreatorCannotLeave
			}
			if err := authorize(member); err != nil {
				return err
			}
		}

		existing, err := service.repo.GetBan(ctx, groupID, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			ban, created = existing, false
			return nil
		}

		record := &Ban{GroupID: groupID, UserID: userID, BannedBy: bannedBy, Reason: reason, CreatedAt: service.clock()}
		version, err := service.repo.PutBan(ctx, record, docstore.MustNotExist)
		if err != nil {
			return err
		}
		record.Version = version
		ban, created = record, true
		return nil
	})
	if err != nil {
		return nil, docstore.ToAppError(err)
	}

	removed, err := service.deleteMember(ctx, groupID, userID, authorize)
	if err != nil {
		return nil, err
	}

	if created || removed {
		service.logger.InfoContext(ctx, "group_member_banned",
			slog.String("group_id", groupID),
			slog.String("user_id", userID),
			slog.String("banned_by", bannedBy),
			slog.Bool("removed", removed),
		)
	}
	return ban, nil
}

// refuseBanned fails with ErrMemberBanned when userID is banned from groupID.
func (service *Service) refuseBanned(ctx context.Context, groupID, userID string) error {
	ban, err := service.repo.GetBan(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if ban != nil {
		return ErrMemberBanned.WithMeta("group_id", groupID).WithMeta("user_id", userID)
	}
	return nil
}
