// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package group

import (
	"context"
	"errors"
	"log/slog"

	"github.com/taibuivan/kinship/internal/platform/apperr"
	"github.com/taibuivan/kinship/internal/platform/docstore"
	"github.com/taibuivan/kinship/internal/platform/notify"
)

// # Join Requests

// openJoinRequest writes a PENDING join request, reusing a closed one if present.
func (service *Service) openJoinRequest(ctx context.Context, groupID, userID, invitedBy string) (*JoinRequest, error) {
	existing, err := service.repo.GetJoinRequest(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}

	now := service.clock()
	request := &JoinRequest{GroupID: groupID, UserID: userID, Status: RequestPending, InvitedBy: invitedBy, CreatedAt: now, UpdatedAt: now}
	expected := docstore.MustNotExist
	if existing != nil {
		if existing.Status == RequestPending {
			return nil, ErrJoinRequestPending
		}
		expected = existing.Version
	}

	version, err := service.repo.PutJoinRequest(ctx, request, expected)
	if err != nil {
		return nil, err
	}
	request.Version = version
	return request, nil
}

/*
ListJoinRequests returns the pending join requests of a group.

Parameters:
  - ctx: context.Context
  - actorID: string (must be ADMIN or CREATOR)
  - groupID: string

Returns:
  - []*JoinRequest: Pending requests ordered by user ID
  - error: ErrInsufficientRole or store failures
*/
func (service *Service) ListJoinRequests(ctx context.Context, actorID, groupID string) ([]*JoinRequest, error) {
	if _, err := service.requireRole(ctx, groupID, actorID, RoleAdmin); err != nil {
		return nil, err
	}

	requests, err := service.repo.ListJoinRequests(ctx, groupID, RequestPending, 0)
	if err != nil {
		return nil, docstore.ToAppError(err)
	}
	return requests, nil
}

/*
ApproveJoinRequest admits the requester of a pending join request.

Description: The request is moved to APPROVED first, then the member row is
created. If the member row cannot be written the request is put back to
PENDING so an admin can approve it again.

Parameters:
  - ctx: context.Context
  - actorID: string (must be ADMIN or CREATOR)
  - groupID, userID: string

Returns:
  - *Member: The new member row
  - error: ErrNoSuchJoinRequest, ErrMemberBanned, ErrInsufficientRole, ErrGroupArchived
*/
func (service *Service) ApproveJoinRequest(ctx context.Context, actorID, groupID, userID string) (*Member, error) {
	if _, err := service.requireRole(ctx, groupID, actorID, RoleAdmin); err != nil {
		return nil, err
	}
	if err := checkID(FieldUserID, userID); err != nil {
		return nil, err
	}

	var (
		member *Member
		joined bool
	)
	err := docstore.RetryOnConflict(ctx, service.attempts, func(ctx context.Context) error {
		if _, err := service.activeGroup(ctx, groupID); err != nil {
			return err
		}

		request, err := service.repo.GetJoinRequest(ctx, groupID, userID)
		if err != nil {
			return err
		}
		if request == nil || request.Status != RequestPending {
			return ErrNoSuchJoinRequest.WithMeta("user_id", userID)
		}
		if err := service.refuseBanned(ctx, groupID, userID); err != nil {
			return err
		}

		request.Status = RequestApproved
		request.UpdatedAt = service.clock()
		version, err := service.repo.PutJoinRequest(ctx, request, request.Version)
		if err != nil {
			return err
		}

		member, joined, err = service.admit(ctx, groupID, userID, func(commitCtx context.Context) {
			request.Status = RequestPending
			service.restore(commitCtx, "join_request", groupID, userID, func() error {
				_, err := service.repo.PutJoinRequest(commitCtx, request, version)
				return err
			})
		})
		return err
	})
	if err != nil {
		return nil, docstore.ToAppError(err)
	}

	if joined {
		service.adjustCount(ctx, groupID, 1)
	}
	service.logger.InfoContext(ctx, "group_join_approved",
		slog.String("group_id", groupID),
		slog.String("actor_id", actorID),
		slog.String("user_id", userID),
	)
	service.sink.Notify(ctx, userID, notify.GroupJoinApproved, notify.Payload{"group_id": groupID})
	return member, nil
}

/*
RejectJoinRequest declines a pending join request.

Parameters:
  - ctx: context.Context
  - actorID: string (must be ADMIN or CREATOR)
  - groupID, userID: string

Returns:
  - error: ErrNoSuchJoinRequest or ErrInsufficientRole
*/
func (service *Service) RejectJoinRequest(ctx context.Context, actorID, groupID, userID string) error {
	if _, err := service.requireRole(ctx, groupID, actorID, RoleAdmin); err != nil {
		return err
	}

	err := docstore.RetryOnConflict(ctx, service.attempts, func(ctx context.Context) error {
		request, err := service.repo.GetJoinRequest(ctx, groupID, userID)
		if err != nil {
			return err
		}
		if request == nil || request.Status != RequestPending {
			return ErrNoSuchJoinRequest.WithMeta("user_id", userID)
		}

		request.Status = RequestRejected
		request.UpdatedAt = service.clock()
		_, err = service.repo.PutJoinRequest(ctx, request, request.Version)
		return err
	})
	if err != nil {
		return docstore.ToAppError(err)
	}

	service.logger.InfoContext(ctx, "group_join_rejected",
		slog.String("group_id", groupID),
		slog.String("actor_id", actorID),
		slog.String("user_id", userID),
	)
	return nil
}

// # Invitations

/*
Invite lets a member invite another user into the group.

Parameters:
  - ctx: context.Context
  - inviterID: string (must be a member)
  - groupID, inviteeID: string

Returns:
  - *Invitation: The pending invitation
  - error: ErrAlreadyMember, ErrMemberBanned, ErrInvitationPending, ErrInsufficientRole
*/
func (service *Service) Invite(ctx context.Context, inviterID, groupID, inviteeID string) (*Invitation, error) {
	if _, err := service.requireRole(ctx, groupID, inviterID, RoleMember); err != nil {
		return nil, err
	}
	if err := checkID(FieldUserID, inviteeID); err != nil {
		return nil, err
	}
	if inviteeID == inviterID {
		return nil, apperr.ValidationError("Cannot invite yourself", apperr.FieldError{Field: FieldUserID, Message: "Must differ from the caller"})
	}

	var invitation *Invitation
	err := docstore.RetryOnConflict(ctx, service.attempts, func(ctx context.Context) error {
		if _, err := service.activeGroup(ctx, groupID); err != nil {
			return err
		}

		member, err := service.repo.GetMember(ctx, groupID, inviteeID)
		if err != nil {
			return err
		}
		if member != nil {
			return ErrAlreadyMember.WithMeta("user_id", inviteeID)
		}
		if err := service.refuseBanned(ctx, groupID, inviteeID); err != nil {
			return err
		}

		existing, err := service.repo.GetInvitation(ctx, groupID, inviteeID)
		if err != nil {
			return err
		}
		expected := docstore.MustNotExist
		if existing != nil {
			if existing.Status == RequestPending {
				return ErrInvitationPending
			}
			expected = existing.Version
		}

		now := service.clock()
		invitation = &Invitation{GroupID: groupID, InviterID: inviterID, InviteeID: inviteeID, Status: RequestPending, CreatedAt: now, UpdatedAt: now}
		version, err := service.repo.PutInvitation(ctx, invitation, expected)
		if err != nil {
			return err
		}
		invitation.Version = version
		return nil
	})
	if err != nil {
		return nil, docstore.ToAppError(err)
	}

	service.logger.InfoContext(ctx, "group_invitation_sent",
		slog.String("group_id", groupID),
		slog.String("inviter_id", inviterID),
		slog.String("invitee_id", inviteeID),
	)
	service.sink.Notify(ctx, inviteeID, notify.GroupInvitation, notify.Payload{"group_id": groupID, "from": inviterID})
	return invitation, nil
}

// ListInvitations returns the caller's pending invitations.
func (service *Service) ListInvitations(ctx context.Context, userID string) ([]*Invitation, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	invitations, err := service.repo.ListInvitations(ctx, userID, RequestPending, 0)
	if err != nil {
		return nil, docstore.ToAppError(err)
	}
	return invitations, nil
}

/*
RespondInvitation accepts or declines a pending invitation.

Description: Accepting joins directly when the group is PUBLIC or the inviter is
still an ADMIN or the CREATOR. Otherwise the acceptance becomes a join request
the admins must approve.

Parameters:
  - ctx: context.Context
  - inviteeID: string (the caller)
  - groupID: string
  - accept: bool

Returns:
  - *JoinResult: JOINED, REQUESTED or DECLINED
  - error: ErrNoSuchInvitation, ErrMemberBanned, ErrGroupArchived
*/
func (service *Service) RespondInvitation(ctx context.Context, inviteeID, groupID string, accept bool) (*JoinResult, error) {
	if inviteeID == "" {
		return nil, ErrUnauthenticated
	}
	if err := checkID(FieldGroupID, groupID); err != nil {
		return nil, err
	}

	var (
		result *JoinResult
		joined bool
		owner  string
	)
	err := docstore.RetryOnConflict(ctx, service.attempts, func(ctx context.Context) error {
		invitation, err := service.repo.GetInvitation(ctx, groupID, inviteeID)
		if err != nil {
			return err
		}
		if invitation == nil || invitation.Status != RequestPending {
			return ErrNoSuchInvitation.WithMeta("group_id", groupID)
		}

		if !accept {
			invitation.Status = RequestRejected
			invitation.UpdatedAt = service.clock()
			if _, err := service.repo.PutInvitation(ctx, invitation, invitation.Version); err != nil {
				return err
			}
			result = &JoinResult{Outcome: OutcomeDeclined}
			return nil
		}

		group, err := service.activeGroup(ctx, groupID)
		if err != nil {
			return err
		}
		if err := service.refuseBanned(ctx, groupID, inviteeID); err != nil {
			return err
		}
		owner = group.OwnerID

		inviter, err := service.repo.GetMember(ctx, groupID, invitation.InviterID)
		if err != nil {
			return err
		}
		direct := group.Privacy == PrivacyPublic || (inviter != nil && inviter.Role.AtLeast(RoleAdmin))

		invitation.Status = RequestApproved
		invitation.UpdatedAt = service.clock()
		version, err := service.repo.PutInvitation(ctx, invitation, invitation.Version)
		if err != nil {
			return err
		}

		undo := func(commitCtx context.Context) {
			invitation.Status = RequestPending
			service.restore(commitCtx, "invitation", groupID, inviteeID, func() error {
				_, err := service.repo.PutInvitation(commitCtx, invitation, version)
				return err
			})
		}

		if direct {
			member, added, err := service.admit(ctx, groupID, inviteeID, undo)
			if err != nil {
				return err
			}
			joined = added
			result = &JoinResult{Outcome: OutcomeJoined, Member: member}
			return nil
		}

		commitCtx := context.WithoutCancel(ctx)
		request, err := service.openJoinRequest(commitCtx, groupID, inviteeID, invitation.InviterID)
		if errors.Is(err, ErrJoinRequestPending) {
			request, err = service.repo.GetJoinRequest(commitCtx, groupID, inviteeID)
		}
		if err != nil {
			undo(commitCtx)
			return err
		}
		result = &JoinResult{Outcome: OutcomeRequested, Request: request}
		return nil
	})
	if err != nil {
		return nil, docstore.ToAppError(err)
	}

	switch result.Outcome {
	case OutcomeJoined:
		if joined {
			service.adjustCount(ctx, groupID, 1)
		}
	case OutcomeRequested:
		service.sink.Notify(ctx, owner, notify.GroupJoinRequest, notify.Payload{"group_id": groupID, "user_id": inviteeID})
	}

	service.logger.InfoContext(ctx, "group_invitation_answered",
		slog.String("group_id", groupID),
		slog.String("invitee_id", inviteeID),
		slog.String("outcome", string(result.Outcome)),
	)
	return result, nil
}

// # Internal Helpers

// admit creates the member row that completes an approval.
//
// An existing row means someone else already admitted the user, which is
// reported with added=false. Any other failure runs undo on a detached
// context before the error is returned.
func (service *Service) admit(ctx context.Context, groupID, userID string, undo func(context.Context)) (*Member, bool, error) {
	commitCtx := context.WithoutCancel(ctx)

	member, err := service.addMember(commitCtx, groupID, userID, RoleMember)
	if isConflict(err) {
		existing, getErr := service.repo.GetMember(commitCtx, groupID, userID)
		if getErr == nil && existing != nil {
			return existing, false, nil
		}
		err = errors.Join(err, getErr)
	}
	if err != nil {
		undo(commitCtx)
		return nil, false, err
	}
	return member, true, nil
}

// restore runs a compensating write and logs its outcome.
func (service *Service) restore(ctx context.Context, entity, groupID, userID string, write func() error) {
	if err := write(); err != nil {
		service.logger.ErrorContext(ctx, "compensation_failed",
			slog.String("entity", entity),
			slog.String("group_id", groupID),
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
		return
	}

	service.logger.WarnContext(ctx, "compensation_applied",
		slog.String("entity", entity),
		slog.String("group_id", groupID),
		slog.String("user_id", userID),
	)
}
