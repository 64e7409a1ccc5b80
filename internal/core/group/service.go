// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package group

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/taibuivan/kinship/internal/platform/docstore"
	"github.com/taibuivan/kinship/internal/platform/notify"
	"github.com/taibuivan/kinship/internal/platform/validate"
	"github.com/taibuivan/kinship/pkg/slug"
	"github.com/taibuivan/kinship/pkg/uuid"
)

const (
	maxNameLength        = 100
	maxDescriptionLength = 1000
)

// Options tunes the [Service].
type Options struct {
	// MaxAttempts is the read-decide-write budget per operation.
	MaxAttempts int

	// CountTolerance is how far memberCount may drift before ReconcileCount rewrites it.
	CountTolerance int64

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// # Service Layer

// Service orchestrates business rules for groups and memberships.
type Service struct {
	repo      Repository
	sink      notify.Sink
	logger    *slog.Logger
	attempts  int
	tolerance int64
	clock     func() time.Time
}

// NewService constructs a new group [Service].
func NewService(repo Repository, sink notify.Sink, logger *slog.Logger, options Options) *Service {
	if options.MaxAttempts < 1 {
		options.MaxAttempts = docstore.DefaultAttempts
	}
	if options.Clock == nil {
		options.Clock = time.Now
	}

	return &Service{
		repo:      repo,
		sink:      sink,
		logger:    logger,
		attempts:  options.MaxAttempts,
		tolerance: options.CountTolerance,
		clock:     options.Clock,
	}
}

// # Group Management

/*
CreateGroup initialises a new group and assigns the creator the CREATOR role.

Description: The group row is written first with memberCount = 1, then the
creator's member row. If the member row cannot be written the group row is
deleted again so no group exists without its creator.

Parameters:
  - ctx: context.Context
  - creatorID: string
  - input: CreateInput

Returns:
  - *Group: The created group
  - error: Validation or persistence failures
*/
func (service *Service) CreateGroup(ctx context.Context, creatorID string, input CreateInput) (*Group, error) {
	if creatorID == "" {
		return nil, ErrUnauthenticated
	}

	validator := &validate.Validator{}
	validator.Required(FieldName, input.Name).MaxLen(FieldName, input.Name, maxNameLength)
	validator.MaxLen(FieldDescription, input.Description, maxDescriptionLength)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	privacy, err := ParsePrivacy(input.Privacy)
	if err != nil {
		return nil, err
	}
	posting, err := ParsePostingPermission(input.PostingPermission)
	if err != nil {
		return nil, err
	}

	now := service.clock()
	id := uuid.New()
	group := &Group{
		ID:                  id,
		Name:                input.Name,
		Slug:                slug.WithSuffix(slug.From(input.Name), id[len(id)-8:]),
		Description:         input.Description,
		OwnerID:             creatorID,
		Privacy:             privacy,
		PostingPermission:   posting,
		RequirePostApproval: input.RequirePostApproval,
		MemberCount:         1,
		Status:              StatusActive,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	version, err := service.repo.PutGroup(ctx, group, docstore.MustNotExist)
	if err != nil {
		return nil, docstore.ToAppError(err)
	}
	group.Version = version

	commitCtx := context.WithoutCancel(ctx)
	creator := &Member{GroupID: id, UserID: creatorID, Role: RoleCreator, JoinedAt: now}
	if _, err := service.repo.PutMember(commitCtx, creator, docstore.MustNotExist); err != nil {
		if deleteErr := service.repo.DeleteGroup(commitCtx, id, version); deleteErr != nil {
			service.logger.ErrorContext(ctx, "compensation_failed",
				slog.String("group_id", id),
				slog.Any("cause", err),
				slog.Any("error", deleteErr),
			)
		}
		return nil, docstore.ToAppError(err)
	}

	service.logger.InfoContext(ctx, "group_created",
		slog.String("group_id", id),
		slog.String("creator_id", creatorID),
		slog.String("privacy", string(privacy)),
	)

	return group, nil
}

/*
GetGroup retrieves a group by its UUID or slug. Banned groups are reported as
missing.

Parameters:
  - ctx: context.Context
  - identifier: string

Returns:
  - *Group: The group
  - error: ErrGroupNotFound if missing or banned
*/
func (service *Service) GetGroup(ctx context.Context, identifier string) (*Group, error) {
	var (
		group *Group
		err   error
	)

	// Discriminator: ID vs Slug
	if uuid.Valid(identifier) {
		group, err = service.repo.FindByID(ctx, identifier)
	} else {
		group, err = service.repo.FindBySlug(ctx, identifier)
	}
	if err != nil {
		return nil, docstore.ToAppError(err)
	}
	if group == nil || group.Status == StatusBanned {
		return nil, ErrGroupNotFound.WithMeta("id", identifier)
	}
	return group, nil
}

/*
UpdateSettings changes the name, description, privacy or posting policy of a group.

Parameters:
  - ctx: context.Context
  - actorID: string (must be ADMIN or CREATOR)
  - groupID: string
  - input: SettingsInput

Returns:
  - *Group: The updated group
  - error: ErrInsufficientRole, ErrGroupArchived, validation or conflict errors
*/
func (service *Service) UpdateSettings(ctx context.Context, actorID, groupID string, input SettingsInput) (*Group, error) {
	validator := &validate.Validator{}
	if input.Name != nil {
		validator.Required(FieldName, *input.Name).MaxLen(FieldName, *input.Name, maxNameLength)
	}
	if input.Description != nil {
		validator.MaxLen(FieldDescription, *input.Description, maxDescriptionLength)
	}
	if err := validator.Err(); err != nil {
		return nil, err
	}

	var (
		privacy *Privacy
		posting *PostingPermission
	)
	if input.Privacy != nil {
		parsed, err := ParsePrivacy(*input.Privacy)
		if err != nil {
			return nil, err
		}
		privacy = &parsed
	}
	if input.PostingPermission != nil {
		parsed, err := ParsePostingPermission(*input.PostingPermission)
		if err != nil {
			return nil, err
		}
		posting = &parsed
	}

	if _, err := service.requireRole(ctx, groupID, actorID, RoleAdmin); err != nil {
		return nil, err
	}

	var updated *Group
	err := docstore.RetryOnConflict(ctx, service.attempts, func(ctx context.Context) error {
		group, err := service.activeGroup(ctx, groupID)
		if err != nil {
			return err
		}

		if input.Name != nil {
			group.Name = *input.Name
		}
		if input.Description != nil {
			group.Description = *input.Description
		}
		if privacy != nil {
			group.Privacy = *privacy
		}
		if posting != nil {
			group.PostingPermission = *posting
		}
		if input.RequirePostApproval != nil {
			group.RequirePostApproval = *input.RequirePostApproval
		}
		group.UpdatedAt = service.clock()

		version, err := service.repo.PutGroup(ctx, group, group.Version)
		if err != nil {
			return err
		}
		group.Version = version
		updated = group
		return nil
	})
	if err != nil {
		return nil, docstore.ToAppError(err)
	}

	service.logger.InfoContext(ctx, "group_updated",
		slog.String("group_id", groupID),
		slog.String("actor_id", actorID),
	)
	return updated, nil
}

/*
ArchiveGroup closes a group to new members, posts and setting changes.

Parameters:
  - ctx: context.Context
  - actorID: string (must be the CREATOR)
  - groupID: string

Returns:
  - *Group: The archived group
  - error: ErrInsufficientRole, ErrGroupBanned or conflict errors
*/
func (service *Service) ArchiveGroup(ctx context.Context, actorID, groupID string) (*Group, error) {
	if _, err := service.requireRole(ctx, groupID, actorID, RoleCreator); err != nil {
		return nil, err
	}

	var archived *Group
	err := docstore.RetryOnConflict(ctx, service.attempts, func(ctx context.Context) error {
		group, err := service.loadGroup(ctx, groupID)
		if err != nil {
			return err
		}
		switch group.Status {
		case StatusArchived:
			archived = group
			return nil
		case StatusBanned:
			return ErrGroupBanned.WithMeta("id", groupID)
		}

		group.Status = StatusArchived
		group.UpdatedAt = service.clock()
		version, err := service.repo.PutGroup(ctx, group, group.Version)
		if err != nil {
			return err
		}
		group.Version = version
		archived = group
		return nil
	})
	if err != nil {
		return nil, docstore.ToAppError(err)
	}

	service.logger.InfoContext(ctx, "group_archived", slog.String("group_id", groupID))
	return archived, nil
}

/*
BanGroup takes a group down platform-wide.

Description: A banned group accepts no members, posts or setting changes, and
is hidden from lookups, rosters and membership lists. The member rows are
kept. Banning a banned group is a no-op. It backs moderation outcomes and has
no acting admin.

Parameters:
  - ctx: context.Context
  - groupID: string

Returns:
  - *Group: The banned group
  - error: ErrGroupNotFound or conflict errors
*/
func (service *Service) BanGroup(ctx context.Context, groupID string) (*Group, error) {
	if err := checkID(FieldGroupID, groupID); err != nil {
		return nil, err
	}

	var (
		banned  *Group
		changed bool
	)
	err := docstore.RetryOnConflict(ctx, service.attempts, func(ctx context.Context) error {
		group, err := service.loadGroup(ctx, groupID)
		if err != nil {
			return err
		}
		if group.Status == StatusBanned {
			banned = group
			return nil
		}

		group.Status = StatusBanned
		group.UpdatedAt = service.clock()
		version, err := service.repo.PutGroup(ctx, group, group.Version)
		if err != nil {
			return err
		}
		group.Version = version
		banned, changed = group, true
		return nil
	})
	if err != nil {
		return nil, docstore.ToAppError(err)
	}

	if changed {
		service.logger.InfoContext(ctx, "group_banned", slog.String("group_id", groupID))
	}
	return banned, nil
}

// # Listings

/*
ListMembers returns the roster of a group.

Parameters:
  - ctx: context.Context
  - groupID: string

Returns:
  - []*Member: Members ordered by user ID
  - error: ErrGroupNotFound or store failures
*/
func (service *Service) ListMembers(ctx context.Context, groupID string) ([]*Member, error) {
	if _, err := service.visibleGroup(ctx, groupID); err != nil {
		return nil, docstore.ToAppError(err)
	}

	members, err := service.repo.ListMembers(ctx, groupID, 0)
	if err != nil {
		return nil, docstore.ToAppError(err)
	}
	return members, nil
}

/*
ListGroupsForUser returns every group the user is a member of, with their role.

Parameters:
  - ctx: context.Context
  - userID: string

Returns:
  - []Membership: One entry per member row whose group exists and is not banned
  - error: Store failures
*/
func (service *Service) ListGroupsForUser(ctx context.Context, userID string) ([]Membership, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	rows, err := service.repo.ListMemberships(ctx, userID, 0)
	if err != nil {
		return nil, docstore.ToAppError(err)
	}

	memberships := make([]Membership, 0, len(rows))
	for _, row := range rows {
		group, err := service.repo.FindByID(ctx, row.GroupID)
		if err != nil {
			return nil, docstore.ToAppError(err)
		}
		if group == nil || group.Status == StatusBanned {
			continue
		}
		memberships = append(memberships, Membership{Group: group, Role: row.Role, JoinedAt: row.JoinedAt})
	}
	return memberships, nil
}

/*
RoleOf returns the role of a user in a group.

Parameters:
  - ctx: context.Context
  - groupID, userID: string

Returns:
  - Role: The member's role
  - error: ErrNotMember when the user has no member row
*/
func (service *Service) RoleOf(ctx context.Context, groupID, userID string) (Role, error) {
	member, err := service.repo.GetMember(ctx, groupID, userID)
	if err != nil {
		return "", docstore.ToAppError(err)
	}
	if member == nil {
		return "", ErrNotMember.WithMeta("group_id", groupID)
	}
	return member.Role, nil
}

// # Internal Helpers

// loadGroup returns the group or ErrGroupNotFound.
func (service *Service) loadGroup(ctx context.Context, groupID string) (*Group, error) {
	group, err := service.repo.FindByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound.WithMeta("id", groupID)
	}
	return group, nil
}

// visibleGroup returns the group, reporting a banned group as missing.
func (service *Service) visibleGroup(ctx context.Context, groupID string) (*Group, error) {
	group, err := service.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group.Status == StatusBanned {
		return nil, ErrGroupNotFound.WithMeta("id", groupID)
	}
	return group, nil
}

// activeGroup returns the group, or ErrGroupArchived or ErrGroupBanned when it
// no longer accepts changes.
func (service *Service) activeGroup(ctx context.Context, groupID string) (*Group, error) {
	group, err := service.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	switch group.Status {
	case StatusArchived:
		return nil, ErrGroupArchived.WithMeta("id", groupID)
	case StatusBanned:
		return nil, ErrGroupBanned.WithMeta("id", groupID)
	}
	return group, nil
}

// requireRole returns the actor's member row if their role is at least minimum.
func (service *Service) requireRole(ctx context.Context, groupID, actorID string, minimum Role) (*Member, error) {
	if actorID == "" {
		return nil, ErrUnauthenticated
	}
	if err := checkID(FieldGroupID, groupID); err != nil {
		return nil, err
	}

	member, err := service.repo.GetMember(ctx, groupID, actorID)
	if err != nil {
		return nil, docstore.ToAppError(err)
	}
	if member == nil || !member.Role.AtLeast(minimum) {
		return nil, ErrInsufficientRole.WithMeta("required", string(minimum))
	}
	return member, nil
}

// adjustCount applies delta to memberCount after a committed membership change.
//
// The member row is already authoritative, so a failure here is logged and
// left for ReconcileCount instead of being returned to the caller.
func (service *Service) adjustCount(ctx context.Context, groupID string, delta int64) {
	ctx = context.WithoutCancel(ctx)

	err := docstore.RetryOnConflict(ctx, service.attempts, func(ctx context.Context) error {
		group, err := service.loadGroup(ctx, groupID)
		if err != nil {
			return err
		}

		group.MemberCount += delta
		if group.MemberCount < 0 {
			group.MemberCount = 0
		}
		_, err = service.repo.PutGroup(ctx, group, group.Version)
		return err
	})
	if err != nil {
		service.logger.WarnContext(ctx, "member_count_drift",
			slog.String("group_id", groupID),
			slog.Int64("delta", delta),
			slog.Any("error", err),
		)
	}
}

func checkID(field, value string) error {
	validator := &validate.Validator{}
	return validator.ID(field, value).Err()
}

// isConflict reports whether err is a lost compare-and-swap.
func isConflict(err error) bool {
	return errors.Is(err, docstore.ErrConflict)
}
