// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package content

import (
	"context"
	"log/slog"
	"time"

	"github.com/taibuivan/kinship/internal/core/group"
	"github.com/taibuivan/kinship/internal/platform/apperr"
	"github.com/taibuivan/kinship/internal/platform/docstore"
	"github.com/taibuivan/kinship/internal/platform/notify"
	"github.com/taibuivan/kinship/internal/platform/validate"
	"github.com/taibuivan/kinship/pkg/slice"
	"github.com/taibuivan/kinship/pkg/uuid"
)

const (
	maxBodyLength   = 10000
	maxReasonLength = 500
)

// Membership is the part of the group engine the content service consults.
type Membership interface {
	CanPost(ctx context.Context, userID, groupID string) (*group.PostDecision, error)
	RoleOf(ctx context.Context, groupID, userID string) (group.Role, error)
	GetGroup(ctx context.Context, identifier string) (*group.Group, error)
}

// Options tunes the [Service].
type Options struct {
	MaxAttempts int
	Clock       func() time.Time
}

// # Service Layer

// Service orchestrates publishing, approval and hiding of posts.
type Service struct {
	repo       Repository
	membership Membership
	sink       notify.Sink
	logger     *slog.Logger
	attempts   int
	clock      func() time.Time
}

// NewService constructs a new content [Service].
func NewService(repo Repository, membership Membership, sink notify.Sink, logger *slog.Logger, options Options) *Service {
	if options.MaxAttempts < 1 {
		options.MaxAttempts = docstore.DefaultAttempts
	}
	if options.Clock == nil {
		options.Clock = time.Now
	}

	return &Service{
		repo:       repo,
		membership: membership,
		sink:       sink,
		logger:     logger,
		attempts:   options.MaxAttempts,
		clock:      options.Clock,
	}
}

/*
CreatePost publishes a post into a group.

Description: The group's posting policy decides first. A denied author gets
POSTING_DENIED; an author whose posts need approval gets a PENDING post.

Parameters:
  - ctx: context.Context
  - authorID: string (the caller)
  - input: CreateInput

Returns:
  - *Post: The stored post
  - error: ErrPostingDenied, validation or persistence failures
*/
func (service *Service) CreatePost(ctx context.Context, authorID string, input CreateInput) (*Post, error) {
	if authorID == "" {
		return nil, ErrUnauthenticated
	}

	validator := &validate.Validator{}
	validator.ID(FieldGroupID, input.GroupID)
	validator.Required(FieldBody, input.Body).MaxLen(FieldBody, input.Body, maxBodyLength)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	decision, err := service.membership.CanPost(ctx, authorID, input.GroupID)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, ErrPostingDenied.WithMeta("reason", decision.Reason).WithMeta("group_id", input.GroupID)
	}

	status := ApprovalApproved
	if decision.RequiresApproval {
		status = ApprovalPending
	}

	now := service.clock()
	post := &Post{
		ID:             uuid.New(),
		GroupID:        input.GroupID,
		AuthorID:       authorID,
		Body:           input.Body,
		ApprovalStatus: status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	version, err := service.repo.Put(ctx, post, docstore.MustNotExist)
	if err != nil {
		return nil, docstore.ToAppError(err)
	}
	post.Version = version

	service.logger.InfoContext(ctx, "post_created",
		slog.String("post_id", post.ID),
		slog.String("group_id", post.GroupID),
		slog.String("approval_status", string(status)),
	)
	return post, nil
}

/*
GetPost retrieves a post the viewer is allowed to see.

Description: Hidden posts are visible to their author only. Posts that are not
approved are visible to their author and the group's admins. Posts of a banned
group are visible to nobody.

Parameters:
  - ctx: context.Context
  - viewerID: string
  - postID: string

Returns:
  - *Post: The post
  - error: ErrPostNotFound when missing or not visible
*/
func (service *Service) GetPost(ctx context.Context, viewerID, postID string) (*Post, error) {
	post, err := service.loadPost(ctx, postID)
	if err != nil {
		return nil, docstore.ToAppError(err)
	}
	if err := service.requireVisibleGroup(ctx, post.GroupID); err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			return nil, ErrPostNotFound.WithMeta("id", postID)
		}
		return nil, err
	}

	if post.AuthorID == viewerID {
		return post, nil
	}
	if post.Hidden {
		return nil, ErrPostNotFound.WithMeta("id", postID)
	}
	if post.ApprovalStatus != ApprovalApproved && !service.isGroupAdmin(ctx, post.GroupID, viewerID) {
		return nil, ErrPostNotFound.WithMeta("id", postID)
	}
	return post, nil
}

// ListGroupPosts returns the approved, visible posts of a group. A banned group
// is reported as not found.
func (service *Service) ListGroupPosts(ctx context.Context, groupID string) ([]*Post, error) {
	if err := checkID(FieldGroupID, groupID); err != nil {
		return nil, err
	}
	if err := service.requireVisibleGroup(ctx, groupID); err != nil {
		return nil, err
	}

	posts, err := service.repo.ListByGroup(ctx, groupID, ApprovalApproved, docstore.DefaultQueryLimit)
	if err != nil {
		return nil, docstore.ToAppError(err)
	}

	return slice.Filter(posts, func(post *Post) bool { return !post.Hidden }), nil
}

// # Approval

// ListPendingPosts returns posts awaiting approval. The caller must be a group ADMIN or above.
func (service *Service) ListPendingPosts(ctx context.Context, actorID, groupID string) ([]*Post, error) {
	if err := checkID(FieldGroupID, groupID); err != nil {
		return nil, err
	}
	if err := service.requireAdmin(ctx, groupID, actorID); err != nil {
		return nil, err
	}
	if err := service.requireVisibleGroup(ctx, groupID); err != nil {
		return nil, err
	}

	posts, err := service.repo.ListByGroup(ctx, groupID, ApprovalPending, docstore.DefaultQueryLimit)
	if err != nil {
		return nil, docstore.ToAppError(err)
	}
	return posts, nil
}

/*
ApprovePost publishes a PENDING post.

Parameters:
  - ctx: context.Context
  - actorID: string (a group ADMIN or CREATOR)
  - postID: string

Returns:
  - *Post: The approved post
  - error: ErrPostNotPending, group.ErrInsufficientRole
*/
func (service *Service) ApprovePost(ctx context.Context, actorID, postID string) (*Post, error) {
	post, err := service.decide(ctx, actorID, postID, ApprovalApproved, "")
	if err != nil {
		return nil, err
	}

	service.sink.Notify(ctx, post.AuthorID, notify.PostApproved, notify.Payload{"post_id": post.ID, "group_id": post.GroupID})
	return post, nil
}

/*
RejectPost refuses a PENDING post and records the reason.

Parameters:
  - ctx: context.Context
  - actorID: string (a group ADMIN or CREATOR)
  - postID: string
  - reason: string (optional)

Returns:
  - *Post: The rejected post
  - error: ErrPostNotPending, group.ErrInsufficientRole
*/
func (service *Service) RejectPost(ctx context.Context, actorID, postID, reason string) (*Post, error) {
	validator := &validate.Validator{}
	if err := validator.MaxLen(FieldReason, reason, maxReasonLength).Err(); err != nil {
		return nil, err
	}

	post, err := service.decide(ctx, actorID, postID, ApprovalRejected, reason)
	if err != nil {
		return nil, err
	}

	service.sink.Notify(ctx, post.AuthorID, notify.PostRejected, notify.Payload{"post_id": post.ID, "group_id": post.GroupID, "reason": reason})
	return post, nil
}

// decide moves a PENDING post into a final approval state.
func (service *Service) decide(ctx context.Context, actorID, postID string, status ApprovalStatus, reason string) (*Post, error) {
	if actorID == "" {
		return nil, ErrUnauthenticated
	}

	var decided *Post
	err := docstore.RetryOnConflict(ctx, service.attempts, func(ctx context.Context) error {
		post, err := service.loadPost(ctx, postID)
		if err != nil {
			return err
		}
		if err := service.requireAdmin(ctx, post.GroupID, actorID); err != nil {
			return err
		}
		if post.ApprovalStatus != ApprovalPending {
			return ErrPostNotPending.WithMeta("id", postID).WithMeta("state", string(post.ApprovalStatus))
		}

		post.ApprovalStatus = status
		post.RejectionReason = reason
		post.UpdatedAt = service.clock()
		version, err := service.repo.Put(ctx, post, post.Version)
		if err != nil {
			return err
		}
		post.Version = version
		decided = post
		return nil
	})
	if err != nil {
		return nil, docstore.ToAppError(err)
	}

	service.logger.InfoContext(ctx, "post_reviewed",
		slog.String("post_id", postID),
		slog.String("actor_id", actorID),
		slog.String("approval_status", string(status)),
	)
	return decided, nil
}

// # Moderation

/*
HideContent hides a piece of content as the outcome of a moderation decision.

Description: Hiding an already hidden post succeeds without writing. Only POST
targets are stored here; other target types are rejected.

Parameters:
  - ctx: context.Context
  - targetType: string
  - targetID: string

Returns:
  - error: Validation for unsupported types, ErrPostNotFound, conflict
*/
func (service *Service) HideContent(ctx context.Context, targetType, targetID string) error {
	if targetType != TargetPost {
		return apperr.ValidationError("Content type cannot be hidden", apperr.FieldError{Field: FieldTargetType, Message: "Unsupported value " + targetType})
	}

	var hidden bool
	err := docstore.RetryOnConflict(ctx, service.attempts, func(ctx context.Context) error {
		post, err := service.loadPost(ctx, targetID)
		if err != nil {
			return err
		}
		if post.Hidden {
			return nil
		}

		post.Hidden = true
		post.UpdatedAt = service.clock()
		if _, err := service.repo.Put(ctx, post, post.Version); err != nil {
			return err
		}
		hidden = true
		return nil
	})
	if err != nil {
		return docstore.ToAppError(err)
	}

	if hidden {
		service.logger.InfoContext(ctx, "content_hidden",
			slog.String("target_type", targetType),
			slog.String("target_id", targetID),
		)
	}
	return nil
}

// # Internal Helpers

func (service *Service) loadPost(ctx context.Context, postID string) (*Post, error) {
	if err := checkID(FieldPostID, postID); err != nil {
		return nil, err
	}

	post, err := service.repo.FindByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound.WithMeta("id", postID)
	}
	return post, nil
}

// requireAdmin fails with group.ErrInsufficientRole unless the actor is ADMIN or CREATOR.
func (service *Service) requireAdmin(ctx context.Context, groupID, actorID string) error {
	role, err := service.membership.RoleOf(ctx, groupID, actorID)
	if apperr.HasCode(err, group.CodeNotMember) {
		return group.ErrInsufficientRole.WithMeta("required", string(group.RoleAdmin))
	}
	if err != nil {
		return err
	}
	if !role.AtLeast(group.RoleAdmin) {
		return group.ErrInsufficientRole.WithMeta("required", string(group.RoleAdmin))
	}
	return nil
}

// requireVisibleGroup fails with group.ErrGroupNotFound for missing and banned groups.
func (service *Service) requireVisibleGroup(ctx context.Context, groupID string) error {
	_, err := service.membership.GetGroup(ctx, groupID)
	return err
}

func (service *Service) isGroupAdmin(ctx context.Context, groupID, userID string) bool {
	if userID == "" {
		return false
	}
	return service.requireAdmin(ctx, groupID, userID) == nil
}

func checkID(field, value string) error {
	validator := &validate.Validator{}
	return validator.ID(field, value).Err()
}
