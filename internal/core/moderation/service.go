// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package moderation

import (
	"context"
	"log/slog"
	"time"

	"github.com/taibuivan/kinship/internal/core/group"
	"github.com/taibuivan/kinship/internal/platform/apperr"
	"github.com/taibuivan/kinship/internal/platform/docstore"
	"github.com/taibuivan/kinship/internal/platform/notify"
	"github.com/taibuivan/kinship/internal/platform/validate"
	"github.com/taibuivan/kinship/pkg/uuid"
)

const (
	maxReasonLength      = 200
	maxDescriptionLength = 2000
)

// ContentHider hides reported content.
type ContentHider interface {
	HideContent(ctx context.Context, targetType, targetID string) error
}

// Membership is the part of the group engine moderation relies on.
type Membership interface {
	RoleOf(ctx context.Context, groupID, userID string) (group.Role, error)
	ForceRemove(ctx context.Context, groupID, userID string) error
	BanGroup(ctx context.Context, groupID string) (*group.Group, error)
}

// Options tunes the [Service].
type Options struct {
	MaxAttempts int
	Clock       func() time.Time
}

// # Service Layer

// Service orchestrates the report lifecycle.
type Service struct {
	repo       Repository
	content    ContentHider
	membership Membership
	sink       notify.Sink
	logger     *slog.Logger
	attempts   int
	clock      func() time.Time
}

// NewService constructs a new moderation [Service].
func NewService(repo Repository, content ContentHider, membership Membership, sink notify.Sink, logger *slog.Logger, options Options) *Service {
	if options.MaxAttempts < 1 {
		options.MaxAttempts = docstore.DefaultAttempts
	}
	if options.Clock == nil {
		options.Clock = time.Now
	}

	return &Service{
		repo:       repo,
		content:    content,
		membership: membership,
		sink:       sink,
		logger:     logger,
		attempts:   options.MaxAttempts,
		clock:      options.Clock,
	}
}

/*
Submit files a PENDING report.

Description: The report is written first and the reporter's guard for the
target is swung to it with compare-and-swap. A guard that still points at an
open report means the reporter is repeating themselves.

Parameters:
  - ctx: context.Context
  - reporterID: string (the caller)
  - input: SubmitInput

Returns:
  - *Report: The new report
  - error: ErrDuplicateReport, validation or persistence failures
*/
func (service *Service) Submit(ctx context.Context, reporterID string, input SubmitInput) (*Report, error) {
	if reporterID == "" {
		return nil, ErrUnauthenticated
	}

	targetType := TargetType(input.TargetType)
	if targetType == TargetGroup && input.GroupID == "" {
		input.GroupID = input.TargetID
	}

	validator := &validate.Validator{}
	validator.Custom(FieldTargetType, !targetType.valid(), "Unknown value "+input.TargetType)
	validator.ID(FieldTargetID, input.TargetID)
	validator.Required(FieldReason, input.Reason).MaxLen(FieldReason, input.Reason, maxReasonLength)
	validator.MaxLen(FieldDescription, input.Description, maxDescriptionLength)
	if input.AuthorID != "" {
		validator.ID(FieldAuthorID, input.AuthorID)
	}
	if input.GroupID != "" {
		validator.ID(FieldGroupID, input.GroupID)
	}
	validator.Custom(FieldTargetID, targetType == TargetUser && input.TargetID == reporterID, "Cannot report yourself")
	if err := validator.Err(); err != nil {
		return nil, err
	}

	var report *Report
	err := docstore.RetryOnConflict(ctx, service.attempts, func(ctx context.Context) error {
		guard, err := service.repo.GetGuard(ctx, reporterID, targetType, input.TargetID)
		if err != nil {
			return err
		}

		expected := docstore.MustNotExist
		if guard != nil {
			open, err := service.repo.FindByID(ctx, guard.ReportID)
			if err != nil {
				return err
			}
			if open != nil && !open.Status.Terminal() {
				return ErrDuplicateReport.WithMeta("report_id", open.ID).WithMeta("state", string(open.Status))
			}
			expected = guard.Version
		}

		now := service.clock()
		candidate := &Report{
			ID:          uuid.New(),
			TargetType:  targetType,
			TargetID:    input.TargetID,
			ReporterID:  reporterID,
			AuthorID:    input.AuthorID,
			GroupID:     input.GroupID,
			Reason:      input.Reason,
			Description: input.Description,
			Status:      StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		version, err := service.repo.Put(ctx, candidate, docstore.MustNotExist)
		if err != nil {
			return err
		}
		candidate.Version = version

		commitCtx := context.WithoutCancel(ctx)
		next := &Guard{ReporterID: reporterID, TargetType: targetType, TargetID: input.TargetID, ReportID: candidate.ID}
		if _, err := service.repo.PutGuard(commitCtx, next, expected); err != nil {
			service.discard(commitCtx, candidate, err)
			return err
		}

		report = candidate
		return nil
	})
	if err != nil {
		return nil, docstore.ToAppError(err)
	}

	service.logger.InfoContext(ctx, "report_submitted",
		slog.String("report_id", report.ID),
		slog.String("target_type", string(report.TargetType)),
		slog.String("target_id", report.TargetID),
	)
	return report, nil
}

// discard deletes a report whose guard write failed.
func (service *Service) discard(ctx context.Context, report *Report, cause error) {
	if err := service.repo.Delete(ctx, report.ID, report.Version); err != nil {
		service.logger.ErrorContext(ctx, "compensation_failed",
			slog.String("report_id", report.ID),
			slog.Any("cause", cause),
			slog.Any("error", err),
		)
		return
	}
	service.logger.DebugContext(ctx, "compensation_applied", slog.String("report_id", report.ID))
}

// # Queries

/*
GetReport returns a report to its reporter or to a moderator with authority over it.

Parameters:
  - ctx: context.Context
  - moderator: Moderator (the caller)
  - reportID: string

Returns:
  - *Report: The report
  - error: ErrReportNotFound, ErrNotModerator
*/
func (service *Service) GetReport(ctx context.Context, moderator Moderator, reportID string) (*Report, error) {
	if moderator.UserID == "" {
		return nil, ErrUnauthenticated
	}

	report, err := service.loadReport(ctx, reportID)
	if err != nil {
		return nil, docstore.ToAppError(err)
	}
	if report.ReporterID == moderator.UserID {
		return report, nil
	}
	if err := service.authorize(ctx, moderator, report.GroupID); err != nil {
		return nil, err
	}
	return report, nil
}

// ListReports returns reports in one state for platform moderators. Empty status means PENDING.
func (service *Service) ListReports(ctx context.Context, moderator Moderator, status string) ([]*Report, error) {
	if !moderator.Role.IsModerator() {
		return nil, ErrNotModerator
	}

	filter := Status(status)
	if filter == "" {
		filter = StatusPending
	}
	validator := &validate.Validator{}
	validator.OneOf(FieldStatus, string(filter), string(StatusPending), string(StatusReviewing), string(StatusActionTaken), string(StatusDismissed))
	if err := validator.Err(); err != nil {
		return nil, err
	}

	reports, err := service.repo.ListByStatus(ctx, filter, docstore.DefaultQueryLimit)
	if err != nil {
		return nil, docstore.ToAppError(err)
	}
	return reports, nil
}

// ListGroupReports returns the reports scoped to a group for its admins and platform moderators.
func (service *Service) ListGroupReports(ctx context.Context, moderator Moderator, groupID string) ([]*Report, error) {
	validator := &validate.Validator{}
	if err := validator.ID(FieldGroupID, groupID).Err(); err != nil {
		return nil, err
	}
	if err := service.authorize(ctx, moderator, groupID); err != nil {
		return nil, err
	}

	reports, err := service.repo.ListByGroup(ctx, groupID, docstore.DefaultQueryLimit)
	if err != nil {
		return nil, docstore.ToAppError(err)
	}
	return reports, nil
}

// ListMyReports returns the reports the caller filed.
func (service *Service) ListMyReports(ctx context.Context, reporterID string) ([]*Report, error) {
	if reporterID == "" {
		return nil, ErrUnauthenticated
	}

	reports, err := service.repo.ListByReporter(ctx, reporterID, docstore.DefaultQueryLimit)
	if err != nil {
		return nil, docstore.ToAppError(err)
	}
	return reports, nil
}

// # Internal Helpers

func (service *Service) loadReport(ctx context.Context, reportID string) (*Report, error) {
	validator := &validate.Validator{}
	if err := validator.ID(FieldReportID, reportID).Err(); err != nil {
		return nil, err
	}

	report, err := service.repo.FindByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, ErrReportNotFound.WithMeta("id", reportID)
	}
	return report, nil
}

// authorize admits platform moderators, and group ADMINs for group-scoped reports.
func (service *Service) authorize(ctx context.Context, moderator Moderator, groupID string) error {
	if moderator.UserID == "" {
		return ErrUnauthenticated
	}
	if moderator.Role.IsModerator() {
		return nil
	}
	if groupID == "" {
		return ErrNotModerator
	}

	role, err := service.membership.RoleOf(ctx, groupID, moderator.UserID)
	if apperr.HasCode(err, group.CodeNotMember) {
		return ErrNotModerator.WithMeta("group_id", groupID)
	}
	if err != nil {
		return err
	}
	if !role.AtLeast(group.RoleAdmin) {
		return ErrNotModerator.WithMeta("group_id", groupID)
	}
	return nil
}
