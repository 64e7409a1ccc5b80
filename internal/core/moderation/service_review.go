// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package moderation

import (
	"context"
	"errors"
	"log/slog"

	"github.com/taibuivan/kinship/internal/platform/apperr"
	"github.com/taibuivan/kinship/internal/platform/docstore"
	"github.com/taibuivan/kinship/internal/platform/notify"
	"github.com/taibuivan/kinship/internal/platform/validate"
)

// # Review

/*
Claim moves a PENDING report to REVIEWING under the caller's name.

Description: Claiming a report the caller already holds is a no-op. A report
held by someone else fails with ALREADY_CLAIMED and a resolved report with
REPORT_RESOLVED.

Parameters:
  - ctx: context.Context
  - moderator: Moderator (the caller)
  - reportID: string

Returns:
  - *Report: The report in REVIEWING
  - error: ErrAlreadyClaimed, ErrReportResolved, ErrNotModerator
*/
func (service *Service) Claim(ctx context.Context, moderator Moderator, reportID string) (*Report, error) {
	if moderator.UserID == "" {
		return nil, ErrUnauthenticated
	}

	var (
		claimed *Report
		changed bool
	)
	err := docstore.RetryOnConflict(ctx, service.attempts, func(ctx context.Context) error {
		report, err := service.loadReport(ctx, reportID)
		if err != nil {
			return err
		}
		if err := service.authorize(ctx, moderator, report.GroupID); err != nil {
			return err
		}

		switch {
		case report.Status.Terminal():
			return ErrReportResolved.WithMeta("id", reportID).WithMeta("state", string(report.Status))
		case report.Status == StatusReviewing && report.ClaimedBy == moderator.UserID:
			claimed = report
			return nil
		case report.Status == StatusReviewing:
			return ErrAlreadyClaimed.WithMeta("id", reportID).WithMeta("claimed_by", report.ClaimedBy)
		}

		report.Status = StatusReviewing
		report.ClaimedBy = moderator.UserID
		report.UpdatedAt = service.clock()
		version, err := service.repo.Put(ctx, report, report.Version)
		if err != nil {
			return err
		}
		report.Version = version
		claimed, changed = report, true
		return nil
	})
	if err != nil {
		return nil, docstore.ToAppError(err)
	}

	if changed {
		service.logger.InfoContext(ctx, "report_claimed",
			slog.String("report_id", reportID),
			slog.String("moderator_id", moderator.UserID),
		)
	}
	return claimed, nil
}

/*
Resolve moves a REVIEWING report held by the caller to a terminal state.

Description: The resolution commits first. The requested action then runs as a
best-effort side effect: hiding the reported content, removing and banning the
offending user from the report's group, or banning a reported group. Only
platform moderators may ban a group. When the action fails the report keeps its
terminal status, is flagged ActionPartiallyFailed and is returned together with
a PARTIAL_FAILURE error.

Parameters:
  - ctx: context.Context
  - moderator: Moderator (the caller)
  - reportID: string
  - input: ResolveInput

Returns:
  - *Report: The resolved report (also on partial failure)
  - error: ErrReportResolved, ErrReportNotClaimed, ErrAlreadyClaimed, PARTIAL_FAILURE
*/
func (service *Service) Resolve(ctx context.Context, moderator Moderator, reportID string, input ResolveInput) (*Report, error) {
	if moderator.UserID == "" {
		return nil, ErrUnauthenticated
	}

	status, action, err := parseVerdict(input)
	if err != nil {
		return nil, err
	}

	var resolved *Report
	err = docstore.RetryOnConflict(ctx, service.attempts, func(ctx context.Context) error {
		report, err := service.loadReport(ctx, reportID)
		if err != nil {
			return err
		}
		if err := service.authorize(ctx, moderator, report.GroupID); err != nil {
			return err
		}

		switch {
		case report.Status.Terminal():
			return ErrReportResolved.WithMeta("id", reportID).WithMeta("state", string(report.Status))
		case report.Status == StatusPending:
			return ErrReportNotClaimed.WithMeta("id", reportID)
		case report.ClaimedBy != moderator.UserID:
			return ErrAlreadyClaimed.WithMeta("id", reportID).WithMeta("claimed_by", report.ClaimedBy)
		}
		if err := checkAction(moderator, report, action); err != nil {
			return err
		}

		now := service.clock()
		report.Status = status
		report.Action = action
		report.ResolvedBy = moderator.UserID
		report.ResolvedAt = &now
		report.UpdatedAt = now
		version, err := service.repo.Put(ctx, report, report.Version)
		if err != nil {
			return err
		}
		report.Version = version
		resolved = report
		return nil
	})
	if err != nil {
		return nil, docstore.ToAppError(err)
	}

	service.logger.InfoContext(ctx, "report_resolved",
		slog.String("report_id", reportID),
		slog.String("moderator_id", moderator.UserID),
		slog.String("status", string(status)),
		slog.String("action", string(action)),
	)

	commitCtx := context.WithoutCancel(ctx)
	actionErr := service.applyAction(commitCtx, resolved)
	if actionErr != nil {
		service.logger.WarnContext(ctx, "report_action_failed",
			slog.String("report_id", reportID),
			slog.String("action", string(action)),
			slog.Any("error", actionErr),
		)
		service.flagPartialFailure(commitCtx, resolved, actionErr)
	}

	service.sink.Notify(ctx, resolved.ReporterID, notify.ReportResolved, notify.Payload{
		"report_id": resolved.ID,
		"status":    string(resolved.Status),
	})

	if actionErr != nil {
		return resolved, apperr.PartialFailure("Report resolved but its action did not complete", actionErr).
			WithMeta("report_id", reportID).
			WithMeta("action", string(action))
	}
	return resolved, nil
}

// parseVerdict maps a resolve input to the terminal status and action.
func parseVerdict(input ResolveInput) (Status, Action, error) {
	action := Action(input.Action)
	if action == "" {
		action = ActionNone
	}

	validator := &validate.Validator{}
	validator.OneOf(FieldOutcome, input.Outcome, string(OutcomeActionTaken), string(OutcomeDismissed))
	validator.OneOf(FieldAction, string(action), string(ActionNone), string(ActionHideContent), string(ActionRemoveMember), string(ActionBanGroup))
	validator.Custom(FieldAction, Outcome(input.Outcome) == OutcomeDismissed && action != ActionNone, "A dismissed report takes no action")
	if err := validator.Err(); err != nil {
		return "", "", err
	}

	if Outcome(input.Outcome) == OutcomeDismissed {
		return StatusDismissed, ActionNone, nil
	}
	return StatusActionTaken, action, nil
}

// checkAction rejects actions that cannot apply to the report's target or
// exceed the moderator's authority.
func checkAction(moderator Moderator, report *Report, action Action) error {
	switch action {
	case ActionHideContent:
		if !report.TargetType.content() {
			return apperr.ValidationError("Action does not apply to this target", apperr.FieldError{Field: FieldAction, Message: "Only posts and comments can be hidden"})
		}
	case ActionRemoveMember:
		if report.GroupID == "" || offender(report) == "" {
			return apperr.ValidationError("Action does not apply to this target", apperr.FieldError{Field: FieldAction, Message: "Needs a group and a user to remove"})
		}
	case ActionBanGroup:
		if report.TargetType != TargetGroup || report.GroupID == "" {
			return apperr.ValidationError("Action does not apply to this target", apperr.FieldError{Field: FieldAction, Message: "Only group reports can ban a group"})
		}
		if !moderator.Role.IsModerator() {
			return ErrNotModerator.WithMeta("action", string(action))
		}
	}
	return nil
}

// offender is the user a REMOVE_MEMBER action applies to.
func offender(report *Report) string {
	if report.TargetType == TargetUser {
		return report.TargetID
	}
	return report.AuthorID
}

// applyAction runs the side effect of a resolution.
func (service *Service) applyAction(ctx context.Context, report *Report) error {
	switch report.Action {
	case ActionHideContent:
		return service.content.HideContent(ctx, string(report.TargetType), report.TargetID)
	case ActionRemoveMember:
		return service.membership.ForceRemove(ctx, report.GroupID, offender(report))
	case ActionBanGroup:
		_, err := service.membership.BanGroup(ctx, report.GroupID)
		return err
	}
	return nil
}

// flagPartialFailure records a failed action on the resolved report.
//
// Only the audit fields change; the terminal status is left as committed.
func (service *Service) flagPartialFailure(ctx context.Context, report *Report, cause error) {
	detail := cause.Error()
	if appError := apperr.As(cause); appError != nil {
		detail = appError.Code + ": " + appError.Message
	}

	err := docstore.RetryOnConflict(ctx, service.attempts, func(ctx context.Context) error {
		current, err := service.loadReport(ctx, report.ID)
		if err != nil {
			return err
		}
		if current.Status != report.Status {
			return errors.New("moderation: resolved report changed status")
		}

		current.ActionPartiallyFailed = true
		current.FailureDetail = detail
		current.UpdatedAt = service.clock()
		version, err := service.repo.Put(ctx, current, current.Version)
		if err != nil {
			return err
		}
		current.Version = version
		*report = *current
		return nil
	})
	if err != nil {
		service.logger.ErrorContext(ctx, "report_flag_failed",
			slog.String("report_id", report.ID),
			slog.Any("cause", cause),
			slog.Any("error", err),
		)
		report.ActionPartiallyFailed = true
		report.FailureDetail = detail
	}
}
