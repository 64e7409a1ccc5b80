// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package moderation implements the report lifecycle.

# State Machine

	PENDING -> REVIEWING -> RESOLVED_ACTION_TAKEN
	                     -> RESOLVED_DISMISSED

Every transition is a compare-and-swap on the report document. A resolved report
never changes status again; the moderation action it carries is applied after
the resolution commits and a failed action only flags the report for audit.

A reporter holds at most one open report per target. The guard document keyed
by reporter and target makes that check race-free.
*/
package moderation

import (
	"time"

	"github.com/taibuivan/kinship/internal/platform/apperr"
	"github.com/taibuivan/kinship/internal/platform/sec"
)

// # Report Enums

// TargetType is the kind of entity being reported.
type TargetType string

const (
	TargetPost    TargetType = "POST"
	TargetComment TargetType = "COMMENT"
	TargetUser    TargetType = "USER"
	TargetGroup   TargetType = "GROUP"
)

func (target TargetType) valid() bool {
	switch target {
	case TargetPost, TargetComment, TargetUser, TargetGroup:
		return true
	}
	return false
}

// content reports whether the target is a piece of content that can be hidden.
func (target TargetType) content() bool {
	return target == TargetPost || target == TargetComment
}

// Status is the lifecycle state of a report.
type Status string

const (
	StatusPending     Status = "PENDING"
	StatusReviewing   Status = "REVIEWING"
	StatusActionTaken Status = "RESOLVED_ACTION_TAKEN"
	StatusDismissed   Status = "RESOLVED_DISMISSED"
)

// Terminal reports whether the status is one of the resolved states.
func (status Status) Terminal() bool {
	return status == StatusActionTaken || status == StatusDismissed
}

// Outcome is a moderator's verdict.
type Outcome string

const (
	OutcomeActionTaken Outcome = "ACTION_TAKEN"
	OutcomeDismissed   Outcome = "DISMISSED"
)

// Action is the side effect applied when a report is resolved with ACTION_TAKEN.
type Action string

const (
	ActionNone         Action = "NONE"
	ActionHideContent  Action = "HIDE_CONTENT"
	ActionRemoveMember Action = "REMOVE_MEMBER"
	ActionBanGroup     Action = "BAN_GROUP"
)

// # Core Entities

// Report is a user's complaint about a post, comment, user or group.
type Report struct {
	ID          string     `json:"id"` // UUIDv7
	TargetType  TargetType `json:"target_type"`
	TargetID    string     `json:"target_id"`
	ReporterID  string     `json:"reporter_id"`
	AuthorID    string     `json:"author_id,omitempty"`
	GroupID     string     `json:"group_id,omitempty"`
	Reason      string     `json:"reason"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status"`
	ClaimedBy   string     `json:"claimed_by,omitempty"`
	ResolvedBy  string     `json:"resolved_by,omitempty"`
	Action      Action     `json:"action,omitempty"`

	// ActionPartiallyFailed marks a resolution whose action did not complete.
	ActionPartiallyFailed bool   `json:"action_partially_failed"`
	FailureDetail         string `json:"failure_detail,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`

	Version int64 `json:"-"`
}

// Guard points at the open report of one reporter against one target.
type Guard struct {
	ReporterID string     `json:"reporter_id"`
	TargetType TargetType `json:"target_type"`
	TargetID   string     `json:"target_id"`
	ReportID   string     `json:"report_id"`

	Version int64 `json:"-"`
}

// Moderator identifies the caller of a moderation operation.
type Moderator struct {
	UserID string
	Role   sec.UserRole
}

// # Inputs

// SubmitInput carries the fields accepted when filing a report.
type SubmitInput struct {
	TargetType  string `json:"target_type"`
	TargetID    string `json:"target_id"`
	AuthorID    string `json:"author_id"`
	GroupID     string `json:"group_id"`
	Reason      string `json:"reason"`
	Description string `json:"description"`
}

// ResolveInput carries a moderator's verdict.
type ResolveInput struct {
	Outcome string `json:"outcome"`
	Action  string `json:"action"`
}

// # Field Identifiers

const (
	FieldTargetType  = "target_type"
	FieldTargetID    = "target_id"
	FieldAuthorID    = "author_id"
	FieldGroupID     = "group_id"
	FieldReportID    = "report_id"
	FieldReason      = "reason"
	FieldDescription = "description"
	FieldOutcome     = "outcome"
	FieldAction      = "action"
	FieldStatus      = "status"
)

// # Domain Errors

const (
	CodeDuplicateReport  = "DUPLICATE_REPORT"
	CodeAlreadyClaimed   = "ALREADY_CLAIMED"
	CodeReportResolved   = "REPORT_RESOLVED"
	CodeReportNotClaimed = "REPORT_NOT_CLAIMED"
	CodeNotModerator     = "NOT_MODERATOR"
)

var (
	ErrReportNotFound   = apperr.NotFound("Report")
	ErrDuplicateReport  = apperr.Conflict("You already have an open report against this target").WithCode(CodeDuplicateReport)
	ErrAlreadyClaimed   = apperr.Conflict("Report is claimed by another moderator").WithCode(CodeAlreadyClaimed)
	ErrReportResolved   = apperr.InvalidState("Report is already resolved").WithCode(CodeReportResolved)
	ErrReportNotClaimed = apperr.InvalidState("Report must be claimed before it is resolved").WithCode(CodeReportNotClaimed)
	ErrNotModerator     = apperr.Forbidden("Moderator role required").WithCode(CodeNotModerator)
	ErrUnauthenticated  = apperr.Unauthorized("Authentication required")
)
