// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package content manages group posts and their visibility.

# Core Responsibility

  - Publishing: Creates posts after consulting the group's posting policy.
  - Approval: Holds posts as PENDING when the group requires admin approval.
  - Visibility: Hides content on behalf of moderation outcomes.

A hidden post stays stored and visible to its author only. Hiding is idempotent
so moderation may repeat it safely.
*/
package content

import (
	"time"

	"github.com/taibuivan/kinship/internal/platform/apperr"
)

// # Post Enums

// ApprovalStatus tracks whether a group post is published.
type ApprovalStatus string

const (
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// TargetPost is the only content type [Service.HideContent] knows how to hide.
const TargetPost = "POST"

// # Core Entities

// Post is a piece of content published into a group.
type Post struct {
	ID              string         `json:"id"` // UUIDv7
	GroupID         string         `json:"group_id"`
	AuthorID        string         `json:"author_id"`
	Body            string         `json:"body"`
	ApprovalStatus  ApprovalStatus `json:"approval_status"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
	Hidden          bool           `json:"hidden"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`

	Version int64 `json:"-"`
}

// CreateInput carries the fields accepted when publishing a post.
type CreateInput struct {
	GroupID string `json:"group_id"`
	Body    string `json:"body"`
}

// # Field Identifiers

const (
	FieldGroupID    = "group_id"
	FieldPostID     = "post_id"
	FieldBody       = "body"
	FieldReason     = "reason"
	FieldTargetType = "target_type"
)

// # Domain Errors

const (
	CodePostingDenied  = "POSTING_DENIED"
	CodePostNotPending = "POST_NOT_PENDING"
)

var (
	ErrPostNotFound    = apperr.NotFound("Post")
	ErrPostingDenied   = apperr.Forbidden("You cannot post in this group").WithCode(CodePostingDenied)
	ErrPostNotPending  = apperr.InvalidState("Post is not awaiting approval").WithCode(CodePostNotPending)
	ErrUnauthenticated = apperr.Unauthorized("Authentication required")
)
