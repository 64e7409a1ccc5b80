// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package group manages groups, their memberships and the role hierarchy.

# Core Responsibility

  - Organization: Defines the [Group] entity, its privacy and posting policy.
  - Membership: Manages [Member] rows and the CREATOR > ADMIN > MEMBER order.
  - Admission: Join requests for private groups and member invitations.
  - Counters: Owns the derived memberCount and its reconciliation.

A member row's existence is authoritative for "is member of group". The
memberCount on [Group] is written only by this package and may drift from the
row count until [Service.ReconcileCount] runs.
*/
package group

import (
	"time"

	"github.com/taibuivan/kinship/internal/platform/apperr"
)

// # Group Enums

// Role defines the authority level of a member within a group.
type Role string

const (
	RoleCreator Role = "CREATOR"
	RoleAdmin   Role = "ADMIN"
	RoleMember  Role = "MEMBER"
)

// rank returns the position of the role in the hierarchy. Unknown roles rank 0.
func (role Role) rank() int {
	switch role {
	case RoleCreator:
		return 3
	case RoleAdmin:
		return 2
	case RoleMember:
		return 1
	}
	return 0
}

// Valid reports whether role is one of the known roles.
func (role Role) Valid() bool { return role.rank() > 0 }

// Outranks reports whether role is strictly above other.
func (role Role) Outranks(other Role) bool { return role.rank() > other.rank() }

// AtLeast reports whether role is equal to or above other.
func (role Role) AtLeast(other Role) bool { return role.rank() >= other.rank() }

// Privacy controls how users join a group.
type Privacy string

const (
	PrivacyPublic  Privacy = "PUBLIC"
	PrivacyPrivate Privacy = "PRIVATE"
)

// PostingPermission controls which roles may publish posts.
type PostingPermission string

const (
	PostingEveryone   PostingPermission = "EVERYONE"
	PostingAdminsOnly PostingPermission = "ADMINS_ONLY"
)

// Status is the lifecycle state of a group.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusArchived Status = "ARCHIVED"
	StatusBanned   Status = "BANNED"
)

// # Core Entities

// Group is a community users can join and post into.
type Group struct {
	ID                  string            `json:"id"` // UUIDv7
	Name                string            `json:"name"`
	Slug                string            `json:"slug"`
	Description         string            `json:"description,omitempty"`
	OwnerID             string            `json:"owner_id"`
	Privacy             Privacy           `json:"privacy"`
	PostingPermission   PostingPermission `json:"posting_permission"`
	RequirePostApproval bool              `json:"require_post_approval"`
	MemberCount         int64             `json:"member_count"`
	Status              Status            `json:"status"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`

	Version int64 `json:"-"`
}

// Member represents a user's affiliation and role within a group.
type Member struct {
	GroupID  string    `json:"group_id"`
	UserID   string    `json:"user_id"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`

	Version int64 `json:"-"`
}

// Ban bars a removed user from joining the group again.
type Ban struct {
	GroupID   string    `json:"group_id"`
	UserID    string    `json:"user_id"`
	BannedBy  string    `json:"banned_by,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	Version int64 `json:"-"`
}

// Membership is one entry of a user's group list.
type Membership struct {
	Group    *Group    `json:"group"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// # Admission

// RequestStatus is the state of a join request or invitation.
type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestApproved RequestStatus = "APPROVED"
	RequestRejected RequestStatus = "REJECTED"
)

// JoinRequest asks the admins of a private group for membership.
type JoinRequest struct {
	GroupID   string        `json:"group_id"`
	UserID    string        `json:"user_id"`
	Status    RequestStatus `json:"status"`
	InvitedBy string        `json:"invited_by,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`

	Version int64 `json:"-"`
}

// Invitation is a member's invitation of another user into a group.
type Invitation struct {
	GroupID   string        `json:"group_id"`
	InviterID string        `json:"inviter_id"`
	InviteeID string        `json:"invitee_id"`
	Status    RequestStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`

	Version int64 `json:"-"`
}

// JoinOutcome tells the caller what a join attempt produced.
type JoinOutcome string

const (
	OutcomeJoined    JoinOutcome = "JOINED"
	OutcomeRequested JoinOutcome = "REQUESTED"
	OutcomeDeclined  JoinOutcome = "DECLINED"
)

// JoinResult is returned by operations that may admit a user.
type JoinResult struct {
	Outcome JoinOutcome  `json:"outcome"`
	Member  *Member      `json:"member,omitempty"`
	Request *JoinRequest `json:"request,omitempty"`
}

// # Posting Policy

// Denial reasons reported by [Service.CanPost].
const (
	ReasonNotMember  = "NOT_MEMBER"
	ReasonAdminsOnly = "ADMINS_ONLY"
	ReasonArchived   = "GROUP_ARCHIVED"
	ReasonBanned     = "GROUP_BANNED"
)

// PostDecision is the result of evaluating a group's posting policy for a user.
type PostDecision struct {
	Allowed          bool   `json:"allowed"`
	RequiresApproval bool   `json:"requires_approval"`
	Reason           string `json:"reason,omitempty"`
	Role             Role   `json:"role,omitempty"`
}

// # Inputs

// CreateInput carries the fields accepted when creating a group.
type CreateInput struct {
	Name                string `json:"name"`
	Description         string `json:"description"`
	Privacy             string `json:"privacy"`
	PostingPermission   string `json:"posting_permission"`
	RequirePostApproval bool   `json:"require_post_approval"`
}

// SettingsInput is a partial update of group settings. Nil fields are kept.
type SettingsInput struct {
	Name                *string `json:"name"`
	Description         *string `json:"description"`
	Privacy             *string `json:"privacy"`
	PostingPermission   *string `json:"posting_permission"`
	RequirePostApproval *bool   `json:"require_post_approval"`
}

// # Field Identifiers

const (
	FieldName              = "name"
	FieldDescription       = "description"
	FieldPrivacy           = "privacy"
	FieldPostingPermission = "posting_permission"
	FieldRole              = "role"
	FieldGroupID           = "group_id"
	FieldUserID            = "user_id"
	FieldReason            = "reason"
)

// # Parsing

// ParseRole converts a boundary string into a [Role].
func ParseRole(raw string) (Role, error) {
	role := Role(raw)
	if !role.Valid() {
		return "", invalidEnum(FieldRole, raw)
	}
	return role, nil
}

// ParsePrivacy converts a boundary string into a [Privacy]. Empty means PUBLIC.
func ParsePrivacy(raw string) (Privacy, error) {
	switch Privacy(raw) {
	case "", PrivacyPublic:
		return PrivacyPublic, nil
	case PrivacyPrivate:
		return PrivacyPrivate, nil
	}
	return "", invalidEnum(FieldPrivacy, raw)
}

// ParsePostingPermission converts a boundary string into a [PostingPermission].
// Empty means EVERYONE.
func ParsePostingPermission(raw string) (PostingPermission, error) {
	switch PostingPermission(raw) {
	case "", PostingEveryone:
		return PostingEveryone, nil
	case PostingAdminsOnly:
		return PostingAdminsOnly, nil
	}
	return "", invalidEnum(FieldPostingPermission, raw)
}

func invalidEnum(field, raw string) error {
	return apperr.ValidationError("Validation failed", apperr.FieldError{Field: field, Message: "Unknown value " + raw})
}

// # Domain Errors

const (
	CodeAlreadyMember      = "ALREADY_MEMBER"
	CodeNotMember          = "NOT_MEMBER"
	CodeCreatorCannotLeave = "CREATOR_CANNOT_LEAVE"
	CodeInsufficientRole   = "INSUFFICIENT_ROLE"
	CodeJoinRequestPending = "JOIN_REQUEST_PENDING"
	CodeNoSuchJoinRequest  = "NO_SUCH_JOIN_REQUEST"
	CodeInvitationPending  = "INVITATION_PENDING"
	CodeNoSuchInvitation   = "NO_SUCH_INVITATION"
	CodeGroupArchived      = "GROUP_ARCHIVED"
	CodeGroupBanned        = "GROUP_BANNED"
	CodeMemberBanned       = "MEMBER_BANNED"
)

var (
	ErrGroupNotFound      = apperr.NotFound("Group")
	ErrAlreadyMember      = apperr.Conflict("User is already a member of this group").WithCode(CodeAlreadyMember)
	ErrNotMember          = apperr.InvalidState("User is not a member of this group").WithCode(CodeNotMember)
	ErrCreatorCannotLeave = apperr.InvalidState("The group creator cannot leave or be removed").WithCode(CodeCreatorCannotLeave)
	ErrInsufficientRole   = apperr.Forbidden("Your role does not allow this action").WithCode(CodeInsufficientRole)
	ErrJoinRequestPending = apperr.Conflict("A join request is already pending").WithCode(CodeJoinRequestPending)
	ErrNoSuchJoinRequest  = apperr.InvalidState("No pending join request").WithCode(CodeNoSuchJoinRequest)
	ErrInvitationPending  = apperr.Conflict("An invitation is already pending").WithCode(CodeInvitationPending)
	ErrNoSuchInvitation   = apperr.InvalidState("No pending invitation").WithCode(CodeNoSuchInvitation)
	ErrGroupArchived      = apperr.InvalidState("The group is archived").WithCode(CodeGroupArchived)
	ErrGroupBanned        = apperr.InvalidState("The group has been banned").WithCode(CodeGroupBanned)
	ErrMemberBanned       = apperr.Forbidden("User is banned from this group").WithCode(CodeMemberBanned)
	ErrUnauthenticated    = apperr.Unauthorized("Authentication required")
)
