// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package group

import (
	"context"

	"github.com/taibuivan/kinship/internal/platform/docstore"
)

// Document kinds owned by this package.
const (
	KindGroup       docstore.Kind = "group"
	KindMember      docstore.Kind = "group_member"
	KindJoinRequest docstore.Kind = "group_join_request"
	KindInvitation  docstore.Kind = "group_invitation"
	KindBan         docstore.Kind = "group_ban"
)

// Indexed fields.
const (
	indexSlug          = "slug"
	indexGroup         = "group_id"
	indexMember        = "member_id"
	indexGroupStatus   = "group_status"
	indexInviteeStatus = "invitee_status"
)

// countLimit bounds the authoritative member count query.
const countLimit = 1 << 20

// DocRepository implements [Repository] on a [docstore.Store].
type DocRepository struct {
	store docstore.Store
}

// NewDocRepository constructs a document-store backed group repository.
func NewDocRepository(store docstore.Store) *DocRepository {
	return &DocRepository{store: store}
}

func pairKey(groupID, userID string) string {
	return groupID + ":" + userID
}

func statusKey(owner string, status RequestStatus) string {
	return owner + "|" + string(status)
}

// # Groups

// FindByID implements [Repository].
func (repository *DocRepository) FindByID(ctx context.Context, id string) (*Group, error) {
	group, version, found, err := docstore.Load[Group](ctx, repository.store, KindGroup, id)
	if err != nil || !found {
		return nil, err
	}
	group.Version = version
	return &group, nil
}

// FindBySlug implements [Repository].
func (repository *DocRepository) FindBySlug(ctx context.Context, slug string) (*Group, error) {
	docs, err := repository.store.QueryByField(ctx, KindGroup, indexSlug, slug, 1)
	if err != nil || len(docs) == 0 {
		return nil, err
	}

	var group Group
	if err := docstore.Decode(docs[0], &group); err != nil {
		return nil, err
	}
	group.Version = docs[0].Version
	return &group, nil
}

// PutGroup implements [Repository].
func (repository *DocRepository) PutGroup(ctx context.Context, group *Group, expectedVersion int64) (int64, error) {
	fields := map[string]string{indexSlug: group.Slug}
	return docstore.Save(ctx, repository.store, KindGroup, group.ID, group, fields, expectedVersion)
}

// DeleteGroup implements [Repository].
func (repository *DocRepository) DeleteGroup(ctx context.Context, id string, expectedVersion int64) error {
	return repository.store.Delete(ctx, KindGroup, id, expectedVersion)
}

// # Members

// GetMember implements [Repository].
func (repository *DocRepository) GetMember(ctx context.Context, groupID, userID string) (*Member, error) {
	member, version, found, err := docstore.Load[Member](ctx, repository.store, KindMember, pairKey(groupID, userID))
	if err != nil || !found {
		return nil, err
	}
	member.Version = version
	return &member, nil
}

// PutMember implements [Repository].
func (repository *DocRepository) PutMember(ctx context.Context, member *Member, expectedVersion int64) (int64, error) {
	fields := map[string]string{
		indexGroup:  member.GroupID,
		indexMember: member.UserID,
	}
	return docstore.Save(ctx, repository.store, KindMember, pairKey(member.GroupID, member.UserID), member, fields, expectedVersion)
}

// DeleteMember implements [Repository].
func (repository *DocRepository) DeleteMember(ctx context.Context, groupID, userID string, expectedVersion int64) error {
	return repository.store.Delete(ctx, KindMember, pairKey(groupID, userID), expectedVersion)
}

// ListMembers implements [Repository].
func (repository *DocRepository) ListMembers(ctx context.Context, groupID string, limit int) ([]*Member, error) {
	return docstore.Query[*Member](ctx, repository.store, KindMember, indexGroup, groupID, limit)
}

// ListMemberships implements [Repository].
func (repository *DocRepository) ListMemberships(ctx context.Context, userID string, limit int) ([]*Member, error) {
	return docstore.Query[*Member](ctx, repository.store, KindMember, indexMember, userID, limit)
}

// CountMembers implements [Repository].
func (repository *DocRepository) CountMembers(ctx context.Context, groupID string) (int64, error) {
	docs, err := repository.store.QueryByField(ctx, KindMember, indexGroup, groupID, countLimit)
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

// # Join Requests

// GetJoinRequest implements [Repository].
func (repository *DocRepository) GetJoinRequest(ctx context.Context, groupID, userID string) (*JoinRequest, error) {
	request, version, found, err := docstore.Load[JoinRequest](ctx, repository.store, KindJoinRequest, pairKey(groupID, userID))
	if err != nil || !found {
		return nil, err
	}
	request.Version = version
	return &request, nil
}

// PutJoinRequest implements [Repository].
func (repository *DocRepository) PutJoinRequest(ctx context.Context, request *JoinRequest, expectedVersion int64) (int64, error) {
	fields := map[string]string{
		indexGroup:       request.GroupID,
		indexGroupStatus: statusKey(request.GroupID, request.Status),
	}
	return docstore.Save(ctx, repository.store, KindJoinRequest, pairKey(request.GroupID, request.UserID), request, fields, expectedVersion)
}

// ListJoinRequests implements [Repository].
func (repository *DocRepository) ListJoinRequests(ctx context.Context, groupID string, status RequestStatus, limit int) ([]*JoinRequest, error) {
	return docstore.Query[*JoinRequest](ctx, repository.store, KindJoinRequest, indexGroupStatus, statusKey(groupID, status), limit)
}

// # Invitations

// GetInvitation implements [Repository].
func (repository *DocRepository) GetInvitation(ctx context.Context, groupID, inviteeID string) (*Invitation, error) {
	invitation, version, found, err := docstore.Load[Invitation](ctx, repository.store, KindInvitation, pairKey(groupID, inviteeID))
	if err != nil || !found {
		return nil, err
	}
	invitation.Version = version
	return &invitation, nil
}

// PutInvitation implements [Repository].
func (repository *DocRepository) PutInvitation(ctx context.Context, invitation *Invitation, expectedVersion int64) (int64, error) {
	fields := map[string]string{
		indexGroup:         invitation.GroupID,
		indexInviteeStatus: statusKey(invitation.InviteeID, invitation.Status),
	}
	return docstore.Save(ctx, repository.store, KindInvitation, pairKey(invitation.GroupID, invitation.InviteeID), invitation, fields, expectedVersion)
}

// ListInvitations implements [Repository].
func (repository *DocRepository) ListInvitations(ctx context.Context, inviteeID string, status RequestStatus, limit int) ([]*Invitation, error) {
	return docstore.Query[*Invitation](ctx, repository.store, KindInvitation, indexInviteeStatus, statusKey(inviteeID, status), limit)
}

// # Bans

// GetBan implements [Repository].
func (repository *DocRepository) GetBan(ctx context.Context, groupID, userID string) (*Ban, error) {
	ban, version, found, err := docstore.Load[Ban](ctx, repository.store, KindBan, pairKey(groupID, userID))
	if err != nil || !found {
		return nil, err
	}
	ban.Version = version
	return &ban, nil
}

// PutBan implements [Repository].
func (repository *DocRepository) PutBan(ctx context.Context, ban *Ban, expectedVersion int64) (int64, error) {
	fields := map[string]string{indexGroup: ban.GroupID}
	return docstore.Save(ctx, repository.store, KindBan, pairKey(ban.GroupID, ban.UserID), ban, fields, expectedVersion)
}

// DeleteBan implements [Repository].
func (repository *DocRepository) DeleteBan(ctx context.Context, groupID, userID string, expectedVersion int64) error {
	return repository.store.Delete(ctx, KindBan, pairKey(groupID, userID), expectedVersion)
}

// ListBans implements [Repository].
func (repository *DocRepository) ListBans(ctx context.Context, groupID string, limit int) ([]*Ban, error) {
	return docstore.Query[*Ban](ctx, repository.store, KindBan, indexGroup, groupID, limit)
}
