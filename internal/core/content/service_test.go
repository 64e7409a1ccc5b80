// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package content_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/kinship/internal/core/content"
	"github.com/taibuivan/kinship/internal/core/group"
	"github.com/taibuivan/kinship/internal/platform/apperr"
	"github.com/taibuivan/kinship/internal/platform/docstore"
	"github.com/taibuivan/kinship/internal/platform/notify"
)

type fixture struct {
	posts    *content.Service
	groups   *group.Service
	faults   *docstore.FaultStore
	recorder *notify.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	faults := docstore.NewFaultStore(docstore.NewMemoryStore())
	recorder := notify.NewRecorder()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	groups := group.NewService(group.NewDocRepository(faults), recorder, logger, group.Options{})
	return &fixture{
		posts:    content.NewService(content.NewDocRepository(faults), groups, recorder, logger, content.Options{}),
		groups:   groups,
		faults:   faults,
		recorder: recorder,
	}
}

// newGroup creates a group owned by "owner" with "admin" and "member" joined.
func (fx *fixture) newGroup(t *testing.T, input group.CreateInput) string {
	t.Helper()
	ctx := context.Background()

	input.Name = "Book Club"
	created, err := fx.groups.CreateGroup(ctx, "owner", input)
	require.NoError(t, err)

	for _, user := range []string{"admin", "member"} {
		_, err := fx.groups.Join(ctx, created.ID, user)
		if created.Privacy == group.PrivacyPrivate {
			require.NoError(t, err)
			_, err = fx.groups.ApproveJoinRequest(ctx, "owner", created.ID, user)
		}
		require.NoError(t, err)
	}
	_, err = fx.groups.ChangeRole(ctx, "owner", created.ID, "admin", group.RoleAdmin)
	require.NoError(t, err)
	return created.ID
}

/*
TestCreatePost_PostingPolicy checks each posting policy outcome.
*/
func TestCreatePost_PostingPolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("open_group_publishes_directly", func(t *testing.T) {
		fx := newFixture(t)
		groupID := fx.newGroup(t, group.CreateInput{})

		post, err := fx.posts.CreatePost(ctx, "member", content.CreateInput{GroupID: groupID, Body: "hello"})
		require.NoError(t, err)
		assert.Equal(t, content.ApprovalApproved, post.ApprovalStatus)

		posts, err := fx.posts.ListGroupPosts(ctx, groupID)
		require.NoError(t, err)
		assert.Len(t, posts, 1)
	})

	t.Run("outsider_is_denied", func(t *testing.T) {
		fx := newFixture(t)
		groupID := fx.newGroup(t, group.CreateInput{})

		_, err := fx.posts.CreatePost(ctx, "stranger", content.CreateInput{GroupID: groupID, Body: "hello"})
		require.True(t, apperr.HasCode(err, content.CodePostingDenied))
		assert.Equal(t, group.ReasonNotMember, apperr.As(err).Meta["reason"])
	})

	t.Run("admins_only_denies_members", func(t *testing.T) {
		fx := newFixture(t)
		groupID := fx.newGroup(t, group.CreateInput{PostingPermission: string(group.PostingAdminsOnly)})

		_, err := fx.posts.CreatePost(ctx, "member", content.CreateInput{GroupID: groupID, Body: "hello"})
		assert.True(t, apperr.HasCode(err, content.CodePostingDenied))

		post, err := fx.posts.CreatePost(ctx, "admin", content.CreateInput{GroupID: groupID, Body: "hello"})
		require.NoError(t, err)
		assert.Equal(t, content.ApprovalApproved, post.ApprovalStatus)
	})

	t.Run("approval_holds_member_posts", func(t *testing.T) {
		fx := newFixture(t)
		groupID := fx.newGroup(t, group.CreateInput{RequirePostApproval: true})

		post, err := fx.posts.CreatePost(ctx, "member", content.CreateInput{GroupID: groupID, Body: "hello"})
		require.NoError(t, err)
		assert.Equal(t, content.ApprovalPending, post.ApprovalStatus)

		posts, err := fx.posts.ListGroupPosts(ctx, groupID)
		require.NoError(t, err)
		assert.Empty(t, posts)
	})

	t.Run("validation", func(t *testing.T) {
		fx := newFixture(t)
		groupID := fx.newGroup(t, group.CreateInput{})

		_, err := fx.posts.CreatePost(ctx, "member", content.CreateInput{GroupID: groupID})
		assert.True(t, apperr.HasCode(err, apperr.CodeValidation))

		_, err = fx.posts.CreatePost(ctx, "", content.CreateInput{GroupID: groupID, Body: "x"})
		assert.True(t, apperr.HasCode(err, apperr.CodeUnauthorized))
	})
}

/*
TestApproval walks a pending post through approval and rejection.
*/
func TestApproval(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	groupID := fx.newGroup(t, group.CreateInput{RequirePostApproval: true})

	first, err := fx.posts.CreatePost(ctx, "member", content.CreateInput{GroupID: groupID, Body: "first"})
	require.NoError(t, err)
	second, err := fx.posts.CreatePost(ctx, "member", content.CreateInput{GroupID: groupID, Body: "second"})
	require.NoError(t, err)

	_, err = fx.posts.ListPendingPosts(ctx, "member", groupID)
	assert.True(t, apperr.HasCode(err, group.CodeInsufficientRole))

	pending, err := fx.posts.ListPendingPosts(ctx, "admin", groupID)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	// Admins see pending posts, other members do not
	_, err = fx.posts.GetPost(ctx, "admin", first.ID)
	require.NoError(t, err)
	_, err = fx.posts.GetPost(ctx, "stranger", first.ID)
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))

	_, err = fx.posts.ApprovePost(ctx, "member", first.ID)
	assert.True(t, apperr.HasCode(err, group.CodeInsufficientRole))

	approved, err := fx.posts.ApprovePost(ctx, "admin", first.ID)
	require.NoError(t, err)
	assert.Equal(t, content.ApprovalApproved, approved.ApprovalStatus)
	assert.Equal(t, 1, fx.recorder.Count("member", notify.PostApproved))

	_, err = fx.posts.ApprovePost(ctx, "admin", first.ID)
	assert.True(t, apperr.HasCode(err, content.CodePostNotPending))

	rejected, err := fx.posts.RejectPost(ctx, "owner", second.ID, "off topic")
	require.NoError(t, err)
	assert.Equal(t, content.ApprovalRejected, rejected.ApprovalStatus)
	assert.Equal(t, "off topic", rejected.RejectionReason)
	assert.Equal(t, 1, fx.recorder.Count("member", notify.PostRejected))

	posts, err := fx.posts.ListGroupPosts(ctx, groupID)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, first.ID, posts[0].ID)

	pending, err = fx.posts.ListPendingPosts(ctx, "admin", groupID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

/*
TestHideContent is idempotent and keeps the post visible to its author only.
*/
func TestHideContent(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	groupID := fx.newGroup(t, group.CreateInput{})

	post, err := fx.posts.CreatePost(ctx, "member", content.CreateInput{GroupID: groupID, Body: "spam"})
	require.NoError(t, err)

	require.NoError(t, fx.posts.HideContent(ctx, content.TargetPost, post.ID))
	require.NoError(t, fx.posts.HideContent(ctx, content.TargetPost, post.ID))

	_, err = fx.posts.GetPost(ctx, "admin", post.ID)
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))

	own, err := fx.posts.GetPost(ctx, "member", post.ID)
	require.NoError(t, err)
	assert.True(t, own.Hidden)

	posts, err := fx.posts.ListGroupPosts(ctx, groupID)
	require.NoError(t, err)
	assert.Empty(t, posts)

	err = fx.posts.HideContent(ctx, "COMMENT", post.ID)
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))

	err = fx.posts.HideContent(ctx, content.TargetPost, "missing")
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
}

/*
TestBannedGroup hides every post of a banned group and refuses new ones.
*/
func TestBannedGroup(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	groupID := fx.newGroup(t, group.CreateInput{RequirePostApproval: true})

	published, err := fx.posts.CreatePost(ctx, "admin", content.CreateInput{GroupID: groupID, Body: "welcome"})
	require.NoError(t, err)
	pending, err := fx.posts.CreatePost(ctx, "member", content.CreateInput{GroupID: groupID, Body: "hi"})
	require.NoError(t, err)
	require.Equal(t, content.ApprovalPending, pending.ApprovalStatus)

	_, err = fx.groups.BanGroup(ctx, groupID)
	require.NoError(t, err)

	_, err = fx.posts.ListGroupPosts(ctx, groupID)
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
	_, err = fx.posts.ListPendingPosts(ctx, "owner", groupID)
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))

	for _, viewer := range []string{"admin", "member", "owner"} {
		_, err = fx.posts.GetPost(ctx, viewer, published.ID)
		assert.True(t, apperr.HasCode(err, apperr.CodeNotFound), viewer)
	}

	_, err = fx.posts.CreatePost(ctx, "admin", content.CreateInput{GroupID: groupID, Body: "anyone?"})
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, content.CodePostingDenied))
	assert.Equal(t, group.ReasonBanned, apperr.As(err).Meta["reason"])
}

/*
TestHideContent_RetriesConflict survives a lost compare-and-swap.
*/
func TestHideContent_RetriesConflict(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	groupID := fx.newGroup(t, group.CreateInput{})

	post, err := fx.posts.CreatePost(ctx, "member", content.CreateInput{GroupID: groupID, Body: "spam"})
	require.NoError(t, err)

	fx.faults.SetFault(docstore.FailOnce(docstore.OpPut, content.KindPost, post.ID, docstore.ErrConflict))
	require.NoError(t, fx.posts.HideContent(ctx, content.TargetPost, post.ID))

	fx.faults.SetFault(docstore.FailAlways(docstore.OpPut, content.KindPost, errors.New("unreachable")))
	other, err := fx.posts.CreatePost(ctx, "member", content.CreateInput{GroupID: groupID, Body: "x"})
	assert.Nil(t, other)
	assert.True(t, apperr.HasCode(err, apperr.CodeInternal))
}
