// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package friend_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/kinship/internal/core/friend"
	"github.com/taibuivan/kinship/internal/platform/apperr"
	"github.com/taibuivan/kinship/internal/platform/docstore"
	"github.com/taibuivan/kinship/internal/platform/notify"
)

const grace = 10 * time.Second

// fixture bundles a service with the collaborators tests inspect.
type fixture struct {
	service  *friend.Service
	repo     *friend.DocRepository
	memory   *docstore.MemoryStore
	faults   *docstore.FaultStore
	recorder *notify.Recorder
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	memory := docstore.NewMemoryStore()
	faults := docstore.NewFaultStore(memory)
	fx := &fixture{
		memory:   memory,
		faults:   faults,
		repo:     friend.NewDocRepository(faults),
		recorder: notify.NewRecorder(),
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fx.service = friend.NewService(fx.repo, fx.recorder, logger, friend.Options{
		MaxAttempts: docstore.DefaultAttempts,
		RepairGrace: grace,
		Clock:       func() time.Time { return fx.now },
	})
	return fx
}

// seed writes an edge directly, bypassing the engine.
func (fx *fixture) seed(t *testing.T, owner, other string, state friend.State, updatedAt time.Time) {
	t.Helper()
	_, err := fx.repo.Put(context.Background(), &friend.Edge{
		OwnerID: owner, OtherID: other, State: state, CreatedAt: updatedAt, UpdatedAt: updatedAt,
	}, docstore.AnyVersion)
	require.NoError(t, err)
}

// edgeState returns the stored state of owner's edge, or "" when absent.
func (fx *fixture) edgeState(t *testing.T, owner, other string) friend.State {
	t.Helper()
	edge, err := fx.repo.Get(context.Background(), owner, other)
	require.NoError(t, err)
	if edge == nil {
		return ""
	}
	return edge.State
}

// assertSymmetric checks that the stored pair is one of the valid combinations.
func (fx *fixture) assertSymmetric(t *testing.T, a, b string) {
	t.Helper()
	pairState := [2]friend.State{fx.edgeState(t, a, b), fx.edgeState(t, b, a)}

	valid := [][2]friend.State{
		{"", ""},
		{friend.StatePendingOut, friend.StatePendingIn},
		{friend.StatePendingIn, friend.StatePendingOut},
		{friend.StateAccepted, friend.StateAccepted},
	}
	assert.Contains(t, valid, pairState, "pair %s/%s", a, b)
}

/*
TestFriendLifecycle walks a request through acceptance and removal.
*/
func TestFriendLifecycle(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	sent, err := fx.service.SendRequest(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, friend.StatusRequestSent, sent.Status)
	assert.Equal(t, friend.StatePendingOut, fx.edgeState(t, "u1", "u2"))
	assert.Equal(t, friend.StatePendingIn, fx.edgeState(t, "u2", "u1"))
	assert.Equal(t, 1, fx.recorder.Count("u2", notify.FriendRequest))

	status, err := fx.service.Status(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.Equal(t, friend.StatusRequestReceived, status.Status)

	incoming, err := fx.service.ListIncomingRequests(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	assert.Equal(t, "u1", incoming[0].UserID)

	outgoing, err := fx.service.ListOutgoingRequests(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, outgoing, 1)
	assert.Equal(t, "u2", outgoing[0].UserID)

	count, err := fx.service.CountIncomingRequests(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	accepted, err := fx.service.AcceptRequest(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.Equal(t, friend.StatusFriends, accepted.Status)
	assert.Equal(t, 1, fx.recorder.Count("u1", notify.FriendAccepted))

	for _, user := range []string{"u1", "u2"} {
		friends, err := fx.service.ListFriends(ctx, user)
		require.NoError(t, err)
		assert.Len(t, friends, 1, user)
	}

	incoming, err = fx.service.ListIncomingRequests(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, incoming)

	require.NoError(t, fx.service.RemoveFriend(ctx, "u1", "u2"))
	assert.Equal(t, 0, fx.memory.Len(friend.KindEdge))

	status, err = fx.service.Status(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.Equal(t, friend.StatusNone, status.Status)
}

/*
TestSendRequest_Rejections covers the validation and state errors of SendRequest.
*/
func TestSendRequest_Rejections(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	_, err := fx.service.SendRequest(ctx, "", "u2")
	assert.True(t, apperr.HasCode(err, apperr.CodeUnauthorized))

	_, err = fx.service.SendRequest(ctx, "u1", "u1")
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))

	_, err = fx.service.SendRequest(ctx, "u1", "bad:id")
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))

	_, err = fx.service.SendRequest(ctx, "u1", "u2")
	require.NoError(t, err)

	_, err = fx.service.SendRequest(ctx, "u1", "u2")
	assert.True(t, apperr.HasCode(err, friend.CodeRequestAlreadyPending))

	_, err = fx.service.AcceptRequest(ctx, "u2", "u1")
	require.NoError(t, err)

	_, err = fx.service.SendRequest(ctx, "u2", "u1")
	assert.True(t, apperr.HasCode(err, friend.CodeAlreadyFriends))
}

/*
TestAcceptRequest_Idempotent accepts the same request twice.
*/
func TestAcceptRequest_Idempotent(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	_, err := fx.service.AcceptRequest(ctx, "u2", "u1")
	assert.True(t, apperr.HasCode(err, friend.CodeNoSuchRequest))

	_, err = fx.service.SendRequest(ctx, "u1", "u2")
	require.NoError(t, err)

	// The sender cannot accept their own request
	_, err = fx.service.AcceptRequest(ctx, "u1", "u2")
	assert.True(t, apperr.HasCode(err, friend.CodeNoSuchRequest))

	first, err := fx.service.AcceptRequest(ctx, "u2", "u1")
	require.NoError(t, err)
	second, err := fx.service.AcceptRequest(ctx, "u2", "u1")
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, friend.StatusFriends, second.Status)
	assert.Equal(t, 1, fx.recorder.Count("u1", notify.FriendAccepted), "no duplicate notification")
	fx.assertSymmetric(t, "u1", "u2")
}

/*
TestAcceptRequest_ConflictBudget returns CONFLICT once every attempt loses its CAS.
*/
func TestAcceptRequest_ConflictBudget(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	_, err := fx.service.SendRequest(ctx, "u1", "u2")
	require.NoError(t, err)

	var puts atomic.Int32
	fx.faults.SetFault(func(op docstore.Op, kind docstore.Kind, key string) error {
		if op == docstore.OpPut {
			puts.Add(1)
			return docstore.ErrConflict
		}
		return nil
	})

	_, err = fx.service.AcceptRequest(ctx, "u2", "u1")
	assert.True(t, apperr.HasCode(err, apperr.CodeConflict))
	assert.Equal(t, int32(docstore.DefaultAttempts), puts.Load())

	fx.faults.SetFault(nil)
	assert.Equal(t, friend.StatePendingOut, fx.edgeState(t, "u1", "u2"), "nothing committed")
}

/*
TestSendRequest_CrossingRequestAutoAccepts turns a reverse request into acceptance.
*/
func TestSendRequest_CrossingRequestAutoAccepts(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	_, err := fx.service.SendRequest(ctx, "u1", "u2")
	require.NoError(t, err)

	result, err := fx.service.SendRequest(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.Equal(t, friend.StatusFriends, result.Status)
	assert.True(t, result.AutoAccepted)
	assert.Equal(t, 1, fx.recorder.Count("u1", notify.FriendAccepted))
	fx.assertSymmetric(t, "u1", "u2")
}

/*
TestSendRequest_InterleavedMutualRequest runs the reverse request exactly between
the two writes of the first one.
*/
func TestSendRequest_InterleavedMutualRequest(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	var (
		fired   atomic.Bool
		reverse *friend.Friendship
		revErr  error
	)
	fx.faults.BeforeWrite(func(op docstore.Op, kind docstore.Kind, key string) {
		if op == docstore.OpPut && key == "u2:u1" && fired.CompareAndSwap(false, true) {
			reverse, revErr = fx.service.SendRequest(ctx, "u2", "u1")
		}
	})

	forward, err := fx.service.SendRequest(ctx, "u1", "u2")
	require.NoError(t, err)
	require.NoError(t, revErr)

	assert.Equal(t, friend.StatusFriends, forward.Status)
	assert.True(t, forward.AutoAccepted)
	assert.Equal(t, friend.StatusFriends, reverse.Status)
	assert.Equal(t, friend.StateAccepted, fx.edgeState(t, "u1", "u2"))
	assert.Equal(t, friend.StateAccepted, fx.edgeState(t, "u2", "u1"))
}

/*
TestSendRequest_ConcurrentMutualRequests races both directions in real goroutines.
*/
func TestSendRequest_ConcurrentMutualRequests(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := friend.NewDocRepository(docstore.NewMemoryStore())
	service := friend.NewService(repo, notify.Nop{}, logger, friend.Options{})

	for i := 0; i < 50; i++ {
		a, b := fmt.Sprintf("a%d", i), fmt.Sprintf("b%d", i)

		var (
			wg    sync.WaitGroup
			start = make(chan struct{})
			errs  [2]error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			_, errs[0] = service.SendRequest(ctx, a, b)
		}()
		go func() {
			defer wg.Done()
			<-start
			_, errs[1] = service.SendRequest(ctx, b, a)
		}()
		close(start)
		wg.Wait()

		require.NoError(t, errs[0], "pair %d", i)
		require.NoError(t, errs[1], "pair %d", i)

		for _, self := range []string{a, b} {
			other := b
			if self == b {
				other = a
			}
			status, err := service.Status(ctx, self, other)
			require.NoError(t, err)
			assert.Equal(t, friend.StatusFriends, status.Status, "pair %d from %s", i, self)
		}
	}
}

/*
TestSendRequest_CompensatesFailedSecondWrite undoes the sender side when the
receiver side cannot be written.
*/
func TestSendRequest_CompensatesFailedSecondWrite(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("backend down")

	t.Run("compensation_succeeds", func(t *testing.T) {
		fx := newFixture(t)
		fx.faults.SetFault(docstore.FailOnce(docstore.OpPut, friend.KindEdge, "u2:u1", boom))

		_, err := fx.service.SendRequest(ctx, "u1", "u2")
		assert.True(t, apperr.HasCode(err, apperr.CodeInternal))
		assert.Equal(t, 0, fx.memory.Len(friend.KindEdge))
		assert.Empty(t, fx.recorder.Events())
	})

	t.Run("compensation_fails_then_repair", func(t *testing.T) {
		fx := newFixture(t)
		putFault := docstore.FailOnce(docstore.OpPut, friend.KindEdge, "u2:u1", boom)
		deleteFault := docstore.FailOnce(docstore.OpDelete, friend.KindEdge, "u1:u2", boom)
		fx.faults.SetFault(func(op docstore.Op, kind docstore.Kind, key string) error {
			if err := putFault(op, kind, key); err != nil {
				return err
			}
			return deleteFault(op, kind, key)
		})

		_, err := fx.service.SendRequest(ctx, "u1", "u2")
		require.Error(t, err)
		assert.Equal(t, friend.StatePendingOut, fx.edgeState(t, "u1", "u2"))

		// Inside the grace window the orphan reads as an in-flight request
		status, err := fx.service.Status(ctx, "u1", "u2")
		require.NoError(t, err)
		assert.Equal(t, friend.StatusRequestSent, status.Status)

		fx.now = fx.now.Add(2 * grace)
		status, err = fx.service.Status(ctx, "u1", "u2")
		require.NoError(t, err)
		assert.Equal(t, friend.StatusNone, status.Status)
		assert.Equal(t, 0, fx.memory.Len(friend.KindEdge))
	})
}

/*
TestReadRepair seeds every half-applied pair and checks the repaired outcome.
*/
func TestReadRepair(t *testing.T) {
	ctx := context.Background()
	const (
		out = friend.StatePendingOut
		in  = friend.StatePendingIn
		acc = friend.StateAccepted
	)

	tests := []struct {
		name       string
		mine       friend.State
		theirs     friend.State
		stale      bool
		wantStatus friend.Status
		wantMine   friend.State
		wantTheirs friend.State
	}{
		{"mutual_pending_out", out, out, false, friend.StatusFriends, acc, acc},
		{"interrupted_accept_mine", acc, out, false, friend.StatusFriends, acc, acc},
		{"interrupted_accept_theirs", out, acc, false, friend.StatusFriends, acc, acc},
		{"interrupted_accept_in", in, acc, false, friend.StatusFriends, acc, acc},
		{"accepted_alone", acc, "", false, friend.StatusNone, "", ""},
		{"counterpart_accepted_alone", "", acc, false, friend.StatusNone, "", ""},
		{"pending_in_alone", in, "", false, friend.StatusNone, "", ""},
		{"both_pending_in", in, in, false, friend.StatusNone, "", ""},
		{"fresh_pending_out_alone", out, "", false, friend.StatusRequestSent, out, ""},
		{"stale_pending_out_alone", out, "", true, friend.StatusNone, "", ""},
		{"fresh_incoming_in_flight", "", out, false, friend.StatusRequestReceived, "", out},
		{"stale_incoming_in_flight", "", out, true, friend.StatusNone, "", ""},
		{"valid_request", out, in, true, friend.StatusRequestSent, out, in},
		{"valid_friendship", acc, acc, true, friend.StatusFriends, acc, acc},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)

			seededAt := fx.now
			if tt.stale {
				seededAt = fx.now.Add(-2 * grace)
			}
			if tt.mine != "" {
				fx.seed(t, "u1", "u2", tt.mine, seededAt)
			}
			if tt.theirs != "" {
				fx.seed(t, "u2", "u1", tt.theirs, seededAt)
			}

			status, err := fx.service.Status(ctx, "u1", "u2")
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, status.Status)
			assert.Equal(t, tt.wantMine, fx.edgeState(t, "u1", "u2"))
			assert.Equal(t, tt.wantTheirs, fx.edgeState(t, "u2", "u1"))
		})
	}
}

/*
TestRejectAndCancel covers normal withdrawal and tolerance of a missing side.
*/
func TestRejectAndCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("reject", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.service.SendRequest(ctx, "u1", "u2")
		require.NoError(t, err)

		require.NoError(t, fx.service.RejectRequest(ctx, "u2", "u1"))
		assert.Equal(t, 0, fx.memory.Len(friend.KindEdge))

		err = fx.service.RejectRequest(ctx, "u2", "u1")
		assert.True(t, apperr.HasCode(err, friend.CodeNoSuchRequest))
	})

	t.Run("cancel", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.service.SendRequest(ctx, "u1", "u2")
		require.NoError(t, err)

		require.NoError(t, fx.service.CancelRequest(ctx, "u1", "u2"))
		assert.Equal(t, 0, fx.memory.Len(friend.KindEdge))

		// The receiver cannot cancel a request they did not send
		_, err = fx.service.SendRequest(ctx, "u1", "u2")
		require.NoError(t, err)
		err = fx.service.CancelRequest(ctx, "u2", "u1")
		assert.True(t, apperr.HasCode(err, friend.CodeNoSuchRequest))
	})

	t.Run("missing_sender_side", func(t *testing.T) {
		fx := newFixture(t)
		fx.seed(t, "u2", "u1", friend.StatePendingIn, fx.now)

		require.NoError(t, fx.service.RejectRequest(ctx, "u2", "u1"))
		assert.Equal(t, 0, fx.memory.Len(friend.KindEdge))
	})

	t.Run("missing_receiver_side", func(t *testing.T) {
		fx := newFixture(t)
		fx.seed(t, "u1", "u2", friend.StatePendingOut, fx.now)

		require.NoError(t, fx.service.CancelRequest(ctx, "u1", "u2"))
		assert.Equal(t, 0, fx.memory.Len(friend.KindEdge))
	})

	t.Run("friends_are_not_a_request", func(t *testing.T) {
		fx := newFixture(t)
		fx.seed(t, "u1", "u2", friend.StateAccepted, fx.now)
		fx.seed(t, "u2", "u1", friend.StateAccepted, fx.now)

		err := fx.service.RejectRequest(ctx, "u2", "u1")
		assert.True(t, apperr.HasCode(err, friend.CodeNoSuchRequest))
		fx.assertSymmetric(t, "u1", "u2")
	})

	t.Run("interrupted_cancel_completes_on_retry", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.service.SendRequest(ctx, "u1", "u2")
		require.NoError(t, err)

		fx.faults.SetFault(docstore.FailOnce(docstore.OpDelete, friend.KindEdge, "u2:u1", errors.New("timeout")))
		require.Error(t, fx.service.CancelRequest(ctx, "u1", "u2"))
		assert.Equal(t, friend.StatePendingIn, fx.edgeState(t, "u2", "u1"))

		require.NoError(t, fx.service.RejectRequest(ctx, "u2", "u1"))
		assert.Equal(t, 0, fx.memory.Len(friend.KindEdge))
	})
}

/*
TestRemoveFriend covers the NOT_FRIENDS error and one-sided friendships.
*/
func TestRemoveFriend(t *testing.T) {
	ctx := context.Background()

	t.Run("not_friends", func(t *testing.T) {
		fx := newFixture(t)
		err := fx.service.RemoveFriend(ctx, "u1", "u2")
		assert.True(t, apperr.HasCode(err, friend.CodeNotFriends))

		_, err = fx.service.SendRequest(ctx, "u1", "u2")
		require.NoError(t, err)
		err = fx.service.RemoveFriend(ctx, "u1", "u2")
		assert.True(t, apperr.HasCode(err, friend.CodeNotFriends))
	})

	t.Run("one_sided", func(t *testing.T) {
		fx := newFixture(t)
		fx.seed(t, "u2", "u1", friend.StateAccepted, fx.now)

		require.NoError(t, fx.service.RemoveFriend(ctx, "u1", "u2"))
		assert.Equal(t, 0, fx.memory.Len(friend.KindEdge))
	})

	t.Run("interrupted_accept", func(t *testing.T) {
		fx := newFixture(t)
		fx.seed(t, "u1", "u2", friend.StatePendingOut, fx.now)
		fx.seed(t, "u2", "u1", friend.StateAccepted, fx.now)

		require.NoError(t, fx.service.RemoveFriend(ctx, "u1", "u2"))
		assert.Equal(t, 0, fx.memory.Len(friend.KindEdge))
	})
}

/*
TestSymmetryUnderRandomOperations applies a random operation sequence and checks
that every pair reads back as a valid combination.
*/
func TestSymmetryUnderRandomOperations(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	users := []string{"u1", "u2", "u3", "u4"}
	random := rand.New(rand.NewSource(42))

	for step := 0; step < 400; step++ {
		a := users[random.Intn(len(users))]
		b := users[random.Intn(len(users))]
		if a == b {
			continue
		}

		switch random.Intn(5) {
		case 0:
			_, _ = fx.service.SendRequest(ctx, a, b)
		case 1:
			_, _ = fx.service.AcceptRequest(ctx, a, b)
		case 2:
			_ = fx.service.RejectRequest(ctx, a, b)
		case 3:
			_ = fx.service.CancelRequest(ctx, a, b)
		case 4:
			_ = fx.service.RemoveFriend(ctx, a, b)
		}

		fx.assertSymmetric(t, a, b)

		status, err := fx.service.Status(ctx, a, b)
		require.NoError(t, err)
		reverse, err := fx.service.Status(ctx, b, a)
		require.NoError(t, err)

		switch status.Status {
		case friend.StatusFriends:
			assert.Equal(t, friend.StatusFriends, reverse.Status)
		case friend.StatusRequestSent:
			assert.Equal(t, friend.StatusRequestReceived, reverse.Status)
		case friend.StatusRequestReceived:
			assert.Equal(t, friend.StatusRequestSent, reverse.Status)
		case friend.StatusNone:
			assert.Equal(t, friend.StatusNone, reverse.Status)
		}
	}
}
