// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package friend

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/taibuivan/kinship/internal/platform/docstore"
	"github.com/taibuivan/kinship/internal/platform/notify"
	"github.com/taibuivan/kinship/internal/platform/validate"
	"github.com/taibuivan/kinship/pkg/slice"
)

// maxRepairPasses bounds how many read-repair rounds a single read may run.
const maxRepairPasses = 4

// DefaultRepairGrace is how long a PENDING_OUT edge without its counterpart is
// treated as an in-flight request before read-repair deletes it.
const DefaultRepairGrace = 10 * time.Second

// Options tunes the consistency behaviour of the [Service].
type Options struct {
	// MaxAttempts is the read-decide-write budget per operation.
	MaxAttempts int

	// RepairGrace is the in-flight window for a half-written request.
	RepairGrace time.Duration

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// # Service Layer

// Service orchestrates the friend graph on top of a [Repository].
//
// It holds no relationship state between calls: every operation re-reads both
// edges of the pair and coordinates only through compare-and-swap writes.
type Service struct {
	repo     Repository
	sink     notify.Sink
	logger   *slog.Logger
	attempts int
	grace    time.Duration
	clock    func() time.Time
}

// NewService constructs a new friend [Service].
func NewService(repo Repository, sink notify.Sink, logger *slog.Logger, options Options) *Service {
	if options.MaxAttempts < 1 {
		options.MaxAttempts = docstore.DefaultAttempts
	}
	if options.RepairGrace <= 0 {
		options.RepairGrace = DefaultRepairGrace
	}
	if options.Clock == nil {
		options.Clock = time.Now
	}

	return &Service{
		repo:     repo,
		sink:     sink,
		logger:   logger,
		attempts: options.MaxAttempts,
		grace:    options.RepairGrace,
		clock:    options.Clock,
	}
}

// # Requests

/*
SendRequest opens a friend request from sender to receiver.

Description: Writes the sender's PENDING_OUT edge, then the receiver's
PENDING_IN edge. If the second write fails the first is deleted again. When the
receiver already asked the sender, the call becomes an acceptance so that
crossing requests converge to a single friendship.

Parameters:
  - ctx: context.Context
  - sender: string (the caller)
  - receiver: string

Returns:
  - *Friendship: REQUEST_SENT, or FRIENDS when auto-accepted
  - error: ErrAlreadyFriends, ErrRequestAlreadyPending, validation or conflict errors
*/
func (service *Service) SendRequest(ctx context.Context, sender, receiver string) (*Friendship, error) {
	if err := checkPair(sender, receiver, "receiver_id"); err != nil {
		return nil, err
	}

	var (
		result   *Friendship
		wroteOut bool
	)

	err := docstore.RetryOnConflict(ctx, service.attempts, func(ctx context.Context) error {
		current, err := service.settle(ctx, sender, receiver)
		if err != nil {
			return err
		}

		switch current.status() {
		case StatusFriends:
			// Our own earlier write met a crossing request and was repaired to ACCEPTED
			if wroteOut {
				result = current.friendship(true)
				return nil
			}
			return ErrAlreadyFriends

		case StatusRequestSent:
			return ErrRequestAlreadyPending

		case StatusRequestReceived:
			if _, err := service.acceptPair(ctx, current); err != nil {
				return err
			}
			result = &Friendship{UserID: sender, OtherID: receiver, Status: StatusFriends, Since: service.clock(), AutoAccepted: true}
			return nil
		}

		return service.writeRequest(ctx, sender, receiver, &wroteOut, &result)
	})
	if err != nil {
		return nil, docstore.ToAppError(err)
	}

	if result.Status == StatusFriends {
		service.logger.InfoContext(ctx, "friend_request_auto_accepted",
			slog.String("user_id", sender),
			slog.String("other_id", receiver),
		)
		service.sink.Notify(ctx, receiver, notify.FriendAccepted, notify.Payload{"by": sender})
		return result, nil
	}

	service.logger.InfoContext(ctx, "friend_request_sent",
		slog.String("sender_id", sender),
		slog.String("receiver_id", receiver),
	)
	service.sink.Notify(ctx, receiver, notify.FriendRequest, notify.Payload{"from": sender})

	return result, nil
}

// writeRequest performs the two-phase write of a new request.
func (service *Service) writeRequest(ctx context.Context, sender, receiver string, wroteOut *bool, result **Friendship) error {
	now := service.clock()

	outgoing := &Edge{OwnerID: sender, OtherID: receiver, State: StatePendingOut, CreatedAt: now, UpdatedAt: now}
	version, err := service.repo.Put(ctx, outgoing, docstore.MustNotExist)
	if err != nil {
		return err
	}
	*wroteOut = true

	// From here on a cancelled caller must not stop the pair from completing
	commitCtx := context.WithoutCancel(ctx)

	incoming := &Edge{OwnerID: receiver, OtherID: sender, State: StatePendingIn, CreatedAt: now, UpdatedAt: now}
	_, err = service.repo.Put(commitCtx, incoming, docstore.MustNotExist)
	switch {
	case errors.Is(err, docstore.ErrConflict):
		// The receiver wrote an edge toward us in between; re-read and decide again
		return err
	case err != nil:
		service.compensate(commitCtx, sender, receiver, version, err)
		return err
	}

	*result = &Friendship{UserID: sender, OtherID: receiver, Status: StatusRequestSent}
	return nil
}

/*
AcceptRequest accepts the pending request requester sent to accepter.

Description: Both edges become ACCEPTED through compare-and-swap on their
current versions. A lost race restarts the read-decide-write cycle. Accepting
an existing friendship is a no-op that returns the same state.

Parameters:
  - ctx: context.Context
  - accepter: string (the caller)
  - requester: string

Returns:
  - *Friendship: FRIENDS
  - error: ErrNoSuchRequest, validation or conflict errors
*/
func (service *Service) AcceptRequest(ctx context.Context, accepter, requester string) (*Friendship, error) {
	if err := checkPair(accepter, requester, "requester_id"); err != nil {
		return nil, err
	}

	var (
		result    *Friendship
		committed bool
	)

	err := docstore.RetryOnConflict(ctx, service.attempts, func(ctx context.Context) error {
		current, err := service.settle(ctx, accepter, requester)
		if err != nil {
			return err
		}

		switch current.status() {
		case StatusFriends:
			result = current.friendship(false)
			return nil

		case StatusRequestReceived:
			wrote, err := service.acceptPair(ctx, current)
			committed = committed || wrote
			if err != nil {
				return err
			}
			result = &Friendship{UserID: accepter, OtherID: requester, Status: StatusFriends, Since: service.clock()}
			return nil
		}

		return ErrNoSuchRequest.WithMeta("state", string(current.status()))
	})
	if err != nil {
		return nil, docstore.ToAppError(err)
	}

	if committed {
		service.logger.InfoContext(ctx, "friend_request_accepted",
			slog.String("accepter_id", accepter),
			slog.String("requester_id", requester),
		)
		service.sink.Notify(ctx, requester, notify.FriendAccepted, notify.Payload{"by": accepter})
	}

	return result, nil
}

// acceptPair writes ACCEPTED to the caller's edge and then to the counterpart.
//
// The caller's edge goes first: a crash in between leaves (ACCEPTED, pending),
// which read-repair rolls forward. It reports whether any write committed.
func (service *Service) acceptPair(ctx context.Context, current pair) (bool, error) {
	now := service.clock()

	mine := &Edge{OwnerID: current.self, OtherID: current.other, State: StateAccepted, CreatedAt: now, UpdatedAt: now}
	expected := docstore.MustNotExist
	if current.mine != nil {
		mine = current.mine.with(StateAccepted, now)
		expected = current.mine.Version
	}
	if _, err := service.repo.Put(ctx, mine, expected); err != nil {
		return false, err
	}

	theirs := current.theirs.with(StateAccepted, now)
	if _, err := service.repo.Put(context.WithoutCancel(ctx), theirs, current.theirs.Version); err != nil {
		return true, err
	}
	return true, nil
}

/*
RejectRequest declines the request requester sent to receiver.

Parameters:
  - ctx: context.Context
  - receiver: string (the caller)
  - requester: string

Returns:
  - error: ErrNoSuchRequest, validation or conflict errors
*/
func (service *Service) RejectRequest(ctx context.Context, receiver, requester string) error {
	if err := checkPair(receiver, requester, "requester_id"); err != nil {
		return err
	}

	if err := service.dropRequest(ctx, requester, receiver); err != nil {
		return docstore.ToAppError(err)
	}

	service.logger.InfoContext(ctx, "friend_request_rejected",
		slog.String("receiver_id", receiver),
		slog.String("requester_id", requester),
	)
	return nil
}

/*
CancelRequest withdraws the request sender sent to receiver.

Parameters:
  - ctx: context.Context
  - sender: string (the caller)
  - receiver: string

Returns:
  - error: ErrNoSuchRequest, validation or conflict errors
*/
func (service *Service) CancelRequest(ctx context.Context, sender, receiver string) error {
	if err := checkPair(sender, receiver, "receiver_id"); err != nil {
		return err
	}

	if err := service.dropRequest(ctx, sender, receiver); err != nil {
		return docstore.ToAppError(err)
	}

	service.logger.InfoContext(ctx, "friend_request_cancelled",
		slog.String("sender_id", sender),
		slog.String("receiver_id", receiver),
	)
	return nil
}

// dropRequest deletes both edges of a pending request from requester to receiver.
//
// A side that is already gone is tolerated: the request counts as withdrawn
// and the remaining stale edge is deleted. The sender's PENDING_OUT is removed
// first so an interruption leaves an orphan PENDING_IN, which read-repair
// deletes immediately.
func (service *Service) dropRequest(ctx context.Context, requester, receiver string) error {
	var removed bool

	return docstore.RetryOnConflict(ctx, service.attempts, func(ctx context.Context) error {
		current, err := service.readPair(ctx, requester, receiver)
		if err != nil {
			return err
		}

		outgoing, incoming := current.mine, current.theirs
		if outgoing == nil && incoming == nil {
			if removed {
				return nil
			}
			return ErrNoSuchRequest
		}

		if (outgoing != nil && outgoing.State != StatePendingOut) || (incoming != nil && incoming.State != StatePendingIn) {
			return ErrNoSuchRequest
		}

		if outgoing != nil {
			if err := service.repo.Delete(ctx, requester, receiver, outgoing.Version); err != nil {
				return err
			}
			removed = true
		}
		if incoming != nil {
			if err := service.repo.Delete(context.WithoutCancel(ctx), receiver, requester, incoming.Version); err != nil {
				return err
			}
			removed = true
		}
		return nil
	})
}

// # Friendships

/*
RemoveFriend ends the friendship between user and friendID.

Description: One ACCEPTED side is enough: the other side may already be gone
(an interrupted removal) or still pending (an interrupted accept). Both edges
are deleted.

Parameters:
  - ctx: context.Context
  - user: string (the caller)
  - friendID: string

Returns:
  - error: ErrNotFriends, validation or conflict errors
*/
func (service *Service) RemoveFriend(ctx context.Context, user, friendID string) error {
	if err := checkPair(user, friendID, "friend_id"); err != nil {
		return err
	}

	var removed bool
	err := docstore.RetryOnConflict(ctx, service.attempts, func(ctx context.Context) error {
		current, err := service.readPair(ctx, user, friendID)
		if err != nil {
			return err
		}

		if !current.anyAccepted() {
			if removed && current.mine == nil && current.theirs == nil {
				return nil
			}
			return ErrNotFriends.WithMeta("state", string(current.status()))
		}

		if current.mine != nil {
			if err := service.repo.Delete(ctx, user, friendID, current.mine.Version); err != nil {
				return err
			}
			removed = true
		}
		if current.theirs != nil {
			if err := service.repo.Delete(context.WithoutCancel(ctx), friendID, user, current.theirs.Version); err != nil {
				return err
			}
			removed = true
		}
		return nil
	})
	if err != nil {
		return docstore.ToAppError(err)
	}

	service.logger.InfoContext(ctx, "friend_removed",
		slog.String("user_id", user),
		slog.String("friend_id", friendID),
	)
	return nil
}

/*
Status returns the relationship between user and other, repairing the pair first.

Parameters:
  - ctx: context.Context
  - user: string (the caller)
  - other: string

Returns:
  - *Friendship: Current status from the caller's side
  - error: Validation or store errors
*/
func (service *Service) Status(ctx context.Context, user, other string) (*Friendship, error) {
	if err := checkPair(user, other, "user_id"); err != nil {
		return nil, err
	}

	current, err := service.settle(ctx, user, other)
	if err != nil {
		return nil, docstore.ToAppError(err)
	}
	return current.friendship(false), nil
}

// # Listings

// Friend is one entry of a friend list.
type Friend struct {
	UserID string    `json:"user_id"`
	Since  time.Time `json:"since"`
}

/*
ListFriends returns the users user has an ACCEPTED edge toward.

Parameters:
  - ctx: context.Context
  - user: string

Returns:
  - []Friend: Ordered by user ID
  - error: Store failures
*/
func (service *Service) ListFriends(ctx context.Context, user string) ([]Friend, error) {
	if user == "" {
		return nil, ErrUnauthenticated
	}

	edges, err := service.repo.ListByState(ctx, user, StateAccepted, 0)
	if err != nil {
		return nil, docstore.ToAppError(err)
	}

	return slice.Map(edges, func(edge *Edge) Friend {
		return Friend{UserID: edge.OtherID, Since: edge.UpdatedAt}
	}), nil
}

// ListIncomingRequests returns the requests other users sent to user.
func (service *Service) ListIncomingRequests(ctx context.Context, user string) ([]Request, error) {
	return service.listRequests(ctx, user, StatePendingIn)
}

// ListOutgoingRequests returns the requests user sent that are still pending.
func (service *Service) ListOutgoingRequests(ctx context.Context, user string) ([]Request, error) {
	return service.listRequests(ctx, user, StatePendingOut)
}

// CountIncomingRequests returns the number of pending requests user received.
func (service *Service) CountIncomingRequests(ctx context.Context, user string) (int, error) {
	requests, err := service.listRequests(ctx, user, StatePendingIn)
	if err != nil {
		return 0, err
	}
	return len(requests), nil
}

func (service *Service) listRequests(ctx context.Context, user string, state State) ([]Request, error) {
	if user == "" {
		return nil, ErrUnauthenticated
	}

	edges, err := service.repo.ListByState(ctx, user, state, 0)
	if err != nil {
		return nil, docstore.ToAppError(err)
	}

	return slice.Map(edges, func(edge *Edge) Request {
		return Request{UserID: edge.OtherID, CreatedAt: edge.CreatedAt}
	}), nil
}

// # Internal Helpers

// checkPair validates the caller and the target of a pair operation.
func checkPair(caller, target, field string) error {
	if caller == "" {
		return ErrUnauthenticated
	}

	validator := &validate.Validator{}
	validator.ID(field, target)
	if err := validator.Err(); err != nil {
		return err
	}

	if caller == target {
		return ErrSelfRequest
	}
	return nil
}

// compensate deletes an edge written by the first half of a failed two-phase write.
func (service *Service) compensate(ctx context.Context, owner, other string, version int64, cause error) {
	if err := service.repo.Delete(ctx, owner, other, version); err != nil {
		// Read-repair deletes the orphan once the grace window has passed
		service.logger.ErrorContext(ctx, "compensation_failed",
			slog.String("owner_id", owner),
			slog.String("other_id", other),
			slog.Any("cause", cause),
			slog.Any("error", err),
		)
		return
	}

	service.logger.WarnContext(ctx, "compensation_applied",
		slog.String("owner_id", owner),
		slog.String("other_id", other),
		slog.Any("cause", cause),
	)
}
