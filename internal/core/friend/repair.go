// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package friend

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/taibuivan/kinship/internal/platform/docstore"
)

// # Pair View

// pair holds both edges of a relationship as seen from self.
type pair struct {
	self   string
	other  string
	mine   *Edge
	theirs *Edge
}

// status derives the relationship from self's side of a repaired pair.
func (current pair) status() Status {
	if current.mine == nil {
		// The counterpart's request is still being written
		if current.theirs != nil && current.theirs.State == StatePendingOut {
			return StatusRequestReceived
		}
		return StatusNone
	}

	switch current.mine.State {
	case StateAccepted:
		return StatusFriends
	case StatePendingOut:
		return StatusRequestSent
	case StatePendingIn:
		return StatusRequestReceived
	}
	return StatusNone
}

func (current pair) anyAccepted() bool {
	return (current.mine != nil && current.mine.State == StateAccepted) ||
		(current.theirs != nil && current.theirs.State == StateAccepted)
}

func (current pair) friendship(autoAccepted bool) *Friendship {
	result := &Friendship{
		UserID:       current.self,
		OtherID:      current.other,
		Status:       current.status(),
		AutoAccepted: autoAccepted,
	}
	if result.Status == StatusFriends {
		result.Since = current.mine.UpdatedAt
	}
	return result
}

// with returns a copy of the edge moved to state. The read version is kept.
func (edge *Edge) with(state State, now time.Time) *Edge {
	next := *edge
	next.State = state
	next.UpdatedAt = now
	return &next
}

// readPair loads both edges of the relationship between self and other.
func (service *Service) readPair(ctx context.Context, self, other string) (pair, error) {
	mine, err := service.repo.Get(ctx, self, other)
	if err != nil {
		return pair{}, err
	}

	theirs, err := service.repo.Get(ctx, other, self)
	if err != nil {
		return pair{}, err
	}

	return pair{self: self, other: other, mine: mine, theirs: theirs}, nil
}

// # Read Repair

// fix is one corrective write produced by [Service.plan].
type fix struct {
	edge   *Edge
	state  State
	remove bool
	rule   string
}

/*
plan lists the writes that bring a half-applied pair back to a valid state.

Rules:
  - PENDING_OUT on both sides: both wanted the friendship, accept both.
  - ACCEPTED next to a pending edge: an accept was interrupted, roll it forward.
  - ACCEPTED or PENDING_IN alone: a removal or cancel was interrupted, delete it.
  - PENDING_IN on both sides: no sender exists, delete both.
  - PENDING_OUT alone: an in-flight request until the grace window passes, then deleted.
*/
func (service *Service) plan(current pair, now time.Time) []fix {
	mine, theirs := current.mine, current.theirs

	switch {
	case mine == nil && theirs == nil:
		return nil

	case mine == nil || theirs == nil:
		edge := mine
		if edge == nil {
			edge = theirs
		}
		if edge.State == StatePendingOut && now.Sub(edge.UpdatedAt) < service.grace {
			return nil
		}
		return []fix{{edge: edge, remove: true, rule: "orphan_" + string(edge.State)}}

	case mine.State == StatePendingOut && theirs.State == StatePendingOut:
		return []fix{
			{edge: mine, state: StateAccepted, rule: "mutual_request"},
			{edge: theirs, state: StateAccepted, rule: "mutual_request"},
		}

	case mine.State == StatePendingIn && theirs.State == StatePendingIn:
		return []fix{
			{edge: mine, remove: true, rule: "orphan_pending_in"},
			{edge: theirs, remove: true, rule: "orphan_pending_in"},
		}

	case mine.State == StateAccepted && theirs.State.IsPending():
		return []fix{{edge: theirs, state: StateAccepted, rule: "interrupted_accept"}}

	case theirs.State == StateAccepted && mine.State.IsPending():
		return []fix{{edge: mine, state: StateAccepted, rule: "interrupted_accept"}}
	}

	return nil
}

// apply performs the planned writes, each guarded by the version it was read at.
func (service *Service) apply(ctx context.Context, fixes []fix, now time.Time) error {
	for _, step := range fixes {
		var err error
		if step.remove {
			err = service.repo.Delete(ctx, step.edge.OwnerID, step.edge.OtherID, step.edge.Version)
		} else {
			_, err = service.repo.Put(ctx, step.edge.with(step.state, now), step.edge.Version)
		}
		if err != nil {
			return err
		}

		service.logger.InfoContext(ctx, "read_repair_applied",
			slog.String("rule", step.rule),
			slog.String("owner_id", step.edge.OwnerID),
			slog.String("other_id", step.edge.OtherID),
		)
	}
	return nil
}

// settle reads the pair and repairs it until no rule applies.
//
// A repair that loses a compare-and-swap race is not an error: someone else
// changed the pair, so it is read again.
func (service *Service) settle(ctx context.Context, self, other string) (pair, error) {
	for pass := 0; pass < maxRepairPasses; pass++ {
		current, err := service.readPair(ctx, self, other)
		if err != nil {
			return pair{}, err
		}

		now := service.clock()
		fixes := service.plan(current, now)
		if len(fixes) == 0 {
			return current, nil
		}

		err = service.apply(ctx, fixes, now)
		if err != nil && !errors.Is(err, docstore.ErrConflict) {
			return pair{}, err
		}
	}

	return pair{}, docstore.ErrConflict
}
