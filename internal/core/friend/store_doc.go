// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package friend

import (
	"context"

	"github.com/taibuivan/kinship/internal/platform/docstore"
)

// KindEdge is the document kind of friend edges.
const KindEdge docstore.Kind = "friend_edge"

// Indexed fields.
const (
	fieldOwner      = "owner_id"
	fieldOwnerState = "owner_state"
)

// DocRepository implements [Repository] on a [docstore.Store].
type DocRepository struct {
	store docstore.Store
}

// NewDocRepository constructs a document-store backed edge repository.
func NewDocRepository(store docstore.Store) *DocRepository {
	return &DocRepository{store: store}
}

// edgeKey returns the document key of owner's edge toward other.
func edgeKey(owner, other string) string {
	return owner + ":" + other
}

// ownerState is the composite index value used to list one user's edges by state.
func ownerState(owner string, state State) string {
	return owner + "|" + string(state)
}

// Get implements [Repository].
func (repository *DocRepository) Get(ctx context.Context, owner, other string) (*Edge, error) {
	edge, version, found, err := docstore.Load[Edge](ctx, repository.store, KindEdge, edgeKey(owner, other))
	if err != nil || !found {
		return nil, err
	}
	edge.Version = version
	return &edge, nil
}

// Put implements [Repository].
func (repository *DocRepository) Put(ctx context.Context, edge *Edge, expectedVersion int64) (int64, error) {
	fields := map[string]string{
		fieldOwner:      edge.OwnerID,
		fieldOwnerState: ownerState(edge.OwnerID, edge.State),
	}
	return docstore.Save(ctx, repository.store, KindEdge, edgeKey(edge.OwnerID, edge.OtherID), edge, fields, expectedVersion)
}

// Delete implements [Repository].
func (repository *DocRepository) Delete(ctx context.Context, owner, other string, expectedVersion int64) error {
	return repository.store.Delete(ctx, KindEdge, edgeKey(owner, other), expectedVersion)
}

// ListByState implements [Repository].
func (repository *DocRepository) ListByState(ctx context.Context, owner string, state State, limit int) ([]*Edge, error) {
	docs, err := repository.store.QueryByField(ctx, KindEdge, fieldOwnerState, ownerState(owner, state), limit)
	if err != nil {
		return nil, err
	}

	edges := make([]*Edge, 0, len(docs))
	for _, doc := range docs {
		var edge Edge
		if err := docstore.Decode(doc, &edge); err != nil {
			return nil, err
		}
		edge.Version = doc.Version
		edges = append(edges, &edge)
	}
	return edges, nil
}
