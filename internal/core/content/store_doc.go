// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package content

import (
	"context"

	"github.com/taibuivan/kinship/internal/platform/docstore"
)

// KindPost is the document kind of posts.
const KindPost docstore.Kind = "post"

// Indexed fields.
const (
	indexGroup         = "group_id"
	indexGroupApproval = "group_approval"
)

// DocRepository implements [Repository] on a [docstore.Store].
type DocRepository struct {
	store docstore.Store
}

// NewDocRepository constructs a document-store backed post repository.
func NewDocRepository(store docstore.Store) *DocRepository {
	return &DocRepository{store: store}
}

func groupApproval(groupID string, status ApprovalStatus) string {
	return groupID + "|" + string(status)
}

// FindByID implements [Repository].
func (repository *DocRepository) FindByID(ctx context.Context, id string) (*Post, error) {
	post, version, found, err := docstore.Load[Post](ctx, repository.store, KindPost, id)
	if err != nil || !found {
		return nil, err
	}
	post.Version = version
	return &post, nil
}

// Put implements [Repository].
func (repository *DocRepository) Put(ctx context.Context, post *Post, expectedVersion int64) (int64, error) {
	fields := map[string]string{
		indexGroup:         post.GroupID,
		indexGroupApproval: groupApproval(post.GroupID, post.ApprovalStatus),
	}
	return docstore.Save(ctx, repository.store, KindPost, post.ID, post, fields, expectedVersion)
}

// ListByGroup implements [Repository].
func (repository *DocRepository) ListByGroup(ctx context.Context, groupID string, status ApprovalStatus, limit int) ([]*Post, error) {
	docs, err := repository.store.QueryByField(ctx, KindPost, indexGroupApproval, groupApproval(groupID, status), limit)
	if err != nil {
		return nil, err
	}

	posts := make([]*Post, 0, len(docs))
	for _, doc := range docs {
		var post Post
		if err := docstore.Decode(doc, &post); err != nil {
			return nil, err
		}
		post.Version = doc.Version
		posts = append(posts, &post)
	}
	return posts, nil
}
