// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package docstore_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/kinship/internal/platform/apperr"
	"github.com/taibuivan/kinship/internal/platform/docstore"
)

const kindWidget docstore.Kind = "widget"

type widget struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

/*
TestMemoryStore_PutPreconditions covers every expected-version mode of Put.
*/
func TestMemoryStore_PutPreconditions(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()

	doc := docstore.Document{Kind: kindWidget, Key: "w1", Body: []byte(`{"name":"a"}`)}

	version, err := store.Put(ctx, doc, docstore.MustNotExist)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	_, err = store.Put(ctx, doc, docstore.MustNotExist)
	assert.ErrorIs(t, err, docstore.ErrConflict, "create-only write on existing doc")

	_, err = store.Put(ctx, doc, 7)
	assert.ErrorIs(t, err, docstore.ErrConflict, "stale version")

	version, err = store.Put(ctx, doc, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	version, err = store.Put(ctx, doc, docstore.AnyVersion)
	require.NoError(t, err)
	assert.Equal(t, int64(3), version)

	_, err = store.Put(ctx, docstore.Document{Kind: kindWidget, Key: "missing"}, 1)
	assert.ErrorIs(t, err, docstore.ErrConflict, "exact version on absent doc")
}

/*
TestMemoryStore_DeletePreconditions verifies versioned and tolerant deletes.
*/
func TestMemoryStore_DeletePreconditions(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()

	assert.NoError(t, store.Delete(ctx, kindWidget, "ghost", docstore.AnyVersion))
	assert.ErrorIs(t, store.Delete(ctx, kindWidget, "ghost", 1), docstore.ErrConflict)

	_, err := store.Put(ctx, docstore.Document{Kind: kindWidget, Key: "w1"}, docstore.MustNotExist)
	require.NoError(t, err)

	assert.ErrorIs(t, store.Delete(ctx, kindWidget, "w1", 2), docstore.ErrConflict)
	assert.ErrorIs(t, store.Delete(ctx, kindWidget, "w1", docstore.MustNotExist), docstore.ErrConflict)
	require.NoError(t, store.Delete(ctx, kindWidget, "w1", 1))

	_, found, err := store.Get(ctx, kindWidget, "w1")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, store.Len(kindWidget))
	assert.NoError(t, store.Delete(ctx, kindWidget, "w1", docstore.AnyVersion), "deleting a tombstone is a no-op")
}

/*
TestMemoryStore_RecreateKeepsVersion rejects a stale write against a recreated document.
*/
func TestMemoryStore_RecreateKeepsVersion(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()

	member := docstore.Document{Kind: kindWidget, Key: "g1:u1", Body: []byte(`{"role":"MEMBER"}`)}

	first, err := store.Put(ctx, member, docstore.MustNotExist)
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, kindWidget, member.Key, first))

	recreated, err := store.Put(ctx, member, docstore.MustNotExist)
	require.NoError(t, err)
	assert.Greater(t, recreated, first)

	promoted := docstore.Document{Kind: kindWidget, Key: "g1:u1", Body: []byte(`{"role":"ADMIN"}`)}
	_, err = store.Put(ctx, promoted, first)
	assert.ErrorIs(t, err, docstore.ErrConflict)

	doc, found, err := store.Get(ctx, kindWidget, member.Key)
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"role":"MEMBER"}`, string(doc.Body))
}

/*
TestMemoryStore_QueryByField checks equality matching, ordering and limits.
*/
func TestMemoryStore_QueryByField(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()

	for _, key := range []string{"c", "a", "b"} {
		_, err := store.Put(ctx, docstore.Document{
			Kind:   kindWidget,
			Key:    key,
			Fields: map[string]string{"owner": "u1"},
		}, docstore.MustNotExist)
		require.NoError(t, err)
	}
	_, err := store.Put(ctx, docstore.Document{Kind: kindWidget, Key: "z", Fields: map[string]string{"owner": "u2"}}, docstore.AnyVersion)
	require.NoError(t, err)

	docs, err := store.QueryByField(ctx, kindWidget, "owner", "u1", 0)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "a", docs[0].Key)
	assert.Equal(t, "c", docs[2].Key)

	docs, err = store.QueryByField(ctx, kindWidget, "owner", "u1", 2)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	docs, err = store.QueryByField(ctx, kindWidget, "owner", "nobody", 0)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

/*
TestMemoryStore_NoAliasing ensures callers cannot mutate stored state through returned values.
*/
func TestMemoryStore_NoAliasing(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()

	fields := map[string]string{"owner": "u1"}
	_, err := store.Put(ctx, docstore.Document{Kind: kindWidget, Key: "w1", Fields: fields}, docstore.AnyVersion)
	require.NoError(t, err)
	fields["owner"] = "u2"

	doc, _, err := store.Get(ctx, kindWidget, "w1")
	require.NoError(t, err)
	assert.Equal(t, "u1", doc.Fields["owner"])

	doc.Fields["owner"] = "u3"
	again, _, err := store.Get(ctx, kindWidget, "w1")
	require.NoError(t, err)
	assert.Equal(t, "u1", again.Fields["owner"])
}

/*
TestLoadSave round-trips an entity through the generic helpers.
*/
func TestLoadSave(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()

	_, version, found, err := docstore.Load[widget](ctx, store, kindWidget, "w1")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, docstore.MustNotExist, version)

	_, err = docstore.Save(ctx, store, kindWidget, "w1", widget{Name: "gear", Count: 2}, nil, version)
	require.NoError(t, err)

	loaded, version, found, err := docstore.Load[widget](ctx, store, kindWidget, "w1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(1), version)
	assert.Equal(t, "gear", loaded.Name)
}

/*
TestMemoryStore_ConcurrentCAS proves exactly one of many racing CAS writers wins.
*/
func TestMemoryStore_ConcurrentCAS(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()

	_, err := store.Put(ctx, docstore.Document{Kind: kindWidget, Key: "w1"}, docstore.MustNotExist)
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Put(ctx, docstore.Document{Kind: kindWidget, Key: "w1"}, 1); err == nil {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}

/*
TestRetryOnConflict covers the retry budget and non-conflict short circuit.
*/
func TestRetryOnConflict(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds_after_conflicts", func(t *testing.T) {
		calls := 0
		err := docstore.RetryOnConflict(ctx, 3, func(context.Context) error {
			calls++
			if calls < 3 {
				return docstore.ErrConflict
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("budget_exhausted", func(t *testing.T) {
		calls := 0
		err := docstore.RetryOnConflict(ctx, docstore.DefaultAttempts, func(context.Context) error {
			calls++
			return docstore.ErrConflict
		})
		assert.ErrorIs(t, err, docstore.ErrConflict)
		assert.Equal(t, docstore.DefaultAttempts, calls)
	})

	t.Run("other_error_stops", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0
		err := docstore.RetryOnConflict(ctx, 3, func(context.Context) error {
			calls++
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled_context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		err := docstore.RetryOnConflict(cancelled, 3, func(context.Context) error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

/*
TestFaultStore verifies injected failures and the write hook.
*/
func TestFaultStore(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	store := docstore.NewFaultStore(docstore.NewMemoryStore())
	store.SetFault(docstore.FailOnce(docstore.OpPut, kindWidget, "w1", boom))

	_, err := store.Put(ctx, docstore.Document{Kind: kindWidget, Key: "w1"}, docstore.AnyVersion)
	assert.ErrorIs(t, err, boom)

	_, err = store.Put(ctx, docstore.Document{Kind: kindWidget, Key: "w1"}, docstore.AnyVersion)
	assert.NoError(t, err, "fault fires once")

	var hooked []string
	store.BeforeWrite(func(op docstore.Op, kind docstore.Kind, key string) {
		hooked = append(hooked, string(op)+":"+key)
	})
	require.NoError(t, store.Delete(ctx, kindWidget, "w1", docstore.AnyVersion))
	assert.Equal(t, []string{"delete:w1"}, hooked)

	store.SetFault(docstore.FailAlways(docstore.OpQuery, kindWidget, boom))
	_, err = store.QueryByField(ctx, kindWidget, "owner", "u1", 0)
	assert.ErrorIs(t, err, boom)
}

/*
TestToAppError maps store errors onto API error codes.
*/
func TestToAppError(t *testing.T) {
	assert.Nil(t, docstore.ToAppError(nil))
	assert.True(t, apperr.HasCode(docstore.ToAppError(docstore.ErrConflict), apperr.CodeConflict))
	assert.True(t, apperr.HasCode(docstore.ToAppError(docstore.ErrNotFound), apperr.CodeNotFound))
	assert.True(t, apperr.HasCode(docstore.ToAppError(errors.New("disk")), apperr.CodeInternal))
	assert.True(t, apperr.HasCode(docstore.ToAppError(context.Canceled), apperr.CodeUnavailable))

	forbidden := apperr.Forbidden("no")
	assert.Same(t, forbidden, docstore.ToAppError(forbidden))
}
