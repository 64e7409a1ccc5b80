// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package docstore

import (
	"context"
	"sync"
)

// Op identifies a store operation for fault injection.
type Op string

const (
	OpPut    Op = "put"
	OpDelete Op = "delete"
	OpGet    Op = "get"
	OpQuery  Op = "query"
)

// Fault decides whether a call fails. Returning nil lets it through.
type Fault func(op Op, kind Kind, key string) error

// FaultStore wraps a [Store] and fails selected calls.
//
// Engines use it in tests to reproduce partially applied multi-document
// mutations, concurrent writers (via BeforeWrite) and flaky backends.
type FaultStore struct {
	Store

	mu          sync.Mutex
	fault       Fault
	beforeWrite func(op Op, kind Kind, key string)
}

// NewFaultStore wraps inner with no faults configured.
func NewFaultStore(inner Store) *FaultStore {
	return &FaultStore{Store: inner}
}

// SetFault replaces the active fault. Passing nil clears it.
func (store *FaultStore) SetFault(fault Fault) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.fault = fault
}

// BeforeWrite registers a hook that runs before every Put and Delete reaches the
// inner store. It is used to interleave a competing writer at an exact point.
func (store *FaultStore) BeforeWrite(hook func(op Op, kind Kind, key string)) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.beforeWrite = hook
}

// FailOnce returns a Fault that fails the first matching call with err.
func FailOnce(op Op, kind Kind, key string, err error) Fault {
	var once sync.Once
	return func(gotOp Op, gotKind Kind, gotKey string) error {
		if gotOp != op || gotKind != kind || (key != "" && gotKey != key) {
			return nil
		}
		var result error
		once.Do(func() { result = err })
		return result
	}
}

// FailAlways returns a Fault that fails every matching call with err.
func FailAlways(op Op, kind Kind, err error) Fault {
	return func(gotOp Op, gotKind Kind, _ string) error {
		if gotOp == op && gotKind == kind {
			return err
		}
		return nil
	}
}

func (store *FaultStore) check(op Op, kind Kind, key string) error {
	store.mu.Lock()
	fault := store.fault
	hook := store.beforeWrite
	store.mu.Unlock()

	if hook != nil && (op == OpPut || op == OpDelete) {
		hook(op, kind, key)
	}
	if fault == nil {
		return nil
	}
	return fault(op, kind, key)
}

// Get implements [Store].
func (store *FaultStore) Get(ctx context.Context, kind Kind, key string) (Document, bool, error) {
	if err := store.check(OpGet, kind, key); err != nil {
		return Document{}, false, err
	}
	return store.Store.Get(ctx, kind, key)
}

// Put implements [Store].
func (store *FaultStore) Put(ctx context.Context, doc Document, expectedVersion int64) (int64, error) {
	if err := store.check(OpPut, doc.Kind, doc.Key); err != nil {
		return 0, err
	}
	return store.Store.Put(ctx, doc, expectedVersion)
}

// Delete implements [Store].
func (store *FaultStore) Delete(ctx context.Context, kind Kind, key string, expectedVersion int64) error {
	if err := store.check(OpDelete, kind, key); err != nil {
		return err
	}
	return store.Store.Delete(ctx, kind, key, expectedVersion)
}

// QueryByField implements [Store].
func (store *FaultStore) QueryByField(ctx context.Context, kind Kind, field, value string, limit int) ([]Document, error) {
	if err := store.check(OpQuery, kind, field+"="+value); err != nil {
		return nil, err
	}
	return store.Store.QueryByField(ctx, kind, field, value, limit)
}
