// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package moderation

import "context"

// # Report Data Access

// Repository defines the data access contract for reports and their guards.
type Repository interface {
	// FindByID returns nil when the report does not exist.
	FindByID(ctx context.Context, id string) (*Report, error)

	/*
		Put writes a report under a version precondition.

		Parameters:
		  - ctx: context.Context
		  - report: *Report
		  - expectedVersion: int64 (docstore.MustNotExist to create)

		Returns:
		  - int64: New version
		  - error: docstore.ErrConflict or store failures
	*/
	Put(ctx context.Context, report *Report, expectedVersion int64) (int64, error)

	// Delete removes a report. It only backs out a report whose guard write failed.
	Delete(ctx context.Context, id string, expectedVersion int64) error

	// GetGuard returns the open-report guard of a reporter and target, or nil.
	GetGuard(ctx context.Context, reporterID string, targetType TargetType, targetID string) (*Guard, error)

	// PutGuard writes a guard under a version precondition.
	PutGuard(ctx context.Context, guard *Guard, expectedVersion int64) (int64, error)

	// ListByStatus returns reports in one lifecycle state.
	ListByStatus(ctx context.Context, status Status, limit int) ([]*Report, error)

	// ListByGroup returns reports scoped to a group.
	ListByGroup(ctx context.Context, groupID string, limit int) ([]*Report, error)

	// ListByReporter returns the reports a user filed.
	ListByReporter(ctx context.Context, reporterID string, limit int) ([]*Report, error)
}
