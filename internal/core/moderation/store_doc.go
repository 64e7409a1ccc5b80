// Copyright (c) 2026 Kinship. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package moderation

import (
	"context"

	"github.com/taibuivan/kinship/internal/platform/docstore"
)

// Document kinds owned by this package.
const (
	KindReport docstore.Kind = "report"
	KindGuard  docstore.Kind = "report_guard"
)

// Indexed fields.
const (
	indexStatus   = "status"
	indexGroup    = "group_id"
	indexTarget   = "target_id"
	indexReporter = "reporter_id"
)

// DocRepository implements [Repository] on a [docstore.Store].
type DocRepository struct {
	store docstore.Store
}

// NewDocRepository constructs a document-store backed report repository.
func NewDocRepository(store docstore.Store) *DocRepository {
	return &DocRepository{store: store}
}

// guardKey identifies one reporter's open report against one target.
func guardKey(reporterID string, targetType TargetType, targetID string) string {
	return reporterID + "|" + string(targetType) + "|" + targetID
}

// FindByID implements [Repository].
func (repository *DocRepository) FindByID(ctx context.Context, id string) (*Report, error) {
	report, version, found, err := docstore.Load[Report](ctx, repository.store, KindReport, id)
	if err != nil || !found {
		return nil, err
	}
	report.Version = version
	return &report, nil
}

// Put implements [Repository].
func (repository *DocRepository) Put(ctx context.Context, report *Report, expectedVersion int64) (int64, error) {
	fields := map[string]string{
		indexStatus:   string(report.Status),
		indexTarget:   report.TargetID,
		indexReporter: report.ReporterID,
	}
	if report.GroupID != "" {
		fields[indexGroup] = report.GroupID
	}
	return docstore.Save(ctx, repository.store, KindReport, report.ID, report, fields, expectedVersion)
}

// Delete implements [Repository].
func (repository *DocRepository) Delete(ctx context.Context, id string, expectedVersion int64) error {
	return repository.store.Delete(ctx, KindReport, id, expectedVersion)
}

// GetGuard implements [Repository].
func (repository *DocRepository) GetGuard(ctx context.Context, reporterID string, targetType TargetType, targetID string) (*Guard, error) {
	guard, version, found, err := docstore.Load[Guard](ctx, repository.store, KindGuard, guardKey(reporterID, targetType, targetID))
	if err != nil || !found {
		return nil, err
	}
	guard.Version = version
	return &guard, nil
}

// PutGuard implements [Repository].
func (repository *DocRepository) PutGuard(ctx context.Context, guard *Guard, expectedVersion int64) (int64, error) {
	key := guardKey(guard.ReporterID, guard.TargetType, guard.TargetID)
	fields := map[string]string{indexReporter: guard.ReporterID}
	return docstore.Save(ctx, repository.store, KindGuard, key, guard, fields, expectedVersion)
}

// ListByStatus implements [Repository].
func (repository *DocRepository) ListByStatus(ctx context.Context, status Status, limit int) ([]*Report, error) {
	return repository.list(ctx, indexStatus, string(status), limit)
}

// ListByGroup implements [Repository].
func (repository *DocRepository) ListByGroup(ctx context.Context, groupID string, limit int) ([]*Report, error) {
	return repository.list(ctx, indexGroup, groupID, limit)
}

// ListByReporter implements [Repository].
func (repository *DocRepository) ListByReporter(ctx context.Context, reporterID string, limit int) ([]*Report, error) {
	return repository.list(ctx, indexReporter, reporterID, limit)
}

func (repository *DocRepository) list(ctx context.Context, field, value string, limit int) ([]*Report, error) {
	docs, err := repository.store.QueryByField(ctx, KindReport, field, value, limit)
	if err != nil {
		return nil, err
	}

	reports := make([]*Report, 0, len(docs))
	for _, doc := range docs {
		var report Report
		if err := docstore.Decode(doc, &report); err != nil {
			return nil, err
		}
		report.Version = doc.Version
		reports = append(reports, &report)
	}
	return reports, nil
}
