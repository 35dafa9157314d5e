package mongodb

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/task-engine/internal/domain"
	pkgmongo "github.com/wms-platform/task-engine/pkg/mongodb"
)

// TaskRepository implements domain.TaskRepository
type TaskRepository struct {
	collection *pkgmongo.InstrumentedCollection
	writer     *eventWriter
}

// NewTaskRepository creates a TaskRepository
func NewTaskRepository(client *pkgmongo.InstrumentedClient, writer *eventWriter) *TaskRepository {
	return &TaskRepository{
		collection: client.Collection(CollectionTasks),
		writer:     writer,
	}
}

// EnsureIndexes creates the task indexes
func (r *TaskRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		uniqueIndex(bson.D{{Key: "taskId", Value: 1}}),
		{Keys: bson.D{{Key: "warehouseId", Value: 1}, {Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "waveId", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "assignedTo", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "warehouseId", Value: 1}, {Key: "type", Value: 1}, {Key: "completedAt", Value: 1}}},
	}
	if err := r.collection.EnsureIndexes(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create task indexes: %w", err)
	}
	return nil
}

// Save persists a task with its domain events in a single transaction. The
// write is conditional on the version the task was loaded at.
func (r *TaskRepository) Save(ctx context.Context, task *domain.Task) error {
	return r.SaveAll(ctx, []*domain.Task{task})
}

// SaveAll persists a batch of tasks and their events in a single
// transaction. One stale task aborts the whole batch.
func (r *TaskRepository) SaveAll(ctx context.Context, tasks []*domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(tasks))
	var events []domain.DomainEvent
	for _, task := range tasks {
		task.Version++
		models = append(models, versionedReplace("taskId", task.TaskID, task.Version-1, task))
		events = append(events, task.GetDomainEvents()...)
	}

	err := r.writer.write(ctx, events, func(sessCtx mongo.SessionContext) error {
		return applyVersioned(sessCtx, r.collection, "tasks", models)
	})
	if err != nil {
		for _, task := range tasks {
			task.Version--
		}
		return err
	}
	for _, task := range tasks {
		task.ClearDomainEvents()
	}
	return nil
}

// Claim writes an assigned task only while the stored copy is still
// claimable. The conditional FindOneAndUpdate is the compare-and-swap.
func (r *TaskRepository) Claim(ctx context.Context, task *domain.Task) error {
	expected := task.Version
	task.Version++
	err := r.writer.write(ctx, task.GetDomainEvents(), func(sessCtx mongo.SessionContext) error {
		filter := bson.M{
			"taskId":     task.TaskID,
			"status":     domain.TaskStatusPending,
			"version":    expected,
			"assignedTo": bson.M{"$in": bson.A{nil, "", task.AssignedTo}},
		}
		err := r.collection.FindOneAndUpdate(sessCtx, filter, bson.M{"$set": task}).Err()
		if err == mongo.ErrNoDocuments {
			return r.claimMiss(sessCtx, task)
		}
		if err != nil {
			return fmt.Errorf("failed to claim task: %w", err)
		}
		return nil
	})
	if err != nil {
		task.Version = expected
		return err
	}
	task.ClearDomainEvents()
	return nil
}

// claimMiss tells a missing task and a lost race apart from a copy that is
// merely stale
func (r *TaskRepository) claimMiss(ctx context.Context, task *domain.Task) error {
	var stored domain.Task
	err := r.collection.FindOne(ctx, bson.M{"taskId": task.TaskID}).Decode(&stored)
	if err == mongo.ErrNoDocuments {
		return fmt.Errorf("%w: task %s", domain.ErrNotFound, task.TaskID)
	}
	if err != nil {
		return fmt.Errorf("failed to check task: %w", err)
	}
	if stored.Status != domain.TaskStatusPending ||
		(stored.AssignedTo != "" && stored.AssignedTo != task.AssignedTo) {
		return fmt.Errorf("%w: task %s is %s for %q", domain.ErrClaimConflict, task.TaskID, stored.Status, stored.AssignedTo)
	}
	return fmt.Errorf("%w: task %s is at version %d", domain.ErrConcurrentModification, task.TaskID, stored.Version)
}

// FindByID implements domain.TaskRepository
func (r *TaskRepository) FindByID(ctx context.Context, taskID string) (*domain.Task, error) {
	var task domain.Task
	err := r.collection.FindOne(ctx, bson.M{"taskId": taskID}).Decode(&task)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return &task, nil
}

// Find implements domain.TaskRepository
func (r *TaskRepository) Find(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error) {
	query := bson.M{}
	if filter.WarehouseID != "" {
		query["warehouseId"] = filter.WarehouseID
	}
	if filter.WaveID != "" {
		query["waveId"] = filter.WaveID
	}
	if filter.AssignedTo != "" {
		query["assignedTo"] = filter.AssignedTo
	}
	if len(filter.Statuses) > 0 {
		query["status"] = bson.M{"$in": filter.Statuses}
	}
	if len(filter.Types) > 0 {
		query["type"] = bson.M{"$in": filter.Types}
	}
	return r.find(ctx, query, filter.Limit)
}

// FindCandidates implements domain.TaskRepository
func (r *TaskRepository) FindCandidates(ctx context.Context, q domain.CandidateQuery) ([]*domain.Task, error) {
	query := bson.M{
		"status":     domain.TaskStatusPending,
		"assignedTo": bson.M{"$in": bson.A{nil, "", q.WorkerID}},
	}
	if q.WarehouseID != "" {
		query["warehouseId"] = q.WarehouseID
	}
	if len(q.Types) > 0 {
		query["type"] = bson.M{"$in": q.Types}
	}
	if q.Equipment != "" {
		query["requiredEquipment"] = bson.M{"$in": bson.A{
			nil,
			"",
			primitive.Regex{Pattern: "^" + regexp.QuoteMeta(q.Equipment) + "$", Options: "i"},
		}}
	}
	return r.find(ctx, query, q.Limit)
}

func (r *TaskRepository) find(ctx context.Context, query bson.M, limit int) ([]*domain.Task, error) {
	opts := options.Find().SetSort(pkgmongo.SortMultiple(
		pkgmongo.SortField{Field: "createdAt"},
		pkgmongo.SortField{Field: "taskId"},
	))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	tasks := make([]*domain.Task, 0)
	if err := decodeAll(ctx, cursor, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}
	return tasks, nil
}

// CountByWave implements domain.TaskRepository
func (r *TaskRepository) CountByWave(ctx context.Context, waveID string, statuses []domain.TaskStatus) (int64, error) {
	query := bson.M{"waveId": waveID}
	if len(statuses) > 0 {
		query["status"] = bson.M{"$in": statuses}
	}
	n, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count wave tasks: %w", err)
	}
	return n, nil
}

// AggregateCompletedPicks implements domain.TaskRepository
func (r *TaskRepository) AggregateCompletedPicks(ctx context.Context, warehouseID string, from, to time.Time) ([]domain.ProductPicks, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"warehouseId": warehouseID,
			"type":        domain.TaskTypePick,
			"status":      domain.TaskStatusCompleted,
			"completedAt": bson.M{"$gte": from, "$lt": to},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{
				"productId": "$productId",
				"variantId": bson.M{"$ifNull": bson.A{"$variantId", ""}},
			},
			"pickCount": bson.M{"$sum": 1},
			"quantity":  bson.M{"$sum": "$quantityCompleted"},
		}}},
		{{Key: "$project", Value: bson.M{
			"_id":       0,
			"productId": "$_id.productId",
			"variantId": "$_id.variantId",
			"pickCount": 1,
			"quantity":  1,
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "productId", Value: 1}, {Key: "variantId", Value: 1}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate picks: %w", err)
	}
	picks := make([]domain.ProductPicks, 0)
	if err := decodeAll(ctx, cursor, &picks); err != nil {
		return nil, fmt.Errorf("failed to decode picks: %w", err)
	}
	return picks, nil
}
