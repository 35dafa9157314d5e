// Package mongodb holds the MongoDB implementations of the engine's
// repositories. Aggregate writes and their outbox rows share a transaction,
// so the deployment must run as a replica set.
package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/task-engine/internal/domain"
	"github.com/wms-platform/task-engine/internal/infrastructure/eventing"
	pkgmongo "github.com/wms-platform/task-engine/pkg/mongodb"
	outboxMongo "github.com/wms-platform/task-engine/pkg/outbox/mongodb"
)

// Collection names
const (
	CollectionTasks         = "tasks"
	CollectionWaves         = "waves"
	CollectionWavePicklists = "wave_picklists"
	CollectionPicklists     = "picklists"
	CollectionSlotScores    = "slot_scores"
	CollectionSequences     = "sequences"
	CollectionWarehouses    = "warehouses"
	CollectionCarriers      = "carriers"
	CollectionBins          = "bins"
)

// Store bundles every MongoDB repository over one outbox collection
type Store struct {
	Tasks         *TaskRepository
	Waves         *WaveRepository
	WavePicklists *WavePicklistRepository
	Picklists     *PicklistRepository
	SlotScores    *SlotScoreRepository
	Sequences     *SequenceGenerator
	Directory     *Directory
	Outbox        *outboxMongo.OutboxRepository
}

// NewStore creates the repositories. A nil mapper drops domain events
// instead of writing them to the outbox.
func NewStore(client *pkgmongo.InstrumentedClient, mapper *eventing.Mapper) *Store {
	outboxRepo := outboxMongo.NewOutboxRepository(client)
	writer := &eventWriter{client: client, mapper: mapper, outbox: outboxRepo}

	return &Store{
		Tasks:         NewTaskRepository(client, writer),
		Waves:         NewWaveRepository(client, writer),
		WavePicklists: NewWavePicklistRepository(client),
		Picklists:     NewPicklistRepository(client),
		SlotScores:    NewSlotScoreRepository(client),
		Sequences:     NewSequenceGenerator(client),
		Directory:     NewDirectory(client),
		Outbox:        outboxRepo,
	}
}

// EnsureIndexes creates the indexes of every collection
func (s *Store) EnsureIndexes(ctx context.Context) error {
	steps := []func(context.Context) error{
		s.Tasks.EnsureIndexes,
		s.Waves.EnsureIndexes,
		s.WavePicklists.EnsureIndexes,
		s.Picklists.EnsureIndexes,
		s.SlotScores.EnsureIndexes,
		s.Directory.EnsureIndexes,
		s.Outbox.EnsureIndexes,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// eventWriter runs an aggregate write and the outbox rows of its domain
// events in one transaction
type eventWriter struct {
	client *pkgmongo.InstrumentedClient
	mapper *eventing.Mapper
	outbox *outboxMongo.OutboxRepository
}

func (w *eventWriter) write(ctx context.Context, events []domain.DomainEvent, fn func(sessCtx mongo.SessionContext) error) error {
	err := w.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		// 1. Save the aggregate
		if err := fn(sessCtx); err != nil {
			return err
		}
		if w.mapper == nil || len(events) == 0 {
			return nil
		}

		// 2. Save domain events to the outbox
		rows, err := w.mapper.ToOutbox(sessCtx, events)
		if err != nil {
			return err
		}
		return w.outbox.SaveAll(sessCtx, rows)
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}
	return nil
}

func upsertOptions() *options.UpdateOptions {
	return options.Update().SetUpsert(true)
}

// versionedReplace builds a replace of the document stored at version
// expected. Only a first write may upsert.
func versionedReplace(key, id string, expected int64, doc interface{}) *mongo.ReplaceOneModel {
	return mongo.NewReplaceOneModel().
		SetFilter(bson.M{key: id, "version": expected}).
		SetReplacement(doc).
		SetUpsert(expected == 0)
}

// applyVersioned runs versioned replaces and fails with
// domain.ErrConcurrentModification unless every one of them landed
func applyVersioned(ctx context.Context, collection *pkgmongo.InstrumentedCollection, what string, models []mongo.WriteModel) error {
	result, err := collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s already exists", domain.ErrConcurrentModification, what)
	}
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", what, err)
	}
	if written := result.MatchedCount + result.UpsertedCount; written != int64(len(models)) {
		return fmt.Errorf("%w: %d of %d %s were stale", domain.ErrConcurrentModification,
			int64(len(models))-written, len(models), what)
	}
	return nil
}

func uniqueIndex(keys bson.D) mongo.IndexModel {
	return mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(true)}
}

// decodeAll drains a cursor into out
func decodeAll(ctx context.Context, cursor *mongo.Cursor, out interface{}) error {
	defer cursor.Close(ctx)
	return cursor.All(ctx, out)
}
