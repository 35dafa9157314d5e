package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/task-engine/internal/domain"
	pkgmongo "github.com/wms-platform/task-engine/pkg/mongodb"
)

// WaveRepository implements domain.WaveRepository
type WaveRepository struct {
	collection *pkgmongo.InstrumentedCollection
	writer     *eventWriter
}

// NewWaveRepository creates a WaveRepository
func NewWaveRepository(client *pkgmongo.InstrumentedClient, writer *eventWriter) *WaveRepository {
	return &WaveRepository{
		collection: client.Collection(CollectionWaves),
		writer:     writer,
	}
}

// EnsureIndexes creates the wave indexes
func (r *WaveRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		uniqueIndex(bson.D{{Key: "waveNumber", Value: 1}}),
		{Keys: bson.D{{Key: "warehouseId", Value: 1}, {Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
	}
	if err := r.collection.EnsureIndexes(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create wave indexes: %w", err)
	}
	return nil
}

// Save persists a wave with its domain events in a single transaction. A
// wave changed since it was loaded is not overwritten.
func (r *WaveRepository) Save(ctx context.Context, wave *domain.Wave) error {
	wave.Version++
	models := []mongo.WriteModel{versionedReplace("waveNumber", wave.WaveNumber, wave.Version-1, wave)}
	err := r.writer.write(ctx, wave.GetDomainEvents(), func(sessCtx mongo.SessionContext) error {
		return applyVersioned(sessCtx, r.collection, "wave "+wave.WaveNumber, models)
	})
	if err != nil {
		wave.Version--
		return err
	}
	wave.ClearDomainEvents()
	return nil
}

// FindByNumber implements domain.WaveRepository
func (r *WaveRepository) FindByNumber(ctx context.Context, waveNumber string) (*domain.Wave, error) {
	var wave domain.Wave
	err := r.collection.FindOne(ctx, bson.M{"waveNumber": waveNumber}).Decode(&wave)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find wave: %w", err)
	}
	return &wave, nil
}

// Find lists waves, newest first
func (r *WaveRepository) Find(ctx context.Context, filter domain.WaveFilter) ([]*domain.Wave, error) {
	query := bson.M{}
	if filter.WarehouseID != "" {
		query["warehouseId"] = filter.WarehouseID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	opts := options.Find().SetSort(pkgmongo.SortMultiple(
		pkgmongo.SortField{Field: "createdAt", Descending: true},
		pkgmongo.SortField{Field: "waveNumber", Descending: true},
	))
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query waves: %w", err)
	}
	waves := make([]*domain.Wave, 0)
	if err := decodeAll(ctx, cursor, &waves); err != nil {
		return nil, fmt.Errorf("failed to decode waves: %w", err)
	}
	return waves, nil
}

// WavePicklistRepository implements domain.WavePicklistRepository
type WavePicklistRepository struct {
	collection *pkgmongo.InstrumentedCollection
}

// NewWavePicklistRepository creates a WavePicklistRepository
func NewWavePicklistRepository(client *pkgmongo.InstrumentedClient) *WavePicklistRepository {
	return &WavePicklistRepository{collection: client.Collection(CollectionWavePicklists)}
}

// EnsureIndexes creates the link indexes
func (r *WavePicklistRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		uniqueIndex(bson.D{{Key: "waveNumber", Value: 1}, {Key: "picklistId", Value: 1}}),
		{Keys: bson.D{{Key: "waveNumber", Value: 1}, {Key: "sequence", Value: 1}}},
		{Keys: bson.D{{Key: "orderId", Value: 1}}},
	}
	if err := r.collection.EnsureIndexes(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create wave picklist indexes: %w", err)
	}
	return nil
}

// SaveAll upserts links keyed by wave and picklist
func (r *WavePicklistRepository) SaveAll(ctx context.Context, links []*domain.WavePicklist) error {
	if len(links) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(links))
	for _, link := range links {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"waveNumber": link.WaveNumber, "picklistId": link.PicklistID}).
			SetReplacement(link).
			SetUpsert(true))
	}
	if _, err := r.collection.BulkWrite(ctx, models); err != nil {
		return fmt.Errorf("failed to save wave picklists: %w", err)
	}
	return nil
}

// FindByWave returns the links of a wave ordered by sequence
func (r *WavePicklistRepository) FindByWave(ctx context.Context, waveNumber string) ([]*domain.WavePicklist, error) {
	opts := options.Find().SetSort(pkgmongo.SortAscending("sequence"))
	cursor, err := r.collection.Find(ctx, bson.M{"waveNumber": waveNumber}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query wave picklists: %w", err)
	}
	links := make([]*domain.WavePicklist, 0)
	if err := decodeAll(ctx, cursor, &links); err != nil {
		return nil, fmt.Errorf("failed to decode wave picklists: %w", err)
	}
	return links, nil
}

// FindByOrder returns the links of an order across waves
func (r *WavePicklistRepository) FindByOrder(ctx context.Context, orderID string) ([]*domain.WavePicklist, error) {
	opts := options.Find().SetSort(pkgmongo.SortAscending("waveNumber"))
	cursor, err := r.collection.Find(ctx, bson.M{"orderId": orderID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query wave picklists: %w", err)
	}
	links := make([]*domain.WavePicklist, 0)
	if err := decodeAll(ctx, cursor, &links); err != nil {
		return nil, fmt.Errorf("failed to decode wave picklists: %w", err)
	}
	return links, nil
}

// PicklistRepository implements domain.PicklistRepository
type PicklistRepository struct {
	collection *pkgmongo.InstrumentedCollection
}

// NewPicklistRepository creates a PicklistRepository
func NewPicklistRepository(client *pkgmongo.InstrumentedClient) *PicklistRepository {
	return &PicklistRepository{collection: client.Collection(CollectionPicklists)}
}

// EnsureIndexes creates the picklist indexes
func (r *PicklistRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		uniqueIndex(bson.D{{Key: "picklistId", Value: 1}}),
		{Keys: bson.D{{Key: "orderId", Value: 1}}},
	}
	if err := r.collection.EnsureIndexes(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create picklist indexes: %w", err)
	}
	return nil
}

// Save implements domain.PicklistRepository
func (r *PicklistRepository) Save(ctx context.Context, picklist *domain.Picklist) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"picklistId": picklist.PicklistID}, picklist, opts); err != nil {
		return fmt.Errorf("failed to save picklist: %w", err)
	}
	return nil
}

// FindByID implements domain.PicklistRepository
func (r *PicklistRepository) FindByID(ctx context.Context, picklistID string) (*domain.Picklist, error) {
	return r.findOne(ctx, bson.M{"picklistId": picklistID}, nil)
}

// FindByOrderID returns the newest picklist of an order
func (r *PicklistRepository) FindByOrderID(ctx context.Context, orderID string) (*domain.Picklist, error) {
	opts := options.FindOne().SetSort(pkgmongo.SortDescending("createdAt"))
	return r.findOne(ctx, bson.M{"orderId": orderID}, opts)
}

func (r *PicklistRepository) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*domain.Picklist, error) {
	var findOpts []*options.FindOneOptions
	if opts != nil {
		findOpts = append(findOpts, opts)
	}
	var picklist domain.Picklist
	err := r.collection.FindOne(ctx, filter, findOpts...).Decode(&picklist)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find picklist: %w", err)
	}
	return &picklist, nil
}
