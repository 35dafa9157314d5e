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

// Directory implements domain.Directory over the warehouses, carriers and
// bins collections
type Directory struct {
	warehouses *pkgmongo.InstrumentedCollection
	carriers   *pkgmongo.InstrumentedCollection
	bins       *pkgmongo.InstrumentedCollection
}

// NewDirectory creates a Directory
func NewDirectory(client *pkgmongo.InstrumentedClient) *Directory {
	return &Directory{
		warehouses: client.Collection(CollectionWarehouses),
		carriers:   client.Collection(CollectionCarriers),
		bins:       client.Collection(CollectionBins),
	}
}

// EnsureIndexes creates the directory indexes
func (d *Directory) EnsureIndexes(ctx context.Context) error {
	if err := d.warehouses.EnsureIndexes(ctx, []mongo.IndexModel{uniqueIndex(bson.D{{Key: "warehouseId", Value: 1}})}); err != nil {
		return fmt.Errorf("failed to create warehouse indexes: %w", err)
	}
	if err := d.carriers.EnsureIndexes(ctx, []mongo.IndexModel{uniqueIndex(bson.D{{Key: "carrierId", Value: 1}})}); err != nil {
		return fmt.Errorf("failed to create carrier indexes: %w", err)
	}
	binIndexes := []mongo.IndexModel{
		uniqueIndex(bson.D{{Key: "warehouseId", Value: 1}, {Key: "code", Value: 1}}),
		{Keys: bson.D{{Key: "warehouseId", Value: 1}, {Key: "productId", Value: 1}, {Key: "variantId", Value: 1}}},
	}
	if err := d.bins.EnsureIndexes(ctx, binIndexes); err != nil {
		return fmt.Errorf("failed to create bin indexes: %w", err)
	}
	return nil
}

// SaveWarehouse registers a warehouse id
func (d *Directory) SaveWarehouse(ctx context.Context, warehouseID string) error {
	_, err := d.warehouses.UpdateOne(ctx,
		bson.M{"warehouseId": warehouseID},
		bson.M{"$setOnInsert": bson.M{"warehouseId": warehouseID, "createdAt": pkgmongo.Now()}},
		upsertOptions(),
	)
	if err != nil {
		return fmt.Errorf("failed to save warehouse: %w", err)
	}
	return nil
}

// SaveCarrier registers a carrier id
func (d *Directory) SaveCarrier(ctx context.Context, carrierID string) error {
	_, err := d.carriers.UpdateOne(ctx,
		bson.M{"carrierId": carrierID},
		bson.M{"$setOnInsert": bson.M{"carrierId": carrierID, "createdAt": pkgmongo.Now()}},
		upsertOptions(),
	)
	if err != nil {
		return fmt.Errorf("failed to save carrier: %w", err)
	}
	return nil
}

// SaveBin upserts a bin keyed by warehouse and code
func (d *Directory) SaveBin(ctx context.Context, bin domain.Bin) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := d.bins.ReplaceOne(ctx, bson.M{"warehouseId": bin.WarehouseID, "code": bin.Code}, bin, opts); err != nil {
		return fmt.Errorf("failed to save bin: %w", err)
	}
	return nil
}

// WarehouseExists implements domain.Directory
func (d *Directory) WarehouseExists(ctx context.Context, warehouseID string) (bool, error) {
	return exists(ctx, d.warehouses, bson.M{"warehouseId": warehouseID})
}

// CarrierExists implements domain.Directory
func (d *Directory) CarrierExists(ctx context.Context, carrierID string) (bool, error) {
	return exists(ctx, d.carriers, bson.M{"carrierId": carrierID})
}

// ResolveBin prefers the bin slotted for the exact variant and falls back
// to a product-level bin
func (d *Directory) ResolveBin(ctx context.Context, warehouseID, productID, variantID string) (*domain.Bin, error) {
	filters := []bson.M{{"warehouseId": warehouseID, "productId": productID, "variantId": variantID}}
	if variantID == "" {
		filters[0]["variantId"] = bson.M{"$in": bson.A{nil, ""}}
	} else {
		filters = append(filters, bson.M{"warehouseId": warehouseID, "productId": productID, "variantId": bson.M{"$in": bson.A{nil, ""}}})
	}

	for _, filter := range filters {
		var bin domain.Bin
		err := d.bins.FindOne(ctx, filter).Decode(&bin)
		if err == mongo.ErrNoDocuments {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve bin: %w", err)
		}
		return &bin, nil
	}
	return nil, nil
}

func exists(ctx context.Context, collection *pkgmongo.InstrumentedCollection, filter bson.M) (bool, error) {
	n, err := collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to query %s: %w", collection.Name(), err)
	}
	return n > 0, nil
}

// SlotScoreRepository implements domain.SlotScoreRepository
type SlotScoreRepository struct {
	collection *pkgmongo.InstrumentedCollection
}

// NewSlotScoreRepository creates a SlotScoreRepository
func NewSlotScoreRepository(client *pkgmongo.InstrumentedClient) *SlotScoreRepository {
	return &SlotScoreRepository{collection: client.Collection(CollectionSlotScores)}
}

// EnsureIndexes creates the slot score indexes
func (r *SlotScoreRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		uniqueIndex(bson.D{{Key: "warehouseId", Value: 1}, {Key: "productId", Value: 1}, {Key: "variantId", Value: 1}}),
		{Keys: bson.D{{Key: "warehouseId", Value: 1}, {Key: "class", Value: 1}, {Key: "velocityScore", Value: -1}}},
	}
	if err := r.collection.EnsureIndexes(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create slot score indexes: %w", err)
	}
	return nil
}

// Upsert replaces the scores keyed by warehouse, product and variant
func (r *SlotScoreRepository) Upsert(ctx context.Context, scores []*domain.SlotScore) error {
	if len(scores) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(scores))
	for _, score := range scores {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{
				"warehouseId": score.WarehouseID,
				"productId":   score.ProductID,
				"variantId":   score.VariantID,
			}).
			SetReplacement(score).
			SetUpsert(true))
	}
	if _, err := r.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("failed to upsert slot scores: %w", err)
	}
	return nil
}

// Find lists a warehouse's scores, fastest movers first
func (r *SlotScoreRepository) Find(ctx context.Context, warehouseID string, class domain.VelocityClass) ([]*domain.SlotScore, error) {
	query := bson.M{"warehouseId": warehouseID}
	if class != "" {
		query["class"] = class
	}
	opts := options.Find().SetSort(pkgmongo.SortMultiple(
		pkgmongo.SortField{Field: "velocityScore", Descending: true},
		pkgmongo.SortField{Field: "productId"},
		pkgmongo.SortField{Field: "variantId"},
	))

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query slot scores: %w", err)
	}
	scores := make([]*domain.SlotScore, 0)
	if err := decodeAll(ctx, cursor, &scores); err != nil {
		return nil, fmt.Errorf("failed to decode slot scores: %w", err)
	}
	return scores, nil
}

// SequenceGenerator issues counters from the sequences collection
type SequenceGenerator struct {
	collection *pkgmongo.InstrumentedCollection
}

// NewSequenceGenerator creates a SequenceGenerator
func NewSequenceGenerator(client *pkgmongo.InstrumentedClient) *SequenceGenerator {
	return &SequenceGenerator{collection: client.Collection(CollectionSequences)}
}

type sequenceDoc struct {
	Key   string `bson:"_id"`
	Value int64  `bson:"value"`
}

// Next implements domain.SequenceGenerator
func (g *SequenceGenerator) Next(ctx context.Context, key string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc sequenceDoc
	err := g.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": key},
		bson.M{"$inc": bson.M{"value": int64(1)}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s: %w", key, err)
	}
	return doc.Value, nil
}
