package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/wms-platform/task-engine/pkg/logging"
	"github.com/wms-platform/task-engine/pkg/metrics"
)

// InstrumentedClient wraps a Client with metrics and tracing
type InstrumentedClient struct {
	client  *Client
	metrics *metrics.Metrics
	logger  *logging.Logger
	tracer  trace.Tracer
}

// NewInstrumentedClient creates a new instrumented MongoDB client.
// Metrics and logger may be nil.
func NewInstrumentedClient(client *Client, m *metrics.Metrics, logger *logging.Logger) *InstrumentedClient {
	return &InstrumentedClient{
		client:  client,
		metrics: m,
		logger:  logger,
		tracer:  otel.Tracer("mongodb"),
	}
}

// Collection returns an instrumented collection
func (c *InstrumentedClient) Collection(name string) *InstrumentedCollection {
	return &InstrumentedCollection{
		collection: c.client.Collection(name),
		name:       name,
		database:   c.client.config.Database,
		metrics:    c.metrics,
		logger:     c.logger,
		tracer:     c.tracer,
	}
}

// Database returns the underlying database handle
func (c *InstrumentedClient) Database() *mongo.Database {
	return c.client.Database()
}

// Close disconnects the client
func (c *InstrumentedClient) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// HealthCheck performs a traced ping
func (c *InstrumentedClient) HealthCheck(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "mongodb.ping",
		trace.WithAttributes(
			semconv.DBSystemMongoDB,
			semconv.DBNameKey.String(c.client.config.Database),
		),
	)
	defer span.End()

	err := c.client.HealthCheck(ctx)
	endSpan(span, err)
	return err
}

// WithTransaction executes fn within a traced transaction
func (c *InstrumentedClient) WithTransaction(ctx context.Context, fn func(sessCtx mongo.SessionContext) error) error {
	ctx, span := c.tracer.Start(ctx, "mongodb.transaction",
		trace.WithAttributes(
			semconv.DBSystemMongoDB,
			semconv.DBNameKey.String(c.client.config.Database),
		),
	)
	defer span.End()

	err := c.client.WithTransaction(ctx, fn)
	endSpan(span, err)
	return err
}

// InstrumentedCollection wraps a mongo.Collection with metrics and tracing
type InstrumentedCollection struct {
	collection *mongo.Collection
	name       string
	database   string
	metrics    *metrics.Metrics
	logger     *logging.Logger
	tracer     trace.Tracer
}

func (c *InstrumentedCollection) startSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "mongodb."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemMongoDB,
			semconv.DBNameKey.String(c.database),
			semconv.DBOperationKey.String(operation),
			attribute.String("db.collection", c.name),
		),
	)
}

// observe wraps a driver call with a span, a metric and a debug log line.
func (c *InstrumentedCollection) observe(ctx context.Context, operation string, call func(ctx context.Context) (int64, error)) error {
	start := time.Now()
	ctx, span := c.startSpan(ctx, operation)
	defer span.End()

	affected, err := call(ctx)
	duration := time.Since(start)
	success := err == nil || err == mongo.ErrNoDocuments

	if c.metrics != nil {
		c.metrics.RecordMongoDBOperation(c.name, operation, success, duration)
	}
	if c.logger != nil {
		c.logger.DatabaseQuery(ctx, c.name, operation, duration, success, affected)
	}

	if success {
		span.SetAttributes(attribute.Int64("db.rows_affected", affected))
		endSpan(span, nil)
	} else {
		endSpan(span, err)
	}
	return err
}

// InsertMany inserts multiple documents
func (c *InstrumentedCollection) InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error) {
	var result *mongo.InsertManyResult
	err := c.observe(ctx, "insertMany", func(ctx context.Context) (int64, error) {
		var err error
		result, err = c.collection.InsertMany(ctx, documents, opts...)
		if err != nil {
			return 0, err
		}
		return int64(len(result.InsertedIDs)), nil
	})
	return result, err
}

// FindOne finds a single document
func (c *InstrumentedCollection) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult {
	var result *mongo.SingleResult
	_ = c.observe(ctx, "findOne", func(ctx context.Context) (int64, error) {
		result = c.collection.FindOne(ctx, filter, opts...)
		if err := result.Err(); err != nil {
			return 0, err
		}
		return 1, nil
	})
	return result
}

// Find finds multiple documents
func (c *InstrumentedCollection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	var cursor *mongo.Cursor
	err := c.observe(ctx, "find", func(ctx context.Context) (int64, error) {
		var err error
		cursor, err = c.collection.Find(ctx, filter, opts...)
		return 0, err
	})
	return cursor, err
}

// UpdateOne updates a single document
func (c *InstrumentedCollection) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	var result *mongo.UpdateResult
	err := c.observe(ctx, "updateOne", func(ctx context.Context) (int64, error) {
		var err error
		result, err = c.collection.UpdateOne(ctx, filter, update, opts...)
		if err != nil {
			return 0, err
		}
		return result.ModifiedCount + result.UpsertedCount, nil
	})
	return result, err
}

// ReplaceOne replaces a single document
func (c *InstrumentedCollection) ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error) {
	var result *mongo.UpdateResult
	err := c.observe(ctx, "replaceOne", func(ctx context.Context) (int64, error) {
		var err error
		result, err = c.collection.ReplaceOne(ctx, filter, replacement, opts...)
		if err != nil {
			return 0, err
		}
		return result.ModifiedCount + result.UpsertedCount, nil
	})
	return result, err
}

// UpdateMany updates multiple documents
func (c *InstrumentedCollection) UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	var result *mongo.UpdateResult
	err := c.observe(ctx, "updateMany", func(ctx context.Context) (int64, error) {
		var err error
		result, err = c.collection.UpdateMany(ctx, filter, update, opts...)
		if err != nil {
			return 0, err
		}
		return result.ModifiedCount, nil
	})
	return result, err
}

// DeleteMany deletes multiple documents
func (c *InstrumentedCollection) DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	var result *mongo.DeleteResult
	err := c.observe(ctx, "deleteMany", func(ctx context.Context) (int64, error) {
		var err error
		result, err = c.collection.DeleteMany(ctx, filter, opts...)
		if err != nil {
			return 0, err
		}
		return result.DeletedCount, nil
	})
	return result, err
}

// CountDocuments counts documents matching filter
func (c *InstrumentedCollection) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	var count int64
	err := c.observe(ctx, "countDocuments", func(ctx context.Context) (int64, error) {
		var err error
		count, err = c.collection.CountDocuments(ctx, filter, opts...)
		return 0, err
	})
	return count, err
}

// Aggregate runs an aggregation pipeline
func (c *InstrumentedCollection) Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (*mongo.Cursor, error) {
	var cursor *mongo.Cursor
	err := c.observe(ctx, "aggregate", func(ctx context.Context) (int64, error) {
		var err error
		cursor, err = c.collection.Aggregate(ctx, pipeline, opts...)
		return 0, err
	})
	return cursor, err
}

// FindOneAndUpdate atomically finds and updates a document
func (c *InstrumentedCollection) FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) *mongo.SingleResult {
	var result *mongo.SingleResult
	_ = c.observe(ctx, "findOneAndUpdate", func(ctx context.Context) (int64, error) {
		result = c.collection.FindOneAndUpdate(ctx, filter, update, opts...)
		if err := result.Err(); err != nil {
			return 0, err
		}
		return 1, nil
	})
	return result
}

// BulkWrite performs bulk write operations
func (c *InstrumentedCollection) BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error) {
	var result *mongo.BulkWriteResult
	err := c.observe(ctx, "bulkWrite", func(ctx context.Context) (int64, error) {
		var err error
		result, err = c.collection.BulkWrite(ctx, models, opts...)
		if err != nil {
			return 0, err
		}
		return result.InsertedCount + result.ModifiedCount + result.UpsertedCount, nil
	})
	return result, err
}

// EnsureIndexes creates indexes, ignoring conflicts with existing ones
func (c *InstrumentedCollection) EnsureIndexes(ctx context.Context, models []mongo.IndexModel) error {
	return c.observe(ctx, "createIndexes", func(ctx context.Context) (int64, error) {
		names, err := c.collection.Indexes().CreateMany(ctx, models)
		return int64(len(names)), err
	})
}

// Name returns the collection name
func (c *InstrumentedCollection) Name() string {
	return c.name
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
