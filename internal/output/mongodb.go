// internal/output/mongodb.go
package output

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/valpere/StoreScrapexter/internal/store"
	"github.com/valpere/StoreScrapexter/internal/utils"
)

const mongoConnectTimeout = 30 * time.Second

// mongoDocument is the stored shape: the store fields inline plus the upsert key.
type mongoDocument struct {
	store.Store `bson:",inline"`
	Spider      string    `bson:"spider"`
	Key         string    `bson:"key"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

// MongoDBWriter upserts stores by (spider, key) and keeps a 2dsphere index on
// location for geo queries.
type MongoDBWriter struct {
	ctx        context.Context
	client     *mongo.Client
	collection *mongo.Collection
	spider     string
	batch      int
	logger     utils.Logger
	now        func() time.Time

	totalUpserted int64
	totalModified int64
}

// NewMongoDBWriter connects, pings and ensures the indexes.
func NewMongoDBWriter(ctx context.Context, cfg Config) (*MongoDBWriter, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("MongoDB connection string is required")
	}
	if cfg.Spider == "" {
		return nil, fmt.Errorf("spider name is required for MongoDB output")
	}
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	connectCtx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(cfg.DSN).
		SetMaxPoolSize(20).
		SetMaxConnIdleTime(10 * time.Minute).
		SetRetryWrites(true)
	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	w := &MongoDBWriter{
		ctx:        ctx,
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		spider:     cfg.Spider,
		batch:      cfg.BatchSize,
		logger:     utils.NewComponentLogger("mongodb-output"),
		now:        time.Now,
	}
	if err := w.createIndexes(connectCtx); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	w.logger.Infof("connected to MongoDB collection %s.%s", cfg.Database, cfg.Collection)
	return w, nil
}

// storeIndexes are the indexes every store collection carries.
func storeIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "spider", Value: 1}, {Key: "key", Value: 1}},
			Options: options.Index().SetName("spider_key").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "location", Value: "2dsphere"}},
			Options: options.Index().SetName("location_2dsphere"),
		},
	}
}

func (w *MongoDBWriter) createIndexes(ctx context.Context) error {
	names, err := w.collection.Indexes().CreateMany(ctx, storeIndexes())
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	w.logger.Debugf("ensured indexes %v", names)
	return nil
}

// upsertModels builds one replace-or-insert model per store.
func (w *MongoDBWriter) upsertModels(stores []store.Store) []mongo.WriteModel {
	now := w.now().UTC()
	models := make([]mongo.WriteModel, 0, len(stores))
	for _, s := range stores {
		doc := mongoDocument{Store: s, Spider: w.spider, Key: s.Key(), UpdatedAt: now}
		filter := bson.D{{Key: "spider", Value: w.spider}, {Key: "key", Value: doc.Key}}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(filter).
			SetReplacement(doc).
			SetUpsert(true))
	}
	return models
}

// Write upserts stores in unordered bulk batches.
func (w *MongoDBWriter) Write(stores []store.Store) error {
	if w.client == nil {
		return fmt.Errorf("mongodb writer is closed")
	}
	for i := 0; i < len(stores); i += w.batch {
		end := i + w.batch
		if end > len(stores) {
			end = len(stores)
		}
		result, err := w.collection.BulkWrite(w.ctx, w.upsertModels(stores[i:end]), options.BulkWrite().SetOrdered(false))
		if err != nil {
			return fmt.Errorf("failed to upsert stores %d-%d: %w", i, end-1, err)
		}
		w.totalUpserted += result.UpsertedCount
		w.totalModified += result.ModifiedCount
	}
	return nil
}

// Close disconnects from MongoDB
func (w *MongoDBWriter) Close() error {
	if w.client == nil {
		return nil
	}
	err := w.client.Disconnect(w.ctx)
	w.client = nil
	w.logger.Infof("closed MongoDB connection: %d inserted, %d updated", w.totalUpserted, w.totalModified)
	return err
}
