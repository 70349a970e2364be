package mongodb

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"tradeledger/internal/ports"
)

// namespaceNotFound is the server error code for a missing collection.
const namespaceNotFound = 26

// Config holds the MongoDB connection settings.
type Config struct {
	URI    string
	TLS    bool
	Logger ports.Logger
}

// Connector dials MongoDB deployments.
type Connector struct {
	cfg Config
}

// NewConnector validates cfg and returns a connector for it.
func NewConnector(cfg Config) (*Connector, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for MongoDB store: %w", ports.ErrConfiguration)
	}
	if cfg.URI == "" {
		return nil, fmt.Errorf("connection URI is required for MongoDB store: %w", ports.ErrConfiguration)
	}
	return &Connector{cfg: cfg}, nil
}

func (c *Connector) clientOptions() *options.ClientOptions {
	opts := options.Client().ApplyURI(c.cfg.URI)
	if c.cfg.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	return opts
}

// Connect dials the deployment and pings the primary.
func (c *Connector) Connect(ctx context.Context) (ports.Client, error) {
	opts := c.clientOptions()
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid MongoDB options: %v: %w", err, ports.ErrConfiguration)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v: %w", err, ports.ErrConnection)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %v: %w", err, ports.ErrConnection)
	}
	c.cfg.Logger.Info(ctx, "Connected to MongoDB", map[string]interface{}{"tls": c.cfg.TLS})
	return &Client{client: client, logger: c.cfg.Logger}, nil
}

// Client wraps a connected mongo.Client.
type Client struct {
	client *mongo.Client
	logger ports.Logger
}

// Database returns a handle on the named database.
func (c *Client) Database(name string) ports.Database {
	return &Database{db: c.client.Database(name), logger: c.logger}
}

// Ping checks the primary is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongodb ping failed: %v: %w", err, ports.ErrConnection)
	}
	return nil
}

// Close disconnects from the deployment.
func (c *Client) Close(ctx context.Context) error {
	c.logger.Info(ctx, "Disconnecting from MongoDB")
	return c.client.Disconnect(ctx)
}

// Database wraps a mongo.Database.
type Database struct {
	db     *mongo.Database
	logger ports.Logger
}

// Name returns the database name.
func (d *Database) Name() string { return d.db.Name() }

// Collection returns the named collection.
func (d *Database) Collection(name string) ports.Collection {
	return &Collection{coll: d.db.Collection(name), logger: d.logger}
}

// Collection adapts a mongo.Collection to JSON documents.
type Collection struct {
	coll   *mongo.Collection
	logger ports.Logger
}

var _ ports.Collection = (*Collection)(nil)

// Name returns the collection name.
func (c *Collection) Name() string { return c.coll.Name() }

// InsertOne writes a new document.
func (c *Collection) InsertOne(ctx context.Context, doc ports.Document) error {
	d, err := fromJSON(doc)
	if err != nil {
		return err
	}
	if _, err := c.coll.InsertOne(ctx, d); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", c.Name(), translate(err))
	}
	return nil
}

// Find returns the documents matching filter.
func (c *Collection) Find(ctx context.Context, filter ports.Filter, opts ports.FindOptions) ([]ports.Document, error) {
	cursor, err := c.coll.Find(ctx, toFilter(filter), findOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", c.Name(), translate(err))
	}
	var raw []bson.D
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("failed to read documents of %s: %w", c.Name(), translate(err))
	}

	docs := make([]ports.Document, 0, len(raw))
	for _, d := range raw {
		out, err := toJSON(d)
		if err != nil {
			return nil, err
		}
		docs = append(docs, out)
	}
	return docs, nil
}

// FindOne returns the first matching document or ports.ErrNotFound.
func (c *Collection) FindOne(ctx context.Context, filter ports.Filter) (ports.Document, error) {
	var d bson.D
	if err := c.coll.FindOne(ctx, toFilter(filter)).Decode(&d); err != nil {
		return nil, fmt.Errorf("failed to find in %s: %w", c.Name(), translate(err))
	}
	return toJSON(d)
}

// FindOneAndUpsert applies doc as a $set on the matching document, inserting
// when absent, and returns the document after the update.
func (c *Collection) FindOneAndUpsert(ctx context.Context, filter ports.Filter, doc ports.Document) (ports.Document, error) {
	d, err := fromJSON(doc)
	if err != nil {
		return nil, err
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var out bson.D
	err = c.coll.FindOneAndUpdate(ctx, toFilter(filter), bson.D{{Key: "$set", Value: d}}, opts).Decode(&out)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert into %s: %w", c.Name(), translate(err))
	}
	return toJSON(out)
}

// DeleteOne removes at most one matching document.
func (c *Collection) DeleteOne(ctx context.Context, filter ports.Filter) (int64, error) {
	res, err := c.coll.DeleteOne(ctx, toFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", c.Name(), translate(err))
	}
	return res.DeletedCount, nil
}

// Drop removes the collection and its indexes.
func (c *Collection) Drop(ctx context.Context) error {
	if err := c.coll.Drop(ctx); err != nil {
		return fmt.Errorf("failed to drop %s: %w", c.Name(), translate(err))
	}
	c.logger.Info(ctx, "Collection dropped", map[string]interface{}{"collection": c.Name()})
	return nil
}

// IndexNames lists the indexes defined on the collection. The implicit _id
// index is included as reported by the server.
func (c *Collection) IndexNames(ctx context.Context) ([]string, error) {
	specs, err := c.coll.Indexes().ListSpecifications(ctx)
	if err != nil {
		var ce mongo.CommandError
		if errors.As(err, &ce) && ce.Code == namespaceNotFound {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list indexes of %s: %w", c.Name(), translate(err))
	}
	names := make([]string, 0, len(specs))
	for _, s := range specs {
		names = append(names, s.Name)
	}
	return names, nil
}

// CreateIndex creates a single-field index.
func (c *Collection) CreateIndex(ctx context.Context, model ports.IndexModel) error {
	if _, err := c.coll.Indexes().CreateOne(ctx, indexModel(model)); err != nil {
		return fmt.Errorf("failed to create index %s on %s: %w", model.Name, c.Name(), translate(err))
	}
	c.logger.Debug(ctx, "Index created", map[string]interface{}{"collection": c.Name(), "index": model.Name})
	return nil
}
