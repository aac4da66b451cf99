// Package storage wraps the document store holding discovered servers and
// the persisted blocklist. The core only builds filters and partial-update
// documents; connection management and wire syntax stay behind this package.
package storage

import (
	"context"
	"net/netip"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	apperrors "github.com/Puyodead1/matscan/internal/errors"
	"github.com/Puyodead1/matscan/internal/logging"
	"github.com/Puyodead1/matscan/internal/scanning"
)

// Config holds document store connection settings.
type Config struct {
	URI               string
	Database          string
	ServersCollection string
	BadIPsCollection  string
	ConnectTimeout    time.Duration
}

// DefaultConfig returns a local development configuration.
func DefaultConfig() Config {
	return Config{
		URI:               "mongodb://localhost:27017",
		Database:          "matscan",
		ServersCollection: "servers",
		BadIPsCollection:  "badips",
		ConnectTimeout:    10 * time.Second,
	}
}

// BulkUpdate is one batched write request: match filter, update document,
// and the upsert flag. Updates are always partial merges, never full
// replacements.
type BulkUpdate struct {
	Filter bson.M
	Update bson.M
	Upsert bool
}

// Store is a handle to the server and blocklist collections.
type Store struct {
	client  *mongo.Client
	servers *mongo.Collection
	badips  *mongo.Collection
	logger  *logging.Logger
}

// Connect establishes the store connection and verifies it with a ping.
func Connect(ctx context.Context, cfg Config, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.Default()
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, apperrors.ErrStoreConnection(err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, apperrors.ErrStoreConnection(err)
	}

	db := client.Database(cfg.Database)
	return &Store{
		client:  client,
		servers: db.Collection(cfg.ServersCollection),
		badips:  db.Collection(cfg.BadIPsCollection),
		logger:  logger.WithComponent("store"),
	}, nil
}

// Close disconnects from the store.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Servers exposes the server collection for the selection queries.
func (s *Store) Servers() *mongo.Collection {
	return s.servers
}

// BulkUpsert applies a batch of partial updates in one unordered bulk write.
func (s *Store) BulkUpsert(ctx context.Context, updates []BulkUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(updates))
	for _, u := range updates {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(u.Filter).
			SetUpdate(u.Update).
			SetUpsert(u.Upsert))
	}

	if _, err := s.servers.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return apperrors.ErrStoreWrite("bulk_upsert", err)
	}
	return nil
}

// AddBadAddress persists a blocklisted address. Re-adding an existing
// address is a no-op.
func (s *Store) AddBadAddress(ctx context.Context, addr netip.Addr) error {
	_, err := s.badips.UpdateOne(ctx,
		bson.M{"ip": addr.String()},
		bson.M{"$setOnInsert": bson.M{"ip": addr.String(), "addedAt": time.Now()}},
		options.Update().SetUpsert(true))
	if err != nil {
		return apperrors.ErrStoreWrite("add_bad_address", err)
	}
	return nil
}

// LoadBadAddresses reads the persisted blocklist, skipping malformed
// entries with a diagnostic.
func (s *Store) LoadBadAddresses(ctx context.Context) ([]netip.Addr, error) {
	cursor, err := s.badips.Find(ctx, bson.M{})
	if err != nil {
		return nil, apperrors.ErrStoreQuery("load_bad_addresses", err)
	}
	defer cursor.Close(ctx)

	var addrs []netip.Addr
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			s.logger.Warn("undecodable blocklist entry", "error", err)
			continue
		}
		ip, _ := doc["ip"].(string)
		addr, err := netip.ParseAddr(ip)
		if err != nil {
			s.logger.Warn("malformed blocklist address", "ip", ip)
			continue
		}
		addrs = append(addrs, addr)
	}
	if err := cursor.Err(); err != nil {
		return addrs, apperrors.ErrStoreQuery("load_bad_addresses", err)
	}
	return addrs, nil
}

// DeleteNonDefaultPorts removes every stored record for addr except the one
// on the protocol's default port. Used when an address is blocklisted:
// records on other ports are fabricated responses.
func (s *Store) DeleteNonDefaultPorts(ctx context.Context, addr netip.Addr) (int64, error) {
	res, err := s.servers.DeleteMany(ctx, bson.M{
		"ip":   addr.String(),
		"port": bson.M{"$ne": int32(scanning.DefaultPort)},
	})
	if err != nil {
		return 0, apperrors.ErrStoreWrite("delete_non_default_ports", err)
	}
	return res.DeletedCount, nil
}
