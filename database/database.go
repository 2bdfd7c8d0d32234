// Package database - Handles all interaction with ArangoDB
package database

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/arangodb/go-driver/v2/connection"
	"github.com/cenkalti/backoff"
	"github.com/paycheck/paycheck-backend/internal/config"
	"go.uber.org/zap"
)

// Collection names
const (
	OrgsCollection  = "orgs"
	UsersCollection = "users"
)

// DBConnection is the structure that defined the database engine and collections
type DBConnection struct {
	Collections map[string]arangodb.Collection
	Database    arangodb.Database
}

// Define a struct to hold the index definition
type indexConfig struct {
	Collection string
	IdxName    string
	IdxFields  []string
	Unique     bool
}

var idxList = []indexConfig{
	{Collection: OrgsCollection, IdxName: "orgs_name_key_unique", IdxFields: []string{"name_key"}, Unique: true},
	{Collection: OrgsCollection, IdxName: "orgs_applications_user", IdxFields: []string{"applications[*].user_id"}},
	{Collection: OrgsCollection, IdxName: "orgs_unassigned_user", IdxFields: []string{"unassigned[*].unassigned_id"}},
	{Collection: UsersCollection, IdxName: "users_username_unique", IdxFields: []string{"username"}, Unique: true},
	{Collection: UsersCollection, IdxName: "users_organization", IdxFields: []string{"organization.organization_id"}},
}

func dbConnectionConfig(endpoint connection.Endpoint, dbuser string, dbpass string) connection.HttpConfiguration {
	return connection.HttpConfiguration{
		Authentication: connection.NewBasicAuth(dbuser, dbpass),
		Endpoint:       endpoint,
		ContentType:    connection.ApplicationJSON,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // #nosec G402
			},
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 90 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// Connect opens the database, creating the database, collections and
// indexes that the membership workflow relies on.
func Connect(ctx context.Context, cfg config.ArangoConfig, logger *zap.Logger) (DBConnection, error) {
	const initialInterval = 10 * time.Second
	const maxInterval = 2 * time.Minute

	var client arangodb.Client

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initialInterval
	bo.MaxInterval = maxInterval
	bo.MaxElapsedTime = cfg.MaxConnectWait

	err := backoff.RetryNotify(func() error {
		logger.Info("Attempting to connect to ArangoDB", zap.String("endpoint", cfg.Endpoint()))
		endpoint := connection.NewRoundRobinEndpoints([]string{cfg.Endpoint()})
		conn := connection.NewHttpConnection(dbConnectionConfig(endpoint, cfg.User, cfg.Pass))

		client = arangodb.NewClient(conn)

		versionInfo, err := client.Version(ctx)
		if err != nil {
			return err
		}

		logger.Sugar().Infof("Database has version '%s' and license '%s'", versionInfo.Version, versionInfo.License)
		return nil
	}, backoff.WithContext(bo, ctx), func(err error, wait time.Duration) {
		logger.Warn("Retrying connection to ArangoDB", zap.Error(err), zap.Duration("wait", wait))
	})
	if err != nil {
		return DBConnection{}, fmt.Errorf("connect to arangodb: %w", err)
	}

	db, err := ensureDatabase(ctx, client, cfg.Database)
	if err != nil {
		return DBConnection{}, err
	}

	collections := make(map[string]arangodb.Collection)
	for _, name := range []string{OrgsCollection, UsersCollection} {
		col, err := ensureCollection(ctx, db, name)
		if err != nil {
			return DBConnection{}, err
		}
		collections[name] = col
	}

	for _, idx := range idxList {
		if err := ensureIndex(ctx, collections[idx.Collection], idx, logger); err != nil {
			return DBConnection{}, err
		}
	}

	logger.Info("Database initialization complete", zap.String("database", cfg.Database))

	return DBConnection{
		Database:    db,
		Collections: collections,
	}, nil
}

func ensureDatabase(ctx context.Context, client arangodb.Client, name string) (arangodb.Database, error) {
	dblist, err := client.Databases(ctx)
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}

	exists := false
	for _, dbinfo := range dblist {
		if dbinfo.Name() == name {
			exists = true
			break
		}
	}

	if exists {
		db, err := client.GetDatabase(ctx, name, &arangodb.GetDatabaseOptions{})
		if err != nil {
			return nil, fmt.Errorf("get database %s: %w", name, err)
		}
		return db, nil
	}

	db, err := client.CreateDatabase(ctx, name, nil)
	if err != nil {
		return nil, fmt.Errorf("create database %s: %w", name, err)
	}
	return db, nil
}

func ensureCollection(ctx context.Context, db arangodb.Database, name string) (arangodb.Collection, error) {
	exists, err := db.CollectionExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("check collection %s: %w", name, err)
	}

	if exists {
		col, err := db.GetCollection(ctx, name, &arangodb.GetCollectionOptions{})
		if err != nil {
			return nil, fmt.Errorf("use collection %s: %w", name, err)
		}
		return col, nil
	}

	col, err := db.CreateCollectionV2(ctx, name, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection %s: %w", name, err)
	}
	return col, nil
}

func ensureIndex(ctx context.Context, col arangodb.Collection, idx indexConfig, logger *zap.Logger) error {
	indexes, err := col.Indexes(ctx)
	if err != nil {
		return fmt.Errorf("list indexes on %s: %w", idx.Collection, err)
	}
	for _, index := range indexes {
		if index.Name == idx.IdxName {
			return nil
		}
	}

	unique := idx.Unique
	sparse := false
	indexOptions := arangodb.CreatePersistentIndexOptions{
		Unique: &unique,
		Sparse: &sparse,
		Name:   idx.IdxName,
	}

	if _, _, err := col.EnsurePersistentIndex(ctx, idx.IdxFields, &indexOptions); err != nil {
		return fmt.Errorf("create index %s: %w", idx.IdxName, err)
	}

	logger.Sugar().Infof("Created index: %s on %s.%v", idx.IdxName, idx.Collection, idx.IdxFields)
	return nil
}
