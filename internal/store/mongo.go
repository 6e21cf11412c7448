package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/dvloznov/expense-tracker/internal/domain"
)

const (
	transactionsCollection = "transactions"
	accountsCollection     = "accounts"
)

// Mongo is the MongoDB-backed implementation of TransactionStore and
// AnalyticsReader. It holds a shared client to avoid creating a new
// connection for each operation; the credential repository hangs off it.
type Mongo struct {
	client       *mongo.Client
	transactions *mongo.Collection
	creds        *CredentialRepo
	log          zerolog.Logger
}

// NewMongo connects to MongoDB, verifies the connection with a ping and
// returns a store bound to the given database.
func NewMongo(ctx context.Context, uri, dbName string, log zerolog.Logger) (*Mongo, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(5 * time.Second).
		SetSocketTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("NewMongo: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("NewMongo: ping: %w", err)
	}

	db := client.Database(dbName)
	return &Mongo{
		client:       client,
		transactions: db.Collection(transactionsCollection),
		creds:        &CredentialRepo{coll: db.Collection(accountsCollection)},
		log:          log,
	}, nil
}

// Credentials returns the credential repository backed by the same client.
func (m *Mongo) Credentials() *CredentialRepo {
	return m.creds
}

// Ping verifies the database connection is still alive.
func (m *Mongo) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return m.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the underlying client.
func (m *Mongo) Close(ctx context.Context) error {
	if m.client != nil {
		return m.client.Disconnect(ctx)
	}
	return nil
}

// EnsureIndexes creates the unique index on transaction_id. Safe to call on
// every startup; Mongo treats an existing identical index as a no-op.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := m.transactions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "transaction_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("EnsureIndexes: transaction_id: %w", err)
	}
	return nil
}

// CredentialRepo implements CredentialStore on the accounts collection.
type CredentialRepo struct {
	coll *mongo.Collection
}

// Find implements CredentialStore. A missing credential is not an error.
func (r *CredentialRepo) Find(ctx context.Context, id string) (*domain.Credential, error) {
	var cred domain.Credential
	err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&cred)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Find credential %q: %w", id, err)
	}
	return &cred, nil
}

// Upsert implements CredentialStore, last-write-wins.
func (r *CredentialRepo) Upsert(ctx context.Context, cred *domain.Credential) error {
	cred.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"id": cred.ID},
		bson.M{"$set": cred},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("Upsert credential %q: %w", cred.ID, err)
	}
	return nil
}

// dateRangeFilter builds the {"date": {"$gte": .., "$lte": ..}} filter.
// Stored dates are ISO strings, so lexicographic comparison is date order.
func dateRangeFilter(startDate, endDate string) bson.M {
	filter := bson.M{}
	if startDate == "" && endDate == "" {
		return filter
	}
	dateFilter := bson.M{}
	if startDate != "" {
		dateFilter["$gte"] = startDate
	}
	if endDate != "" {
		dateFilter["$lte"] = endDate
	}
	filter["date"] = dateFilter
	return filter
}
