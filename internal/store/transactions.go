package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dvloznov/expense-tracker/internal/domain"
)

// Upsert implements TransactionStore.
func (m *Mongo) Upsert(ctx context.Context, txn *domain.Transaction) (UpsertResult, error) {
	res, err := m.transactions.UpdateOne(ctx,
		bson.M{"transaction_id": txn.TransactionID},
		bson.M{"$set": txn},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("Upsert %q: %w", txn.TransactionID, err)
	}
	return UpsertResult{
		Inserted: res.UpsertedCount > 0,
		Modified: res.ModifiedCount > 0,
	}, nil
}

// UpdateFields implements TransactionStore. Only the supplied fields are
// touched; last_updated is refreshed on every write.
func (m *Mongo) UpdateFields(ctx context.Context, transactionID string, fields map[string]any) (bool, error) {
	set := bson.M{"last_updated": time.Now().UTC().Format(time.RFC3339)}
	for k, v := range fields {
		set[k] = v
	}

	res, err := m.transactions.UpdateOne(ctx,
		bson.M{"transaction_id": transactionID},
		bson.M{"$set": set},
	)
	if err != nil {
		return false, fmt.Errorf("UpdateFields %q: %w", transactionID, err)
	}
	return res.MatchedCount > 0, nil
}

// FindByDateRange implements TransactionStore.
func (m *Mongo) FindByDateRange(ctx context.Context, startDate, endDate string, limit int64) ([]domain.Transaction, int64, error) {
	filter := dateRangeFilter(startDate, endDate)

	total, err := m.transactions.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("FindByDateRange: count: %w", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := m.transactions.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("FindByDateRange: find: %w", err)
	}
	defer cursor.Close(ctx)

	var txns []domain.Transaction
	if err := cursor.All(ctx, &txns); err != nil {
		return nil, 0, fmt.Errorf("FindByDateRange: decode: %w", err)
	}
	return txns, total, nil
}

// GroupByCategory implements AnalyticsReader.
func (m *Mongo) GroupByCategory(ctx context.Context, startDate, endDate string) ([]CategoryTotal, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: dateRangeFilter(startDate, endDate)}},
		{{Key: "$group", Value: bson.M{
			"_id":          "$category",
			"total_amount": bson.M{"$sum": "$amount"},
			"count":        bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.M{"total_amount": -1}}},
	}

	var rows []CategoryTotal
	if err := m.aggregate(ctx, pipeline, &rows); err != nil {
		return nil, fmt.Errorf("GroupByCategory: %w", err)
	}
	return rows, nil
}

// GroupByMonth implements AnalyticsReader. Year and month are carved out of
// the ISO date strings, matching how the dates are stored.
func (m *Mongo) GroupByMonth(ctx context.Context, year string) ([]MonthTotal, error) {
	match := bson.M{}
	if year != "" {
		match["date"] = bson.M{"$regex": "^" + year}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$addFields", Value: bson.M{
			"year":  bson.M{"$substr": bson.A{"$date", 0, 4}},
			"month": bson.M{"$substr": bson.A{"$date", 5, 2}},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":               bson.M{"year": "$year", "month": "$month"},
			"total_amount":      bson.M{"$sum": "$amount"},
			"transaction_count": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id.year", Value: 1}, {Key: "_id.month", Value: 1}}}},
	}

	var rows []MonthTotal
	if err := m.aggregate(ctx, pipeline, &rows); err != nil {
		return nil, fmt.Errorf("GroupByMonth: %w", err)
	}
	return rows, nil
}

// GroupByMerchant implements AnalyticsReader.
func (m *Mongo) GroupByMerchant(ctx context.Context, startDate, endDate string, limit int) ([]MerchantTotal, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: dateRangeFilter(startDate, endDate)}},
		{{Key: "$group", Value: bson.M{
			"_id":                 "$name",
			"total_amount":        bson.M{"$sum": "$amount"},
			"transaction_count":   bson.M{"$sum": 1},
			"average_transaction": bson.M{"$avg": "$amount"},
			"first_transaction":   bson.M{"$min": "$date"},
			"last_transaction":    bson.M{"$max": "$date"},
		}}},
		{{Key: "$sort", Value: bson.M{"total_amount": -1}}},
		{{Key: "$limit", Value: limit}},
	}

	var rows []MerchantTotal
	if err := m.aggregate(ctx, pipeline, &rows); err != nil {
		return nil, fmt.Errorf("GroupByMerchant: %w", err)
	}
	return rows, nil
}

// Bounds implements AnalyticsReader. Returns nil when no documents match.
func (m *Mongo) Bounds(ctx context.Context, startDate, endDate string) (*DateBounds, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: dateRangeFilter(startDate, endDate)}},
		{{Key: "$group", Value: bson.M{
			"_id":      nil,
			"min_date": bson.M{"$min": "$date"},
			"max_date": bson.M{"$max": "$date"},
		}}},
	}

	var rows []DateBounds
	if err := m.aggregate(ctx, pipeline, &rows); err != nil {
		return nil, fmt.Errorf("Bounds: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (m *Mongo) aggregate(ctx context.Context, pipeline mongo.Pipeline, out any) error {
	cursor, err := m.transactions.Aggregate(ctx, pipeline)
	if err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}
	defer cursor.Close(ctx)
	if err := cursor.All(ctx, out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
