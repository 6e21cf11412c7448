package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/expense-tracker/internal/domain"
	"github.com/dvloznov/expense-tracker/internal/store"
)

// fakeStore is an in-memory TransactionStore keyed on transaction_id.
type fakeStore struct {
	docs    map[string]*domain.Transaction
	failOn  string // transaction_id that triggers an upsert error
	upserts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[string]*domain.Transaction)}
}

func (f *fakeStore) Upsert(_ context.Context, txn *domain.Transaction) (store.UpsertResult, error) {
	if f.failOn != "" && txn.TransactionID == f.failOn {
		return store.UpsertResult{}, errors.New("store unavailable")
	}
	f.upserts++
	_, existed := f.docs[txn.TransactionID]
	copied := *txn
	f.docs[txn.TransactionID] = &copied
	return store.UpsertResult{Inserted: !existed, Modified: existed}, nil
}

func (f *fakeStore) UpdateFields(_ context.Context, transactionID string, fields map[string]any) (bool, error) {
	txn, ok := f.docs[transactionID]
	if !ok {
		return false, nil
	}
	if v, ok := fields["name"]; ok {
		txn.Name = v.(string)
	}
	if v, ok := fields["amount"]; ok {
		txn.Amount = v.(float64)
	}
	if v, ok := fields["date"]; ok {
		txn.Date = v.(string)
	}
	if v, ok := fields["category"]; ok {
		s := v.(string)
		txn.Category = &s
	}
	return true, nil
}

func (f *fakeStore) FindByDateRange(context.Context, string, string, int64) ([]domain.Transaction, int64, error) {
	return nil, 0, nil
}

func providerRecord(id string, amount float64, pending bool) domain.Record {
	return domain.Record{
		Origin: domain.OriginProvider,
		Fields: map[string]any{
			"transaction_id":  id,
			"account_id":      "acct-1",
			"name":            "Merchant " + id,
			"amount":          amount,
			"authorized_date": "2025-03-10",
			"pending":         pending,
		},
	}
}

func TestSaveBatch_IdempotentUpsert(t *testing.T) {
	fs := newFakeStore()
	engine := New(fs, zerolog.Nop())

	first, err := engine.SaveBatch(context.Background(), []domain.Record{providerRecord("t1", 10.0, false)})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Inserted)
	assert.Equal(t, 0, first.Updated)

	second, err := engine.SaveBatch(context.Background(), []domain.Record{providerRecord("t1", 10.0, false)})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 1, second.Updated)

	require.Len(t, fs.docs, 1)
	assert.Equal(t, 10.0, fs.docs["t1"].Amount)
}

func TestSaveBatch_PendingExcluded(t *testing.T) {
	fs := newFakeStore()
	engine := New(fs, zerolog.Nop())

	records := []domain.Record{
		providerRecord("t1", 5.0, false),
		providerRecord("t2", 6.0, true),
		providerRecord("t3", 7.0, true),
		providerRecord("t4", 8.0, false),
		providerRecord("t5", 9.0, false),
	}

	summary, err := engine.SaveBatch(context.Background(), records)
	require.NoError(t, err)

	assert.True(t, summary.Success)
	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 2, summary.Pending)
	assert.Equal(t, 3, summary.Processed)
	assert.Len(t, fs.docs, 3)
	// pending records are not stored in any form
	assert.NotContains(t, fs.docs, "t2")
	assert.NotContains(t, fs.docs, "t3")
}

func TestSaveBatch_AllPending(t *testing.T) {
	fs := newFakeStore()
	engine := New(fs, zerolog.Nop())

	summary, err := engine.SaveBatch(context.Background(), []domain.Record{
		providerRecord("t1", 5.0, true),
	})
	require.NoError(t, err)

	assert.True(t, summary.Success)
	assert.Equal(t, 1, summary.Pending)
	assert.Equal(t, 0, summary.Processed)
	assert.Empty(t, fs.docs)
}

func TestSaveBatch_EmptyBatch(t *testing.T) {
	engine := New(newFakeStore(), zerolog.Nop())

	summary, err := engine.SaveBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, summary.Success)
	assert.Equal(t, 0, summary.Total)
}

func TestSaveBatch_PartialFailureKeepsEarlierWrites(t *testing.T) {
	fs := newFakeStore()
	fs.failOn = "t3"
	engine := New(fs, zerolog.Nop())

	records := []domain.Record{
		providerRecord("t1", 1.0, false),
		providerRecord("t2", 2.0, false),
		providerRecord("t3", 3.0, false),
		providerRecord("t4", 4.0, false),
	}

	summary, err := engine.SaveBatch(context.Background(), records)
	require.Error(t, err)

	// earlier records stay committed, later ones were never attempted
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 2, summary.Inserted)
	assert.Contains(t, fs.docs, "t1")
	assert.Contains(t, fs.docs, "t2")
	assert.NotContains(t, fs.docs, "t4")
	assert.False(t, summary.Success)
}

func TestSaveBatch_PreviewCapped(t *testing.T) {
	fs := newFakeStore()
	engine := New(fs, zerolog.Nop())

	var records []domain.Record
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		records = append(records, providerRecord(id, 1.0, false))
	}

	summary, err := engine.SaveBatch(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, 7, summary.Processed)
	assert.Len(t, summary.Preview, previewSize)
}

func TestUpdate(t *testing.T) {
	fs := newFakeStore()
	engine := New(fs, zerolog.Nop())

	_, err := engine.SaveBatch(context.Background(), []domain.Record{providerRecord("t1", 10.0, false)})
	require.NoError(t, err)

	name := "Renamed"
	amount := -12.5
	category := "Groceries"
	err = engine.Update(context.Background(), "t1", Update{
		Name:     &name,
		Amount:   &amount,
		Category: &category,
	})
	require.NoError(t, err)

	txn := fs.docs["t1"]
	assert.Equal(t, "Renamed", txn.Name)
	// amounts stay non-negative magnitudes even through manual edits
	assert.Equal(t, 12.5, txn.Amount)
	require.NotNil(t, txn.Category)
	assert.Equal(t, "Groceries", *txn.Category)
}

func TestUpdate_NotFound(t *testing.T) {
	engine := New(newFakeStore(), zerolog.Nop())

	name := "x"
	err := engine.Update(context.Background(), "missing", Update{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_NoFields(t *testing.T) {
	engine := New(newFakeStore(), zerolog.Nop())

	err := engine.Update(context.Background(), "t1", Update{})
	assert.ErrorIs(t, err, ErrNoFields)
}

func TestIsPending(t *testing.T) {
	assert.True(t, isPending(true))
	assert.True(t, isPending("true"))
	assert.True(t, isPending(" TRUE "))
	assert.False(t, isPending(false))
	assert.False(t, isPending(nil))
	assert.False(t, isPending("no"))
	assert.False(t, isPending(1))
}
