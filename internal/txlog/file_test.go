package txlog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecord(userID string, typ Type, at time.Time) Record {
	return Record{
		UserID:    userID,
		Type:      typ,
		AssetID:   "bitcoin",
		Quantity:  decimal.RequireFromString("0.002"),
		UnitPrice: decimal.NewFromInt(50000),
		USDValue:  decimal.NewFromInt(100),
		Timestamp: at,
	}
}

func TestFileLog_AppendAndListNewestFirst(t *testing.T) {
	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	log := NewFileLog(filepath.Join(t.TempDir(), "transactions.json"), logger)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, log.Append(ctx, newRecord("42", Buy, base)))
	require.NoError(t, log.Append(ctx, newRecord("7", Buy, base.Add(time.Minute))))
	require.NoError(t, log.Append(ctx, newRecord("42", Sell, base.Add(2*time.Minute))))

	records := log.ListFor(ctx, "42")
	require.Len(t, records, 2)
	assert.Equal(t, Sell, records[0].Type)
	assert.Equal(t, Buy, records[1].Type)
	assert.True(t, records[1].Timestamp.Equal(base))
	assert.True(t, records[1].USDValue.Equal(decimal.NewFromInt(100)))
	assert.True(t, records[1].Quantity.Equal(decimal.RequireFromString("0.002")))
}

func TestFileLog_AppendLeavesNoTemporaryFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	logger, _ := test.NewNullLogger()
	log := NewFileLog(filepath.Join(dir, "transactions.json"), logger)

	for i := 0; i < 3; i++ {
		require.NoError(t, log.Append(ctx, newRecord("42", Buy, time.Now())))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Len(t, log.ListFor(ctx, "42"), 3)
}

func TestFileLog_ListForUnknownUser(t *testing.T) {
	logger, _ := test.NewNullLogger()
	log := NewFileLog(filepath.Join(t.TempDir(), "transactions.json"), logger)

	assert.Empty(t, log.ListFor(context.Background(), "nobody"))
}

func TestFileLog_CorruptHistory(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "transactions.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"userId": "42"`), 0o600))
	logger, hook := test.NewNullLogger()
	log := NewFileLog(path, logger)

	assert.Empty(t, log.ListFor(ctx, "42"))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	err := log.Append(ctx, newRecord("42", Buy, time.Now()))
	assert.ErrorIs(t, err, ErrCorruptLog)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `[{"userId": "42"`, string(data), "corrupt history must not be overwritten")
}

func TestFileLog_ReadsLegacyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transactions.json")
	doc := `[{"userId":"42","type":"sell","coin":"solana","amount":1.5,"price":150,"usd":225,"timestamp":1700000000000}]`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	logger, _ := test.NewNullLogger()

	records := NewFileLog(path, logger).ListFor(context.Background(), "42")
	require.Len(t, records, 1)
	assert.Equal(t, "solana", records[0].AssetID)
	assert.True(t, records[0].USDValue.Equal(decimal.NewFromInt(225)))
	assert.Equal(t, int64(1700000000000), records[0].Timestamp.UnixMilli())
}
