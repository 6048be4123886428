package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/intellivest/internal/common"
	"github.com/bobmcallan/intellivest/internal/models"
)

func TestSealOpen_RoundTrip(t *testing.T) {
	at := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)
	positions := []models.Position{{ID: "p1", Symbol: "TCS", Exchange: models.ExchangeNSE, Quantity: 3, Price: 3500}}

	raw, err := Seal("origin-a", 7, at, positions)
	require.NoError(t, err)

	var got []models.Position
	env, err := Open(raw, &got)
	require.NoError(t, err)
	assert.Equal(t, "origin-a", env.Origin)
	assert.Equal(t, int64(7), env.Revision)
	assert.True(t, at.Equal(env.UpdatedAt))
	assert.Equal(t, positions, got)
}

func TestOpen_BareValue(t *testing.T) {
	var got []models.RealizedRecord
	env, err := Open(json.RawMessage(`[{"id":"r1","symbol":"INFY","profit":12.5}]`), &got)
	require.NoError(t, err)
	assert.Empty(t, env.Origin)
	require.Len(t, got, 1)
	assert.Equal(t, 12.5, got[0].Profit)
}

func TestOpen_BareObjectWithoutData(t *testing.T) {
	var got models.StoredPrices
	_, err := Open(json.RawMessage(`{"snapshot":{"prices":{"TCS.NSE":10}},"limit_reached":true}`), &got)
	require.NoError(t, err)
	assert.True(t, got.LimitReached)
	assert.Equal(t, 10.0, got.Snapshot.Prices["TCS.NSE"])
}

func TestOpen_NullData(t *testing.T) {
	got := []models.Position{{ID: "keep"}}
	_, err := Open(json.RawMessage(`{"origin":"x","revision":1,"data":null}`), &got)
	require.NoError(t, err)
	assert.Len(t, got, 1, "null data leaves out untouched")
}

func TestOpen_Malformed(t *testing.T) {
	var got []models.Position
	_, err := Open(json.RawMessage(`{"data":"not-an-array"}`), &got)
	assert.Error(t, err)
}

func TestNewDocumentStore_Memory(t *testing.T) {
	s, err := NewDocumentStore(context.Background(), common.NewSilentLogger(), common.StorageConfig{Backend: common.BackendMemory})
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Write(context.Background(), "k", json.RawMessage(`{}`)))
}

func TestNewDocumentStore_Unknown(t *testing.T) {
	_, err := NewDocumentStore(context.Background(), common.NewSilentLogger(), common.StorageConfig{Backend: "badger"})
	assert.Error(t, err)
}
