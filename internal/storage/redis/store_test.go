package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/intellivest/internal/common"
	tcommon "github.com/bobmcallan/intellivest/tests/common"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	rc := tcommon.StartRedis(t)
	prefix := fmt.Sprintf("t%d", time.Now().UnixNano())
	s, err := NewStore(context.Background(), common.NewSilentLogger(), common.RedisConfig{
		Addr:   rc.Addr(),
		Prefix: prefix,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_ReadWriteDelete(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	_, found, err := s.Read(ctx, "portfolio")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Write(ctx, "portfolio", json.RawMessage(`{"data":[1]}`)))
	v, found, err := s.Read(ctx, "portfolio")
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"data":[1]}`, string(v))

	require.NoError(t, s.Delete(ctx, "portfolio"))
	require.NoError(t, s.Delete(ctx, "portfolio"))
	_, found, err = s.Read(ctx, "portfolio")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_CrossProcessNotification(t *testing.T) {
	ctx := context.Background()
	reader := testStore(t)

	// A second client on the same prefix stands in for another process.
	writer := NewStoreWithClient(goredis.NewClient(&goredis.Options{Addr: reader.client.Options().Addr}), reader.prefix, common.NewSilentLogger())
	defer writer.Close()

	got := make(chan json.RawMessage, 2)
	unsub := reader.Subscribe("past_records", func(_ string, v json.RawMessage) {
		got <- v
	})
	defer unsub()

	require.NoError(t, writer.Write(ctx, "past_records", json.RawMessage(`[{"id":"r1"}]`)))
	select {
	case v := <-got:
		assert.JSONEq(t, `[{"id":"r1"}]`, string(v))
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification received")
	}

	require.NoError(t, writer.Delete(ctx, "past_records"))
	select {
	case v := <-got:
		assert.Nil(t, v)
	case <-time.After(5 * time.Second):
		t.Fatal("no delete notification received")
	}
}

func TestStore_KeyFromChannel(t *testing.T) {
	s := NewStoreWithClient(goredis.NewClient(&goredis.Options{Addr: "localhost:0"}), "app", common.NewSilentLogger())
	defer s.Close()

	key, ok := s.keyFromChannel("app:doc:stock_prices")
	assert.True(t, ok)
	assert.Equal(t, "stock_prices", key)

	_, ok = s.keyFromChannel("other:doc:x")
	assert.False(t, ok)
	assert.Equal(t, "app:doc:portfolio", s.docKey("portfolio"))
}
