// Package redis implements the document store on Redis. Writes are published
// on a per-key channel so every process sharing the instance sees changes.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/bobmcallan/intellivest/internal/common"
	"github.com/bobmcallan/intellivest/internal/interfaces"
	"github.com/bobmcallan/intellivest/internal/storage/notify"
)

// deletedPayload is published when a key is removed.
const deletedPayload = ""

// Store implements interfaces.DocumentStore with go-redis.
type Store struct {
	client   *goredis.Client
	prefix   string
	logger   *common.Logger
	notifier *notify.Notifier

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	pubsub *goredis.PubSub
	done   chan struct{}
}

// NewStore connects to Redis and verifies the connection with PING.
func NewStore(ctx context.Context, logger *common.Logger, config common.RedisConfig) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info().Str("addr", config.Addr).Int("db", config.DB).Msg("Redis document store connected")
	return NewStoreWithClient(client, config.Prefix, logger), nil
}

// NewStoreWithClient wraps an existing client. Close closes the client.
func NewStoreWithClient(client *goredis.Client, prefix string, logger *common.Logger) *Store {
	if prefix == "" {
		prefix = "intellivest"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		client:   client,
		prefix:   prefix,
		logger:   logger,
		notifier: notify.New(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// docKey is both the value key and the change channel for a document.
func (s *Store) docKey(key string) string {
	return s.prefix + ":doc:" + key
}

func (s *Store) keyFromChannel(channel string) (string, bool) {
	return strings.CutPrefix(channel, s.prefix+":doc:")
}

func (s *Store) Read(ctx context.Context, key string) (json.RawMessage, bool, error) {
	val, err := s.client.Get(ctx, s.docKey(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return json.RawMessage(val), true, nil
}

func (s *Store) Write(ctx context.Context, key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return errors.New("document value is not valid JSON")
	}
	k := s.docKey(key)
	if err := s.client.Set(ctx, k, []byte(value), 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	if err := s.client.Publish(ctx, k, []byte(value)).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Redis publish failed")
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	k := s.docKey(key)
	n, err := s.client.Del(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	if n > 0 {
		if err := s.client.Publish(ctx, k, deletedPayload).Err(); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("Redis publish failed")
		}
	}
	return nil
}

// Subscribe delivers changes published by any process, including this one.
func (s *Store) Subscribe(key string, fn interfaces.ChangeFunc) func() {
	unsub := s.notifier.Subscribe(key, fn)
	s.ensureListener()
	return unsub
}

// ensureListener starts the pattern subscription on first use.
func (s *Store) ensureListener() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pubsub != nil || s.ctx.Err() != nil {
		return
	}

	s.pubsub = s.client.PSubscribe(s.ctx, s.prefix+":doc:*")
	// Wait for the subscription to be confirmed so a Write right after
	// Subscribe is not missed.
	if _, err := s.pubsub.Receive(s.ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Redis subscribe confirmation failed")
	}
	s.done = make(chan struct{})
	go s.listen(s.pubsub.Channel(), s.done)
}

func (s *Store) listen(ch <-chan *goredis.Message, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			key, ok := s.keyFromChannel(msg.Channel)
			if !ok {
				continue
			}
			if msg.Payload == deletedPayload {
				s.notifier.Notify(key, nil)
				continue
			}
			s.notifier.Notify(key, json.RawMessage(msg.Payload))
		}
	}
}

func (s *Store) Close() error {
	s.cancel()
	s.mu.Lock()
	ps, done := s.pubsub, s.done
	s.mu.Unlock()
	if ps != nil {
		ps.Close()
		<-done
	}
	return s.client.Close()
}

// Ensure Store implements DocumentStore
var _ interfaces.DocumentStore = (*Store)(nil)
