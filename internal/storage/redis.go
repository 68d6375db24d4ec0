package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jobharvest/harvester/internal/domain"
)

const (
	embeddingPrefix = "harvester:embedding:"
	runPrefix       = "harvester:run:"
	latestRunKey    = "harvester:run:latest"
	runReportTTL    = 30 * 24 * time.Hour
)

// ErrNotFound is returned when a requested key does not exist.
var ErrNotFound = errors.New("not found")

// RedisStore handles interactions with Redis for the embedding cache and
// run reports.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr, password string, db int) *RedisStore {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	return &RedisStore{client: rdb}
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// GetEmbedding returns the cached vector for key, if any.
func (s *RedisStore) GetEmbedding(ctx context.Context, key string) ([]float32, bool, error) {
	raw, err := s.client.Get(ctx, embeddingPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	vec, err := decodeVector(raw)
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

// SetEmbedding stores vec under key with a TTL.
func (s *RedisStore) SetEmbedding(ctx context.Context, key string, vec []float32, ttl time.Duration) error {
	return s.client.Set(ctx, embeddingPrefix+key, encodeVector(vec), ttl).Err()
}

// SaveRunReport stores the report under its id and as the latest run.
func (s *RedisStore) SaveRunReport(ctx context.Context, r *domain.RunReport) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal run report: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, runPrefix+r.ID, data, runReportTTL)
		pipe.Set(ctx, latestRunKey, data, 0)
		return nil
	})
	return err
}

// LatestRunReport returns the most recently saved report or ErrNotFound.
func (s *RedisStore) LatestRunReport(ctx context.Context) (*domain.RunReport, error) {
	return s.loadReport(ctx, latestRunKey)
}

// RunReport returns the report for id or ErrNotFound.
func (s *RedisStore) RunReport(ctx context.Context, id string) (*domain.RunReport, error) {
	return s.loadReport(ctx, runPrefix+id)
}

func (s *RedisStore) loadReport(ctx context.Context, key string) (*domain.RunReport, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var r domain.RunReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal run report: %w", err)
	}
	return &r, nil
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("corrupt embedding: %d bytes", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, nil
}
