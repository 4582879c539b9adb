package server

import (
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"civicaid/config"
)

// CryptoService interface defines cryptographic operations needed by the server
type CryptoService interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// ReadyState tracks initialization state for health checks
type ReadyState struct {
	db            *pgxpool.Pool
	crypto        CryptoService
	config        *config.Config
	rdb           *redis.Client
	reviewerReady atomic.Bool
	stationsReady atomic.Bool
	redisReady    atomic.Bool
}

// NewReadyState creates a new ReadyState instance
func NewReadyState(db *pgxpool.Pool, crypto CryptoService, cfg *config.Config, rdb *redis.Client) *ReadyState {
	return &ReadyState{
		db:     db,
		crypto: crypto,
		config: cfg,
		rdb:    rdb,
	}
}

// MarkReviewerReady marks the reviewer account bootstrap as complete
func (r *ReadyState) MarkReviewerReady() {
	r.reviewerReady.Store(true)
}

// MarkStationsReady marks the police station seed as complete
func (r *ReadyState) MarkStationsReady() {
	r.stationsReady.Store(true)
}

// MarkRedisReady marks the Redis initialization as complete
func (r *ReadyState) MarkRedisReady() {
	r.redisReady.Store(true)
}

// IsFullyReady returns true if all initialization steps are complete
func (r *ReadyState) IsFullyReady() bool {
	return r.reviewerReady.Load() &&
		r.stationsReady.Load() &&
		r.redisReady.Load()
}

// GetDB returns the database connection pool
func (r *ReadyState) GetDB() *pgxpool.Pool {
	return r.db
}

// GetRedis returns the Redis client
func (r *ReadyState) GetRedis() *redis.Client {
	return r.rdb
}

// GetConfig returns the application configuration
func (r *ReadyState) GetConfig() *config.Config {
	return r.config
}

// GetCrypto returns the crypto service
func (r *ReadyState) GetCrypto() CryptoService {
	return r.crypto
}

// IsReviewerReady returns true if the reviewer bootstrap is complete
func (r *ReadyState) IsReviewerReady() bool {
	return r.reviewerReady.Load()
}

// IsStationsReady returns true if the station seed is complete
func (r *ReadyState) IsStationsReady() bool {
	return r.stationsReady.Load()
}

// IsRedisReady returns true if Redis initialization is complete
func (r *ReadyState) IsRedisReady() bool {
	return r.redisReady.Load()
}
