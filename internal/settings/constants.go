package settings

// DB config keys and defaults for runtime-tunable admission settings.
const (
	// RateLimitRedisEnabledKey toggles Redis-backed rate limiting.
	RateLimitRedisEnabledKey = "RATE_LIMIT_REDIS_ENABLED"
	// RateLimitRedisAddrKey defines the Redis address for rate limiting.
	RateLimitRedisAddrKey = "RATE_LIMIT_REDIS_ADDR"
	// RateLimitRedisPasswordKey defines the Redis password for rate limiting.
	RateLimitRedisPasswordKey = "RATE_LIMIT_REDIS_PASSWORD"
	// RateLimitRedisDBKey defines the Redis DB index for rate limiting.
	RateLimitRedisDBKey = "RATE_LIMIT_REDIS_DB"
	// RateLimitRedisPrefixKey defines the Redis key prefix for rate limiting.
	RateLimitRedisPrefixKey = "RATE_LIMIT_REDIS_PREFIX"
	// DDoSBurstLimitKey sets the per-identity burst request count that trips the detector.
	DDoSBurstLimitKey = "DDOS_BURST_LIMIT"
	// DDoSBurstWindowSecondsKey sets the burst observation window in seconds.
	DDoSBurstWindowSecondsKey = "DDOS_BURST_WINDOW_SECONDS"
	// BlockDurationSecondsKey sets how long detector-inserted blocks last.
	BlockDurationSecondsKey = "BLOCK_DURATION_SECONDS"

	// DefaultRateLimitRedisPrefix is the fallback Redis key prefix.
	DefaultRateLimitRedisPrefix = "eg:rl"
	// DefaultDDoSBurstLimit is the fallback burst trip count.
	DefaultDDoSBurstLimit = 100
	// DefaultDDoSBurstWindowSeconds is the fallback burst window.
	DefaultDDoSBurstWindowSeconds = 10
	// DefaultBlockDurationSeconds is the fallback detector block duration.
	DefaultBlockDurationSeconds = 900
)
