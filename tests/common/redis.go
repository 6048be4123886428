package common

import "testing"

var redis = &sharedContainer{spec: containerSpec{
	name:     "Redis",
	image:    "redis:7-alpine",
	port:     "6379/tcp",
	readyLog: "Ready to accept connections",
}}

// RedisContainer is a running Redis shared by the test binary.
type RedisContainer struct {
	endpoint string
}

// StartRedis returns the shared Redis container, starting it on first use.
func StartRedis(t *testing.T) *RedisContainer {
	t.Helper()
	return &RedisContainer{endpoint: redis.start(t)}
}

// Addr returns the host:port address for go-redis.
func (c *RedisContainer) Addr() string {
	return c.endpoint
}

// Cleanup terminates the shared container.
func (c *RedisContainer) Cleanup() {
	redis.cleanup()
}
