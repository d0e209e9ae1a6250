package pebblestore

const (
	// DefaultCacheSize is the size, in bytes, of pebble's block cache.
	DefaultCacheSize = 64 << 20
)

// Config configures a Store.
type Config struct {
	StoragePath string
	CacheSize   int64
	Compress    bool
}

// Option modifies a Config.
type Option func(*Config)

// DefaultConfig is the store's default configuration.
var DefaultConfig = Config{
	StoragePath: "./nodes-pebble",
	CacheSize:   DefaultCacheSize,
}

// WithStoragePath sets the on-disk directory for the Pebble database.
func WithStoragePath(path string) Option {
	return func(c *Config) {
		c.StoragePath = path
	}
}

// WithCacheSize sets the size in bytes of pebble's block cache.
func WithCacheSize(size int64) Option {
	return func(c *Config) {
		c.CacheSize = size
	}
}

// WithCompression enables zstd compression of node payloads.
func WithCompression() Option {
	return func(c *Config) {
		c.Compress = true
	}
}
