package badgerstore

// Default configuration values.
const (
	DefaultStoragePath = "./nodes"
	DefaultCacheSize   = 10_000
	DefaultMaxInFlight = 16
)

// Config configures a Store.
type Config struct {
	StoragePath string
	CacheSize   int
	MaxInFlight int64
	Compress    bool
}

// Option modifies a Config.
type Option func(*Config)

// DefaultConfig is the store's default configuration.
var DefaultConfig = Config{
	StoragePath: DefaultStoragePath,
	CacheSize:   DefaultCacheSize,
	MaxInFlight: DefaultMaxInFlight,
}

// WithStoragePath sets the on-disk directory for the Badger database.
func WithStoragePath(path string) Option {
	return func(c *Config) {
		c.StoragePath = path
	}
}

// WithCacheSize sets the number of nodes kept in the read-through LRU cache.
func WithCacheSize(size int) Option {
	return func(c *Config) {
		c.CacheSize = size
	}
}

// WithMaxInFlight bounds the number of concurrently committing transactions.
func WithMaxInFlight(n int64) Option {
	return func(c *Config) {
		c.MaxInFlight = n
	}
}

// WithCompression enables zstd compression of node payloads.
func WithCompression() Option {
	return func(c *Config) {
		c.Compress = true
	}
}
