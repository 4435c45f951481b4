package tilekernel

import (
	"log"
	"strconv"
	"strings"
	"sync"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
)

// config.go wraps tiledb.Config (the same NewConfig/LoadConfig pair
// json.go already uses) with the engine's own sm.*/vfs.* key parsing: the
// handful of keys the partitioner, tile store, and subarray actually read,
// layered over whatever the caller's tiledb.Config provides for VFS/
// storage-backend options this package doesn't interpret itself.

const (
	ConfigMemoryBudget    = "sm.memory_budget"
	ConfigMemoryBudgetVar = "sm.memory_budget_var"
	ConfigTileCacheSize   = "sm.tile_cache_size"
	ConfigReadRangeOOB    = "sm.read_range_oob" // "error" | "warn"
	ConfigOffsetsBitsize  = "sm.var_offsets.bitsize"
	ConfigOffsetsMode     = "sm.var_offsets.mode" // "bytes" | "elements"
	ConfigOffsetsExtra    = "sm.var_offsets.extra_element"
)

var knownConfigKeys = map[string]bool{
	ConfigMemoryBudget:    true,
	ConfigMemoryBudgetVar: true,
	ConfigTileCacheSize:   true,
	ConfigReadRangeOOB:    true,
	ConfigOffsetsBitsize:  true,
	ConfigOffsetsMode:     true,
	ConfigOffsetsExtra:    true,
}

// Config layers the engine's sm.*-key overrides on top of a tiledb.Config,
// which continues to own every vfs.*/storage-backend key verbatim (those
// stay the out-of-scope collaborator's concern).
type Config struct {
	tdb      *tiledb.Config
	overrides map[string]string

	warnOnce sync.Once
}

func NewConfig() (*Config, error) {
	tdb, err := tiledb.NewConfig()
	if err != nil {
		return nil, Fail(KindInternal, "creating tiledb config", err)
	}
	return &Config{tdb: tdb, overrides: map[string]string{}}, nil
}

func LoadConfig(path string) (*Config, error) {
	tdb, err := tiledb.LoadConfig(path)
	if err != nil {
		return nil, Fail(KindIO, "loading config from "+path, err)
	}
	return &Config{tdb: tdb, overrides: map[string]string{}}, nil
}

// Set stores key/value. Unknown sm.* keys are logged once per Config
// instance and otherwise ignored, rather than failing the call outright:
// a caller upgrading from a newer schema revision with additional tuning
// keys should still be able to open older arrays.
func (c *Config) Set(key, value string) error {
	if !knownConfigKeys[key] {
		if strings.HasPrefix(key, "sm.") {
			c.warnOnce.Do(func() {
				log.Printf("tilekernel: unrecognised config key %q ignored", key)
			})
			return nil
		}
		if err := c.tdb.Set(key, value); err != nil {
			c.warnOnce.Do(func() {
				log.Printf("tilekernel: unrecognised config key %q ignored", key)
			})
		}
		return nil
	}
	c.overrides[key] = value
	return nil
}

func (c *Config) Get(key string) (string, bool) {
	v, ok := c.overrides[key]
	return v, ok
}

func (c *Config) MemoryBudget(defaultVal uint64) uint64 {
	v, ok := c.overrides[ConfigMemoryBudget]
	if !ok {
		return defaultVal
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return n
}

// MemoryBudgetVar is the separate budget the partitioner weighs var-length
// attribute buffers against, falling back to defaultVal when unset or
// unparsable (it does not inherit sm.memory_budget).
func (c *Config) MemoryBudgetVar(defaultVal uint64) uint64 {
	v, ok := c.overrides[ConfigMemoryBudgetVar]
	if !ok {
		return defaultVal
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return n
}

// ReadRangeOOB reports the sm.read_range_oob policy: "error" (the default)
// fails AddRange outright on an out-of-domain range, "warn" clips it to the
// domain and logs once instead.
func (c *Config) ReadRangeOOB() string {
	v, ok := c.overrides[ConfigReadRangeOOB]
	if !ok || (v != "error" && v != "warn") {
		return "error"
	}
	return v
}

func (c *Config) TileCacheSize(defaultVal int) int {
	v, ok := c.overrides[ConfigTileCacheSize]
	if !ok {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func (c *Config) OffsetsBitsize(defaultVal uint8) uint8 {
	v, ok := c.overrides[ConfigOffsetsBitsize]
	if !ok {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil || (n != 32 && n != 64) {
		return defaultVal
	}
	return uint8(n)
}

func (c *Config) OffsetsElements() bool {
	v, ok := c.overrides[ConfigOffsetsMode]
	return ok && v == "elements"
}

func (c *Config) OffsetsExtraElement(defaultVal bool) bool {
	v, ok := c.overrides[ConfigOffsetsExtra]
	if !ok {
		return defaultVal
	}
	return v == "true"
}

// Underlying returns the wrapped tiledb.Config, for callers (e.g. VFS/
// Context construction) that need the collaborator type directly.
func (c *Config) Underlying() *tiledb.Config { return c.tdb }

func (c *Config) Free() { c.tdb.Free() }
