// Package config loads idcache settings from YAML and builds the backend,
// logger and idcache.Config they describe.
//
//	namespace: app
//	tombstone_ttl: 10s
//	backend:
//	  kind: redis
//	  default_ttl: 1h
//	  redis:
//	    addrs: ["localhost:6379"]
//	breaker:
//	  enabled: true
//	log:
//	  level: info
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/idcache"
	"github.com/unkn0wn-root/idcache/backend"
	bigcachebackend "github.com/unkn0wn-root/idcache/backend/bigcache"
	"github.com/unkn0wn-root/idcache/backend/breaker"
	"github.com/unkn0wn-root/idcache/backend/memory"
	redisbackend "github.com/unkn0wn-root/idcache/backend/redis"
	ristrettobackend "github.com/unkn0wn-root/idcache/backend/ristretto"
	idzap "github.com/unkn0wn-root/idcache/log/zap"
)

// Backend kinds.
const (
	KindMemory    = "memory"
	KindRedis     = "redis"
	KindRistretto = "ristretto"
	KindBigCache  = "bigcache"
)

var ErrInvalid = errors.New("config: invalid")

type File struct {
	Namespace     string        `yaml:"namespace"`
	TombstoneTTL  time.Duration `yaml:"tombstone_ttl" validate:"gte=0"`
	CoalesceLoads bool          `yaml:"coalesce_loads"`
	Disabled      bool          `yaml:"disabled"`
	Backend       Backend       `yaml:"backend"`
	Breaker       Breaker       `yaml:"breaker"`
	Log           Log           `yaml:"log"`
}

type Backend struct {
	Kind       string        `yaml:"kind" validate:"required,oneof=memory redis ristretto bigcache"`
	DefaultTTL time.Duration `yaml:"default_ttl" validate:"gte=0"`
	Redis      *Redis        `yaml:"redis" validate:"required_if=Kind redis"`
	Ristretto  *Ristretto    `yaml:"ristretto"`
	BigCache   *BigCache     `yaml:"bigcache"`
}

type Redis struct {
	Addrs        []string      `yaml:"addrs" validate:"required,min=1,dive,hostname_port"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db" validate:"gte=0"`
	DialTimeout  time.Duration `yaml:"dial_timeout" validate:"gte=0"`
	ReadTimeout  time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gte=0"`
}

type Ristretto struct {
	NumCounters int64 `yaml:"num_counters" validate:"gt=0"`
	MaxCost     int64 `yaml:"max_cost" validate:"gt=0"`
	BufferItems int64 `yaml:"buffer_items" validate:"gt=0"`
	Metrics     bool  `yaml:"metrics"`
}

type BigCache struct {
	LifeWindow         time.Duration `yaml:"life_window" validate:"gte=0"`
	CleanWindow        time.Duration `yaml:"clean_window" validate:"gte=0"`
	MaxEntriesInWindow int           `yaml:"max_entries_in_window" validate:"gte=0"`
	MaxEntrySize       int           `yaml:"max_entry_size" validate:"gte=0"`
	HardMaxCacheSizeMB int           `yaml:"hard_max_cache_size_mb" validate:"gte=0"`
}

type Breaker struct {
	Enabled          bool          `yaml:"enabled"`
	MaxRequests      uint32        `yaml:"max_requests"`
	Interval         time.Duration `yaml:"interval" validate:"gte=0"`
	Timeout          time.Duration `yaml:"timeout" validate:"gte=0"`
	FailureThreshold float64       `yaml:"failure_threshold" validate:"gte=0,lte=1"`
	MinRequests      uint32        `yaml:"min_requests"`
}

type Log struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json console"`
}

var validate = validator.New()

// Default is an in-memory cache logging at info.
func Default() File {
	return File{
		TombstoneTTL: idcache.DefaultTombstoneTTL,
		Backend:      Backend{Kind: KindMemory},
		Log:          Log{Level: "info", Format: "json"},
	}
}

func Load(path string) (File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	f, err := Parse(b)
	if err != nil {
		return File{}, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes YAML over Default and validates the result. Unknown keys
// are rejected.
func Parse(b []byte) (File, error) {
	f := Default()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

func (f File) Validate() error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

// OpenBackend builds the configured backend, wrapped in a circuit breaker
// when enabled.
func (f File) OpenBackend(ctx context.Context) (backend.Backend, error) {
	b, err := f.openRaw(ctx)
	if err != nil {
		return nil, err
	}
	if !f.Breaker.Enabled {
		return b, nil
	}
	bc := breaker.DefaultConfig("idcache-" + f.Backend.Kind)
	if f.Breaker.MaxRequests > 0 {
		bc.MaxRequests = f.Breaker.MaxRequests
	}
	if f.Breaker.Interval > 0 {
		bc.Interval = f.Breaker.Interval
	}
	if f.Breaker.Timeout > 0 {
		bc.Timeout = f.Breaker.Timeout
	}
	if f.Breaker.FailureThreshold > 0 {
		bc.FailureThreshold = f.Breaker.FailureThreshold
	}
	if f.Breaker.MinRequests > 0 {
		bc.MinRequests = f.Breaker.MinRequests
	}
	return breaker.New(b, bc), nil
}

func (f File) openRaw(ctx context.Context) (backend.Backend, error) {
	ttl := f.Backend.DefaultTTL
	switch f.Backend.Kind {
	case KindMemory:
		return memory.NewWithOptions(memory.Options{DefaultTTL: ttl}), nil

	case KindRedis:
		r := f.Backend.Redis
		if r == nil {
			return nil, fmt.Errorf("%w: backend.redis is required", ErrInvalid)
		}
		client := goredis.NewUniversalClient(&goredis.UniversalOptions{
			Addrs:        r.Addrs,
			Username:     r.Username,
			Password:     r.Password,
			DB:           r.DB,
			DialTimeout:  r.DialTimeout,
			ReadTimeout:  r.ReadTimeout,
			WriteTimeout: r.WriteTimeout,
		})
		return redisbackend.New(redisbackend.Config{Client: client, CloseClient: true, DefaultTTL: ttl})

	case KindRistretto:
		r := f.Backend.Ristretto
		if r == nil {
			r = &Ristretto{NumCounters: 1e6, MaxCost: 64 << 20, BufferItems: 64}
		}
		return ristrettobackend.New(ristrettobackend.Config{
			NumCounters: r.NumCounters,
			MaxCost:     r.MaxCost,
			BufferItems: r.BufferItems,
			Metrics:     r.Metrics,
			DefaultTTL:  ttl,
		})

	case KindBigCache:
		bcfg := bigcachebackend.Config{DefaultTTL: ttl}
		if c := f.Backend.BigCache; c != nil {
			bcfg.LifeWindow = c.LifeWindow
			bcfg.CleanWindow = c.CleanWindow
			bcfg.MaxEntriesInWindow = c.MaxEntriesInWindow
			bcfg.MaxEntrySize = c.MaxEntrySize
			bcfg.HardMaxCacheSizeMB = c.HardMaxCacheSizeMB
		}
		return bigcachebackend.New(ctx, bcfg)

	default:
		return nil, fmt.Errorf("%w: unknown backend kind %q", ErrInvalid, f.Backend.Kind)
	}
}

// Logger builds a zap logger from the log section.
func (f File) Logger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if f.Log.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	if f.Log.Level != "" {
		lvl, err := zapcore.ParseLevel(f.Log.Level)
		if err != nil {
			return nil, fmt.Errorf("%w: log.level: %v", ErrInvalid, err)
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}
	return zc.Build()
}

// CacheConfig maps the file onto idcache.Config.
func (f File) CacheConfig(b backend.Backend, l *zap.Logger) idcache.Config {
	cfg := idcache.Config{
		Namespace:     f.Namespace,
		Backend:       b,
		TombstoneTTL:  f.TombstoneTTL,
		CoalesceLoads: f.CoalesceLoads,
		Disabled:      f.Disabled,
	}
	if l != nil {
		cfg.Logger = idzap.New(l)
	}
	return cfg
}
