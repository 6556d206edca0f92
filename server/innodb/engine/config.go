package engine

import (
	"os"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

// Config holds every tunable the engine facade needs to open. Layered
// loading follows the teacher's conf.Cfg pattern (an ini-backed
// defaults file) with a toml overlay for values an operator actually
// wants to change, per SPEC_FULL.md's domain-stack wiring.
type Config struct {
	DataDir          string
	BufferPoolFrames int
	BTreeOrder       int
	RedoBufferLimit  int
	FlushInterval    time.Duration

	// LockWaitTimeout bounds how long lock.AcquireBlocking retries a
	// conflicting request before giving up with lock.ErrTimeout.
	LockWaitTimeout time.Duration
	// FlushLogAtTrxCommit mirrors innodb_flush_log_at_trx_commit: 1
	// flushes the redo log to stable storage on every commit (durable,
	// default); 0 skips that flush, leaving the commit record buffered
	// until a later redo flush (no background task flushes the redo log).
	FlushLogAtTrxCommit int
}

func DefaultConfig() Config {
	return Config{
		DataDir:             "./data",
		BufferPoolFrames:    256,
		BTreeOrder:          64,
		RedoBufferLimit:     1000,
		FlushInterval:       5 * time.Second,
		LockWaitTimeout:     50 * time.Second,
		FlushLogAtTrxCommit: 1,
	}
}

// LoadConfig reads defaultsPath (an ini file, optional) as the base
// layer and overlayPath (a toml file, optional) on top of it; either
// path may be empty, in which case that layer is skipped. Spec.md has
// no configuration surface of its own (§6, no CLI/env/network), so
// this exists purely for the ambient "how does an engine get its
// tunables" concern a real host application needs.
func LoadConfig(defaultsPath, overlayPath string) (Config, error) {
	cfg := DefaultConfig()

	if defaultsPath != "" {
		if _, err := os.Stat(defaultsPath); err == nil {
			iniFile, err := ini.Load(defaultsPath)
			if err != nil {
				return cfg, errors.Wrap(err, "engine: parse ini defaults")
			}
			applyIni(&cfg, iniFile.Section("engine"))
		}
	}

	if overlayPath != "" {
		if _, err := os.Stat(overlayPath); err == nil {
			tree, err := toml.LoadFile(overlayPath)
			if err != nil {
				return cfg, errors.Wrap(err, "engine: parse toml overlay")
			}
			applyToml(&cfg, tree)
		}
	}

	return cfg, nil
}

// applyIni overlays the legacy my.cnf-style surface: a narrow set of
// InnoDB-named keys an operator might carry over from a real server's
// configuration file. The toml overlay remains the primary, modern
// path for every other tunable.
func applyIni(cfg *Config, section *ini.Section) {
	if section == nil {
		return
	}
	if k, err := section.GetKey("innodb_buffer_pool_size"); err == nil {
		cfg.BufferPoolFrames = k.MustInt(cfg.BufferPoolFrames)
	}
	if k, err := section.GetKey("innodb_lock_wait_timeout"); err == nil {
		cfg.LockWaitTimeout = time.Duration(k.MustInt(int(cfg.LockWaitTimeout/time.Second))) * time.Second
	}
	if k, err := section.GetKey("innodb_flush_log_at_trx_commit"); err == nil {
		cfg.FlushLogAtTrxCommit = k.MustInt(cfg.FlushLogAtTrxCommit)
	}
}

func applyToml(cfg *Config, tree *toml.Tree) {
	if v, ok := tree.Get("data_dir").(string); ok {
		cfg.DataDir = v
	}
	if v, ok := tree.Get("buffer_pool_frames").(int64); ok {
		cfg.BufferPoolFrames = int(v)
	}
	if v, ok := tree.Get("btree_order").(int64); ok {
		cfg.BTreeOrder = int(v)
	}
	if v, ok := tree.Get("redo_buffer_limit").(int64); ok {
		cfg.RedoBufferLimit = int(v)
	}
	if v, ok := tree.Get("flush_interval").(string); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.FlushInterval = d
		}
	}
	if v, ok := tree.Get("lock_wait_timeout").(string); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LockWaitTimeout = d
		}
	}
	if v, ok := tree.Get("flush_log_at_trx_commit").(int64); ok {
		cfg.FlushLogAtTrxCommit = int(v)
	}
}
