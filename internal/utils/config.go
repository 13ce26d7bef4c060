package util

import (
	"fmt"

	"gopkg.in/ini.v1"
)

// LoadOptions reads engine options from an ini file. Missing keys keep
// their defaults.
//
//	[storage]
//	path        = clockdb.dat
//	pool_size   = 64
//	in_memory   = false
//	sync_writes = false
//	log_level   = info
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()

	cfg, err := ini.Load(path)
	if err != nil {
		return opts, fmt.Errorf("load config %s: %w", path, err)
	}

	sec := cfg.Section("storage")
	opts.Path = sec.Key("path").MustString(opts.Path)
	opts.PoolSize = sec.Key("pool_size").MustInt(opts.PoolSize)
	opts.InMemory = sec.Key("in_memory").MustBool(opts.InMemory)
	opts.SyncWrites = sec.Key("sync_writes").MustBool(opts.SyncWrites)
	opts.LogLevel = sec.Key("log_level").MustString(opts.LogLevel)

	if opts.PoolSize <= 0 {
		return opts, ErrInvalidPoolSize
	}
	return opts, nil
}
