// Package store implements the persistence backends for the scheduler: a
// directory of JSON documents and a SQLite database.
package store

import (
	"time"

	"github.com/kilianp07/obsched/core/factory"
	corestore "github.com/kilianp07/obsched/core/store"
)

var registry = factory.NewRegistry[corestore.Store]()

// Register adds a store backend factory identified by name.
func Register(name string, f factory.Factory[corestore.Store]) error {
	return registry.Register(name, f)
}

// Open creates the backend described by cfg.
func Open(cfg factory.ModuleConfig) (corestore.Store, error) {
	return registry.Create(cfg)
}

// Backends lists the registered backend names.
func Backends() []string { return registry.Types() }

func init() {
	_ = Register("file", func(conf map[string]any) (corestore.Store, error) {
		var c struct {
			Path string `json:"path"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewFileStore(c.Path)
	})

	_ = Register("sqlite", func(conf map[string]any) (corestore.Store, error) {
		var c struct {
			Path        string        `json:"path"`
			BusyTimeout time.Duration `json:"busy_timeout"`
		}
		c.BusyTimeout = 5 * time.Second
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewSQLiteStore(c.Path, c.BusyTimeout)
	})

	_ = Register("memory", func(map[string]any) (corestore.Store, error) {
		return corestore.NewMemoryStore(), nil
	})
}
