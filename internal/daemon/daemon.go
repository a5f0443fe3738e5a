// Package daemon provides the daemon interface and implementation.
package daemon

import (
	"fmt"
	"sync"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"github.com/stacksym/stacksym/api/server"
	"github.com/stacksym/stacksym/internal/config"
	"github.com/stacksym/stacksym/internal/db"
	"github.com/stacksym/stacksym/internal/source"
	"github.com/stacksym/stacksym/internal/store"
	"github.com/stacksym/stacksym/internal/symbolicate"
)

// Daemon is the interface that describes a stacksym daemon.
type Daemon interface {
	// Start starts the daemon and blocks until it stops.
	Start() error
	// Stop stops the daemon.
	Stop() error
}

type daemon struct {
	conf *config.Config

	mu     sync.Mutex
	store  store.Store
	server *server.Server
}

// NewDaemon creates a new daemon.
func NewDaemon(conf *config.Config) Daemon {
	return &daemon{conf: conf}
}

func (d *daemon) Start() error {
	if d.conf.Daemon.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s, err := db.New(d.conf)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", d.conf.Store.Type, err)
	}

	sym, err := NewSymbolicator(d.conf, s)
	if err != nil {
		s.Close()
		return err
	}
	srv := server.NewServer(&server.Config{
		Host:   d.conf.Daemon.Host,
		Port:   d.conf.Daemon.Port,
		Socket: d.conf.Daemon.Socket,
		Debug:  d.conf.Daemon.Debug,
	}, sym)

	d.mu.Lock()
	d.store = s
	d.server = srv
	d.mu.Unlock()

	return srv.Start()
}

func (d *daemon) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.server != nil {
		if err := d.server.Stop(); err != nil {
			return err
		}
	}
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// NewSymbolicator wires a Symbolicator to the store and to the debug info
// sources named in the config.
func NewSymbolicator(conf *config.Config, s store.Store) (*symbolicate.Symbolicator, error) {
	opts := []symbolicate.Option{
		symbolicate.WithHandleCacheSize(conf.Symbolicate.HandleCacheSize),
		symbolicate.WithMaxConcurrentBuilds(conf.Symbolicate.MaxConcurrentBuilds),
		symbolicate.WithFetchTimeout(conf.DebugInfo.Timeout),
	}
	if src := Sources(conf); src != nil {
		opts = append(opts, symbolicate.WithSource(src))
	}
	return symbolicate.New(s, symbolicate.NativeResolver(), opts...)
}

// Sources returns the configured debug info sources, local folder first, or
// nil when none are configured.
func Sources(conf *config.Config) source.Source {
	var chain source.Chain
	if conf.DebugInfo.Dir != "" {
		log.WithField("dir", conf.DebugInfo.Dir).Debug("Using debug info folder")
		chain = append(chain, source.Dir{Root: conf.DebugInfo.Dir})
	}
	if conf.DebugInfo.URL != "" {
		log.WithField("url", conf.DebugInfo.URL).Debug("Using debug info server")
		chain = append(chain, source.HTTP{URL: conf.DebugInfo.URL})
	}
	if len(chain) == 0 {
		return nil
	}
	return chain
}
