// Package db provides gorm backed symbol cache stores.
package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stacksym/stacksym/internal/config"
	"github.com/stacksym/stacksym/internal/model"
	"github.com/stacksym/stacksym/internal/store"
)

// New opens the store selected by the config.
func New(conf *config.Config) (store.Store, error) {
	switch conf.Store.Type {
	case config.StoreMemory:
		return store.NewMemory(conf.Store.Path)
	case config.StoreLocal:
		return store.NewLocal(conf.Store.Path)
	case config.StoreSqlite:
		s, err := NewSqlite(conf.Store.Path, 0)
		if err != nil {
			return nil, err
		}
		if err := s.Connect(); err != nil {
			return nil, err
		}
		return s, nil
	case config.StorePostgres:
		p, err := NewPostgres(
			conf.Database.Host,
			conf.Database.Port,
			conf.Database.User,
			conf.Database.Password,
			conf.Database.Name,
			conf.Database.SSLMode,
		)
		if err != nil {
			return nil, err
		}
		if err := p.Connect(); err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown store type %q", conf.Store.Type)
}

// gormStore implements store.Store on top of a gorm connection.
type gormStore struct {
	db *gorm.DB
}

func keyIs(key string) clause.Eq {
	return clause.Eq{Column: clause.Column{Name: "key"}, Value: key}
}

// Get returns the blob for the given key.
// It returns store.ErrNotFound if the key does not exist.
func (g *gormStore) Get(ctx context.Context, key string) ([]byte, error) {
	var sc model.SymCache
	if err := g.db.WithContext(ctx).Where(keyIs(key)).First(&sc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return sc.Data, nil
}

// Put sets the value for the given key.
// It overwrites any previous value for that key.
func (g *gormStore) Put(ctx context.Context, key string, blob []byte) error {
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "size", "updated_at"}),
	}).Create(&model.SymCache{
		Key:  key,
		Data: blob,
		Size: len(blob),
	}).Error
}

// Delete removes the given key.
func (g *gormStore) Delete(ctx context.Context, key string) error {
	return g.db.WithContext(ctx).Where(keyIs(key)).Delete(&model.SymCache{}).Error
}

// List returns the stored keys in sorted order.
func (g *gormStore) List(ctx context.Context) ([]string, error) {
	keys := []string{}
	if err := g.db.WithContext(ctx).
		Model(&model.SymCache{}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}}).
		Pluck("key", &keys).Error; err != nil {
		return nil, err
	}
	return keys, nil
}

// Clear removes every entry.
func (g *gormStore) Clear(ctx context.Context) error {
	return g.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&model.SymCache{}).Error
}

// Close closes the database.
func (g *gormStore) Close() error {
	if g.db == nil {
		return nil
	}
	db, err := g.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
