package db

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ark-network/swapd/internal/core/domain"
	"github.com/ark-network/swapd/internal/core/ports"
	badgerdb "github.com/ark-network/swapd/internal/infrastructure/db/badger"
	sqlitedb "github.com/ark-network/swapd/internal/infrastructure/db/sqlite"
	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

var (
	eventStoreTypes = map[string]func(...interface{}) (domain.SwapEventRepository, error){
		"badger": badgerdb.NewSwapEventRepository,
	}
	swapStoreTypes = map[string]func(...interface{}) (domain.SwapRepository, error){
		"badger": badgerdb.NewSwapRepository,
		"sqlite": sqlitedb.NewSwapRepository,
	}
)

const (
	sqliteDbFile = "sqlite.db"
)

type ServiceConfig struct {
	EventStoreType string
	DataStoreType  string

	EventStoreConfig []interface{}
	DataStoreConfig  []interface{}
}

type service struct {
	eventStore domain.SwapEventRepository
	swapStore  domain.SwapRepository
}

func NewService(config ServiceConfig) (ports.RepoManager, error) {
	eventStoreFactory, ok := eventStoreTypes[config.EventStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid event store type: %s", config.EventStoreType)
	}

	swapStoreFactory, ok := swapStoreTypes[config.DataStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid data store type: %s", config.DataStoreType)
	}

	eventStore, err := eventStoreFactory(config.EventStoreConfig...)
	if err != nil {
		return nil, fmt.Errorf("failed to create event store: %w", err)
	}

	dataStoreConfig := config.DataStoreConfig
	if config.DataStoreType == "sqlite" {
		db, err := openSqlite(config.DataStoreConfig)
		if err != nil {
			eventStore.Close()
			return nil, err
		}
		dataStoreConfig = []interface{}{db}
	}

	swapStore, err := swapStoreFactory(dataStoreConfig...)
	if err != nil {
		eventStore.Close()
		return nil, fmt.Errorf("failed to create swap store: %w", err)
	}

	return &service{
		eventStore: eventStore,
		swapStore:  swapStore,
	}, nil
}

func (s *service) Events() domain.SwapEventRepository {
	return s.eventStore
}

func (s *service) Swaps() domain.SwapRepository {
	return s.swapStore
}

func (s *service) Close() {
	s.eventStore.Close()
	s.swapStore.Close()
}

func openSqlite(config []interface{}) (*sql.DB, error) {
	if len(config) != 1 {
		return nil, errors.New("invalid config")
	}

	baseDir, ok := config[0].(string)
	if !ok {
		return nil, errors.New("invalid config")
	}

	db, err := sqlitedb.OpenDb(filepath.Join(baseDir, sqliteDbFile))
	if err != nil {
		return nil, err
	}

	if err := migrateSqlite(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate sqlite: %w", err)
	}
	return db, nil
}

func migrateSqlite(db *sql.DB) error {
	driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	source, err := iofs.New(sqlitedb.Migrations, "migration")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to migrate up: %w", err)
	}

	return nil
}
