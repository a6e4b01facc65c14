package core

import (
	"fmt"
	"os"

	"studycore/internal/infra/persistence/memory"
	"studycore/internal/infra/persistence/postgres"
	"studycore/internal/infra/persistence/sqlite"
	"studycore/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

type (
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
)

// OpenPersistentStore selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	STUDYCORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	STUDYCORE_SQLITE_PATH: path to sqlite file (default ./studycore.db)
//	STUDYCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenPersistentStore(engine *RulesEngine) (PersistentStore, error) {
	driver := StorageDriver(os.Getenv("STUDYCORE_STORAGE_DRIVER"))
	return OpenStorage(driver, os.Getenv("STUDYCORE_SQLITE_PATH"), os.Getenv("STUDYCORE_POSTGRES_DSN"), engine)
}

// OpenStorage opens the backend for an explicit driver selection. An empty
// driver defaults to sqlite.
func OpenStorage(driver StorageDriver, sqlitePath, postgresDSN string, engine *RulesEngine) (PersistentStore, error) {
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		return sqlite.NewStore(sqlitePath, engine)
	case StoragePostgres:
		return postgres.NewStore(postgresDSN, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
