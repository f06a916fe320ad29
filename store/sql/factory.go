package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-spapi-push/core"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db *bun.DB

	connectionStore   *ConnectionStore
	pushJobStore      *PushJobStore
	listingImageStore *ListingImageStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) error {
	if f == nil {
		return fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.connectionStore != nil && f.pushJobStore != nil {
		return nil
	}
	return f.initStores()
}

func (f *RepositoryFactory) ConnectionStore() core.ConnectionStore {
	if f == nil || f.connectionStore == nil {
		return nil
	}
	return f.connectionStore
}

func (f *RepositoryFactory) PushJobStore() core.PushJobStore {
	if f == nil || f.pushJobStore == nil {
		return nil
	}
	return f.pushJobStore
}

func (f *RepositoryFactory) ListingImageStore() core.ListingImageStore {
	if f == nil || f.listingImageStore == nil {
		return nil
	}
	return f.listingImageStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	connectionRepo := repository.NewRepository[*connectionRecord](f.db, connectionHandlers())
	if validator, ok := connectionRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid connection repository wiring: %w", err)
		}
	}

	pushJobRepo := repository.NewRepository[*pushJobRecord](f.db, pushJobHandlers())
	if validator, ok := pushJobRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid push job repository wiring: %w", err)
		}
	}

	listingImageRepo := repository.NewRepository[*listingImageRecord](f.db, listingImageHandlers())
	if validator, ok := listingImageRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid listing image repository wiring: %w", err)
		}
	}

	f.connectionStore = &ConnectionStore{db: f.db, repo: connectionRepo}
	f.pushJobStore = &PushJobStore{db: f.db, repo: pushJobRepo}
	f.listingImageStore = &ListingImageStore{db: f.db, repo: listingImageRepo}
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
