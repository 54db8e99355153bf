package market

import (
	"sync"

	"swaylend/core/types"
	"swaylend/crypto"
	"swaylend/storage"
)

// Directory hands out one Contract handle per deployed market so that every
// caller shares the same call serialization.
type Directory struct {
	mu      sync.Mutex
	db      storage.Database
	opts    []Option
	handles map[[crypto.AddressLength]byte]*Contract
}

// NewDirectory opens markets stored in db with opts applied to every handle.
func NewDirectory(db storage.Database, opts ...Option) *Directory {
	return &Directory{
		db:      db,
		opts:    append([]Option(nil), opts...),
		handles: make(map[[crypto.AddressLength]byte]*Contract),
	}
}

// Get returns the handle for id, loading it on first use.
func (d *Directory) Get(id crypto.Address) (*Contract, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := id.Array()
	if c, ok := d.handles[key]; ok {
		return c, nil
	}
	c, err := Load(d.db, id, d.opts...)
	if err != nil {
		return nil, err
	}
	d.handles[key] = c
	return c, nil
}

// Deploy deploys a new market and caches its handle.
func (d *Directory) Deploy(cfg MarketConfig, salt types.Bits256) (*Contract, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, err := Deploy(d.db, cfg, salt, d.opts...)
	if err != nil {
		return nil, err
	}
	d.handles[c.ID().Array()] = c
	return c, nil
}

// List returns the ids of every deployed market.
func (d *Directory) List() ([]crypto.Address, error) {
	return Deployments(d.db)
}
