package market

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rlp"
	"lukechampine.com/blake3"

	"swaylend/core/events"
	"swaylend/core/state"
	"swaylend/core/types"
	"swaylend/crypto"
	"swaylend/observability/metrics"
	"swaylend/oracle"
	"swaylend/storage"
)

// Contract is a handle on one deployed market. Calls are serialized and each
// runs against a journal over the backing store: it either commits every
// write and event or none of them.
type Contract struct {
	mu      sync.Mutex
	db      storage.Database
	id      crypto.Address
	oracles oracle.Resolver
	emitter events.Emitter
	logger  *slog.Logger
	now     func() uint64
	metrics *metrics.MarketMetrics
}

// Option customises a Contract handle.
type Option func(*Contract)

// WithOracleResolver sets the resolver used to reach the configured oracle
// contract.
func WithOracleResolver(resolver oracle.Resolver) Option {
	return func(c *Contract) { c.oracles = resolver }
}

// WithEmitter forwards committed events to emitter.
func WithEmitter(emitter events.Emitter) Option {
	return func(c *Contract) { c.emitter = emitter }
}

// WithLogger routes the contract's lifecycle logs to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Contract) { c.logger = logger }
}

// WithClock overrides the block timestamp source, in unix seconds.
func WithClock(now func() uint64) Option {
	return func(c *Contract) { c.now = now }
}

func newContract(db storage.Database, id crypto.Address, opts ...Option) *Contract {
	c := &Contract{
		db:      db,
		id:      id,
		emitter: events.NoopEmitter{},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     func() uint64 { return uint64(time.Now().Unix()) },
		metrics: metrics.Market(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.emitter == nil {
		c.emitter = events.NoopEmitter{}
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.now == nil {
		c.now = func() uint64 { return uint64(time.Now().Unix()) }
	}
	return c
}

// ContractID derives the deterministic id of a market deployed by cfg.Owner
// with the given salt.
func ContractID(cfg MarketConfig, salt types.Bits256) (crypto.Address, error) {
	encoded, err := rlp.EncodeToBytes(newStoredConfig(cfg))
	if err != nil {
		return crypto.Address{}, err
	}
	hasher := blake3.New(32, nil)
	hasher.Write(cfg.Owner.Bytes())
	hasher.Write(salt[:])
	hasher.Write(encoded)
	sum := hasher.Sum(nil)
	return crypto.NewAddress(crypto.ContractPrefix, sum[:crypto.AddressLength]), nil
}

// Deploy validates cfg, persists a fresh market and returns its handle. The
// market starts unactivated with no oracle and no collaterals.
func Deploy(db storage.Database, cfg MarketConfig, salt types.Bits256, opts ...Option) (*Contract, error) {
	if db == nil {
		return nil, fmt.Errorf("market: database required")
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	id, err := ContractID(cfg, salt)
	if err != nil {
		return nil, err
	}
	c := newContract(db, id, opts...)
	err = c.execute("deploy", func(tx *txn) error {
		exists, err := tx.kv.KVHas(configKey(tx.id))
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrAlreadyDeployed, id)
		}
		if err := tx.putConfig(cfg); err != nil {
			return err
		}
		if err := tx.putState(storedState{}); err != nil {
			return err
		}
		if _, err := tx.kv.KVAppend(deploymentIndexKey, tx.id[:]); err != nil {
			return err
		}
		tx.emit(events.MarketDeployed{Contract: id, Owner: cfg.Owner, BaseAssetID: cfg.BaseAssetID})
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.metrics.SetActivated(id.String(), false)
	c.metrics.SetCollaterals(id.String(), 0)
	c.logger.Info("market deployed",
		slog.String("contract", id.String()),
		slog.String("owner", cfg.Owner.String()),
		slog.String("base_asset", cfg.BaseAssetID.String()))
	return c, nil
}

// Load reopens a previously deployed market.
func Load(db storage.Database, id crypto.Address, opts ...Option) (*Contract, error) {
	if db == nil {
		return nil, fmt.Errorf("market: database required")
	}
	c := newContract(db, crypto.AddressFromArray(crypto.ContractPrefix, id.Array()), opts...)
	if _, err := c.Config(); err != nil {
		return nil, err
	}
	return c, nil
}

// Deployments lists every market id recorded in db in deployment order.
func Deployments(db storage.Database) ([]crypto.Address, error) {
	var ids [][]byte
	if err := state.NewManager(db).KVGetList(deploymentIndexKey, &ids); err != nil {
		return nil, err
	}
	out := make([]crypto.Address, 0, len(ids))
	for _, raw := range ids {
		if len(raw) != crypto.AddressLength {
			return nil, fmt.Errorf("market: corrupt deployment index entry of %d bytes", len(raw))
		}
		out = append(out, crypto.NewAddress(crypto.ContractPrefix, raw))
	}
	return out, nil
}

// ID returns the contract id.
func (c *Contract) ID() crypto.Address {
	if c == nil {
		return crypto.Address{}
	}
	return c.id
}

// SetOracleResolver replaces the resolver used for oracle reads.
func (c *Contract) SetOracleResolver(resolver oracle.Resolver) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.oracles = resolver
	c.mu.Unlock()
}

// SetEmitter replaces the event sink. A nil emitter discards events.
func (c *Contract) SetEmitter(emitter events.Emitter) {
	if c == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	c.mu.Lock()
	c.emitter = emitter
	c.mu.Unlock()
}

// SetClock overrides the block timestamp source.
func (c *Contract) SetClock(now func() uint64) {
	if c == nil || now == nil {
		return
	}
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

type txn struct {
	*store
	contract crypto.Address
	events   events.Buffer
}

func (tx *txn) emit(evt events.Event) { tx.events.Emit(evt) }

func (c *Contract) execute(method string, fn func(*txn) error) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() { c.metrics.ObserveCall(method, ErrorCode(err)) }()

	journal := storage.NewJournal(c.db)
	tx := &txn{
		store:    &store{kv: state.NewManager(journal), id: c.id.Array()},
		contract: c.id,
	}
	if err = fn(tx); err != nil {
		journal.Discard()
		tx.events.Reset()
		return err
	}
	if err = journal.Commit(); err != nil {
		tx.events.Reset()
		return fmt.Errorf("market: commit %s: %w", method, err)
	}
	tx.events.Flush(c.emitter)
	return nil
}

func (c *Contract) view(fn func(*store) error) error {
	if c == nil {
		return ErrNotDeployed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(&store{kv: state.NewManager(c.db), id: c.id.Array()})
}

// quoteSource is the oracle view of a market captured under c.mu. Feeds are
// read through it after the lock is released, so a slow oracle never blocks
// other calls on the market.
type quoteSource struct {
	oracles        oracle.Resolver
	now            uint64
	oracleSet      bool
	oracleContract [crypto.AddressLength]byte
	maxAge         uint64
	maxConfidence  uint64
	metrics        *metrics.MarketMetrics
}

// quotes snapshots the oracle settings of s. Callers must hold c.mu.
func (c *Contract) quotes(s *store) (*quoteSource, error) {
	cfg, err := s.config()
	if err != nil {
		return nil, err
	}
	st, err := s.state()
	if err != nil {
		return nil, err
	}
	return &quoteSource{
		oracles:        c.oracles,
		now:            c.now(),
		oracleSet:      st.OracleSet,
		oracleContract: st.OracleContract,
		maxAge:         cfg.MaxPriceAgeSeconds,
		maxConfidence:  cfg.MaxConfidenceBps,
		metrics:        c.metrics,
	}, nil
}

// price reads feedID through the configured oracle and validates it against
// the market's freshness and confidence bounds.
func (q *quoteSource) price(feedID types.Bits256) (oracle.Price, error) {
	if !q.oracleSet {
		return oracle.Price{}, ErrOracleNotConfigured
	}
	if q.oracles == nil {
		return oracle.Price{}, fmt.Errorf("%w: no oracle resolver", ErrOracleNotConfigured)
	}
	source, err := q.oracles.Resolve(crypto.AddressFromArray(crypto.ContractPrefix, q.oracleContract))
	if err != nil {
		q.metrics.ObserveOracleFailure("unresolved")
		return oracle.Price{}, fmt.Errorf("%w: %v", ErrOracleNotConfigured, err)
	}
	price, err := source.GetPrice(feedID)
	if err != nil {
		if errors.Is(err, oracle.ErrFeedNotFound) {
			q.metrics.ObserveOracleFailure("feed_not_found")
			return oracle.Price{}, fmt.Errorf("%w: %v", ErrInvalidPrice, err)
		}
		q.metrics.ObserveOracleFailure("unavailable")
		return oracle.Price{}, fmt.Errorf("market: oracle read %s: %w", feedID, err)
	}
	if err := ValidatePrice(price, q.now, q.maxAge, q.maxConfidence); err != nil {
		q.metrics.ObserveOracleFailure(ErrorCode(err))
		return oracle.Price{}, err
	}
	return price, nil
}
