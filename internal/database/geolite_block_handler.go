package database

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"

	"ipcrawl/internal/blocks"
	"ipcrawl/internal/domain"

	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"
	"gorm.io/gorm"
)

const defaultBatchSize = 10000

// ErrInvalidAddress is returned by BlockStore.Find for input that is not a
// dotted-quad IPv4 address.
var ErrInvalidAddress = errors.New("database: invalid ipv4 address")

// BlockWriter buffers blocks and writes them in batches, one transaction per
// batch. Seq numbers continue from what is already stored so that lookups
// keep returning blocks in load order across several ingestion runs.
type BlockWriter struct {
	db        *gorm.DB
	batchSize int
	asn       []*domain.ASNBlock
	city      []*domain.CityBlock
	seq       map[domain.Table]int64
	replace   []domain.Table
	written   int
}

func NewBlockWriter(ctx context.Context, db *gorm.DB, batchSize int) (*BlockWriter, error) {
	if db == nil {
		return nil, errors.New("database: nil database connection")
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	w := &BlockWriter{
		db:        db.WithContext(ctx),
		batchSize: batchSize,
		seq:       make(map[domain.Table]int64, 2),
	}

	for table, model := range map[domain.Table]any{
		domain.TableASN:  &domain.ASNBlock{},
		domain.TableCity: &domain.CityBlock{},
	} {
		var maxSeq int64
		if err := w.db.Model(model).Select("COALESCE(MAX(seq), 0)").Row().Scan(&maxSeq); err != nil {
			return nil, fmt.Errorf("database: read %s sequence: %w", table, err)
		}
		w.seq[table] = maxSeq
	}

	return w, nil
}

// Replace schedules the stored rows of tables for deletion. The rows are
// removed in the same transaction as the next batch.
func (w *BlockWriter) Replace(tables ...domain.Table) error {
	for _, table := range tables {
		if _, err := modelFor(table); err != nil {
			return err
		}
		w.seq[table] = 0
		w.replace = append(w.replace, table)
	}
	return nil
}

// Add queues a block and flushes once a batch is full.
func (w *BlockWriter) Add(block domain.NetworkBlock) error {
	switch b := block.(type) {
	case *domain.ASNBlock:
		w.seq[domain.TableASN]++
		b.Seq = w.seq[domain.TableASN]
		w.asn = append(w.asn, b)
	case *domain.CityBlock:
		w.seq[domain.TableCity]++
		b.Seq = w.seq[domain.TableCity]
		w.city = append(w.city, b)
	default:
		return fmt.Errorf("database: unsupported block type %T", block)
	}

	if len(w.asn)+len(w.city) >= w.batchSize {
		return w.Flush()
	}
	return nil
}

// Flush writes every queued block.
func (w *BlockWriter) Flush() error {
	if len(w.asn) == 0 && len(w.city) == 0 && len(w.replace) == 0 {
		return nil
	}

	err := w.db.Transaction(func(tx *gorm.DB) error {
		for _, table := range w.replace {
			model, err := modelFor(table)
			if err != nil {
				return err
			}
			result := tx.Where("1 = 1").Delete(model)
			if result.Error != nil {
				return fmt.Errorf("clear %s blocks: %w", table, result.Error)
			}
			log.Debug("Cleared stored network blocks", "table", table, "rows", result.RowsAffected)
		}
		if len(w.asn) > 0 {
			if err := tx.CreateInBatches(w.asn, w.batchSize).Error; err != nil {
				return fmt.Errorf("insert asn blocks: %w", err)
			}
		}
		if len(w.city) > 0 {
			if err := tx.CreateInBatches(w.city, w.batchSize).Error; err != nil {
				return fmt.Errorf("insert city blocks: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("database: flush blocks: %w", err)
	}

	flushed := len(w.asn) + len(w.city)
	w.written += flushed
	w.replace = nil
	w.asn = w.asn[:0]
	w.city = w.city[:0]
	log.Debug("Flushed network blocks", "batch", flushed, "total", w.written)
	return nil
}

// Written reports how many blocks have been committed.
func (w *BlockWriter) Written() int {
	return w.written
}

// InsertBlocks writes blocks in batches of batchSize.
func InsertBlocks(ctx context.Context, db *gorm.DB, batchSize int, records ...domain.NetworkBlock) error {
	w, err := NewBlockWriter(ctx, db, batchSize)
	if err != nil {
		return err
	}
	for _, record := range records {
		if err := w.Add(record); err != nil {
			return err
		}
	}
	return w.Flush()
}

// CountBlocks returns the number of stored blocks for table.
func CountBlocks(ctx context.Context, db *gorm.DB, table domain.Table) (int64, error) {
	model, err := modelFor(table)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.WithContext(ctx).Model(model).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("database: count %s blocks: %w", table, err)
	}
	return count, nil
}

// LoadIndex reads every stored block into an in-memory index.
func LoadIndex(ctx context.Context, db *gorm.DB) (*blocks.Index, error) {
	db = db.WithContext(ctx)

	var asn []*domain.ASNBlock
	if err := db.Order("seq").Find(&asn).Error; err != nil {
		return nil, fmt.Errorf("database: load asn blocks: %w", err)
	}

	var city []*domain.CityBlock
	if err := db.Order("seq").Find(&city).Error; err != nil {
		return nil, fmt.Errorf("database: load city blocks: %w", err)
	}

	records := make([]domain.NetworkBlock, 0, len(asn)+len(city))
	for _, b := range asn {
		records = append(records, b)
	}
	for _, b := range city {
		records = append(records, b)
	}

	log.Info("Loaded network blocks", "asn", len(asn), "city", len(city))
	return blocks.Build(records...)
}

type lookupKey struct {
	table domain.Table
	addr  uint32
}

// BlockStore resolves addresses directly against the SQL tables. Results are
// memoized in an LRU since reports tend to repeat addresses from the same
// networks.
type BlockStore struct {
	db    *gorm.DB
	cache *lru.Cache[lookupKey, []domain.NetworkBlock]
}

func NewBlockStore(db *gorm.DB, cacheSize int) (*BlockStore, error) {
	if db == nil {
		return nil, errors.New("database: nil database connection")
	}
	if cacheSize <= 0 {
		cacheSize = 1
	}

	cache, err := lru.New[lookupKey, []domain.NetworkBlock](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("database: lookup cache: %w", err)
	}
	return &BlockStore{db: db, cache: cache}, nil
}

// Find returns every stored block of table containing address, in load
// order. No match is an empty slice, not an error.
func (s *BlockStore) Find(address string, table domain.Table) ([]domain.NetworkBlock, error) {
	addr, err := netip.ParseAddr(address)
	if err != nil || !addr.Is4() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}

	octets := addr.As4()
	key := lookupKey{table: table, addr: binary.BigEndian.Uint32(octets[:])}
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	found, err := s.query(key)
	if err != nil {
		return nil, err
	}

	s.cache.Add(key, found)
	return found, nil
}

func (s *BlockStore) query(key lookupKey) ([]domain.NetworkBlock, error) {
	scope := s.db.Where("network_start <= ? AND network_end >= ?", key.addr, key.addr).Order("seq")

	switch key.table {
	case domain.TableASN:
		var rows []*domain.ASNBlock
		if err := scope.Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("database: find asn blocks: %w", err)
		}
		found := make([]domain.NetworkBlock, 0, len(rows))
		for _, row := range rows {
			found = append(found, row)
		}
		return found, nil
	case domain.TableCity:
		var rows []*domain.CityBlock
		if err := scope.Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("database: find city blocks: %w", err)
		}
		found := make([]domain.NetworkBlock, 0, len(rows))
		for _, row := range rows {
			found = append(found, row)
		}
		return found, nil
	default:
		return []domain.NetworkBlock{}, nil
	}
}

func modelFor(table domain.Table) (any, error) {
	switch table {
	case domain.TableASN:
		return &domain.ASNBlock{}, nil
	case domain.TableCity:
		return &domain.CityBlock{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownTable, table)
	}
}
