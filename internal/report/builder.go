// Package report turns scanned text into per-address lookups against the
// GeoLite network blocks.
package report

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"ipcrawl/internal/domain"
	"ipcrawl/internal/lexer"
	"ipcrawl/internal/support"
)

// Resolver finds the blocks of a table containing an address. Both the
// in-memory blocks.Index and the SQL-backed database.BlockStore satisfy it.
type Resolver interface {
	Find(address string, table domain.Table) ([]domain.NetworkBlock, error)
}

// Entry is one resolved address of a report.
type Entry struct {
	Address string             `json:"address"`
	ASN     []domain.ASNBlock  `json:"asn"`
	City    []domain.CityBlock `json:"city"`
}

// Cache stores resolved entries between runs. A miss is (zero, false, nil).
type Cache interface {
	Get(ctx context.Context, address string) (Entry, bool, error)
	Set(ctx context.Context, entry Entry) error
}

type Builder struct {
	Resolver Resolver
	Workers  int
	Cache    Cache
}

// Build scans text and resolves every distinct address in ascending numeric
// order. A lexical error aborts the build before any lookup happens.
func (b *Builder) Build(ctx context.Context, text string) ([]Entry, error) {
	tokens, err := lexer.Scan(text)
	if err != nil {
		return nil, err
	}

	addresses := make([]string, 0, len(tokens))
	for _, token := range tokens {
		addresses = append(addresses, token.Value)
	}

	sorted, err := support.SortAddresses(support.UniqueAddresses(addresses))
	if err != nil {
		return nil, fmt.Errorf("report: sort addresses: %w", err)
	}

	log.Debug("Resolving addresses", "tokens", len(tokens), "distinct", len(sorted))
	return b.Resolve(ctx, sorted)
}

// Resolve looks up addresses concurrently. Entries keep the order of
// addresses whatever order the lookups finish in.
func (b *Builder) Resolve(ctx context.Context, addresses []string) ([]Entry, error) {
	if b.Resolver == nil {
		return nil, fmt.Errorf("report: no resolver configured")
	}

	entries := make([]Entry, len(addresses))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers())
	for i, address := range addresses {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entry, err := b.resolveOne(gctx, address)
			if err != nil {
				return err
			}
			entries[i] = entry
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (b *Builder) workers() int {
	if b.Workers > 0 {
		return b.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (b *Builder) resolveOne(ctx context.Context, address string) (Entry, error) {
	if b.Cache != nil {
		cached, ok, err := b.Cache.Get(ctx, address)
		if err != nil {
			log.Warn("Report cache read failed", "address", address, "error", err)
		} else if ok {
			return cached, nil
		}
	}

	entry := Entry{
		Address: address,
		ASN:     []domain.ASNBlock{},
		City:    []domain.CityBlock{},
	}

	for _, table := range domain.Tables() {
		found, err := b.Resolver.Find(address, table)
		if err != nil {
			return Entry{}, fmt.Errorf("report: resolve %s in %s: %w", address, table, err)
		}
		for _, block := range found {
			switch v := block.(type) {
			case *domain.ASNBlock:
				entry.ASN = append(entry.ASN, *v)
			case *domain.CityBlock:
				entry.City = append(entry.City, *v)
			}
		}
	}

	if b.Cache != nil {
		if err := b.Cache.Set(ctx, entry); err != nil {
			log.Warn("Report cache write failed", "address", address, "error", err)
		}
	}

	return entry, nil
}

// Write renders entries as one indented JSON array.
func Write(w io.Writer, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}

	out, err := support.ToJSON(entries)
	if err != nil {
		return fmt.Errorf("report: encode: %w", err)
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(out + "\n"); err != nil {
		return fmt.Errorf("report: write: %w", err)
	}
	return bw.Flush()
}

// WriteFile writes the report to path, creating parent directories.
func WriteFile(path string, entries []Entry) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("report: create dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}

	if err := Write(f, entries); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("report: close %s: %w", path, err)
	}

	log.Info("Report written", "path", path, "entries", len(entries))
	return nil
}
