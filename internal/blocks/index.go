// Package blocks resolves IPv4 addresses against loaded GeoLite network blocks.
//
// An Index is built once from a set of records and is read-only afterwards,
// so it may be shared between goroutines without locking.
package blocks

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
	"slices"

	"ipcrawl/internal/domain"
)

// ErrInvalidAddress is returned by Find for input that is not a dotted-quad
// IPv4 address.
var ErrInvalidAddress = errors.New("blocks: invalid ipv4 address")

type entry struct {
	prefix netip.Prefix
	block  domain.NetworkBlock
}

// tableIndex partitions blocks by width. Blocks of /24 or longer live in a
// bucket keyed by their first three octets, /16 to /23 in a bucket keyed by
// the first two, and anything wider in a single list. A lookup therefore
// reads at most three candidate lists and checks containment on each.
type tableIndex struct {
	entries []entry
	by24    map[uint32][]int
	by16    map[uint32][]int
	wide    []int
}

func newTableIndex() *tableIndex {
	return &tableIndex{
		by24: make(map[uint32][]int),
		by16: make(map[uint32][]int),
	}
}

func (t *tableIndex) add(prefix netip.Prefix, block domain.NetworkBlock) {
	idx := len(t.entries)
	t.entries = append(t.entries, entry{prefix: prefix, block: block})

	base := addrKey(prefix.Addr())
	switch bits := prefix.Bits(); {
	case bits >= 24:
		t.by24[base>>8] = append(t.by24[base>>8], idx)
	case bits >= 16:
		t.by16[base>>16] = append(t.by16[base>>16], idx)
	default:
		t.wide = append(t.wide, idx)
	}
}

func (t *tableIndex) find(addr netip.Addr) []domain.NetworkBlock {
	key := addrKey(addr)

	candidates := make([]int, 0, 4)
	candidates = append(candidates, t.by24[key>>8]...)
	candidates = append(candidates, t.by16[key>>16]...)
	candidates = append(candidates, t.wide...)
	slices.Sort(candidates)

	matches := make([]domain.NetworkBlock, 0, 1)
	for _, idx := range candidates {
		if e := t.entries[idx]; e.prefix.Contains(addr) {
			matches = append(matches, e.block)
		}
	}
	return matches
}

// Index answers containment queries per table.
type Index struct {
	tables map[domain.Table]*tableIndex
}

// Build loads records into a new Index, preserving their order within each
// table. Every record must carry a valid IPv4 CIDR.
func Build(records ...domain.NetworkBlock) (*Index, error) {
	ix := &Index{tables: make(map[domain.Table]*tableIndex)}
	for _, table := range domain.Tables() {
		ix.tables[table] = newTableIndex()
	}

	for _, record := range records {
		prefix, err := domain.ParseNetwork(record.CIDR())
		if err != nil {
			return nil, fmt.Errorf("blocks: record %s: %w", record.BlockID(), err)
		}

		t, ok := ix.tables[record.Table()]
		if !ok {
			t = newTableIndex()
			ix.tables[record.Table()] = t
		}
		t.add(prefix, record)
	}

	return ix, nil
}

// Find returns every block of table containing address, in load order. No
// match is an empty slice, not an error.
func (ix *Index) Find(address string, table domain.Table) ([]domain.NetworkBlock, error) {
	addr, err := netip.ParseAddr(address)
	if err != nil || !addr.Is4() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}

	t, ok := ix.tables[table]
	if !ok {
		return []domain.NetworkBlock{}, nil
	}
	return t.find(addr), nil
}

// Len reports how many blocks were loaded for table.
func (ix *Index) Len(table domain.Table) int {
	if t, ok := ix.tables[table]; ok {
		return len(t.entries)
	}
	return 0
}

func addrKey(addr netip.Addr) uint32 {
	b := addr.As4()
	return binary.BigEndian.Uint32(b[:])
}
