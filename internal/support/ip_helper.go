package support

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"slices"
)

// SortKey packs an IPv4 address into a big-endian uint32 so addresses
// compare numerically rather than lexicographically.
func SortKey(address string) (uint32, error) {
	addr, err := netip.ParseAddr(address)
	if err != nil {
		return 0, fmt.Errorf("support: sort key for %q: %w", address, err)
	}
	if !addr.Is4() {
		return 0, fmt.Errorf("support: sort key for %q: not an ipv4 address", address)
	}

	octets := addr.As4()
	return binary.BigEndian.Uint32(octets[:]), nil
}

// SortAddresses returns a copy of addresses in ascending numeric order.
func SortAddresses(addresses []string) ([]string, error) {
	type keyed struct {
		key  uint32
		addr string
	}

	items := make([]keyed, 0, len(addresses))
	for _, addr := range addresses {
		key, err := SortKey(addr)
		if err != nil {
			return nil, err
		}
		items = append(items, keyed{key: key, addr: addr})
	}

	slices.SortStableFunc(items, func(a, b keyed) int {
		switch {
		case a.key < b.key:
			return -1
		case a.key > b.key:
			return 1
		default:
			return 0
		}
	})

	sorted := make([]string, len(items))
	for i, item := range items {
		sorted[i] = item.addr
	}
	return sorted, nil
}

// UniqueAddresses drops repeated addresses, keeping first occurrences in order.
func UniqueAddresses(addresses []string) []string {
	seen := make(map[string]struct{}, len(addresses))
	unique := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		unique = append(unique, addr)
	}
	return unique
}
