package domain

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/google/uuid"
	"go4.org/netipx"
)

// Table names a reference dataset.
type Table string

const (
	TableASN  Table = "asn"
	TableCity Table = "city"
)

// ErrUnknownTable is returned for a table name other than asn or city.
var ErrUnknownTable = errors.New("domain: unknown table")

// Tables lists every reference dataset in report order.
func Tables() []Table {
	return []Table{TableASN, TableCity}
}

func ParseTable(name string) (Table, error) {
	switch Table(strings.ToLower(strings.TrimSpace(name))) {
	case TableASN:
		return TableASN, nil
	case TableCity:
		return TableCity, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}
}

// NetworkBlock is one row of a reference dataset, keyed by a CIDR block.
type NetworkBlock interface {
	BlockID() string
	CIDR() string
	Table() Table
}

// NewID returns a random 32 character hex identifier.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ParseNetwork parses an IPv4 CIDR block and returns it masked to its base
// address.
func ParseNetwork(cidr string) (netip.Prefix, error) {
	prefix, err := netip.ParsePrefix(strings.TrimSpace(cidr))
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("domain: network %q: %w", cidr, err)
	}
	if !prefix.Addr().Is4() {
		return netip.Prefix{}, fmt.Errorf("domain: network %q: not an ipv4 block", cidr)
	}
	return prefix.Masked(), nil
}

// NetworkBounds returns the first and last address of cidr as big-endian
// integers.
func NetworkBounds(cidr string) (uint32, uint32, error) {
	prefix, err := ParseNetwork(cidr)
	if err != nil {
		return 0, 0, err
	}

	r := netipx.RangeOfPrefix(prefix)
	return addrToUint32(r.From()), addrToUint32(r.To()), nil
}

func addrToUint32(addr netip.Addr) uint32 {
	b := addr.As4()
	return binary.BigEndian.Uint32(b[:])
}
