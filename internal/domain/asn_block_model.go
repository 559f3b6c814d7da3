package domain

import (
	"fmt"

	"gorm.io/gorm"
)

// ASNBlock is a row of GeoLite2-ASN-Blocks-IPv4.
type ASNBlock struct {
	ID           string `gorm:"primaryKey;size:32" json:"id"`
	Network      string `gorm:"size:18;not null" json:"network"`
	NetworkStart uint32 `gorm:"index:idx_asn_blocks_range,priority:1" json:"-"`
	NetworkEnd   uint32 `gorm:"index:idx_asn_blocks_range,priority:2" json:"-"`
	Seq          int64  `gorm:"not null;default:0;index" json:"-"`

	AutonomousSystemNumber       *uint32 `json:"autonomous_system_number"`
	AutonomousSystemOrganization *string `json:"autonomous_system_organization"`
}

func (ASNBlock) TableName() string {
	return "geolite2_asn_blocks_ipv4"
}

// NewASNBlock builds a block from a header-keyed CSV row. Unknown columns are
// ignored.
func NewASNBlock(row map[string]string) (*ASNBlock, error) {
	block := &ASNBlock{
		ID:      NewID(),
		Network: row["network"],
	}

	var errs fieldErrors
	var err error

	block.NetworkStart, block.NetworkEnd, err = NetworkBounds(block.Network)
	errs.add("network", err)

	block.AutonomousSystemNumber, err = ParseOptionalUint32(row["autonomous_system_number"])
	errs.add("autonomous_system_number", err)

	block.AutonomousSystemOrganization = ParseOptionalString(row["autonomous_system_organization"])

	if err := errs.err("asn block"); err != nil {
		return nil, err
	}
	return block, nil
}

func (b *ASNBlock) BeforeSave(_ *gorm.DB) error {
	if b.ID == "" {
		b.ID = NewID()
	}

	start, end, err := NetworkBounds(b.Network)
	if err != nil {
		return err
	}
	b.NetworkStart, b.NetworkEnd = start, end
	return nil
}

func (b *ASNBlock) BlockID() string { return b.ID }
func (b *ASNBlock) CIDR() string    { return b.Network }
func (b *ASNBlock) Table() Table    { return TableASN }

func (b *ASNBlock) String() string {
	return fmt.Sprintf("ASNBlock(id=%q)", b.ID)
}
