package domain

import (
	"fmt"

	"gorm.io/gorm"
)

// CityBlock is a row of GeoLite2-City-Blocks-IPv4.
type CityBlock struct {
	ID           string `gorm:"primaryKey;size:32" json:"id"`
	Network      string `gorm:"size:18;not null" json:"network"`
	NetworkStart uint32 `gorm:"index:idx_city_blocks_range,priority:1" json:"-"`
	NetworkEnd   uint32 `gorm:"index:idx_city_blocks_range,priority:2" json:"-"`
	Seq          int64  `gorm:"not null;default:0;index" json:"-"`

	GeonameID                   *int64  `json:"geoname_id"`
	RegisteredCountryGeonameID  *int64  `json:"registered_country_geoname_id"`
	RepresentedCountryGeonameID *int64  `json:"represented_country_geoname_id"`
	IsAnonymousProxy            bool    `json:"is_anonymous_proxy"`
	IsSatelliteProvider         bool    `json:"is_satellite_provider"`
	PostalCode                  *string `gorm:"size:9" json:"postal_code"`
	Latitude                    float64 `gorm:"not null;default:0" json:"latitude"`
	Longitude                   float64 `gorm:"not null;default:0" json:"longitude"`
	AccuracyRadius              *int64  `json:"accuracy_radius"`
}

func (CityBlock) TableName() string {
	return "geolite2_city_blocks_ipv4"
}

// NewCityBlock builds a block from a header-keyed CSV row. Unknown columns
// (is_anycast in newer exports, for one) are ignored.
func NewCityBlock(row map[string]string) (*CityBlock, error) {
	block := &CityBlock{
		ID:      NewID(),
		Network: row["network"],
	}

	var errs fieldErrors
	var err error

	block.NetworkStart, block.NetworkEnd, err = NetworkBounds(block.Network)
	errs.add("network", err)

	block.GeonameID, err = ParseOptionalInt(row["geoname_id"])
	errs.add("geoname_id", err)
	block.RegisteredCountryGeonameID, err = ParseOptionalInt(row["registered_country_geoname_id"])
	errs.add("registered_country_geoname_id", err)
	block.RepresentedCountryGeonameID, err = ParseOptionalInt(row["represented_country_geoname_id"])
	errs.add("represented_country_geoname_id", err)

	block.IsAnonymousProxy, err = ParseFlag(row["is_anonymous_proxy"])
	errs.add("is_anonymous_proxy", err)
	block.IsSatelliteProvider, err = ParseFlag(row["is_satellite_provider"])
	errs.add("is_satellite_provider", err)

	block.PostalCode = ParseOptionalString(row["postal_code"])

	block.Latitude, err = ParseCoordinate(row["latitude"])
	errs.add("latitude", err)
	block.Longitude, err = ParseCoordinate(row["longitude"])
	errs.add("longitude", err)

	block.AccuracyRadius, err = ParseOptionalInt(row["accuracy_radius"])
	errs.add("accuracy_radius", err)

	if err := errs.err("city block"); err != nil {
		return nil, err
	}
	return block, nil
}

func (b *CityBlock) BeforeSave(_ *gorm.DB) error {
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

func (b *CityBlock) BlockID() string { return b.ID }
func (b *CityBlock) CIDR() string    { return b.Network }
func (b *CityBlock) Table() Table    { return TableCity }

func (b *CityBlock) String() string {
	return fmt.Sprintf("CityBlock(id=%q)", b.ID)
}
