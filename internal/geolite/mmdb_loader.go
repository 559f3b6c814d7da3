package geolite

import (
	"context"
	"fmt"
	"net/netip"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/oschwald/geoip2-golang"
	"github.com/oschwald/maxminddb-golang"
	"go4.org/netipx"

	"ipcrawl/internal/domain"
)

// LoadMMDB walks every IPv4 network of a MaxMind database and hands it to fn
// as a block of table. The database type must match the table: a GeoLite2-ASN
// file for asn, GeoLite2-City for city.
func LoadMMDB(ctx context.Context, path string, table domain.Table, fn BlockFunc) (int, error) {
	reader, err := maxminddb.Open(path)
	if err != nil {
		return 0, fmt.Errorf("geolite: open %s: %w", path, err)
	}
	defer reader.Close()

	var decode func(*maxminddb.Networks) (netip.Prefix, map[string]string, error)
	switch table {
	case domain.TableASN:
		decode = func(networks *maxminddb.Networks) (netip.Prefix, map[string]string, error) {
			var record geoip2.ASN
			subnet, err := networks.Network(&record)
			if err != nil {
				return netip.Prefix{}, nil, err
			}
			prefix, _ := netipx.FromStdIPNet(subnet)
			return prefix, asnRow(prefix, &record), nil
		}
	case domain.TableCity:
		decode = func(networks *maxminddb.Networks) (netip.Prefix, map[string]string, error) {
			var record geoip2.City
			subnet, err := networks.Network(&record)
			if err != nil {
				return netip.Prefix{}, nil, err
			}
			prefix, _ := netipx.FromStdIPNet(subnet)
			return prefix, cityRow(prefix, &record), nil
		}
	default:
		return 0, fmt.Errorf("%w: %q", domain.ErrUnknownTable, table)
	}

	build, err := rowBuilder(table)
	if err != nil {
		return 0, err
	}

	count, skipped := 0, 0
	networks := reader.Networks(maxminddb.SkipAliasedNetworks)
	for networks.Next() {
		if count%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return count, err
			}
		}

		prefix, row, err := decode(networks)
		if err != nil {
			return count, fmt.Errorf("geolite: decode %s: %w", path, err)
		}
		if !prefix.IsValid() || !prefix.Addr().Is4() {
			skipped++
			continue
		}

		block, err := build(row)
		if err != nil {
			return count, fmt.Errorf("geolite: %s: %w", prefix, err)
		}
		if err := fn(block); err != nil {
			return count, err
		}
		count++
	}
	if err := networks.Err(); err != nil {
		return count, fmt.Errorf("geolite: iterate %s: %w", path, err)
	}

	log.Info("Loaded MaxMind database", "file", path, "table", table, "networks", count, "skipped", skipped)
	return count, nil
}

// asnRow renders an mmdb ASN record with the column names of the CSV export.
// Zero values are absent in the mmdb and map to empty columns.
func asnRow(prefix netip.Prefix, record *geoip2.ASN) map[string]string {
	return map[string]string{
		"network":                        prefix.Masked().String(),
		"autonomous_system_number":       optionalUint(uint64(record.AutonomousSystemNumber)),
		"autonomous_system_organization": record.AutonomousSystemOrganization,
	}
}

func cityRow(prefix netip.Prefix, record *geoip2.City) map[string]string {
	geonameID := record.City.GeoNameID
	if geonameID == 0 {
		geonameID = record.Country.GeoNameID
	}

	row := map[string]string{
		"network":                        prefix.Masked().String(),
		"geoname_id":                     optionalUint(uint64(geonameID)),
		"registered_country_geoname_id":  optionalUint(uint64(record.RegisteredCountry.GeoNameID)),
		"represented_country_geoname_id": optionalUint(uint64(record.RepresentedCountry.GeoNameID)),
		"is_anonymous_proxy":             strconv.FormatBool(record.Traits.IsAnonymousProxy),
		"is_satellite_provider":          strconv.FormatBool(record.Traits.IsSatelliteProvider),
		"postal_code":                    record.Postal.Code,
		"accuracy_radius":                optionalUint(uint64(record.Location.AccuracyRadius)),
	}
	if record.Location.Latitude != 0 || record.Location.Longitude != 0 {
		row["latitude"] = strconv.FormatFloat(record.Location.Latitude, 'f', -1, 64)
		row["longitude"] = strconv.FormatFloat(record.Location.Longitude, 'f', -1, 64)
	}
	return row
}

func optionalUint(v uint64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatUint(v, 10)
}
