package geolite

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"ipcrawl/internal/config"
	"ipcrawl/internal/domain"
)

// BlockFunc receives each block read from a dataset.
type BlockFunc func(domain.NetworkBlock) error

// BlocksPath returns the path of the blocks CSV of an installed edition.
func BlocksPath(cfg config.Config, table domain.Table) (string, error) {
	edition, ok := cfg.Edition(string(table))
	if !ok || edition.BlocksFile == "" {
		return "", fmt.Errorf("%w: %q has no blocks file", ErrUnknownEdition, table)
	}
	return filepath.Join(cfg.GeoLite.DataDir, string(table), edition.BlocksFile), nil
}

// LoadCSV reads a GeoLite blocks CSV from path and hands every row to fn.
func LoadCSV(ctx context.Context, path string, table domain.Table, fn BlockFunc) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("geolite: open %s: %w", path, err)
	}
	defer f.Close()

	count, err := ReadCSV(ctx, f, table, fn)
	if err != nil {
		return count, fmt.Errorf("geolite: %s: %w", filepath.Base(path), err)
	}

	log.Info("Loaded GeoLite CSV", "file", filepath.Base(path), "table", table, "rows", count)
	return count, nil
}

// ReadCSV maps each row onto its header names and builds a block of table
// from it. The first line must be the header.
func ReadCSV(ctx context.Context, r io.Reader, table domain.Table, fn BlockFunc) (int, error) {
	build, err := rowBuilder(table)
	if err != nil {
		return 0, err
	}

	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	headers := append([]string(nil), header...)

	count := 0
	for {
		if count%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return count, err
			}
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, fmt.Errorf("read row: %w", err)
		}

		row := make(map[string]string, len(headers))
		for i, value := range record {
			if i < len(headers) {
				row[headers[i]] = value
			}
		}

		block, err := build(row)
		if err != nil {
			line, _ := reader.FieldPos(0)
			return count, fmt.Errorf("line %d: %w", line, err)
		}
		if err := fn(block); err != nil {
			return count, err
		}
		count++
	}
}

func rowBuilder(table domain.Table) (func(map[string]string) (domain.NetworkBlock, error), error) {
	switch table {
	case domain.TableASN:
		return func(row map[string]string) (domain.NetworkBlock, error) {
			return domain.NewASNBlock(row)
		}, nil
	case domain.TableCity:
		return func(row map[string]string) (domain.NetworkBlock, error) {
			return domain.NewCityBlock(row)
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownTable, table)
	}
}
