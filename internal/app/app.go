package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"gorm.io/gorm"

	"ipcrawl/internal/app/version"
	"ipcrawl/internal/config"
	"ipcrawl/internal/database"
	"ipcrawl/internal/domain"
	"ipcrawl/internal/geolite"
	"ipcrawl/internal/lexer"
	"ipcrawl/internal/report"
	"ipcrawl/internal/support"
)

func Run(ctx context.Context, args []string) error {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found. Falling back to system environment variables.")
	}

	defer func() {
		if err := support.CloseRedisClient(); err != nil {
			log.Warn("error closing redis client", "error", err)
		}
	}()

	return newCommand(os.Stdout).Run(ctx, args)
}

func newCommand(w io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "ipcrawl",
		Usage:   "extract IPv4 addresses from text and resolve them against GeoLite2 blocks",
		Version: version.Get().String(),
		Writer:  w,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "settings",
				Usage: "settings file merged over the built-in defaults",
				Value: config.DefaultSettingsPath,
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("debug") {
				log.SetLevel(log.DebugLevel)
			} else {
				log.SetLevel(log.InfoLevel)
			}
			return ctx, config.ReadSettings(cmd.String("settings"))
		},
		Commands: []*cli.Command{
			downloadCommand(),
			populateCommand(),
			importMMDBCommand(),
			extractCommand(),
			scanCommand(),
		},
	}
}

func downloadCommand() *cli.Command {
	return &cli.Command{
		Name:  "download",
		Usage: "download and unpack the GeoLite2 CSV archives",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "edition",
				Usage: "edition to download (asn, city, country); repeatable, defaults to all",
			},
			&cli.BoolFlag{
				Name:  "keep-archive",
				Usage: "keep the downloaded zip next to the unpacked data",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			updater := geolite.NewUpdater(config.GetConfig())
			updater.KeepArchive = cmd.Bool("keep-archive")
			return updater.Download(ctx, cmd.StringSlice("edition")...)
		},
	}
}

func populateCommand() *cli.Command {
	return &cli.Command{
		Name:  "populate",
		Usage: "load the downloaded GeoLite2 block CSVs into the database",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "rows committed per transaction (defaults to database.batch_size)",
			},
			&cli.BoolFlag{
				Name:  "append",
				Usage: "add to the stored blocks instead of replacing them",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.GetConfig()
			batchSize := cmd.Int("batch-size")
			if batchSize <= 0 {
				batchSize = cfg.Database.BatchSize
			}

			return withDB(cfg, func(db *gorm.DB) error {
				for _, table := range domain.Tables() {
					path, err := geolite.BlocksPath(cfg, table)
					if err != nil {
						return err
					}
					if err := ingest(ctx, db, batchSize, replaced(cmd, table), func(fn geolite.BlockFunc) (int, error) {
						return geolite.LoadCSV(ctx, path, table, fn)
					}); err != nil {
						return err
					}
				}
				purgeReportCache(ctx, cfg)
				return nil
			})
		},
	}
}

func importMMDBCommand() *cli.Command {
	return &cli.Command{
		Name:      "import-mmdb",
		Usage:     "load the IPv4 networks of a MaxMind .mmdb file into the database",
		ArgsUsage: "<file.mmdb>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "table",
				Usage:    "target table (asn or city)",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "rows committed per transaction (defaults to database.batch_size)",
			},
			&cli.BoolFlag{
				Name:  "append",
				Usage: "add to the stored blocks instead of replacing them",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("import-mmdb: expected exactly one file argument")
			}
			table, err := domain.ParseTable(cmd.String("table"))
			if err != nil {
				return err
			}

			cfg := config.GetConfig()
			batchSize := cmd.Int("batch-size")
			if batchSize <= 0 {
				batchSize = cfg.Database.BatchSize
			}

			path := cmd.Args().First()
			return withDB(cfg, func(db *gorm.DB) error {
				if err := ingest(ctx, db, batchSize, replaced(cmd, table), func(fn geolite.BlockFunc) (int, error) {
					return geolite.LoadMMDB(ctx, path, table, fn)
				}); err != nil {
					return err
				}
				purgeReportCache(ctx, cfg)
				return nil
			})
		},
	}
}

func extractCommand() *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "extract every IPv4 address of a text file and write the resolved report",
		ArgsUsage: "<file|->",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "output",
				Usage: "report destination, - for stdout (defaults to report.output)",
			},
			&cli.BoolFlag{
				Name:  "memory",
				Usage: "load all blocks into memory instead of querying the database per address",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("extract: expected exactly one input argument")
			}
			text, err := support.ReadInput(cmd.Args().First())
			if err != nil {
				return fmt.Errorf("extract: read input: %w", err)
			}

			cfg := config.GetConfig()
			output := cmd.String("output")
			if output == "" {
				output = cfg.Report.Output
			}

			return withDB(cfg, func(db *gorm.DB) error {
				resolver, err := newResolver(ctx, db, cfg, cmd.Bool("memory"))
				if err != nil {
					return err
				}

				builder := &report.Builder{
					Resolver: resolver,
					Workers:  resolveInt("IPCRAWL_WORKERS", cfg.Report.Workers),
					Cache:    reportCache(ctx, cfg),
				}

				entries, err := builder.Build(ctx, text)
				if err != nil {
					return err
				}

				if output == "-" {
					return report.Write(cmd.Root().Writer, entries)
				}
				return report.WriteFile(output, entries)
			})
		},
	}
}

func scanCommand() *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "print the distinct IPv4 addresses of a text file in numeric order",
		ArgsUsage: "<file|->",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("scan: expected exactly one input argument")
			}
			text, err := support.ReadInput(cmd.Args().First())
			if err != nil {
				return fmt.Errorf("scan: read input: %w", err)
			}

			tokens, err := lexer.Scan(text)
			if err != nil {
				return err
			}

			addresses := make([]string, 0, len(tokens))
			for _, token := range tokens {
				addresses = append(addresses, token.Value)
			}
			sorted, err := support.SortAddresses(support.UniqueAddresses(addresses))
			if err != nil {
				return err
			}

			w := cmd.Root().Writer
			for _, address := range sorted {
				if _, err := fmt.Fprintln(w, address); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func withDB(cfg config.Config, fn func(*gorm.DB) error) error {
	dialector, err := database.Dialector(cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		return err
	}

	db, err := database.SetupDB(database.WithDialector(dialector))
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				log.Warn("error closing database", "error", err)
			}
		}
	}()

	return fn(db)
}

// replaced lists the tables an ingestion run overwrites. With --append the
// stored rows are kept.
func replaced(cmd *cli.Command, table domain.Table) []domain.Table {
	if cmd.Bool("append") {
		return nil
	}
	return []domain.Table{table}
}

func ingest(ctx context.Context, db *gorm.DB, batchSize int, replace []domain.Table, load func(geolite.BlockFunc) (int, error)) error {
	writer, err := database.NewBlockWriter(ctx, db, batchSize)
	if err != nil {
		return err
	}
	if err := writer.Replace(replace...); err != nil {
		return err
	}

	if _, err := load(writer.Add); err != nil {
		return err
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	log.Info("Network blocks stored", "rows", writer.Written())
	return nil
}

func newResolver(ctx context.Context, db *gorm.DB, cfg config.Config, inMemory bool) (report.Resolver, error) {
	if inMemory {
		return database.LoadIndex(ctx, db)
	}
	return database.NewBlockStore(db, cfg.LookupCacheSize)
}

func reportCache(ctx context.Context, cfg config.Config) report.Cache {
	if !support.RedisConfigured() {
		return nil
	}

	namespace, err := database.StoreKey(cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		log.Warn("Report cache disabled", "error", err)
		return nil
	}
	client, err := support.GetRedisClient(ctx)
	if err != nil {
		log.Warn("Report cache disabled", "error", err)
		return nil
	}
	return report.NewRedisCache(client, namespace, cfg.CacheTTL())
}

func purgeReportCache(ctx context.Context, cfg config.Config) {
	if !support.RedisConfigured() {
		return
	}

	namespace, err := database.StoreKey(cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		log.Warn("Could not purge report cache", "error", err)
		return
	}
	client, err := support.GetRedisClient(ctx)
	if err != nil {
		log.Warn("Could not purge report cache", "error", err)
		return
	}

	removed, err := report.NewRedisCache(client, namespace, 0).Purge(ctx)
	if err != nil {
		log.Warn("Could not purge report cache", "error", err)
		return
	}
	log.Info("Report cache purged", "entries", removed)
}

func resolveInt(envKey string, fallback int) int {
	if v := readInt(envKey); v != 0 {
		return v
	}
	return fallback
}

func readInt(envKey string) int {
	raw := os.Getenv(envKey)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		log.Warn("invalid integer override", "env", envKey, "value", raw)
		return 0
	}
	return v
}
