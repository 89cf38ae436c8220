package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/i474232898/fogcast-backend/internal/config"
	"github.com/i474232898/fogcast-backend/internal/influx"
	"github.com/i474232898/fogcast-backend/internal/logging"
	"github.com/i474232898/fogcast-backend/internal/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Import historical data into InfluxDB",
}

var migrateWaterLevelsCmd = &cobra.Command{
	Use:   "water-levels",
	Short: "Import a PegelOnline CSV export of water levels",
	Example: `  fogcast migrate water-levels --file bodensee_pegel.csv
  fogcast migrate water-levels --file see_rhein_pegel.csv --batch 2000`,
	RunE: runMigrateWaterLevels,
}

func init() {
	migrateWaterLevelsCmd.Flags().StringSliceP("file", "f", nil, "CSV export to import (repeatable)")
	migrateWaterLevelsCmd.Flags().Int("batch", migrate.DefaultBatchSize, "points per write request")
	_ = migrateWaterLevelsCmd.MarkFlagRequired("file")

	migrateCmd.AddCommand(migrateWaterLevelsCmd)
	rootCmd.AddCommand(migrateCmd)
}

func runMigrateWaterLevels(cmd *cobra.Command, args []string) error {
	files, _ := cmd.Flags().GetStringSlice("file")
	batch, _ := cmd.Flags().GetInt("batch")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := logging.New(cfg, appName)
	if cfg.EnvFileErr != nil {
		log.Debug("no .env file loaded, using process environment", "error", cfg.EnvFileErr)
	}

	conn := newInflux(cfg)
	defer conn.Close()

	series := influx.NewSeries(conn, conn, influx.Buckets{Forecast: cfg.Influx.Bucket},
		influx.WithBatchSize(batch), influx.WithLogger(log))
	importer, err := migrate.NewWaterLevels(series, batch, log)
	if err != nil {
		return err
	}

	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		res, err := importer.Import(cmd.Context(), f)
		f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		log.Info("migration completed", "file", path, "rows", res.Rows, "written", res.Written, "skipped", res.Skipped)
	}
	return nil
}
