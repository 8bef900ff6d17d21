package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/moznion/go-optional"
	"github.com/urfave/cli/v3"

	"github.com/quantfeed/flatfiles/internal/logger"
	"github.com/quantfeed/flatfiles/pkg/aggs"
	"github.com/quantfeed/flatfiles/pkg/flatfiles"
	"github.com/quantfeed/flatfiles/pkg/flatfiles/writer"
)

// downloadAction fetches every business day in the requested range and
// persists the result under the output directory.
func downloadAction(ctx context.Context, cmd *cli.Command) error {
	appLogger, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLogger.Sync()

	config := flatfiles.Config{
		Market:    cmd.String("market"),
		Endpoint:  cmd.String("endpoint"),
		AccessKey: cmd.String("access-key"),
		SecretKey: cmd.String("secret-key"),
		DataDir:   cmd.String("output-dir"),
	}

	client, err := flatfiles.NewClient(ctx, config, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	start, err := flatfiles.ParseDate(cmd.String("start-date"))
	if err != nil {
		return err
	}

	end := optional.None[time.Time]()

	if endText := cmd.String("end-date"); endText != "" {
		parsed, err := flatfiles.ParseDate(endText)
		if err != nil {
			return err
		}

		end = optional.Some(parsed)
	}

	opts := flatfiles.DownloadOptions{
		Clean:        cmd.Bool("clean"),
		Partition:    cmd.Bool("partition"),
		SaveCombined: cmd.Bool("combined"),
	}

	table, err := client.DownloadRange(ctx, start, end, opts)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	if table == nil {
		log.Println("No data found for the requested range.")
		return nil
	}

	log.Printf("Download completed: %d rows.", table.NumRows())

	return nil
}

// listAction prints every object key under the configured prefix, optionally
// narrowed to a year or a year and month.
func listAction(ctx context.Context, cmd *cli.Command) error {
	appLogger, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLogger.Sync()

	config := flatfiles.Config{
		Market:    cmd.String("market"),
		Endpoint:  cmd.String("endpoint"),
		AccessKey: cmd.String("access-key"),
		SecretKey: cmd.String("secret-key"),
	}

	client, err := flatfiles.NewClient(ctx, config, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	year := optional.None[int]()
	if cmd.IsSet("year") {
		year = optional.Some(int(cmd.Int("year")))
	}

	month := optional.None[int]()
	if cmd.IsSet("month") {
		month = optional.Some(int(cmd.Int("month")))
	}

	keys, err := client.ListKeys(ctx, year, month)
	if err != nil {
		return fmt.Errorf("listing failed: %w", err)
	}

	for _, key := range keys {
		fmt.Println(key)
	}

	return nil
}

// aggsAction downloads aggregate bars over the REST API and writes them to a
// parquet file.
func aggsAction(ctx context.Context, cmd *cli.Command) error {
	appLogger, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLogger.Sync()

	ticker := cmd.String("ticker")

	startDate, err := flatfiles.ParseDate(cmd.String("start-date"))
	if err != nil {
		return err
	}

	endDate, err := flatfiles.ParseDate(cmd.String("end-date"))
	if err != nil {
		return err
	}

	timespan, err := aggs.ParseTimespan(cmd.String("timespan"))
	if err != nil {
		return err
	}

	multiplier := int(cmd.Int("multiplier"))

	provider, err := aggs.NewPolygonProvider(os.Getenv("POLYGON_API_KEY"), appLogger)
	if err != nil {
		return err
	}

	table, err := provider.Fetch(ctx, ticker, startDate, endDate, multiplier, timespan)
	if err != nil {
		return fmt.Errorf("aggregate download failed: %w", err)
	}

	if table == nil {
		log.Println("No bars found for the requested range.")
		return nil
	}

	outputDir := cmd.String("output-dir")
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	fileName := fmt.Sprintf("%s_%s_%s_%d_%s.parquet",
		ticker, startDate.Format(time.DateOnly), endDate.Format(time.DateOnly), multiplier, timespan)
	outputPath := filepath.Join(outputDir, fileName)

	w := writer.NewDuckDBWriter(outputPath)
	if err := w.Initialize(); err != nil {
		return err
	}
	defer w.Close()

	if err := w.WriteTable(table); err != nil {
		return err
	}

	if _, err := w.Finalize(); err != nil {
		return err
	}

	log.Printf("Wrote %d bars to %s.", table.NumRows(), outputPath)

	return nil
}

// credentialFlags are shared by every subcommand that talks to the flat-file
// bucket. Each flag falls back to its environment variable when absent.
func credentialFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "market",
			Aliases:  []string{"m"},
			Usage:    "Market to download (stocks, options, crypto, forex, indices)",
			Sources:  cli.EnvVars("POLYGON_MARKET"),
			Required: false,
		},
		&cli.StringFlag{
			Name:     "endpoint",
			Aliases:  []string{"e"},
			Usage:    "Endpoint to download (day_aggs, minute_aggs, trades, quotes)",
			Sources:  cli.EnvVars("POLYGON_ENDPOINT"),
			Required: false,
		},
		&cli.StringFlag{
			Name:     "access-key",
			Usage:    "S3 access key for the flat-file bucket",
			Sources:  cli.EnvVars("ACCESS_KEY"),
			Required: false,
		},
		&cli.StringFlag{
			Name:     "secret-key",
			Usage:    "S3 secret key for the flat-file bucket",
			Sources:  cli.EnvVars("SECRET_KEY"),
			Required: false,
		},
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "flatfiles",
		Usage: "Download historical market data flat files",
		Commands: []*cli.Command{
			{
				Name:  "download",
				Usage: "Download flat files for a date range",
				Flags: append(credentialFlags(),
					&cli.StringFlag{
						Name:     "start-date",
						Aliases:  []string{"s"},
						Usage:    "Start date in `YYYYMMDD` format (lenient formats accepted)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "end-date",
						Usage:    "End date in `YYYYMMDD` format. Defaults to yesterday.",
						Required: false,
					},
					&cli.StringFlag{
						Name:     "output-dir",
						Aliases:  []string{"o"},
						Usage:    "Path to the data output directory",
						Sources:  cli.EnvVars("DATADIR"),
						Required: false,
					},
					&cli.BoolFlag{
						Name:  "clean",
						Usage: "Derive an exchange-local timestamp column on each table",
						Value: true,
					},
					&cli.BoolFlag{
						Name:  "partition",
						Usage: "Write one parquet file per day",
						Value: true,
					},
					&cli.BoolFlag{
						Name:  "combined",
						Usage: "Write the concatenated result to a single parquet file",
					},
				),
				Action: downloadAction,
			},
			{
				Name:  "list",
				Usage: "List available flat-file keys",
				Flags: append(credentialFlags(),
					&cli.IntFlag{
						Name:  "year",
						Usage: "Narrow the listing to a year",
					},
					&cli.IntFlag{
						Name:  "month",
						Usage: "Narrow the listing to a month (requires --year)",
					},
				),
				Action: listAction,
			},
			{
				Name:  "aggs",
				Usage: "Download aggregate bars over the REST API",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "ticker",
						Aliases:  []string{"t"},
						Usage:    "Ticker symbol",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "start-date",
						Aliases:  []string{"s"},
						Usage:    "Start date in `YYYYMMDD` format (lenient formats accepted)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "end-date",
						Usage:    "End date in `YYYYMMDD` format",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "multiplier",
						Usage: "Size of the timespan multiplier",
						Value: 1,
					},
					&cli.StringFlag{
						Name:  "timespan",
						Usage: "Bar timespan (second, minute, hour, day, week, month)",
						Value: "minute",
					},
					&cli.StringFlag{
						Name:    "output-dir",
						Aliases: []string{"o"},
						Usage:   "Path to the data output directory",
						Value:   "data",
					},
				},
				Action: aggsAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
