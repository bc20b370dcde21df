package main

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"marketingest/internal/alphavantage"
	"marketingest/internal/coinmarketcap"
	"marketingest/internal/config"
	"marketingest/internal/coordinator"
	"marketingest/internal/fetcher"
	"marketingest/internal/logger"
	"marketingest/internal/openexchangerates"
	"marketingest/internal/ratelimit"
	"marketingest/internal/report"
	"marketingest/internal/sink"
	"marketingest/internal/wikipedia"
	"marketingest/internal/yahoo"
)

// Artifact key templates per command
const (
	stocksKeys sink.KeyTemplate = "yfinance-data/{key}.csv"
	ratesKeys  sink.KeyTemplate = "exchange-rates/{key}.csv"
	cryptoKeys sink.KeyTemplate = "coinmarketcap/{key}_crypto.csv"
)

// app holds what every command needs once flags and configuration are resolved
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	limiter *ratelimit.Limiter
	format  report.Format

	// fs backs the file sink; tests swap it for a memory filesystem
	fs afero.Fs
	// newS3 builds the object storage client for the s3 sink
	newS3 func(ctx context.Context, region string) (sink.PutObjectAPI, error)
}

func newApp() *app {
	return &app{
		fs: afero.NewOsFs(),
		newS3: func(ctx context.Context, region string) (sink.PutObjectAPI, error) {
			return sink.NewS3Client(ctx, region)
		},
	}
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(newApp())
}

func newRootCmdWith(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "marketingest",
		Short: "Fetch market data concurrently and store one artifact per subject",
		Long: `marketingest fetches market data for many independent subjects in parallel
and stores one CSV artifact per subject, then reports which subjects
succeeded and which failed.

Exit status: 0 all succeeded, 1 configuration error, 2 partial success,
3 every item failed.

Examples:
  marketingest stocks                      # S&P 500 minute bars to ./data
  marketingest stocks --symbols AAPL,MSFT  # explicit tickers
  marketingest rates --base USD,EUR -o json
  marketingest crypto --limit 20 --sink s3`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default ./config.yaml or $HOME/.marketingest/config.yaml)")
	flags.StringP("output", "o", string(report.FormatTable), "report format: table, json or yaml")
	flags.Int("concurrency", coordinator.DefaultConcurrency, "maximum items processed at once")
	flags.Duration("item-timeout", coordinator.DefaultItemTimeout, "deadline for fetching and storing one item (0 disables)")
	flags.String("sink", config.SinkFile, "artifact storage: file or s3")
	flags.String("output-dir", "./data", "root directory for the file sink")
	flags.Bool("log-json", false, "emit JSON logs")
	flags.String("log-level", "info", "log level: debug, info, warn or error")

	root.AddCommand(a.stocksCmd(), a.ratesCmd(), a.cryptoCmd())
	return root
}

// setup resolves configuration, the logger, and the shared rate limiter
func (a *app) setup(cmd *cobra.Command) error {
	format, err := report.ParseFormat(stringFlag(cmd, "output"))
	if err != nil {
		return err
	}
	a.format = format

	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	a.cfg = cfg

	log, err := logger.New(cfg.Log.JSON, cfg.Log.Level, cmd.ErrOrStderr())
	if err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}
	a.log = log
	a.limiter = ratelimit.New(cfg.LimiterRates())
	return nil
}

func (a *app) stocksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stocks",
		Short: "Store intraday bars for each ticker",
		Long: `Fetch price bars for each ticker and store them under yfinance-data/<SYMBOL>.csv.

Tickers come from --symbols or STOCK_SYMBOLS, otherwise from the first
SYMBOL_LIMIT rows of the S&P 500 constituents list.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("symbols") {
				symbols, _ := cmd.Flags().GetStringSlice("symbols")
				a.cfg.Stocks.Symbols = symbols
			}
			if cmd.Flags().Changed("limit") {
				a.cfg.Stocks.SymbolLimit, _ = cmd.Flags().GetInt("limit")
			}
			if cmd.Flags().Changed("source") {
				a.cfg.Stocks.Source, _ = cmd.Flags().GetString("source")
			}
			if err := a.cfg.ValidateStocks(); err != nil {
				return err
			}

			items, err := a.stockItems(cmd.Context())
			if err != nil {
				return withExitCode(report.ExitFailure, err)
			}
			return a.run(cmd, a.stockFetcher(), stocksKeys, items)
		},
	}

	cmd.Flags().StringSlice("symbols", nil, "tickers to fetch instead of the S&P 500 list")
	cmd.Flags().Int("limit", 10, "number of S&P 500 tickers to fetch")
	cmd.Flags().String("source", config.StockSourceYahoo, "bar source: yahoo or alphavantage")
	return cmd
}

// stockItems returns the configured tickers, or reads them from the S&P 500 list
func (a *app) stockItems(ctx context.Context) ([]fetcher.Item, error) {
	if len(a.cfg.Stocks.Symbols) > 0 {
		return fetcher.Items(a.cfg.Stocks.Symbols...), nil
	}

	lister := wikipedia.NewSP500Lister(a.cfg.Stocks.WikipediaURL, a.limiter)
	symbols, err := lister.ListSymbols(ctx, a.cfg.Stocks.SymbolLimit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list S&P 500 symbols")
	}
	a.log.Info("listed symbols", zap.Int("count", len(symbols)))
	return fetcher.Items(symbols...), nil
}

func (a *app) stockFetcher() fetcher.Fetcher {
	if a.cfg.Stocks.Source == config.StockSourceAlphaVantage {
		return alphavantage.NewDailyFetcher(a.cfg.Stocks.AlphavantageAPIKey, a.cfg.Stocks.AlphavantageBaseURL, a.limiter)
	}
	return yahoo.NewBarsFetcher(a.cfg.Stocks.YahooBaseURL, a.cfg.Stocks.Interval, a.cfg.Stocks.Range, a.limiter)
}

func (a *app) ratesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rates",
		Short: "Store the latest exchange rates for each base currency",
		Long:  "Fetch the latest exchange rates relative to each base currency and store them under exchange-rates/<BASE>.csv.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("base") {
				bases, _ := cmd.Flags().GetStringSlice("base")
				a.cfg.Rates.Bases = bases
			}
			if err := a.cfg.ValidateRates(); err != nil {
				return err
			}

			f := openexchangerates.NewRatesFetcher(a.cfg.Rates.AppID, a.cfg.Rates.BaseURL, a.limiter)
			return a.run(cmd, f, ratesKeys, fetcher.Items(a.cfg.Rates.Bases...))
		},
	}

	cmd.Flags().StringSlice("base", nil, "base currencies (default USD)")
	return cmd
}

func (a *app) cryptoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crypto",
		Short: "Store the top cryptocurrencies by market cap",
		Long:  "Scrape the top N cryptocurrencies from CoinMarketCap and store them under coinmarketcap/top<N>_crypto.csv.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("limit") {
				a.cfg.Crypto.Limit, _ = cmd.Flags().GetInt("limit")
			}
			if err := a.cfg.ValidateCrypto(); err != nil {
				return err
			}

			limit := a.cfg.Crypto.Limit
			f := coinmarketcap.NewTopFetcher(a.cfg.Crypto.URL, limit, a.limiter)
			return a.run(cmd, f, cryptoKeys, fetcher.Items(coinmarketcap.ItemKey(limit)))
		},
	}

	cmd.Flags().Int("limit", 10, "number of cryptocurrencies to store")
	return cmd
}

// run drives one batch through the coordinator and writes the report.
// A batch with failures returns an exitError carrying the report's exit code.
func (a *app) run(cmd *cobra.Command, f fetcher.Fetcher, keys sink.KeyTemplate, items []fetcher.Item) error {
	ctx := cmd.Context()

	s, err := a.newSink(ctx)
	if err != nil {
		return err
	}

	coord := coordinator.New(f, s,
		coordinator.WithConcurrency(a.cfg.Concurrency),
		coordinator.WithItemTimeout(a.cfg.ItemTimeout),
		coordinator.WithRetryPolicy(a.cfg.RetryPolicy()),
		coordinator.WithKeyTemplate(keys),
		coordinator.WithLogger(a.log.Named(cmd.Name())),
	)

	started := time.Now()
	r, err := coord.Run(ctx, items)
	if err != nil {
		return err
	}

	if err := r.Write(cmd.OutOrStdout(), a.format); err != nil {
		return errors.Wrap(err, "failed to write report")
	}

	a.log.Info("run complete",
		zap.String("command", cmd.Name()),
		zap.String("status", string(r.Overall())),
		zap.Duration("elapsed", time.Since(started)))

	if code := r.ExitCode(); code != report.ExitOK {
		return withExitCode(code, nil)
	}
	return nil
}

// newSink builds the configured sink. The storage client is created once
// here and shared by every task of the batch.
func (a *app) newSink(ctx context.Context) (sink.Sink, error) {
	switch a.cfg.Sink.Type {
	case config.SinkS3:
		client, err := a.newS3(ctx, a.cfg.Sink.Region)
		if err != nil {
			return nil, err
		}
		return sink.NewS3Sink(client, a.cfg.Sink.Bucket)
	default:
		return sink.NewFileSink(a.fs, a.cfg.Sink.Dir)
	}
}

func stringFlag(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}
