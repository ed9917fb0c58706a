package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/jwtly10/tradedsl/internal/backtest"
	"github.com/jwtly10/tradedsl/internal/config"
	"github.com/jwtly10/tradedsl/internal/data"
	"github.com/jwtly10/tradedsl/internal/oanda"
	"github.com/jwtly10/tradedsl/internal/rules"
	"github.com/jwtly10/tradedsl/internal/store"
	"github.com/jwtly10/tradedsl/internal/strategy"
	"github.com/jwtly10/tradedsl/internal/tradingview"
	"github.com/jwtly10/tradedsl/internal/types"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("Backtest failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flag.StringVar(&cfg.Rules, "rules", cfg.Rules, "rule text, e.g. \"ENTRY: close > SMA(close, 20)\" (RULES)")
	flag.StringVar(&cfg.StrategyFile, "strategies", cfg.StrategyFile, "YAML strategy file (STRATEGY_FILE)")
	flag.StringVar(&cfg.DataCSV, "data", cfg.DataCSV, "OHLCV CSV file; OANDA is used when empty (DATA_CSV)")
	tradesOut := flag.String("trades-out", "", "write trades CSV to this path")
	equityOut := flag.String("equity-out", "", "write equity curve CSV to this path")
	flag.Parse()

	strategies, err := loadStrategies(cfg)
	if err != nil {
		return err
	}

	series, err := loadSeries(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialise bar data: %w", err)
	}
	slog.Info("Loaded bars", "count", series.Len())

	results, err := strategy.BacktestAll(ctx, strategies, series)
	if err != nil {
		return err
	}

	var runs *store.Store
	if cfg.DBPath != "" {
		if runs, err = store.Open(cfg.DBPath); err != nil {
			return err
		}
		defer runs.Close()
	}

	for i, s := range strategies {
		r := results[i]

		fmt.Printf("\n##### %s #####\n%s\n", s.Name, s.Rules)
		r.Calculate().Print()
		fmt.Println()
		r.PrintTrades()

		if err := tradingview.DumpPineScript(os.Stdout, r.Trades, cfg.DebugDump); err != nil {
			return err
		}

		if runs != nil {
			id, err := runs.SaveRun(ctx, store.Run{Name: s.Name, Rules: s.Text, Config: s.Config, Results: r})
			if err != nil {
				return fmt.Errorf("failed to save run for %s: %w", s.Name, err)
			}
			slog.Info("Saved run", "strategy", s.Name, "id", id)
		}

		suffix := ""
		if len(strategies) > 1 {
			suffix = s.ID
		}
		if err := writeCSV(outputPath(*tradesOut, suffix), r, writeTrades); err != nil {
			return err
		}
		if err := writeCSV(outputPath(*equityOut, suffix), r, writeEquity); err != nil {
			return err
		}
	}
	return nil
}

func loadStrategies(cfg *config.Config) ([]*strategy.Strategy, error) {
	if cfg.StrategyFile == "" {
		if cfg.Rules == "" {
			return nil, errors.New("no rules given, set RULES or STRATEGY_FILE")
		}
		s, err := strategy.New("cli", cfg.Rules)
		if err != nil {
			return nil, err
		}
		s.Config = cfg.Backtest()
		return []*strategy.Strategy{s}, nil
	}

	defs, err := rules.LoadFile(cfg.StrategyFile)
	if err != nil {
		return nil, err
	}

	strategies := make([]*strategy.Strategy, 0, len(defs))
	for _, def := range defs {
		s, err := strategy.FromDefinition(def)
		if err != nil {
			return nil, err
		}
		s.Config = cfg.Backtest().With(def.Overrides)
		strategies = append(strategies, s)
	}
	slog.Info("Loaded strategies", "file", cfg.StrategyFile, "count", len(strategies))
	return strategies, nil
}

func loadSeries(ctx context.Context, cfg *config.Config) (*types.Series, error) {
	if cfg.DataCSV != "" {
		return data.LoadCSV(cfg.DataCSV)
	}

	if cfg.OandaAccountID == "" || cfg.OandaAPIKey == "" {
		return nil, errors.New("no DATA_CSV given and OANDA_ACCOUNT_ID/OANDA_API_KEY not set")
	}
	granularity, err := oanda.ParseGranularity(cfg.OandaGranularity)
	if err != nil {
		return nil, err
	}

	client := oanda.NewService(cfg.OandaAccountID, cfg.OandaAPIKey, cfg.OandaAPIURL)
	to := time.Now()
	bars, err := client.FetchBars(ctx, oanda.CandleRequest{
		Instrument:  oanda.InstrumentName(cfg.OandaInstrument),
		Granularity: granularity,
		From:        to.AddDate(0, 0, -cfg.LookbackDays),
		To:          to,
	})
	if err != nil {
		return nil, err
	}
	return types.NewSeries(bars)
}

func outputPath(path, suffix string) string {
	if path == "" || suffix == "" {
		return path
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-" + suffix + ext
}

func writeTrades(f *os.File, r *backtest.Results) error { return data.WriteTradesCSV(f, r.Trades) }
func writeEquity(f *os.File, r *backtest.Results) error { return data.WriteEquityCSV(f, r.EquityCurve) }

func writeCSV(path string, r *backtest.Results, write func(*os.File, *backtest.Results) error) error {
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f, r); err != nil {
		f.Close()
		return err
	}
	slog.Info("Wrote csv", "path", path)
	return f.Close()
}
