package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/newthinker/backgrid/internal/api/job"
	"github.com/newthinker/backgrid/internal/app"
	"github.com/newthinker/backgrid/internal/logger"
	"github.com/newthinker/backgrid/internal/strategy"
	"github.com/spf13/cobra"
)

var (
	backtestSymbol  string
	backtestFrom    string
	backtestTo      string
	backtestFast    int
	backtestSlow    int
	backtestCapital float64
	backtestCSVDir  string
	backtestJSON    bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest [strategy]",
	Short: "Run backtest on a strategy",
	Long:  "Run a strategy against historical data and show performance statistics",
	Args:  cobra.ExactArgs(1),
	RunE:  runBacktest,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestSymbol, "symbol", "", "Symbol to backtest (required)")
	backtestCmd.Flags().StringVar(&backtestFrom, "from", "", "Start date YYYY-MM-DD (required)")
	backtestCmd.Flags().StringVar(&backtestTo, "to", "", "End date YYYY-MM-DD (default today)")
	backtestCmd.Flags().IntVar(&backtestFast, "fast", 0, "Fast moving average period")
	backtestCmd.Flags().IntVar(&backtestSlow, "slow", 0, "Slow moving average period")
	backtestCmd.Flags().Float64Var(&backtestCapital, "capital", 0, "Initial capital (default from config)")
	backtestCmd.Flags().StringVar(&backtestCSVDir, "csv-dir", "", "Read prices from <dir>/<SYMBOL>.csv instead of Yahoo")
	backtestCmd.Flags().BoolVar(&backtestJSON, "json", false, "Print the job as JSON")

	backtestCmd.MarkFlagRequired("symbol")
	backtestCmd.MarkFlagRequired("from")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	if backtestCSVDir != "" {
		cfg.Data.Provider = "csv"
		cfg.Data.CSVDir = backtestCSVDir
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	application, err := app.New(cmd.Context(), cfg, log)
	if err != nil {
		return fmt.Errorf("creating app: %w", err)
	}
	defer application.Close()

	j, err := application.Submit(cmd.Context(), job.Request{
		Symbol:         backtestSymbol,
		Strategy:       args[0],
		Params: periodParams(backtestFast, backtestSlow,
			cmd.Flags().Changed("fast"), cmd.Flags().Changed("slow")),
		Start:          backtestFrom,
		End:            backtestTo,
		InitialCapital: backtestCapital,
	})
	if err != nil {
		return err
	}

	if backtestJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(j)
	}
	printJob(cmd.OutOrStdout(), j)
	return nil
}

// periodParams sends only the periods given on the command line; with
// neither set it returns nil so the strategy defaults apply.
func periodParams(fast, slow int, fastSet, slowSet bool) strategy.Params {
	if !fastSet && !slowSet {
		return nil
	}
	p := strategy.Params{}
	if fastSet {
		p["fast"] = fast
	}
	if slowSet {
		p["slow"] = slow
	}
	return p
}

func printJob(w io.Writer, j *job.Job) {
	fmt.Fprintln(w, "=== backgrid backtest ===")
	fmt.Fprintf(w, "Job:      %s\n", j.ID)
	fmt.Fprintf(w, "Strategy: %s %s\n", j.Strategy, j.Params)
	fmt.Fprintf(w, "Symbol:   %s\n", j.Symbol)
	fmt.Fprintf(w, "Period:   %s to %s\n", j.Start, j.End)
	fmt.Fprintln(w)

	r := j.Result
	if r == nil {
		fmt.Fprintf(w, "Status:   %s\n", j.Status)
		return
	}
	final := 0.0
	if n := len(r.EquityCurve); n > 0 {
		final = r.EquityCurve[n-1]
	}
	fmt.Fprintf(w, "Bars:         %d\n", len(r.EquityCurve))
	fmt.Fprintf(w, "Final equity: %.2f\n", final)
	fmt.Fprintf(w, "Total return: %.2f%%\n", r.TotalReturn*100)
	fmt.Fprintf(w, "Max drawdown: %.2f%%\n", r.MaxDrawdown*100)
	fmt.Fprintf(w, "Sharpe ratio: %.4f\n", r.SharpeRatio)
	fmt.Fprintf(w, "Runtime:      %.3fs\n", r.RuntimeSeconds)
}
