package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"multicryptobot/src/audit"
	"multicryptobot/src/database"

	"github.com/xpwu/go-cmd/arg"
	"github.com/xpwu/go-cmd/cmd"
)

// RegisterHistoryCmds 注册事件、成交、快照查询命令
func RegisterHistoryCmds() {
	registerEventsCmd()
	registerOrdersCmd()
	registerPruneCmd()
}

func registerEventsCmd() {
	var (
		symbol, types, severity, corr string
		hours, limit                  int
		stats                         bool
	)

	cmd.RegisterCmd("events", "list audit events (orders, signals, errors)", func(args *arg.Arg) {
		args.String(&symbol, "s", "symbol filter")
		args.String(&types, "type", "comma separated event types, e.g. ORDER_FAILED,ERROR")
		args.String(&severity, "severity", "INFO|WARNING|ERROR")
		args.String(&corr, "corr", "correlation id")
		args.Int(&hours, "h", "only events from the last N hours (default: 24)")
		args.Int(&limit, "l", "max rows (default: 50)")
		args.Bool(&stats, "stats", "print counts per type and severity instead of rows")
		args.Parse()

		if hours <= 0 {
			hours = 24
		}
		if limit <= 0 {
			limit = 50
		}
		since := time.Now().Add(-time.Duration(hours) * time.Hour)

		withConfig(func(ctx context.Context, s *configSession) error {
			if stats {
				return printEventStats(ctx, s.db, since, hours)
			}

			events, err := s.db.ListEvents(ctx, eventFilter(symbol, types, severity, corr, since, limit))
			if err != nil {
				return err
			}

			fmt.Printf("📜 Events (last %dh): %d\n", hours, len(events))
			fmt.Println(strings.Repeat("=", 100))
			for _, e := range events {
				fmt.Printf("%s %-14s %-7s %-10s %s\n",
					e.Timestamp.UTC().Format("01-02 15:04:05"), e.Type, e.Severity, e.Symbol, e.Message)
				if e.CorrelationID != "" || e.ErrorCode != "" {
					fmt.Printf("   corr=%s code=%s\n", e.CorrelationID, e.ErrorCode)
				}
			}
			return nil
		})
	})
}

// eventFilter 命令行参数转换为查询条件
func eventFilter(symbol, types, severity, corr string, since time.Time, limit int) database.EventFilter {
	f := database.EventFilter{
		Symbol:        strings.ToUpper(symbol),
		Severity:      audit.Severity(strings.ToUpper(severity)),
		CorrelationID: corr,
		Since:         since,
		Limit:         limit,
	}
	for _, t := range strings.Split(types, ",") {
		if t = strings.TrimSpace(t); t != "" {
			f.Types = append(f.Types, audit.EventType(strings.ToUpper(t)))
		}
	}
	return f
}

func printEventStats(ctx context.Context, db *database.PostgresDB, since time.Time, hours int) error {
	counts, err := db.EventStats(ctx, since)
	if err != nil {
		return err
	}

	fmt.Printf("📊 Event stats (last %dh)\n", hours)
	fmt.Println(strings.Repeat("=", 40))
	fmt.Printf("%-16s %-8s %8s\n", "Type", "Severity", "Count")
	fmt.Println(strings.Repeat("-", 40))
	total := 0
	for _, c := range counts {
		total += c.Count
		fmt.Printf("%-16s %-8s %8d\n", c.Type, c.Severity, c.Count)
	}
	fmt.Println(strings.Repeat("-", 40))
	fmt.Printf("%-25s %8d\n", "Total", total)
	return nil
}

func registerOrdersCmd() {
	var symbol string
	var limit int

	cmd.RegisterCmd("orders", "list executed orders", func(args *arg.Arg) {
		args.String(&symbol, "s", "symbol filter (default: all pairs)")
		args.Int(&limit, "l", "max rows (default: 20)")
		args.Parse()

		if limit <= 0 {
			limit = 20
		}

		withConfig(func(ctx context.Context, s *configSession) error {
			orders, err := s.db.GetTradeHistory(ctx, strings.ToUpper(symbol), limit)
			if err != nil {
				return err
			}

			fmt.Printf("💼 Orders: %d\n", len(orders))
			fmt.Println(strings.Repeat("=", 110))
			fmt.Printf("%-15s %-12s %-12s %14s %14s %12s %12s %-6s %s\n",
				"Time", "Symbol", "Type", "Price", "Amount", "Value", "PnL", "Mode", "Strategy")
			fmt.Println(strings.Repeat("-", 110))
			for _, o := range orders {
				mode := "live"
				if o.PaperTrade {
					mode = "paper"
				}
				fmt.Printf("%-15s %-12s %-12s %14s %14s %12s %12s %-6s %s\n",
					o.ExecutedAt.UTC().Format("01-02 15:04:05"),
					o.Symbol,
					o.Type,
					o.Price.StringFixed(4),
					o.Amount.String(),
					o.TotalValue.StringFixed(2),
					o.RealizedPnL.StringFixed(2),
					mode,
					o.Strategy)
			}
			return nil
		})
	})
}

func registerPruneCmd() {
	var days int

	cmd.RegisterCmd("snapshots-prune", "delete portfolio snapshots older than N days", func(args *arg.Arg) {
		args.Int(&days, "days", "keep this many days (default: 30)")
		args.Parse()

		if days <= 0 {
			days = 30
		}

		withConfig(func(ctx context.Context, s *configSession) error {
			n, err := s.db.PruneSnapshots(ctx, time.Now().AddDate(0, 0, -days))
			if err != nil {
				return err
			}
			fmt.Printf("🧹 Deleted %d snapshots older than %d days\n", n, days)
			return nil
		})
	})
}
