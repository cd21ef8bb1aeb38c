package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"multicryptobot/src/config"
	"multicryptobot/src/configsvc"

	"github.com/xpwu/go-cmd/arg"
	"github.com/xpwu/go-cmd/cmd"
)

// RegisterConfigCmds 注册系统配置读写命令
func RegisterConfigCmds() {
	var key string

	cmd.RegisterCmd("config-get", "show system config (all keys, or one with -k)", func(args *arg.Arg) {
		args.String(&key, "k", "config key")
		args.Parse()

		withConfig(func(ctx context.Context, s *configSession) error {
			return printSystemConfig(ctx, s.svc, key)
		})
	})

	var (
		setKey   string
		value    string
		typ      string
		desc     string
		category string
	)

	cmd.RegisterCmd("config-set", "set a system config value", func(args *arg.Arg) {
		args.String(&setKey, "k", "config key (required)")
		args.String(&value, "v", "config value (required)")
		args.String(&typ, "type", "boolean|integer|float|json|string (default: inferred)")
		args.String(&desc, "desc", "description")
		args.String(&category, "category", "category (default: general)")
		args.Parse()

		if setKey == "" || value == "" {
			fmt.Println("❌ Error: -k and -v are required")
			fmt.Println("💡 Usage: config-set -k check_interval -v 300 [-type integer]")
			return
		}

		withConfig(func(ctx context.Context, s *configSession) error {
			v, err := parseConfigValue(value, typ)
			if err != nil {
				return err
			}
			if err := s.svc.SetSystemConfig(ctx, setKey, v, typ, desc, category); err != nil {
				return err
			}
			fmt.Printf("✅ %s = %v\n", setKey, v)
			fmt.Printf("💡 A running bot picks this up within the cache TTL (%s)\n", config.AppConfig.CacheTTL())
			return nil
		})
	})
}

// parseConfigValue 按给定类型解析命令行值，未给类型时依次尝试 布尔、整数、浮点、JSON
func parseConfigValue(raw, typ string) (interface{}, error) {
	if typ != "" {
		return configsvc.ParseValue(raw, typ)
	}

	switch strings.ToLower(raw) {
	case "true", "false":
		return strconv.ParseBool(strings.ToLower(raw))
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i, nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f, nil
	}
	if strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[") {
		var v interface{}
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			return v, nil
		}
	}
	return raw, nil
}

func printSystemConfig(ctx context.Context, svc *configsvc.Service, key string) error {
	rows, err := svc.SystemConfigRows(ctx)
	if err != nil {
		return err
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Category != rows[j].Category {
			return rows[i].Category < rows[j].Category
		}
		return rows[i].Key < rows[j].Key
	})

	fmt.Println("⚙️ System Config")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("%-32s %-20s %-8s %-12s %s\n", "Key", "Value", "Type", "Category", "Description")
	fmt.Println(strings.Repeat("-", 80))

	found := false
	for _, r := range rows {
		if key != "" && r.Key != key {
			continue
		}
		found = true
		fmt.Printf("%-32s %-20s %-8s %-12s %s\n", r.Key, r.Value, r.Type, r.Category, r.Description)
	}

	if key != "" && !found {
		return fmt.Errorf("config key %q not found", key)
	}
	return nil
}

// RegisterCacheCmd 注册缓存管理命令
func RegisterCacheCmd() {
	var warm, clearCache, stats bool

	cmd.RegisterCmd("cache", "warm, clear or inspect the config cache", func(args *arg.Arg) {
		args.Bool(&warm, "warm", "load all config into the cache and publish the snapshot")
		args.Bool(&clearCache, "clear", "clear the cache")
		args.Bool(&stats, "stats", "print cache statistics")
		args.Parse()

		if !warm && !clearCache && !stats {
			fmt.Println("❌ Error: one of -warm, -clear, -stats is required")
			return
		}

		withConfig(func(ctx context.Context, s *configSession) error {
			if clearCache {
				s.svc.ClearCache()
				fmt.Println("🧹 Cache cleared")
			}
			if warm {
				res, err := s.svc.WarmCache(ctx)
				if err != nil {
					return fmt.Errorf("cache warm failed: %w", err)
				}
				fmt.Printf("🔥 Cache warmed in %v: %d system keys, %d pairs, %d strategies, %d risk configs\n",
					res.Duration, res.SystemConfig, res.TradingPairs, res.Strategies, res.RiskConfigs)
			}
			if stats {
				st := s.svc.CacheStats()
				fmt.Println("📊 Cache stats:")
				fmt.Printf("├─ Total: %d\n", st.Total)
				fmt.Printf("├─ Active: %d\n", st.Active)
				fmt.Printf("├─ Expired: %d\n", st.Expired)
				fmt.Printf("├─ Approx size: %d bytes\n", st.ApproxBytes)
				fmt.Printf("└─ TTL: %s\n", s.svc.Cache().DefaultTTL())
			}
			return nil
		})
	})
}

// RegisterValidateCmd 注册配置校验命令
func RegisterValidateCmd() {
	cmd.RegisterCmd("validate", "validate the trading configuration in the config store", func(args *arg.Arg) {
		args.Parse()

		withConfig(func(ctx context.Context, s *configSession) error {
			report := s.svc.Validate(ctx)
			printValidation(report)
			if !report.Valid {
				return fmt.Errorf("configuration is invalid (%d errors)", len(report.Errors))
			}
			return nil
		})
	})
}

func printValidation(report configsvc.ValidationReport) {
	for _, e := range report.Errors {
		fmt.Printf("❌ %s\n", e)
	}
	for _, w := range report.Warnings {
		fmt.Printf("⚠️ %s\n", w)
	}
	if report.Valid {
		fmt.Printf("✅ Configuration is valid (%d warnings)\n", len(report.Warnings))
	}
}
