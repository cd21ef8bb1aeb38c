package configsvc

import (
	"context"
	"fmt"

	"multicryptobot/src/strategy"
)

// ValidationReport 配置校验结果，Warnings 不影响 Valid
type ValidationReport struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (r *ValidationReport) errorf(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationReport) warnf(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validate 校验配置库中的配置是否足以启动交易
func (s *Service) Validate(ctx context.Context) ValidationReport {
	var report ValidationReport

	pairs, err := s.LoadActivePairs(ctx)
	if err != nil {
		report.errorf("cannot load trading pairs: %v", err)
	} else if len(pairs) == 0 {
		report.errorf("no active trading pairs")
	}

	system, err := s.AllSystemConfig(ctx)
	if err != nil {
		report.errorf("cannot load system config: %v", err)
	} else {
		for _, key := range RequiredSystemKeys {
			if _, ok := system[key]; !ok {
				report.errorf("missing required system config %q", key)
			}
		}
	}

	known := make(map[string]bool)
	for _, t := range strategy.Types() {
		known[string(t)] = true
	}

	total := 0.0
	for _, p := range pairs {
		total += p.MaxPositionPercent

		rows, err := s.PairStrategies(ctx, p.Symbol)
		if err != nil {
			report.errorf("%s: cannot load strategies: %v", p.Symbol, err)
			continue
		}
		enabled := 0
		for _, r := range rows {
			if !r.Enabled {
				continue
			}
			enabled++
			if !known[r.Type] {
				report.errorf("%s: strategy %s has unknown type %q", p.Symbol, r.Name, r.Type)
			}
		}
		if enabled == 0 {
			report.errorf("%s: no enabled strategies", p.Symbol)
		} else if sum := sumWeights(NormalizeWeights(rows)); sum == 0 {
			report.warnf("%s: enabled strategies all have zero weight", p.Symbol)
		}

		if rc, err := s.RiskConfig(ctx, p.Symbol); err == nil && rc != nil {
			if err := LimitsFromRow(*rc).Validate(); err != nil {
				report.errorf("%s: %v", p.Symbol, err)
			}
		} else if err == nil {
			report.warnf("%s: no risk config, defaults apply", p.Symbol)
		}
	}

	if total > 100 {
		report.warnf("total max_position_percent %.1f%% exceeds 100%%", total)
	}

	report.Valid = len(report.Errors) == 0
	return report
}

func sumWeights(w map[string]float64) float64 {
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	return sum
}
