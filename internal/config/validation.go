package config

import (
	"fmt"
	"strings"

	"caravan/internal/planner"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Store.validate(); err != nil {
		return err
	}
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.Planner.validate(); err != nil {
		return err
	}
	return nil
}

func (s *StoreConfig) validate() error {
	if strings.TrimSpace(s.RunsPath) == "" {
		return fmt.Errorf("store.runs_path cannot be empty")
	}
	if strings.TrimSpace(s.RoutesPath) == "" {
		return fmt.Errorf("store.routes_path cannot be empty")
	}
	return nil
}

func (m *MarketConfig) validate() error {
	if strings.TrimSpace(m.RESTBaseURL) == "" {
		return fmt.Errorf("market.rest_base_url cannot be empty")
	}
	if m.QuoteScale > 8 {
		return fmt.Errorf("market.quote_scale must be <= 8, got %d", m.QuoteScale)
	}
	return nil
}

func (p *PlannerConfig) validate() error {
	if p.MaxExactStops > planner.MaxExactStops {
		return fmt.Errorf("planner.max_exact_stops must be <= %d, got %d", planner.MaxExactStops, p.MaxExactStops)
	}
	if p.MaxBatch > 1024 {
		return fmt.Errorf("planner.max_batch must be <= 1024, got %d", p.MaxBatch)
	}
	return nil
}
