package config

import "strings"

// 默认值常量
const (
	defaultAppEnv          = "dev"
	defaultAppLogLevel     = "info"
	defaultAppHTTPAddr     = ":9992"
	defaultStoreRunsPath   = "data/db/plan_runs.db"
	defaultStoreRoutesPath = "data/db/routes.db"
	defaultMarketREST      = "https://fapi.binance.com"
	defaultMarketTimeout   = 15
	defaultMarketScale     = 2
	defaultPlannerExact    = 20
	defaultPlannerBatch    = 32
	defaultPlannerWorkers  = 4
	defaultProfilesPath    = "configs/routes.yaml"
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.Planner.applyDefaults(keys)
	c.Profiles.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.runs_path", &s.RunsPath, defaultStoreRunsPath),
		stringFieldDefault("store.routes_path", &s.RoutesPath, defaultStoreRoutesPath),
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("market.rest_base_url", &m.RESTBaseURL, defaultMarketREST),
		fieldDefault{
			key:   "market.http_timeout_seconds",
			need:  func() bool { return m.HTTPTimeoutSeconds <= 0 },
			apply: func() { m.HTTPTimeoutSeconds = defaultMarketTimeout },
		},
		fieldDefault{
			key:   "market.quote_scale",
			need:  func() bool { return m.QuoteScale <= 0 },
			apply: func() { m.QuoteScale = defaultMarketScale },
		},
	)
}

func (p *PlannerConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "planner.max_exact_stops",
			need:  func() bool { return p.MaxExactStops <= 0 },
			apply: func() { p.MaxExactStops = defaultPlannerExact },
		},
		fieldDefault{
			key:   "planner.max_batch",
			need:  func() bool { return p.MaxBatch <= 0 },
			apply: func() { p.MaxBatch = defaultPlannerBatch },
		},
		fieldDefault{
			key:   "planner.max_concurrent",
			need:  func() bool { return p.MaxConcurrent <= 0 },
			apply: func() { p.MaxConcurrent = defaultPlannerWorkers },
		},
	)
}

func (p *ProfilesConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("profiles.path", &p.Path, defaultProfilesPath),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
