package config

import "strings"

// Config 是 caravan 的主配置载体。
type Config struct {
	App      AppConfig      `toml:"app"`
	Store    StoreConfig    `toml:"store"`
	Market   MarketConfig   `toml:"market"`
	Planner  PlannerConfig  `toml:"planner"`
	Profiles ProfilesConfig `toml:"profiles"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// StoreConfig 指定两个 sqlite 库的位置：规划运行记录与路线库。
type StoreConfig struct {
	RunsPath   string `toml:"runs_path"`
	RoutesPath string `toml:"routes_path"`
}

// MarketConfig 控制从交易所行情构造路线时的行为。
type MarketConfig struct {
	RESTBaseURL        string `toml:"rest_base_url"`
	HTTPTimeoutSeconds int    `toml:"http_timeout_seconds"`
	// QuoteScale 报价转最小货币单位的小数位数，如 2 表示以"分"计。
	QuoteScale int `toml:"quote_scale"`
}

// PlannerConfig 约束对外接口上的规划行为。
type PlannerConfig struct {
	// MaxExactStops 穷举接口允许的最大停靠点数，不得超过算法硬上限 20。
	MaxExactStops int `toml:"max_exact_stops"`
	MaxBatch      int `toml:"max_batch"`
	MaxConcurrent int `toml:"max_concurrent"`
}

// ProfilesConfig 指向路线档案文件。
type ProfilesConfig struct {
	Path  string `toml:"path"`
	Watch bool   `toml:"watch"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
