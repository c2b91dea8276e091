package profiles

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"caravan/internal/logger"
	"caravan/internal/route"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Profile 描述档案文件里的一条命名路线。
type Profile struct {
	ID          string  `mapstructure:"id" yaml:"id"`
	Description string  `mapstructure:"description" yaml:"description"`
	Symbol      string  `mapstructure:"symbol" yaml:"symbol"`
	Stops       []int64 `mapstructure:"stops" yaml:"stops"`
}

// FileConfig 映射 routes 档案文件。
type FileConfig struct {
	Routes map[string]Profile `mapstructure:"routes" yaml:"routes"`
}

// Snapshot 公开的档案快照。
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Profiles map[string]Profile
}

// ChangeListener 在 registry 重载时触发。
type ChangeListener func(Snapshot)

// 每条档案必须满足的结构约束。
const profileSchemaJSON = `{
	"type": "object",
	"required": ["stops"],
	"properties": {
		"id": {"type": "string"},
		"description": {"type": "string"},
		"symbol": {"type": "string"},
		"stops": {"type": "array", "items": {"type": "integer"}, "minItems": 1}
	},
	"additionalProperties": false
}`

var (
	schemaOnce    sync.Once
	profileSchema *jsonschema.Schema
	schemaCompile error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("profile.json", strings.NewReader(profileSchemaJSON)); err != nil {
			schemaCompile = err
			return
		}
		profileSchema, schemaCompile = compiler.Compile("profile.json")
	})
	return profileSchema, schemaCompile
}

// Registry 管理路线档案，支持热更新。
type Registry struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewRegistry 读取档案文件；watch 为真时监听文件变更自动重载。
func NewRegistry(path string, watch bool) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("route profile registry requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read route profiles failed: %w", err)
	}
	r := &Registry{path: path, v: v}
	if err := r.reload(); err != nil {
		return nil, err
	}
	if watch {
		v.OnConfigChange(func(evt fsnotify.Event) {
			if err := r.reload(); err != nil {
				logger.Errorf("route profiles reload failed: %v", err)
				return
			}
			r.notifyListeners()
		})
		v.WatchConfig()
	}
	return r, nil
}

// Snapshot 返回当前档案集。
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// Profile 返回指定 ID 的档案。
func (r *Registry) Profile(id string) (Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.snapshot.Profiles[strings.TrimSpace(id)]
	return p, ok
}

// Resolve 把档案转成可规划的路线。
func (r *Registry) Resolve(id string) (route.Route, bool) {
	p, ok := r.Profile(id)
	if !ok {
		return route.Route{}, false
	}
	rt := route.FromValues(p.Stops)
	rt.Name = p.ID
	rt.Symbol = p.Symbol
	return rt, true
}

// Names 返回所有档案 ID，升序。
func (r *Registry) Names() []string {
	snap := r.Snapshot()
	out := make([]string, 0, len(snap.Profiles))
	for id := range snap.Profiles {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// AddListener 注册重载回调。
func (r *Registry) AddListener(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Registry) reload() error {
	cfg, err := readProfileFile(r.path)
	if err != nil {
		return err
	}
	profiles := make(map[string]Profile, len(cfg.Routes))
	for name, p := range cfg.Routes {
		norm := normalizeProfile(name, p)
		profiles[norm.ID] = norm
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Profiles: profiles,
	}
	r.mu.Unlock()
	logger.Infof("路线档案加载完成：%d 条（%s）", len(profiles), filepath.Base(r.path))
	return nil
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := cloneSnapshot(r.snapshot)
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer safeRecover("route profile listener")
			cb(snap)
		}(fn)
	}
}

func normalizeProfile(name string, p Profile) Profile {
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		p.ID = strings.TrimSpace(name)
	}
	p.Description = strings.TrimSpace(p.Description)
	p.Symbol = strings.TrimSpace(p.Symbol)
	return p
}

func readProfileFile(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read route profiles failed: %w", err)
	}
	if err := validateProfileFile(raw); err != nil {
		return FileConfig{}, err
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse route profiles failed: %w", err)
	}
	return cfg, nil
}

// validateProfileFile 用 JSON Schema 校验每条档案的结构。
func validateProfileFile(raw []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile profile schema failed: %w", err)
	}
	var generic struct {
		Routes map[string]any `yaml:"routes"`
	}
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("parse route profiles failed: %w", err)
	}
	for name, node := range generic.Routes {
		inst, err := toJSONValue(node)
		if err != nil {
			return fmt.Errorf("route profile %s invalid: %w", name, err)
		}
		if err := schema.Validate(inst); err != nil {
			return fmt.Errorf("route profile %s invalid: %w", name, err)
		}
	}
	return nil
}

// toJSONValue 走一遍 JSON 编解码，把 YAML 解码产物归一成 schema 校验认识的类型。
func toJSONValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := Snapshot{
		Version:  src.Version,
		LoadedAt: src.LoadedAt,
		Profiles: make(map[string]Profile, len(src.Profiles)),
	}
	for id, p := range src.Profiles {
		dst.Profiles[id] = p
	}
	return dst
}

func safeRecover(tag string) {
	if r := recover(); r != nil {
		logger.Errorf("%s panic: %v", tag, r)
	}
}
