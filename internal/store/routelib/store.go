package routelib

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"caravan/internal/route"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrNotFound 路线库中不存在该名字的路线。
var ErrNotFound = errors.New("route not found")

type routeModel struct {
	ID        uint           `gorm:"primaryKey"`
	Name      string         `gorm:"uniqueIndex;size:128;not null"`
	Symbol    string         `gorm:"size:64"`
	Values    datatypes.JSON `gorm:"not null"`
	Note      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (routeModel) TableName() string { return "routes" }

// Store 基于 Gorm + SQLite 的命名路线库。
type Store struct {
	db *gorm.DB
}

// New 打开（或创建）路线库。
func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("routelib: 路线库路径不能为空")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(&sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("routelib: 打开数据库失败: %w", err)
	}
	if err := db.AutoMigrate(&routeModel{}); err != nil {
		return nil, fmt.Errorf("routelib: 迁移失败: %w", err)
	}
	return &Store{db: db}, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Save 按名字新增或覆盖一条路线。
func (s *Store) Save(ctx context.Context, r route.Route, note string) error {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return fmt.Errorf("routelib: 路线名不能为空")
	}
	if err := r.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(r.Values())
	if err != nil {
		return err
	}
	model := routeModel{
		Name:   name,
		Symbol: strings.TrimSpace(r.Symbol),
		Values: datatypes.JSON(raw),
		Note:   note,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"symbol", "values", "note", "updated_at"}),
		}).
		Create(&model).Error
}

// Get 按名字取一条路线。
func (s *Store) Get(ctx context.Context, name string) (route.Route, error) {
	var model routeModel
	err := s.db.WithContext(ctx).Where("name = ?", strings.TrimSpace(name)).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return route.Route{}, ErrNotFound
	}
	if err != nil {
		return route.Route{}, err
	}
	return model.toRoute()
}

// Entry 是列表接口返回的路线摘要。
type Entry struct {
	Name      string    `json:"name"`
	Symbol    string    `json:"symbol,omitempty"`
	Stops     int       `json:"stops"`
	Note      string    `json:"note,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// List 返回路线摘要，按更新时间倒序。
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	var models []routeModel
	if err := s.db.WithContext(ctx).Order("updated_at DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(models))
	for _, m := range models {
		var values []int64
		if err := json.Unmarshal(m.Values, &values); err != nil {
			return nil, fmt.Errorf("routelib: 路线 %s 数据损坏: %w", m.Name, err)
		}
		out = append(out, Entry{
			Name:      m.Name,
			Symbol:    m.Symbol,
			Stops:     len(values),
			Note:      m.Note,
			UpdatedAt: m.UpdatedAt,
		})
	}
	return out, nil
}

// Delete 删除命名路线，不存在时返回 ErrNotFound。
func (s *Store) Delete(ctx context.Context, name string) error {
	res := s.db.WithContext(ctx).Where("name = ?", strings.TrimSpace(name)).Delete(&routeModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (m routeModel) toRoute() (route.Route, error) {
	var values []int64
	if err := json.Unmarshal(m.Values, &values); err != nil {
		return route.Route{}, fmt.Errorf("routelib: 路线 %s 数据损坏: %w", m.Name, err)
	}
	r := route.FromValues(values)
	r.Name = m.Name
	r.Symbol = m.Symbol
	return r, nil
}
