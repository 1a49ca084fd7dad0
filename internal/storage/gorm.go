package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"formbuilder/internal/database"
)

// Gorm 将键值保存在 kv_entries 表中，Set 为 upsert。
type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (g *Gorm) Get(ctx context.Context, key string) ([]byte, error) {
	var entry database.Entry
	if err := g.db.WithContext(ctx).Where(keyEq(key)).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query entry %q: %w", key, err)
	}
	return []byte(entry.Value), nil
}

func (g *Gorm) Set(ctx context.Context, key string, value []byte) error {
	entry := database.Entry{
		Key:       key,
		Value:     datatypes.JSON(value),
		UpdatedAt: time.Now().UTC(),
	}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("upsert entry %q: %w", key, err)
	}
	return nil
}

func (g *Gorm) Delete(ctx context.Context, key string) error {
	if err := g.db.WithContext(ctx).Where(keyEq(key)).Delete(&database.Entry{}).Error; err != nil {
		return fmt.Errorf("delete entry %q: %w", key, err)
	}
	return nil
}

func keyEq(key string) clause.Eq {
	return clause.Eq{Column: clause.Column{Name: "key"}, Value: key}
}
