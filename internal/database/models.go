package database

import (
	"time"

	"gorm.io/datatypes"
)

// Entry 表示键值存储中的一条记录，Value 保存完整的 JSON 快照。
type Entry struct {
	Key       string         `gorm:"primaryKey;size:255"`
	Value     datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time
}

// TableName 固定表名，避免随结构体改名漂移。
func (Entry) TableName() string {
	return "kv_entries"
}
