package schema

import "time"

// SchemaVersion 记录每张业务表的结构版本，由迁移器独占维护。
// 每张受管表一行，首次遇到该表时创建。
type SchemaVersion struct {
	ID        int       `gorm:"primaryKey;autoIncrement"`
	Table     string    `gorm:"column:table_name;size:50;not null;uniqueIndex:uk_schema_versions_table"`
	Version   int       `gorm:"not null;default:1"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (SchemaVersion) TableName() string {
	return "schema_versions"
}
