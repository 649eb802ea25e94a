package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mindbloom/mindbloom/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpgradeStep 把表从 From 版本升级到 From+1
type UpgradeStep struct {
	From  int
	Apply func(tx *gorm.DB) error
}

// TableSpec 声明式的受管表定义
type TableSpec struct {
	Name     string
	Version  int
	Model    any
	Upgrades []UpgradeStep
}

// ManagedTables 受管表清单，顺序即创建顺序
func ManagedTables() []TableSpec {
	return []TableSpec{
		{Name: "users", Version: 1, Model: &schema.User{}},
		{Name: "mood_data", Version: 1, Model: &schema.MoodSample{}},
		{Name: "task_data", Version: 1, Model: &schema.TaskSnapshot{}},
		{Name: "ai_suggestions", Version: 1, Model: &schema.Suggestion{}},
		{Name: "quotes", Version: 1, Model: &schema.Quote{}},
	}
}

type TableAction string

const (
	ActionCreated  TableAction = "created"
	ActionTracked  TableAction = "tracked"  // 表已存在但无版本记录，直接登记
	ActionUpgraded TableAction = "upgraded"
	ActionCurrent  TableAction = "current"
	ActionAhead    TableAction = "ahead" // 库中版本高于声明版本，不降级
	ActionFailed   TableAction = "failed"
)

type TableStatus struct {
	Name   string
	Action TableAction
	From   int
	To     int
	Backup string
	Err    error
}

// SchemaReport 一次表结构管理的逐表结果
type SchemaReport struct {
	Tables []TableStatus
}

// Failed 返回失败的表名
func (r *SchemaReport) Failed() []string {
	if r == nil {
		return nil
	}
	var out []string
	for _, t := range r.Tables {
		if t.Action == ActionFailed {
			out = append(out, t.Name)
		}
	}
	return out
}

// Migrator 负责建表、版本登记、升级与优化
type Migrator struct {
	db    *gorm.DB
	specs []TableSpec
	now   func() time.Time
}

func NewMigrator(db *gorm.DB, specs []TableSpec) *Migrator {
	return &Migrator{db: db, specs: specs, now: time.Now}
}

// EnsureSchema 逐表收敛到声明版本。单表失败不影响其余表，所有失败合并后返回。
// 重复执行是幂等的。
func (m *Migrator) EnsureSchema(ctx context.Context) (*SchemaReport, error) {
	db := m.db.WithContext(ctx)
	report := &SchemaReport{}

	if err := db.AutoMigrate(&schema.SchemaVersion{}); err != nil {
		err = fmt.Errorf("创建 schema_versions 失败: %w", err)
		for _, spec := range m.specs {
			report.Tables = append(report.Tables, TableStatus{Name: spec.Name, Action: ActionFailed, To: spec.Version, Err: err})
		}
		return report, err
	}

	var errs []error
	for _, spec := range m.specs {
		st := m.ensureTable(db, spec)
		report.Tables = append(report.Tables, st)
		if st.Err != nil {
			slog.Error("表结构管理失败", "table", spec.Name, "error", st.Err)
			errs = append(errs, st.Err)
			continue
		}
		m.optimize(db, spec.Name)
	}
	return report, errors.Join(errs...)
}

func (m *Migrator) ensureTable(db *gorm.DB, spec TableSpec) TableStatus {
	st := TableStatus{Name: spec.Name, To: spec.Version}
	fail := func(err error) TableStatus {
		st.Action = ActionFailed
		st.Err = err
		return st
	}

	if !db.Migrator().HasTable(spec.Name) {
		if err := db.Migrator().CreateTable(spec.Model); err != nil {
			return fail(fmt.Errorf("创建表 %s 失败: %w", spec.Name, err))
		}
		if err := m.recordVersion(db, spec.Name, spec.Version); err != nil {
			return fail(err)
		}
		slog.Info("已创建表", "table", spec.Name, "version", spec.Version)
		st.Action = ActionCreated
		return st
	}

	var ver schema.SchemaVersion
	err := db.Where("table_name = ?", spec.Name).Take(&ver).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := m.recordVersion(db, spec.Name, spec.Version); err != nil {
			return fail(err)
		}
		st.Action = ActionTracked
		return st
	}
	if err != nil {
		return fail(fmt.Errorf("读取表 %s 版本失败: %w", spec.Name, err))
	}

	st.From = ver.Version
	switch {
	case ver.Version == spec.Version:
		st.Action = ActionCurrent
	case ver.Version > spec.Version:
		slog.Warn("表版本高于程序声明版本，保持不变", "table", spec.Name, "db_version", ver.Version, "declared", spec.Version)
		st.Action = ActionAhead
	default:
		backup, err := m.upgrade(db, spec, ver.Version)
		st.Backup = backup
		if err != nil {
			return fail(err)
		}
		slog.Info("已升级表", "table", spec.Name, "from", ver.Version, "to", spec.Version, "backup", backup)
		st.Action = ActionUpgraded
	}
	return st
}

func (m *Migrator) recordVersion(db *gorm.DB, table string, version int) error {
	row := schema.SchemaVersion{Table: table, Version: version}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "table_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"version", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("登记表 %s 版本失败: %w", table, err)
	}
	return nil
}

// upgrade 先整表备份，再在事务中按顺序执行升级步骤并更新版本号
func (m *Migrator) upgrade(db *gorm.DB, spec TableSpec, from int) (string, error) {
	backup := fmt.Sprintf("%s_backup_%d", spec.Name, m.now().UnixMilli())
	if err := db.Exec("CREATE TABLE ? AS SELECT * FROM ?", clause.Table{Name: backup}, clause.Table{Name: spec.Name}).Error; err != nil {
		return "", fmt.Errorf("备份表 %s 失败: %w", spec.Name, err)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		for v := from; v < spec.Version; v++ {
			for _, step := range spec.Upgrades {
				if step.From != v {
					continue
				}
				if err := step.Apply(tx); err != nil {
					return fmt.Errorf("升级表 %s v%d->v%d 失败: %w", spec.Name, v, v+1, err)
				}
			}
		}
		return tx.Model(&schema.SchemaVersion{}).
			Where("table_name = ?", spec.Name).
			Update("version", spec.Version).Error
	})
	return backup, err
}

// optimize 尽力而为，失败只记日志
func (m *Migrator) optimize(db *gorm.DB, table string) {
	var sql string
	switch db.Dialector.Name() {
	case "mysql":
		sql = "OPTIMIZE TABLE ?"
	case "sqlite":
		sql = "ANALYZE ?"
	default:
		return
	}
	if err := db.Exec(sql, clause.Table{Name: table}).Error; err != nil {
		slog.Warn("表优化失败", "table", table, "error", err)
	}
}
