package workflow

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mautops/qms-workflow/internal/repository"
	"github.com/mautops/qms-workflow/internal/utils"
)

// Kind 业务模块类型,作为待办和审计日志的分区键
type Kind string

const (
	KindComplaint             Kind = "complaint"
	KindRework                Kind = "rework"
	KindPerformanceInspection Kind = "performance-inspection"
	KindShipmentInspection    Kind = "shipment-inspection"
	KindSupplierComplaint     Kind = "supplier-complaint"
)

var kindPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,63}$`)

// TableDescriptor 业务表描述
// 引擎只通过这里声明的列访问业务表,可选列为空时不写入
type TableDescriptor struct {
	Kind        Kind   `yaml:"kind"`
	TitlePrefix string `yaml:"title_prefix"`
	Table       string `yaml:"table"`
	NumericID   bool   `yaml:"numeric_id"`

	IDColumn      string `yaml:"id_column"`
	NumberColumn  string `yaml:"number_column"`
	StatusColumn  string `yaml:"status_column"`
	CreatorColumn string `yaml:"creator_column"`

	SubmitTimeColumn  string `yaml:"submit_time_column"`
	AuditorColumn     string `yaml:"auditor_column"`
	AuditorNameColumn string `yaml:"auditor_name_column"`
	AuditDateColumn   string `yaml:"audit_date_column"`
	AuditRemarkColumn string `yaml:"audit_remark_column"`
	UpdatedAtColumn   string `yaml:"updated_at_column"`

	Statuses StatusSpellings `yaml:"statuses"`
}

// NewTableDescriptor 使用默认列名创建描述
func NewTableDescriptor(kind Kind, table string, numberColumn string, titlePrefix string) *TableDescriptor {
	return &TableDescriptor{
		Kind:              kind,
		TitlePrefix:       titlePrefix,
		Table:             table,
		NumericID:         true,
		IDColumn:          "ID",
		NumberColumn:      numberColumn,
		StatusColumn:      "Status",
		CreatorColumn:     "CreatedBy",
		SubmitTimeColumn:  "SubmitTime",
		AuditorColumn:     "Auditor",
		AuditorNameColumn: "AuditorName",
		AuditDateColumn:   "AuditDate",
		AuditRemarkColumn: "AuditRemark",
		UpdatedAtColumn:   "UpdatedAt",
		Statuses:          DefaultStatusSpellings(),
	}
}

// Clone 复制描述
func (d *TableDescriptor) Clone() *TableDescriptor {
	c := *d
	c.Statuses = StatusSpellings{
		Draft:     append([]string(nil), d.Statuses.Draft...),
		Submitted: append([]string(nil), d.Statuses.Submitted...),
		Approved:  append([]string(nil), d.Statuses.Approved...),
		Rejected:  append([]string(nil), d.Statuses.Rejected...),
	}
	return &c
}

// Validate 校验表名和列名,防止注入
func (d *TableDescriptor) Validate() error {
	if !kindPattern.MatchString(string(d.Kind)) {
		return fmt.Errorf("invalid workflow kind %q", d.Kind)
	}

	required := []struct {
		field string
		value string
	}{
		{"table", d.Table},
		{"id_column", d.IDColumn},
		{"number_column", d.NumberColumn},
		{"status_column", d.StatusColumn},
		{"creator_column", d.CreatorColumn},
	}
	for _, col := range required {
		if err := utils.ValidateIdentifier(col.value); err != nil {
			return fmt.Errorf("%s: %w", col.field, err)
		}
	}

	optional := []struct {
		field string
		value string
	}{
		{"submit_time_column", d.SubmitTimeColumn},
		{"auditor_column", d.AuditorColumn},
		{"auditor_name_column", d.AuditorNameColumn},
		{"audit_date_column", d.AuditDateColumn},
		{"audit_remark_column", d.AuditRemarkColumn},
		{"updated_at_column", d.UpdatedAtColumn},
	}
	for _, col := range optional {
		if col.value == "" {
			continue
		}
		if err := utils.ValidateIdentifier(col.value); err != nil {
			return fmt.Errorf("%s: %w", col.field, err)
		}
	}

	if err := d.Statuses.Validate(); err != nil {
		return fmt.Errorf("statuses: %w", err)
	}
	return nil
}

// Title 待办标题前缀
func (d *TableDescriptor) Title() string {
	if d.TitlePrefix != "" {
		return d.TitlePrefix
	}
	return string(d.Kind)
}

// recordTable 转换为仓储使用的表结构
func (d *TableDescriptor) recordTable() repository.RecordTable {
	return repository.RecordTable{
		Name:          d.Table,
		IDColumn:      d.IDColumn,
		NumberColumn:  d.NumberColumn,
		StatusColumn:  d.StatusColumn,
		CreatorColumn: d.CreatorColumn,
	}
}

// ErrInvalidID 业务 ID 与表的主键类型不符
var ErrInvalidID = errors.New("invalid business id")

// bindID 按主键类型转换业务 ID
func (d *TableDescriptor) bindID(businessID string) (interface{}, error) {
	id := strings.TrimSpace(businessID)
	if id == "" {
		return nil, ErrInvalidID
	}
	if !d.NumericID {
		return id, nil
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, ErrInvalidID
	}
	return n, nil
}

// CanonicalID 业务 ID 的规范写法,待办和审计日志都按它关联
// 数字主键去掉前导零,"001" 和 "1" 指向同一条记录
func (d *TableDescriptor) CanonicalID(businessID string) (string, error) {
	id, err := d.bindID(businessID)
	if err != nil {
		return "", err
	}
	return keyOf(id), nil
}

func keyOf(id interface{}) string {
	if n, ok := id.(int64); ok {
		return strconv.FormatInt(n, 10)
	}
	return id.(string)
}
