package workflow

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Registry 业务模块注册表
// 同时作为允许访问的业务表白名单
type Registry struct {
	mu          sync.RWMutex
	descriptors map[Kind]*TableDescriptor
}

// NewRegistry 创建注册表,每个描述都必须通过校验
func NewRegistry(descriptors ...*TableDescriptor) (*Registry, error) {
	r := &Registry{descriptors: make(map[Kind]*TableDescriptor, len(descriptors))}
	for _, d := range descriptors {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("invalid descriptor for %q: %w", d.Kind, err)
		}
		r.descriptors[d.Kind] = d.Clone()
	}
	return r, nil
}

// builtinDescriptors 内置的五个业务模块
func builtinDescriptors() []*TableDescriptor {
	shipment := NewTableDescriptor(KindShipmentInspection, "ShipmentReports", "ReportNo", "出货检验报告")
	shipment.AuditorColumn = "AuditBy"
	shipment.AuditorNameColumn = "AuditByName"
	shipment.AuditDateColumn = "AuditTime"

	return []*TableDescriptor{
		NewTableDescriptor(KindComplaint, "ComplaintRegister", "OrderNo", "客户投诉"),
		NewTableDescriptor(KindRework, "ProductionReworkRegister", "OrderNo", "生产返工"),
		NewTableDescriptor(KindPerformanceInspection, "PerformanceReports", "ReportNo", "性能检验报告"),
		shipment,
		NewTableDescriptor(KindSupplierComplaint, "SupplierComplaints", "ComplaintNo", "供应商投诉"),
	}
}

// DefaultRegistry 返回内置业务模块的注册表
func DefaultRegistry() *Registry {
	r, err := NewRegistry(builtinDescriptors()...)
	if err != nil {
		panic(err)
	}
	return r
}

// registryFile 注册表配置文件格式
type registryFile struct {
	Modules []yaml.Node `yaml:"modules"`
}

// LoadRegistry 从 YAML 文件加载注册表
// 文件中的模块覆盖同名内置模块,未出现的字段沿用内置值
func LoadRegistry(path string) (*Registry, error) {
	base := DefaultRegistry()
	if path == "" {
		return base, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse registry file: %w", err)
	}

	descriptors := make(map[Kind]*TableDescriptor, len(base.descriptors))
	for kind, d := range base.descriptors {
		descriptors[kind] = d
	}

	for i := range file.Modules {
		node := &file.Modules[i]

		var head struct {
			Kind Kind `yaml:"kind"`
		}
		if err := node.Decode(&head); err != nil {
			return nil, fmt.Errorf("failed to decode module %d: %w", i, err)
		}
		if head.Kind == "" {
			return nil, fmt.Errorf("module %d: kind is required", i)
		}

		d, ok := descriptors[head.Kind]
		if ok {
			d = d.Clone()
		} else {
			d = NewTableDescriptor(head.Kind, "", "", "")
		}
		if err := node.Decode(d); err != nil {
			return nil, fmt.Errorf("failed to decode module %q: %w", head.Kind, err)
		}
		descriptors[head.Kind] = d
	}

	list := make([]*TableDescriptor, 0, len(descriptors))
	for _, d := range descriptors {
		list = append(list, d)
	}
	return NewRegistry(list...)
}

// Lookup 查找业务模块,返回副本
func (r *Registry) Lookup(kind Kind) (*TableDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[kind]
	if !ok {
		return nil, false
	}
	return d.Clone(), true
}

// Kinds 返回已注册的业务模块类型
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]Kind, 0, len(r.descriptors))
	for kind := range r.descriptors {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Allows 判断描述是否与注册的业务模块一致
func (r *Registry) Allows(d *TableDescriptor) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	registered, ok := r.descriptors[d.Kind]
	return ok && registered.Table == d.Table
}

// Replace 用另一个注册表的内容替换当前内容,用于配置热加载
func (r *Registry) Replace(other *Registry) {
	other.mu.RLock()
	descriptors := make(map[Kind]*TableDescriptor, len(other.descriptors))
	for kind, d := range other.descriptors {
		descriptors[kind] = d.Clone()
	}
	other.mu.RUnlock()

	r.mu.Lock()
	r.descriptors = descriptors
	r.mu.Unlock()
}
