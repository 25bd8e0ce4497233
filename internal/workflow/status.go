package workflow

import "fmt"

// Status 审批状态
type Status int

const (
	StatusUnknown Status = iota
	StatusDraft
	StatusSubmitted
	StatusApproved
	StatusRejected
)

// String 返回状态名称
func (s Status) String() string {
	switch s {
	case StatusDraft:
		return "Draft"
	case StatusSubmitted:
		return "Submitted"
	case StatusApproved:
		return "Approved"
	case StatusRejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// StatusSpellings 业务表中各状态的写法
// 每组第一个值是写入时使用的写法,其余只用于识别
type StatusSpellings struct {
	Draft     []string `yaml:"draft"`
	Submitted []string `yaml:"submitted"`
	Approved  []string `yaml:"approved"`
	Rejected  []string `yaml:"rejected"`
}

// DefaultStatusSpellings 各业务模块通用的状态写法
func DefaultStatusSpellings() StatusSpellings {
	return StatusSpellings{
		Draft:     []string{"Saved", "Draft", "draft", "Generated"},
		Submitted: []string{"Submitted"},
		Approved:  []string{"Approved"},
		Rejected:  []string{"Rejected", "rejected"},
	}
}

type statusGroup struct {
	status    Status
	spellings []string
}

func (s StatusSpellings) groups() []statusGroup {
	return []statusGroup{
		{StatusDraft, s.Draft},
		{StatusSubmitted, s.Submitted},
		{StatusApproved, s.Approved},
		{StatusRejected, s.Rejected},
	}
}

// Canonical 将表中的状态值映射为标准状态
func (s StatusSpellings) Canonical(raw string) Status {
	for _, g := range s.groups() {
		for _, spelling := range g.spellings {
			if spelling == raw {
				return g.status
			}
		}
	}
	return StatusUnknown
}

// Spell 返回写入表中的状态值
func (s StatusSpellings) Spell(status Status) string {
	for _, g := range s.groups() {
		if g.status == status && len(g.spellings) > 0 {
			return g.spellings[0]
		}
	}
	return status.String()
}

// Validate 每个状态至少一种写法,且同一写法不能对应多个状态
func (s StatusSpellings) Validate() error {
	seen := make(map[string]Status)
	for _, g := range s.groups() {
		if len(g.spellings) == 0 {
			return fmt.Errorf("no spelling configured for status %s", g.status)
		}
		for _, spelling := range g.spellings {
			if spelling == "" {
				return fmt.Errorf("empty spelling for status %s", g.status)
			}
			if prev, ok := seen[spelling]; ok {
				return fmt.Errorf("spelling %q used by both %s and %s", spelling, prev, g.status)
			}
			seen[spelling] = g.status
		}
	}
	return nil
}
