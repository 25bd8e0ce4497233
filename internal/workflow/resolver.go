package workflow

import (
	"context"
	"fmt"

	"github.com/mautops/qms-workflow/internal/repository"
)

// Tier 审核人来源
type Tier int

const (
	TierNone Tier = iota
	TierHierarchy
	TierDepartment
	TierAdministrator
	TierAnyUser
)

// String 返回来源名称
func (t Tier) String() string {
	switch t {
	case TierHierarchy:
		return "hierarchy"
	case TierDepartment:
		return "department"
	case TierAdministrator:
		return "administrator"
	case TierAnyUser:
		return "any_user"
	default:
		return "none"
	}
}

// ResolverConfig 审核人查找参数
type ResolverConfig struct {
	SeniorityLevel  int      // 部门主管的岗位级别
	TitleMarkers    []string // 主管岗位名称关键字
	AdminRoleCode   string
	AdminRoleMarker string // 管理员角色名称关键字
}

// DefaultResolverConfig 默认参数
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		SeniorityLevel:  5,
		TitleMarkers:    []string{"主管", "经理"},
		AdminRoleCode:   "admin",
		AdminRoleMarker: "管理员",
	}
}

// Resolution 查找结果
type Resolution struct {
	Candidate *repository.SupervisorCandidate
	Tier      Tier
}

// Found 是否找到审核人
func (r *Resolution) Found() bool {
	return r != nil && r.Candidate != nil
}

// SupervisorResolver 按固定顺序查找审核人:
// 上级岗位、部门主管、管理员、任一其他在职用户,第一个命中即返回
type SupervisorResolver struct {
	cfg ResolverConfig
}

// NewSupervisorResolver 创建审核人查找器
func NewSupervisorResolver(cfg ResolverConfig) *SupervisorResolver {
	return &SupervisorResolver{cfg: cfg}
}

// Resolve 为申请人查找审核人
// 四级都没有结果时返回 TierNone,查询出错时直接返回错误
func (r *SupervisorResolver) Resolve(ctx context.Context, org repository.OrganizationRepository, actorID uint) (*Resolution, error) {
	steps := []struct {
		tier Tier
		find func() (*repository.SupervisorCandidate, error)
	}{
		{TierHierarchy, func() (*repository.SupervisorCandidate, error) {
			return org.FindParentPositionHolder(ctx, actorID)
		}},
		{TierDepartment, func() (*repository.SupervisorCandidate, error) {
			return org.FindDepartmentHead(ctx, actorID, repository.DepartmentHeadQuery{
				Level:        r.cfg.SeniorityLevel,
				TitleMarkers: r.cfg.TitleMarkers,
			})
		}},
		{TierAdministrator, func() (*repository.SupervisorCandidate, error) {
			return org.FindAdministrator(ctx, actorID, repository.AdministratorQuery{
				RoleCode:   r.cfg.AdminRoleCode,
				NameMarker: r.cfg.AdminRoleMarker,
			})
		}},
		{TierAnyUser, func() (*repository.SupervisorCandidate, error) {
			return org.FindOtherActiveUser(ctx, actorID)
		}},
	}

	for _, step := range steps {
		candidate, err := step.find()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve reviewer (%s): %w", step.tier, err)
		}
		if candidate != nil {
			return &Resolution{Candidate: candidate, Tier: step.tier}, nil
		}
	}
	return &Resolution{Tier: TierNone}, nil
}
