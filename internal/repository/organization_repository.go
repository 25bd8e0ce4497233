package repository

import (
	"context"

	"github.com/mautops/qms-workflow/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SupervisorCandidate 审核人候选
// DepartmentID 是待办归属的部门: 上级岗位和部门主管取申请人所在部门,管理员和兜底用户为空
type SupervisorCandidate struct {
	ID           uint
	DisplayName  string
	DepartmentID *uint
}

// DepartmentHeadQuery 部门负责人匹配条件
type DepartmentHeadQuery struct {
	Level        int      // 岗位级别,0 表示不按级别匹配
	TitleMarkers []string // 岗位名称包含的关键字,如 主管、经理
}

// AdministratorQuery 管理员匹配条件
type AdministratorQuery struct {
	RoleCode   string
	NameMarker string
}

// OrganizationRepository 组织架构仓储接口
// 候选人查找方法在没有匹配时返回 nil, nil,用户查询未找到时返回 gorm.ErrRecordNotFound
type OrganizationRepository interface {
	FindUserByID(ctx context.Context, id uint) (*model.UserModel, error)
	FindUserByUsername(ctx context.Context, username string) (*model.UserModel, error)
	FindParentPositionHolder(ctx context.Context, actorID uint) (*SupervisorCandidate, error)
	FindDepartmentHead(ctx context.Context, actorID uint, q DepartmentHeadQuery) (*SupervisorCandidate, error)
	FindAdministrator(ctx context.Context, actorID uint, q AdministratorQuery) (*SupervisorCandidate, error)
	FindOtherActiveUser(ctx context.Context, actorID uint) (*SupervisorCandidate, error)
}

// organizationRepository 组织架构仓储实现
type organizationRepository struct {
	db *gorm.DB
}

// NewOrganizationRepository 创建组织架构仓储
func NewOrganizationRepository(db *gorm.DB) OrganizationRepository {
	return &organizationRepository{db: db}
}

// candidateRow 候选人查询结果
type candidateRow struct {
	ID           uint
	Username     string
	RealName     string
	DepartmentID *uint
}

func (row *candidateRow) toCandidate() *SupervisorCandidate {
	name := row.RealName
	if name == "" {
		name = row.Username
	}
	return &SupervisorCandidate{
		ID:           row.ID,
		DisplayName:  name,
		DepartmentID: row.DepartmentID,
	}
}

// FindUserByID 根据 ID 查找用户
func (r *organizationRepository) FindUserByID(ctx context.Context, id uint) (*model.UserModel, error) {
	var user model.UserModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindUserByUsername 根据用户名查找用户
func (r *organizationRepository) FindUserByUsername(ctx context.Context, username string) (*model.UserModel, error) {
	var user model.UserModel
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// 候选人查询中部门列的来源
const (
	applicantDepartment = "actor.department_id"
	noDepartment        = "NULL"
)

// users 返回以 u 为别名的候选人查询
func (r *organizationRepository) users(ctx context.Context, department string) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("users AS u").
		Select("u.id, u.username, u.real_name, " + department + " AS department_id").
		Where("u.status = ?", model.UserStatusActive)
}

// first 取第一个候选人
func first(query *gorm.DB) (*SupervisorCandidate, error) {
	var rows []candidateRow
	if err := query.Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].toCandidate(), nil
}

// anyOf 组合 OR 条件
// 单个条件直接返回,避免被当作链式 Or 拼接到前面的条件上
func anyOf(conds []clause.Expression) clause.Expression {
	if len(conds) == 1 {
		return conds[0]
	}
	return clause.Or(conds...)
}

// FindParentPositionHolder 查找担任申请人上级岗位的在职用户
func (r *organizationRepository) FindParentPositionHolder(ctx context.Context, actorID uint) (*SupervisorCandidate, error) {
	query := r.users(ctx, applicantDepartment).
		Joins("JOIN positions parent ON parent.id = u.position_id").
		Joins("JOIN positions child ON child.parent_id = parent.id").
		Joins("JOIN users actor ON actor.position_id = child.id").
		Where("actor.id = ? AND u.id <> ?", actorID, actorID).
		Order("u.id ASC")
	return first(query)
}

// FindDepartmentHead 查找同部门的主管
// 岗位级别等于指定级别或岗位名称包含关键字,级别高者优先
func (r *organizationRepository) FindDepartmentHead(ctx context.Context, actorID uint, q DepartmentHeadQuery) (*SupervisorCandidate, error) {
	var conds []clause.Expression
	if q.Level > 0 {
		conds = append(conds, clause.Eq{Column: clause.Column{Table: "p", Name: "level"}, Value: q.Level})
	}
	for _, marker := range q.TitleMarkers {
		if marker == "" {
			continue
		}
		conds = append(conds, clause.Like{Column: clause.Column{Table: "p", Name: "name"}, Value: "%" + marker + "%"})
	}
	if len(conds) == 0 {
		return nil, nil
	}

	query := r.users(ctx, applicantDepartment).
		Joins("JOIN positions p ON p.id = u.position_id").
		Joins("JOIN users actor ON actor.department_id = u.department_id").
		Where("actor.id = ? AND u.id <> ?", actorID, actorID).
		Where(anyOf(conds)).
		Order("COALESCE(p.level, 0) DESC").
		Order("u.id ASC")
	return first(query)
}

// FindAdministrator 查找拥有管理员角色的在职用户
// 申请人本身是管理员时排在最后
func (r *organizationRepository) FindAdministrator(ctx context.Context, actorID uint, q AdministratorQuery) (*SupervisorCandidate, error) {
	var conds []clause.Expression
	if q.RoleCode != "" {
		conds = append(conds, clause.Eq{Column: clause.Column{Table: "r", Name: "role_code"}, Value: q.RoleCode})
	}
	if q.NameMarker != "" {
		conds = append(conds, clause.Like{Column: clause.Column{Table: "r", Name: "role_name"}, Value: "%" + q.NameMarker + "%"})
	}
	if len(conds) == 0 {
		return nil, nil
	}

	query := r.users(ctx, noDepartment).
		Joins("JOIN user_roles ur ON ur.user_id = u.id").
		Joins("JOIN roles r ON r.id = ur.role_id").
		Where(anyOf(conds)).
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                "CASE WHEN u.id = ? THEN 1 ELSE 0 END, u.id ASC",
			Vars:               []interface{}{actorID},
			WithoutParentheses: true,
		}})
	return first(query)
}

// FindOtherActiveUser 查找申请人以外的任一在职用户
func (r *organizationRepository) FindOtherActiveUser(ctx context.Context, actorID uint) (*SupervisorCandidate, error) {
	query := r.users(ctx, noDepartment).
		Where("u.id <> ?", actorID).
		Order("u.id ASC")
	return first(query)
}
