package model

import "time"

// UserStatusActive 启用状态
const UserStatusActive = 1

// UserModel 用户
type UserModel struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"username"`
	RealName     string    `gorm:"type:varchar(64)" json:"real_name"`
	DepartmentID *uint     `json:"department_id,omitempty"`
	PositionID   *uint     `json:"position_id,omitempty"`
	Status       int       `gorm:"not null" json:"status"` // 1 启用, 0 停用
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName 指定表名
func (UserModel) TableName() string {
	return "users"
}

// DisplayName 显示名称,没有真实姓名时使用用户名
func (u *UserModel) DisplayName() string {
	if u.RealName != "" {
		return u.RealName
	}
	return u.Username
}

// PositionModel 岗位
type PositionModel struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Code     string `gorm:"type:varchar(64)" json:"code"`
	Name     string `gorm:"type:varchar(128);not null" json:"name"`
	ParentID *uint  `json:"parent_id,omitempty"`
	Level    *int   `json:"level,omitempty"`
}

// TableName 指定表名
func (PositionModel) TableName() string {
	return "positions"
}

// RoleModel 角色
type RoleModel struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	RoleCode string `gorm:"type:varchar(64);not null" json:"role_code"`
	RoleName string `gorm:"type:varchar(128)" json:"role_name"`
}

// TableName 指定表名
func (RoleModel) TableName() string {
	return "roles"
}

// UserRoleModel 用户角色关联
type UserRoleModel struct {
	UserID uint `gorm:"primaryKey;autoIncrement:false"`
	RoleID uint `gorm:"primaryKey;autoIncrement:false"`
}

// TableName 指定表名
func (UserRoleModel) TableName() string {
	return "user_roles"
}
