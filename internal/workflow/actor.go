package workflow

import (
	"strconv"
	"strings"
)

// Actor 操作人
type Actor struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// Name 显示名称,没有时使用用户名
func (a Actor) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Username
}

// MatchCreator 判断操作人是否为记录创建人
// 标准比较只认用户名; loose 为 true 时兼容历史数据,
// 显示名称或用户 ID 相同也视为创建人。比较忽略大小写
func MatchCreator(createdBy string, actor Actor, loose bool) bool {
	creator := strings.TrimSpace(createdBy)
	if creator == "" {
		return false
	}
	if actor.Username != "" && strings.EqualFold(creator, actor.Username) {
		return true
	}
	if !loose {
		return false
	}
	if actor.DisplayName != "" && strings.EqualFold(creator, actor.DisplayName) {
		return true
	}
	return actor.ID != 0 && creator == strconv.FormatUint(uint64(actor.ID), 10)
}
