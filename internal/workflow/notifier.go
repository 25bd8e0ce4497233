package workflow

import "time"

// 通知事件类型
const (
	EventTodoAssigned  = "todo.assigned"
	EventTodoCompleted = "todo.completed"
	EventTodoCancelled = "todo.cancelled"
)

// Event 流转完成后推送给相关用户的事件
type Event struct {
	Type       string    `json:"type"`
	Kind       Kind      `json:"kind"`
	BusinessID string    `json:"business_id"`
	BusinessNo string    `json:"business_no"`
	Status     string    `json:"status"`
	Message    string    `json:"message"`
	Operator   string    `json:"operator"`
	At         time.Time `json:"at"`
}

// Notifier 事件推送
// 在事务提交之后调用,推送失败不影响流转结果
type Notifier interface {
	Notify(userID uint, event Event)
}

// nopNotifier 不推送
type nopNotifier struct{}

func (nopNotifier) Notify(uint, Event) {}
