package workflow

import "fmt"

// FailureKind 业务规则失败类型
type FailureKind string

const (
	FailureNotFound               FailureKind = "NotFound"
	FailureInvalidStateTransition FailureKind = "InvalidStateTransition"
	FailureMissingReviewer        FailureKind = "MissingReviewer"
	FailureMissingRequiredField   FailureKind = "MissingRequiredField"
	FailureUnauthorized           FailureKind = "Unauthorized"
	FailureConflict               FailureKind = "Conflict"
	FailureInvalidDescriptor      FailureKind = "InvalidDescriptor"
)

// Result 操作结果
// 业务规则失败通过 Result 返回,基础设施错误通过 error 返回
type Result struct {
	Success      bool        `json:"success"`
	Message      string      `json:"message"`
	Failure      FailureKind `json:"failure,omitempty"`
	Status       string      `json:"status,omitempty"`
	ReviewerID   uint        `json:"reviewer_id,omitempty"`
	ReviewerName string      `json:"reviewer_name,omitempty"`
	TodoID       uint        `json:"todo_id,omitempty"`
}

func succeed(status string, format string, args ...interface{}) *Result {
	return &Result{Success: true, Status: status, Message: fmt.Sprintf(format, args...)}
}

func fail(kind FailureKind, format string, args ...interface{}) *Result {
	return &Result{Failure: kind, Message: fmt.Sprintf(format, args...)}
}

// outcome 指标标签
func (r *Result) outcome() string {
	if r.Success {
		return "success"
	}
	return string(r.Failure)
}
