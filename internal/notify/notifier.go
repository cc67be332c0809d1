package notify

import "context"

// Kind 通知模板类别
type Kind string

const (
	KindMarkedPresent Kind = "attendance_marked_present"
	KindCheckedIn     Kind = "attendance_checked_in"
	KindCheckedOut    Kind = "attendance_checked_out"
)

// Notifier is the delivery-system boundary. Dispatch is fire-and-forget:
// callers log a returned error and move on, and no attendance mutation ever
// depends on delivery succeeding.
type Notifier interface {
	Notify(ctx context.Context, schoolID string, targetPersonIDs []string, kind Kind, data map[string]any) error
}

// NopNotifier 空实现（测试与通知禁用场景）
type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, schoolID string, targetPersonIDs []string, kind Kind, data map[string]any) error {
	return nil
}
