package model

type NotificationAction string

const (
	NotificationActionNone     NotificationAction = ""
	NotificationActionRate     NotificationAction = "rate"     // Приглашение оценить занятие
	NotificationActionManage   NotificationAction = "manage"   // Кнопка отмены занятия
	NotificationActionOperator NotificationAction = "operator" // Сообщение для оператора
)

// Notification — исходящее уведомление для коллаборатора рассылки
type Notification struct {
	ProfileID     string             `json:"profile_id"`
	Message       string             `json:"message"`
	URL           string             `json:"url"`
	IsStaff       bool               `json:"is_staff"`
	ReservationID int64              `json:"reservation_id,omitempty"`
	Action        NotificationAction `json:"action,omitempty"`
}
