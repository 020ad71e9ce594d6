package model

import (
	"fmt"
	"strings"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusApproved  PaymentStatus = "approved"
	PaymentStatusRejected  PaymentStatus = "rejected"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// Payment принадлежит платёжному шлюзу; ядру нужны только статус и связь
type Payment struct {
	ID                string        `json:"id"`
	ExternalReference string        `json:"external_reference"`
	PreferenceID      string        `json:"preference_id"`
	Status            PaymentStatus `json:"status"`
	RawDetails        []byte        `json:"raw_details,omitempty"`
}

// gatewayPaymentStatuses отображает написания шлюза на закрытое перечисление
var gatewayPaymentStatuses = map[string]PaymentStatus{
	"pending":      PaymentStatusPending,
	"in_process":   PaymentStatusPending,
	"in_mediation": PaymentStatusPending,
	"authorized":   PaymentStatusPending,
	"approved":     PaymentStatusApproved,
	"rejected":     PaymentStatusRejected,
	"failed":       PaymentStatusRejected,
	"cancelled":    PaymentStatusCancelled,
	"canceled":     PaymentStatusCancelled,
	"refunded":     PaymentStatusCancelled,
	"charged_back": PaymentStatusCancelled,
}

// ParsePaymentStatus приводит сырой статус шлюза к PaymentStatus
func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	status, ok := gatewayPaymentStatuses[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", fmt.Errorf("unknown payment status: %q", raw)
	}
	return status, nil
}

// IsFailure — платёж не состоится
func (s PaymentStatus) IsFailure() bool {
	return s == PaymentStatusRejected || s == PaymentStatusCancelled
}
