package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go-resto-inventory/internal/ws"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LowStockAlert describes one item whose on-hand quantity crossed its
// configured threshold during a deduction.
type LowStockAlert struct {
	InventoryItemID string          `json:"inventory_item_id"`
	Name            string          `json:"name"`
	Remaining       decimal.Decimal `json:"remaining"`
	Threshold       decimal.Decimal `json:"threshold"`
	Unit            string          `json:"unit"`
}

// Notifier is the outbound side-effect boundary of the deduction service.
// Delivery is fire-and-forget; a failed notification never fails a
// deduction.
type Notifier interface {
	NotifyLowStock(ctx context.Context, alert LowStockAlert, orderID string)
	SendCriticalAlert(ctx context.Context, alertType, message string, affected map[string]interface{})
	SendRoleNotification(ctx context.Context, role, subject, message string, priority int)
}

// hubNotifier broadcasts notification payloads to connected dashboard
// clients over the WebSocket hub.
type hubNotifier struct {
	hub    *ws.Hub
	logger *zap.Logger
}

func NewHubNotifier(hub *ws.Hub, logger *zap.Logger) Notifier {
	return &hubNotifier{hub: hub, logger: logger}
}

func (n *hubNotifier) NotifyLowStock(ctx context.Context, alert LowStockAlert, orderID string) {
	n.logger.Warn("low stock threshold crossed",
		zap.String("inventory_item_id", alert.InventoryItemID),
		zap.String("name", alert.Name),
		zap.String("remaining", alert.Remaining.String()),
		zap.String("order_id", orderID),
	)
	n.broadcast(map[string]interface{}{
		"type":     "low_stock_alert",
		"order_id": orderID,
		"item":     alert,
		"message":  fmt.Sprintf("'%s' is low on stock: %s %s remaining", alert.Name, alert.Remaining.String(), alert.Unit),
	})
}

func (n *hubNotifier) SendCriticalAlert(ctx context.Context, alertType, message string, affected map[string]interface{}) {
	n.logger.Error("critical alert",
		zap.String("alert_type", alertType),
		zap.String("message", message),
	)
	n.broadcast(map[string]interface{}{
		"type":       "critical_alert",
		"alert_type": alertType,
		"message":    message,
		"affected":   affected,
	})
}

func (n *hubNotifier) SendRoleNotification(ctx context.Context, role, subject, message string, priority int) {
	n.broadcast(map[string]interface{}{
		"type":     "role_notification",
		"role":     role,
		"subject":  subject,
		"message":  message,
		"priority": priority,
	})
}

func (n *hubNotifier) broadcast(payload map[string]interface{}) {
	msg, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error("failed to marshal notification payload", zap.Error(err))
		return
	}
	go func() {
		n.hub.Broadcast <- msg
	}()
}
