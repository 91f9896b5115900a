package attendance

import (
	"context"
	"fmt"

	"github.com/trezcool/mahudhurio/core"
)

// DeliveryHook marks the attendance behind a successfully delivered notification.
func DeliveryHook(repo Repository, logger core.Logger) core.DeliveryHook {
	return func(ctx context.Context, n core.Notification, d core.Delivery) {
		if n.AttendanceID == "" || !d.Success {
			return
		}
		if err := repo.MarkNotificationSent(ctx, n.AttendanceID, NowFunc().UTC()); err != nil {
			logger.Error(fmt.Sprintf("marking notification sent on attendance %s: %v", n.AttendanceID, err), err)
		}
	}
}
