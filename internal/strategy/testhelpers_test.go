package strategy

import "meshcourier/internal/notification"

func notificationZero() notification.Notification {
	return notification.Notification{}
}
