package handler

import (
	"farmlink/internal/usecase"
)

var (
	healthHandler       *HealthHandler
	profileHandler      *ProfileHandler
	productHandler      *ProductHandler
	orderHandler        *OrderHandler
	conversationHandler *ConversationHandler
	notificationHandler *NotificationHandler
)

func Setup(
	storageDriver string,
	profileUseCase *usecase.ProfileUseCase,
	productUseCase *usecase.ProductUseCase,
	orderUseCase *usecase.OrderUseCase,
	conversationUseCase *usecase.ConversationUseCase,
	notificationUseCase *usecase.NotificationUseCase,
) {
	healthHandler = NewHealthHandler(storageDriver)
	profileHandler = NewProfileHandler(profileUseCase)
	productHandler = NewProductHandler(productUseCase)
	orderHandler = NewOrderHandler(orderUseCase)
	conversationHandler = NewConversationHandler(conversationUseCase)
	notificationHandler = NewNotificationHandler(notificationUseCase)
}

func GetHealthHandler() *HealthHandler {
	return healthHandler
}

func GetProfileHandler() *ProfileHandler {
	return profileHandler
}

func GetProductHandler() *ProductHandler {
	return productHandler
}

func GetOrderHandler() *OrderHandler {
	return orderHandler
}

func GetConversationHandler() *ConversationHandler {
	return conversationHandler
}

func GetNotificationHandler() *NotificationHandler {
	return notificationHandler
}
