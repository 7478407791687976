package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"dispatch/internal/domain"
	"dispatch/internal/messaging"
	"dispatch/internal/repository"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationOrderCreated      NotificationType = "ORDER_CREATED"
	NotificationPriceOffered      NotificationType = "PRICE_OFFERED"
	NotificationPriceAccepted     NotificationType = "PRICE_ACCEPTED"
	NotificationPriceDeclined     NotificationType = "PRICE_DECLINED"
	NotificationCounterOffered    NotificationType = "COUNTER_OFFERED"
	NotificationCounterAccepted   NotificationType = "COUNTER_ACCEPTED"
	NotificationCounterDeclined   NotificationType = "COUNTER_DECLINED"
	NotificationDriverAssigned    NotificationType = "DRIVER_ASSIGNED"
	NotificationOrderAssigned     NotificationType = "ORDER_ASSIGNED"
	NotificationDriverArrived     NotificationType = "DRIVER_ARRIVED"
	NotificationOrderCompleted    NotificationType = "ORDER_COMPLETED"
	NotificationOrderCancelled    NotificationType = "ORDER_CANCELLED"
	NotificationDriverRegistered  NotificationType = "DRIVER_REGISTERED"
	NotificationDriverApproved    NotificationType = "DRIVER_APPROVED"
	NotificationDriverRejected    NotificationType = "DRIVER_REJECTED"
	NotificationDutyStatusChanged NotificationType = "DUTY_STATUS_CHANGED"
)

// Commands carried by message actions. The chat gateway sends them back verbatim.
const (
	CommandSetPrice       = "set_price"
	CommandAcceptPrice    = "accept_price"
	CommandDeclinePrice   = "decline_price"
	CommandCounterOffer   = "counter_offer"
	CommandAcceptCounter  = "accept_counter"
	CommandDeclineCounter = "decline_counter"
	CommandAdminCounter   = "admin_counter"
	CommandAssignDriver   = "assign_driver"
	CommandDriverArrived  = "driver_arrived"
	CommandCompleteOrder  = "complete_order"
	CommandRate           = "rate"
	CommandApproveDriver  = "approve_driver"
	CommandRejectDriver   = "reject_driver"
	CommandConfirmOrder   = "confirm_order"
	CommandCancelDraft    = "cancel_order_draft"
)

// Notification represents a message to one recipient.
type Notification struct {
	Type     NotificationType
	ChatID   int64
	Text     string
	PhotoRef string
	Actions  []messaging.Action
}

// NotificationService resolves the parties interested in an event and
// delivers one message to each. A failed delivery is logged and never
// stops delivery to the remaining recipients.
type NotificationService struct {
	channel messaging.Channel
	users   repository.UserRepository
	drivers repository.DriverRepository
	admins  *AdminRegistry
	logger  *slog.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(
	channel messaging.Channel,
	users repository.UserRepository,
	drivers repository.DriverRepository,
	admins *AdminRegistry,
	logger *slog.Logger,
) *NotificationService {
	return &NotificationService{
		channel: channel,
		users:   users,
		drivers: drivers,
		admins:  admins,
		logger:  logger,
	}
}

// NotifyOrderCreated asks every dispatcher to price a new order.
func (s *NotificationService) NotifyOrderCreated(ctx context.Context, order *domain.Order, client *domain.User) {
	text := fmt.Sprintf("New order #%d from %s\n%s", order.ClientSeq, client.DisplayName(), describeOrder(order))
	if client.Phone != "" {
		text += "\nPhone: " + client.Phone
	}
	s.toAdmins(ctx, NotificationOrderCreated, text,
		messaging.NewAction("Set price", CommandSetPrice, order.ID),
	)
}

// NotifyPriceOffered sends the dispatcher's price to the client.
func (s *NotificationService) NotifyPriceOffered(ctx context.Context, order *domain.Order) {
	text := fmt.Sprintf("Price for order #%d: %s\n%s", order.ClientSeq, formatPrice(order.PriceValue()), describeRoute(order))
	s.toClient(ctx, NotificationPriceOffered, order, text,
		messaging.NewAction("Accept", CommandAcceptPrice, order.ID),
		messaging.NewAction("Decline", CommandDeclinePrice, order.ID),
		messaging.NewAction("Offer my price", CommandCounterOffer, order.ID),
	)
}

// NotifyPriceAccepted asks dispatchers to assign a driver.
func (s *NotificationService) NotifyPriceAccepted(ctx context.Context, order *domain.Order) {
	text := fmt.Sprintf("Order %s accepted by client at %s\n%s", shortID(order.ID), formatPrice(order.PriceValue()), describeRoute(order))
	s.toAdmins(ctx, NotificationPriceAccepted, text,
		messaging.NewAction("Assign driver", CommandAssignDriver, order.ID),
	)
}

// NotifyPriceDeclined tells dispatchers the client walked away.
func (s *NotificationService) NotifyPriceDeclined(ctx context.Context, order *domain.Order) {
	text := fmt.Sprintf("Client declined order %s at %s", shortID(order.ID), formatPrice(order.PriceValue()))
	s.toAdmins(ctx, NotificationPriceDeclined, text)
}

// NotifyCounterOffered sends the client's counter-offer to dispatchers.
func (s *NotificationService) NotifyCounterOffered(ctx context.Context, order *domain.Order) {
	var counter float64
	if order.CounterOffer != nil {
		counter = *order.CounterOffer
	}
	text := fmt.Sprintf("Counter-offer for order %s: %s (offered %s)\n%s",
		shortID(order.ID), formatPrice(counter), formatPrice(order.PriceValue()), describeRoute(order))
	s.toAdmins(ctx, NotificationCounterOffered, text,
		messaging.NewAction("Accept", CommandAcceptCounter, order.ID),
		messaging.NewAction("Decline", CommandDeclineCounter, order.ID),
		messaging.NewAction("Counter", CommandAdminCounter, order.ID),
	)
}

// NotifyCounterAccepted tells the client the counter-offer was accepted.
func (s *NotificationService) NotifyCounterAccepted(ctx context.Context, order *domain.Order) {
	text := fmt.Sprintf("Your price %s for order #%d was accepted. We are looking for a driver.",
		formatPrice(order.PriceValue()), order.ClientSeq)
	s.toClient(ctx, NotificationCounterAccepted, order, text)
}

// NotifyCounterDeclined tells the client the counter-offer was declined.
func (s *NotificationService) NotifyCounterDeclined(ctx context.Context, order *domain.Order) {
	text := fmt.Sprintf("Your counter-offer for order #%d was declined.", order.ClientSeq)
	s.toClient(ctx, NotificationCounterDeclined, order, text)
}

// NotifyDriverAssigned informs the client and the driver about an assignment.
func (s *NotificationService) NotifyDriverAssigned(ctx context.Context, order *domain.Order, driver *domain.Driver) {
	clientText := fmt.Sprintf("Driver %s is on the way for order #%d. Car plate: %s",
		driver.Name, order.ClientSeq, driver.PlateNumber)
	s.toClient(ctx, NotificationDriverAssigned, order, clientText)

	driverText := fmt.Sprintf("New order %s\n%s", shortID(order.ID), describeOrder(order))
	if client, err := s.users.GetByID(ctx, order.ClientID); err == nil && client.Phone != "" {
		driverText += "\nClient phone: " + client.Phone
	}
	s.deliver(ctx, Notification{
		Type:   NotificationOrderAssigned,
		ChatID: driver.ExternalID,
		Text:   driverText,
		Actions: []messaging.Action{
			messaging.NewAction("Arrived", CommandDriverArrived, order.ID),
			messaging.NewAction("Complete", CommandCompleteOrder, order.ID),
		},
	})
}

// NotifyDriverArrived tells the client the driver is waiting.
func (s *NotificationService) NotifyDriverArrived(ctx context.Context, order *domain.Order, driver *domain.Driver) {
	text := fmt.Sprintf("Driver %s has arrived at %s. Car plate: %s", driver.Name, order.FromAddress, driver.PlateNumber)
	s.toClient(ctx, NotificationDriverArrived, order, text)
}

// NotifyOrderCompleted asks the client for a rating and reports the completion to dispatchers.
func (s *NotificationService) NotifyOrderCompleted(ctx context.Context, order *domain.Order, driver *domain.Driver) {
	actions := make([]messaging.Action, 0, domain.MaxRating-domain.MinRating+1)
	for r := domain.MinRating; r <= domain.MaxRating; r++ {
		actions = append(actions, messaging.NewAction(strconv.Itoa(r), CommandRate, order.ID+":"+strconv.Itoa(r)))
	}
	clientText := fmt.Sprintf("Order #%d is completed. Please rate your ride.", order.ClientSeq)
	s.toClient(ctx, NotificationOrderCompleted, order, clientText, actions...)

	adminText := fmt.Sprintf("Order %s completed by %s. Amount: %s",
		shortID(order.ID), driver.Name, formatPrice(order.PriceValue()))
	s.toAdmins(ctx, NotificationOrderCompleted, adminText)
}

// NotifyOrdersCancelled informs every client and driver affected by a bulk cancellation.
func (s *NotificationService) NotifyOrdersCancelled(ctx context.Context, orders []*domain.Order) {
	for _, order := range orders {
		s.toClient(ctx, NotificationOrderCancelled, order,
			fmt.Sprintf("Order #%d was cancelled by the dispatcher.", order.ClientSeq))

		if order.DriverID == "" {
			continue
		}
		driver, err := s.drivers.GetByID(ctx, order.DriverID)
		if err != nil {
			s.logFailure(ctx, NotificationOrderCancelled, 0, fmt.Errorf("resolve driver %s: %w", order.DriverID, err))
			continue
		}
		s.deliver(ctx, Notification{
			Type:   NotificationOrderCancelled,
			ChatID: driver.ExternalID,
			Text:   fmt.Sprintf("Order %s (%s) was cancelled by the dispatcher.", shortID(order.ID), describeRoute(order)),
		})
	}
}

// NotifyDriverRegistered sends a registration with its photos to dispatchers for review.
func (s *NotificationService) NotifyDriverRegistered(ctx context.Context, driver *domain.Driver) {
	text := fmt.Sprintf("New driver registration\nName: %s\nLicense: %s\nVehicle registration: %s\nPlate: %s",
		driver.Name, driver.LicenseNumber, driver.VehicleRegistration, driver.PlateNumber)
	for _, adminID := range s.admins.AllAdminIDs() {
		s.deliver(ctx, Notification{
			Type:   NotificationDriverRegistered,
			ChatID: adminID,
			Text:   text,
			Actions: []messaging.Action{
				messaging.NewAction("Approve", CommandApproveDriver, driver.ID),
				messaging.NewAction("Reject", CommandRejectDriver, driver.ID),
			},
		})
		for _, photo := range driver.Photos {
			s.deliver(ctx, Notification{
				Type:     NotificationDriverRegistered,
				ChatID:   adminID,
				Text:     fmt.Sprintf("%s: %s", driver.Name, photo.Position),
				PhotoRef: photo.Ref,
			})
		}
	}
}

// NotifyDriverApproved tells the driver they can go on duty.
func (s *NotificationService) NotifyDriverApproved(ctx context.Context, driver *domain.Driver) {
	s.deliver(ctx, Notification{
		Type:   NotificationDriverApproved,
		ChatID: driver.ExternalID,
		Text:   "Your registration was approved. Switch to ON_DUTY to receive orders.",
	})
}

// NotifyDriverRejected tells the driver the registration was refused.
func (s *NotificationService) NotifyDriverRejected(ctx context.Context, driver *domain.Driver) {
	s.deliver(ctx, Notification{
		Type:   NotificationDriverRejected,
		ChatID: driver.ExternalID,
		Text:   "Your registration was rejected.",
	})
}

// NotifyDutyStatusChanged reports a driver's self-service status change to dispatchers.
func (s *NotificationService) NotifyDutyStatusChanged(ctx context.Context, driver *domain.Driver, previous domain.DutyStatus) {
	text := fmt.Sprintf("Driver %s changed status: %s -> %s", driver.Name, previous, driver.DutyStatus)
	s.toAdmins(ctx, NotificationDutyStatusChanged, text)
}

func (s *NotificationService) toAdmins(ctx context.Context, typ NotificationType, text string, actions ...messaging.Action) {
	for _, adminID := range s.admins.AllAdminIDs() {
		s.deliver(ctx, Notification{Type: typ, ChatID: adminID, Text: text, Actions: actions})
	}
}

func (s *NotificationService) toClient(ctx context.Context, typ NotificationType, order *domain.Order, text string, actions ...messaging.Action) {
	client, err := s.users.GetByID(ctx, order.ClientID)
	if err != nil {
		s.logFailure(ctx, typ, 0, fmt.Errorf("resolve client %s: %w", order.ClientID, err))
		return
	}
	s.deliver(ctx, Notification{Type: typ, ChatID: client.ExternalID, Text: text, Actions: actions})
}

// deliver sends one notification and logs a failure instead of returning it.
func (s *NotificationService) deliver(ctx context.Context, n Notification) {
	var err error
	if n.PhotoRef != "" {
		err = s.channel.SendPhoto(ctx, n.ChatID, n.PhotoRef, n.Text)
	} else {
		err = s.channel.SendText(ctx, n.ChatID, n.Text, n.Actions...)
	}
	if err != nil {
		s.logFailure(ctx, n.Type, n.ChatID, err)
		return
	}
	s.logger.DebugContext(ctx, "notification sent",
		slog.String("type", string(n.Type)),
		slog.Int64("chat_id", n.ChatID),
	)
}

func (s *NotificationService) logFailure(ctx context.Context, typ NotificationType, chatID int64, err error) {
	s.logger.ErrorContext(ctx, "notification failed",
		slog.String("type", string(typ)),
		slog.Int64("chat_id", chatID),
		slog.String("error", err.Error()),
	)
}

func describeRoute(o *domain.Order) string {
	return fmt.Sprintf("%s -> %s", o.FromAddress, o.ToAddress)
}

func describeOrder(o *domain.Order) string {
	text := "Route: " + describeRoute(o)
	if o.Comment != "" {
		text += "\nComment: " + o.Comment
	}
	if o.IsPreOrder() {
		text += "\nPre-order for " + o.ScheduledAt.Format("02.01.2006 15:04")
	}
	if o.PaymentMethod != "" {
		text += "\nPayment: " + string(o.PaymentMethod)
	}
	if o.Price != nil {
		text += "\nPrice: " + formatPrice(*o.Price)
	}
	return text
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
