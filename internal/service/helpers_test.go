package service_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/messaging"
	"dispatch/internal/repository/memory"
	"dispatch/internal/service"
)

const (
	adminChatID  int64 = 100
	clientChatID int64 = 200
	driverChatID int64 = 300
	serviceCity        = "Svetlogorsk"
)

// ──────────────────────────────────────────────
// RECORDING CHANNEL
// ──────────────────────────────────────────────

type sentMessage struct {
	ChatID  int64
	Text    string
	Photo   string
	Actions []messaging.Action
}

// recordingChannel records every delivery and fails for the chats in failFor.
type recordingChannel struct {
	mu      sync.Mutex
	sent    []sentMessage
	cleared []string
	failFor map[int64]bool
}

func newRecordingChannel() *recordingChannel {
	return &recordingChannel{failFor: make(map[int64]bool)}
}

func (c *recordingChannel) FailFor(chatID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failFor[chatID] = true
}

func (c *recordingChannel) SendText(ctx context.Context, chatID int64, text string, actions ...messaging.Action) error {
	return c.record(sentMessage{ChatID: chatID, Text: text, Actions: actions})
}

func (c *recordingChannel) SendPhoto(ctx context.Context, chatID int64, photoRef, caption string) error {
	return c.record(sentMessage{ChatID: chatID, Text: caption, Photo: photoRef})
}

func (c *recordingChannel) ClearActions(ctx context.Context, chatID int64, messageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleared = append(c.cleared, messageID)
	return nil
}

func (c *recordingChannel) record(m sentMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failFor[m.ChatID] {
		return messaging.ErrDelivery
	}
	c.sent = append(c.sent, m)
	return nil
}

// SentTo returns the messages delivered to chatID.
func (c *recordingChannel) SentTo(chatID int64) []sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []sentMessage
	for _, m := range c.sent {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

// ──────────────────────────────────────────────
// FIXTURE
// ──────────────────────────────────────────────

type fixture struct {
	store        *memory.Store
	sessions     *memory.SessionStore
	channel      *recordingChannel
	admins       *service.AdminRegistry
	users        *service.UserService
	orders       *service.OrderService
	drivers      *service.DriverService
	reviews      *service.ReviewService
	conversation *service.ConversationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	store := memory.NewStore()
	sessions := memory.NewSessionStore(time.Hour)
	channel := newRecordingChannel()
	locks := service.NewLockManager(service.NewLocalLocker(), time.Second)
	validator := service.NewCityAddressValidator(serviceCity)

	admins := service.NewAdminRegistry([]int64{adminChatID}, store.Admins(), logger)
	notifier := service.NewNotificationService(channel, store.Users(), store.Drivers(), admins, logger)
	users := service.NewUserService(store.Users())
	orders := service.NewOrderService(store, locks, validator, notifier, logger)
	drivers := service.NewDriverService(store, locks, notifier, logger)
	reviews := service.NewReviewService(store, locks, logger)
	conversation := service.NewConversationService(
		service.NewSessionService(sessions), users, orders, drivers, reviews, admins, validator, logger,
	)

	return &fixture{
		store:        store,
		sessions:     sessions,
		channel:      channel,
		admins:       admins,
		users:        users,
		orders:       orders,
		drivers:      drivers,
		reviews:      reviews,
		conversation: conversation,
	}
}

func (f *fixture) client(t *testing.T, chatID int64) *domain.User {
	t.Helper()
	user, err := f.users.Touch(context.Background(), service.TouchRequest{ExternalID: chatID, FirstName: "Anna"})
	if err != nil {
		t.Fatalf("touch user: %v", err)
	}
	return user
}

// driver stores an approved driver with the given duty status.
func (f *fixture) driver(t *testing.T, chatID int64, status domain.DutyStatus) *domain.Driver {
	t.Helper()
	d := &domain.Driver{
		ID:         uuid.New().String(),
		ExternalID: chatID,
		Name:       "Driver",
		Approved:   true,
		DutyStatus: status,
		CreatedAt:  time.Now(),
	}
	if err := f.store.Drivers().Create(context.Background(), d); err != nil {
		t.Fatalf("create driver: %v", err)
	}
	return d
}

func (f *fixture) newOrder(t *testing.T, client *domain.User) *domain.Order {
	t.Helper()
	order, err := f.orders.CreateOrder(context.Background(), service.CreateOrderRequest{
		ClientID:    client.ID,
		FromAddress: "Svetlogorsk, Lenina 1",
		ToAddress:   "Airport",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

// acceptedOrder creates an order and negotiates it to ACCEPTED at price.
func (f *fixture) acceptedOrder(t *testing.T, client *domain.User, price float64) *domain.Order {
	t.Helper()
	ctx := context.Background()
	order := f.newOrder(t, client)
	if _, err := f.orders.SetPrice(ctx, adminChatID, order.ID, price); err != nil {
		t.Fatalf("set price: %v", err)
	}
	accepted, err := f.orders.AcceptPrice(ctx, client.ID, order.ID)
	if err != nil {
		t.Fatalf("accept price: %v", err)
	}
	return accepted
}

func (f *fixture) mustDriver(t *testing.T, id string) *domain.Driver {
	t.Helper()
	d, err := f.store.Drivers().GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get driver: %v", err)
	}
	return d
}

func (f *fixture) mustOrder(t *testing.T, id string) *domain.Order {
	t.Helper()
	o, err := f.store.Orders().GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	return o
}
