package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// say feeds text to the conversation and fails the test on error.
func say(t *testing.T, f *fixture, actorID int64, text string) *service.Reply {
	t.Helper()
	reply, err := f.conversation.HandleInput(context.Background(), actorID, text)
	if err != nil {
		t.Fatalf("input %q: %v", text, err)
	}
	return reply
}

func pendingPrompt(t *testing.T, f *fixture, actorID int64) *domain.Prompt {
	t.Helper()
	session, err := f.sessions.Get(context.Background(), actorID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	return session.Prompt
}

func TestConversation_OrderDraftToOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.client(t, clientChatID)

	reply, err := f.conversation.StartOrder(ctx, clientChatID)
	if err != nil {
		t.Fatalf("start order: %v", err)
	}
	if reply.Prompt.Kind != domain.PromptOrderFrom {
		t.Fatalf("expected ORDER_FROM, got %s", reply.Prompt.Kind)
	}

	reply = say(t, f, clientChatID, "Svetlogorsk, Lenina 1")
	if reply.Prompt.Kind != domain.PromptOrderTo {
		t.Fatalf("expected ORDER_TO, got %s", reply.Prompt.Kind)
	}
	reply = say(t, f, clientChatID, "Airport")
	if reply.Prompt.Kind != domain.PromptOrderComment {
		t.Fatalf("expected ORDER_COMMENT, got %s", reply.Prompt.Kind)
	}
	reply = say(t, f, clientChatID, "-")
	if reply.Prompt != nil {
		t.Fatalf("expected the draft to be complete, got prompt %s", reply.Prompt.Kind)
	}
	if reply.Draft.Comment != "" {
		t.Errorf("expected no comment, got %q", reply.Draft.Comment)
	}

	scheduled := time.Now().Add(2 * time.Hour)
	if _, err := f.conversation.SetDraftOptions(ctx, clientChatID, service.DraftOptions{
		ScheduledAt:   scheduled,
		PaymentMethod: domain.PaymentMethodCard,
	}); err != nil {
		t.Fatalf("set options: %v", err)
	}

	confirmed, err := f.conversation.ConfirmOrder(ctx, clientChatID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	order := confirmed.Order
	if order.Status != domain.OrderStatusNew || order.FromAddress != "Svetlogorsk, Lenina 1" || order.ToAddress != "Airport" {
		t.Errorf("unexpected order %+v", order)
	}
	if !order.IsPreOrder() || order.PaymentMethod != domain.PaymentMethodCard {
		t.Errorf("expected a card pre-order, got scheduled=%v payment=%s", order.ScheduledAt, order.PaymentMethod)
	}

	if _, err := f.conversation.ConfirmOrder(ctx, clientChatID); !errors.Is(err, service.ErrNoDraft) {
		t.Errorf("expected the draft to be consumed, got %v", err)
	}
}

func TestConversation_InvalidAnswerKeepsPrompt(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.client(t, clientChatID)

	if _, err := f.conversation.StartOrder(ctx, clientChatID); err != nil {
		t.Fatalf("start order: %v", err)
	}

	reply, err := f.conversation.HandleInput(ctx, clientChatID, "Kaliningrad, Mira 5")
	if !errors.Is(err, service.ErrOutsideServiceArea) {
		t.Fatalf("expected ErrOutsideServiceArea, got %v", err)
	}
	if reply == nil || reply.Prompt.Kind != domain.PromptOrderFrom {
		t.Fatalf("expected the question to be repeated, got %+v", reply)
	}
	if p := pendingPrompt(t, f, clientChatID); p == nil || p.Kind != domain.PromptOrderFrom {
		t.Fatalf("expected ORDER_FROM to stay pending, got %+v", p)
	}

	if _, err := f.conversation.HandleInput(ctx, clientChatID, "   "); !errors.Is(err, service.ErrEmptyAddress) {
		t.Errorf("expected ErrEmptyAddress, got %v", err)
	}

	reply = say(t, f, clientChatID, "svetlogorsk, Oktyabrskaya 3")
	if reply.Prompt.Kind != domain.PromptOrderTo {
		t.Errorf("expected ORDER_TO after a valid address, got %s", reply.Prompt.Kind)
	}
}

func TestConversation_NoPendingInput(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	if _, err := f.conversation.HandleInput(context.Background(), clientChatID, "hello"); !errors.Is(err, service.ErrNoPendingInput) {
		t.Fatalf("expected ErrNoPendingInput, got %v", err)
	}
}

func TestConversation_CancelDraftDropsPrompt(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.client(t, clientChatID)

	if _, err := f.conversation.StartOrder(ctx, clientChatID); err != nil {
		t.Fatalf("start order: %v", err)
	}
	if err := f.conversation.CancelDraft(ctx, clientChatID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if p := pendingPrompt(t, f, clientChatID); p != nil {
		t.Errorf("expected no pending prompt, got %s", p.Kind)
	}
	if err := f.conversation.CancelDraft(ctx, clientChatID); !errors.Is(err, service.ErrNoDraft) {
		t.Errorf("expected ErrNoDraft, got %v", err)
	}
}

func TestConversation_DriverRegistration(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	reply, err := f.conversation.StartRegistration(ctx, driverChatID)
	if err != nil {
		t.Fatalf("start registration: %v", err)
	}
	if reply.Prompt.Kind != domain.PromptDriverName {
		t.Fatalf("expected DRIVER_NAME, got %s", reply.Prompt.Kind)
	}

	steps := []struct {
		text string
		next domain.PromptKind
	}{
		{"Ivan Petrov", domain.PromptDriverLicense},
		{"39 AB 123456", domain.PromptDriverVehicleReg},
		{"39 XX 987654", domain.PromptDriverPlate},
		{"A123BC39", domain.PromptDriverPhoto},
	}
	for _, step := range steps {
		reply = say(t, f, driverChatID, step.text)
		if reply.Prompt == nil || reply.Prompt.Kind != step.next {
			t.Fatalf("after %q expected %s, got %+v", step.text, step.next, reply.Prompt)
		}
	}

	if _, err := f.conversation.HandleInput(ctx, driverChatID, ""); !errors.Is(err, service.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}

	for i, pos := range domain.PhotoPositions {
		if reply.Prompt == nil || reply.Prompt.Position != pos {
			t.Fatalf("expected a photo prompt for %s, got %+v", pos, reply.Prompt)
		}
		reply = say(t, f, driverChatID, "file-"+string(pos))
		if i < len(domain.PhotoPositions)-1 && reply.Driver != nil {
			t.Fatalf("registered before all photos were sent")
		}
	}

	if reply.Driver == nil {
		t.Fatal("expected the driver to be registered after the last photo")
	}
	if reply.Driver.Approved || reply.Driver.Name != "Ivan Petrov" {
		t.Errorf("unexpected driver %+v", reply.Driver)
	}
	if p := pendingPrompt(t, f, driverChatID); p != nil {
		t.Errorf("expected no pending prompt, got %s", p.Kind)
	}

	if _, err := f.conversation.StartRegistration(ctx, driverChatID); !errors.Is(err, service.ErrAlreadyRegistered) {
		t.Errorf("expected ErrAlreadyRegistered, got %v", err)
	}
}

func TestConversation_PricePromptForDispatcher(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	order := f.newOrder(t, f.client(t, clientChatID))

	if _, err := f.conversation.AskPrice(ctx, clientChatID, order.ID); !errors.Is(err, service.ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}
	if _, err := f.conversation.AskPrice(ctx, adminChatID, order.ID); err != nil {
		t.Fatalf("ask price: %v", err)
	}

	reply, err := f.conversation.HandleInput(ctx, adminChatID, "cheap")
	if !errors.Is(err, service.ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
	if reply.Prompt.Kind != domain.PromptSetPrice || reply.Prompt.OrderID != order.ID {
		t.Errorf("expected the price prompt to be repeated, got %+v", reply.Prompt)
	}

	reply = say(t, f, adminChatID, "450")
	if reply.Order.Status != domain.OrderStatusPriceOffered || reply.Order.PriceValue() != 450 {
		t.Errorf("expected PRICE_OFFERED at 450, got %s at %v", reply.Order.Status, reply.Order.PriceValue())
	}
	if p := pendingPrompt(t, f, adminChatID); p != nil {
		t.Errorf("expected the prompt to be answered, got %s", p.Kind)
	}
}

func TestConversation_StalePromptIsDropped(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	client := f.client(t, clientChatID)
	order := f.newOrder(t, client)
	if _, err := f.orders.SetPrice(ctx, adminChatID, order.ID, 500); err != nil {
		t.Fatalf("set price: %v", err)
	}

	if _, err := f.conversation.AskCounterOffer(ctx, clientChatID, order.ID); err != nil {
		t.Fatalf("ask counter offer: %v", err)
	}
	if _, err := f.orders.BulkCancel(ctx, adminChatID); err != nil {
		t.Fatalf("bulk cancel: %v", err)
	}

	if _, err := f.conversation.HandleInput(ctx, clientChatID, "400"); !errors.Is(err, service.ErrInvalidOrderState) {
		t.Fatalf("expected ErrInvalidOrderState, got %v", err)
	}
	if p := pendingPrompt(t, f, clientChatID); p != nil {
		t.Errorf("expected the stale prompt to be dropped, got %s", p.Kind)
	}
}

func TestConversation_ReviewCommentAndPhone(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	client := f.client(t, clientChatID)
	order := completedOrder(t, f, client, driverChatID)
	if _, err := f.reviews.Rate(ctx, client.ID, order.ID, 5); err != nil {
		t.Fatalf("rate: %v", err)
	}

	if _, err := f.conversation.AskReviewComment(ctx, clientChatID, order.ID); err != nil {
		t.Fatalf("ask comment: %v", err)
	}
	reply := say(t, f, clientChatID, "Great ride")
	if reply.Review == nil || reply.Review.Comment != "Great ride" {
		t.Errorf("expected the comment to be stored, got %+v", reply.Review)
	}

	if _, err := f.conversation.AskPhone(ctx, clientChatID); err != nil {
		t.Fatalf("ask phone: %v", err)
	}
	reply = say(t, f, clientChatID, "+7 900 000 00 00")
	if reply.User == nil || reply.User.Phone != "+7 900 000 00 00" {
		t.Errorf("expected the phone to be stored, got %+v", reply.User)
	}
}

func TestConversation_AddAdmin(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	const newAdmin int64 = 555

	if _, err := f.conversation.AskAddAdmin(ctx, adminChatID); err != nil {
		t.Fatalf("ask add admin: %v", err)
	}
	if _, err := f.conversation.HandleInput(ctx, adminChatID, "not-a-number"); !errors.Is(err, service.ErrInvalidActorID) {
		t.Fatalf("expected ErrInvalidActorID, got %v", err)
	}
	say(t, f, adminChatID, "555")
	if !f.admins.IsAdmin(newAdmin) {
		t.Error("expected the new administrator to be registered")
	}
}
