package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"dispatch/internal/domain"
)

var promptTexts = map[domain.PromptKind]string{
	domain.PromptOrderFrom:        "Where should the driver pick you up?",
	domain.PromptOrderTo:          "Where are you going?",
	domain.PromptOrderComment:     "Any comment for the driver? Send - to skip.",
	domain.PromptSetPrice:         "Enter the price for the order.",
	domain.PromptCounterOffer:     "Enter your price.",
	domain.PromptAdminCounter:     "Enter the new price.",
	domain.PromptReviewComment:    "Leave a comment about the trip. Send - to skip.",
	domain.PromptAddAdmin:         "Enter the chat ID of the new administrator.",
	domain.PromptPhone:            "Enter your phone number.",
	domain.PromptDriverName:       "Enter your full name.",
	domain.PromptDriverLicense:    "Enter your driver's license number.",
	domain.PromptDriverVehicleReg: "Enter the vehicle registration certificate number.",
	domain.PromptDriverPlate:      "Enter the plate number.",
	domain.PromptDriverPhoto:      "Send a photo of the car from the %s.",
}

// PromptText returns the question shown for a pending prompt.
func PromptText(p *domain.Prompt) string {
	if p == nil {
		return ""
	}
	if p.Kind == domain.PromptDriverPhoto {
		return fmt.Sprintf(promptTexts[p.Kind], strings.ToLower(string(p.Position)))
	}
	return promptTexts[p.Kind]
}

// Reply is what a conversation step produced. Prompt is the input expected next, if any.
type Reply struct {
	Prompt *domain.Prompt
	Text   string
	Draft  *domain.OrderDraft
	Order  *domain.Order
	Driver *domain.Driver
	Review *domain.Review
	User   *domain.User
}

func promptReply(p *domain.Prompt) *Reply {
	return &Reply{Prompt: p, Text: PromptText(p)}
}

// ConversationService runs the multi-message flows: order drafts, driver
// registration and single free-text answers such as prices and comments.
// The state between messages lives in the session store.
type ConversationService struct {
	sessions  *SessionService
	users     *UserService
	orders    *OrderService
	drivers   *DriverService
	reviews   *ReviewService
	admins    *AdminRegistry
	validator AddressValidator
	logger    *slog.Logger
	now       func() time.Time
}

// NewConversationService creates a new ConversationService.
func NewConversationService(
	sessions *SessionService,
	users *UserService,
	orders *OrderService,
	drivers *DriverService,
	reviews *ReviewService,
	admins *AdminRegistry,
	validator AddressValidator,
	logger *slog.Logger,
) *ConversationService {
	return &ConversationService{
		sessions:  sessions,
		users:     users,
		orders:    orders,
		drivers:   drivers,
		reviews:   reviews,
		admins:    admins,
		validator: validator,
		logger:    logger,
		now:       time.Now,
	}
}

// StartOrder opens a new order draft and asks for the pickup address.
func (s *ConversationService) StartOrder(ctx context.Context, actorID int64) (*Reply, error) {
	if _, err := s.users.Get(ctx, actorID); err != nil {
		return nil, err
	}
	session, err := s.sessions.Load(ctx, actorID)
	if err != nil {
		return nil, err
	}
	session.OrderDraft = &domain.OrderDraft{}
	session.Prompt = &domain.Prompt{Kind: domain.PromptOrderFrom}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return promptReply(session.Prompt), nil
}

// DraftOptions are the pre-order settings of a draft.
type DraftOptions struct {
	ScheduledAt   time.Time
	PaymentMethod domain.PaymentMethod
}

// SetDraftOptions turns the draft into a pre-order and sets how it will be paid.
func (s *ConversationService) SetDraftOptions(ctx context.Context, actorID int64, opts DraftOptions) (*Reply, error) {
	if opts.PaymentMethod != "" && !opts.PaymentMethod.Valid() {
		return nil, ErrInvalidPaymentMethod
	}
	if !opts.ScheduledAt.IsZero() && !opts.ScheduledAt.After(s.now()) {
		return nil, ErrInvalidSchedule
	}

	session, err := s.sessions.Load(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if session.OrderDraft == nil {
		return nil, ErrNoDraft
	}
	session.OrderDraft.ScheduledAt = opts.ScheduledAt
	session.OrderDraft.PaymentMethod = opts.PaymentMethod
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return &Reply{Prompt: session.Prompt, Text: PromptText(session.Prompt), Draft: session.OrderDraft}, nil
}

// ConfirmOrder turns the draft into an order.
func (s *ConversationService) ConfirmOrder(ctx context.Context, actorID int64) (*Reply, error) {
	user, err := s.users.Get(ctx, actorID)
	if err != nil {
		return nil, err
	}
	session, err := s.sessions.Load(ctx, actorID)
	if err != nil {
		return nil, err
	}
	draft := session.OrderDraft
	if draft == nil {
		return nil, ErrNoDraft
	}
	if draft.FromAddress == "" || draft.ToAddress == "" {
		return nil, ErrIncompleteDraft
	}

	order, err := s.orders.CreateOrder(ctx, CreateOrderRequest{
		ClientID:      user.ID,
		FromAddress:   draft.FromAddress,
		ToAddress:     draft.ToAddress,
		Comment:       draft.Comment,
		ScheduledAt:   draft.ScheduledAt,
		PaymentMethod: draft.PaymentMethod,
	})
	if err != nil {
		return nil, err
	}

	session.OrderDraft = nil
	session.Prompt = nil
	if err := s.sessions.Save(ctx, session); err != nil {
		s.logger.WarnContext(ctx, "failed to clear order draft", slog.Int64("actor_id", actorID), slog.Any("error", err))
	}
	return &Reply{Order: order, Text: "Order accepted, waiting for a price."}, nil
}

// CancelDraft discards the order draft and any pending prompt.
func (s *ConversationService) CancelDraft(ctx context.Context, actorID int64) error {
	session, err := s.sessions.Load(ctx, actorID)
	if err != nil {
		return err
	}
	if session.OrderDraft == nil {
		return ErrNoDraft
	}
	session.OrderDraft = nil
	session.Prompt = nil
	return s.sessions.Save(ctx, session)
}

// StartRegistration opens a driver registration and asks for the driver's name.
func (s *ConversationService) StartRegistration(ctx context.Context, actorID int64) (*Reply, error) {
	if actorID <= 0 {
		return nil, ErrInvalidActorID
	}
	_, err := s.drivers.GetByExternalID(ctx, actorID)
	switch {
	case err == nil:
		return nil, ErrAlreadyRegistered
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	session, err := s.sessions.Load(ctx, actorID)
	if err != nil {
		return nil, err
	}
	session.Registration = &domain.RegistrationDraft{}
	session.Prompt = &domain.Prompt{Kind: domain.PromptDriverName}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return promptReply(session.Prompt), nil
}

// AskPrice waits for the dispatcher to type a price for the order.
func (s *ConversationService) AskPrice(ctx context.Context, adminID int64, orderID string) (*Reply, error) {
	if !s.admins.IsAdmin(adminID) {
		return nil, ErrNotAdmin
	}
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(order.Status, domain.OrderStatusPriceOffered) {
		return nil, ErrInvalidOrderState
	}
	return s.ask(ctx, adminID, &domain.Prompt{Kind: domain.PromptSetPrice, OrderID: orderID})
}

// AskCounterOffer waits for the client to type a counter-offer.
func (s *ConversationService) AskCounterOffer(ctx context.Context, actorID int64, orderID string) (*Reply, error) {
	if _, err := s.clientOrder(ctx, actorID, orderID, domain.OrderStatusPriceOffered); err != nil {
		return nil, err
	}
	return s.ask(ctx, actorID, &domain.Prompt{Kind: domain.PromptCounterOffer, OrderID: orderID})
}

// AskAdminCounter waits for the dispatcher to answer a counter-offer with a price.
func (s *ConversationService) AskAdminCounter(ctx context.Context, adminID int64, orderID string) (*Reply, error) {
	if !s.admins.IsAdmin(adminID) {
		return nil, ErrNotAdmin
	}
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := requireCounterOffer(order); err != nil {
		return nil, err
	}
	return s.ask(ctx, adminID, &domain.Prompt{Kind: domain.PromptAdminCounter, OrderID: orderID})
}

// AskReviewComment waits for the comment that follows a rating.
func (s *ConversationService) AskReviewComment(ctx context.Context, actorID int64, orderID string) (*Reply, error) {
	if _, err := s.clientOrder(ctx, actorID, orderID, domain.OrderStatusCompleted); err != nil {
		return nil, err
	}
	return s.ask(ctx, actorID, &domain.Prompt{Kind: domain.PromptReviewComment, OrderID: orderID})
}

// AskAddAdmin waits for the chat ID of a new administrator.
func (s *ConversationService) AskAddAdmin(ctx context.Context, adminID int64) (*Reply, error) {
	if !s.admins.IsAdmin(adminID) {
		return nil, ErrNotAdmin
	}
	return s.ask(ctx, adminID, &domain.Prompt{Kind: domain.PromptAddAdmin})
}

// AskPhone waits for the client's phone number.
func (s *ConversationService) AskPhone(ctx context.Context, actorID int64) (*Reply, error) {
	if _, err := s.users.Get(ctx, actorID); err != nil {
		return nil, err
	}
	return s.ask(ctx, actorID, &domain.Prompt{Kind: domain.PromptPhone})
}

func (s *ConversationService) ask(ctx context.Context, actorID int64, prompt *domain.Prompt) (*Reply, error) {
	session, err := s.sessions.Load(ctx, actorID)
	if err != nil {
		return nil, err
	}
	session.Prompt = prompt
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return promptReply(prompt), nil
}

func (s *ConversationService) clientOrder(ctx context.Context, actorID int64, orderID string, status domain.OrderStatus) (*domain.Order, error) {
	user, err := s.users.Get(ctx, actorID)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(order, user.ID); err != nil {
		return nil, err
	}
	if order.Status != status {
		return nil, ErrInvalidOrderState
	}
	return order, nil
}

// HandleInput feeds free text to the pending prompt. Invalid input leaves the
// prompt in place and returns the same question together with the error.
func (s *ConversationService) HandleInput(ctx context.Context, actorID int64, text string) (*Reply, error) {
	session, err := s.sessions.Load(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if session.Prompt == nil {
		return nil, ErrNoPendingInput
	}

	prompt := *session.Prompt
	text = strings.TrimSpace(text)

	reply, err := s.answer(ctx, session, prompt, text)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			s.logger.DebugContext(ctx, "input rejected",
				slog.Int64("actor_id", actorID),
				slog.String("prompt", string(prompt.Kind)),
				slog.Any("error", err),
			)
			return promptReply(&prompt), err
		}
		// The answer can no longer succeed, so stop waiting for it.
		session.Prompt = nil
		if saveErr := s.sessions.Save(ctx, session); saveErr != nil {
			s.logger.WarnContext(ctx, "failed to drop prompt", slog.Int64("actor_id", actorID), slog.Any("error", saveErr))
		}
		return nil, err
	}

	session.Prompt = reply.Prompt
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return reply, nil
}

// answer applies text to the session or to the order named by the prompt.
// On success the returned reply carries the next prompt, nil when the flow is done.
func (s *ConversationService) answer(ctx context.Context, session *domain.Session, prompt domain.Prompt, text string) (*Reply, error) {
	actorID := session.ActorID

	switch prompt.Kind {
	case domain.PromptOrderFrom, domain.PromptOrderTo, domain.PromptOrderComment:
		return s.answerDraft(session, prompt.Kind, text)

	case domain.PromptDriverName, domain.PromptDriverLicense, domain.PromptDriverVehicleReg,
		domain.PromptDriverPlate, domain.PromptDriverPhoto:
		return s.answerRegistration(ctx, session, prompt, text)

	case domain.PromptSetPrice, domain.PromptAdminCounter:
		price, err := ParsePrice(text)
		if err != nil {
			return nil, err
		}
		var order *domain.Order
		if prompt.Kind == domain.PromptSetPrice {
			order, err = s.orders.SetPrice(ctx, actorID, prompt.OrderID, price)
		} else {
			order, err = s.orders.AdminCounter(ctx, actorID, prompt.OrderID, price)
		}
		if err != nil {
			return nil, err
		}
		return &Reply{Order: order, Text: "Price sent to the client."}, nil

	case domain.PromptCounterOffer:
		amount, err := ParsePrice(text)
		if err != nil {
			return nil, err
		}
		user, err := s.users.Get(ctx, actorID)
		if err != nil {
			return nil, err
		}
		order, err := s.orders.CounterOffer(ctx, user.ID, prompt.OrderID, amount)
		if err != nil {
			return nil, err
		}
		return &Reply{Order: order, Text: "Your offer was sent to the dispatcher."}, nil

	case domain.PromptReviewComment:
		user, err := s.users.Get(ctx, actorID)
		if err != nil {
			return nil, err
		}
		review, err := s.reviews.AddComment(ctx, user.ID, prompt.OrderID, text)
		if err != nil {
			return nil, err
		}
		return &Reply{Review: review, Text: "Thank you for your feedback."}, nil

	case domain.PromptAddAdmin:
		id, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, ErrInvalidActorID
		}
		if err := s.admins.Add(ctx, actorID, id); err != nil {
			return nil, err
		}
		return &Reply{Text: "Administrator added."}, nil

	case domain.PromptPhone:
		user, err := s.users.UpdatePhone(ctx, actorID, text)
		if err != nil {
			return nil, err
		}
		return &Reply{User: user, Text: "Phone saved."}, nil
	}

	return nil, ErrNoPendingInput
}

func (s *ConversationService) answerDraft(session *domain.Session, kind domain.PromptKind, text string) (*Reply, error) {
	draft := session.OrderDraft
	if draft == nil {
		return nil, ErrNoDraft
	}

	var next *domain.Prompt
	switch kind {
	case domain.PromptOrderFrom:
		if text == "" {
			return nil, ErrEmptyAddress
		}
		if err := s.validator.ValidateAddress(text); err != nil {
			return nil, err
		}
		draft.FromAddress = text
		next = &domain.Prompt{Kind: domain.PromptOrderTo}
	case domain.PromptOrderTo:
		if text == "" {
			return nil, ErrEmptyAddress
		}
		draft.ToAddress = text
		next = &domain.Prompt{Kind: domain.PromptOrderComment}
	case domain.PromptOrderComment:
		if text == noComment {
			text = ""
		}
		draft.Comment = text
		return &Reply{Draft: draft, Text: "Check the order and confirm it."}, nil
	}
	reply := promptReply(next)
	reply.Draft = draft
	return reply, nil
}

func (s *ConversationService) answerRegistration(ctx context.Context, session *domain.Session, prompt domain.Prompt, text string) (*Reply, error) {
	reg := session.Registration
	if reg == nil {
		return nil, ErrNoDraft
	}
	if text == "" {
		return nil, ErrEmptyInput
	}

	switch prompt.Kind {
	case domain.PromptDriverName:
		reg.Name = text
		return promptReply(&domain.Prompt{Kind: domain.PromptDriverLicense}), nil
	case domain.PromptDriverLicense:
		reg.LicenseNumber = text
		return promptReply(&domain.Prompt{Kind: domain.PromptDriverVehicleReg}), nil
	case domain.PromptDriverVehicleReg:
		reg.VehicleRegistration = text
		return promptReply(&domain.Prompt{Kind: domain.PromptDriverPlate}), nil
	case domain.PromptDriverPlate:
		reg.PlateNumber = text
	case domain.PromptDriverPhoto:
		reg.Photos = append(reg.Photos, domain.Photo{Position: prompt.Position, Ref: text})
	}

	if pos, missing := reg.NextPhotoPosition(); missing {
		return promptReply(&domain.Prompt{Kind: domain.PromptDriverPhoto, Position: pos}), nil
	}

	driver, err := s.drivers.Register(ctx, session.ActorID, reg)
	if err != nil {
		return nil, err
	}
	session.Registration = nil
	return &Reply{Driver: driver, Text: "Registration sent. Wait for a dispatcher to approve it."}, nil
}
