package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// noComment is what a client types to skip the review comment.
const noComment = "-"

// ReviewService handles client ratings of completed orders.
type ReviewService struct {
	store  repository.Store
	locks  *LockManager
	logger *slog.Logger
	now    func() time.Time
}

// NewReviewService creates a new ReviewService.
func NewReviewService(store repository.Store, locks *LockManager, logger *slog.Logger) *ReviewService {
	return &ReviewService{
		store:  store,
		locks:  locks,
		logger: logger,
		now:    time.Now,
	}
}

// Rate stores the client's rating of a completed order. An order is rated at most once.
func (s *ReviewService) Rate(ctx context.Context, clientID, orderID string, rating int) (*domain.Review, error) {
	if rating < domain.MinRating || rating > domain.MaxRating {
		return nil, ErrInvalidRating
	}

	unlock, err := s.locks.Acquire(ctx, orderLockKey(orderID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, notFound(err, ErrOrderNotFound)
	}
	if err := requireOwner(order, clientID); err != nil {
		return nil, err
	}
	if order.Status != domain.OrderStatusCompleted {
		return nil, ErrInvalidOrderState
	}

	review := &domain.Review{
		ID:        uuid.New().String(),
		OrderID:   order.ID,
		ClientID:  clientID,
		DriverID:  order.DriverID,
		Rating:    rating,
		CreatedAt: s.now(),
	}
	if err := s.store.Reviews().Create(ctx, review); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, ErrAlreadyReviewed
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "order rated",
		slog.String("order_id", orderID),
		slog.String("driver_id", order.DriverID),
		slog.Int("rating", rating),
	)
	return review, nil
}

// AddComment attaches a comment to the client's review. "-" leaves it empty.
func (s *ReviewService) AddComment(ctx context.Context, clientID, orderID, comment string) (*domain.Review, error) {
	comment = strings.TrimSpace(comment)
	if comment == noComment {
		comment = ""
	}

	reviews := s.store.Reviews()
	review, err := reviews.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, notFound(err, ErrReviewNotFound)
	}
	if review.ClientID != clientID {
		return nil, ErrReviewNotFound
	}
	if err := reviews.UpdateComment(ctx, orderID, comment); err != nil {
		return nil, notFound(err, ErrReviewNotFound)
	}
	review.Comment = comment
	return review, nil
}
