package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
	"dispatch/internal/service"
)

// ErrorResponse represents an error response. Prompt repeats the pending
// question when the input was rejected.
type ErrorResponse struct {
	Error  string          `json:"error"`
	Prompt *PromptResponse `json:"prompt,omitempty"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	if code >= http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(code, ErrorResponse{Error: "internal error"})
		return
	}
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest

	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, service.ErrPreconditionFailed),
		errors.Is(err, repository.ErrAlreadyExists):
		return http.StatusConflict

	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden

	default:
		return http.StatusInternalServerError
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// OrderResponse is the HTTP response for order data.
type OrderResponse struct {
	ID            string   `json:"id"`
	Number        int      `json:"number"`
	ClientID      string   `json:"client_id"`
	DriverID      string   `json:"driver_id,omitempty"`
	FromAddress   string   `json:"from_address"`
	ToAddress     string   `json:"to_address"`
	Comment       string   `json:"comment,omitempty"`
	ScheduledAt   string   `json:"scheduled_at,omitempty"`
	PaymentMethod string   `json:"payment_method,omitempty"`
	Price         *float64 `json:"price,omitempty"`
	CounterOffer  *float64 `json:"counter_offer,omitempty"`
	Status        string   `json:"status"`
	CreatedAt     string   `json:"created_at"`
	CompletedAt   string   `json:"completed_at,omitempty"`
	CanRate       bool     `json:"can_rate,omitempty"`
}

func toOrderResponse(o *domain.Order) OrderResponse {
	return OrderResponse{
		ID:            o.ID,
		Number:        o.ClientSeq,
		ClientID:      o.ClientID,
		DriverID:      o.DriverID,
		FromAddress:   o.FromAddress,
		ToAddress:     o.ToAddress,
		Comment:       o.Comment,
		ScheduledAt:   formatTime(o.ScheduledAt),
		PaymentMethod: string(o.PaymentMethod),
		Price:         o.Price,
		CounterOffer:  o.CounterOffer,
		Status:        string(o.Status),
		CreatedAt:     formatTime(o.CreatedAt),
		CompletedAt:   formatTime(o.CompletedAt),
	}
}

func toOrderResponses(orders []*domain.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return out
}

// DriverResponse is the HTTP response for driver data.
type DriverResponse struct {
	ID                  string         `json:"id"`
	ExternalID          int64          `json:"external_id"`
	Name                string         `json:"name"`
	LicenseNumber       string         `json:"license_number"`
	VehicleRegistration string         `json:"vehicle_registration"`
	PlateNumber         string         `json:"plate_number"`
	Photos              []domain.Photo `json:"photos,omitempty"`
	Approved            bool           `json:"approved"`
	DutyStatus          string         `json:"duty_status"`
	CreatedAt           string         `json:"created_at"`
}

func toDriverResponse(d *domain.Driver) DriverResponse {
	return DriverResponse{
		ID:                  d.ID,
		ExternalID:          d.ExternalID,
		Name:                d.Name,
		LicenseNumber:       d.LicenseNumber,
		VehicleRegistration: d.VehicleRegistration,
		PlateNumber:         d.PlateNumber,
		Photos:              d.Photos,
		Approved:            d.Approved,
		DutyStatus:          string(d.DutyStatus),
		CreatedAt:           formatTime(d.CreatedAt),
	}
}

// DriverSummaryResponse is a driver with workload and performance figures.
type DriverSummaryResponse struct {
	DriverResponse
	ActiveOrders  int     `json:"active_orders"`
	AverageRating float64 `json:"average_rating"`
	RatingCount   int     `json:"rating_count"`
	TotalEarnings float64 `json:"total_earnings"`
}

func toDriverSummaries(in []domain.DriverSummary) []DriverSummaryResponse {
	out := make([]DriverSummaryResponse, 0, len(in))
	for _, s := range in {
		out = append(out, DriverSummaryResponse{
			DriverResponse: toDriverResponse(s.Driver),
			ActiveOrders:   s.ActiveOrders,
			AverageRating:  s.AverageRating,
			RatingCount:    s.RatingCount,
			TotalEarnings:  s.TotalEarnings,
		})
	}
	return out
}

// UserResponse is the HTTP response for user data.
type UserResponse struct {
	ID         string `json:"id"`
	ExternalID int64  `json:"external_id"`
	Name       string `json:"name"`
	Username   string `json:"username,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

func toUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		ExternalID: u.ExternalID,
		Name:       u.DisplayName(),
		Username:   u.Username,
		Phone:      u.Phone,
	}
}

// ReviewResponse is the HTTP response for a review.
type ReviewResponse struct {
	OrderID string `json:"order_id"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

func toReviewResponse(r *domain.Review) ReviewResponse {
	return ReviewResponse{OrderID: r.OrderID, Rating: r.Rating, Comment: r.Comment}
}

// PromptResponse describes the input the conversation waits for.
type PromptResponse struct {
	Kind     string `json:"kind"`
	OrderID  string `json:"order_id,omitempty"`
	Position string `json:"position,omitempty"`
	Text     string `json:"text"`
}

func toPromptResponse(p *domain.Prompt) *PromptResponse {
	if p == nil {
		return nil
	}
	return &PromptResponse{
		Kind:     string(p.Kind),
		OrderID:  p.OrderID,
		Position: string(p.Position),
		Text:     service.PromptText(p),
	}
}

// DraftResponse is the order draft being collected.
type DraftResponse struct {
	FromAddress   string `json:"from_address,omitempty"`
	ToAddress     string `json:"to_address,omitempty"`
	Comment       string `json:"comment,omitempty"`
	ScheduledAt   string `json:"scheduled_at,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`
}

// ReplyResponse is the outcome of a conversation step.
type ReplyResponse struct {
	Text   string          `json:"text,omitempty"`
	Prompt *PromptResponse `json:"prompt,omitempty"`
	Draft  *DraftResponse  `json:"draft,omitempty"`
	Order  *OrderResponse  `json:"order,omitempty"`
	Driver *DriverResponse `json:"driver,omitempty"`
	Review *ReviewResponse `json:"review,omitempty"`
	User   *UserResponse   `json:"user,omitempty"`
}

func toReplyResponse(r *service.Reply) ReplyResponse {
	resp := ReplyResponse{Text: r.Text, Prompt: toPromptResponse(r.Prompt)}
	if d := r.Draft; d != nil {
		resp.Draft = &DraftResponse{
			FromAddress:   d.FromAddress,
			ToAddress:     d.ToAddress,
			Comment:       d.Comment,
			ScheduledAt:   formatTime(d.ScheduledAt),
			PaymentMethod: string(d.PaymentMethod),
		}
	}
	if r.Order != nil {
		o := toOrderResponse(r.Order)
		resp.Order = &o
	}
	if r.Driver != nil {
		d := toDriverResponse(r.Driver)
		resp.Driver = &d
	}
	if r.Review != nil {
		rv := toReviewResponse(r.Review)
		resp.Review = &rv
	}
	if r.User != nil {
		u := toUserResponse(r.User)
		resp.User = &u
	}
	return resp
}

// respondReply sends a conversation step, or the error with the repeated prompt.
func respondReply(c *gin.Context, code int, reply *service.Reply, err error) {
	if err != nil {
		if reply != nil && reply.Prompt != nil {
			c.JSON(mapErrorToHTTPStatus(err), ErrorResponse{Error: err.Error(), Prompt: toPromptResponse(reply.Prompt)})
			return
		}
		respondError(c, err)
		return
	}
	respondJSON(c, code, toReplyResponse(reply))
}

// PriceRequest is the HTTP request body carrying a price.
type PriceRequest struct {
	Price float64 `json:"price"`
}
