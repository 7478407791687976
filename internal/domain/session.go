package domain

import "time"

// PromptKind identifies the free-text input a conversation is waiting for.
type PromptKind string

const (
	PromptOrderFrom        PromptKind = "ORDER_FROM"
	PromptOrderTo          PromptKind = "ORDER_TO"
	PromptOrderComment     PromptKind = "ORDER_COMMENT"
	PromptSetPrice         PromptKind = "SET_PRICE"
	PromptCounterOffer     PromptKind = "COUNTER_OFFER"
	PromptAdminCounter     PromptKind = "ADMIN_COUNTER"
	PromptReviewComment    PromptKind = "REVIEW_COMMENT"
	PromptAddAdmin         PromptKind = "ADD_ADMIN"
	PromptPhone            PromptKind = "PHONE"
	PromptDriverName       PromptKind = "DRIVER_NAME"
	PromptDriverLicense    PromptKind = "DRIVER_LICENSE"
	PromptDriverVehicleReg PromptKind = "DRIVER_VEHICLE_REGISTRATION"
	PromptDriverPlate      PromptKind = "DRIVER_PLATE"
	PromptDriverPhoto      PromptKind = "DRIVER_PHOTO"
)

// Prompt is a pending request for the actor's next text input.
type Prompt struct {
	Kind     PromptKind    `json:"kind"`
	OrderID  string        `json:"order_id,omitempty"`
	Position PhotoPosition `json:"position,omitempty"`
}

// OrderDraft collects order details across several chat messages.
type OrderDraft struct {
	FromAddress   string        `json:"from_address"`
	ToAddress     string        `json:"to_address"`
	Comment       string        `json:"comment"`
	ScheduledAt   time.Time     `json:"scheduled_at"`
	PaymentMethod PaymentMethod `json:"payment_method"`
}

// RegistrationDraft collects driver registration details.
type RegistrationDraft struct {
	Name                string  `json:"name"`
	LicenseNumber       string  `json:"license_number"`
	VehicleRegistration string  `json:"vehicle_registration"`
	PlateNumber         string  `json:"plate_number"`
	Photos              []Photo `json:"photos"`
}

// NextPhotoPosition returns the first position without a photo.
func (d *RegistrationDraft) NextPhotoPosition() (PhotoPosition, bool) {
	for _, p := range PhotoPositions {
		found := false
		for _, ph := range d.Photos {
			if ph.Position == p {
				found = true
				break
			}
		}
		if !found {
			return p, true
		}
	}
	return "", false
}

// Session is the transient conversation state of one actor.
// Concurrent flows of the same actor overwrite each other.
type Session struct {
	ActorID      int64              `json:"actor_id"`
	OrderDraft   *OrderDraft        `json:"order_draft,omitempty"`
	Registration *RegistrationDraft `json:"registration,omitempty"`
	Prompt       *Prompt            `json:"prompt,omitempty"`
	UpdatedAt    time.Time          `json:"updated_at"`
}
