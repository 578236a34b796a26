package revenue

import (
	"context"
	"time"
)

// ReservationSource reads booking facts from the surrounding system
type ReservationSource interface {
	GetReservation(ctx context.Context, reservationID string) (*RawReservationFacts, error)
	// ListCheckingOut returns the reservations of a listing whose check-out
	// falls in [from, to).
	ListCheckingOut(ctx context.Context, listingID string, from, to time.Time) ([]RawReservationFacts, error)
}

// BusinessModelSource reads a listing's revenue-sharing configuration
type BusinessModelSource interface {
	GetBusinessModel(ctx context.Context, listingID string) (*BusinessModel, error)
}
