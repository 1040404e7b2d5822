package types

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/farmexchange-backend/pkg/enums"
)

// Actor is the authenticated identity an operation runs on behalf of.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserType
}

// IsZero reports whether no identity was supplied.
func (a Actor) IsZero() bool {
	return a.UserID == uuid.Nil
}

// IsFarmer reports whether the actor holds the seller role.
func (a Actor) IsFarmer() bool {
	return a.Role.IsSeller()
}
