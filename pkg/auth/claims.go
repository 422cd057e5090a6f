package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.ActorRole
	LabID  *uuid.UUID
	JTI    string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID uuid.UUID       `json:"user_id"`
	Role   enums.ActorRole `json:"role"`
	LabID  *uuid.UUID      `json:"lab_id,omitempty"`
	jwt.RegisteredClaims
}

// Identity returns the caller identity carried by the claims.
func (c *AccessTokenClaims) Identity() Identity {
	return Identity{UserID: c.UserID, Role: c.Role, LabID: c.LabID}
}
