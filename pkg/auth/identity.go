package auth

import (
	"github.com/google/uuid"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/enums"
)

// Identity is the authenticated caller handed to every core operation.
type Identity struct {
	UserID uuid.UUID
	Role   enums.ActorRole
	LabID  *uuid.UUID
}

// IsSuperAdmin reports whether the caller may act on every lab.
func (i Identity) IsSuperAdmin() bool {
	return i.Role == enums.ActorRoleSuperAdmin
}

// IsStaff reports whether the caller is lab staff of any rank.
func (i Identity) IsStaff() bool {
	return i.Role.IsStaff()
}

// InLab reports whether the caller may act on records of labID.
func (i Identity) InLab(labID uuid.UUID) bool {
	if i.IsSuperAdmin() {
		return true
	}
	return i.IsStaff() && i.LabID != nil && *i.LabID == labID
}

// HomeLab returns the caller's lab, or uuid.Nil for callers without one.
func (i Identity) HomeLab() uuid.UUID {
	if i.LabID == nil {
		return uuid.Nil
	}
	return *i.LabID
}
