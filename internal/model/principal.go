package model

import "github.com/google/uuid"

type UserRole string

const (
	UserRoleDispatcher UserRole = "DISPATCHER"
	UserRoleTechnician UserRole = "TECHNICIAN"
	UserRoleViewer     UserRole = "VIEWER"
)

type Principal struct {
	UserID uuid.UUID
	Name   string
	Role   UserRole
}

func (p Principal) IsDispatcher() bool {
	return p.Role == UserRoleDispatcher
}

func (p Principal) IsTechnician() bool {
	return p.Role == UserRoleTechnician
}

// CanCloseFaults covers field technicians reporting back from a visit.
func (p Principal) CanCloseFaults() bool {
	return p.IsDispatcher() || p.IsTechnician()
}

func (p Principal) CanReport() bool {
	return p.Role == UserRoleDispatcher || p.Role == UserRoleTechnician || p.Role == UserRoleViewer
}
