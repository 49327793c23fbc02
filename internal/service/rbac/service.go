package rbac

import (
	"github.com/telecare/telemed-api/internal/model"
)

// Service answers role/permission questions from a static table. It is
// pure and fail-closed: an unknown role or permission is denied, never
// an error.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// HasPermission reports whether role may perform perm.
func (s *Service) HasPermission(role model.Role, perm model.Permission) bool {
	for _, p := range s.Permissions(role) {
		if p == perm {
			return true
		}
	}
	return false
}

// Permissions returns the fixed permission set for role. The switch is
// exhaustive over the closed role set; adding a role without a case
// here denies it everything until the table is extended.
func (s *Service) Permissions(role model.Role) []model.Permission {
	switch role {
	case model.RolePatient:
		return []model.Permission{
			model.PermViewDoctors,
			model.PermBookAppointment,
			model.PermViewOwnAppointments,
			model.PermJoinSession,
			model.PermContactSupport,
		}
	case model.RoleDoctor:
		return []model.Permission{
			model.PermViewDoctors,
			model.PermViewAllAppointments,
			model.PermManageAppointments,
			model.PermViewPatientInfo,
			model.PermJoinSession,
			model.PermContactSupport,
		}
	case model.RoleAdmin:
		return []model.Permission{
			model.PermViewDoctors,
			model.PermBookAppointment,
			model.PermViewOwnAppointments,
			model.PermViewAllAppointments,
			model.PermManageAppointments,
			model.PermViewPatientInfo,
			model.PermJoinSession,
			model.PermContactSupport,
			model.PermManageUsers,
			model.PermViewAnalytics,
		}
	default:
		return nil
	}
}
