package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/telecare/telemed-api/internal/model"
)

func TestHasPermission(t *testing.T) {
	svc := NewService()

	tests := []struct {
		name string
		role model.Role
		perm model.Permission
		want bool
	}{
		{"patient can book", model.RolePatient, model.PermBookAppointment, true},
		{"patient can view doctors", model.RolePatient, model.PermViewDoctors, true},
		{"patient cannot manage users", model.RolePatient, model.PermManageUsers, false},
		{"patient cannot manage appointments", model.RolePatient, model.PermManageAppointments, false},
		{"doctor can manage appointments", model.RoleDoctor, model.PermManageAppointments, true},
		{"doctor can view patient info", model.RoleDoctor, model.PermViewPatientInfo, true},
		{"doctor cannot manage users", model.RoleDoctor, model.PermManageUsers, false},
		{"admin can manage users", model.RoleAdmin, model.PermManageUsers, true},
		{"admin can view analytics", model.RoleAdmin, model.PermViewAnalytics, true},
		{"admin can book", model.RoleAdmin, model.PermBookAppointment, true},
		{"unknown role denied everything", model.Role("unknown_role"), model.Permission("anything"), false},
		{"empty role denied", model.Role(""), model.PermViewDoctors, false},
		{"known role unknown permission denied", model.RoleAdmin, model.Permission("launch_rockets"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.HasPermission(tt.role, tt.perm))
		})
	}
}

func TestPermissionsUnknownRoleEmpty(t *testing.T) {
	svc := NewService()
	assert.Empty(t, svc.Permissions(model.Role("nurse")))
}

func TestAdminSupersetOfDoctor(t *testing.T) {
	svc := NewService()
	for _, p := range svc.Permissions(model.RoleDoctor) {
		assert.Truef(t, svc.HasPermission(model.RoleAdmin, p), "admin missing doctor permission %s", p)
	}
}
