package model

// Role is the closed set of caller roles. Permission checks switch over
// this set exhaustively; anything outside it is denied.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// Permission names an action a role may perform.
type Permission string

const (
	PermViewDoctors         Permission = "view_doctors"
	PermBookAppointment     Permission = "book_appointment"
	PermViewOwnAppointments Permission = "view_own_appointments"
	PermViewAllAppointments Permission = "view_all_appointments"
	PermManageAppointments  Permission = "manage_appointments"
	PermViewPatientInfo     Permission = "view_patient_info"
	PermJoinSession         Permission = "join_session"
	PermContactSupport      Permission = "contact_support"
	PermManageUsers         Permission = "manage_users"
	PermViewAnalytics       Permission = "view_analytics"
)

// User represents a registered account. Registration and credential
// handling happen upstream; this core only reads users.
type User struct {
	Base
	Email     string  `json:"email" db:"email"`
	Name      string  `json:"name" db:"name"`
	Role      Role    `json:"role" db:"role"`
	IsActive  bool    `json:"is_active" db:"is_active"`
	Specialty *string `json:"specialty,omitempty" db:"specialty"`
	Bio       *string `json:"bio,omitempty" db:"bio"`
	ImageURL  *string `json:"image_url,omitempty" db:"image_url"`
}

// Doctor is the public-safe projection of a doctor account served by the
// directory. It deliberately carries no credential or account fields.
type Doctor struct {
	ID        string  `json:"id" db:"id"`
	Name      string  `json:"name" db:"name"`
	Email     string  `json:"email" db:"email"`
	Specialty string  `json:"specialty" db:"specialty"`
	Bio       *string `json:"bio,omitempty" db:"bio"`
	ImageURL  *string `json:"image_url,omitempty" db:"image_url"`
}
