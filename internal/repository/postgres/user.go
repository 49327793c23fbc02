package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/telecare/telemed-api/internal/model"
)

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	db, qctx, cancel, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	query := `
		SELECT id, email, name, role, is_active, specialty, bio, image_url,
			   created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var user model.User
	if err := db.GetContext(qctx, &user, query, id); err != nil {
		return nil, classify(err, "user")
	}
	return &user, nil
}

func (r *userRepository) ListDoctors(ctx context.Context, specialty string) ([]model.Doctor, error) {
	db, qctx, cancel, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	query := `
		SELECT id, name, email, specialty, bio, image_url
		FROM users
		WHERE role = 'doctor'
		AND is_active = true
		AND specialty IS NOT NULL AND specialty <> ''
	`
	args := []interface{}{}
	if specialty != "" {
		query += " AND specialty = $1"
		args = append(args, specialty)
	}
	query += " ORDER BY specialty ASC, name ASC"

	doctors := []model.Doctor{}
	if err := db.SelectContext(qctx, &doctors, query, args...); err != nil {
		return nil, classify(err, "doctors")
	}
	return doctors, nil
}

func (r *userRepository) ListSpecialties(ctx context.Context) ([]string, error) {
	db, qctx, cancel, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	query := `
		SELECT DISTINCT specialty
		FROM users
		WHERE role = 'doctor'
		AND is_active = true
		AND specialty IS NOT NULL AND specialty <> ''
		ORDER BY specialty ASC
	`
	specialties := []string{}
	if err := db.SelectContext(qctx, &specialties, query); err != nil {
		return nil, classify(err, "specialties")
	}
	return specialties, nil
}
