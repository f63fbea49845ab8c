package accounts

import (
	"context"
	"database/sql"
	"errors"

	"github.com/joao-fontenele/shopfront/internal/database"
	"github.com/joao-fontenele/shopfront/internal/domain"
)

const userColumns = "id, username, email, password_hash, phone_number, role, created_at"

type UserRepository struct {
	db database.DBTX
}

func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.findOne(ctx, "id = $1", id)
}

// FindByPhone expects the normalized form.
func (r *UserRepository) FindByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return r.findOne(ctx, "phone_number = $1", phone)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, "email = $1", email)
}

func (r *UserRepository) findOne(ctx context.Context, where string, arg any) (*domain.User, error) {
	user := &domain.User{}
	err := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.PhoneNumber, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (username, email, password_hash, phone_number, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, user.Username, user.Email, user.PasswordHash, user.PhoneNumber, user.Role).Scan(&user.ID, &user.CreatedAt)
	switch {
	case err == nil:
		return nil
	case database.IsUniqueViolation(err, "idx_users_email"):
		return ErrEmailTaken
	case database.IsUniqueViolation(err, "idx_users_phone"):
		return ErrPhoneTaken
	default:
		return err
	}
}
