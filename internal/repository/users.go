package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ticketbooth/internal/apperr"
	"ticketbooth/internal/model"
)

const uniqueViolation = "23505"

type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const userColumns = `id, email, password_hash, first_name, last_name, role, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func (s *UserStore) Create(ctx context.Context, email, passwordHash, firstName, lastName, role string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, first_name, last_name, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns+`
	`, email, passwordHash, firstName, lastName, role)
	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return model.User{}, apperr.Conflict("email_exists", "A user with this email already exists")
		}
		return model.User{}, err
	}
	return user, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, apperr.NotFound("user_not_found", "User not found")
	}
	return user, err
}

func (s *UserStore) GetByID(ctx context.Context, userID int64) (model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, apperr.NotFound("user_not_found", "User not found")
	}
	return user, err
}

func (s *UserStore) List(ctx context.Context, limit, offset int) ([]model.User, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]model.User, 0, limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	return users, total, rows.Err()
}

type UserUpdate struct {
	Email        *string
	PasswordHash *string
	FirstName    *string
	LastName     *string
	Role         *string
	IsActive     *bool
}

func (s *UserStore) Update(ctx context.Context, userID int64, update UserUpdate) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users
		SET email = COALESCE($2, email),
			password_hash = COALESCE($3, password_hash),
			first_name = COALESCE($4, first_name),
			last_name = COALESCE($5, last_name),
			role = COALESCE($6, role),
			is_active = COALESCE($7, is_active),
			updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns+`
	`, userID, update.Email, update.PasswordHash, update.FirstName, update.LastName, update.Role, update.IsActive)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, apperr.NotFound("user_not_found", "User not found")
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return model.User{}, apperr.Conflict("email_exists", "A user with this email already exists")
		}
		return model.User{}, err
	}
	return user, nil
}

func (s *UserStore) Delete(ctx context.Context, userID int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
