package repository

import (
	"context"
	"database/sql"
)

// PostgresUserRepository implements UserRepository using a PostgreSQL database.
type PostgresUserRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository with the given database connection.
// db must be a valid *sql.DB connected to a PostgreSQL instance.
func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{DB: db}
}

const userColumns = `id, username, password_hash, display_name, email, bio, contact_number, profile_picture, is_admin`

// CreateUser inserts a new account and returns its generated id.
// A taken username yields ErrDuplicate.
func (r *PostgresUserRepository) CreateUser(ctx context.Context, u User) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO users (username, password_hash, display_name, email, bio, contact_number, is_admin)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, u.Username, u.PasswordHash, u.DisplayName, u.Email, u.Bio, u.ContactNumber, u.IsAdmin).Scan(&id)
	if err != nil {
		return 0, translate(err)
	}
	return id, nil
}

// UserByUsername fetches the account with the given login name.
// Returns ErrNotFound if there is none.
func (r *PostgresUserRepository) UserByUsername(ctx context.Context, username string) (User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

// UserByID fetches the account with the given id.
func (r *PostgresUserRepository) UserByID(ctx context.Context, id int64) (User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// UpdateUser writes the profile fields of u. The password hash and
// username are not changed.
func (r *PostgresUserRepository) UpdateUser(ctx context.Context, u User) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE users SET display_name = $1, email = $2, bio = $3, contact_number = $4, profile_picture = $5
		WHERE id = $6
	`, u.DisplayName, u.Email, u.Bio, u.ContactNumber, u.ProfilePicture, u.ID)
	if err != nil {
		return translate(err)
	}
	return expectOne(res)
}

func scanUser(row *sql.Row) (User, error) {
	var (
		u       User
		picture sql.NullString
	)
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.DisplayName,
		&u.Email, &u.Bio, &u.ContactNumber, &picture, &u.IsAdmin)
	if err != nil {
		return User{}, translate(err)
	}
	if picture.Valid {
		u.ProfilePicture = &picture.String
	}
	return u, nil
}

// expectOne turns a zero-row update or delete into ErrNotFound.
func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
