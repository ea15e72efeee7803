package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/tour-booking/internal/model"
)

// UserRepo is the MySQL UserRepository.  Deleted accounts are invisible
// to every read.
type UserRepo struct{ q querier }

const userColumns = `id, name, email, password_hash, role, image, phone, address, bio,
	languages, expertise, daily_rate_cents, travel_preferences, lifecycle, created_at, updated_at`

// Create inserts the user and sets its ID.  The email is normalized first.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Lifecycle == "" {
		u.Lifecycle = model.LifecycleActive
	}
	langs, err := jsonColumn(u.Languages)
	if err != nil {
		return err
	}
	exp, err := jsonColumn(u.Expertise)
	if err != nil {
		return err
	}
	prefs, err := jsonColumn(u.TravelPreferences)
	if err != nil {
		return err
	}
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO users (name, email, password_hash, role, image, phone, address, bio,
			languages, expertise, daily_rate_cents, travel_preferences, lifecycle)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		u.Name, u.Email, u.PasswordHash, string(u.Role), nullString(u.Image), nullString(u.Phone),
		nullString(u.Address), nullString(u.Bio), langs, exp, u.DailyRateCents, prefs, string(u.Lifecycle))
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.q.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? AND lifecycle<>'DELETED' LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return scanUser(r.q.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? AND lifecycle<>'DELETED' LIMIT 1", id))
}

// UpdateProfile writes only the fields present in p.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, p model.ProfileUpdate) error {
	sets := []string{}
	args := []any{}
	add := func(col string, v any) {
		sets = append(sets, col+"=?")
		args = append(args, v)
	}
	if p.Name != nil {
		add("name", *p.Name)
	}
	if p.Image != nil {
		add("image", nullString(*p.Image))
	}
	if p.Phone != nil {
		add("phone", nullString(*p.Phone))
	}
	if p.Address != nil {
		add("address", nullString(*p.Address))
	}
	if p.Bio != nil {
		add("bio", nullString(*p.Bio))
	}
	if p.DailyRateCents != nil {
		add("daily_rate_cents", *p.DailyRateCents)
	}
	for col, list := range map[string][]string{
		"languages":          p.Languages,
		"expertise":          p.Expertise,
		"travel_preferences": p.TravelPreferences,
	} {
		if list == nil {
			continue
		}
		v, err := jsonColumn(list)
		if err != nil {
			return err
		}
		add(col, v)
	}
	if len(sets) == 0 {
		_, err := r.GetByID(ctx, id)
		return err
	}
	args = append(args, id)
	return expectOne(r.q.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id=? AND lifecycle<>'DELETED'", args...))
}

// SetLifecycle moves the account to l.  Deleting is a lifecycle change,
// rows are never removed.
func (r *UserRepo) SetLifecycle(ctx context.Context, id uint64, l model.Lifecycle) error {
	return expectOne(r.q.ExecContext(ctx,
		"UPDATE users SET lifecycle=? WHERE id=? AND lifecycle<>'DELETED'", string(l), id))
}

func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, hash string) error {
	return expectOne(r.q.ExecContext(ctx,
		"UPDATE users SET password_hash=? WHERE id=? AND lifecycle<>'DELETED'", hash, id))
}

func (r *UserRepo) List(ctx context.Context, p model.Page) ([]model.User, int64, error) {
	p = p.Normalize()
	var total int64
	if err := r.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE lifecycle<>'DELETED'").Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE lifecycle<>'DELETED' ORDER BY id DESC LIMIT ? OFFSET ?",
		p.Limit, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *u)
	}
	return out, total, rows.Err()
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u                                 model.User
		role, lifecycle                   string
		image, phone, address, bio        sql.NullString
		langs, expertise, prefs           []byte
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &image, &phone, &address, &bio,
		&langs, &expertise, &u.DailyRateCents, &prefs, &lifecycle, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	u.Role = model.Role(role)
	u.Lifecycle = model.Lifecycle(lifecycle)
	u.Image, u.Phone, u.Address, u.Bio = image.String, phone.String, address.String, bio.String
	if err := decodeJSON(langs, &u.Languages); err != nil {
		return nil, err
	}
	if err := decodeJSON(expertise, &u.Expertise); err != nil {
		return nil, err
	}
	if err := decodeJSON(prefs, &u.TravelPreferences); err != nil {
		return nil, err
	}
	return &u, nil
}

// nullString stores empty strings as NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
