package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/repository"
)

type users struct{ u unit }

func (r users) Create(_ context.Context, usr *model.User) error {
	usr.Email = strings.ToLower(strings.TrimSpace(usr.Email))
	if usr.Lifecycle == "" {
		usr.Lifecycle = model.LifecycleActive
	}
	return r.u.with(func(d *state) error {
		for _, existing := range d.users {
			if existing.Email == usr.Email {
				return repository.ErrDuplicate
			}
		}
		usr.ID = d.id()
		usr.CreatedAt, usr.UpdatedAt = now(), now()
		d.users[usr.ID] = *usr
		return nil
	})
}

func (r users) GetByID(_ context.Context, id uint64) (*model.User, error) {
	var out *model.User
	err := r.u.with(func(d *state) error {
		usr, ok := d.users[id]
		if !ok || usr.Lifecycle == model.LifecycleDeleted {
			return repository.ErrNotFound
		}
		out = &usr
		return nil
	})
	return out, err
}

func (r users) GetByEmail(_ context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var out *model.User
	err := r.u.with(func(d *state) error {
		for _, usr := range d.users {
			if usr.Email == email && usr.Lifecycle != model.LifecycleDeleted {
				usr := usr
				out = &usr
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r users) UpdateProfile(_ context.Context, id uint64, p model.ProfileUpdate) error {
	return r.u.with(func(d *state) error {
		usr, ok := d.users[id]
		if !ok || usr.Lifecycle == model.LifecycleDeleted {
			return repository.ErrNotFound
		}
		if p.Name != nil {
			usr.Name = *p.Name
		}
		if p.Image != nil {
			usr.Image = *p.Image
		}
		if p.Phone != nil {
			usr.Phone = *p.Phone
		}
		if p.Address != nil {
			usr.Address = *p.Address
		}
		if p.Bio != nil {
			usr.Bio = *p.Bio
		}
		if p.DailyRateCents != nil {
			usr.DailyRateCents = *p.DailyRateCents
		}
		if p.Languages != nil {
			usr.Languages = cloneStrings(p.Languages)
		}
		if p.Expertise != nil {
			usr.Expertise = cloneStrings(p.Expertise)
		}
		if p.TravelPreferences != nil {
			usr.TravelPreferences = cloneStrings(p.TravelPreferences)
		}
		usr.UpdatedAt = now()
		d.users[id] = usr
		return nil
	})
}

func (r users) SetLifecycle(_ context.Context, id uint64, l model.Lifecycle) error {
	return r.u.with(func(d *state) error {
		usr, ok := d.users[id]
		if !ok || usr.Lifecycle == model.LifecycleDeleted {
			return repository.ErrNotFound
		}
		usr.Lifecycle = l
		usr.UpdatedAt = now()
		d.users[id] = usr
		return nil
	})
}

func (r users) UpdatePassword(_ context.Context, id uint64, hash string) error {
	return r.u.with(func(d *state) error {
		usr, ok := d.users[id]
		if !ok || usr.Lifecycle == model.LifecycleDeleted {
			return repository.ErrNotFound
		}
		usr.PasswordHash = hash
		usr.UpdatedAt = now()
		d.users[id] = usr
		return nil
	})
}

func (r users) List(_ context.Context, p model.Page) ([]model.User, int64, error) {
	p = p.Normalize()
	var all []model.User
	err := r.u.with(func(d *state) error {
		for _, usr := range d.users {
			if usr.Lifecycle != model.LifecycleDeleted {
				all = append(all, usr)
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return window(all, p), int64(len(all)), nil
}

type tokens struct{ u unit }

func (r tokens) StoreRefresh(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	return r.u.with(func(d *state) error {
		if _, ok := d.tokens[tokenHash]; ok {
			return repository.ErrDuplicate
		}
		d.tokens[tokenHash] = tokenRow{userID: userID, expires: exp}
		return nil
	})
}

func (r tokens) ValidateRefresh(_ context.Context, tokenHash string) (uint64, error) {
	var userID uint64
	err := r.u.with(func(d *state) error {
		row, ok := d.tokens[tokenHash]
		if !ok || row.revoked || now().After(row.expires) {
			return repository.ErrNotFound
		}
		userID = row.userID
		return nil
	})
	return userID, err
}

func (r tokens) RevokeByHash(_ context.Context, tokenHash string) error {
	return r.u.with(func(d *state) error {
		if row, ok := d.tokens[tokenHash]; ok {
			row.revoked = true
			d.tokens[tokenHash] = row
		}
		return nil
	})
}

func (r tokens) RevokeAllForUser(_ context.Context, userID uint64) error {
	return r.u.with(func(d *state) error {
		for h, row := range d.tokens {
			if row.userID == userID {
				row.revoked = true
				d.tokens[h] = row
			}
		}
		return nil
	})
}
