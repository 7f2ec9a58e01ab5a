// Package memory is an in-process user and stats repository for tests and local tooling.
package memory

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"lunaexecutor-backend/internal/features/user/models"
	"lunaexecutor-backend/internal/features/user/repository"
)

type dayKey struct {
	userID int64
	day    string
}

type Repository struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*models.User
	stats  map[dayKey]*models.UserStat
	now    func() time.Time

	// Err, when set, is returned by every method.
	Err error
}

var (
	_ repository.UserRepository  = (*Repository)(nil)
	_ repository.StatsRepository = (*Repository)(nil)
)

func New() *Repository {
	return &Repository{
		users: make(map[int64]*models.User),
		stats: make(map[dayKey]*models.UserStat),
		now:   time.Now,
	}
}

func clone(u *models.User) *models.User {
	c := *u
	return &c
}

func (r *Repository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	for _, u := range r.users {
		if strings.EqualFold(u.Username, user.Username) || strings.EqualFold(u.Email, user.Email) {
			return nil, repository.ErrConflict
		}
	}
	r.nextID++
	created := clone(user)
	created.ID = r.nextID
	created.MemberSince = r.now().UTC()
	r.users[created.ID] = created
	return clone(created), nil
}

func (r *Repository) find(match func(*models.User) bool) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	for _, u := range r.users {
		if match(u) {
			return clone(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id })
}

func (r *Repository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Username == username })
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Email == email })
}

func (r *Repository) GetByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	return r.find(func(u *models.User) bool {
		return u.VerificationToken != nil && *u.VerificationToken == token
	})
}

func (r *Repository) update(id int64, fn func(*models.User) error) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if err := fn(u); err != nil {
		return nil, err
	}
	return clone(u), nil
}

func (r *Repository) Verify(ctx context.Context, id int64) error {
	_, err := r.update(id, func(u *models.User) error {
		u.IsVerified = true
		u.VerificationToken = nil
		return nil
	})
	return err
}

func (r *Repository) UpdateProfile(ctx context.Context, id int64, username, email string) (*models.User, error) {
	return r.update(id, func(u *models.User) error {
		for _, other := range r.users {
			if other.ID != id && (strings.EqualFold(other.Username, username) || strings.EqualFold(other.Email, email)) {
				return repository.ErrConflict
			}
		}
		u.Username, u.Email = username, email
		return nil
	})
}

func (r *Repository) SetAdmin(ctx context.Context, id int64, isAdmin bool) error {
	_, err := r.update(id, func(u *models.User) error {
		u.IsAdmin = isAdmin
		return nil
	})
	return err
}

func (r *Repository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := r.update(id, func(u *models.User) error {
		u.LastLogin = &at
		return nil
	})
	return err
}

func (r *Repository) GetUserStats(ctx context.Context, userID int64) ([]*models.UserStat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	out := make([]*models.UserStat, 0)
	for k, s := range r.stats {
		if k.userID == userID {
			c := *s
			out = append(out, &c)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Date.Before(out[j-1].Date); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func (r *Repository) RecordExecution(ctx context.Context, userID int64, success bool, day time.Time) (*models.UserStat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	u, ok := r.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}

	date := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	k := dayKey{userID: userID, day: date.Format("2006-01-02")}
	s, ok := r.stats[k]
	if !ok {
		s = &models.UserStat{ID: int64(len(r.stats) + 1), UserID: userID, Date: date}
		r.stats[k] = s
	}
	s.Executions++
	if success {
		s.SuccessCount++
	} else {
		s.FailureCount++
	}

	var total, succeeded int
	for key, st := range r.stats {
		if key.userID == userID {
			total += st.Executions
			succeeded += st.SuccessCount
		}
	}
	u.TaskCount++
	if total > 0 {
		u.SuccessRate = math.Round(10000*float64(succeeded)/float64(total)) / 100
	}

	c := *s
	return &c, nil
}
