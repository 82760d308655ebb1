package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/yungbote/retroboard-backend/internal/domain"
)

// FirstRevision stamps a retro for its initial insert.
func FirstRevision(r *domain.Retro, now time.Time) *domain.Retro {
	out := r.Clone()
	if out.CreatedAt.IsZero() {
		out.CreatedAt = now
	}
	out.UpdatedAt = now
	out.Version = 1
	if out.Participants == nil {
		out.Participants = []domain.Participant{}
	}
	return out
}

// NextRevision stamps the copy that replaces a stored revision.
func NextRevision(r *domain.Retro, stored int64, now time.Time) *domain.Retro {
	out := r.Clone()
	out.Version = stored + 1
	out.UpdatedAt = now
	return out
}

// CheckVersion rejects a stale write when optimistic locking is enabled.
func CheckVersion(op string, locking bool, expected, stored int64) error {
	if !locking || expected == stored {
		return nil
	}
	return domain.NewError(domain.CodeConflict, op,
		fmt.Sprintf("retro version %d is stale (stored %d)", expected, stored), nil)
}

// SameRetroContent compares two revisions of a retro ignoring the fields a
// store stamps on write. A zero CreatedAt on b matches any stored value.
func SameRetroContent(a, b *domain.Retro) bool {
	if a == nil || b == nil {
		return a == b
	}
	x, y := a.Clone(), b.Clone()
	x.Version, y.Version = 0, 0
	x.UpdatedAt, y.UpdatedAt = time.Time{}, time.Time{}
	if y.CreatedAt.IsZero() {
		y.CreatedAt = x.CreatedAt
	}
	xb, err := json.Marshal(x)
	if err != nil {
		return false
	}
	yb, err := json.Marshal(y)
	if err != nil {
		return false
	}
	return bytes.Equal(xb, yb)
}

func StampUser(u *domain.User, now time.Time) *domain.User {
	out := u.Clone()
	if out.CreatedAt.IsZero() {
		out.CreatedAt = now
	}
	out.UpdatedAt = now
	return out
}

// SortRetros orders by creation time, then id.
func SortRetros(retros []*domain.Retro) {
	sort.SliceStable(retros, func(i, j int) bool {
		if !retros[i].CreatedAt.Equal(retros[j].CreatedAt) {
			return retros[i].CreatedAt.Before(retros[j].CreatedAt)
		}
		return bytes.Compare(retros[i].ID[:], retros[j].ID[:]) < 0
	})
}

// SortUsers orders by username, then id.
func SortUsers(users []*domain.User) {
	sort.SliceStable(users, func(i, j int) bool {
		if users[i].Username != users[j].Username {
			return users[i].Username < users[j].Username
		}
		return bytes.Compare(users[i].ID[:], users[j].ID[:]) < 0
	})
}

// FirstByUsername returns the first user in list order whose name matches exactly.
func FirstByUsername(users []*domain.User, username string) *domain.User {
	SortUsers(users)
	for _, u := range users {
		if u.Username == username {
			return u
		}
	}
	return nil
}
