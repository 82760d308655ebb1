// Package sqldoc stores retros as JSON documents in a SQL table through
// GORM. Postgres is the production backend; SQLite serves local runs.
package sqldoc

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/retroboard-backend/internal/data/store"
	"github.com/yungbote/retroboard-backend/internal/domain"
)

const maxVersionRaces = 16

type Store struct {
	db   *gorm.DB
	opts store.Options
	now  func() time.Time
}

var _ store.Store = (*Store)(nil)

// New expects the schema to exist; see db.AutoMigrateAll.
func New(db *gorm.DB, opts store.Options) (*Store, error) {
	if db == nil {
		return nil, errors.New("gorm db is required")
	}
	return &Store{db: db, opts: opts, now: opts.Clock()}, nil
}

func (s *Store) GetRetro(ctx context.Context, id uuid.UUID) (*domain.Retro, error) {
	const op = "sqldoc.get_retro"
	var row RetroDocument
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, store.MapError(op, err)
	}
	return decodeRetro(op, row)
}

func (s *Store) ListRetros(ctx context.Context) ([]*domain.Retro, error) {
	const op = "sqldoc.list_retros"
	var rows []RetroDocument
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, store.MapError(op, err)
	}
	out := make([]*domain.Retro, 0, len(rows))
	for _, row := range rows {
		r, err := decodeRetro(op, row)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	store.SortRetros(out)
	return out, nil
}

func (s *Store) CreateRetro(ctx context.Context, retro *domain.Retro) (*domain.Retro, error) {
	const op = "sqldoc.create_retro"
	stored := store.FirstRevision(retro, s.now())
	doc, err := json.Marshal(stored)
	if err != nil {
		return nil, domain.Wrap(domain.CodePersistence, op, err)
	}
	row := RetroDocument{
		ID:        stored.ID,
		Name:      stored.Name,
		CreatorID: stored.CreatorID,
		Version:   stored.Version,
		CreatedAt: stored.CreatedAt,
		UpdatedAt: stored.UpdatedAt,
		Document:  datatypes.JSON(doc),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, store.MapError(op, err)
	}
	return stored, nil
}

// UpdateRetro is a compare-and-set on the version column. Without
// optimistic locking the compared version is the freshly read one, so a
// lost race is simply retried and the caller's document still wins.
func (s *Store) UpdateRetro(ctx context.Context, retro *domain.Retro) (*domain.Retro, error) {
	const op = "sqldoc.update_retro"
	db := s.db.WithContext(ctx)
	for race := 0; race < maxVersionRaces; race++ {
		var current RetroDocument
		if err := db.Select("id", "version").Where("id = ?", retro.ID).Take(&current).Error; err != nil {
			return nil, store.MapError(op, err)
		}
		if err := store.CheckVersion(op, s.opts.OptimisticLocking, retro.Version, current.Version); err != nil {
			return nil, err
		}

		stored := store.NextRevision(retro, current.Version, s.now())
		doc, err := json.Marshal(stored)
		if err != nil {
			return nil, domain.Wrap(domain.CodePersistence, op, err)
		}
		res := db.Model(&RetroDocument{}).
			Where("id = ? AND version = ?", retro.ID, current.Version).
			Updates(map[string]any{
				"name":       stored.Name,
				"version":    stored.Version,
				"updated_at": stored.UpdatedAt,
				"document":   datatypes.JSON(doc),
			})
		if res.Error != nil {
			return nil, store.MapError(op, res.Error)
		}
		if res.RowsAffected > 0 {
			return stored, nil
		}
		if s.opts.OptimisticLocking {
			return nil, domain.NewError(domain.CodeConflict, op, "retro changed concurrently", nil)
		}
	}
	return nil, domain.NewError(domain.CodeRetryable, op, "too many concurrent writers", nil)
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var row UserRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, store.MapError("sqldoc.get_user", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListUsers(ctx context.Context) ([]*domain.User, error) {
	var rows []UserRow
	if err := s.db.WithContext(ctx).Order("username ASC").Find(&rows).Error; err != nil {
		return nil, store.MapError("sqldoc.list_users", err)
	}
	out := make([]*domain.User, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	store.SortUsers(out)
	return out, nil
}

func (s *Store) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	stored := store.StampUser(user, s.now())
	row := UserRow{ID: stored.ID, Username: stored.Username, CreatedAt: stored.CreatedAt, UpdatedAt: stored.UpdatedAt}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, store.MapError("sqldoc.create_user", err)
	}
	return stored, nil
}

func (s *Store) UpdateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	const op = "sqldoc.update_user"
	var current UserRow
	if err := s.db.WithContext(ctx).Select("id", "created_at").Where("id = ?", user.ID).Take(&current).Error; err != nil {
		return nil, store.MapError(op, err)
	}
	stored := store.StampUser(user, s.now())
	stored.CreatedAt = current.CreatedAt.UTC()
	res := s.db.WithContext(ctx).Model(&UserRow{}).
		Where("id = ?", stored.ID).
		Updates(map[string]any{"username": stored.Username, "updated_at": stored.UpdatedAt})
	if res.Error != nil {
		return nil, store.MapError(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, domain.NotFound(op, "user")
	}
	return stored, nil
}

func (s *Store) ValidateUser(ctx context.Context, username string) (*domain.User, error) {
	const op = "sqldoc.validate_user"
	var rows []UserRow
	if err := s.db.WithContext(ctx).Where("username = ?", username).Find(&rows).Error; err != nil {
		return nil, store.MapError(op, err)
	}
	users := make([]*domain.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toDomain())
	}
	if u := store.FirstByUsername(users, username); u != nil {
		return u, nil
	}
	return nil, domain.NotFound(op, "user")
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return store.MapError("sqldoc.ping", err)
	}
	return store.MapError("sqldoc.ping", sqlDB.PingContext(ctx))
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func decodeRetro(op string, row RetroDocument) (*domain.Retro, error) {
	var r domain.Retro
	if err := json.Unmarshal(row.Document, &r); err != nil {
		return nil, domain.NewError(domain.CodePersistence, op, "corrupt retro document", err)
	}
	return &r, nil
}

func (row UserRow) toDomain() *domain.User {
	return &domain.User{
		ID:        row.ID,
		Username:  row.Username,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}
