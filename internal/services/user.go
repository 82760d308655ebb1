package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/yungbote/retroboard-backend/internal/data/store"
	"github.com/yungbote/retroboard-backend/internal/domain"
	"github.com/yungbote/retroboard-backend/internal/platform/logger"
)

const maxUsername = 64

type UserService interface {
	// Signup creates a user. Usernames are not required to be unique.
	Signup(ctx context.Context, username string) (*domain.User, error)
	Login(ctx context.Context, username string) (*domain.User, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	Rename(ctx context.Context, id uuid.UUID, username string) (*domain.User, error)
}

type userService struct {
	log   *logger.Logger
	store store.UserStore
}

func NewUserService(log *logger.Logger, st store.UserStore) UserService {
	return &userService{log: log.With("service", "UserService"), store: st}
}

func (us *userService) Signup(ctx context.Context, username string) (*domain.User, error) {
	username, err := normalizeUsername("user.signup", username)
	if err != nil {
		return nil, err
	}
	created, err := us.store.CreateUser(ctx, &domain.User{ID: uuid.New(), Username: username})
	if err != nil {
		us.log.Error("Create user failed", "error", err)
		return nil, domain.Wrap(domain.CodePersistence, "user.signup", err)
	}
	us.log.Info("User signed up", "user_id", created.ID)
	return created, nil
}

func (us *userService) Login(ctx context.Context, username string) (*domain.User, error) {
	username, err := normalizeUsername("user.login", username)
	if err != nil {
		return nil, err
	}
	u, err := us.store.ValidateUser(ctx, username)
	if domain.IsNotFound(err) {
		return nil, domain.NewError(domain.CodeUnauthorized, "user.login", "unknown username", err)
	}
	if err != nil {
		us.log.Error("Validate user failed", "error", err)
		return nil, domain.Wrap(domain.CodePersistence, "user.login", err)
	}
	return u, nil
}

func (us *userService) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u, err := us.store.GetUser(ctx, id)
	if err != nil {
		return nil, domain.Wrap(domain.CodePersistence, "user.get", err)
	}
	return u, nil
}

func (us *userService) List(ctx context.Context) ([]*domain.User, error) {
	users, err := us.store.ListUsers(ctx)
	if err != nil {
		return nil, domain.Wrap(domain.CodePersistence, "user.list", err)
	}
	return users, nil
}

func (us *userService) Rename(ctx context.Context, id uuid.UUID, username string) (*domain.User, error) {
	username, err := normalizeUsername("user.rename", username)
	if err != nil {
		return nil, err
	}
	current, err := us.store.GetUser(ctx, id)
	if err != nil {
		return nil, domain.Wrap(domain.CodePersistence, "user.rename", err)
	}
	next := current.Clone()
	next.Username = username
	updated, err := us.store.UpdateUser(ctx, next)
	if err != nil {
		us.log.Error("Rename user failed", "user_id", id, "error", err)
		return nil, domain.Wrap(domain.CodePersistence, "user.rename", err)
	}
	return updated, nil
}

func normalizeUsername(op, raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", domain.NewError(domain.CodeValidation, op, "username is required", nil)
	}
	if utf8.RuneCountInString(name) > maxUsername {
		return "", domain.NewError(domain.CodeValidation, op, fmt.Sprintf("username exceeds %d characters", maxUsername), nil)
	}
	return name, nil
}
