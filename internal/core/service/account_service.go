package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

// AccountService manages operator credentials. Usernames are unique: creating
// or renaming onto a taken name fails with a conflict.
type AccountService struct {
	repo   port.AccountRepository
	hasher port.PasswordHasher

	// compared against when the username is unknown so both failure paths cost one hash check
	dummyHash string
}

func NewAccountService(repo port.AccountRepository, hasher port.PasswordHasher) *AccountService {
	dummy, _ := hasher.Hash("stock-ledger-dummy-password")
	return &AccountService{repo: repo, hasher: hasher, dummyHash: dummy}
}

func (s *AccountService) Create(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, domain.InvalidArgument("username is required")
	}
	if password == "" {
		return nil, domain.InvalidArgument("password is required")
	}
	if err := checkPasswordLength(password); err != nil {
		return nil, err
	}

	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.CreateUser(ctx, domain.User{Username: username, PasswordHash: hash})
	if err != nil {
		return nil, domain.Storage("create user", err)
	}
	return user, nil
}

// Authenticate returns the user whose stored hash matches password. Unknown
// usernames and wrong passwords are indistinguishable to the caller.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.repo.GetUser(ctx, username)
	if err != nil {
		return nil, domain.Storage("get user", err)
	}
	if user == nil {
		s.hasher.Verify(s.dummyHash, password)
		return nil, domain.NotFound("invalid username or password")
	}
	if !s.hasher.Verify(user.PasswordHash, password) {
		return nil, domain.NotFound("invalid username or password")
	}
	return user, nil
}

func (s *AccountService) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, domain.Storage("list users", err)
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

// Update applies only the supplied fields.
func (s *AccountService) Update(ctx context.Context, username string, update domain.UserUpdate) (*domain.User, error) {
	if update.Empty() {
		return nil, domain.InvalidArgument("at least one of newUsername or password is required")
	}

	var newUsername, newHash *string
	if update.NewUsername != nil {
		name := strings.TrimSpace(*update.NewUsername)
		if name == "" {
			return nil, domain.InvalidArgument("newUsername must not be empty")
		}
		newUsername = &name
	}
	if update.Password != nil {
		if *update.Password == "" {
			return nil, domain.InvalidArgument("password must not be empty")
		}
		if err := checkPasswordLength(*update.Password); err != nil {
			return nil, err
		}
		hash, err := s.hash(*update.Password)
		if err != nil {
			return nil, err
		}
		newHash = &hash
	}

	user, err := s.repo.UpdateUser(ctx, username, newUsername, newHash)
	if err != nil {
		return nil, domain.Storage("update user", err)
	}
	if user == nil {
		return nil, domain.NotFound("user %q not found", username)
	}
	return user, nil
}

// Delete removes the user. Deleting an unknown username succeeds.
func (s *AccountService) Delete(ctx context.Context, username string) error {
	if err := s.repo.DeleteUser(ctx, username); err != nil {
		return domain.Storage("delete user", err)
	}
	return nil
}

func checkPasswordLength(password string) error {
	if len(password) > domain.MaxPasswordBytes {
		return domain.InvalidArgument("password must be at most %d bytes", domain.MaxPasswordBytes)
	}
	return nil
}

func (s *AccountService) hash(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		var derr *domain.Error
		if errors.As(err, &derr) {
			return "", derr
		}
		return "", &domain.Error{Kind: domain.KindInternal, Message: "hash password", Err: err}
	}
	return hash, nil
}
