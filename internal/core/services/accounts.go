package services

import (
	"context"
	"errors"
	"regexp"
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/peertube-pod/internal/core/domain"
	"github.com/peertube-pod/internal/federation"
	"github.com/peertube-pod/internal/logging"
)

const MinPasswordLength = 6

var usernamePattern = regexp.MustCompile(`^[a-z0-9._]{1,50}$`)

func ValidUsername(name string) bool {
	return usernamePattern.MatchString(name)
}

type AccountService struct {
	urls       federation.URLs
	store      Store
	clock      Clock
	bcryptCost int
}

func NewAccountService(urls federation.URLs, store Store, clock Clock, bcryptCost int) *AccountService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AccountService{
		urls:       urls,
		store:      store,
		clock:      clock,
		bcryptCost: bcryptCost,
	}
}

// Register creates a local account together with its default channel.
func (s *AccountService) Register(ctx context.Context, name, password string, role domain.Role) (*domain.Account, error) {
	if !ValidUsername(name) {
		return nil, ErrInvalidUsername
	}
	if len(password) < MinPasswordLength {
		return nil, ErrInvalidPassword
	}
	if role == "" {
		role = domain.RoleUser
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	account := &domain.Account{
		UUID:         uuid.NewString(),
		Name:         name,
		URL:          s.urls.Account(name),
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
	}

	err = s.store.InTx(ctx, func(ctx context.Context, tx Repositories) error {
		existing, err := tx.Accounts().FindLocalByName(ctx, name)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrAccountExists
		}

		if err := tx.Accounts().Create(ctx, account); err != nil {
			return err
		}
		return tx.Channels().Create(ctx, &domain.VideoChannel{
			AccountID: account.ID,
			Name:      name + "_channel",
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	logging.Ctx(ctx).Info().Str("account", name).Str("role", string(role)).Msg("account registered")
	return account, nil
}

func (s *AccountService) Authenticate(ctx context.Context, name, password string) (*domain.Account, error) {
	account, err := s.store.Accounts().FindLocalByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return account, nil
}

// EnsureAdmin creates the bootstrap administrator when no local account has that name.
func (s *AccountService) EnsureAdmin(ctx context.Context, name, password string) (*domain.Account, error) {
	existing, err := s.store.Accounts().FindLocalByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	account, err := s.Register(ctx, name, password, domain.RoleAdmin)
	if errors.Is(err, ErrAccountExists) {
		return s.store.Accounts().FindLocalByName(ctx, name)
	}
	return account, err
}

func (s *AccountService) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	account, err := s.store.Accounts().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

// Get accepts an integer id or a UUID.
func (s *AccountService) Get(ctx context.Context, idOrUUID string) (*domain.Account, error) {
	var (
		account *domain.Account
		err     error
	)
	if id, convErr := strconv.ParseInt(idOrUUID, 10, 64); convErr == nil {
		account, err = s.store.Accounts().FindByID(ctx, id)
	} else if _, parseErr := uuid.Parse(idOrUUID); parseErr == nil {
		account, err = s.store.Accounts().FindByUUID(ctx, idOrUUID)
	}
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

func (s *AccountService) CreateChannel(ctx context.Context, account *domain.Account, name string) (*domain.VideoChannel, error) {
	if !account.IsLocal() {
		return nil, ErrForbidden
	}
	channel := &domain.VideoChannel{
		AccountID: account.ID,
		Name:      name,
		CreatedAt: s.clock.Now(),
	}
	if err := s.store.Channels().Create(ctx, channel); err != nil {
		return nil, err
	}
	return channel, nil
}

func (s *AccountService) ListChannels(ctx context.Context, accountID int64) ([]*domain.VideoChannel, error) {
	account, err := s.store.Accounts().FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	return s.store.Channels().ListByAccount(ctx, accountID)
}
