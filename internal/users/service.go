package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/2beens/gymtracker/internal/telemetry/metrics"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/pkg"

	log "github.com/sirupsen/logrus"
)

type Service struct {
	repo         Repo
	hashCost     int
	storeTimeout time.Duration
	metrics      *metrics.Manager
}

func NewService(repo Repo, hashCost int, storeTimeout time.Duration, metricsManager *metrics.Manager) *Service {
	if hashCost <= 0 {
		hashCost = pkg.DefaultPasswordHashCost
	}
	return &Service{
		repo:         repo,
		hashCost:     hashCost,
		storeTimeout: storeTimeout,
		metrics:      metricsManager,
	}
}

func (s *Service) Register(ctx context.Context, creds Credentials) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.users.register")
	defer func() {
		tracing.EndSpan(span, err)
	}()

	email := strings.TrimSpace(creds.Email)
	if email == "" || creds.Password == "" {
		return ErrMissingCredentials
	}

	hash, err := pkg.HashPasswordWithCost(creds.Password, s.hashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	err = s.repo.Add(ctx, User{
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return err
		}
		return fmt.Errorf("add user: %w", storeUnavailable(err))
	}

	if s.metrics != nil {
		s.metrics.CounterRegistrations.Inc()
	}
	log.Debugf("user registered: %s", email)
	return nil
}

// Login checks the credentials. An unknown email and a wrong password both give ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, creds Credentials) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.users.login")
	defer func() {
		tracing.EndSpan(span, err)
	}()

	email := strings.TrimSpace(creds.Email)
	if email == "" || creds.Password == "" {
		s.countLogin("invalid")
		return ErrMissingCredentials
	}

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	user, err := s.repo.Get(storeCtx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.countLogin("rejected")
			return ErrInvalidCredentials
		}
		s.countLogin("failed")
		return fmt.Errorf("get user: %w", storeUnavailable(err))
	}

	if !pkg.CheckPasswordHash(creds.Password, user.PasswordHash) {
		s.countLogin("rejected")
		return ErrInvalidCredentials
	}

	s.countLogin("success")
	return nil
}

func (s *Service) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}

func (s *Service) countLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.CounterLogins.WithLabelValues(outcome).Inc()
	}
}

func storeUnavailable(err error) error {
	if !errors.Is(err, ErrStoreUnavailable) && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return err
}
