// Package services contains server-side business logic. This file implements
// UserService, which registers users and logs them in by consulting the
// cache, the durable store and the broker in a fixed order.
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
)

// PasswordCost is the bcrypt work factor for new password hashes.
const PasswordCost = cryptox.DefaultCost

// UserCache is the read-through cache in front of the store.
type UserCache interface {
	GetUser(ctx context.Context, email string) (*models.UserRecord, error)
	PutUser(ctx context.Context, user *models.UserRecord) error
}

// EventPublisher announces new registrations.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, id int64, email, passwordHash string) error
}

// TokenIssuer mints identity tokens.
type TokenIssuer interface {
	Issue(id, email string) (string, error)
}

// IDGenerator hands out unique user ids.
type IDGenerator interface {
	NextID() int64
}

// Recorder receives outcome counts. A nil Recorder disables metrics.
type Recorder interface {
	AuthOutcome(operation, outcome string)
	CacheFallback(operation string)
	EventPublished(result string)
}

// Deps collects UserService collaborators.
type Deps struct {
	DB          dbx.DBTX
	RepoManager repomanager.RepositoryManager
	Cache       UserCache
	Publisher   EventPublisher
	Tokens      TokenIssuer
	IDs         IDGenerator
	Metrics     Recorder
	Logger      logging.Logger
	// PasswordCost overrides PasswordCost when non-zero.
	PasswordCost int
}

// UserService provides authentication-related operations:
// - Register: create users and announce them
// - Login: verify credentials and mint tokens
type UserService struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	cache       UserCache
	publisher   EventPublisher
	tokens      TokenIssuer
	ids         IDGenerator
	metrics     Recorder
	logger      logging.Logger
	cost        int
}

func NewUserService(d Deps) *UserService {
	cost := d.PasswordCost
	if cost == 0 {
		cost = PasswordCost
	}
	l := d.Logger
	if l == nil {
		l = logging.Nop()
	}
	m := d.Metrics
	if m == nil {
		m = nopRecorder{}
	}
	return &UserService{
		db:          d.DB,
		repomanager: d.RepoManager,
		cache:       d.Cache,
		publisher:   d.Publisher,
		tokens:      d.Tokens,
		ids:         d.IDs,
		metrics:     m,
		logger:      l.With("module", "user_service"),
		cost:        cost,
	}
}

// Register creates the user and returns an identity token.
//
// The cache is consulted first, then the store; a hit in either is
// common.ErrUserExists. The new row is written to the store before the
// response, and a unique violation there is also ErrUserExists. Filling the
// cache and publishing the UserRegistered event are best effort.
func (s *UserService) Register(ctx context.Context, email, password string) (string, error) {
	const op = "register"
	log := s.logger.With("op", op, "email", email)

	cached, err := s.cache.GetUser(ctx, email)
	switch {
	case err == nil && cached != nil:
		log.Info(ctx, "user found in cache")
		s.metrics.AuthOutcome(op, "exists")
		return "", common.ErrUserExists
	case err == nil, errors.Is(err, common.ErrCacheMiss):
		log.Debug(ctx, "cache miss")
	default:
		log.Warn(ctx, "cache lookup failed, falling back to store", "error", err)
		s.metrics.CacheFallback(op)
	}

	repo := s.repomanager.Users(s.db)

	stored, err := repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		log.Info(ctx, "user found in store")
		s.fillCache(ctx, log, stored)
		s.metrics.AuthOutcome(op, "exists")
		return "", common.ErrUserExists
	case errors.Is(err, common.ErrorNotFound):
		log.Debug(ctx, "store miss")
	default:
		s.metrics.AuthOutcome(op, "error")
		return "", fmt.Errorf("error searching user: %w", err)
	}

	hash, err := cryptox.HashPassword(password, s.cost)
	if err != nil {
		s.metrics.AuthOutcome(op, "error")
		return "", fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	user := &models.UserRecord{ID: s.ids.NextID(), Email: email, PasswordHash: hash}

	if err := repo.Insert(ctx, user); err != nil {
		if errors.Is(err, common.ErrUserExists) {
			log.Info(ctx, "user created concurrently")
			s.metrics.AuthOutcome(op, "exists")
			return "", common.ErrUserExists
		}
		s.metrics.AuthOutcome(op, "error")
		return "", fmt.Errorf("error creating user: %w", err)
	}
	log.Info(ctx, "user stored", "id", user.ID)

	s.fillCache(ctx, log, user)

	if err := s.publisher.PublishUserRegistered(ctx, user.ID, user.Email, user.PasswordHash); err != nil {
		result := "error"
		if errors.Is(err, common.ErrNotConnected) {
			result = "not_connected"
		}
		log.Warn(ctx, "UserRegistered event not published", "error", err)
		s.metrics.EventPublished(result)
	} else {
		s.metrics.EventPublished("ok")
	}

	token, err := s.issue(user)
	if err != nil {
		s.metrics.AuthOutcome(op, "error")
		return "", err
	}

	log.Info(ctx, "token issued", "id", user.ID)
	s.metrics.AuthOutcome(op, "success")
	return token, nil
}

// Login verifies the password and returns an identity token.
//
// A cached entry whose hash does not match is final. Otherwise the store is
// always consulted and its answer wins; an email known to neither source is
// common.ErrUserNotFound.
func (s *UserService) Login(ctx context.Context, email, password string) (string, error) {
	const op = "login"
	log := s.logger.With("op", op, "email", email)

	var candidate *models.UserRecord

	cached, err := s.cache.GetUser(ctx, email)
	switch {
	case err == nil && cached != nil:
		if !cryptox.ComparePassword(cached.PasswordHash, password) {
			log.Info(ctx, "password mismatch against cache")
			s.metrics.AuthOutcome(op, "invalid_credentials")
			return "", common.ErrInvalidCredentials
		}
		log.Debug(ctx, "cache hit")
		candidate = cached
	case err == nil, errors.Is(err, common.ErrCacheMiss):
		log.Debug(ctx, "cache miss")
	default:
		log.Warn(ctx, "cache lookup failed, falling back to store", "error", err)
		s.metrics.CacheFallback(op)
	}

	repo := s.repomanager.Users(s.db)

	stored, err := repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if !cryptox.ComparePassword(stored.PasswordHash, password) {
			log.Info(ctx, "password mismatch against store")
			s.metrics.AuthOutcome(op, "invalid_credentials")
			return "", common.ErrInvalidCredentials
		}
		s.fillCache(ctx, log, stored)
		candidate = stored
	case errors.Is(err, common.ErrorNotFound):
		log.Debug(ctx, "store miss")
	default:
		s.metrics.AuthOutcome(op, "error")
		return "", fmt.Errorf("error searching user: %w", err)
	}

	if candidate == nil {
		log.Info(ctx, "unknown user")
		s.metrics.AuthOutcome(op, "not_found")
		return "", common.ErrUserNotFound
	}

	token, err := s.issue(candidate)
	if err != nil {
		s.metrics.AuthOutcome(op, "error")
		return "", err
	}

	log.Info(ctx, "login approved", "id", candidate.ID)
	s.metrics.AuthOutcome(op, "success")
	return token, nil
}

// --- helpers below ---

func (s *UserService) fillCache(ctx context.Context, log logging.Logger, user *models.UserRecord) {
	if err := s.cache.PutUser(ctx, user); err != nil {
		log.Warn(ctx, "cache fill failed", "error", err)
		s.metrics.CacheFallback("fill")
	}
}

func (s *UserService) issue(user *models.UserRecord) (string, error) {
	token, err := s.tokens.Issue(strconv.FormatInt(user.ID, 10), user.Email)
	if err != nil {
		return "", fmt.Errorf("%w: issue token: %v", common.ErrorInternal, err)
	}
	return token, nil
}

type nopRecorder struct{}

func (nopRecorder) AuthOutcome(string, string) {}
func (nopRecorder) CacheFallback(string)       {}
func (nopRecorder) EventPublished(string)      {}
