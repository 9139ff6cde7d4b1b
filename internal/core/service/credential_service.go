package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
	"github.com/99minutos/identity-service/internal/pkg/metrics"
)

const defaultTokenTTL = time.Hour

// Dependencies are the collaborators of CredentialService. Limiter and Audit
// are optional.
type Dependencies struct {
	Users    ports.UserRepository
	Sessions ports.SessionStore
	Tokens   ports.TokenIssuer
	Hasher   ports.PasswordHasher
	Limiter  ports.AttemptLimiter
	Audit    ports.AuditRecorder
}

type Options struct {
	TokenTTL          time.Duration
	PasswordMinLength int
}

// CredentialService is the credential store and authorizer. Every decision
// about an actor is derived from a verified token backed by an active
// server-side session.
type CredentialService struct {
	users    ports.UserRepository
	sessions ports.SessionStore
	tokens   ports.TokenIssuer
	hasher   ports.PasswordHasher
	limiter  ports.AttemptLimiter
	audit    ports.AuditRecorder
	policy   *Policy
	logger   zerolog.Logger
	tokenTTL time.Duration
	now      func() time.Time

	// dummyHash is verified against when the username is unknown so the
	// response time does not reveal whether the account exists.
	dummyHash string
}

var _ ports.CredentialService = (*CredentialService)(nil)

func NewCredentialService(deps Dependencies, opts Options, logger zerolog.Logger) (*CredentialService, error) {
	if deps.Users == nil || deps.Sessions == nil || deps.Tokens == nil || deps.Hasher == nil {
		return nil, errors.New("credential service: users, sessions, tokens and hasher are required")
	}
	if deps.Limiter == nil {
		deps.Limiter = noopLimiter{}
	}
	if deps.Audit == nil {
		deps.Audit = noopRecorder{}
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = defaultTokenTTL
	}

	filler := make([]byte, 16)
	if _, err := rand.Read(filler); err != nil {
		return nil, fmt.Errorf("credential service: %w", err)
	}
	dummy, err := deps.Hasher.Hash(hex.EncodeToString(filler))
	if err != nil {
		return nil, fmt.Errorf("credential service: dummy hash: %w", err)
	}

	return &CredentialService{
		users:     deps.Users,
		sessions:  deps.Sessions,
		tokens:    deps.Tokens,
		hasher:    deps.Hasher,
		limiter:   deps.Limiter,
		audit:     deps.Audit,
		policy:    NewPolicy(opts.PasswordMinLength),
		logger:    logger.With().Str("component", "credential_service").Logger(),
		tokenTTL:  opts.TokenTTL,
		now:       func() time.Time { return time.Now().UTC() },
		dummyHash: dummy,
	}, nil
}

// Authenticate checks a username and password and opens a session. Unknown
// users and wrong passwords both yield ErrInvalidCredentials.
func (s *CredentialService) Authenticate(ctx context.Context, username, password string) (*domain.AuthResult, error) {
	uname := NormalizeUsername(username)
	if uname == "" || password == "" {
		metrics.AuthenticationsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, domain.ErrInvalidCredentials
	}

	allowed, err := s.limiter.Reserve(ctx, uname)
	if err != nil {
		s.logger.Warn().Err(err).Str("username", uname).Msg("attempt limiter unavailable, processing anyway")
		allowed = true
	}
	if !allowed {
		metrics.AuthenticationsTotal.WithLabelValues("rate_limited").Inc()
		s.record(domain.AuditLogin, "", uname, domain.OutcomeDenied, "locked out")
		s.logger.Warn().Str("username", uname).Msg("login rejected: too many failed attempts")
		return nil, domain.ErrTooManyAttempts
	}

	user, err := s.users.FindByUsername(ctx, uname)
	if errors.Is(err, domain.ErrNotFound) {
		_, _ = s.verify(password, s.dummyHash)
		return nil, s.rejectLogin(uname, "unknown user")
	}
	if err != nil {
		metrics.AuthenticationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("find user: %w", err)
	}

	ok, err := s.verify(password, user.PasswordHash)
	if err != nil {
		metrics.AuthenticationsTotal.WithLabelValues("error").Inc()
		s.logger.Error().Err(err).Str("username", uname).Msg("stored password hash is unreadable")
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, s.rejectLogin(uname, "wrong password")
	}

	if err := s.limiter.Reset(ctx, uname); err != nil {
		s.logger.Warn().Err(err).Str("username", uname).Msg("failed to reset attempt counter")
	}
	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}

	now := s.now()
	session := domain.Session{
		ID:        ulid.Make().String(),
		Username:  user.Username,
		Role:      user.Role,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.tokenTTL),
	}
	token, err := s.tokens.Issue(session)
	if err != nil {
		metrics.AuthenticationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("issue token: %w", err)
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		metrics.AuthenticationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("create session: %w", err)
	}

	metrics.AuthenticationsTotal.WithLabelValues("success").Inc()
	s.record(domain.AuditLogin, user.Username, user.Username, domain.OutcomeSuccess, "")
	s.logger.Info().Str("username", user.Username).Str("session_id", session.ID).Msg("user authenticated")

	return &domain.AuthResult{
		Token: token,
		Identity: domain.Identity{
			Username:  session.Username,
			Role:      session.Role,
			SessionID: session.ID,
			ExpiresAt: session.ExpiresAt,
		},
	}, nil
}

func (s *CredentialService) rejectLogin(uname, reason string) error {
	metrics.AuthenticationsTotal.WithLabelValues("invalid_credentials").Inc()
	s.record(domain.AuditLogin, "", uname, domain.OutcomeFailed, reason)
	s.logger.Info().Str("username", uname).Str("reason", reason).Msg("authentication failed")
	return domain.ErrInvalidCredentials
}

// upgradeHash replaces a legacy hash after a successful login. A concurrent
// password change wins over the upgrade.
func (s *CredentialService) upgradeHash(ctx context.Context, user *domain.UserAccount, password string) {
	newHash, err := s.hash(password)
	if err != nil {
		metrics.AccountMutationsTotal.WithLabelValues("rehash", "error").Inc()
		s.logger.Error().Err(err).Str("username", user.Username).Msg("rehash failed")
		return
	}
	err = s.users.UpdatePasswordHash(ctx, user.Username, user.PasswordHash, newHash, s.now())
	metrics.AccountMutationsTotal.WithLabelValues("rehash", resultLabel(err)).Inc()
	switch {
	case err == nil:
		s.logger.Info().Str("username", user.Username).Msg("password hash upgraded")
	case errors.Is(err, domain.ErrConflict):
		s.logger.Debug().Str("username", user.Username).Msg("password changed concurrently, rehash skipped")
	default:
		s.logger.Error().Err(err).Str("username", user.Username).Msg("rehash not stored")
	}
}

// Identify resolves a token into the caller identity. Any token that is not
// signed by this service, has expired, or whose session was revoked yields
// Anonymous and ErrForbidden.
func (s *CredentialService) Identify(ctx context.Context, token string) (domain.Identity, error) {
	if token == "" {
		return domain.Anonymous, domain.ErrForbidden
	}
	id, err := s.tokens.Verify(token)
	if err != nil {
		s.logger.Debug().Err(err).Msg("token rejected")
		return domain.Anonymous, domain.ErrForbidden
	}
	active, err := s.sessions.Active(ctx, id.SessionID)
	if err != nil {
		return domain.Anonymous, fmt.Errorf("session lookup: %w", err)
	}
	if !active {
		s.logger.Debug().Str("session_id", id.SessionID).Msg("session not active")
		return domain.Anonymous, domain.ErrForbidden
	}
	return id, nil
}

// IsAuthorized reports whether token belongs to an active session whose role
// satisfies required. It fails closed.
func (s *CredentialService) IsAuthorized(ctx context.Context, token string, required domain.Role) bool {
	id, err := s.Identify(ctx, token)
	allowed := err == nil && id.Can(required)

	decision := "deny"
	if allowed {
		decision = "allow"
	}
	metrics.AuthorizationDecisionsTotal.WithLabelValues(string(required), decision).Inc()
	return allowed
}

// Logout revokes the session behind token.
func (s *CredentialService) Logout(ctx context.Context, token string) error {
	id, err := s.Identify(ctx, token)
	if err != nil {
		return err
	}
	if err := s.sessions.Revoke(ctx, id.SessionID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	metrics.SessionsRevokedTotal.Inc()
	s.record(domain.AuditLogout, id.Username, id.Username, domain.OutcomeSuccess, "")
	return nil
}

// CreateUser stores a new account. Only admins may create accounts and the
// role is always explicit.
func (s *CredentialService) CreateUser(ctx context.Context, actorToken, username, password string, role domain.Role) (*domain.PublicUserView, error) {
	const op = "create"
	uname := NormalizeUsername(username)

	actor, err := s.authorize(ctx, actorToken, domain.AuditCreateUser, op, uname, adminOnly)
	if err != nil {
		return nil, err
	}
	role, err = s.policy.CheckAccount(uname, password, role)
	if err != nil {
		return nil, s.mutationFailed(op, domain.AuditCreateUser, actor, uname, err)
	}

	hash, err := s.hash(password)
	if err != nil {
		return nil, s.mutationFailed(op, domain.AuditCreateUser, actor, uname, fmt.Errorf("hash password: %w", err))
	}

	now := s.now()
	user := &domain.UserAccount{
		ID:           ulid.Make().String(),
		Username:     uname,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, s.mutationFailed(op, domain.AuditCreateUser, actor, uname, err)
	}

	s.mutationSucceeded(op, domain.AuditCreateUser, actor, uname)
	view := user.View()
	return &view, nil
}

// ResetPassword replaces the password of username. The owner or an admin may
// do this. Other sessions of the account are revoked; the actor's own session
// survives.
func (s *CredentialService) ResetPassword(ctx context.Context, actorToken, username, newPassword string) error {
	const op = "reset_password"
	uname := NormalizeUsername(username)

	actor, err := s.authorize(ctx, actorToken, domain.AuditResetPassword, op, uname, adminOrSelf(uname))
	if err != nil {
		return err
	}
	if err := s.policy.CheckPassword(uname, newPassword); err != nil {
		return s.mutationFailed(op, domain.AuditResetPassword, actor, uname, err)
	}
	if _, err := s.users.FindByUsername(ctx, uname); err != nil {
		return s.mutationFailed(op, domain.AuditResetPassword, actor, uname, err)
	}

	hash, err := s.hash(newPassword)
	if err != nil {
		return s.mutationFailed(op, domain.AuditResetPassword, actor, uname, fmt.Errorf("hash password: %w", err))
	}
	if err := s.users.UpdatePasswordHash(ctx, uname, "", hash, s.now()); err != nil {
		return s.mutationFailed(op, domain.AuditResetPassword, actor, uname, err)
	}

	s.revokeSessions(ctx, uname, actor.SessionID)
	s.mutationSucceeded(op, domain.AuditResetPassword, actor, uname)
	return nil
}

// ChangeRole sets the role of username. Admin only; admins cannot change
// their own role. Every session of the account is revoked so the new role
// takes effect on next login.
func (s *CredentialService) ChangeRole(ctx context.Context, actorToken, username string, role domain.Role) (*domain.PublicUserView, error) {
	const op = "change_role"
	uname := NormalizeUsername(username)

	actor, err := s.authorize(ctx, actorToken, domain.AuditChangeRole, op, uname, adminOnly)
	if err != nil {
		return nil, err
	}
	role, err = domain.ParseRole(string(role))
	if err != nil {
		return nil, s.mutationFailed(op, domain.AuditChangeRole, actor, uname, err)
	}
	if actor.IsSelf(uname) {
		return nil, s.mutationFailed(op, domain.AuditChangeRole, actor, uname,
			fmt.Errorf("%w: admins cannot change their own role", domain.ErrInvalidInput))
	}
	if err := s.users.UpdateRole(ctx, uname, role, s.now()); err != nil {
		return nil, s.mutationFailed(op, domain.AuditChangeRole, actor, uname, err)
	}

	s.revokeSessions(ctx, uname, "")
	s.mutationSucceeded(op, domain.AuditChangeRole, actor, uname)

	user, err := s.users.FindByUsername(ctx, uname)
	if err != nil {
		return nil, fmt.Errorf("reload user: %w", err)
	}
	view := user.View()
	return &view, nil
}

// DeleteUser removes username and revokes its sessions. Admin only; admins
// cannot delete themselves.
func (s *CredentialService) DeleteUser(ctx context.Context, actorToken, username string) error {
	const op = "delete"
	uname := NormalizeUsername(username)

	actor, err := s.authorize(ctx, actorToken, domain.AuditDeleteUser, op, uname, adminOnly)
	if err != nil {
		return err
	}
	if actor.IsSelf(uname) {
		return s.mutationFailed(op, domain.AuditDeleteUser, actor, uname,
			fmt.Errorf("%w: admins cannot delete their own account", domain.ErrInvalidInput))
	}
	if err := s.users.Delete(ctx, uname); err != nil {
		return s.mutationFailed(op, domain.AuditDeleteUser, actor, uname, err)
	}

	s.revokeSessions(ctx, uname, "")
	s.mutationSucceeded(op, domain.AuditDeleteUser, actor, uname)
	return nil
}

// GetUserDetails returns the public view of username to its owner or an admin.
func (s *CredentialService) GetUserDetails(ctx context.Context, actorToken, username string) (*domain.PublicUserView, error) {
	uname := NormalizeUsername(username)

	actor, err := s.Identify(ctx, actorToken)
	if err != nil {
		return nil, err
	}
	if !adminOrSelf(uname)(actor) {
		s.logger.Info().Str("actor", actor.Username).Str("target", uname).Msg("user details denied")
		return nil, domain.ErrForbidden
	}

	user, err := s.users.FindByUsername(ctx, uname)
	if err != nil {
		return nil, err
	}
	view := user.View()
	return &view, nil
}

// ListUsers returns every account ordered by username. Admin only.
func (s *CredentialService) ListUsers(ctx context.Context, actorToken string) ([]domain.PublicUserView, error) {
	actor, err := s.Identify(ctx, actorToken)
	if err != nil {
		return nil, err
	}
	if !adminOnly(actor) {
		return nil, domain.ErrForbidden
	}

	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	views := make([]domain.PublicUserView, 0, len(users))
	for _, u := range users {
		views = append(views, u.View())
	}
	return views, nil
}

// BootstrapAdmin creates the first admin account when none exists. It
// returns false without changes when an admin is already present.
func (s *CredentialService) BootstrapAdmin(ctx context.Context, username, password string) (bool, error) {
	admins, err := s.users.CountByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	if admins > 0 {
		return false, nil
	}

	uname := NormalizeUsername(username)
	if _, err := s.policy.CheckAccount(uname, password, domain.RoleAdmin); err != nil {
		return false, fmt.Errorf("bootstrap admin: %w", err)
	}
	hash, err := s.hash(password)
	if err != nil {
		return false, fmt.Errorf("bootstrap admin: hash password: %w", err)
	}

	now := s.now()
	err = s.users.Create(ctx, &domain.UserAccount{
		ID:           ulid.Make().String(),
		Username:     uname,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, domain.ErrConflict) {
		return false, fmt.Errorf("bootstrap admin: %q exists without the admin role: %w", uname, err)
	}
	if err != nil {
		return false, fmt.Errorf("bootstrap admin: %w", err)
	}

	s.record(domain.AuditBootstrap, "", uname, domain.OutcomeSuccess, "")
	s.logger.Info().Str("username", uname).Msg("bootstrap admin created")
	return true, nil
}

func adminOnly(id domain.Identity) bool {
	return id.Can(domain.RoleAdmin)
}

func adminOrSelf(username string) func(domain.Identity) bool {
	return func(id domain.Identity) bool {
		return id.Can(domain.RoleAdmin) || id.IsSelf(username)
	}
}

// authorize resolves the actor and applies allow. Missing, invalid and
// revoked tokens are all reported as ErrForbidden.
func (s *CredentialService) authorize(ctx context.Context, token string, action domain.AuditAction, op, target string, allow func(domain.Identity) bool) (domain.Identity, error) {
	actor, err := s.Identify(ctx, token)
	if err == nil && !allow(actor) {
		err = domain.ErrForbidden
	}
	if err != nil {
		metrics.AccountMutationsTotal.WithLabelValues(op, resultLabel(err)).Inc()
		if errors.Is(err, domain.ErrForbidden) {
			s.record(action, actor.Username, target, domain.OutcomeDenied, "not permitted")
			s.logger.Info().
				Str("actor", actor.Username).
				Str("target", target).
				Str("action", string(action)).
				Msg("operation denied")
		}
		return domain.Anonymous, err
	}
	return actor, nil
}

func (s *CredentialService) mutationFailed(op string, action domain.AuditAction, actor domain.Identity, target string, err error) error {
	label := resultLabel(err)
	metrics.AccountMutationsTotal.WithLabelValues(op, label).Inc()
	s.record(action, actor.Username, target, domain.OutcomeFailed, label)

	ev := s.logger.Info()
	if label == "error" {
		ev = s.logger.Error()
	}
	ev.Err(err).Str("actor", actor.Username).Str("target", target).Str("operation", op).Msg("account mutation failed")
	return err
}

func (s *CredentialService) mutationSucceeded(op string, action domain.AuditAction, actor domain.Identity, target string) {
	metrics.AccountMutationsTotal.WithLabelValues(op, "success").Inc()
	s.record(action, actor.Username, target, domain.OutcomeSuccess, "")
	s.logger.Info().Str("actor", actor.Username).Str("target", target).Str("operation", op).Msg("account updated")
}

func (s *CredentialService) revokeSessions(ctx context.Context, username, exceptID string) {
	n, err := s.sessions.RevokeAllForUser(ctx, username, exceptID)
	if err != nil {
		s.logger.Error().Err(err).Str("username", username).Msg("failed to revoke sessions")
		return
	}
	if n > 0 {
		metrics.SessionsRevokedTotal.Add(float64(n))
		s.logger.Info().Str("username", username).Int("revoked", n).Msg("sessions revoked")
	}
}

func (s *CredentialService) hash(password string) (string, error) {
	start := time.Now()
	defer func() {
		metrics.PasswordHashDuration.WithLabelValues("hash").Observe(time.Since(start).Seconds())
	}()
	return s.hasher.Hash(password)
}

func (s *CredentialService) verify(password, encoded string) (bool, error) {
	start := time.Now()
	defer func() {
		metrics.PasswordHashDuration.WithLabelValues("verify").Observe(time.Since(start).Seconds())
	}()
	return s.hasher.Verify(password, encoded)
}

func (s *CredentialService) record(action domain.AuditAction, actor, target string, outcome domain.AuditOutcome, reason string) {
	s.audit.Record(domain.AuditEvent{
		Action:     action,
		Actor:      actor,
		Target:     target,
		Outcome:    outcome,
		Reason:     reason,
		OccurredAt: s.now(),
	})
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

type noopLimiter struct{}

func (noopLimiter) Reserve(context.Context, string) (bool, error) { return true, nil }
func (noopLimiter) Reset(context.Context, string) error           { return nil }

type noopRecorder struct{}

func (noopRecorder) Record(domain.AuditEvent) {}
