package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"restaurant_order/apperror"
	"restaurant_order/logger"
	"restaurant_order/metrics"
	"restaurant_order/model"
	"restaurant_order/repository"
	"restaurant_order/utils"

	"go.uber.org/zap"
)

const DefaultSessionDuration = 2 * time.Hour

type SessionManager struct {
	store    repository.Store
	clock    Clock
	tokens   TokenGenerator
	duration time.Duration
	log      *zap.Logger
}

func NewSessionManager(store repository.Store, clock Clock, tokens TokenGenerator, duration time.Duration, log *zap.Logger) *SessionManager {
	if tokens == nil {
		tokens = RandomToken
	}
	if duration <= 0 {
		duration = DefaultSessionDuration
	}
	return &SessionManager{store: store, clock: clock, tokens: tokens, duration: duration, log: log}
}

// CreateSession opens an ordering session for the table printed under tableCode.
// Other ACTIVE sessions on the same table are left alone.
func (m *SessionManager) CreateSession(ctx context.Context, tableCode string, info model.CustomerInfo) (*model.CustomerSession, error) {
	table, err := m.store.Tables().GetByCode(ctx, NormalizeTableCode(tableCode))
	if err != nil {
		return nil, err
	}
	if table.Status == model.TableMaintenance {
		return nil, apperror.TableNotFound()
	}

	token, err := m.tokens()
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("generate session token: %w", err))
	}

	now := m.clock.Now()
	session := &model.CustomerSession{
		Token:          token,
		TableId:        table.ID,
		RestaurantId:   table.RestaurantId,
		CustomerName:   trimmed(info.Name),
		CustomerEmail:  trimmed(info.Email),
		Status:         model.SessionActive,
		CreatedAt:      now,
		ExpiresAt:      now.Add(m.duration),
		LastActivityAt: now,
	}
	if err := m.store.Sessions().Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	logger.FromContext(ctx, m.log).Info("customer session opened",
		zap.String("table_id", table.ID),
		zap.String("restaurant_id", table.RestaurantId),
		zap.Time("expires_at", session.ExpiresAt),
	)
	return session, nil
}

// ValidateSession returns the session if it may still place orders and bumps its activity time.
func (m *SessionManager) ValidateSession(ctx context.Context, token string) (*model.CustomerSession, error) {
	session, err := m.store.Sessions().Get(ctx, token)
	if err != nil {
		return nil, err
	}
	now := m.clock.Now()
	if err := m.checkUsable(ctx, session, now); err != nil {
		return nil, err
	}

	if err := m.store.Sessions().Touch(ctx, token, now); err != nil {
		return nil, fmt.Errorf("touch session: %w", err)
	}
	session.LastActivityAt = now
	return session, nil
}

// ExtendSession pushes the expiry of an ACTIVE session to now plus the session duration.
func (m *SessionManager) ExtendSession(ctx context.Context, token string) (time.Time, error) {
	session, err := m.store.Sessions().Get(ctx, token)
	if err != nil {
		return time.Time{}, err
	}
	now := m.clock.Now()
	if err := m.checkUsable(ctx, session, now); err != nil {
		return time.Time{}, err
	}

	expiresAt := now.Add(m.duration)
	ok, err := m.store.Sessions().Extend(ctx, token, expiresAt, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("extend session: %w", err)
	}
	if !ok {
		// ended between the read and the write
		return time.Time{}, apperror.SessionExpired()
	}
	return expiresAt, nil
}

// ExpireSession ends a session. Ending one that is already over is a no-op.
func (m *SessionManager) ExpireSession(ctx context.Context, token string) error {
	session, err := m.store.Sessions().Get(ctx, token)
	if err != nil {
		return err
	}
	if session.Status != model.SessionActive {
		return nil
	}
	if _, err := m.store.Sessions().MarkStatus(ctx, token, model.SessionEnded); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	logger.FromContext(ctx, m.log).Info("customer session ended", zap.String("table_id", session.TableId))
	return nil
}

// CleanupExpiredSessions flips sessions past their expiry to EXPIRED. Each
// session is counted by exactly one sweep.
func (m *SessionManager) CleanupExpiredSessions(ctx context.Context) (int, error) {
	n, err := m.store.Sessions().ExpireBefore(ctx, m.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("expire sessions: %w", err)
	}
	if n > 0 {
		metrics.SessionsExpiredTotal.Add(float64(n))
		m.log.Info("expired customer sessions swept", zap.Int64("count", n))
	}
	return int(n), nil
}

// GetSession reads a session without validating or touching it.
func (m *SessionManager) GetSession(ctx context.Context, token string) (*model.CustomerSession, error) {
	return m.store.Sessions().Get(ctx, token)
}

func (m *SessionManager) checkUsable(ctx context.Context, session *model.CustomerSession, now time.Time) error {
	if session.Status != model.SessionActive {
		return apperror.SessionExpired()
	}
	if now.After(session.ExpiresAt) {
		if _, err := m.store.Sessions().MarkStatus(ctx, session.Token, model.SessionExpired); err != nil && !errors.Is(err, context.Canceled) {
			m.log.Warn("failed to flip expired session", zap.Error(err))
		}
		return apperror.SessionExpired()
	}
	return nil
}

func NormalizeTableCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	return utils.StringPtr(strings.TrimSpace(*s))
}
