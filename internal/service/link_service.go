package service

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/classroom_scheduler/internal/model"
	"go.uber.org/zap"
)

const (
	DefaultLinkCodeTTL = 15 * time.Minute
	linkCodeLength     = 8
)

type LinkCodeStore interface {
	Create(ctx context.Context, code *model.LinkCode) error
	CodeExists(ctx context.Context, code string) (bool, error)
	Consume(ctx context.Context, code string, chatID int64, now time.Time) (*model.LinkCode, error)
}

type ProfileLookup interface {
	GetByID(ctx context.Context, id string) (*model.Profile, error)
}

// LinkService выдаёт одноразовые коды привязки Telegram и гасит их
type LinkService struct {
	codes    LinkCodeStore
	profiles ProfileLookup
	ttl      time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

func NewLinkService(codes LinkCodeStore, profiles ProfileLookup, ttl time.Duration, logger *zap.Logger) *LinkService {
	if ttl <= 0 {
		ttl = DefaultLinkCodeTTL
	}
	return &LinkService{
		codes:    codes,
		profiles: profiles,
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
	}
}

// IssueCode создаёт код для существующего профиля; код действует ttl и один раз
func (s *LinkService) IssueCode(ctx context.Context, profileID string) (*model.LinkCode, error) {
	profile, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		return nil, persistence("get profile", err)
	}
	if profile == nil {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, profileID)
	}

	code, err := s.generateCode(ctx)
	if err != nil {
		return nil, err
	}

	linkCode := &model.LinkCode{
		ProfileID: profile.ID,
		Code:      code,
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.codes.Create(ctx, linkCode); err != nil {
		return nil, persistence("create link code", err)
	}

	s.logger.Info("Link code issued",
		zap.String("profile_id", profile.ID),
		zap.Time("expires_at", linkCode.ExpiresAt))

	return linkCode, nil
}

// RedeemCode гасит код и привязывает чат к профилю владельца кода
func (s *LinkService) RedeemCode(ctx context.Context, code string, chatID int64) (*model.Profile, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != linkCodeLength {
		return nil, ErrInvalidLinkCode
	}

	consumed, err := s.codes.Consume(ctx, code, chatID, s.now())
	if err != nil {
		return nil, persistence("consume link code", err)
	}
	if consumed == nil {
		s.logger.Warn("Rejected link code", zap.Int64("chat_id", chatID))
		return nil, ErrInvalidLinkCode
	}

	profile, err := s.profiles.GetByID(ctx, consumed.ProfileID)
	if err != nil {
		return nil, persistence("get profile", err)
	}
	if profile == nil {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, consumed.ProfileID)
	}

	s.logger.Info("Telegram linked",
		zap.String("profile_id", profile.ID),
		zap.Int64("chat_id", chatID))

	return profile, nil
}

func (s *LinkService) generateCode(ctx context.Context) (string, error) {
	const maxAttempts = 10

	for i := 0; i < maxAttempts; i++ {
		raw := make([]byte, 5)
		if _, err := rand.Read(raw); err != nil {
			return "", fmt.Errorf("generate random bytes: %w", err)
		}
		code := base32.StdEncoding.EncodeToString(raw)[:linkCodeLength]

		exists, err := s.codes.CodeExists(ctx, code)
		if err != nil {
			return "", persistence("check link code", err)
		}
		if !exists {
			return code, nil
		}
	}

	return "", fmt.Errorf("generate link code: no free code after %d attempts", maxAttempts)
}
