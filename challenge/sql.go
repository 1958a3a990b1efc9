package challenge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zentity/zk-attest/circuitspec"
	"gorm.io/gorm"
)

var errDBUnavailable = errors.New("challenge database unavailable")

// ChallengeModel is the row backing SQLStore. Times are unix milliseconds so
// comparisons behave the same on every driver.
type ChallengeModel struct {
	Nonce       string `gorm:"primaryKey;size:32"`
	CircuitType string `gorm:"size:64;not null"`
	UserID      string `gorm:"size:255;not null;default:''"`
	CreatedAtMs int64  `gorm:"column:created_at_ms;not null"`
	ExpiresAtMs int64  `gorm:"column:expires_at_ms;not null;index"`
}

func (ChallengeModel) TableName() string { return "zk_challenges" }

func (m ChallengeModel) challenge() Challenge {
	return Challenge{
		Nonce:       m.Nonce,
		CircuitType: circuitspec.Type(m.CircuitType),
		UserID:      m.UserID,
		CreatedAt:   time.UnixMilli(m.CreatedAtMs).UTC(),
		ExpiresAt:   time.UnixMilli(m.ExpiresAtMs).UTC(),
	}
}

// SQLStore keeps challenges in a shared relational table. The conditional
// delete in Consume is what makes a nonce single-use across instances.
type SQLStore struct {
	db  *gorm.DB
	now func() time.Time
}

// SQLOption configures a SQLStore.
type SQLOption func(*SQLStore)

// WithSQLClock replaces time.Now.
func WithSQLClock(now func() time.Time) SQLOption {
	return func(s *SQLStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSQLStore(db *gorm.DB, opts ...SQLOption) *SQLStore {
	s := &SQLStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate creates the challenge table.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if s.db == nil {
		return errDBUnavailable
	}
	return s.db.WithContext(ctx).AutoMigrate(&ChallengeModel{})
}

func (s *SQLStore) Create(ctx context.Context, circuitType circuitspec.Type, userID string) (Challenge, error) {
	if s.db == nil {
		return Challenge{}, errDBUnavailable
	}
	c, err := newChallenge(circuitType, userID, s.now())
	if err != nil {
		return Challenge{}, err
	}
	row := ChallengeModel{
		Nonce:       c.Nonce,
		CircuitType: string(c.CircuitType),
		UserID:      c.UserID,
		CreatedAtMs: c.CreatedAt.UnixMilli(),
		ExpiresAtMs: c.ExpiresAt.UnixMilli(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return Challenge{}, fmt.Errorf("insert challenge: %w", err)
	}
	return c, nil
}

func (s *SQLStore) Consume(ctx context.Context, nonce string, circuitType circuitspec.Type, userID string) (Challenge, bool, error) {
	if s.db == nil {
		return Challenge{}, false, errDBUnavailable
	}
	if !validNonce(nonce) {
		return Challenge{}, false, nil
	}
	now := s.now()
	db := s.db.WithContext(ctx)

	var row ChallengeModel
	err := db.Where("nonce = ?", nonce).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Challenge{}, false, nil
	}
	if err != nil {
		return Challenge{}, false, fmt.Errorf("load challenge: %w", err)
	}

	c := row.challenge()
	if c.Expired(now) {
		if err := db.Where("nonce = ?", nonce).Delete(&ChallengeModel{}).Error; err != nil {
			return Challenge{}, false, fmt.Errorf("drop expired challenge: %w", err)
		}
		return Challenge{}, false, nil
	}
	if !c.matches(circuitType, userID) {
		return Challenge{}, false, nil
	}

	// Another instance may have taken the row since it was read; only the
	// delete that actually removes it wins.
	res := db.Where("nonce = ? AND expires_at_ms > ?", nonce, now.UnixMilli()).Delete(&ChallengeModel{})
	if res.Error != nil {
		return Challenge{}, false, fmt.Errorf("consume challenge: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return Challenge{}, false, nil
	}
	return c, true, nil
}

func (s *SQLStore) ActiveCount(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, errDBUnavailable
	}
	db := s.db.WithContext(ctx)
	if _, err := s.Purge(ctx); err != nil {
		return 0, err
	}
	var n int64
	if err := db.Model(&ChallengeModel{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count challenges: %w", err)
	}
	return int(n), nil
}

// Purge deletes expired rows and reports how many were removed.
func (s *SQLStore) Purge(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, errDBUnavailable
	}
	res := s.db.WithContext(ctx).
		Where("expires_at_ms <= ?", s.now().UnixMilli()).
		Delete(&ChallengeModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge challenges: %w", res.Error)
	}
	return res.RowsAffected, nil
}
