package repository

import (
	"errors"
	"time"

	authdomain "github.com/AveryLor/BiasBreaker-sub000/internal/auth/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// sessionRepository implements SessionRepository with GORM
type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository creates a new instance of sessionRepository
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{
		db: db,
	}
}

func (r *sessionRepository) Create(session *authdomain.SessionRecord) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now
	if session.RefreshedAt.IsZero() {
		session.RefreshedAt = now
	}
	return r.db.Create(session).Error
}

func (r *sessionRepository) FindByID(id string) (*authdomain.SessionRecord, error) {
	var session authdomain.SessionRecord
	err := r.db.Where("id = ?", id).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) Update(session *authdomain.SessionRecord) error {
	session.UpdatedAt = time.Now()
	return r.db.Save(session).Error
}

func (r *sessionRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&authdomain.SessionRecord{}).Error
}

func (r *sessionRepository) DeleteByUser(userID string) error {
	return r.db.Where("user_id = ?", userID).Delete(&authdomain.SessionRecord{}).Error
}

func (r *sessionRepository) DeleteExpired(now time.Time) (int64, error) {
	res := r.db.Where("expires_at <= ?", now).Delete(&authdomain.SessionRecord{})
	return res.RowsAffected, res.Error
}
