package policystore

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// One row per (user, field) pair.
type UserPolicyField struct {
	UserID    string `gorm:"primaryKey"`
	Field     string `gorm:"primaryKey"`
	Value     int64
	UpdatedAt time.Time
}

type GormPolicyStore struct {
	DB *gorm.DB
}

func NewGormPolicyStore(db *gorm.DB) (*GormPolicyStore, error) {
	if err := db.AutoMigrate(&UserPolicyField{}); err != nil {
		return nil, err
	}
	return &GormPolicyStore{DB: db}, nil
}

func (s *GormPolicyStore) Get(ctx context.Context, user string, field Field) (int64, bool, error) {
	var rows []UserPolicyField
	if err := s.DB.WithContext(ctx).Where("user_id = ? AND field = ?", user, string(field)).Limit(1).Find(&rows).Error; err != nil {
		return 0, false, err
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	return rows[0].Value, true, nil
}

func (s *GormPolicyStore) Set(ctx context.Context, user string, field Field, val int64) error {
	row := UserPolicyField{
		UserID:    user,
		Field:     string(field),
		Value:     val,
		UpdatedAt: time.Now(),
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "field"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
}

func (s *GormPolicyStore) Increment(ctx context.Context, user string, field Field, delta int64) (int64, error) {
	var out int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		row := UserPolicyField{
			UserID:    user,
			Field:     string(field),
			Value:     delta,
			UpdatedAt: now,
		}
		// single-statement upsert; the row lock is held until commit, so the read-back
		// below observes exactly this increment
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "field"}},
			DoUpdates: clause.Assignments(map[string]any{
				"value":      gorm.Expr("user_policy_fields.value + ?", delta),
				"updated_at": now,
			}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
		var cur UserPolicyField
		if err := tx.Where("user_id = ? AND field = ?", user, string(field)).Take(&cur).Error; err != nil {
			return err
		}
		out = cur.Value
		return nil
	})
	return out, err
}

func (s *GormPolicyStore) ResetField(ctx context.Context, field Field) (int, error) {
	res := s.DB.WithContext(ctx).Where("field = ?", string(field)).Delete(&UserPolicyField{})
	return int(res.RowsAffected), res.Error
}
