package setstore

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SetMember struct {
	Name      string `gorm:"primaryKey"`
	Val       string `gorm:"primaryKey"`
	CreatedAt time.Time
}

type GormSetStore struct {
	DB *gorm.DB
}

func NewGormSetStore(db *gorm.DB) (*GormSetStore, error) {
	if err := db.AutoMigrate(&SetMember{}); err != nil {
		return nil, err
	}
	return &GormSetStore{DB: db}, nil
}

func (s *GormSetStore) InSet(ctx context.Context, name, val string) (bool, error) {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&SetMember{}).Where("name = ? AND val = ?", name, val).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *GormSetStore) Add(ctx context.Context, name, val string) (bool, error) {
	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&SetMember{
		Name:      name,
		Val:       val,
		CreatedAt: time.Now(),
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *GormSetStore) Remove(ctx context.Context, name, val string) error {
	return s.DB.WithContext(ctx).Where("name = ? AND val = ?", name, val).Delete(&SetMember{}).Error
}

func (s *GormSetStore) Len(ctx context.Context, name string) (int, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&SetMember{}).Where("name = ?", name).Count(&count).Error
	return int(count), err
}
