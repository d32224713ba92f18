package queuestore

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Queue order is the auto-increment ID.
type QueueEntry struct {
	ID    uint64 `gorm:"primaryKey"`
	Queue string `gorm:"index"`
	Val   string
}

type GormQueueStore struct {
	DB *gorm.DB
}

func NewGormQueueStore(db *gorm.DB) (*GormQueueStore, error) {
	if err := db.AutoMigrate(&QueueEntry{}); err != nil {
		return nil, err
	}
	return &GormQueueStore{DB: db}, nil
}

func (s *GormQueueStore) Push(ctx context.Context, name string, vals ...string) error {
	if len(vals) == 0 {
		return nil
	}
	rows := make([]QueueEntry, len(vals))
	for i, v := range vals {
		rows[i] = QueueEntry{Queue: name, Val: v}
	}
	return s.DB.WithContext(ctx).CreateInBatches(rows, 100).Error
}

func (s *GormQueueStore) Pop(ctx context.Context, name string) (string, bool, error) {
	var out QueueEntry
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("queue = ?", name).Order("id ASC").Take(&out).Error; err != nil {
			return err
		}
		res := tx.Delete(&QueueEntry{}, out.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			// popped concurrently
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}
	return out.Val, true, nil
}

func (s *GormQueueStore) Len(ctx context.Context, name string) (int, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&QueueEntry{}).Where("queue = ?", name).Count(&count).Error
	return int(count), err
}

func (s *GormQueueStore) Clear(ctx context.Context, name string) error {
	return s.DB.WithContext(ctx).Where("queue = ?", name).Delete(&QueueEntry{}).Error
}

func (s *GormQueueStore) List(ctx context.Context, name string) ([]string, error) {
	var vals []string
	err := s.DB.WithContext(ctx).Model(&QueueEntry{}).Where("queue = ?", name).Order("id ASC").Pluck("val", &vals).Error
	return vals, err
}
