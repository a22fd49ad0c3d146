package mysql

import (
	"context"

	"agrilink_server/internal/dao"
	"agrilink_server/internal/model"

	"gorm.io/gorm"
)

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository 创建通知 Repository
func NewNotificationRepository(db *gorm.DB) dao.NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return wrapDBError(err, "创建通知")
	}
	return nil
}

func (r *notificationRepository) FindByUuid(ctx context.Context, id string) (*model.Notification, error) {
	var n model.Notification
	if err := r.db.WithContext(ctx).First(&n, "uuid = ?", id).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询通知 uuid=%s", id)
	}
	return &n, nil
}

// ListByRecipient 时间倒序，同一时刻按主键倒序
func (r *notificationRepository) ListByRecipient(ctx context.Context, recipientId string, limit int) ([]model.Notification, error) {
	var list []model.Notification
	err := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientId).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, wrapDBErrorf(err, "查询通知列表 recipient=%s", recipientId)
	}
	return list, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipientId string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientId, false).
		Count(&count).Error
	if err != nil {
		return 0, wrapDBErrorf(err, "统计未读通知 recipient=%s", recipientId)
	}
	return count, nil
}

// MarkRead MySQL 对未变化的行 RowsAffected 为 0，所以先确认记录存在
func (r *notificationRepository) MarkRead(ctx context.Context, id string) error {
	if _, err := r.FindByUuid(ctx, id); err != nil {
		return err
	}
	err := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("uuid = ?", id).
		Update("is_read", true).Error
	return wrapDBErrorf(err, "标记通知已读 uuid=%s", id)
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientId string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientId, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, wrapDBErrorf(res.Error, "全部标记已读 recipient=%s", recipientId)
	}
	return res.RowsAffected, nil
}

func (r *notificationRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("uuid = ?", id).Delete(&model.Notification{})
	if res.Error != nil {
		return wrapDBErrorf(res.Error, "删除通知 uuid=%s", id)
	}
	if res.RowsAffected == 0 {
		return wrapDBErrorf(gorm.ErrRecordNotFound, "通知 %s 不存在", id)
	}
	return nil
}
