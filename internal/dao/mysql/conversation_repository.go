package mysql

import (
	"context"
	"time"

	"agrilink_server/internal/dao"
	"agrilink_server/internal/model"
	"agrilink_server/pkg/roomkey"
	"agrilink_server/pkg/util/snowflake"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository 创建会话 Repository
func NewConversationRepository(db *gorm.DB) dao.ConversationRepository {
	return &conversationRepository{db: db}
}

// FindOrCreate 依赖 (user_one_id, user_two_id) 唯一索引：
// 并发插入同一对用户时只有一条成功，其余 DO NOTHING 后读到同一行
func (r *conversationRepository) FindOrCreate(ctx context.Context, userA, userB string) (*model.Conversation, error) {
	lo, hi := roomkey.Normalize(userA, userB)
	if conv, err := r.findPair(ctx, lo, hi); err == nil {
		return conv, nil
	}

	conv := model.Conversation{
		Uuid:      snowflake.NewConversationID(),
		UserOneId: lo,
		UserTwoId: hi,
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&conv).Error; err != nil {
		return nil, wrapDBErrorf(err, "创建会话 %s_%s", lo, hi)
	}
	return r.findPair(ctx, lo, hi)
}

// FindByPair 不存在时返回 CodeNotFound
func (r *conversationRepository) FindByPair(ctx context.Context, userA, userB string) (*model.Conversation, error) {
	lo, hi := roomkey.Normalize(userA, userB)
	return r.findPair(ctx, lo, hi)
}

func (r *conversationRepository) findPair(ctx context.Context, lo, hi string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.WithContext(ctx).
		Where("user_one_id = ? AND user_two_id = ?", lo, hi).
		First(&conv).Error
	if err != nil {
		return nil, wrapDBErrorf(err, "查询会话 %s_%s", lo, hi)
	}
	return &conv, nil
}

// AppendMessage 插入消息并刷新会话更新时间，二者在同一事务内
func (r *conversationRepository) AppendMessage(ctx context.Context, conversationId, senderId, text string, ts time.Time) (*model.Message, error) {
	msg := model.Message{
		Uuid:           snowflake.NewMessageID(),
		ConversationId: conversationId,
		SendId:         senderId,
		Content:        text,
		CreatedAt:      ts,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Conversation{}).
			Where("uuid = ?", conversationId).
			Update("updated_at", ts)
		if res.Error != nil {
			return wrapDBErrorf(res.Error, "更新会话 %s", conversationId)
		}
		if res.RowsAffected == 0 {
			return wrapDBErrorf(gorm.ErrRecordNotFound, "会话 %s 不存在", conversationId)
		}
		if err := tx.Create(&msg).Error; err != nil {
			return wrapDBError(err, "保存消息")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListMessages 按自增主键即追加顺序返回
func (r *conversationRepository) ListMessages(ctx context.Context, conversationId string) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationId).
		Order("id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, wrapDBErrorf(err, "查询消息 conversation=%s", conversationId)
	}
	return messages, nil
}
