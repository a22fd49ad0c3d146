package mongo

import (
	"context"
	"time"

	"agrilink_server/internal/dao"
	"agrilink_server/internal/model"
	"agrilink_server/pkg/roomkey"
	"agrilink_server/pkg/util/snowflake"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type conversationRepository struct {
	coll *mongo.Collection
}

// NewConversationRepository 创建会话 Repository
func NewConversationRepository(coll *mongo.Collection) dao.ConversationRepository {
	return &conversationRepository{coll: coll}
}

// FindOrCreate 使用 upsert + $setOnInsert，配合 pair_idx 唯一索引
// 并发 upsert 撞上唯一索引时重试一次即可读到已存在的文档
func (r *conversationRepository) FindOrCreate(ctx context.Context, userA, userB string) (*model.Conversation, error) {
	lo, hi := roomkey.Normalize(userA, userB)
	filter := bson.M{"userOneId": lo, "userTwoId": hi}
	now := time.Now()
	update := bson.M{"$setOnInsert": bson.M{
		"_id":       snowflake.NewConversationID(),
		"userOneId": lo,
		"userTwoId": hi,
		"messages":  bson.A{},
		"createdAt": now,
		"updatedAt": now,
	}}

	_, err := r.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		_, err = r.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	}
	if err != nil {
		return nil, wrapMongoErrorf(err, "创建会话 %s_%s", lo, hi)
	}
	return r.findPair(ctx, lo, hi)
}

func (r *conversationRepository) FindByPair(ctx context.Context, userA, userB string) (*model.Conversation, error) {
	lo, hi := roomkey.Normalize(userA, userB)
	return r.findPair(ctx, lo, hi)
}

// findPair 不取 messages 字段
func (r *conversationRepository) findPair(ctx context.Context, lo, hi string) (*model.Conversation, error) {
	var conv model.Conversation
	opts := options.FindOne().SetProjection(bson.M{"messages": 0})
	err := r.coll.FindOne(ctx, bson.M{"userOneId": lo, "userTwoId": hi}, opts).Decode(&conv)
	if err != nil {
		return nil, wrapMongoErrorf(err, "查询会话 %s_%s", lo, hi)
	}
	return &conv, nil
}

// AppendMessage $push 到内嵌数组，单文档更新天然原子
func (r *conversationRepository) AppendMessage(ctx context.Context, conversationId, senderId, text string, ts time.Time) (*model.Message, error) {
	msg := model.Message{
		Uuid:           snowflake.NewMessageID(),
		ConversationId: conversationId,
		SendId:         senderId,
		Content:        text,
		CreatedAt:      ts,
	}
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": conversationId},
		bson.M{
			"$push": bson.M{"messages": msg},
			"$set":  bson.M{"updatedAt": ts},
		},
	)
	if err != nil {
		return nil, wrapMongoError(err, "保存消息")
	}
	if res.MatchedCount == 0 {
		return nil, wrapMongoErrorf(mongo.ErrNoDocuments, "会话 %s 不存在", conversationId)
	}
	return &msg, nil
}

func (r *conversationRepository) ListMessages(ctx context.Context, conversationId string) ([]model.Message, error) {
	var doc struct {
		Messages []model.Message `bson:"messages"`
	}
	opts := options.FindOne().SetProjection(bson.M{"messages": 1})
	err := r.coll.FindOne(ctx, bson.M{"_id": conversationId}, opts).Decode(&doc)
	if err != nil {
		return nil, wrapMongoErrorf(err, "查询消息 conversation=%s", conversationId)
	}
	for i := range doc.Messages {
		doc.Messages[i].ConversationId = conversationId
	}
	return doc.Messages, nil
}
