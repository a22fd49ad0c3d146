package mongo

import (
	"context"

	"agrilink_server/internal/dao"
	"agrilink_server/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type notificationRepository struct {
	coll *mongo.Collection
}

// NewNotificationRepository 创建通知 Repository
func NewNotificationRepository(coll *mongo.Collection) dao.NotificationRepository {
	return &notificationRepository{coll: coll}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	_, err := r.coll.InsertOne(ctx, n)
	return wrapMongoError(err, "创建通知")
}

func (r *notificationRepository) FindByUuid(ctx context.Context, id string) (*model.Notification, error) {
	var n model.Notification
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&n); err != nil {
		return nil, wrapMongoErrorf(err, "查询通知 %s", id)
	}
	return &n, nil
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, recipientId string, limit int) ([]model.Notification, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := r.coll.Find(ctx, bson.M{"recipient": recipientId}, opts)
	if err != nil {
		return nil, wrapMongoErrorf(err, "查询通知列表 recipient=%s", recipientId)
	}
	defer cursor.Close(ctx)

	var list []model.Notification
	if err := cursor.All(ctx, &list); err != nil {
		return nil, wrapMongoErrorf(err, "解析通知列表 recipient=%s", recipientId)
	}
	return list, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipientId string) (int64, error) {
	count, err := r.coll.CountDocuments(ctx, bson.M{"recipient": recipientId, "isRead": false})
	if err != nil {
		return 0, wrapMongoErrorf(err, "统计未读通知 recipient=%s", recipientId)
	}
	return count, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id string) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"isRead": true}})
	if err != nil {
		return wrapMongoErrorf(err, "标记通知已读 %s", id)
	}
	if res.MatchedCount == 0 {
		return wrapMongoErrorf(mongo.ErrNoDocuments, "通知 %s 不存在", id)
	}
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientId string) (int64, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"recipient": recipientId, "isRead": false},
		bson.M{"$set": bson.M{"isRead": true}},
	)
	if err != nil {
		return 0, wrapMongoErrorf(err, "全部标记已读 recipient=%s", recipientId)
	}
	return res.ModifiedCount, nil
}

func (r *notificationRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return wrapMongoErrorf(err, "删除通知 %s", id)
	}
	if res.DeletedCount == 0 {
		return wrapMongoErrorf(mongo.ErrNoDocuments, "通知 %s 不存在", id)
	}
	return nil
}
