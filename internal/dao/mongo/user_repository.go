package mongo

import (
	"context"

	"agrilink_server/internal/dao"
	"agrilink_server/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type userRepository struct {
	coll *mongo.Collection
}

// NewUserRepository 创建用户 Repository
func NewUserRepository(coll *mongo.Collection) dao.UserRepository {
	return &userRepository{coll: coll}
}

// userDoc users 集合中与展示相关的字段
type userDoc struct {
	FirstName string `bson:"firstname"`
	LastName  string `bson:"lastname"`
	Username  string `bson:"username"`
	Avatar    string `bson:"profilePicture"`
}

// FindDisplayInfo 认证子系统以 ObjectId 作为主键，非法 hex 时按字符串主键查找
func (r *userRepository) FindDisplayInfo(ctx context.Context, userId string) (*model.UserInfo, error) {
	var filter bson.M
	if oid, err := primitive.ObjectIDFromHex(userId); err == nil {
		filter = bson.M{"_id": oid}
	} else {
		filter = bson.M{"_id": userId}
	}
	projection := bson.M{"firstname": 1, "lastname": 1, "username": 1, "profilePicture": 1}

	var doc userDoc
	err := r.coll.FindOne(ctx, filter, options.FindOne().SetProjection(projection)).Decode(&doc)
	if err != nil {
		return nil, wrapMongoErrorf(err, "查询用户 %s", userId)
	}
	return &model.UserInfo{
		Uuid:      userId,
		FirstName: doc.FirstName,
		LastName:  doc.LastName,
		Username:  doc.Username,
		Avatar:    doc.Avatar,
	}, nil
}
