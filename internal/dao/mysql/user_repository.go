package mysql

import (
	"context"

	"agrilink_server/internal/dao"
	"agrilink_server/internal/model"

	"gorm.io/gorm"
)

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建用户 Repository
func NewUserRepository(db *gorm.DB) dao.UserRepository {
	return &userRepository{db: db}
}

// FindDisplayInfo 按 UUID 查找用户展示信息
func (r *userRepository) FindDisplayInfo(ctx context.Context, userId string) (*model.UserInfo, error) {
	var user model.UserInfo
	if err := r.db.WithContext(ctx).First(&user, "uuid = ?", userId).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询用户 uuid=%s", userId)
	}
	return &user, nil
}
