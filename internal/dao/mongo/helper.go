package mongo

import (
	"errors"

	"agrilink_server/pkg/errorx"

	"go.mongodb.org/mongo-driver/mongo"
)

// wrapMongoError ErrNoDocuments -> CodeNotFound，其余 -> CodeDBError
func wrapMongoError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return errorx.Wrap(err, errorx.CodeNotFound, msg)
	}
	return errorx.Wrap(err, errorx.CodeDBError, msg)
}

func wrapMongoErrorf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return errorx.Wrapf(err, errorx.CodeNotFound, format, args...)
	}
	return errorx.Wrapf(err, errorx.CodeDBError, format, args...)
}
