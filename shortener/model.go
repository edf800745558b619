package shortener

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ceyewan/shortlink/clog"
	"github.com/ceyewan/shortlink/xerrors"
)

// ShortURL 短码到原始 URL 的映射记录
// 主键直接使用 Snowflake ID，短码由该 ID 的 Base62 编码得到
type ShortURL struct {
	ID          int64     `gorm:"column:snowflake_id;primaryKey;autoIncrement:false"`
	OriginalURL string    `gorm:"column:original_url;not null"`
	Code        string    `gorm:"column:short_code;uniqueIndex;not null"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

// TableName 指定表名
func (ShortURL) TableName() string {
	return "short_urls"
}

// Repository 短链接映射的持久层
type Repository struct {
	db     *gorm.DB
	logger clog.Logger
}

// NewRepository 创建持久层
func NewRepository(db *gorm.DB, logger clog.Logger) (*Repository, error) {
	if db == nil {
		return nil, xerrors.WithCode(ErrInvalidInput, "db_required")
	}
	if logger == nil {
		logger = clog.Discard()
	}
	return &Repository{
		db:     db,
		logger: logger.With(clog.String("component", "shortener.repository")),
	}, nil
}

// AutoMigrate 创建/更新表结构
func (r *Repository) AutoMigrate() error {
	if err := r.db.AutoMigrate(&ShortURL{}); err != nil {
		return xerrors.Wrap(err, "migrate short_urls")
	}
	return nil
}

// Create 插入映射记录
// 主键或短码冲突返回 ErrCodeCollision，说明集群内 WorkerID 互斥失效
func (r *Repository) Create(ctx context.Context, record *ShortURL) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		if xerrors.Is(err, gorm.ErrDuplicatedKey) {
			r.logger.Error("short code collision, worker id may be held by another instance",
				clog.Int64("id", record.ID),
				clog.String("code", record.Code),
			)
			return xerrors.Wrapf(ErrCodeCollision, "code %s", record.Code)
		}
		r.logger.Error("failed to insert short url",
			clog.Error(err),
			clog.String("code", record.Code),
		)
		return xerrors.Wrap(err, "insert short url")
	}
	return nil
}

// FindByCode 按短码查询，记录不存在时返回 ErrNotFound
func (r *Repository) FindByCode(ctx context.Context, code string) (*ShortURL, error) {
	var record ShortURL
	err := r.db.WithContext(ctx).Where("short_code = ?", code).First(&record).Error
	if err != nil {
		if xerrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerrors.Wrapf(ErrNotFound, "code %s", code)
		}
		r.logger.Error("failed to query short url", clog.Error(err), clog.String("code", code))
		return nil, xerrors.Wrap(err, "query short url")
	}
	return &record, nil
}
