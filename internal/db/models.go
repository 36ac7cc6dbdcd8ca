package db

import "time"

// Article maps articles. URL holds the canonical form and never changes after insert.
type Article struct {
	ID          int64      `gorm:"column:id;primaryKey;autoIncrement"`
	Title       string     `gorm:"column:title;type:varchar(500);not null"`
	Content     *string    `gorm:"column:content;type:text"`
	Summary     *string    `gorm:"column:summary;type:text"`
	Source      string     `gorm:"column:source;type:varchar(200);not null"`
	Category    *string    `gorm:"column:category;type:varchar(100)"`
	URL         string     `gorm:"column:url;type:varchar(1000);not null;uniqueIndex:articles_url_key"`
	ImageURL    *string    `gorm:"column:image_url;type:varchar(1000)"`
	Author      *string    `gorm:"column:author;type:varchar(300)"`
	PublishedAt *time.Time `gorm:"column:published_at;type:timestamptz"`
	Language    *string    `gorm:"column:language;type:varchar(8)"`
	IsProcessed bool       `gorm:"column:is_processed;not null;default:false;index:idx_articles_is_processed"`
	CreatedAt   time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Article) TableName() string { return "articles" }

// Tag maps tags. Names are stored lower-cased and trimmed.
type Tag struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name      string    `gorm:"column:name;type:varchar(100);not null;uniqueIndex:tags_name_key"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Tag) TableName() string { return "tags" }

// ArticleTag maps article_tags.
type ArticleTag struct {
	ArticleID int64 `gorm:"column:article_id;primaryKey;autoIncrement:false"`
	TagID     int64 `gorm:"column:tag_id;primaryKey;autoIncrement:false;index:idx_article_tags_tag_id"`
}

func (ArticleTag) TableName() string { return "article_tags" }

// Counts summarizes corpus size for health reporting.
type Counts struct {
	Articles    int64 `json:"articles"`
	Processed   int64 `json:"processed"`
	Unprocessed int64 `json:"unprocessed"`
	Tags        int64 `json:"tags"`
	Links       int64 `json:"links"`
}

func autoMigrateModels() []any {
	return []any{
		&Article{},
		&Tag{},
		&ArticleTag{},
	}
}
