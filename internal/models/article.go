// models содержит доменные сущности news-etl.
// Эти типы используются клиентом NewsAPI, нормализатором, писателем батчей и загрузчиком.
package models

import "time"

// Имена колонок сырой таблицы. Совпадают с именами колонок Parquet-файла,
// из которого выводится схема таблицы.
const (
	ColSource      = "source"
	ColAuthor      = "author"
	ColTitle       = "title"
	ColContent     = "content"
	ColURL         = "url"
	ColImageURL    = "image_url"
	ColPublishedAt = "published_at"
	ColFetchedAt   = "fetched_at"
)

// Columns — порядок колонок в Parquet-файле и в сырой таблице.
var Columns = []string{
	ColSource, ColAuthor, ColTitle, ColContent, ColURL, ColImageURL, ColPublishedAt, ColFetchedAt,
}

// RawSource — блок source записи NewsAPI.
type RawSource struct {
	ID   *string `json:"id"`
	Name *string `json:"name"`
}

// RawArticle — запись NewsAPI как есть. Любое поле может отсутствовать или быть null.
type RawArticle struct {
	Source      *RawSource `json:"source"`
	Author      *string    `json:"author"`
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	URL         *string    `json:"url"`
	URLToImage  *string    `json:"urlToImage"`
	PublishedAt *string    `json:"publishedAt"`
	Content     *string    `json:"content"`
}

// Article — нормализованная статья, одна строка батча.
//
// Особенности:
//   - Source/Author == nil означает NULL в файле и в таблице (не пустая строка);
//   - Content не длиннее настроенного лимита (в рунах);
//   - временные метки — в UTC.
type Article struct {
	Source      *string
	Author      *string
	Title       string
	Content     string
	URL         string
	ImageURL    string
	PublishedAt time.Time
	FetchedAt   time.Time
}

// Values возвращает значения строки в порядке Columns. NULL — nil.
func (a Article) Values() []any {
	return []any{
		nullable(a.Source),
		nullable(a.Author),
		a.Title,
		a.Content,
		a.URL,
		a.ImageURL,
		a.PublishedAt.UTC(),
		a.FetchedAt.UTC(),
	}
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}

	return *s
}

// Query — параметры поиска в NewsAPI на один прогон.
type Query struct {
	Terms    string
	From     time.Time
	To       time.Time
	Language string
	SortBy   string
	PageSize int
	MaxPages int
}
