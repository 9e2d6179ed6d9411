package service

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pribylovaa/news-etl/internal/models"
	"github.com/pribylovaa/news-etl/pkg/log"
)

// removedPlaceholder — так NewsAPI помечает снятые с публикации статьи.
const removedPlaceholder = "[Removed]"

// charsMarkerRe — хвост усечённого content вида "… [+1234 chars]".
var charsMarkerRe = regexp.MustCompile(`\s*(?:…|\.\.\.)?\s*\[\+\d+ chars\]$`)

// Normalize приводит сырые записи к Article.
//
// Правила:
//   - запись без title и без content отбрасывается ("[Removed]" считается пустым);
//   - пробельные последовательности схлопываются в один пробел;
//   - маркер "[+N chars]" в конце content удаляется;
//   - content длиннее maxLen рун режется по последнему '.', '!' или '?' в пределах
//     лимита, без такой границы — ровно по лимиту; maxLen <= 0 отключает обрезку;
//   - пустые author/source становятся nil;
//   - PublishedAt — RFC3339 в UTC, нераспознанное значение заменяется на fetchedAt.
//
// Порядок выхода совпадает с порядком входа. Функция детерминирована:
// ctx используется только для логгера.
func Normalize(ctx context.Context, raws []models.RawArticle, fetchedAt time.Time, maxLen int) ([]models.Article, int) {
	const op = "service/normalize/Normalize"

	lg := log.From(ctx)
	fetchedAt = fetchedAt.UTC()

	out := make([]models.Article, 0, len(raws))
	dropped := 0

	for i, raw := range raws {
		title := placeholderToEmpty(collapse(deref(raw.Title)))
		content := placeholderToEmpty(stripCharsMarker(collapse(deref(raw.Content))))

		if title == "" && content == "" {
			dropped++
			lg.Debug("article_dropped",
				slog.String("op", op),
				slog.Int("index", i),
				slog.String("url", strings.TrimSpace(deref(raw.URL))),
				slog.String("reason", "no_title_and_content"),
			)
			continue
		}

		var source *string
		if raw.Source != nil {
			source = blankToNil(raw.Source.Name)
		}

		out = append(out, models.Article{
			Source:      source,
			Author:      blankToNil(raw.Author),
			Title:       title,
			Content:     truncate(content, maxLen),
			URL:         strings.TrimSpace(deref(raw.URL)),
			ImageURL:    strings.TrimSpace(deref(raw.URLToImage)),
			PublishedAt: parsePublishedAt(deref(raw.PublishedAt), fetchedAt),
			FetchedAt:   fetchedAt,
		})
	}

	return out, dropped
}

// truncate обрезает s до max рун по границе предложения, если она есть.
func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}

	window := []rune(s)[:max]
	for i := len(window) - 1; i >= 0; i-- {
		switch window[i] {
		case '.', '!', '?':
			return string(window[:i+1])
		}
	}

	return strings.TrimRight(string(window), " ")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func stripCharsMarker(s string) string {
	return strings.TrimSpace(charsMarkerRe.ReplaceAllString(s, ""))
}

func placeholderToEmpty(s string) string {
	if s == removedPlaceholder {
		return ""
	}

	return s
}

func blankToNil(p *string) *string {
	if p == nil {
		return nil
	}

	v := collapse(*p)
	if v == "" || v == removedPlaceholder {
		return nil
	}

	return &v
}

func parsePublishedAt(s string, fallback time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fallback
	}

	return t.UTC()
}

func deref(p *string) string {
	if p == nil {
		return ""
	}

	return *p
}
