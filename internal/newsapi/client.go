// newsapi реализует выгрузку статей из NewsAPI (/v2/everything) с пагинацией.
//
// Ошибки классифицируются по коду ответа:
//   - 401/403 -> ErrAuth, без повторов;
//   - 429 -> ErrRateLimited, с повторами и backoff;
//   - 5xx и сетевые ошибки -> ErrUpstream, с повторами;
//   - прочие 4xx и status="error" -> ErrUpstream, без повторов.
package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pribylovaa/news-etl/internal/models"
	"github.com/pribylovaa/news-etl/pkg/log"
	"github.com/pribylovaa/news-etl/pkg/retry"
)

var (
	// ErrAuth — ключ API отсутствует, неверен или отключён. Фатально.
	ErrAuth = errors.New("newsapi: auth error")
	// ErrRateLimited — превышен лимит запросов. Повторяется с backoff.
	ErrRateLimited = errors.New("newsapi: rate limited")
	// ErrUpstream — прочие ошибки API или сети.
	ErrUpstream = errors.New("newsapi: upstream error")

	// errMaxResults — тариф не отдаёт результаты глубже текущей страницы.
	errMaxResults = errors.New("newsapi: maximum results reached")
)

const everythingPath = "/v2/everything"

// Client — HTTP-клиент NewsAPI.
type Client struct {
	baseURL string
	client  *http.Client
	policy  retry.Policy
}

// New создаёт клиент. baseURL — схема и хост без пути (например https://newsapi.org).
func New(baseURL string, client *http.Client, policy retry.Policy) *Client {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		policy:  policy,
	}
}

// Fetch выгружает страницы по q до исчерпания результатов или до q.MaxPages
// и возвращает записи всех страниц подряд, в порядке API, без дедупликации.
//
// Остановка:
//   - страница пуста;
//   - набрано totalResults записей;
//   - страница короче pageSize;
//   - достигнут MaxPages (warning);
//   - API сообщило maximumResultsReached после первой страницы (warning).
func (c *Client) Fetch(ctx context.Context, apiKey string, q models.Query) ([]models.RawArticle, error) {
	const op = "newsapi/Fetch"

	lg := log.From(ctx)

	var all []models.RawArticle
	total := 0

	for page := 1; ; page++ {
		if q.MaxPages > 0 && page > q.MaxPages {
			lg.Warn("newsapi_page_cap_reached",
				slog.String("op", op),
				slog.Int("max_pages", q.MaxPages),
				slog.Int("fetched", len(all)),
				slog.Int("total_results", total),
			)
			break
		}

		var resp *everythingResponse
		err := retry.Do(ctx, c.policy, op, func(ctx context.Context) error {
			r, err := c.fetchPage(ctx, apiKey, q, page)
			if err != nil {
				return err
			}
			resp = r
			return nil
		})
		if err != nil {
			if errors.Is(err, errMaxResults) && page > 1 {
				lg.Warn("newsapi_max_results_reached",
					slog.String("op", op),
					slog.Int("page", page),
					slog.Int("fetched", len(all)),
				)
				break
			}
			return nil, fmt.Errorf("%s: page %d: %w", op, page, err)
		}

		if page == 1 {
			total = resp.TotalResults
			lg.Info("newsapi_total_results",
				slog.String("op", op),
				slog.String("query", q.Terms),
				slog.Int("total_results", total),
			)
		}

		if len(resp.Articles) == 0 {
			lg.Debug("newsapi_empty_page", slog.String("op", op), slog.Int("page", page))
			break
		}

		all = append(all, resp.Articles...)
		lg.Debug("newsapi_page_fetched",
			slog.String("op", op),
			slog.Int("page", page),
			slog.Int("items", len(resp.Articles)),
			slog.Int("fetched", len(all)),
		)

		if total > 0 && len(all) >= total {
			break
		}
		if len(resp.Articles) < q.PageSize {
			break
		}
	}

	return all, nil
}

// fetchPage выполняет ровно один запрос страницы и классифицирует результат.
// Неповторяемые ошибки возвращаются обёрнутыми в retry.Permanent.
func (c *Client) fetchPage(ctx context.Context, apiKey string, q models.Query, page int) (*everythingResponse, error) {
	const op = "newsapi/fetchPage"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pageURL(q, page), nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("%s: new_request: %w", op, err))
	}
	req.Header.Set("X-Api-Key", apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, retry.Permanent(fmt.Errorf("%s: %w", op, ctx.Err()))
		}
		return nil, fmt.Errorf("%s: %w: %v", op, ErrUpstream, err)
	}
	defer resp.Body.Close()

	var body everythingResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, classifyStatus(resp.StatusCode, body)
	}

	if decodeErr != nil {
		return nil, fmt.Errorf("%s: %w: decode: %v", op, ErrUpstream, decodeErr)
	}

	if body.Status != statusOK {
		return nil, retry.Permanent(fmt.Errorf("%s: %w: status=%q code=%q message=%q",
			op, ErrUpstream, body.Status, body.Code, body.Message))
	}

	return &body, nil
}

// classifyStatus переводит не-2xx ответ в ошибку таксономии.
func classifyStatus(status int, body everythingResponse) error {
	const op = "newsapi/fetchPage"

	detail := fmt.Sprintf("status=%d code=%q message=%q", status, body.Code, body.Message)

	switch {
	case body.Code == codeMaximumResultsReached:
		return retry.Permanent(fmt.Errorf("%s: %w: %w: %s", op, ErrUpstream, errMaxResults, detail))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return retry.Permanent(fmt.Errorf("%s: %w: %s", op, ErrAuth, detail))
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w: %s", op, ErrRateLimited, detail)
	case status >= 500:
		return fmt.Errorf("%s: %w: %s", op, ErrUpstream, detail)
	default:
		return retry.Permanent(fmt.Errorf("%s: %w: %s", op, ErrUpstream, detail))
	}
}

// pageURL собирает URL страницы. Ключ API в URL не попадает.
func (c *Client) pageURL(q models.Query, page int) string {
	v := url.Values{}
	v.Set("q", q.Terms)
	if !q.From.IsZero() {
		v.Set("from", q.From.UTC().Format(time.RFC3339))
	}
	if !q.To.IsZero() {
		v.Set("to", q.To.UTC().Format(time.RFC3339))
	}
	if q.Language != "" {
		v.Set("language", q.Language)
	}
	if q.SortBy != "" {
		v.Set("sortBy", q.SortBy)
	}
	if q.PageSize > 0 {
		v.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	v.Set("page", strconv.Itoa(page))

	return c.baseURL + everythingPath + "?" + v.Encode()
}
