package newsapi

import "github.com/pribylovaa/news-etl/internal/models"

// everythingResponse — ответ /v2/everything (успешный или с ошибкой).
type everythingResponse struct {
	Status       string              `json:"status"`
	TotalResults int                 `json:"totalResults"`
	Articles     []models.RawArticle `json:"articles"`
	Code         string              `json:"code"`
	Message      string              `json:"message"`
}

// Коды ошибок NewsAPI, на которые опирается классификация.
const (
	codeMaximumResultsReached = "maximumResultsReached"
	statusOK                  = "ok"
)
