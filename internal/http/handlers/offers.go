package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/go-offers-aggregator/internal/models"
	"github.com/pribylovaa/go-offers-aggregator/internal/query"
	"github.com/pribylovaa/go-offers-aggregator/internal/service"
)

// Значения Cache-Control для CDN перед шлюзом.
const (
	cacheControlFresh = "public, s-maxage=300, stale-while-revalidate=600"
	cacheControlStale = "public, s-maxage=60, stale-while-revalidate=3600"
	cacheControlQuery = "private, no-cache"
)

// QueryResponse — тело ответа POST /api/offers/{category}.
type QueryResponse struct {
	Commercial models.Commercial `json:"commercial"`
	Meta       QueryMeta         `json:"meta"`
}

// QueryMeta — параметры страницы.
type QueryMeta struct {
	Total      int  `json:"total"`
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalPages int  `json:"totalPages"`
	HasMore    bool `json:"hasMore"`
}

// StatsResponse — тело ответа GET /api/offers/{category}/stats.
type StatsResponse struct {
	Category models.Category `json:"category"`
	query.Stats
}

func category(r *http.Request) models.Category {
	return models.Category(chi.URLParam(r, "category"))
}

func setCacheHeaders(w http.ResponseWriter, state service.State) {
	w.Header().Set("X-Cache", string(state))
	if state == service.StateStale {
		w.Header().Set("Cache-Control", cacheControlStale)
		return
	}
	w.Header().Set("Cache-Control", cacheControlFresh)
}

// GetOffers — полная нормализованная выдача категории.
func (h *Handlers) GetOffers(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.Offers(r.Context(), category(r), h.clientKey(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	setRateLimitHeaders(w, res.Decision)
	setCacheHeaders(w, res.State)
	if res.State == service.StateMiss {
		w.Header().Set("X-Total-Offers", strconv.Itoa(len(res.Payload.Commercial.Offers)))
	}

	writeJSON(w, http.StatusOK, res.Payload)
}

// QueryOffers — фильтрация, сортировка и пагинация выдачи.
func (h *Handlers) QueryOffers(w http.ResponseWriter, r *http.Request) {
	var req query.Request
	if err := decodeStrict(w, r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	res, err := h.Service.Query(r.Context(), category(r), h.clientKey(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	setRateLimitHeaders(w, res.Decision)
	w.Header().Set("X-Cache", string(res.State))
	w.Header().Set("Cache-Control", cacheControlQuery)
	w.Header().Set("X-Total-Results", strconv.Itoa(res.Page.Total))

	filters := res.Filters
	if len(filters) == 0 {
		filters = json.RawMessage("{}")
	}

	writeJSON(w, http.StatusOK, QueryResponse{
		Commercial: models.Commercial{
			Offers:  res.Page.Items,
			Filters: filters,
		},
		Meta: QueryMeta{
			Total:      res.Page.Total,
			Page:       res.Page.Page,
			Limit:      res.Page.Limit,
			TotalPages: res.Page.TotalPages,
			HasMore:    res.Page.HasMore,
		},
	})
}

// OfferStats — сводка по выдаче категории.
func (h *Handlers) OfferStats(w http.ResponseWriter, r *http.Request) {
	c := category(r)

	res, err := h.Service.Stats(r.Context(), c, h.clientKey(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	setRateLimitHeaders(w, res.Decision)
	setCacheHeaders(w, res.State)

	writeJSON(w, http.StatusOK, StatsResponse{Category: c, Stats: res.Stats})
}
