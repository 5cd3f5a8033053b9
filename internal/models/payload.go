package models

import (
	"encoding/json"
	"time"
)

// Payload — каноническая нормализованная выдача по категории.
// Форма совпадает с телом GET /api/offers/{category}.
type Payload struct {
	Commercial Commercial `json:"commercial"`
	Meta       Meta       `json:"_meta"`
}

// Commercial — список предложений и фасеты фильтров.
//
// Filters хранится «как есть»: если апстрим прислал filtres, они
// прокидываются без изменений, иначе подставляется пустой скелет (EmptyFilters).
type Commercial struct {
	Offers  []Offer         `json:"offres"`
	Filters json.RawMessage `json:"filtres"`
}

// Meta — производные метаданные выборки.
type Meta struct {
	FetchedAt   time.Time `json:"fetchedAt"`
	TotalOffers int       `json:"totalOffers"`
	CacheUntil  time.Time `json:"cacheUntil"`
}

type facetFlags map[string]bool

type mobileFilters struct {
	Operators       []any      `json:"operateurs"`
	Services        facetFlags `json:"services"`
	PlanTypes       facetFlags `json:"typeForfaits"`
	Networks        facetFlags `json:"reseauxOperateurs"`
	NbOffreMatching int        `json:"nbOffreMatching"`
}

type boxFilters struct {
	Operators       []any      `json:"operateurs"`
	Services        facetFlags `json:"services"`
	Technologies    facetFlags `json:"typeTechnos"`
	NbOffreMatching int        `json:"nbOffreMatching"`
}

// EmptyFilters собирает пустой скелет фасетов категории
// с nbOffreMatching = matching.
func EmptyFilters(c Category, matching int) json.RawMessage {
	var v any
	switch c {
	case CategoryMobile:
		v = mobileFilters{
			Operators:       []any{},
			Services:        facetFlags{},
			PlanTypes:       facetFlags{},
			Networks:        facetFlags{},
			NbOffreMatching: matching,
		}
	default:
		v = boxFilters{
			Operators:       []any{},
			Services:        facetFlags{},
			Technologies:    facetFlags{},
			NbOffreMatching: matching,
		}
	}

	b, _ := json.Marshal(v)
	return b
}
