package query

import (
	"strings"

	"github.com/pribylovaa/go-offers-aggregator/internal/models"
)

// Stats — сводка по снимку предложений.
type Stats struct {
	Total             int     `json:"total"`
	AvgPrice          float64 `json:"avgPrice"`
	MinPrice          float64 `json:"minPrice"`
	MaxPrice          float64 `json:"maxPrice"`
	WithoutCommitment int     `json:"withoutCommitment"`
	With5G            int     `json:"with5G"`
	WithUnlimitedData int     `json:"withUnlimitedData"`
	WithFiber         int     `json:"withFiber"`
	WithTV            int     `json:"withTV"`
}

// Summarize считает сводку. Для пустого среза цены нулевые.
func Summarize(offers []models.Offer) Stats {
	st := Stats{Total: len(offers)}
	if len(offers) == 0 {
		return st
	}

	var sum float64
	st.MinPrice = offers[0].Price
	st.MaxPrice = offers[0].Price

	for _, o := range offers {
		sum += o.Price
		st.MinPrice = min(st.MinPrice, o.Price)
		st.MaxPrice = max(st.MaxPrice, o.Price)

		if o.CommitmentMonths == 0 {
			st.WithoutCommitment++
		}
		if o.Services.Compatible5G {
			st.With5G++
		}
		if o.Services.UnlimitedData {
			st.WithUnlimitedData++
		}
		if isFiber(o) {
			st.WithFiber++
		}
		if o.Services.TV {
			st.WithTV++
		}
	}

	st.AvgPrice = sum / float64(len(offers))

	return st
}

func isFiber(o models.Offer) bool {
	for _, t := range []string{o.Technology, o.TechnologyAlias} {
		if strings.Contains(strings.ToLower(t), "fibre") || strings.Contains(strings.ToLower(t), "fiber") {
			return true
		}
	}

	return false
}
