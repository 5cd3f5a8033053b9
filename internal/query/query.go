// Package query применяет фильтры, сортировку и пагинацию к снимку
// предложений. Функции чистые: вход не мутируется, результат зависит
// только от аргументов.
package query

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pribylovaa/go-offers-aggregator/internal/models"
)

// ErrInvalidRequest — некорректные параметры пагинации.
var ErrInvalidRequest = errors.New("invalid query request")

// UnlimitedData — значение фильтра data, требующее безлимитного интернета.
const UnlimitedData = -1

// Ключи сортировки.
const (
	SortPriceAsc    = "price-asc"
	SortPriceDesc   = "price-desc"
	SortDebitDesc   = "debit-desc"
	SortVitesseDesc = "vitesse-desc"
	SortDataDesc    = "data-desc"
)

// Пагинация по умолчанию.
const (
	DefaultPage  = 1
	DefaultLimit = 12
	MaxLimit     = 100
)

// Filters — условия отбора. nil-поле означает «не задано»; булевы
// флаги сервисов применяются только со значением true.
type Filters struct {
	Operator   string   `json:"operateur,omitempty"`
	Techno     string   `json:"techno,omitempty"`
	TypeTechno string   `json:"typeTechno,omitempty"`
	MinPrice   *float64 `json:"minPrice,omitempty"`
	MaxPrice   *float64 `json:"maxPrice,omitempty"`
	Debit      *int     `json:"debit,omitempty"`
	Vitesse    *int     `json:"vitesse,omitempty"`
	Data       *int     `json:"data,omitempty"`
	// Engagement: true — только с обязательством, false — только без.
	Engagement         *bool  `json:"engagement,omitempty"`
	TV                 bool   `json:"tv,omitempty"`
	Telephone          bool   `json:"telephone,omitempty"`
	Compatible5G       bool   `json:"compatible5G,omitempty"`
	UnlimitedCalls     bool   `json:"appelsIllimites,omitempty"`
	UnlimitedSMS       bool   `json:"smsMmsIllimites,omitempty"`
	UnlimitedData      bool   `json:"internetIllimite,omitempty"`
	MobilePlanIncluded bool   `json:"forfaitMobileInclus,omitempty"`
	Search             string `json:"search,omitempty"`
}

// Request — тело POST /api/offers/{category}.
type Request struct {
	Filters *Filters `json:"filters,omitempty"`
	Sort    string   `json:"sort,omitempty"`
	Page    *int     `json:"page,omitempty"`
	Limit   *int     `json:"limit,omitempty"`
}

// Page — окно отфильтрованных и отсортированных предложений.
type Page struct {
	Items      []models.Offer
	Total      int
	Page       int
	Limit      int
	TotalPages int
	HasMore    bool
}

// Limits — серверные лимиты пагинации.
type Limits struct {
	Default int
	Max     int
}

// Run выполняет запрос с лимитами по умолчанию (12/100).
func Run(offers []models.Offer, req Request) (Page, error) {
	return RunWithLimits(offers, req, Limits{Default: DefaultLimit, Max: MaxLimit})
}

// RunWithLimits — Run с явными лимитами пагинации.
func RunWithLimits(offers []models.Offer, req Request, lim Limits) (Page, error) {
	page, limit, err := paging(req, lim)
	if err != nil {
		return Page{}, err
	}

	matched := Filter(offers, req.Filters)
	Sort(matched, req.Sort)

	total := len(matched)
	pages := pageCount(total, limit)
	start, end := window(page, limit, total, pages)

	items := []models.Offer{}
	if start < end {
		items = matched[start:end]
	}

	return Page{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: pages,
		HasMore:    end < total,
	}, nil
}

// pageCount — ceil(total/limit) без переполнения.
func pageCount(total, limit int) int {
	pages := total / limit
	if total%limit != 0 {
		pages++
	}

	return pages
}

// window возвращает границы [start, end) страницы. Номер страницы
// сравнивается с pages до умножения, поэтому огромный page не переполняет int.
func window(page, limit, total, pages int) (int, int) {
	if page > pages {
		return total, total
	}

	start := (page - 1) * limit
	return start, start + min(limit, total-start)
}

func paging(req Request, lim Limits) (int, int, error) {
	page, limit := DefaultPage, lim.Default
	if limit < 1 {
		limit = DefaultLimit
	}

	if req.Page != nil {
		if *req.Page < 1 {
			return 0, 0, fmt.Errorf("%w: page must be >= 1", ErrInvalidRequest)
		}
		page = *req.Page
	}

	if req.Limit != nil {
		if *req.Limit < 1 {
			return 0, 0, fmt.Errorf("%w: limit must be >= 1", ErrInvalidRequest)
		}
		limit = *req.Limit
	}

	if lim.Max > 0 && limit > lim.Max {
		limit = lim.Max
	}

	return page, limit, nil
}

// Filter возвращает новый срез предложений, удовлетворяющих всем условиям.
func Filter(offers []models.Offer, f *Filters) []models.Offer {
	out := make([]models.Offer, 0, len(offers))
	for _, o := range offers {
		if f == nil || f.match(o) {
			out = append(out, o)
		}
	}

	return out
}

func (f *Filters) match(o models.Offer) bool {
	if f.Operator != "" && !o.MatchesOperator(f.Operator) {
		return false
	}

	if tech := firstNonEmpty(f.Techno, f.TypeTechno); tech != "" && !o.MatchesTechnology(tech) {
		return false
	}

	if f.MinPrice != nil && o.Price < *f.MinPrice {
		return false
	}

	if f.MaxPrice != nil && o.Price > *f.MaxPrice {
		return false
	}

	if speed := firstSet(f.Debit, f.Vitesse); speed != nil && o.Speed < *speed {
		return false
	}

	if f.Data != nil && !matchData(o, *f.Data) {
		return false
	}

	if f.Engagement != nil && *f.Engagement != (o.CommitmentMonths > 0) {
		return false
	}

	s := o.Services
	switch {
	case f.TV && !s.TV,
		f.Telephone && !s.Landline,
		f.Compatible5G && !s.Compatible5G,
		f.UnlimitedCalls && !s.UnlimitedCalls,
		f.UnlimitedSMS && !s.UnlimitedSMS,
		f.UnlimitedData && !s.UnlimitedData,
		f.MobilePlanIncluded && !s.MobilePlanIncluded:
		return false
	}

	if f.Search != "" && !matchSearch(o, f.Search) {
		return false
	}

	return true
}

// matchData: -1 — нужен безлимит; иначе квота не меньше заданной,
// безлимитный тариф проходит любой порог.
func matchData(o models.Offer, want int) bool {
	if want == UnlimitedData {
		return o.Services.UnlimitedData
	}

	return o.Services.UnlimitedData || o.DataQuotaGB >= want
}

func matchSearch(o models.Offer, q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return true
	}

	for _, s := range []string{o.Name, o.Operator.Name, o.Description} {
		if strings.Contains(strings.ToLower(s), q) {
			return true
		}
	}

	return false
}

// Sort упорядочивает срез на месте, сохраняя порядок равных элементов.
// Неизвестный ключ оставляет порядок как есть.
func Sort(offers []models.Offer, key string) {
	var less func(a, b models.Offer) bool

	switch key {
	case SortPriceAsc:
		less = func(a, b models.Offer) bool { return a.Price < b.Price }
	case SortPriceDesc:
		less = func(a, b models.Offer) bool { return a.Price > b.Price }
	case SortDebitDesc, SortVitesseDesc:
		less = func(a, b models.Offer) bool { return a.Speed > b.Speed }
	case SortDataDesc:
		less = func(a, b models.Offer) bool { return dataRank(a) > dataRank(b) }
	default:
		return
	}

	sort.SliceStable(offers, func(i, j int) bool { return less(offers[i], offers[j]) })
}

// dataRank — безлимит выше любой квоты.
func dataRank(o models.Offer) int {
	if o.Services.UnlimitedData {
		return math.MaxInt
	}

	return o.DataQuotaGB
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}

	return ""
}

func firstSet(vals ...*int) *int {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}

	return nil
}
