package upstream

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/pribylovaa/go-offers-aggregator/internal/models"
)

// shape — распознанная форма тела ответа.
type shape int

const (
	shapeUnknown shape = iota
	// shapeArray — голый массив предложений.
	shapeArray
	// shapeObject — объект с offres/filtres на верхнем уровне или внутри commercial.
	shapeObject
)

// detect определяет форму и возвращает узел, содержащий offres/filtres.
func detect(body []byte) (shape, gjson.Result) {
	if !gjson.ValidBytes(body) {
		return shapeUnknown, gjson.Result{}
	}

	root := gjson.ParseBytes(body)
	switch {
	case root.IsArray():
		return shapeArray, root
	case root.IsObject():
		if c := root.Get("commercial"); c.IsObject() && hasOffersOrFilters(c) {
			return shapeObject, c
		}
		if hasOffersOrFilters(root) {
			return shapeObject, root
		}
	}

	return shapeUnknown, gjson.Result{}
}

func hasOffersOrFilters(r gjson.Result) bool {
	return r.Get("offres").Exists() || r.Get("filtres").Exists()
}

// Decode нормализует тело апстрима в Payload категории c.
// fetchedAt и ttl задают метаданные выборки.
func Decode(c models.Category, body []byte, fetchedAt time.Time, ttl time.Duration) (*models.Payload, error) {
	const op = "upstream/Decode"

	sh, node := detect(body)

	var (
		items   []gjson.Result
		filters json.RawMessage
	)

	switch sh {
	case shapeArray:
		items = node.Array()
	case shapeObject:
		if o := node.Get("offres"); o.IsArray() {
			items = o.Array()
		}
		if f := node.Get("filtres"); f.IsObject() {
			filters = json.RawMessage(f.Raw)
		}
	default:
		return nil, malformedError(op, "unrecognized upstream payload")
	}

	offers := make([]models.Offer, 0, len(items))
	for _, it := range items {
		if o, ok := normalizeOffer(c, it); ok {
			offers = append(offers, o)
		}
	}

	if filters == nil {
		filters = models.EmptyFilters(c, len(offers))
	}

	return &models.Payload{
		Commercial: models.Commercial{Offers: offers, Filters: filters},
		Meta: models.Meta{
			FetchedAt:   fetchedAt,
			TotalOffers: len(offers),
			CacheUntil:  fetchedAt.Add(ttl),
		},
	}, nil
}

// normalizeOffer собирает Offer из элемента массива. Элементы, не являющиеся
// объектом, и предложения без валидной неотрицательной цены отбрасываются.
func normalizeOffer(c models.Category, r gjson.Result) (models.Offer, bool) {
	if !r.IsObject() {
		return models.Offer{}, false
	}

	price, ok := parseNumber(r.Get("prix"))
	if !ok || price < 0 {
		return models.Offer{}, false
	}

	o := models.Offer{
		ID:               r.Get("id").Int(),
		Category:         c,
		Name:             strings.TrimSpace(r.Get("nom").String()),
		URL:              r.Get("url").String(),
		Slug:             r.Get("slugOffre").String(),
		Price:            price,
		CommitmentMonths: int(r.Get("dureeEngagement").Int()),
		Technology:       r.Get("typeTechno").String(),
		TechnologyAlias:  r.Get("techno").String(),
		DataQuotaGB:      int(r.Get("quotaData").Int()),
		Speed:            speed(r),
		PhoneIncluded:    r.Get("isTelephoneInclus").Bool(),
		Description:      r.Get("description").String(),
		ShortDescription: r.Get("descriptionCourte").String(),
		Starred:          r.Get("isStar").Bool(),
		Selected:         r.Get("isSelection").Bool(),
		Sponsored:        r.Get("isSponsored").Bool(),
		UpdatedAt:        r.Get("dateMAJ").String(),
		Operator: models.Operator{
			ID:            r.Get("operateur.id").Int(),
			Name:          strings.TrimSpace(r.Get("operateur.nom").String()),
			Slug:          r.Get("operateur.slug").String(),
			SlugOperateur: r.Get("operateur.slugOperateur").String(),
			Logo:          r.Get("operateur.logo").String(),
			URL:           r.Get("operateur.url").String(),
		},
		Services: models.Services{
			UnlimitedCalls:     r.Get("services.appelsIllimites").Bool(),
			UnlimitedSMS:       r.Get("services.smsMmsIllimites").Bool(),
			UnlimitedData:      r.Get("services.internetIllimite").Bool() || r.Get("isIllimiteData").Bool(),
			Compatible5G:       r.Get("services.compatible5G").Bool(),
			TV:                 r.Get("services.tv").Bool(),
			Landline:           r.Get("services.telephone").Bool(),
			CallsToMobiles:     r.Get("services.appelsVersMobileInclus").Bool(),
			MobilePlanIncluded: r.Get("services.forfaitMobileInclus").Bool(),
		},
		Promo: promo(r.Get("promo")),
	}

	for _, n := range r.Get("reseaux").Array() {
		o.Networks = append(o.Networks, n.String())
	}

	return o, true
}

// parseNumber принимает JSON-число или числовую строку ("29.99", "29,99").
func parseNumber(v gjson.Result) (float64, bool) {
	switch v.Type {
	case gjson.Number:
		return v.Float(), true
	case gjson.String:
		s := strings.ReplaceAll(strings.TrimSpace(v.Str), ",", ".")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// speed читает debitMontant, а при его отсутствии или нуле — vitesse.
func speed(r gjson.Result) int {
	if v, ok := parseNumber(r.Get("debitMontant")); ok && v > 0 {
		return int(v)
	}

	if v, ok := parseNumber(r.Get("vitesse")); ok && v > 0 {
		return int(v)
	}

	return 0
}

func promo(r gjson.Result) *models.Promo {
	if !r.IsObject() {
		return nil
	}

	p := &models.Promo{Kind: models.PromoKind(r.Get("type").String())}
	if v, ok := parseNumber(r.Get("prix")); ok {
		p.Price = &v
	}
	if v := r.Get("duree"); v.Type == gjson.Number {
		n := int(v.Int())
		p.DurationMonths = &n
	}
	if v := r.Get("nbMoisOfferts"); v.Type == gjson.Number {
		n := int(v.Int())
		p.FreeMonths = &n
	}

	return p
}
