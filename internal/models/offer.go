// models содержит доменные сущности шлюза предложений.
// Эти типы используются слоями апстрима, кэша, бизнес-логики и транспорта.
//
// JSON-теги повторяют схему апстрим-фида (французские имена полей),
// чтобы фронт получал ту же форму, что и раньше.
package models

import "fmt"

// Category — домен предложений: мобильные тарифы или интернет-боксы.
type Category string

const (
	CategoryMobile Category = "mobile"
	CategoryBox    Category = "box"
)

// Categories — все поддерживаемые категории в стабильном порядке.
var Categories = []Category{CategoryMobile, CategoryBox}

// ParseCategory валидирует строку из URL.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryMobile, CategoryBox:
		return Category(s), nil
	default:
		return "", fmt.Errorf("unknown category %q", s)
	}
}

// CacheKey — ключ записи кэша для категории ("mobile-offers", "box-offers").
func (c Category) CacheKey() string { return string(c) + "-offers" }

func (c Category) String() string { return string(c) }

// PromoKind — тип промо-цены.
type PromoKind string

const (
	PromoMonthly   PromoKind = "mensuel"
	PromoPermanent PromoKind = "permanente"
	PromoLaunch    PromoKind = "lancement"
)

// Offer — одно коммерческое предложение (мобильный тариф или бокс).
//
// Особенности:
//   - создаётся только нормализацией апстрим-JSON и дальше не мутирует;
//   - Price всегда >= 0 (строковые цены апстрима приводятся к float64);
//   - Speed заполняется из debitMontant, а при его отсутствии из vitesse.
type Offer struct {
	ID               int64    `json:"id"`
	Category         Category `json:"categorie"`
	Name             string   `json:"nom"`
	URL              string   `json:"url,omitempty"`
	Slug             string   `json:"slugOffre,omitempty"`
	Operator         Operator `json:"operateur"`
	Price            float64  `json:"prix"`
	CommitmentMonths int      `json:"dureeEngagement"`
	Technology       string   `json:"typeTechno,omitempty"`
	TechnologyAlias  string   `json:"techno,omitempty"`
	Networks         []string `json:"reseaux,omitempty"`
	Services         Services `json:"services"`
	Promo            *Promo   `json:"promo,omitempty"`
	DataQuotaGB      int      `json:"quotaData,omitempty"`
	Speed            int      `json:"vitesse,omitempty"`
	PhoneIncluded    bool     `json:"isTelephoneInclus,omitempty"`
	Description      string   `json:"description,omitempty"`
	ShortDescription string   `json:"descriptionCourte,omitempty"`
	Starred          bool     `json:"isStar,omitempty"`
	Selected         bool     `json:"isSelection,omitempty"`
	Sponsored        bool     `json:"isSponsored,omitempty"`
	UpdatedAt        string   `json:"dateMAJ,omitempty"`
}

// Operator — ссылка на оператора.
type Operator struct {
	ID            int64  `json:"id"`
	Name          string `json:"nom"`
	Slug          string `json:"slug,omitempty"`
	SlugOperateur string `json:"slugOperateur,omitempty"`
	Logo          string `json:"logo,omitempty"`
	URL           string `json:"url,omitempty"`
}

// Services — набор возможностей тарифа/бокса.
type Services struct {
	UnlimitedCalls     bool `json:"appelsIllimites,omitempty"`
	UnlimitedSMS       bool `json:"smsMmsIllimites,omitempty"`
	UnlimitedData      bool `json:"internetIllimite,omitempty"`
	Compatible5G       bool `json:"compatible5G,omitempty"`
	TV                 bool `json:"tv,omitempty"`
	Landline           bool `json:"telephone,omitempty"`
	CallsToMobiles     bool `json:"appelsVersMobileInclus,omitempty"`
	MobilePlanIncluded bool `json:"forfaitMobileInclus,omitempty"`
}

// Promo — промо-условия. Поля, кроме Kind, опциональны.
type Promo struct {
	Kind           PromoKind `json:"type"`
	Price          *float64  `json:"prix,omitempty"`
	DurationMonths *int      `json:"duree,omitempty"`
	FreeMonths     *int      `json:"nbMoisOfferts,omitempty"`
}

// MatchesOperator — сравнение по имени или слагам оператора.
func (o Offer) MatchesOperator(v string) bool {
	return v == o.Operator.Name || (o.Operator.Slug != "" && v == o.Operator.Slug) ||
		(o.Operator.SlugOperateur != "" && v == o.Operator.SlugOperateur)
}

// MatchesTechnology — сравнение с typeTechno или techno.
func (o Offer) MatchesTechnology(v string) bool {
	return v == o.Technology || (o.TechnologyAlias != "" && v == o.TechnologyAlias)
}
