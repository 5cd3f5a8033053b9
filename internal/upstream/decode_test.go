package upstream

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-offers-aggregator/internal/models"
)

var fetchedAt = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func TestDecode_BareArray(t *testing.T) {
	t.Parallel()

	body := `[
		{"id":1,"nom":"Fibre 1G","prix":"29.99","operateur":{"id":7,"nom":"Orange"},"debitMontant":"1000","vitesse":500},
		{"id":2,"nom":"ADSL","prix":19,"operateur":{"id":8,"nom":"Free"},"vitesse":20},
		{"id":3,"nom":"Cable","prix":"24,5","operateur":{"id":9,"nom":"SFR"}}
	]`

	p, err := Decode(models.CategoryBox, []byte(body), fetchedAt, 5*time.Minute)
	require.NoError(t, err)

	require.Len(t, p.Commercial.Offers, 3)
	require.Equal(t, 3, p.Meta.TotalOffers)
	require.Equal(t, fetchedAt, p.Meta.FetchedAt)
	require.Equal(t, fetchedAt.Add(5*time.Minute), p.Meta.CacheUntil)

	o := p.Commercial.Offers[0]
	require.Equal(t, models.CategoryBox, o.Category)
	require.InDelta(t, 29.99, o.Price, 1e-9)
	require.Equal(t, 1000, o.Speed, "debitMontant wins over vitesse")
	require.Equal(t, "Orange", o.Operator.Name)

	require.Equal(t, 20, p.Commercial.Offers[1].Speed)
	require.InDelta(t, 24.5, p.Commercial.Offers[2].Price, 1e-9)

	var filters map[string]any
	require.NoError(t, json.Unmarshal(p.Commercial.Filters, &filters))
	require.Contains(t, filters, "typeTechnos")
	require.EqualValues(t, 3, filters["nbOffreMatching"])
}

func TestDecode_ObjectShapes(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name string
		body string
	}{
		{"top_level", `{"offres":[{"id":1,"prix":9.99}],"filtres":{"operateurs":[{"id":1}],"nbOffreMatching":1}}`},
		{"under_commercial", `{"commercial":{"offres":[{"id":1,"prix":9.99}],"filtres":{"operateurs":[{"id":1}],"nbOffreMatching":1}}}`},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Decode(models.CategoryMobile, []byte(tc.body), fetchedAt, time.Minute)
			require.NoError(t, err)
			require.Len(t, p.Commercial.Offers, 1)
			// Фасеты апстрима прокидываются без изменений.
			require.JSONEq(t, `{"operateurs":[{"id":1}],"nbOffreMatching":1}`, string(p.Commercial.Filters))
		})
	}
}

func TestDecode_ObjectWithoutFilters_SynthesizesMobileSkeleton(t *testing.T) {
	t.Parallel()

	p, err := Decode(models.CategoryMobile, []byte(`{"offres":[]}`), fetchedAt, time.Minute)
	require.NoError(t, err)
	require.Empty(t, p.Commercial.Offers)
	require.NotNil(t, p.Commercial.Offers)
	require.JSONEq(t,
		`{"operateurs":[],"services":{},"typeForfaits":{},"reseauxOperateurs":{},"nbOffreMatching":0}`,
		string(p.Commercial.Filters),
	)
}

func TestDecode_Malformed(t *testing.T) {
	t.Parallel()

	for _, body := range []string{`not json`, `{"foo":1}`, `"text"`, `42`, ``} {
		_, err := Decode(models.CategoryBox, []byte(body), fetchedAt, time.Minute)
		require.Error(t, err, body)

		var ue *UpstreamError
		require.True(t, errors.As(err, &ue))
		require.Equal(t, KindMalformed, ue.Kind)
		require.Equal(t, http.StatusBadGateway, ue.Status)
	}
}

func TestDecode_DropsInvalidOffers(t *testing.T) {
	t.Parallel()

	body := `[
		{"id":1,"prix":"abc"},
		{"id":2,"prix":-5},
		{"id":3},
		"scalar",
		{"id":4,"prix":0}
	]`

	p, err := Decode(models.CategoryBox, []byte(body), fetchedAt, time.Minute)
	require.NoError(t, err)
	require.Len(t, p.Commercial.Offers, 1)
	require.EqualValues(t, 4, p.Commercial.Offers[0].ID)
	require.Equal(t, 1, p.Meta.TotalOffers)
}

func TestDecode_FullMobileOffer(t *testing.T) {
	t.Parallel()

	body := `[{
		"id": 42, "nom": " Forfait 100Go ", "url": "https://o.example/42", "slugOffre": "forfait-100",
		"operateur": {"id": 3, "nom": "Bouygues", "slug": "bouygues", "slugOperateur": "bytel", "logo": "b.png"},
		"prix": 12.99, "typeTechno": "5G", "dureeEngagement": 12, "reseaux": ["Bouygues"],
		"services": {"appelsIllimites": true, "smsMmsIllimites": true, "internetIllimite": false, "compatible5G": true},
		"quotaData": 100, "isTelephoneInclus": false, "isStar": true,
		"promo": {"type": "lancement", "prix": 7.99, "duree": 6}
	}]`

	p, err := Decode(models.CategoryMobile, []byte(body), fetchedAt, time.Minute)
	require.NoError(t, err)
	require.Len(t, p.Commercial.Offers, 1)

	o := p.Commercial.Offers[0]
	require.Equal(t, "Forfait 100Go", o.Name)
	require.Equal(t, "bytel", o.Operator.SlugOperateur)
	require.Equal(t, 12, o.CommitmentMonths)
	require.Equal(t, 100, o.DataQuotaGB)
	require.Equal(t, []string{"Bouygues"}, o.Networks)
	require.True(t, o.Services.Compatible5G)
	require.False(t, o.Services.UnlimitedData)
	require.True(t, o.Starred)

	require.NotNil(t, o.Promo)
	require.Equal(t, models.PromoLaunch, o.Promo.Kind)
	require.InDelta(t, 7.99, *o.Promo.Price, 1e-9)
	require.Equal(t, 6, *o.Promo.DurationMonths)
	require.Nil(t, o.Promo.FreeMonths)
}

func TestDecode_NullPromo(t *testing.T) {
	t.Parallel()

	p, err := Decode(models.CategoryMobile, []byte(`[{"id":1,"prix":5,"promo":null,"isIllimiteData":true}]`), fetchedAt, time.Minute)
	require.NoError(t, err)
	require.Nil(t, p.Commercial.Offers[0].Promo)
	require.True(t, p.Commercial.Offers[0].Services.UnlimitedData)
}
