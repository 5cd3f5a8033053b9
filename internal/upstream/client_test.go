package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-offers-aggregator/internal/models"
)

// feed — фейковый апстрим: обработчики по пути и счётчики обращений.
type feed struct {
	srv   *httptest.Server
	hits  map[string]*int32
	seenQ atomic.Value
	seenH atomic.Value
}

func newFeed(t *testing.T, routes map[string]http.HandlerFunc) *feed {
	t.Helper()

	f := &feed{hits: map[string]*int32{}}
	mux := http.NewServeMux()
	for path, h := range routes {
		var n int32
		f.hits[path] = &n
		h := h
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&n, 1)
			f.seenQ.Store(r.URL.Query().Get("partner"))
			f.seenH.Store(r.Header.Get("User-Agent") + "|" + r.Header.Get("Accept"))
			h(w, r)
		})
	}

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)

	return f
}

func (f *feed) count(path string) int { return int(atomic.LoadInt32(f.hits[path])) }

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func newTestClient(baseURL string, timeout time.Duration) *Client {
	c := New(nil, Options{
		BaseURL:         baseURL,
		Partner:         "ARIASE",
		UserAgent:       "ComparePrix/1.0",
		Timeout:         timeout,
		MobilePath:      "/mobile/all",
		BoxPath:         "/box/compare/all",
		BoxFallbackPath: "/box/all",
		CacheTTL:        5 * time.Minute,
	})
	c.now = func() time.Time { return fetchedAt }

	return c
}

func TestFetchCategory_BoxFallbackAfterPrimary500(t *testing.T) {
	t.Parallel()

	f := newFeed(t, map[string]http.HandlerFunc{
		"/box/compare/all": respond(http.StatusInternalServerError, `oops`),
		"/box/all":         respond(http.StatusOK, `[{"id":1,"prix":10},{"id":2,"prix":20},{"id":3,"prix":30}]`),
	})

	p, err := newTestClient(f.srv.URL, time.Second).FetchCategory(context.Background(), models.CategoryBox)
	require.NoError(t, err)
	require.Equal(t, 3, p.Meta.TotalOffers)
	require.Equal(t, fetchedAt.Add(5*time.Minute), p.Meta.CacheUntil)

	require.Equal(t, 1, f.count("/box/compare/all"))
	require.Equal(t, 1, f.count("/box/all"))
	require.Equal(t, "ARIASE", f.seenQ.Load())
	require.Equal(t, "ComparePrix/1.0|application/json", f.seenH.Load())
}

func TestFetchCategory_PrimaryOK_NoFallback(t *testing.T) {
	t.Parallel()

	f := newFeed(t, map[string]http.HandlerFunc{
		"/box/compare/all": respond(http.StatusOK, `{"offres":[{"id":1,"prix":10}],"filtres":{"nbOffreMatching":1}}`),
		"/box/all":         respond(http.StatusOK, `[]`),
	})

	p, err := newTestClient(f.srv.URL, time.Second).FetchCategory(context.Background(), models.CategoryBox)
	require.NoError(t, err)
	require.Equal(t, 1, p.Meta.TotalOffers)
	require.Zero(t, f.count("/box/all"))
}

func TestFetchCategory_BothFail_ReportsFallbackStatus(t *testing.T) {
	t.Parallel()

	f := newFeed(t, map[string]http.HandlerFunc{
		"/box/compare/all": respond(http.StatusInternalServerError, ``),
		"/box/all":         respond(http.StatusServiceUnavailable, ``),
	})

	_, err := newTestClient(f.srv.URL, time.Second).FetchCategory(context.Background(), models.CategoryBox)
	require.Error(t, err)

	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	require.Equal(t, KindStatus, ue.Kind)
	require.Equal(t, http.StatusServiceUnavailable, ue.Status)
}

func TestFetchCategory_MalformedPrimaryDoesNotFallback(t *testing.T) {
	t.Parallel()

	f := newFeed(t, map[string]http.HandlerFunc{
		"/box/compare/all": respond(http.StatusOK, `{"unexpected":true}`),
		"/box/all":         respond(http.StatusOK, `[]`),
	})

	_, err := newTestClient(f.srv.URL, time.Second).FetchCategory(context.Background(), models.CategoryBox)

	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	require.Equal(t, KindMalformed, ue.Kind)
	require.Equal(t, http.StatusBadGateway, ue.Status)
	require.Zero(t, f.count("/box/all"))
}

func TestFetchCategory_MobileHasNoFallback(t *testing.T) {
	t.Parallel()

	f := newFeed(t, map[string]http.HandlerFunc{
		"/mobile/all": respond(http.StatusNotFound, ``),
		"/box/all":    respond(http.StatusOK, `[]`),
	})

	_, err := newTestClient(f.srv.URL, time.Second).FetchCategory(context.Background(), models.CategoryMobile)

	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	require.Equal(t, http.StatusNotFound, ue.Status)
	require.Equal(t, 1, f.count("/mobile/all"))
	require.Zero(t, f.count("/box/all"))
}

func TestFetchCategory_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	slow := func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}

	f := newFeed(t, map[string]http.HandlerFunc{"/mobile/all": slow})

	_, err := newTestClient(f.srv.URL, 50*time.Millisecond).FetchCategory(context.Background(), models.CategoryMobile)

	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	require.Equal(t, KindTimeout, ue.Kind)
	require.Equal(t, http.StatusGatewayTimeout, ue.Status)
}

func TestFetchCategory_TimeoutTriggersFallback(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	f := newFeed(t, map[string]http.HandlerFunc{
		"/box/compare/all": func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		},
		"/box/all": respond(http.StatusOK, `[{"id":1,"prix":1}]`),
	})

	p, err := newTestClient(f.srv.URL, 50*time.Millisecond).FetchCategory(context.Background(), models.CategoryBox)
	require.NoError(t, err)
	require.Equal(t, 1, p.Meta.TotalOffers)
}

func TestFetchCategory_Transport(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url, time.Second).FetchCategory(context.Background(), models.CategoryMobile)

	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	require.Equal(t, KindTransport, ue.Kind)
	require.Equal(t, http.StatusBadGateway, ue.Status)
}

func TestFetchCategory_CanceledContextSkipsFallback(t *testing.T) {
	t.Parallel()

	f := newFeed(t, map[string]http.HandlerFunc{
		"/box/compare/all": respond(http.StatusOK, `[]`),
		"/box/all":         respond(http.StatusOK, `[]`),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(f.srv.URL, time.Second).FetchCategory(ctx, models.CategoryBox)
	require.Error(t, err)
	require.Zero(t, f.count("/box/all"))
}

func TestNew_OutboundThrottle(t *testing.T) {
	t.Parallel()

	c := New(nil, Options{RPS: 5, Burst: 2})
	require.InDelta(t, 5.0, float64(c.limiter.Limit()), 1e-9)
	require.Equal(t, 2, c.limiter.Burst())
	require.Equal(t, 10*time.Second, c.opts.Timeout)

	unlimited := New(nil, Options{})
	require.True(t, unlimited.limiter.Allow())
}

func TestUpstreamError_Message(t *testing.T) {
	t.Parallel()

	e := statusError("op", http.StatusTeapot)
	require.Contains(t, e.Error(), "418")
	require.Nil(t, e.Unwrap())

	inner := errors.New("boom")
	te := transportError("op", inner)
	require.ErrorIs(t, te, inner)
	require.Equal(t, "transport", te.Kind.String())
}
