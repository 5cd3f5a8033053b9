// Package upstream загружает фид предложений партнёра и нормализует его.
//
// На категорию приходится одна основная попытка и, если для категории
// задан резервный адрес, одна резервная. Других повторов нет.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pribylovaa/go-offers-aggregator/internal/models"
	"github.com/pribylovaa/go-offers-aggregator/pkg/log"
)

// maxBodyBytes — предел размера тела ответа апстрима.
const maxBodyBytes = 32 << 20

// Options — адреса и параметры запросов к фиду.
type Options struct {
	BaseURL         string
	Partner         string
	UserAgent       string
	Timeout         time.Duration
	MobilePath      string
	BoxPath         string
	BoxFallbackPath string
	// RPS — предел исходящих запросов; 0 — без ограничения.
	RPS   float64
	Burst int
	// CacheTTL нужен только для _meta.cacheUntil.
	CacheTTL time.Duration
}

// Client реализует выборку категории с резервным адресом для box.
type Client struct {
	http    *http.Client
	opts    Options
	limiter *rate.Limiter
	now     func() time.Time
}

// New создаёт клиента. HTTP-клиент настраивается извне (прокси, транспорт);
// таймаут попытки задаётся через opts.Timeout.
func New(client *http.Client, opts Options) *Client {
	if client == nil {
		client = &http.Client{}
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	lim := rate.NewLimiter(rate.Inf, 1)
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}

	return &Client{http: client, opts: opts, limiter: lim, now: time.Now}
}

// endpoints возвращает основной и резервный (может быть пустым) URL категории.
func (c *Client) endpoints(cat models.Category) (string, string, error) {
	base := strings.TrimRight(c.opts.BaseURL, "/")

	switch cat {
	case models.CategoryMobile:
		return base + c.opts.MobilePath, "", nil
	case models.CategoryBox:
		fallback := ""
		if c.opts.BoxFallbackPath != "" {
			fallback = base + c.opts.BoxFallbackPath
		}
		return base + c.opts.BoxPath, fallback, nil
	default:
		return "", "", fmt.Errorf("unknown category %q", cat)
	}
}

// FetchCategory загружает и нормализует выдачу категории.
// Любая неудача возвращается как *UpstreamError.
func (c *Client) FetchCategory(ctx context.Context, cat models.Category) (*models.Payload, error) {
	const op = "upstream/FetchCategory"

	lg := log.From(ctx)

	primary, fallback, err := c.endpoints(cat)
	if err != nil {
		return nil, &UpstreamError{Op: op, Kind: KindMalformed, Status: http.StatusNotFound, Message: err.Error()}
	}

	body, uerr := c.get(ctx, primary)
	if uerr != nil && uerr.retryable() && fallback != "" && ctx.Err() == nil {
		lg.Warn("upstream_primary_failed",
			slog.String("op", op),
			slog.String("category", cat.String()),
			slog.String("kind", uerr.Kind.String()),
			slog.Int("status", uerr.Status),
		)

		body, uerr = c.get(ctx, fallback)
		if uerr == nil {
			lg.Info("upstream_fallback_ok",
				slog.String("op", op),
				slog.String("category", cat.String()),
			)
		}
	}

	if uerr != nil {
		return nil, uerr
	}

	p, err := Decode(cat, body, c.now().UTC(), c.opts.CacheTTL)
	if err != nil {
		return nil, err
	}

	lg.Debug("upstream_fetched",
		slog.String("op", op),
		slog.String("category", cat.String()),
		slog.Int("offers", p.Meta.TotalOffers),
	)

	return p, nil
}

// get выполняет одну попытку с собственным таймаутом.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, *UpstreamError) {
	const op = "upstream/get"

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, transportError(op, err)
	}

	if c.opts.Partner != "" {
		q := u.Query()
		q.Set("partner", c.opts.Partner)
		u.RawQuery = q.Encode()
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, classify(op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, transportError(op, err)
	}

	req.Header.Set("Accept", "application/json")
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, statusError(op, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classify(op, err)
	}

	return body, nil
}

// classify разделяет таймауты и прочие транспортные ошибки.
func classify(op string, err error) *UpstreamError {
	if errors.Is(err, context.DeadlineExceeded) {
		return timeoutError(op, err)
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return timeoutError(op, err)
	}

	return transportError(op, err)
}
