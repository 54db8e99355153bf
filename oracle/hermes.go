package oracle

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"swaylend/core/types"
)

const (
	defaultHermesTimeout = 10 * time.Second
	maxHermesBody        = 1 << 20
)

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HermesOracle reads the latest parsed price updates from a Pyth Hermes
// endpoint. Requests are throttled with a token bucket so a busy market does
// not exhaust the public endpoint quota.
type HermesOracle struct {
	client   HTTPDoer
	endpoint string
	limiter  *rate.Limiter
	timeout  time.Duration
}

// NewHermesOracle constructs a Hermes client. A non-positive rps disables
// throttling.
func NewHermesOracle(client HTTPDoer, endpoint string, rps float64, burst int) *HermesOracle {
	if client == nil {
		client = http.DefaultClient
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if rps > 0 {
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &HermesOracle{
		client:   client,
		endpoint: strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		limiter:  limiter,
		timeout:  defaultHermesTimeout,
	}
}

// SetTimeout bounds each request. Non-positive values restore the default.
func (o *HermesOracle) SetTimeout(timeout time.Duration) {
	if o == nil {
		return
	}
	if timeout <= 0 {
		timeout = defaultHermesTimeout
	}
	o.timeout = timeout
}

type hermesPrice struct {
	Price       string `json:"price"`
	Conf        string `json:"conf"`
	Expo        int32  `json:"expo"`
	PublishTime int64  `json:"publish_time"`
}

type hermesParsed struct {
	ID    string      `json:"id"`
	Price hermesPrice `json:"price"`
}

type hermesResponse struct {
	Parsed []hermesParsed `json:"parsed"`
}

func (o *HermesOracle) GetPrice(feedID types.Bits256) (Price, error) {
	if o == nil || o.endpoint == "" {
		return Price{}, fmt.Errorf("hermes: endpoint not configured")
	}
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()
	if err := o.limiter.Wait(ctx); err != nil {
		return Price{}, fmt.Errorf("hermes: rate limit: %w", err)
	}

	feedHex := hex.EncodeToString(feedID[:])
	query := url.Values{}
	query.Set("ids[]", feedHex)
	query.Set("parsed", "true")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.endpoint+"/v2/updates/price/latest?"+query.Encode(), nil)
	if err != nil {
		return Price{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := o.client.Do(req)
	if err != nil {
		return Price{}, fmt.Errorf("hermes: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return Price{}, fmt.Errorf("%w: %s", ErrFeedNotFound, feedID)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Price{}, fmt.Errorf("hermes: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload hermesResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxHermesBody)).Decode(&payload); err != nil {
		return Price{}, fmt.Errorf("hermes: decode: %w", err)
	}
	for _, entry := range payload.Parsed {
		if !strings.EqualFold(strings.TrimPrefix(entry.ID, "0x"), feedHex) {
			continue
		}
		return entry.Price.toPrice()
	}
	return Price{}, fmt.Errorf("%w: %s", ErrFeedNotFound, feedID)
}

func (p hermesPrice) toPrice() (Price, error) {
	value, err := strconv.ParseInt(strings.TrimSpace(p.Price), 10, 64)
	if err != nil {
		return Price{}, fmt.Errorf("hermes: invalid price %q: %w", p.Price, err)
	}
	var conf uint64
	if trimmed := strings.TrimSpace(p.Conf); trimmed != "" {
		conf, err = strconv.ParseUint(trimmed, 10, 64)
		if err != nil {
			return Price{}, fmt.Errorf("hermes: invalid confidence %q: %w", p.Conf, err)
		}
	}
	publish := p.PublishTime
	if publish < 0 {
		publish = 0
	}
	return Price{
		Price:       value,
		Exponent:    p.Expo,
		Confidence:  conf,
		PublishTime: uint64(publish),
	}, nil
}
