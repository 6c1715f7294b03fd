package scorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// ErrUnavailable is returned when no score can be obtained from the
// risk-analysis service for whatever reason. It's never fatal, callers decide
// on the fallback.
var ErrUnavailable = errors.New("security data unavailable")

const (
	// defaultRequestTimeout is the default scoring request timeout.
	defaultRequestTimeout = 10 * time.Second
	// maxResponseSize limits the risk-analysis service reply size.
	maxResponseSize = 1 << 20
	// codeOK is the service-level success code.
	codeOK = 1
)

type (
	// Service scores contracts using an external risk-analysis service.
	Service struct {
		Config

		endpoint *url.URL
	}

	// Config contains scorer parameters.
	Config struct {
		Log      *zap.Logger
		Endpoint string
		ChainID  uint64
		Timeout  time.Duration
		// APIKey is sent in the Authorization header if not empty.
		APIKey string
		Client HTTPClient
	}

	// HTTPClient is an interface capable of doing scoring requests.
	HTTPClient interface {
		Do(*http.Request) (*http.Response, error)
	}

	// securityResponse is the risk-analysis service reply.
	securityResponse struct {
		Code    *int                     `json:"code"`
		Message string                   `json:"message"`
		Result  map[string]TokenSecurity `json:"result"`
	}
)

// New returns a new scoring service.
func New(cfg Config) (*Service, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid scorer endpoint: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRequestTimeout
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Service{
		Config:   cfg,
		endpoint: u,
	}, nil
}

// Score fetches security data for the given contract and evaluates it. Any
// failure is reported as ErrUnavailable.
func (s *Service) Score(ctx context.Context, addr common.Address) (*Report, error) {
	start := time.Now()
	ts, err := s.fetch(ctx, addr)
	addScoreTimeMetric(time.Since(start))
	if err != nil {
		incUnavailable()
		s.Log.Debug("security data unavailable",
			zap.Stringer("address", addr),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	r := Evaluate(*ts)
	return &r, nil
}

func (s *Service) fetch(ctx context.Context, addr common.Address) (*TokenSecurity, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	key := strings.ToLower(addr.Hex())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.requestURL(key), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if s.APIKey != "" {
		req.Header.Set("Authorization", s.APIKey)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, err
	}
	return decodeSecurity(body, key)
}

func (s *Service) requestURL(addr string) string {
	u := *s.endpoint
	u.Path = strings.TrimSuffix(u.Path, "/") + "/token_security/" + strconv.FormatUint(s.ChainID, 10)
	q := u.Query()
	q.Set("contract_addresses", addr)
	u.RawQuery = q.Encode()
	return u.String()
}

// decodeSecurity extracts the entry for the given lowercased address. Both
// wrapped ({"code":1,"result":{...}}) and bare address-keyed replies are
// accepted.
func decodeSecurity(body []byte, addr string) (*TokenSecurity, error) {
	var resp securityResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("malformed reply: %w", err)
	}
	entries := resp.Result
	if resp.Code != nil {
		if *resp.Code != codeOK {
			return nil, fmt.Errorf("service error %d: %s", *resp.Code, resp.Message)
		}
	} else if entries == nil {
		if err := json.Unmarshal(body, &entries); err != nil {
			return nil, fmt.Errorf("malformed reply: %w", err)
		}
	}
	for k, v := range entries {
		if strings.EqualFold(k, addr) {
			return &v, nil
		}
	}
	return nil, errors.New("no data for address")
}
