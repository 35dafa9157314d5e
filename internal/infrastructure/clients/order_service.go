// Package clients holds HTTP clients for collaborating services
package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/wms-platform/task-engine/internal/domain"
	apperrors "github.com/wms-platform/task-engine/pkg/errors"
	"github.com/wms-platform/task-engine/pkg/resilience"
)

// errServer marks 5xx and transport failures, the only ones retried
var errServer = errors.New("order service unavailable")

// OrderServiceConfig configures the order service client
type OrderServiceConfig struct {
	BaseURL string
	Timeout time.Duration
	Retry   *resilience.RetryConfig
}

// OrderServiceClient implements domain.OrderSource over the order
// service's REST API, behind a circuit breaker
type OrderServiceClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	retry      *resilience.RetryConfig
}

// NewOrderServiceClient creates an OrderServiceClient
func NewOrderServiceClient(config OrderServiceConfig, logger *slog.Logger) *OrderServiceClient {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retry := resilience.DefaultRetryConfig()
	if config.Retry != nil {
		copied := *config.Retry
		retry = &copied
	}
	retry.RetryableErrors = func(err error) bool { return errors.Is(err, errServer) }

	return &OrderServiceClient{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		breaker:    resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("order-service"), logger),
		retry:      retry,
	}
}

// orderList is the order service's list envelope
type orderList struct {
	Data []domain.Order `json:"data"`
}

// FindEligible lists CONFIRMED orders. The filter is also applied locally
// so a coarser server-side filter never widens the result.
func (c *OrderServiceClient) FindEligible(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	query := url.Values{}
	query.Set("status", domain.OrderStatusConfirmed)
	if filter.WarehouseID != "" {
		query.Set("warehouseId", filter.WarehouseID)
	}
	if filter.MinPriority > 0 {
		query.Set("minPriority", strconv.Itoa(filter.MinPriority))
	}
	if filter.MaxPriority > 0 {
		query.Set("maxPriority", strconv.Itoa(filter.MaxPriority))
	}
	for _, ch := range filter.Channels {
		query.Add("channel", ch)
	}
	for _, ct := range filter.CustomerTypes {
		query.Add("customerType", ct)
	}
	for _, z := range filter.Zones {
		query.Add("zone", z)
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}

	var list orderList
	if err := c.get(ctx, "/api/v1/orders?"+query.Encode(), &list); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	orders := make([]domain.Order, 0, len(list.Data))
	for _, o := range list.Data {
		if !filter.Matches(o) {
			continue
		}
		orders = append(orders, o)
		if filter.Limit > 0 && len(orders) == filter.Limit {
			break
		}
	}
	return orders, nil
}

// GetOrder returns one order or a wrapped domain.ErrNotFound
func (c *OrderServiceClient) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var order domain.Order
	if err := c.get(ctx, "/api/v1/orders/"+url.PathEscape(orderID), &order); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, orderID)
		}
		return nil, fmt.Errorf("failed to get order %s: %w", orderID, err)
	}
	return &order, nil
}

// get runs a request through retry and the breaker. A 404 is an answer,
// not a failure, so it never counts against the breaker. Outages surface
// as SERVICE_UNAVAILABLE.
func (c *OrderServiceClient) get(ctx context.Context, path string, result interface{}) error {
	notFound := false
	_, err := resilience.RetryWithResult(ctx, c.retry, func() (struct{}, error) {
		_, err := c.breaker.Execute(ctx, func() (interface{}, error) {
			err := c.doRequest(ctx, c.baseURL+path, result)
			if errors.Is(err, domain.ErrNotFound) {
				notFound = true
				return nil, nil
			}
			return nil, err
		})
		return struct{}{}, err
	})
	if err != nil {
		if errors.Is(err, errServer) || errors.Is(err, resilience.ErrCircuitOpen) {
			return apperrors.ErrServiceUnavailable("order service").Wrap(err)
		}
		return err
	}
	if notFound {
		return domain.ErrNotFound
	}
	return nil
}

// doRequest performs a GET and decodes the JSON response
func (c *OrderServiceClient) doRequest(ctx context.Context, target string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errServer, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d: %s", errServer, resp.StatusCode, string(body))
	case resp.StatusCode >= 400:
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
