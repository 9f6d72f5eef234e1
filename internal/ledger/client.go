package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	AddressPrefix  = "0x"
	PageSize       = 50
	DefaultTimeout = 30 * time.Second

	methodOwnedObjects  = "suix_getOwnedObjects"
	methodDynamicFields = "suix_getDynamicFields"
	methodGetObject     = "sui_getObject"
)

var fullnodeURLs = map[string]string{
	"mainnet":  "https://fullnode.mainnet.sui.io:443",
	"testnet":  "https://fullnode.testnet.sui.io:443",
	"devnet":   "https://fullnode.devnet.sui.io:443",
	"localnet": "http://127.0.0.1:9000",
}

// FullnodeURL returns the public full node endpoint of a network.
func FullnodeURL(network string) (string, bool) {
	u, ok := fullnodeURLs[strings.ToLower(network)]
	return u, ok
}

// Config configures a Client
type Config struct {
	Endpoint  string
	Timeout   time.Duration
	RateLimit float64 // requests per second, <= 0 disables pacing
	Burst     int
}

// Client reads objects from a full node over JSON-RPC. One Client shares a
// single connection pool across all calls and is safe for concurrent use.
type Client struct {
	endpoint string
	http     *resty.Client
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewClient creates a new ledger client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		endpoint: cfg.Endpoint,
		http:     resty.New().SetTimeout(cfg.Timeout),
		limiter:  rate.NewLimiter(limit, cfg.Burst),
		logger:   logger.Named("ledger"),
	}
}

type objectOptions struct {
	ShowType    bool `json:"showType"`
	ShowContent bool `json:"showContent"`
}

type structTypeFilter struct {
	StructType string `json:"StructType"`
}

type ownedObjectsQuery struct {
	Filter struct {
		MatchAny []structTypeFilter `json:"MatchAny"`
	} `json:"filter"`
	Options objectOptions `json:"options"`
}

func validateID(field, value string) error {
	if !strings.HasPrefix(value, AddressPrefix) {
		return &InvalidInputError{Field: field, Value: value}
	}
	return nil
}

// OwnedObjectsPage fetches one page of objects owned by address whose type
// matches typeTag. A nil cursor requests the first page.
func (c *Client) OwnedObjectsPage(ctx context.Context, address, typeTag string, cursor *string) (*Page[OwnedObject], error) {
	if err := validateID("address", address); err != nil {
		return nil, err
	}

	var q ownedObjectsQuery
	q.Filter.MatchAny = []structTypeFilter{{StructType: typeTag}}
	q.Options = objectOptions{ShowType: true, ShowContent: true}

	var page Page[OwnedObject]
	if err := c.call(ctx, methodOwnedObjects, []any{address, q, cursor, PageSize}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListOwnedByType returns every object owned by address matching typeTag,
// following the cursor until the node reports no further pages.
func (c *Client) ListOwnedByType(ctx context.Context, address, typeTag string) ([]OwnedObject, error) {
	if err := validateID("address", address); err != nil {
		return nil, err
	}
	return drain(ctx, func(ctx context.Context, cursor *string) (*Page[OwnedObject], error) {
		return c.OwnedObjectsPage(ctx, address, typeTag, cursor)
	})
}

// DynamicFieldsPage fetches one page of dynamic fields of parentID.
func (c *Client) DynamicFieldsPage(ctx context.Context, parentID string, cursor *string) (*Page[DynamicField], error) {
	if err := validateID("parent id", parentID); err != nil {
		return nil, err
	}

	var page Page[DynamicField]
	if err := c.call(ctx, methodDynamicFields, []any{parentID, cursor, PageSize}, &page); err != nil {
		return nil, err
	}
	for i := range page.Data {
		page.Data[i].ParentID = parentID
	}
	return &page, nil
}

// ListDynamicFields returns every dynamic field of parentID, each stamped
// with ParentID.
func (c *Client) ListDynamicFields(ctx context.Context, parentID string) ([]DynamicField, error) {
	if err := validateID("parent id", parentID); err != nil {
		return nil, err
	}
	return drain(ctx, func(ctx context.Context, cursor *string) (*Page[DynamicField], error) {
		return c.DynamicFieldsPage(ctx, parentID, cursor)
	})
}

// GetObject fetches the full content of objectID. It returns nil and no
// error when the node has no data for the id.
func (c *Client) GetObject(ctx context.Context, objectID, parentID string) (*ObjectDetail, error) {
	if err := validateID("object id", objectID); err != nil {
		return nil, err
	}

	var resp objectResponse
	opts := objectOptions{ShowType: true, ShowContent: true}
	if err := c.call(ctx, methodGetObject, []any{objectID, opts}, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		if resp.Error != nil {
			c.logger.Debug("object has no data",
				zap.String("object_id", objectID),
				zap.String("code", resp.Error.Code),
			)
		}
		return nil, nil
	}
	return &ObjectDetail{ObjectData: *resp.Data, ParentID: parentID}, nil
}

// drain follows cursors until the last page and concatenates pages in order.
// A page that claims more results without a cursor ends the walk, since
// repeating the request would return the first page again.
func drain[T any](ctx context.Context, fetch func(ctx context.Context, cursor *string) (*Page[T], error)) ([]T, error) {
	all := make([]T, 0)
	var cursor *string
	for {
		page, err := fetch(ctx, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Data...)
		if !page.HasNextPage || page.NextCursor == nil {
			return all, nil
		}
		cursor = page.NextCursor
	}
}
