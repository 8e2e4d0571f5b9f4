package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"bundlesync/pkg/config"
	"bundlesync/pkg/errutil"
	"bundlesync/services/sync"

	"go.uber.org/zap"
)

// Client talks to the commerce platform admin API: discount resources,
// metafield slots and product lookups. All calls honour the caller's
// context; the embedded http.Client timeout is a safety net only.
type Client struct {
	http  *http.Client
	base  string
	token string
	log   *zap.Logger
}

func NewClient(cfg *config.Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		http:  &http.Client{Timeout: cfg.Platform.RequestTimeout},
		base:  strings.TrimRight(cfg.Platform.APIBase, "/"),
		token: cfg.Platform.AccessToken,
		log:   log,
	}
}

// ---------------------------------------------------------------
// DiscountAPI
// ---------------------------------------------------------------

type discountResponse struct {
	ID string `json:"id"`
}

func (c *Client) CreateDiscount(ctx context.Context, in sync.DiscountInput) (string, error) {
	var resp discountResponse
	if err := c.do(ctx, http.MethodPost, "/discounts", in, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", errutil.BadGateway("discount create returned no id")
	}
	return resp.ID, nil
}

func (c *Client) UpdateDiscount(ctx context.Context, id string, in sync.DiscountInput) error {
	return c.do(ctx, http.MethodPut, "/discounts/"+url.PathEscape(id), in, nil)
}

func (c *Client) DeleteDiscount(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/discounts/"+url.PathEscape(id), nil, nil)
}

// ---------------------------------------------------------------
// MetafieldAPI
// ---------------------------------------------------------------

type metafieldRequest struct {
	OwnerID   string `json:"ownerId"`
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Type      string `json:"type"`
	Value     string `json:"value"`
}

func (c *Client) WriteMetafield(ctx context.Context, ownerID, namespace, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errutil.Internal("failed to encode metafield value", errutil.WithErr(err))
	}

	return c.do(ctx, http.MethodPut, "/metafields", metafieldRequest{
		OwnerID:   ownerID,
		Namespace: namespace,
		Key:       key,
		Type:      "json",
		Value:     string(raw),
	}, nil)
}

func (c *Client) DeleteMetafield(ctx context.Context, ownerID, namespace, key string) error {
	q := url.Values{}
	q.Set("owner_id", ownerID)
	q.Set("namespace", namespace)
	q.Set("key", key)
	return c.do(ctx, http.MethodDelete, "/metafields?"+q.Encode(), nil, nil)
}

// ---------------------------------------------------------------
// HandleResolver
// ---------------------------------------------------------------

type handlesResponse struct {
	Handles map[string]string `json:"handles"`
}

func (c *Client) Handles(ctx context.Context, productIDs []string) (map[string]string, error) {
	if len(productIDs) == 0 {
		return map[string]string{}, nil
	}

	q := url.Values{}
	q.Set("ids", strings.Join(productIDs, ","))

	var resp handlesResponse
	if err := c.do(ctx, http.MethodGet, "/products/handles?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Handles, nil
}

// ---------------------------------------------------------------

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return errutil.Internal("failed to encode request body", errutil.WithErr(err))
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return errutil.Internal("failed to build platform request", errutil.WithErr(err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Access-Token", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return errutil.BadGateway("platform request failed", errutil.WithErr(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn("platform request rejected",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return errutil.BadGateway(
			fmt.Sprintf("platform returned %d: %s", resp.StatusCode, string(snippet)),
		)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errutil.BadGateway("failed to decode platform response", errutil.WithErr(err))
		}
	}
	return nil
}
