package amazon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-spapi-push/core"
)

const (
	listingsAPIVersion     = "2021-08-01"
	listingsIssueLocale    = "en_US"
	listingsProductType    = "PRODUCT"
	listingsMaxPageSize    = 20
	listingsRequestTimeout = 60 * time.Second
	maxListingsResponse    = 4 << 20 // 4 MiB
)

// ListingsClient is the SP-API Listings Items client. Every request is
// SigV4 signed and carries the LWA access token minted for the call.
type ListingsClient struct {
	endpoint   string
	signer     core.RequestSigner
	httpClient core.HTTPDoer
}

func NewListingsClient(cfg core.Config, signer core.RequestSigner, httpClient core.HTTPDoer) (*ListingsClient, error) {
	if signer == nil {
		return nil, core.NewConfigurationError("amazon: request signer is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: listingsRequestTimeout}
	}
	return &ListingsClient{
		endpoint:   ResolveEndpoint(cfg),
		signer:     signer,
		httpClient: httpClient,
	}, nil
}

// BuildListingImageAttributes maps ordered image URLs onto Amazon's
// listing image slots: the first URL takes the main image locator, the
// rest take the numbered other-image locators.
func BuildListingImageAttributes(marketplaceID string, imageURLs []string) map[string]any {
	attributes := map[string]any{}
	for i, imageURL := range imageURLs {
		if i >= core.MaxListingImageSlots {
			break
		}
		trimmed := strings.TrimSpace(imageURL)
		if trimmed == "" {
			continue
		}
		name := "main_product_image_locator"
		if i > 0 {
			name = fmt.Sprintf("other_product_image_locator_%d", i)
		}
		value := map[string]any{"media_location": trimmed}
		if strings.TrimSpace(marketplaceID) != "" {
			value["marketplace_id"] = strings.TrimSpace(marketplaceID)
		}
		attributes[name] = []any{value}
	}
	return attributes
}

// PatchListingImages issues a JSON Patch against the listing's image
// attributes and returns Amazon's submission id.
func (c *ListingsClient) PatchListingImages(ctx context.Context, in core.PatchListingImagesInput) (core.PatchListingImagesResult, error) {
	if c == nil || c.httpClient == nil || c.signer == nil {
		return core.PatchListingImagesResult{}, core.NewConfigurationError("amazon: listings client is not configured")
	}
	sellerID := strings.TrimSpace(in.SellerID)
	sku := strings.TrimSpace(in.SKU)
	if sellerID == "" || sku == "" {
		return core.PatchListingImagesResult{}, core.NewBadInputError("amazon: seller id and sku are required")
	}
	if len(in.ImageURLs) == 0 {
		return core.PatchListingImagesResult{}, core.NewBadInputError("amazon: at least one image url is required")
	}

	attributes := BuildListingImageAttributes(in.MarketplaceID, in.ImageURLs)
	patches := make([]map[string]any, 0, len(attributes))
	for i := 0; i < len(in.ImageURLs) && i < core.MaxListingImageSlots; i++ {
		name := "main_product_image_locator"
		if i > 0 {
			name = fmt.Sprintf("other_product_image_locator_%d", i)
		}
		value, ok := attributes[name]
		if !ok {
			continue
		}
		patches = append(patches, map[string]any{
			"op":    "replace",
			"path":  "/attributes/" + name,
			"value": value,
		})
	}

	payload, err := json.Marshal(map[string]any{
		"productType": listingsProductType,
		"patches":     patches,
	})
	if err != nil {
		return core.PatchListingImagesResult{}, fmt.Errorf("amazon: encode patch payload: %w", err)
	}

	endpoint := c.itemURL(sellerID, sku)
	query := url.Values{}
	if marketplaceID := strings.TrimSpace(in.MarketplaceID); marketplaceID != "" {
		query.Set("marketplaceIds", marketplaceID)
	}
	query.Set("issueLocale", listingsIssueLocale)

	response, statusCode, err := c.do(ctx, http.MethodPatch, endpoint, query, payload, in.AccessToken)
	if err != nil {
		return core.PatchListingImagesResult{}, err
	}

	return core.PatchListingImagesResult{
		StatusCode:   statusCode,
		SubmissionID: extractSubmissionID(response),
		Response:     response,
	}, nil
}

// SearchListingSkus pages through the seller's catalog. Rows the API
// returns without a sku are dropped, duplicate skus keep their first
// occurrence.
func (c *ListingsClient) SearchListingSkus(ctx context.Context, in core.SearchListingSkusInput) (core.SearchListingSkusResult, error) {
	if c == nil || c.httpClient == nil || c.signer == nil {
		return core.SearchListingSkusResult{}, core.NewConfigurationError("amazon: listings client is not configured")
	}
	sellerID := strings.TrimSpace(in.SellerID)
	if sellerID == "" {
		return core.SearchListingSkusResult{}, core.NewBadInputError("amazon: seller id is required")
	}

	query := url.Values{}
	if marketplaceID := strings.TrimSpace(in.MarketplaceID); marketplaceID != "" {
		query.Set("marketplaceIds", marketplaceID)
	}
	query.Set("includedData", "summaries")
	pageSize := in.PageSize
	if pageSize <= 0 || pageSize > listingsMaxPageSize {
		pageSize = listingsMaxPageSize
	}
	query.Set("pageSize", strconv.Itoa(pageSize))
	if keywords := strings.TrimSpace(in.Query); keywords != "" {
		query.Set("keywords", keywords)
	}
	if token := strings.TrimSpace(in.PageToken); token != "" {
		query.Set("pageToken", token)
	}

	endpoint := c.endpoint + "/listings/" + listingsAPIVersion + "/items/" + url.PathEscape(sellerID)
	response, _, err := c.do(ctx, http.MethodGet, endpoint, query, nil, in.AccessToken)
	if err != nil {
		return core.SearchListingSkusResult{}, err
	}

	return core.SearchListingSkusResult{
		Listings:  normalizeListingItems(response),
		NextToken: extractNextToken(response),
	}, nil
}

func (c *ListingsClient) itemURL(sellerID, sku string) string {
	return c.endpoint + "/listings/" + listingsAPIVersion + "/items/" +
		url.PathEscape(sellerID) + "/" + url.PathEscape(sku)
}

func (c *ListingsClient) do(
	ctx context.Context,
	method string,
	endpoint string,
	query url.Values,
	payload []byte,
	accessToken string,
) (map[string]any, int, error) {
	requestURL := endpoint
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var body io.Reader
	if len(payload) > 0 {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return nil, 0, fmt.Errorf("amazon: build listings request: %w", err)
	}
	if len(payload) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if err := c.signer.Sign(ctx, req, accessToken); err != nil {
		return nil, 0, err
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, core.NewProviderError(0, "request failed: "+err.Error())
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxListingsResponse))
	if err != nil {
		return nil, res.StatusCode, core.NewProviderError(res.StatusCode, "read response: "+err.Error())
	}
	if res.StatusCode >= http.StatusBadRequest {
		return nil, res.StatusCode, core.NewProviderError(res.StatusCode, string(raw))
	}

	response := map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &response); err != nil {
			return nil, res.StatusCode, core.NewProviderError(res.StatusCode, "malformed response body: "+err.Error())
		}
	}
	return response, res.StatusCode, nil
}

// extractSubmissionID tolerates the casing drift seen across SP-API
// responses and sandbox payloads.
func extractSubmissionID(response map[string]any) string {
	for _, key := range []string{"submissionId", "submission_id"} {
		if value, ok := response[key].(string); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	if payload, ok := response["payload"].(map[string]any); ok {
		if value, ok := payload["submissionId"].(string); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func extractNextToken(response map[string]any) string {
	pagination, ok := response["pagination"].(map[string]any)
	if !ok {
		return ""
	}
	token, _ := pagination["nextToken"].(string)
	return strings.TrimSpace(token)
}

func normalizeListingItems(response map[string]any) []core.ListingSummary {
	rawItems, ok := response["items"].([]any)
	if !ok {
		return []core.ListingSummary{}
	}

	listings := make([]core.ListingSummary, 0, len(rawItems))
	seen := map[string]struct{}{}
	for _, rawItem := range rawItems {
		item, ok := rawItem.(map[string]any)
		if !ok {
			continue
		}
		sku, _ := item["sku"].(string)
		sku = strings.TrimSpace(sku)
		if sku == "" {
			continue
		}
		if _, duplicate := seen[sku]; duplicate {
			continue
		}
		seen[sku] = struct{}{}

		summary := core.ListingSummary{SKU: sku}
		if summaries, ok := item["summaries"].([]any); ok && len(summaries) > 0 {
			if first, ok := summaries[0].(map[string]any); ok {
				if asin, ok := first["asin"].(string); ok {
					summary.ASIN = strings.TrimSpace(asin)
				}
				if title, ok := first["itemName"].(string); ok {
					summary.Title = strings.TrimSpace(title)
				}
				summary.Status = firstListingStatus(first["status"])
			}
		}
		listings = append(listings, summary)
	}
	return listings
}

// firstListingStatus handles both the documented []string shape and the
// bare string some responses carry.
func firstListingStatus(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case []any:
		if len(typed) == 0 {
			return ""
		}
		status, _ := typed[0].(string)
		return strings.TrimSpace(status)
	default:
		return ""
	}
}

var _ core.ListingPublisher = (*ListingsClient)(nil)
