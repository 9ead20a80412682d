package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/voyagekit/geotally/internal/model"
)

const (
	geocodePath      = "/geocode/json"
	placeDetailsPath = "/place/details/json"

	// Fields requested from the place-details endpoint
	placeDetailsFields = "name,formatted_address,address_components,geometry"

	// Provider responses are small JSON documents; anything larger is broken
	maxResponseBytes = 1 << 20
)

// Geocoder resolves coordinates, provider place ids and free-text addresses
// to a country/state pair. Implementations make at most one outbound call
// per invocation and never retry.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (model.ResolvedLocation, error)
	GeocodeAddress(ctx context.Context, address string) (model.ResolvedLocation, error)
	PlaceDetails(ctx context.Context, cid string) (model.ResolvedLocation, error)
}

// Client talks to the Google Maps geocoding and place-details endpoints. A
// rate limiter paces every outbound call to stay within provider quotas
// whether the call succeeds or fails.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	userAgent  string
	limiter    *rate.Limiter
	log        *zap.Logger
}

// NewClient creates a provider client from configuration
func NewClient(apiKey string, httpCfg model.HTTPConfig, rateCfg model.RateConfig, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	burst := rateCfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		httpClient: &http.Client{Timeout: httpCfg.Timeout},
		baseURL:    httpCfg.BaseURL,
		apiKey:     apiKey,
		userAgent:  httpCfg.UserAgent,
		limiter:    rate.NewLimiter(rate.Limit(rateCfg.RequestsPerSecond), burst),
		log:        log,
	}
}

// addressComponent is one element of the provider's address breakdown
type addressComponent struct {
	LongName string   `json:"long_name"`
	Types    []string `json:"types"`
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		AddressComponents []addressComponent `json:"address_components"`
	} `json:"results"`
}

type placeDetailsResponse struct {
	Status string `json:"status"`
	Result struct {
		AddressComponents []addressComponent `json:"address_components"`
	} `json:"result"`
}

// ReverseGeocode resolves a raw coordinate pair
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (model.ResolvedLocation, error) {
	params := url.Values{}
	params.Set("latlng", strconv.FormatFloat(lat, 'f', -1, 64)+","+strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("key", c.apiKey)

	var resp geocodeResponse
	if err := c.get(ctx, geocodePath, params, &resp); err != nil {
		return model.ResolvedLocation{}, err
	}
	if resp.Status != "OK" || len(resp.Results) == 0 {
		return model.ResolvedLocation{}, fmt.Errorf("geocode status: %s", resp.Status)
	}
	return locationFromComponents(resp.Results[0].AddressComponents), nil
}

// GeocodeAddress resolves a free-text address
func (c *Client) GeocodeAddress(ctx context.Context, address string) (model.ResolvedLocation, error) {
	params := url.Values{}
	params.Set("address", address)
	params.Set("key", c.apiKey)

	var resp geocodeResponse
	if err := c.get(ctx, geocodePath, params, &resp); err != nil {
		return model.ResolvedLocation{}, err
	}
	if resp.Status != "OK" || len(resp.Results) == 0 {
		return model.ResolvedLocation{}, fmt.Errorf("geocode status: %s", resp.Status)
	}
	return locationFromComponents(resp.Results[0].AddressComponents), nil
}

// PlaceDetails resolves a numeric place identifier derived from a hex place id
func (c *Client) PlaceDetails(ctx context.Context, cid string) (model.ResolvedLocation, error) {
	params := url.Values{}
	params.Set("cid", cid)
	params.Set("key", c.apiKey)
	params.Set("fields", placeDetailsFields)

	var resp placeDetailsResponse
	if err := c.get(ctx, placeDetailsPath, params, &resp); err != nil {
		return model.ResolvedLocation{}, err
	}
	if resp.Status != "OK" {
		return model.ResolvedLocation{}, fmt.Errorf("place details status: %s", resp.Status)
	}
	return locationFromComponents(resp.Result.AddressComponents), nil
}

// get performs one paced GET against the provider and decodes the JSON body
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call provider: %w", err)
	}
	defer resp.Body.Close()
	c.log.Debug("provider call", zap.String("path", path), zap.Int("status", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// locationFromComponents pulls country and administrative_area_level_1 out
// of the first result's address components. State without country is
// discarded; it is only meaningful alongside one.
func locationFromComponents(components []addressComponent) model.ResolvedLocation {
	var loc model.ResolvedLocation
	for _, component := range components {
		for _, t := range component.Types {
			switch t {
			case "country":
				name := component.LongName
				loc.Country = &name
			case "administrative_area_level_1":
				name := component.LongName
				loc.State = &name
			}
		}
	}
	if loc.Country == nil {
		loc.State = nil
	}
	return loc
}
