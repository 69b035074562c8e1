package ddns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/cloudflare/cloudflare-go"
	"github.com/go-logr/logr"
)

// DefaultAPIBaseURL is the root of the Cloudflare v4 API.
const DefaultAPIBaseURL = "https://api.cloudflare.com/client/v4"

func newCloudflareProvider(token, zoneID string) (cf *cloudflareProvider, err error) {
	if token == "" {
		return nil, errors.New("API token cannot be empty")
	}
	if zoneID == "" {
		return nil, errors.New("zone ID cannot be empty")
	}
	return &cloudflareProvider{
		token:   token,
		zoneID:  zoneID,
		baseURL: DefaultAPIBaseURL,
		logger:  logr.Discard(),
	}, nil
}

// cloudflareProvider implements ddns.Provider against a single Cloudflare zone.
//
// It should be constructed using UsingCloudflare.
type cloudflareProvider struct {
	token      string
	zoneID     string
	baseURL    string
	httpClient *http.Client // nil means http.DefaultClient
	logger     logr.Logger
}

func (cf *cloudflareProvider) SetHTTPClient(c *http.Client) { cf.httpClient = c }
func (cf *cloudflareProvider) SetLogger(l logr.Logger)      { cf.logger = l }

// api returns a client for a single call.
// Retries are disabled; a failed cycle is retried by the next one.
func (cf *cloudflareProvider) api() (*cloudflare.API, error) {
	opts := []cloudflare.Option{
		cloudflare.BaseURL(strings.TrimRight(cf.baseURL, "/")),
		cloudflare.UsingRetryPolicy(0, 0, 0),
	}
	if cf.httpClient != nil {
		opts = append(opts, cloudflare.HTTPClient(cf.httpClient))
	}
	api, err := cloudflare.NewWithAPIToken(cf.token, opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating cloudflare api client: %w", err)
	}
	return api, nil
}

func (cf *cloudflareProvider) recordsPath() string {
	return "/zones/" + url.PathEscape(cf.zoneID) + "/dns_records"
}

// Lookup implements ddns.Provider.
func (cf *cloudflareProvider) Lookup(ctx context.Context, domain string) (Record, error) {
	cf.logger.V(1).Info("listing DNS records", "zone", cf.zoneID)
	rec, err := cf.lookup(ctx, domain)
	if err != nil {
		return Record{}, &LookupError{Domain: domain, Err: err}
	}
	cf.logger.V(1).Info("found DNS record", "domain", domain, "id", rec.ID, "ip", rec.IP)
	return rec, nil
}

func (cf *cloudflareProvider) lookup(ctx context.Context, domain string) (Record, error) {
	api, err := cf.api()
	if err != nil {
		return Record{}, err
	}
	result, err := api.Raw(ctx, http.MethodGet, cf.recordsPath(), nil, nil)
	if err != nil {
		return Record{}, rawError(err)
	}
	return findRecord(result, domain)
}

// rawError marks undecodable response bodies as ErrMalformedResponse.
func rawError(err error) error {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return fmt.Errorf("%w: %s", ErrMalformedResponse, err)
	}
	return err
}

// findRecord scans the "result" array of a list response and returns the first entry named domain.
func findRecord(result []byte, domain string) (Record, error) {
	if len(result) == 0 {
		return Record{}, fmt.Errorf("%w: missing \"result\"", ErrMalformedResponse)
	}
	_, typ, _, err := jsonparser.Get(result)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %s", ErrMalformedResponse, err)
	}
	if typ != jsonparser.Array {
		return Record{}, fmt.Errorf("%w: \"result\" is %s, not an array", ErrMalformedResponse, typ)
	}

	var (
		rec    Record
		found  bool
		recErr error
	)
	_, err = jsonparser.ArrayEach(result, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
		if found || dataType != jsonparser.Object {
			return
		}
		if name, err := jsonparser.GetString(value, "name"); err != nil || name != domain {
			return
		}
		found = true
		var e error
		if rec.ID, e = jsonparser.GetString(value, "id"); e != nil {
			recErr = fmt.Errorf("%w: id: %s", ErrMalformedRecord, e)
			return
		}
		if rec.IP, e = jsonparser.GetString(value, "content"); e != nil {
			recErr = fmt.Errorf("%w: content: %s", ErrMalformedRecord, e)
		}
	})
	if err != nil {
		return Record{}, fmt.Errorf("%w: %s", ErrMalformedResponse, err)
	}
	if !found {
		return Record{}, ErrRecordNotFound
	}
	if recErr != nil {
		return Record{}, recErr
	}
	return rec, nil
}

type updateRequest struct {
	Content string `json:"content"`
	Name    string `json:"name"`
	Type    string `json:"type"`
}

// Update implements ddns.Provider.
//
// Only a 2xx response counts as a successful write.
func (cf *cloudflareProvider) Update(ctx context.Context, id, domain, ip string) error {
	if err := cf.update(ctx, id, domain, ip); err != nil {
		return &UpdateError{Domain: domain, ID: id, Err: err}
	}
	return nil
}

func (cf *cloudflareProvider) update(ctx context.Context, id, domain, ip string) error {
	api, err := cf.api()
	if err != nil {
		return err
	}
	cf.logger.V(1).Info("updating DNS record", "zone", cf.zoneID, "id", id, "ip", ip)
	_, err = api.Raw(ctx, http.MethodPut, cf.recordsPath()+"/"+url.PathEscape(id),
		updateRequest{Content: ip, Name: domain, Type: "A"}, nil)
	return err
}

// Verify checks that the token is active and that domain belongs to the configured zone.
func (cf *cloudflareProvider) Verify(ctx context.Context, domain string) error {
	api, err := cf.api()
	if err != nil {
		return err
	}

	cf.logger.V(1).Info("verifying token")
	result, err := api.VerifyAPIToken(ctx)
	if err != nil {
		return fmt.Errorf("unable to verify api token: %w", err)
	}
	if result.Status != "active" {
		return fmt.Errorf("expected api token status to be \"active\"; got \"%s\"", result.Status)
	}

	zone, err := api.ZoneDetails(ctx, cf.zoneID)
	if err != nil {
		return fmt.Errorf("unable to get zone %s: %w", cf.zoneID, err)
	}
	if !inZone(domain, zone.Name) {
		return fmt.Errorf("domain \"%s\" is not part of zone \"%s\"", domain, zone.Name)
	}
	cf.logger.V(1).Info("token verified", "zone", zone.Name)
	return nil
}

func inZone(domain, zone string) bool {
	domain = strings.TrimSuffix(strings.ToLower(domain), ".")
	zone = strings.TrimSuffix(strings.ToLower(zone), ".")
	return zone != "" && (domain == zone || strings.HasSuffix(domain, "."+zone))
}
