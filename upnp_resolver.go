package ddns

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
)

// DefaultRouterURL is the WANIPConnection control endpoint of a FRITZ!Box.
const DefaultRouterURL = "http://fritz.box:49000/igdupnp/control/WANIPConn1"

const (
	getExternalIPAction = "urn:schemas-upnp-org:service:WANIPConnection:1#GetExternalIPAddress"
	getExternalIPBody   = "<?xml version='1.0' encoding='utf-8'?> " +
		"<s:Envelope s:encodingStyle='http://schemas.xmlsoap.org/soap/encoding/' xmlns:s='http://schemas.xmlsoap.org/soap/envelope/'> " +
		"<s:Body> <u:GetExternalIPAddress xmlns:u='urn:schemas-upnp-org:service:WANIPConnection:1' /> </s:Body> " +
		"</s:Envelope>"
)

var dottedQuad = regexp.MustCompile(`(?:[0-9]{1,3}\.){3}[0-9]{1,3}`)

// UPnPResolver constructs a resolver that asks the internet gateway at controlURL for its external IP address.
//
// The gateway must answer the GetExternalIPAddress SOAP action with status "200 OK".
// The response is not parsed as XML;
// the first dotted-quad found anywhere in the body is taken as the address,
// since NewExternalIPAddress is the only address-shaped element in that response.
//
// An empty controlURL selects DefaultRouterURL.
func UPnPResolver(controlURL string) Resolver {
	if controlURL == "" {
		controlURL = DefaultRouterURL
	}
	return &upnpResolver{controlURL: controlURL}
}

type upnpResolver struct {
	httpClient *http.Client
	controlURL string
}

// SetHTTPClient replaces the client used for requests to the gateway.
func (ur *upnpResolver) SetHTTPClient(c *http.Client) {
	ur.httpClient = c
}

// Resolve implements ddns.Resolver.
func (ur *upnpResolver) Resolve(ctx context.Context) (string, error) {
	ip, err := ur.lookup(ctx)
	if err != nil {
		return "", &DiscoveryError{Err: err}
	}
	return ip, nil
}

func (ur *upnpResolver) lookup(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ur.controlURL, strings.NewReader(getExternalIPBody))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SoapAction", getExternalIPAction)

	httpclient := ur.httpClient
	if httpclient == nil {
		httpclient = &http.Client{}
	}

	resp, err := httpclient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response body: %w", err)
	}
	ip, ok := findDottedQuad(string(body))
	if !ok {
		return "", ErrNoAddress
	}
	return ip, nil
}

// findDottedQuad returns the first dotted-quad substring of s.
// Octets are not range checked.
func findDottedQuad(s string) (string, bool) {
	m := dottedQuad.FindString(s)
	return m, m != ""
}
