// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package dial

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

const (
	maxBodyBytes   = 256 * 1024
	defaultTimeout = 10 * time.Second
	// ServiceNamespace is the XML namespace of DIAL application resources.
	ServiceNamespace = "urn:dial-multiscreen-org:schemas:dial"
)

// Client queries one sink's DIAL REST service.
type Client struct {
	base    string
	http    *http.Client
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default traced HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithRateLimit bounds the request rate towards the sink. A zero limit
// disables limiting.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(cl *Client) {
		if r <= 0 {
			cl.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		cl.limiter = rate.NewLimiter(r, burst)
	}
}

// New creates a client for the given DIAL application URL.
func New(applicationURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(applicationURL, "/"),
		http: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type serviceXML struct {
	XMLName xml.Name `xml:"service"`
	Name    string   `xml:"name"`
	Options *struct {
		AllowStop string `xml:"allowStop,attr"`
	} `xml:"options"`
	State          string `xml:"state"`
	AdditionalData *struct {
		Items []struct {
			XMLName xml.Name
			Value   string `xml:",chardata"`
		} `xml:",any"`
	} `xml:"additionalData"`
}

// GetAppInfo fetches GET {applicationURL}/{appName}. A 404 yields an error
// matching ErrNotFound.
func (c *Client) GetAppInfo(ctx context.Context, appName string) (*AppInfo, error) {
	const op = "get_app_info"
	if c.base == "" {
		return nil, &DIALError{Sentinel: ErrNoApplicationURL, Operation: op}
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, wrapError(op, err, 0)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/"+url.PathEscape(appName), nil)
	if err != nil {
		return nil, &DIALError{Sentinel: ErrBadResponse, Operation: op, Err: err}
	}
	req.Header.Set("Accept", "application/xml, text/xml")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, wrapError(op, err, 0)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxBodyBytes))
		return nil, wrapError(op, nil, res.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes+1))
	if err != nil {
		return nil, wrapError(op, err, 0)
	}
	if len(body) > maxBodyBytes {
		return nil, &DIALError{Sentinel: ErrBadResponse, Operation: op, Status: res.StatusCode,
			Err: fmt.Errorf("body exceeds %d bytes", maxBodyBytes)}
	}

	info, err := ParseAppInfo(body)
	if err != nil {
		return nil, &DIALError{Sentinel: ErrBadResponse, Operation: op, Status: res.StatusCode, Err: err}
	}
	return info, nil
}

// ParseAppInfo decodes a DIAL <service> document. Name and state are mandatory.
func ParseAppInfo(body []byte) (*AppInfo, error) {
	var doc serviceXML
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode service xml: %w", err)
	}
	name := strings.TrimSpace(doc.Name)
	if name == "" {
		return nil, fmt.Errorf("missing <name>")
	}
	if strings.TrimSpace(doc.State) == "" {
		return nil, fmt.Errorf("missing <state>")
	}

	state, installURL := parseAppState(doc.State)
	info := &AppInfo{
		Name:       name,
		State:      state,
		InstallURL: installURL,
		ExtraData:  map[string]string{},
	}
	if doc.Options != nil {
		info.AllowStop = strings.EqualFold(strings.TrimSpace(doc.Options.AllowStop), "true")
	}
	if doc.AdditionalData != nil {
		for _, item := range doc.AdditionalData.Items {
			info.ExtraData[item.XMLName.Local] = strings.TrimSpace(item.Value)
		}
	}
	return info, nil
}
