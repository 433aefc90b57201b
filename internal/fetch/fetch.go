// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package fetch retrieves and analyses one external brand source: an
// existing website, an Instagram profile, a competitor site or a logo.
// Every failure is reported as a *Failure value so callers can always
// continue with the remaining sources.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"syscall"
	"time"

	"sitesmith/internal/brand"
)

// Kind classifies a failed fetch.
type Kind string

const (
	Unreachable Kind = "unreachable"
	ParseError  Kind = "parse-error"
	RateLimited Kind = "rate-limited"
	Timeout     Kind = "timeout"
)

// Failure is the only error type a Fetcher returns.
type Failure struct {
	Kind   Kind
	Source brand.SourceKind
	Ref    string
	Err    error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("fetch %s %s: %s: %v", f.Source, f.Ref, f.Kind, f.Err)
	}
	return fmt.Sprintf("fetch %s %s: %s", f.Source, f.Ref, f.Kind)
}

func (f *Failure) Unwrap() error { return f.Err }

// KindOf returns the failure kind of err, or ParseError for errors that
// did not come from a fetcher.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ParseError
}

// Fetcher produces an analysis for one reference (URL or handle).
type Fetcher interface {
	Fetch(ctx context.Context, ref string) (brand.SourceAnalysis, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, ref string) (brand.SourceAnalysis, error)

func (f FetcherFunc) Fetch(ctx context.Context, ref string) (brand.SourceAnalysis, error) {
	return f(ctx, ref)
}

const (
	userAgent       = "Mozilla/5.0 (compatible; sitesmith/1.0; +https://sitesmith.app/bot)"
	maxPageBytes    = 3 << 20
	maxImageBytes   = 5 << 20
	defaultClientTO = 30 * time.Second
)

// NewHTTPClient returns the client shared by the fetchers. The timeout is a
// backstop; callers bound every request with their context. Unless
// allowPrivate is set the client refuses to connect to loopback, private,
// link-local and other non-public addresses, after DNS resolution and on
// every redirect hop.
func NewHTTPClient(allowPrivate bool) *http.Client {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	if !allowPrivate {
		dialer.Control = refusePrivate
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	if !allowPrivate {
		transport.Proxy = nil
	}
	return &http.Client{
		Timeout:   defaultClientTO,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return errors.New("too many redirects")
			}
			return nil
		},
	}
}

// errPrivateAddress is returned by the dialer for non-public targets.
var errPrivateAddress = errors.New("address is not publicly routable")

// sharedAddressSpace is the carrier-grade NAT range (RFC 6598).
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

func refusePrivate(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("dial %s: %w", address, err)
	}
	if !IsPublicAddr(ip) {
		return fmt.Errorf("dial %s: %w", address, errPrivateAddress)
	}
	return nil
}

// IsPublicAddr reports whether ip is a globally routable unicast address.
func IsPublicAddr(ip netip.Addr) bool {
	ip = ip.Unmap()
	switch {
	case !ip.IsValid(),
		ip.IsUnspecified(),
		ip.IsLoopback(),
		ip.IsPrivate(),
		ip.IsLinkLocalUnicast(),
		ip.IsLinkLocalMulticast(),
		ip.IsInterfaceLocalMulticast(),
		ip.IsMulticast(),
		sharedAddressSpace.Contains(ip):
		return false
	}
	return true
}

// page is a fetched response body.
type page struct {
	URL         string
	ContentType string
	Body        []byte
}

// get performs a read-only GET and classifies every failure.
func get(ctx context.Context, client *http.Client, source brand.SourceKind, rawURL, accept string, limit int64) (*page, error) {
	fail := func(kind Kind, err error) (*page, error) {
		return nil, &Failure{Kind: kind, Source: source, Ref: rawURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fail(Unreachable, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en;q=0.9,*;q=0.5")

	resp, err := client.Do(req)
	if err != nil {
		return fail(classifyTransport(ctx, err), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fail(RateLimited, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return fail(Unreachable, fmt.Errorf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return fail(classifyTransport(ctx, err), fmt.Errorf("read body: %w", err))
	}
	return &page{
		URL:         resp.Request.URL.String(),
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// classifyTransport maps a transport error to a failure kind. A cancelled
// or expired context is always a timeout.
func classifyTransport(ctx context.Context, err error) Kind {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Timeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return Timeout
	}
	return Unreachable
}

// contextFailure converts a finished context into a timeout failure.
func contextFailure(ctx context.Context, source brand.SourceKind, ref string) error {
	return &Failure{Kind: Timeout, Source: source, Ref: ref, Err: ctx.Err()}
}

func isHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return ct == "" || strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}
