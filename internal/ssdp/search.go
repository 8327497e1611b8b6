// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package ssdp finds DIAL sinks on the local network.
package ssdp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/ipv4"
)

const (
	// MulticastAddr is the SSDP IPv4 multicast group.
	MulticastAddr = "239.255.255.250:1900"
	// DIALSearchTarget is the DIAL service type.
	DIALSearchTarget = "urn:dial-multiscreen-org:service:dial:1"

	defaultMX     = 2
	defaultWindow = 3 * time.Second
	maxDatagram   = 8192
)

var (
	ErrBadResponse = errors.New("ssdp: malformed search response")
	ErrNoLocation  = errors.New("ssdp: response has no LOCATION")
)

// SearchOptions tune one M-SEARCH round.
type SearchOptions struct {
	SearchTarget string
	// MX is the maximum response delay in seconds advertised to devices.
	MX int
	// Window is how long responses are collected.
	Window time.Duration
	// Interface selects the outgoing multicast interface; nil uses the default.
	Interface *net.Interface
	// TTL is the multicast hop limit; zero keeps the system default.
	TTL int
	// Target overrides the destination address, mainly for tests.
	Target string
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.SearchTarget == "" {
		o.SearchTarget = DIALSearchTarget
	}
	if o.MX <= 0 {
		o.MX = defaultMX
	}
	if o.Window <= 0 {
		o.Window = defaultWindow
	}
	if o.Target == "" {
		o.Target = MulticastAddr
	}
	return o
}

// Response is one parsed search answer.
type Response struct {
	Location string
	USN      string
	ST       string
	Server   string
	MaxAge   time.Duration
	From     string
}

// Search multicasts an M-SEARCH and collects unique responses (by USN, or
// LOCATION when USN is missing) until the window closes or ctx ends.
func Search(ctx context.Context, opts SearchOptions) ([]Response, error) {
	opts = opts.withDefaults()

	dst, err := net.ResolveUDPAddr("udp4", opts.Target)
	if err != nil {
		return nil, fmt.Errorf("ssdp: resolve %s: %w", opts.Target, err)
	}
	conn, err := net.ListenPacket("udp4", "0.0.0.0:0")
	if err != nil {
		return nil, fmt.Errorf("ssdp: listen: %w", err)
	}
	defer conn.Close()

	pc := ipv4.NewPacketConn(conn)
	if opts.TTL > 0 {
		if err := pc.SetMulticastTTL(opts.TTL); err != nil {
			return nil, fmt.Errorf("ssdp: set multicast ttl: %w", err)
		}
	}
	if opts.Interface != nil {
		if err := pc.SetMulticastInterface(opts.Interface); err != nil {
			return nil, fmt.Errorf("ssdp: set multicast interface %s: %w", opts.Interface.Name, err)
		}
	}

	if _, err := pc.WriteTo(buildSearchRequest(opts.SearchTarget, opts.MX), nil, dst); err != nil {
		return nil, fmt.Errorf("ssdp: send search: %w", err)
	}

	deadline := time.Now().Add(opts.Window)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("ssdp: set deadline: %w", err)
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Now()) })
	defer stop()

	seen := make(map[string]struct{})
	var out []Response
	buf := make([]byte, maxDatagram)
	for {
		n, _, from, err := pc.ReadFrom(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				break
			}
			return out, fmt.Errorf("ssdp: read: %w", err)
		}
		res, err := ParseResponse(buf[:n])
		if err != nil {
			continue
		}
		if from != nil {
			res.From = from.String()
		}
		key := res.USN
		if key == "" {
			key = res.Location
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, res)
	}
	return out, ctx.Err()
}

func buildSearchRequest(st string, mx int) []byte {
	var b bytes.Buffer
	b.WriteString("M-SEARCH * HTTP/1.1\r\n")
	b.WriteString("HOST: " + MulticastAddr + "\r\n")
	b.WriteString("MAN: \"ssdp:discover\"\r\n")
	b.WriteString("MX: " + strconv.Itoa(mx) + "\r\n")
	b.WriteString("ST: " + st + "\r\n")
	b.WriteString("\r\n")
	return b.Bytes()
}

// ParseResponse decodes an HTTP-over-UDP search response.
func ParseResponse(datagram []byte) (Response, error) {
	res, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(datagram)), nil)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("%w: status %d", ErrBadResponse, res.StatusCode)
	}

	out := Response{
		Location: strings.TrimSpace(res.Header.Get("Location")),
		USN:      strings.TrimSpace(res.Header.Get("Usn")),
		ST:       strings.TrimSpace(res.Header.Get("St")),
		Server:   strings.TrimSpace(res.Header.Get("Server")),
		MaxAge:   parseMaxAge(res.Header.Get("Cache-Control")),
	}
	if out.Location == "" {
		return Response{}, ErrNoLocation
	}
	return out, nil
}

func parseMaxAge(cacheControl string) time.Duration {
	for _, directive := range strings.Split(cacheControl, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(directive), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "max-age") {
			continue
		}
		secs, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	return 0
}
