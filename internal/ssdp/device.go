// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ssdp

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxDescriptionBytes = 64 << 10

// ErrNotDIAL is returned for devices whose description omits the
// Application-URL header.
var ErrNotDIAL = errors.New("ssdp: device is not a DIAL server")

// Device is the subset of a UPnP device description dialwatch needs.
type Device struct {
	Location       string `json:"location"`
	ApplicationURL string `json:"application_url"`
	FriendlyName   string `json:"friendly_name"`
	ModelName      string `json:"model_name"`
	UDN            string `json:"udn"`
}

type descriptionXML struct {
	XMLName xml.Name `xml:"root"`
	Device  struct {
		FriendlyName string `xml:"friendlyName"`
		ModelName    string `xml:"modelName"`
		UDN          string `xml:"UDN"`
	} `xml:"device"`
}

// FetchDevice downloads the device description at location.
func FetchDevice(ctx context.Context, client *http.Client, location string) (Device, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return Device{}, fmt.Errorf("ssdp: description request: %w", err)
	}
	res, err := client.Do(req)
	if err != nil {
		return Device{}, fmt.Errorf("ssdp: fetch description %s: %w", location, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return Device{}, fmt.Errorf("ssdp: fetch description %s: status %d", location, res.StatusCode)
	}
	appURL := strings.TrimSpace(res.Header.Get("Application-URL"))
	if appURL == "" {
		return Device{}, ErrNotDIAL
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxDescriptionBytes))
	if err != nil {
		return Device{}, fmt.Errorf("ssdp: read description: %w", err)
	}
	var doc descriptionXML
	if err := xml.Unmarshal(body, &doc); err != nil {
		return Device{}, fmt.Errorf("ssdp: parse description: %w", err)
	}

	return Device{
		Location:       location,
		ApplicationURL: appURL,
		FriendlyName:   strings.TrimSpace(doc.Device.FriendlyName),
		ModelName:      strings.TrimSpace(doc.Device.ModelName),
		UDN:            strings.TrimSpace(doc.Device.UDN),
	}, nil
}

// deviceID picks the stable sink identity: UDN, then the USN's uuid part,
// then the location.
func deviceID(dev Device, usn string) string {
	if dev.UDN != "" {
		return dev.UDN
	}
	if usn != "" {
		id, _, _ := strings.Cut(usn, "::")
		return id
	}
	return dev.Location
}
