/*
Copyright 2022 GramLabs, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package tracking is a client for an MLflow compatible experiment tracking server.
package tracking

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Client is used to make requests against the tracking server.
type Client interface {
	// URL returns the absolute URL of a server path.
	URL(path string) *url.URL
	// Do performs the request, returning the response and the fully read body.
	Do(context.Context, *http.Request) (*http.Response, []byte, error)
}

// Credentials are the (optional) means of authenticating with the tracking server.
type Credentials struct {
	// Token is sent as a bearer token.
	Token string
	// Username and Password are used for basic authentication when there is no token.
	Username string
	Password string
}

// NewClient returns a new client for the tracking server at the supplied address; the
// transport (which may be nil for the default transport) is used for all requests.
func NewClient(address string, transport http.RoundTripper) (Client, error) {
	u, err := url.Parse(address)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("tracking server address must be an http(s) URL: %s", address)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""

	hc := &httpClient{address: *u}
	hc.client.Transport = transport
	// Artifact uploads can be large, individual calls are also bound by their context
	hc.client.Timeout = 5 * time.Minute
	return hc, nil
}

// Authorize wraps the supplied transport so requests carry the credentials.
func Authorize(transport http.RoundTripper, creds Credentials) http.RoundTripper {
	switch {
	case creds.Token != "":
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: creds.Token, TokenType: "Bearer"})
		return &oauth2.Transport{Source: src, Base: transport}
	case creds.Username != "" || creds.Password != "":
		return &basicAuthTransport{username: creds.Username, password: creds.Password, base: transport}
	default:
		return transport
	}
}

type httpClient struct {
	address url.URL
	client  http.Client
}

func (c *httpClient) URL(path string) *url.URL {
	u := c.address
	u.Path = u.Path + "/" + strings.TrimPrefix(path, "/")
	return &u
}

func (c *httpClient) Do(ctx context.Context, req *http.Request) (*http.Response, []byte, error) {
	if ctx != nil {
		req = req.WithContext(ctx)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	return resp, body, err
}

type basicAuthTransport struct {
	username string
	password string
	base     http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.username, t.password)
	if t.base != nil {
		return t.base.RoundTrip(req)
	}
	return http.DefaultTransport.RoundTrip(req)
}
