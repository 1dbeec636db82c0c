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

package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

// NewAPI returns a new API implementation for the specified client
func NewAPI(c Client) API {
	return &httpAPI{client: c}
}

type httpAPI struct {
	client Client
}

func (h *httpAPI) Health(ctx context.Context) error {
	u := h.client.URL(endpointHealth).String()

	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, body, err := h.client.Do(ctx, req)
	if err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	default:
		return newError(ErrUnexpected, resp, body)
	}
}

func (h *httpAPI) ServerVersion(ctx context.Context) (string, error) {
	u := h.client.URL(endpointVersion).String()

	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}

	resp, body, err := h.client.Do(ctx, req)
	if err != nil {
		return "", err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return strings.TrimSpace(string(body)), nil
	default:
		return "", newError(ErrUnexpected, resp, body)
	}
}

func (h *httpAPI) GetExperimentByName(ctx context.Context, name string) (Experiment, error) {
	u := h.client.URL(endpointMLflow + "experiments/get-by-name")
	u.RawQuery = url.Values{"experiment_name": []string{name}}.Encode()
	e := struct {
		Experiment Experiment `json:"experiment"`
	}{}

	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return e.Experiment, err
	}

	resp, body, err := h.client.Do(ctx, req)
	if err != nil {
		return e.Experiment, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		err = json.Unmarshal(body, &e)
		return e.Experiment, err
	case http.StatusNotFound:
		err := newError(ErrExperimentNotFound, resp, body)
		// Improve the "not found" error message using the name
		err.Message = fmt.Sprintf(`experiment "%s" not found`, name)
		return e.Experiment, err
	default:
		return e.Experiment, newError(ErrUnexpected, resp, body)
	}
}

func (h *httpAPI) CreateExperiment(ctx context.Context, name string) (string, error) {
	u := h.client.URL(endpointMLflow + "experiments/create").String()
	e := struct {
		ExperimentID string `json:"experiment_id"`
	}{}

	req, err := httpNewJSONRequest(http.MethodPost, u, map[string]string{"name": name})
	if err != nil {
		return "", err
	}

	resp, body, err := h.client.Do(ctx, req)
	if err != nil {
		return "", err
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		err = json.Unmarshal(body, &e)
		return e.ExperimentID, err
	case http.StatusBadRequest:
		return "", newError(ErrInvalidParameter, resp, body)
	default:
		return "", newError(ErrUnexpected, resp, body)
	}
}

func (h *httpAPI) CreateRun(ctx context.Context, r CreateRunRequest) (Run, error) {
	u := h.client.URL(endpointMLflow + "runs/create").String()
	rr := struct {
		Run Run `json:"run"`
	}{}

	req, err := httpNewJSONRequest(http.MethodPost, u, r)
	if err != nil {
		return rr.Run, err
	}

	resp, body, err := h.client.Do(ctx, req)
	if err != nil {
		return rr.Run, err
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		err = json.Unmarshal(body, &rr)
		return rr.Run, err
	case http.StatusNotFound:
		return rr.Run, newError(ErrExperimentNotFound, resp, body)
	case http.StatusBadRequest:
		return rr.Run, newError(ErrInvalidParameter, resp, body)
	default:
		return rr.Run, newError(ErrUnexpected, resp, body)
	}
}

func (h *httpAPI) UpdateRun(ctx context.Context, r UpdateRunRequest) (RunInfo, error) {
	u := h.client.URL(endpointMLflow + "runs/update").String()
	ri := struct {
		RunInfo RunInfo `json:"run_info"`
	}{}

	req, err := httpNewJSONRequest(http.MethodPost, u, r)
	if err != nil {
		return ri.RunInfo, err
	}

	resp, body, err := h.client.Do(ctx, req)
	if err != nil {
		return ri.RunInfo, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		err = json.Unmarshal(body, &ri)
		return ri.RunInfo, err
	case http.StatusNotFound:
		return ri.RunInfo, newError(ErrRunNotFound, resp, body)
	case http.StatusBadRequest:
		return ri.RunInfo, newError(ErrInvalidParameter, resp, body)
	default:
		return ri.RunInfo, newError(ErrUnexpected, resp, body)
	}
}

func (h *httpAPI) LogBatch(ctx context.Context, r LogBatchRequest) error {
	u := h.client.URL(endpointMLflow + "runs/log-batch").String()

	req, err := httpNewJSONRequest(http.MethodPost, u, r)
	if err != nil {
		return err
	}

	resp, body, err := h.client.Do(ctx, req)
	if err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return newError(ErrRunNotFound, resp, body)
	case http.StatusBadRequest:
		return newError(ErrInvalidParameter, resp, body)
	default:
		return newError(ErrUnexpected, resp, body)
	}
}

func httpNewJSONRequest(method, u string, body interface{}) (*http.Request, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(method, u, bytes.NewBuffer(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return req, err
}

// newError returns a new error with an API specific error condition, it also captures the details of the response
func newError(t ErrorType, resp *http.Response, body []byte) *Error {
	err := &Error{Type: t}

	// Unmarshal the response body into the error to get the server supplied error message
	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt == "application/json" {
		_ = json.Unmarshal(body, err)
	}

	// Capture the URL of the request
	if resp.Request != nil && resp.Request.URL != nil {
		err.Location = resp.Request.URL.String()
	}

	// The server supplied error code is more specific than the status code
	switch err.Code {
	case "RESOURCE_DOES_NOT_EXIST":
		if err.Type != ErrRunNotFound {
			err.Type = ErrExperimentNotFound
		}
	case "RESOURCE_ALREADY_EXISTS":
		err.Type = ErrExperimentAlreadyExists
	case "INVALID_PARAMETER_VALUE", "BAD_REQUEST":
		err.Type = ErrInvalidParameter
	case "UNAUTHENTICATED", "PERMISSION_DENIED":
		err.Type = ErrUnauthorized
	}

	// Try to report a more specific error if the error was undocumented (e.g. came from a proxy)
	if err.Type == ErrUnexpected {
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			err.Type = ErrUnauthorized
		}
	}

	// Make sure we have a message
	if err.Message == "" {
		switch err.Type {
		case ErrUnauthorized:
			err.Message = "unauthorized"
		default:
			err.Message = fmt.Sprintf("unexpected server response (%s)", http.StatusText(resp.StatusCode))
		}
	}

	return err
}
