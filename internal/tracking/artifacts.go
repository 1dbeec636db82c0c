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
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// artifactLocation splits a run artifact URI into a scheme and a path.
func artifactLocation(artifactURI string) (string, string, error) {
	if artifactURI == "" {
		return "", "", &Error{Type: ErrArtifactStore, Message: "run does not have an artifact location"}
	}

	// Plain local paths, including Windows drive letters which parse as a scheme
	if filepath.IsAbs(artifactURI) || !strings.Contains(artifactURI, ":") || filepath.VolumeName(artifactURI) != "" {
		return "file", artifactURI, nil
	}

	u, err := url.Parse(artifactURI)
	if err != nil {
		return "", "", err
	}

	p := u.Path
	if u.Opaque != "" {
		p = u.Opaque
	}
	return u.Scheme, p, nil
}

func (h *httpAPI) LogArtifact(ctx context.Context, run RunInfo, localPath, artifactPath string) error {
	scheme, root, err := artifactLocation(run.ArtifactURI)
	if err != nil {
		return err
	}

	switch scheme {
	case "mlflow-artifacts":
		return h.uploadArtifact(ctx, root, localPath, artifactPath)
	case "file":
		return copyArtifact(filepath.FromSlash(root), localPath, artifactPath)
	default:
		return &Error{
			Type:     ErrArtifactStore,
			Message:  fmt.Sprintf("unsupported artifact store %q", scheme),
			Location: run.ArtifactURI,
		}
	}
}

// uploadArtifact sends the file through the tracking server's artifact proxy.
func (h *httpAPI) uploadArtifact(ctx context.Context, root, localPath, artifactPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}

	p := path.Join(strings.TrimPrefix(root, "/"), artifactPath, filepath.Base(localPath))
	u := h.client.URL(endpointArtifacts + p).String()

	req, err := http.NewRequest(http.MethodPut, u, f)
	if err != nil {
		return err
	}
	req.ContentLength = fi.Size()
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, body, err := h.client.Do(ctx, req)
	if err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return newError(ErrRunNotFound, resp, body)
	default:
		return newError(ErrUnexpected, resp, body)
	}
}

// copyArtifact copies the file into a local artifact store.
func copyArtifact(root, localPath, artifactPath string) error {
	dir := filepath.Join(root, filepath.FromSlash(artifactPath))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(dir, filepath.Base(localPath)))
	if err != nil {
		return err
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}
