// Package http implements remote.IRemoteSync against an HTTP(S) object
// endpoint. Manifests are fetched with GET and published with PUT, with a
// bounded retry loop around transport level failures.
package http

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/relgate/relgate/common"
	"github.com/relgate/relgate/remote"
)

var Logger = common.GetLogger("remote")

func NewHTTPRemote() remote.IRemoteSync {
	return &httpRemote{}
}

type httpRemote struct {
	baseURL    *url.URL
	client     *http.Client
	retryCount int
}

// --------------------------------------------------------------------------
// Interface Methods (docu see remote.IRemoteSync)
// --------------------------------------------------------------------------

func (r *httpRemote) Connect(config common.RemoteConfig) error {
	parsedURL, err := url.Parse(config.Endpoint)
	if err != nil {
		return fmt.Errorf("http remote: parse endpoint: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("http remote: unsupported scheme %q", parsedURL.Scheme)
	}

	// Create client with default transport
	client := &http.Client{
		Timeout: time.Duration(config.TimeoutSecond) * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     time.Duration(config.TimeoutSecond) * time.Second,
		},
	}

	r.client = client
	r.baseURL = parsedURL
	r.retryCount = max(config.RetryCount, 1)
	return nil
}

func (r *httpRemote) Download(remotePath, localPath string) error {
	if r.client == nil {
		return fmt.Errorf("http remote not initialized")
	}
	requestURL := r.baseURL.JoinPath(remotePath).String()

	httpResponse, err := r.doWithRetry(func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, requestURL, nil)
	})
	if err != nil {
		return remote.NewTransportError(remote.OpDownload, remotePath, err)
	}
	defer func() {
		if err := httpResponse.Body.Close(); err != nil {
			Logger.Errorf("failed to close response body: %v", err)
		}
	}()

	switch {
	case httpResponse.StatusCode == http.StatusNotFound:
		return remote.NewTransportError(remote.OpDownload, remotePath,
			fmt.Errorf("%s: %w", httpResponse.Status, os.ErrNotExist))
	case httpResponse.StatusCode != http.StatusOK:
		return remote.NewTransportError(remote.OpDownload, remotePath,
			fmt.Errorf("http error: %s", httpResponse.Status))
	}

	data, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return remote.NewTransportError(remote.OpDownload, remotePath, err)
	}
	if err := common.WriteFileAtomic(localPath, data, 0o644); err != nil {
		return remote.NewTransportError(remote.OpDownload, remotePath, err)
	}

	Logger.Debugf("downloaded %s (%d bytes)", remotePath, len(data))
	return nil
}

func (r *httpRemote) Upload(localPath, remotePath string) error {
	if r.client == nil {
		return fmt.Errorf("http remote not initialized")
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return remote.NewTransportError(remote.OpUpload, remotePath, err)
	}
	requestURL := r.baseURL.JoinPath(remotePath).String()

	httpResponse, err := r.doWithRetry(func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPut, requestURL, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return remote.NewTransportError(remote.OpUpload, remotePath, err)
	}
	defer func() {
		if err := httpResponse.Body.Close(); err != nil {
			Logger.Errorf("failed to close response body: %v", err)
		}
	}()

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode >= 300 {
		return remote.NewTransportError(remote.OpUpload, remotePath,
			fmt.Errorf("http error: %s", httpResponse.Status))
	}

	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, httpResponse.Body)

	Logger.Debugf("uploaded %s (%d bytes)", remotePath, len(data))
	return nil
}

func (r *httpRemote) Close() error {
	if r.client != nil {
		r.client.CloseIdleConnections()
	}
	r.client = nil
	r.baseURL = nil
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// doWithRetry sends a request, retrying transport level failures. The
// request is rebuilt per attempt because its body is consumed on send.
func (r *httpRemote) doWithRetry(build func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error
	for i := 0; i < r.retryCount; i++ {
		req, err := build()
		if err != nil {
			return nil, err
		}
		resp, err := r.client.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
