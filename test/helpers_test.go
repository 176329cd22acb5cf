//go:build integration_test || all_tests

package test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/stretchr/testify/require"
)

type messageResponse struct {
	Message string `json:"message"`
}

// drivers returns the store drivers in a stable order, so subtests are named deterministically.
func (s *IntegrationTestSuite) drivers() []string {
	return []string{postgresDriverKey, mongoDriverKey}
}

func (s *IntegrationTestSuite) postJSON(ctx context.Context, driver, path string, body any, headers map[string]string) (int, []byte) {
	t := s.T()

	reqBody, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(ctx, "POST", s.endpoints[driver]+path, bytes.NewReader(reqBody))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "test-agent")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return s.do(req)
}

func (s *IntegrationTestSuite) get(ctx context.Context, driver, path string, query url.Values) (int, []byte) {
	req, err := http.NewRequestWithContext(ctx, "GET", s.endpoints[driver]+path+"?"+query.Encode(), nil)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "test-agent")
	return s.do(req)
}

func (s *IntegrationTestSuite) do(req *http.Request) (int, []byte) {
	t := s.T()

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, respBytes
}

func (s *IntegrationTestSuite) message(body []byte) string {
	var msg messageResponse
	require.NoError(s.T(), json.Unmarshal(body, &msg))
	return msg.Message
}
