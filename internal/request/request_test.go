/*
Copyright 2024 Authflow Authors.

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

package request_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/netbankhq/authflow/internal/request"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToJsonReq(t *testing.T) {
	body, err := request.ToJsonReq(map[string]string{"key": "value"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"value"}`, body.String())
}

func TestToJsonReq_MarshalFailure(t *testing.T) {
	_, err := request.ToJsonReq(make(chan int))
	assert.Error(t, err)
}

func TestCallDecodesSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	var out struct {
		Status string `json:"status"`
	}
	resp, err := request.Call(srv.Client(), req, &out)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", out.Status)
}

func TestCallLeavesErrorBodyToCaller(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"card is blocked"}`))
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL, nil)
	require.NoError(t, err)

	var out struct{}
	resp, err := request.Call(srv.Client(), req, &out)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "card is blocked", request.ReadMessage(resp.Body))
}

func TestReadMessageFallsBackToRawBody(t *testing.T) {
	assert.Equal(t, "plain failure", request.ReadMessage(strings.NewReader("plain failure")))
	assert.Equal(t, "detail", request.ReadMessage(strings.NewReader(`{"message":"detail"}`)))
	assert.Equal(t, `{"other":"x"}`, request.ReadMessage(strings.NewReader(`{"other":"x"}`)))
}
