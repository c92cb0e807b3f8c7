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

package authflow

import (
	"net/http"

	"github.com/netbankhq/authflow/config"
	"github.com/netbankhq/authflow/internal/request"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// FlowWebhook is the envelope posted to the configured webhook endpoint
// when a flow reaches a terminal outcome. Payloads never carry secrets:
// receipts and classification details only.
type FlowWebhook struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"data"`
}

// SendWebhook posts a flow event to the configured endpoint. A missing
// webhook URL is not an error; the feature is simply off.
func SendWebhook(hook FlowWebhook) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}
	if cfg.Notification.Webhook.Url == "" {
		logrus.Debugf("webhook url not set, skipping %s", hook.Event)
		return nil
	}

	body, err := request.ToJsonReq(hook)
	if err != nil {
		return errors.Wrap(err, "encoding webhook payload")
	}
	req, err := http.NewRequest(http.MethodPost, cfg.Notification.Webhook.Url, body)
	if err != nil {
		return errors.Wrap(err, "building webhook request")
	}
	for key, value := range cfg.Notification.Webhook.Headers {
		req.Header.Set(key, value)
	}

	resp, err := request.Call(http.DefaultClient, req, nil)
	if err != nil {
		return errors.Wrap(err, "posting webhook")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("webhook endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
