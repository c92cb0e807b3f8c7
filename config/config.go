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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5400"

	// DEFAULT_LEDGER_TIMEOUT_SEC bounds every call to the banking core.
	DEFAULT_LEDGER_TIMEOUT_SEC = 15
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"AUTHFLOW_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"AUTHFLOW_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"AUTHFLOW_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"AUTHFLOW_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"AUTHFLOW_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"AUTHFLOW_SERVER_PORT"`
}

// LedgerConfig points at the remote banking core that owns accounts,
// balances and transfer execution.
type LedgerConfig struct {
	BaseUrl    string `json:"base_url" envconfig:"AUTHFLOW_LEDGER_BASE_URL"`
	ApiKey     string `json:"api_key" envconfig:"AUTHFLOW_LEDGER_API_KEY"`
	TimeoutSec int    `json:"timeout_sec" envconfig:"AUTHFLOW_LEDGER_TIMEOUT_SEC"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"AUTHFLOW_REDIS_DNS"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"AUTHFLOW_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"AUTHFLOW_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"AUTHFLOW_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type Configuration struct {
	ProjectName     string          `json:"project_name" envconfig:"AUTHFLOW_PROJECT_NAME"`
	EnableTelemetry bool            `json:"enable_telemetry" envconfig:"AUTHFLOW_ENABLE_TELEMETRY"`
	Server          ServerConfig    `json:"server"`
	Ledger          LedgerConfig    `json:"ledger"`
	Redis           RedisConfig     `json:"redis"`
	RateLimit       RateLimitConfig `json:"rate_limit"`
	Notification    Notification    `json:"notification"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("authflow", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called authflow.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Authflow"
	}

	if cnf.Ledger.BaseUrl == "" {
		log.Println("Error: Ledger base URL is empty. It's a required field.")
		return errors.New("ledger base URL is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.Ledger.BaseUrl = strings.TrimSuffix(strings.TrimSpace(cnf.Ledger.BaseUrl), "/")
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Ledger.TimeoutSec <= 0 {
		cnf.Ledger.TimeoutSec = DEFAULT_LEDGER_TIMEOUT_SEC
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}

	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
