package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Port:              "8081",
		SQLiteDBPath:      "./data/budgetf.db",
		DataBackend:       "memory",
		AMQPExchange:      "budgetf",
		AMQPQueue:         "budget_alerts",
		GeminiModel:       "gemini-2.5-flash",
		AssistantTimezone: "Asia/Ho_Chi_Minh",
		AssistantTimeout:  30 * time.Second,
	}
}

func TestValidateOK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateBadPort(t *testing.T) {
	cfg := validConfig()
	cfg.Port = "notaport"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "invalid port") {
		t.Errorf("err = %v", err)
	}
}

func TestValidateBadBackend(t *testing.T) {
	cfg := validConfig()
	cfg.DataBackend = "postgres"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "data backend") {
		t.Errorf("err = %v", err)
	}
}

func TestValidateBadAMQPScheme(t *testing.T) {
	cfg := validConfig()
	cfg.AMQPURL = "http://localhost:5672"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "AMQP URL scheme") {
		t.Errorf("err = %v", err)
	}
}

func TestValidateBadTimezone(t *testing.T) {
	cfg := validConfig()
	cfg.AssistantTimezone = "Mars/Olympus"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "timezone") {
		t.Errorf("err = %v", err)
	}
}

func TestValidateAggregatesErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Port = "-1"
	cfg.DataBackend = "postgres"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "port") || !strings.Contains(err.Error(), "backend") {
		t.Errorf("errors not aggregated: %v", err)
	}
}

func TestTimezone(t *testing.T) {
	cfg := validConfig()
	loc := cfg.Timezone()
	if loc.String() != "Asia/Ho_Chi_Minh" {
		t.Errorf("location = %s", loc)
	}
}
