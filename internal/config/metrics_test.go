package config

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyConfigLoadError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "none", err: nil, want: "none"},
		{name: "validation", err: errors.New("validate config: SECRET_KEY is required"), want: "validation"},
		{name: "parse duration", err: errors.New("parse RATE_LIMIT_PERIOD: invalid duration"), want: "parse"},
		{name: "parse yaml", err: fmt.Errorf("parse CONFIG_FILE: %w", errors.New("yaml: line 2")), want: "parse"},
		{name: "dotenv", err: errors.New("load env file .env: permission denied"), want: "source"},
		{name: "yaml file", err: errors.New("read config file app.yaml: no such file"), want: "source"},
		{name: "other", err: errors.New("boom"), want: "load"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyConfigLoadError(tc.err); got != tc.want {
				t.Fatalf("classifyConfigLoadError()=%q want %q", got, tc.want)
			}
		})
	}
}

func TestConfigProfileLabel(t *testing.T) {
	cases := map[string]string{
		"  Production ": "production",
		"staging":       "staging",
		"development":   "development",
		"   ":           "unknown",
		"qa-7":          "other",
	}
	for in, want := range cases {
		if got := configProfileLabel(in); got != want {
			t.Fatalf("configProfileLabel(%q)=%q want %q", in, got, want)
		}
	}
}

func TestRecordConfigValidationEventWithoutProvider(t *testing.T) {
	recordConfigValidationEvent(t.Context(), "production", "success", "none")
}
