package common

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestPrintCIResultEmitsSingleJSONLine(t *testing.T) {
	var buf bytes.Buffer
	PrintCIResult(&buf, false, "authctl sweep", nil, errors.New("lock unavailable"))

	if strings.Count(buf.String(), "\n") != 1 {
		t.Fatalf("expected one line, got %q", buf.String())
	}
	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["ok"] != false || got["check"] != "authctl sweep" || got["error"] != "lock unavailable" {
		t.Fatalf("unexpected payload %v", got)
	}
	if details, ok := got["details"].([]any); !ok || len(details) != 0 {
		t.Fatalf("expected empty details array, got %v", got["details"])
	}
}

func TestRenderReport(t *testing.T) {
	ok := RenderReport("create-admin", []string{"username=root"}, nil)
	if !strings.Contains(ok, "create-admin") || !strings.Contains(ok, "OK") || !strings.Contains(ok, "username=root") {
		t.Fatalf("unexpected success report %q", ok)
	}
	failed := RenderReport("block", nil, errors.New("user not found"))
	if !strings.Contains(failed, "FAIL") || !strings.Contains(failed, "user not found") {
		t.Fatalf("unexpected failure report %q", failed)
	}
}
