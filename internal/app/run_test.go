package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/countdown/internal/model"
	"github.com/hitoshi/countdown/internal/share"
)

func TestRun_WithInvalidConfig_ReturnsError(t *testing.T) {
	setTestEnv(t)
	t.Setenv("LOG_LEVEL", "verbose")

	var buf bytes.Buffer
	if err := Run(&buf, []string{"serve"}); err == nil {
		t.Fatal("Run with invalid config should return error")
	}
}

func TestRun_ResolveRequiresURL(t *testing.T) {
	setTestEnv(t)

	var buf bytes.Buffer
	if err := Run(&buf, []string{"resolve"}); err == nil {
		t.Fatal("resolve without URL should return error")
	}
}

func TestRun_ResolveValidLink(t *testing.T) {
	setTestEnv(t)

	target := time.Now().Add(240 * time.Hour).UTC().Truncate(time.Millisecond)
	link, err := share.NewResolver(share.NewCodec()).BuildShareLink(model.Timer{
		ID:         "stopwatch_cli",
		Name:       "Sylwester",
		TargetDate: target,
	}, "https://countdown.example")
	if err != nil {
		t.Fatalf("BuildShareLink unexpected error: %v", err)
	}

	var buf bytes.Buffer
	if err := Run(&buf, []string{"resolve", link}); err != nil {
		t.Fatalf("Run(resolve) unexpected error: %v", err)
	}

	var result resolveResult
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode output: %v\nraw: %s", err, buf.String())
	}
	if !result.Valid || result.ID != "stopwatch_cli" || result.Name != "Sylwester" {
		t.Errorf("result = %+v", result)
	}
	if result.TargetDate != model.FormatTimestamp(target) {
		t.Errorf("target_date = %q, want %q", result.TargetDate, model.FormatTimestamp(target))
	}
}

func TestRunResolve_InvalidURL(t *testing.T) {
	var buf bytes.Buffer
	err := runResolve(&buf, "not a url")
	if err == nil {
		t.Fatal("expected error for invalid URL")
	}

	var resErr *model.ResolutionError
	if !errors.As(err, &resErr) || resErr.Type != model.ResolutionInvalidURL {
		t.Errorf("err = %v, want invalid_url ResolutionError", err)
	}

	var result resolveResult
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode output: %v\nraw: %s", err, buf.String())
	}
	if result.Valid || result.ErrorType != "invalid_url" || result.Message == "" {
		t.Errorf("result = %+v", result)
	}
}
