package logger

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newBufferLogger() (*Logger, *strings.Builder) {
	var buf strings.Builder
	zl := zerolog.New(&buf)
	return &Logger{logger: zl, service: "test"}, &buf
}

func TestLogger_Info(t *testing.T) {
	l, buf := newBufferLogger()
	l.Info("chain started", map[string]interface{}{"stages": 3})

	out := buf.String()
	if !strings.Contains(out, `"message":"chain started"`) {
		t.Errorf("missing message in output: %s", out)
	}
	if !strings.Contains(out, `"stages":3`) {
		t.Errorf("missing field in output: %s", out)
	}
}

func TestLogger_WithComponent(t *testing.T) {
	l, buf := newBufferLogger()
	l.WithComponent("cache").Info("hit")

	if !strings.Contains(buf.String(), `"component":"cache"`) {
		t.Errorf("missing component field: %s", buf.String())
	}
}

func TestLogger_WithContext(t *testing.T) {
	l, buf := newBufferLogger()

	ctx := ContextWith(context.Background(), FieldRequestID, "req-1")
	ctx = ContextWith(ctx, FieldStage, "summarize")

	l.WithContext(ctx).Info("stage done")

	out := buf.String()
	if !strings.Contains(out, `"request_id":"req-1"`) {
		t.Errorf("missing request_id: %s", out)
	}
	if !strings.Contains(out, `"stage":"summarize"`) {
		t.Errorf("missing stage: %s", out)
	}
}

func TestLogger_WithError(t *testing.T) {
	l, buf := newBufferLogger()
	l.WithError(errTest{}).Error("failed")

	if !strings.Contains(buf.String(), `"error":"test error"`) {
		t.Errorf("missing error field: %s", buf.String())
	}
}

type errTest struct{}

func (errTest) Error() string { return "test error" }

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.Level != "info" || cfg.Format != "json" || cfg.Output != "stdout" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestConfig_Validate(t *testing.T) {
	good := Config{Level: "debug", Format: "console"}
	if err := good.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	bad := Config{Level: "verbose"}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for invalid level")
	}
}
