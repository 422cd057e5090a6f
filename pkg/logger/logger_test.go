package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoggerErrorIncludesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})

	ctx := context.Background()
	ctx = log.WithRequestID(ctx, "req-123")

	log.Error(ctx, "boom", errors.New("boom"))

	if !bytes.Contains(buf.Bytes(), []byte("\"request_id\"")) {
		t.Fatalf("expected request_id to be preserved; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("\"stack\"")) {
		t.Fatalf("expected stack trace on error; entry=%s", buf.String())
	}
}

func TestLoggerWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf, WarnStack: true})
	ctx := context.Background()
	log.Warn(ctx, "warny")
	if !bytes.Contains(buf.Bytes(), []byte("\"stack\"")) {
		t.Fatalf("expected stack when warn stack enabled")
	}

	buf.Reset()
	quiet := New(Options{ServiceName: "test", Output: buf})
	quiet.Warn(ctx, "warny")
	if bytes.Contains(buf.Bytes(), []byte("\"stack\"")) {
		t.Fatalf("stack should be omitted when warn stack disabled")
	}
}

func TestLoggerStampsEnvAndHonoursFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Env: "dev", Format: FormatJSON, Output: buf})
	log.Info(context.Background(), "hello")
	if !bytes.Contains(buf.Bytes(), []byte(`"env":"dev"`)) {
		t.Fatalf("expected env field; entry=%s", buf.String())
	}

	buf.Reset()
	console := New(Options{ServiceName: "api", Format: FormatConsole, Output: buf})
	console.Info(context.Background(), "hello")
	if bytes.HasPrefix(bytes.TrimSpace(buf.Bytes()), []byte("{")) {
		t.Fatalf("console format should not emit json; entry=%s", buf.String())
	}
}

func TestParseLevelDefaults(t *testing.T) {
	if lvl := ParseLevel(""); lvl != zerolog.InfoLevel {
		t.Fatalf("expected default info level, got %v", lvl)
	}
	if lvl := ParseLevel("invalid"); lvl != zerolog.InfoLevel {
		t.Fatalf("invalid level should fallback to info, got %v", lvl)
	}
}

func TestLoggerCarriesLabAndTransactionFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})

	ctx := log.WithLabID(context.Background(), "lab-1")
	ctx = log.WithTransactionID(ctx, "TXN-0A1B2C3D")
	log.Info(ctx, "transition")

	if !bytes.Contains(buf.Bytes(), []byte(`"lab_id":"lab-1"`)) {
		t.Fatalf("expected lab_id field; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"transaction_id":"TXN-0A1B2C3D"`)) {
		t.Fatalf("expected transaction_id field; entry=%s", buf.String())
	}
}
