package engineclient

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"overlaytranslate/app/types"
)

// writeFakeEngine writes a trivial shell script masquerading as an engine
// executable, for exercising SubprocessClient without a real OCR/MT engine.
func writeFakeEngine(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake engine script is a POSIX shell script")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-engine.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("writing fake engine script: %v", err)
	}
	return path
}

func TestSubprocessClientTranslate(t *testing.T) {
	path := writeFakeEngine(t, `echo '{"text":"Hallo"}'`)
	c := NewSubprocessClient("", path)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got, err := c.Translate(ctx, "Hello", "en", "de")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Hallo" {
		t.Fatalf("expected %q, got %q", "Hallo", got)
	}
	if !c.IsReady() {
		t.Fatal("expected client to report ready after a successful call")
	}
}

func TestSubprocessClientTranslateFailureMarksNotReady(t *testing.T) {
	path := writeFakeEngine(t, `echo "boom" 1>&2; exit 1`)
	c := NewSubprocessClient("", path)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := c.Translate(ctx, "Hello", "en", "de")
	if err == nil {
		t.Fatal("expected an error from a failing subprocess")
	}
	if c.IsReady() {
		t.Fatal("expected client to report not-ready after a failed call")
	}
}

func TestSubprocessClientExtractText(t *testing.T) {
	path := writeFakeEngine(t, `echo '{"blocks":[{"text":"Hi","x":1,"y":2,"width":10,"height":5,"confidence":0.9,"language":"en"}]}'`)
	c := NewSubprocessClient(path, "")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	frame := &types.Frame{Width: 10, Height: 10, Channels: 3, Data: make([]byte, 300), Timestamp: time.Now()}
	blocks, err := c.ExtractText(ctx, frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(blocks) != 1 || blocks[0].Text != "Hi" {
		t.Fatalf("unexpected blocks: %+v", blocks)
	}
}

func TestSubprocessClientEmptyExecPathIsNoop(t *testing.T) {
	c := NewSubprocessClient("", "")
	ctx := context.Background()

	text, err := c.Translate(ctx, "Hello", "en", "de")
	if err != nil || text != "" {
		t.Fatalf("expected no-op translate to return empty string and nil error, got %q, %v", text, err)
	}

	blocks, err := c.ExtractText(ctx, &types.Frame{})
	if err != nil || blocks != nil {
		t.Fatalf("expected no-op extract to return nil and nil error, got %+v, %v", blocks, err)
	}
}
