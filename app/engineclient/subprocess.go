package engineclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"overlaytranslate/app/types"
)

// ocrRequest/ocrResponse and translateRequest/translateResponse are the
// JSON request/response envelopes sent to the subprocess over stdin/stdout,
// one process invocation per call. This mirrors the teacher's
// PluginExecutor.Execute pattern (exec.CommandContext, captured
// stdout/stderr, stderr folded into the returned error) generalized from
// CSV-plugin commands to an engine request/response protocol.
type ocrRequest struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Channels int    `json:"channels"`
	Data     []byte `json:"data"`
	Language string `json:"language"`
}

type ocrResponse struct {
	Blocks []struct {
		Text       string  `json:"text"`
		X          int     `json:"x"`
		Y          int     `json:"y"`
		Width      int     `json:"width"`
		Height     int     `json:"height"`
		Confidence float64 `json:"confidence"`
		Language   string  `json:"language"`
	} `json:"blocks"`
}

type translateRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

type translateResponse struct {
	Text string `json:"text"`
}

// SubprocessClient is the reference Client adapter: each call invokes a
// configured executable once, writing a JSON request to its stdin and
// reading a JSON response from its stdout. Not thread-safe engines are
// serialized behind mu, matching §5's "external engines that are not
// thread-safe are serialized behind their own mutex".
type SubprocessClient struct {
	ocrExecPath       string
	translateExecPath string

	mu    sync.Mutex
	ready bool
}

// NewSubprocessClient constructs a SubprocessClient. Either path may be
// empty if that capability isn't wired to an external engine.
func NewSubprocessClient(ocrExecPath, translateExecPath string) *SubprocessClient {
	return &SubprocessClient{ocrExecPath: ocrExecPath, translateExecPath: translateExecPath, ready: true}
}

func (c *SubprocessClient) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// ExtractText runs the configured OCR executable with the frame payload
// on stdin and decodes its JSON stdout as a set of TextBlocks.
func (c *SubprocessClient) ExtractText(ctx context.Context, frame *types.Frame) ([]types.TextBlock, error) {
	if c.ocrExecPath == "" {
		return nil, nil
	}
	req := ocrRequest{Width: frame.Width, Height: frame.Height, Channels: frame.Channels, Data: frame.Data}
	if lang, ok := frame.Metadata["language"]; ok {
		req.Language = lang
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("engineclient: marshaling ocr request: %w", err)
	}

	out, err := c.run(ctx, c.ocrExecPath, payload)
	if err != nil {
		return nil, err
	}

	var resp ocrResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, fmt.Errorf("engineclient: decoding ocr response: %w", err)
	}

	blocks := make([]types.TextBlock, 0, len(resp.Blocks))
	for _, b := range resp.Blocks {
		blocks = append(blocks, types.TextBlock{
			Text:       b.Text,
			Position:   types.Rectangle{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height},
			Confidence: b.Confidence,
			Language:   b.Language,
		})
	}
	return blocks, nil
}

// Translate runs the configured translation executable with the text
// payload on stdin and decodes its JSON stdout.
func (c *SubprocessClient) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if c.translateExecPath == "" {
		return "", nil
	}
	payload, err := json.Marshal(translateRequest{Text: text, SourceLang: sourceLang, TargetLang: targetLang})
	if err != nil {
		return "", fmt.Errorf("engineclient: marshaling translate request: %w", err)
	}

	out, err := c.run(ctx, c.translateExecPath, payload)
	if err != nil {
		return "", err
	}

	var resp translateResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return "", fmt.Errorf("engineclient: decoding translate response: %w", err)
	}
	return resp.Text, nil
}

func (c *SubprocessClient) run(ctx context.Context, execPath string, stdin []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cmd := exec.CommandContext(ctx, execPath)
	cmd.Stdin = bytes.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		c.ready = false
		stderrStr := strings.TrimSpace(stderr.String())
		if stderrStr != "" {
			return nil, fmt.Errorf("engineclient: %s failed: %w (stderr: %s)", execPath, err, stderrStr)
		}
		return nil, fmt.Errorf("engineclient: %s failed: %w", execPath, err)
	}
	c.ready = true
	return stdout.Bytes(), nil
}
