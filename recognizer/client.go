package recognizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"fieldveil/utils"
)

// Client talks to an external entity recognizer over MCP stdio and turns
// its answers into candidate spans. The recognizer process is launched by
// NewClient and lives until Close.
type Client struct {
	Config Config

	mcp     *client.StdioMCPClient
	limiter *RateLimiter
	logger  *log.Logger
}

// spanPayload is the wire shape the recognizer tool returns, one object
// per detected field
type spanPayload struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// NewClient launches the recognizer server and prepares a client for it.
// serverPath may be empty, in which case the path is discovered from the
// environment.
func NewClient(serverPath string, config *Config) (*Client, error) {
	path, err := ResolveServerPath(serverPath)
	if err != nil {
		return nil, fmt.Errorf("failed to configure recognizer server: %w", err)
	}

	config = LoadConfig(config)

	var opts []string
	mcpClient, err := client.NewStdioMCPClient(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP stdio client: %w", err)
	}

	logger := log.New(os.Stdout, "[FIELDVEIL] ", log.LstdFlags)

	var limiter *RateLimiter
	if config.RateLimitEnabled {
		limiter = NewRateLimiter(config.RequestsPerMinute, 1*time.Minute)
	}

	logger.Printf("Recognizer client initialized with server: %s, tool: %s", path, config.ToolName)

	return &Client{
		Config:  *config,
		mcp:     mcpClient,
		limiter: limiter,
		logger:  logger,
	}, nil
}

// Close shuts down the recognizer server process
func (c *Client) Close() error {
	return c.mcp.Close()
}

// Detect asks the recognizer for candidate spans in text. Offsets in the
// response are taken as-is; bounds checking happens during normalization.
func (c *Client) Detect(ctx context.Context, text string) ([]utils.CandidateSpan, error) {
	requestID := newRequestID()
	startTime := time.Now()

	if c.Config.MaxContentSize > 0 && len(text) > c.Config.MaxContentSize {
		err := fmt.Errorf("document size (%d bytes) exceeds maximum allowed (%d bytes)",
			len(text), c.Config.MaxContentSize)
		return nil, newRecognizerError(ErrorCategoryValidation, err, requestID)
	}

	if c.limiter != nil {
		limited, count, resetTime := c.limiter.CheckLimit("recognizer")
		if limited {
			err := fmt.Errorf("rate limit exceeded: %d requests (limit: %d, resets: %s)",
				count, c.Config.RequestsPerMinute, resetTime.Format(time.RFC3339))
			return nil, newRecognizerError(ErrorCategoryRateLimit, err, requestID)
		}
	}

	request := mcp.CallToolRequest{}
	request.Params.Name = c.Config.ToolName
	request.Params.Arguments = map[string]interface{}{
		"text":       text,
		"request_id": requestID,
	}

	// One timeout covers all retry attempts
	callCtx, cancel := context.WithTimeout(ctx, c.Config.Timeout)
	defer cancel()

	var result *mcp.CallToolResult
	var err error
	var lastError error

	for attempt := 0; attempt <= c.Config.RetryCount; attempt++ {
		if attempt > 0 {
			backoffTime := c.Config.RetryBackoff * time.Duration(1<<(attempt-1))
			time.Sleep(backoffTime)
			c.logger.Printf("Retrying recognizer call (attempt %d, after %v): %v",
				attempt, backoffTime, lastError)
		}

		result, err = c.mcp.CallTool(callCtx, request)
		lastError = err

		if err == nil {
			break
		}

		// Don't retry if context is done
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, newRecognizerError(ErrorCategoryTimeout,
				fmt.Errorf("recognizer call timeout or canceled: %w", err), requestID)
		}
	}

	if err != nil {
		return nil, newRecognizerError(categorizeError(err),
			fmt.Errorf("recognizer call failed after %d attempts: %w", c.Config.RetryCount+1, err),
			requestID)
	}

	if result.IsError {
		return nil, newRecognizerError(ErrorCategoryTool,
			fmt.Errorf("recognizer tool returned an error: %v", result.Result), requestID)
	}

	outputStr := ""
	for _, content := range result.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			outputStr += textContent.Text
		}
	}

	payload, err := parseSpanPayload(outputStr)
	if err != nil {
		return nil, newRecognizerError(ErrorCategoryTool,
			fmt.Errorf("recognizer returned unparseable output: %w", err), requestID)
	}

	candidates := make([]utils.CandidateSpan, 0, len(payload))
	for _, span := range payload {
		candidates = append(candidates, utils.CandidateSpan{
			Start:  span.Start,
			End:    span.End,
			Value:  span.Value,
			Label:  span.Label,
			Source: utils.SourceRecognizer,
		})
	}

	c.logger.Printf("Recognizer returned %d spans in %dms (request: %s)",
		len(candidates), time.Since(startTime).Milliseconds(), requestID)

	return candidates, nil
}

// Producer adapts the client to the extraction function shape the
// pipeline expects
func (c *Client) Producer() func(text string) ([]utils.CandidateSpan, error) {
	return func(text string) ([]utils.CandidateSpan, error) {
		return c.Detect(context.Background(), text)
	}
}

// parseSpanPayload extracts the JSON span array from tool output. The
// array is located by bracket scanning so recognizers that wrap their
// answer in prose still parse.
func parseSpanPayload(output string) ([]spanPayload, error) {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return nil, nil
	}

	first := strings.Index(trimmed, "[")
	last := strings.LastIndex(trimmed, "]")
	if first == -1 || last < first {
		return nil, fmt.Errorf("no span array in output")
	}

	var payload []spanPayload
	if err := json.Unmarshal([]byte(trimmed[first:last+1]), &payload); err != nil {
		return nil, err
	}

	return payload, nil
}

// newRequestID creates a unique ID for request tracking
func newRequestID() string {
	// Format: timestamp + random hex
	return fmt.Sprintf("%d-%x", time.Now().UnixNano(), time.Now().Nanosecond())
}
