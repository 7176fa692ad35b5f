// Package telegram sends the refresh digest, the delay-risk report and
// critical alerts to a Telegram chat.
//
// A nil *Client is valid and turns every send into a no-op, so callers
// never check whether Telegram is configured.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"civicmon/internal/analytics"
	"civicmon/internal/api"
	"civicmon/internal/config"
	"civicmon/internal/dashboard"
)

const defaultBaseURL = "https://api.telegram.org"

// digestRows caps the delay-risk entries listed in a digest.
const digestRows = 5

// Client represents a Telegram bot client.
//
// Fields:
//   - BotToken: Telegram bot API token
//   - ChatID: Target chat ID for notifications
//   - DebugMode: If true, messages are logged instead of sent
type Client struct {
	BotToken  string
	ChatID    string
	DebugMode bool
	baseURL   string
}

// Message represents a Telegram message for sending.
type Message struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// apiResponse is the envelope of every Bot API answer.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// NewClient creates a Telegram client from the configuration.
//
// Returns:
//   - *Client: Configured Telegram client, or nil if not configured
func NewClient(cfg *config.Config) *Client {
	if !cfg.TelegramEnabled() {
		log.Println("⚠️  TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID not set. Telegram notifications disabled.")
		return nil
	}

	log.Println("✓ Telegram configured successfully")
	if cfg.DebugMode {
		log.Println("🐛 DEBUG MODE ENABLED - Telegram messages will be logged only")
	}
	return &Client{
		BotToken:  cfg.TelegramBotToken,
		ChatID:    cfg.TelegramChatID,
		DebugMode: cfg.DebugMode,
		baseURL:   defaultBaseURL,
	}
}

func (c *Client) methodURL(method string) string {
	base := c.baseURL
	if base == "" {
		base = defaultBaseURL
	}
	return fmt.Sprintf("%s/bot%s/%s", base, c.BotToken, method)
}

// doRequest posts a JSON payload to a Bot API method.
func (c *Client) doRequest(ctx context.Context, method string, payload any) (json.RawMessage, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(req)
}

// doMultipart uploads a file to a Bot API method together with form fields.
func (c *Client) doMultipart(ctx context.Context, method string, fields map[string]string, fileField, fileName string, data []byte) (json.RawMessage, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}
	part, err := w.CreateFormFile(fileField, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.send(req)
}

func (c *Client) send(req *http.Request) (json.RawMessage, error) {
	resp, err := api.GetHTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result apiResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response (HTTP %d): %w", resp.StatusCode, err)
	}
	if !result.OK {
		return nil, fmt.Errorf("telegram API error: %s", result.Description)
	}
	return result.Result, nil
}

// sendHTML sends an HTML-formatted text message to the configured chat.
func (c *Client) sendHTML(ctx context.Context, text string) error {
	if c.DebugMode {
		log.Printf("  🐛 [DEBUG] Telegram message:\n%s", text)
		return nil
	}
	_, err := c.doRequest(ctx, "sendMessage", Message{
		ChatID:                c.ChatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	return err
}

// SendDigest sends the refresh digest for d.
func (c *Client) SendDigest(ctx context.Context, d *dashboard.Dashboard, runID string) error {
	if c == nil {
		return nil
	}
	log.Println("  → Sending digest to Telegram...")
	if err := c.sendHTML(ctx, FormatDigest(d, runID)); err != nil {
		return fmt.Errorf("failed to send digest: %w", err)
	}
	log.Println("  ✓ Digest sent")
	return nil
}

// SendReport uploads the PNG delay-risk report.
func (c *Client) SendReport(ctx context.Context, png []byte, caption string) error {
	if c == nil {
		return nil
	}
	if c.DebugMode {
		log.Printf("  🐛 [DEBUG] Telegram photo (%d bytes): %s", len(png), caption)
		return nil
	}

	log.Println("  → Uploading delay-risk report to Telegram...")
	_, err := c.doMultipart(ctx, "sendPhoto", map[string]string{
		"chat_id": c.ChatID,
		"caption": caption,
	}, "photo", "delay-risk.png", png)
	if err != nil {
		return fmt.Errorf("failed to send report: %w", err)
	}
	log.Println("  ✓ Report uploaded")
	return nil
}

// SendCriticalAlert notifies the chat that refreshes keep failing.
//
// Message format:
//
//	🚨 CRITICAL ALERT - CIVICMON
//	Error Type: Fetch Failure
//	Error Message: ...
//	Retry Attempts: 3
//	Timestamp: 2026-01-15 10:30:00
func (c *Client) SendCriticalAlert(ctx context.Context, errorType, errorMsg string, retryCount int, at time.Time) error {
	if c == nil {
		log.Println("   ⚠️  Telegram not configured, skipping critical alert")
		return nil
	}

	log.Println("   🚨 Sending critical alert to Telegram...")
	message := fmt.Sprintf(
		"🚨 <b>CRITICAL ALERT - CIVICMON</b>\n\n"+
			"<b>Error Type:</b> %s\n"+
			"<b>Error Message:</b> %s\n"+
			"<b>Retry Attempts:</b> %d\n"+
			"<b>Timestamp:</b> %s\n\n"+
			"⚠️ <b>Action Required:</b> The dashboard is serving stale data.",
		html.EscapeString(errorType),
		html.EscapeString(errorMsg),
		retryCount,
		at.Format("2006-01-02 15:04:05"),
	)
	if err := c.sendHTML(ctx, message); err != nil {
		return fmt.Errorf("failed to send Telegram alert: %w", err)
	}

	log.Println("   ✓ Critical alert successfully sent to Telegram")
	return nil
}

// FormatDigest renders the HTML digest text of a snapshot.
//
// Message format:
//
//	📊 Complaint digest · 15 Mar 2025 12:00
//	Pending 7 · Overdue 3 · Resolved this week 4 (up)
//	⏰ Delay risk: 2 today · 5 this week · 3 high
//	🏢 Departments under pressure: Roads Department
//	🔥 Riskiest pending complaints: ...
func FormatDigest(d *dashboard.Dashboard, runID string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📊 <b>Complaint digest</b> · %s\n\n", d.GeneratedAt.Format("02 Jan 2006 15:04"))
	fmt.Fprintf(&b, "Pending <b>%d</b> · Overdue <b>%d</b> · Resolved this week <b>%d</b> (%s)\n",
		d.Headline.Pending, d.Headline.Overdue, d.Weekly.Resolved.Last7Days, d.Weekly.Resolved.Direction)
	fmt.Fprintf(&b, "⏰ Delay risk: <b>%d</b> today · <b>%d</b> this week · <b>%d</b> high\n",
		d.Summary.LikelyToDelayToday, d.Summary.ThisWeekPredictedDelays, d.Summary.HighRiskComplaints)

	var pressured []string
	for _, l := range d.Departments {
		if l.DelayRisk == analytics.LoadHigh {
			pressured = append(pressured, html.EscapeString(l.Department))
		}
	}
	if len(pressured) > 0 {
		fmt.Fprintf(&b, "🏢 Departments under pressure: %s\n", strings.Join(pressured, ", "))
	}

	if len(d.DelayRisks) > 0 {
		b.WriteString("\n🔥 <b>Riskiest pending complaints</b>\n")
		for i, r := range d.DelayRisks {
			if i == digestRows {
				break
			}
			reason := ""
			if len(r.Reasons) > 0 {
				reason = " · " + html.EscapeString(r.Reasons[0])
			}
			fmt.Fprintf(&b, "%d. <code>%s</code> %s · %d (%s)%s\n",
				i+1, html.EscapeString(r.ComplaintID), r.Category, r.RiskOfDelay, r.RiskLevel, reason)
		}
	}

	if len(d.Hotspots) > 0 {
		top := d.Hotspots[0]
		fmt.Fprintf(&b, "\n📍 Top hotspot: <code>%s</code> · %d complaints · %s\n", top.ZoneID, top.Count, top.Level)
	}
	if len(d.Warnings) > 0 {
		fmt.Fprintf(&b, "\n⚠️ %d data-quality warnings\n", len(d.Warnings))
	}
	if runID != "" {
		fmt.Fprintf(&b, "\n<i>run %s</i>", html.EscapeString(runID))
	}
	return b.String()
}
