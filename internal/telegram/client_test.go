package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"civicmon/internal/analytics"
	"civicmon/internal/complaint"
	"civicmon/internal/config"
	"civicmon/internal/dashboard"
)

func sampleDashboard() *dashboard.Dashboard {
	return &dashboard.Dashboard{
		GeneratedAt: time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC),
		Headline:    analytics.HeadlineStats{Pending: 7, Overdue: 3},
		Weekly: analytics.TrendSeries{
			Resolved: analytics.Trend{Last7Days: 4, Direction: "up"},
		},
		Summary: analytics.DelayPredictionSummary{LikelyToDelayToday: 2, ThisWeekPredictedDelays: 5, HighRiskComplaints: 3},
		Departments: []analytics.DepartmentLoad{
			{Department: "Roads Department", DelayRisk: analytics.LoadHigh},
			{Department: "Water Supply Department", DelayRisk: analytics.LoadLow},
		},
		DelayRisks: []analytics.DelayRisk{
			{ComplaintID: "R<40>", Category: complaint.CategoryRoads, RiskOfDelay: 83, RiskLevel: analytics.DelayHigh,
				Reasons: []string{"Pending 40 days, 5.7x category average"}},
		},
		Hotspots: []analytics.HotspotPrediction{{ZoneID: "Z2117_7283", Count: 4, Level: analytics.RiskHigh}},
	}
}

func TestFormatDigest(t *testing.T) {
	msg := FormatDigest(sampleDashboard(), "run-1")

	for _, want := range []string{
		"15 Mar 2025 12:00",
		"Pending <b>7</b>",
		"<b>2</b> today · <b>5</b> this week · <b>3</b> high",
		"under pressure: Roads Department\n",
		"<code>R&lt;40&gt;</code> roads · 83 (high)",
		"Z2117_7283",
		"run run-1",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected digest to contain %q, got:\n%s", want, msg)
		}
	}
	if strings.Contains(msg, "Water Supply") {
		t.Error("expected only high-risk departments in the pressure line")
	}
}

func TestNewClientDisabled(t *testing.T) {
	if c := NewClient(&config.Config{}); c != nil {
		t.Errorf("expected nil client without credentials, got %+v", c)
	}

	var c *Client
	ctx := context.Background()
	if err := c.SendDigest(ctx, sampleDashboard(), ""); err != nil {
		t.Errorf("nil client SendDigest: %v", err)
	}
	if err := c.SendReport(ctx, []byte("png"), ""); err != nil {
		t.Errorf("nil client SendReport: %v", err)
	}
	if err := c.SendCriticalAlert(ctx, "Fetch", "boom", 3, time.Now()); err != nil {
		t.Errorf("nil client SendCriticalAlert: %v", err)
	}
}

func TestSendDigest(t *testing.T) {
	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		io.WriteString(w, `{"ok": true, "result": {"message_id": 12}}`)
	}))
	defer srv.Close()

	c := &Client{BotToken: "TOKEN", ChatID: "-100", baseURL: srv.URL}
	if err := c.SendDigest(context.Background(), sampleDashboard(), "run-1"); err != nil {
		t.Fatalf("SendDigest failed: %v", err)
	}
	if got.ChatID != "-100" || got.ParseMode != "HTML" || !strings.Contains(got.Text, "Complaint digest") {
		t.Errorf("unexpected message %+v", got)
	}
}

func TestSendReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendPhoto" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("not a multipart body: %v", err)
			return
		}
		if r.FormValue("chat_id") != "-100" || r.FormValue("caption") != "Delay risk" {
			t.Errorf("unexpected fields %v", r.MultipartForm.Value)
		}
		file, header, err := r.FormFile("photo")
		if err != nil {
			t.Errorf("photo missing: %v", err)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "delay-risk.png" || string(data) != "PNGDATA" {
			t.Errorf("unexpected upload %s: %q", header.Filename, data)
		}
		io.WriteString(w, `{"ok": true, "result": {}}`)
	}))
	defer srv.Close()

	c := &Client{BotToken: "TOKEN", ChatID: "-100", baseURL: srv.URL}
	if err := c.SendReport(context.Background(), []byte("PNGDATA"), "Delay risk"); err != nil {
		t.Fatalf("SendReport failed: %v", err)
	}
}

func TestSendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"ok": false, "description": "Bad Request: chat not found"}`)
	}))
	defer srv.Close()

	c := &Client{BotToken: "TOKEN", ChatID: "-100", baseURL: srv.URL}
	err := c.SendCriticalAlert(context.Background(), "Fetch Failure", "timeout", 3, time.Now())
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("expected API error description, got %v", err)
	}
}

func TestDebugModeSkipsRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("debug mode must not call the API")
	}))
	defer srv.Close()

	c := &Client{BotToken: "TOKEN", ChatID: "-100", DebugMode: true, baseURL: srv.URL}
	if err := c.SendDigest(context.Background(), sampleDashboard(), ""); err != nil {
		t.Fatal(err)
	}
	if err := c.SendReport(context.Background(), []byte("x"), ""); err != nil {
		t.Fatal(err)
	}
}
