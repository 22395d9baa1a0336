package alert

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestTelegramSend(t *testing.T) {
	var gotPath string
	var gotPayload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotPayload)
		w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	ch := NewTelegramChannel("telegram", "123:abc", "42")
	ch.BaseURL = srv.URL
	ch.HTTPClient = srv.Client()

	if err := ch.Send(Startup("0xtarget", 0.1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/bot123:abc/sendMessage" {
		t.Fatalf("bad endpoint: %s", gotPath)
	}
	if gotPayload["chat_id"] != "42" || gotPayload["parse_mode"] != "HTML" {
		t.Fatalf("bad payload: %v", gotPayload)
	}
	if !strings.Contains(gotPayload["text"], "0xtarget") {
		t.Fatalf("message must mention target: %s", gotPayload["text"])
	}
}

func TestTelegramSendUnconfigured(t *testing.T) {
	ch := NewTelegramChannel("telegram", "", "")
	if err := ch.Send(Startup("0xtarget", 0.1)); err == nil {
		t.Fatalf("unconfigured channel must error")
	}
}

func TestTelegramSendHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	ch := NewTelegramChannel("telegram", "bad", "42")
	ch.BaseURL = srv.URL
	ch.HTTPClient = srv.Client()
	if err := ch.Send(PositionClosed("SOL")); err == nil {
		t.Fatalf("non-200 must error")
	}
}

func TestFormatMessagePerEventType(t *testing.T) {
	cases := []struct {
		name string
		ev   Event
		want []string
	}{
		{"startup", Startup("0xtarget", 0.1), []string{"Started", "0xtarget", "10.00%"}},
		{"target trade buy", TargetTrade("BTC", "increased", 0.5), []string{"📈", "BTC", "increased", "+0.500000"}},
		{"target trade sell", TargetTrade("ETH", "reduced", -1.2), []string{"📉", "ETH", "-1.200000"}},
		{"executed", OrderExecuted("BTC", "buy", 0.005, 150.0, 30000), []string{"Executed", "BTC", "0.005000", "$150.00"}},
		{"failed", OrderFailed("BTC", "buy", "insufficient margin"), []string{"Failed", "insufficient margin"}},
		{"closed", PositionClosed("SOL"), []string{"Position Closed", "SOL"}},
		{"shutdown", Shutdown("budget exhausted"), []string{"Stopped", "budget exhausted"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev := tc.ev
			ev.Timestamp = time.Now()
			msg := FormatMessage(ev)
			for _, want := range tc.want {
				if !strings.Contains(msg, want) {
					t.Fatalf("message missing %q:\n%s", want, msg)
				}
			}
		})
	}
}
