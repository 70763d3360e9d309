package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"budgetf/internal/assistant"
	"budgetf/internal/ledger/memory"
	"budgetf/internal/services"
)

type echoAssistant struct{}

func (echoAssistant) Answer(_ context.Context, _ int64, _ []assistant.Message, latest string) string {
	return "echo: " + latest
}

func newTestServer() *Server {
	store := memory.NewStore()
	chat := services.NewChatService(store, echoAssistant{}, nil, time.Second)
	return NewServer(":0", chat)
}

func doJSON(t *testing.T, s *Server, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func TestChatRoundTrip(t *testing.T) {
	s := newTestServer()
	defer s.Shutdown(context.Background())

	rec := doJSON(t, s, http.MethodPost, "/api/chat", "1", `{"message":"xin chào"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			SessionID int64  `json:"session_id"`
			Reply     string `json:"reply"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.Data.Reply != "echo: xin chào" {
		t.Errorf("response = %+v", resp)
	}
	if resp.Data.SessionID == 0 {
		t.Error("session id missing")
	}

	// Follow-up on the same session.
	rec = doJSON(t, s, http.MethodPost, "/api/chat", "1",
		fmt.Sprintf(`{"session_id":%d,"message":"tiếp theo"}`, resp.Data.SessionID))
	if rec.Code != http.StatusOK {
		t.Fatalf("follow-up status = %d", rec.Code)
	}
}

func TestChatRequiresUserHeader(t *testing.T) {
	s := newTestServer()
	defer s.Shutdown(context.Background())

	rec := doJSON(t, s, http.MethodPost, "/api/chat", "", `{"message":"hi"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestChatEmptyMessage(t *testing.T) {
	s := newTestServer()
	defer s.Shutdown(context.Background())

	rec := doJSON(t, s, http.MethodPost, "/api/chat", "1", `{"message":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestChatForeignSession(t *testing.T) {
	s := newTestServer()
	defer s.Shutdown(context.Background())

	rec := doJSON(t, s, http.MethodPost, "/api/chat", "2", `{"message":"seed"}`)
	var seeded struct {
		Data struct {
			SessionID int64 `json:"session_id"`
		} `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &seeded)

	rec = doJSON(t, s, http.MethodPost, "/api/chat", "1",
		fmt.Sprintf(`{"session_id":%d,"message":"không phải của tôi"}`, seeded.Data.SessionID))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListSessions(t *testing.T) {
	s := newTestServer()
	defer s.Shutdown(context.Background())

	doJSON(t, s, http.MethodPost, "/api/chat", "1", `{"message":"câu hỏi đầu tiên"}`)

	rec := doJSON(t, s, http.MethodGet, "/api/chat/sessions", "1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Data []struct {
			Title string `json:"title"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].Title != "câu hỏi đầu tiên" {
		t.Errorf("sessions = %+v", resp.Data)
	}
}

func TestSessionDetail(t *testing.T) {
	s := newTestServer()
	defer s.Shutdown(context.Background())

	rec := doJSON(t, s, http.MethodPost, "/api/chat", "1", `{"message":"chi tiết"}`)
	var seeded struct {
		Data struct {
			SessionID int64 `json:"session_id"`
		} `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &seeded)

	rec = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/chat/sessions/%d", seeded.Data.SessionID), "1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Data struct {
			Messages []struct {
				Sender  string `json:"sender"`
				Content string `json:"content"`
			} `json:"messages"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(resp.Data.Messages))
	}
	if resp.Data.Messages[0].Sender != "user" || resp.Data.Messages[1].Sender != "assistant" {
		t.Errorf("senders = %+v", resp.Data.Messages)
	}
}

func TestSessionDetailBadID(t *testing.T) {
	s := newTestServer()
	defer s.Shutdown(context.Background())

	rec := doJSON(t, s, http.MethodGet, "/api/chat/sessions/abc", "1", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
