package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"liquidity/internal/models"
	"liquidity/internal/service"
)

// ============ ActionHandler Tests ============

func TestActionHandler_CreateAction(t *testing.T) {
	t.Run("registers action", func(t *testing.T) {
		f := newHandlerFixture()
		handler := NewActionHandler(f.actionService)

		body := bytes.NewBufferString(`{"system": "kraken", "command": "buy", "params": {"pair": "XXBTZEUR"}}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/actions", body)
		w := httptest.NewRecorder()

		handler.CreateAction(w, req)

		if w.Code != http.StatusCreated {
			t.Fatalf("expected status %d, got %d (%s)", http.StatusCreated, w.Code, w.Body.String())
		}

		var action models.Action
		if err := json.NewDecoder(w.Body).Decode(&action); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if action.ID == 0 {
			t.Error("expected assigned action ID")
		}
		if action.System != "kraken" || action.Command != "buy" {
			t.Errorf("unexpected action: %+v", action)
		}
	})

	t.Run("repeated registration is idempotent", func(t *testing.T) {
		f := newHandlerFixture()
		handler := NewActionHandler(f.actionService)

		payload := `{"system": "kraken", "command": "withdraw"}`

		post := func() models.Action {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/actions", bytes.NewBufferString(payload))
			w := httptest.NewRecorder()
			handler.CreateAction(w, req)
			if w.Code != http.StatusCreated {
				t.Fatalf("expected status %d, got %d", http.StatusCreated, w.Code)
			}
			var action models.Action
			if err := json.NewDecoder(w.Body).Decode(&action); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			return action
		}

		first := post()
		second := post()
		if first.ID != second.ID {
			t.Errorf("expected same action, got IDs %d and %d", first.ID, second.ID)
		}
	})

	t.Run("unknown system rejected", func(t *testing.T) {
		f := newHandlerFixture()
		handler := NewActionHandler(f.actionService)

		body := bytes.NewBufferString(`{"system": "binance", "command": "buy"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/actions", body)
		w := httptest.NewRecorder()

		handler.CreateAction(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})

	t.Run("unknown linked action returns 404", func(t *testing.T) {
		f := newHandlerFixture()
		handler := NewActionHandler(f.actionService)

		body := bytes.NewBufferString(`{"system": "kraken", "command": "buy", "on_success_id": 77}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/actions", body)
		w := httptest.NewRecorder()

		handler.CreateAction(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
		}
	})
}

func TestActionHandler_CreateActionTree(t *testing.T) {
	f := newHandlerFixture()
	handler := NewActionHandler(f.actionService)

	body := bytes.NewBufferString(`{
		"system": "kraken",
		"command": "buy",
		"on_success": {"system": "kraken", "command": "withdraw"},
		"on_fail": {"system": "kraken", "command": "sell"}
	}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/actions/tree", body)
	w := httptest.NewRecorder()

	handler.CreateActionTree(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d (%s)", http.StatusCreated, w.Code, w.Body.String())
	}

	var root models.Action
	if err := json.NewDecoder(w.Body).Decode(&root); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if root.Command != "buy" {
		t.Errorf("expected root to be buy, got %s", root.Command)
	}
	if root.OnSuccessID == nil || root.OnFailID == nil {
		t.Fatal("expected both branches to be linked")
	}

	onSuccess, err := f.actionService.GetAction(*root.OnSuccessID)
	if err != nil {
		t.Fatalf("on_success action: %v", err)
	}
	if onSuccess.Command != "withdraw" {
		t.Errorf("expected on_success withdraw, got %s", onSuccess.Command)
	}
}

func TestActionHandler_GetAction(t *testing.T) {
	t.Run("returns action", func(t *testing.T) {
		f := newHandlerFixture()
		handler := NewActionHandler(f.actionService)

		if _, err := f.actionService.CreateAction(&service.CreateActionRequest{System: "kraken", Command: "sell"}); err != nil {
			t.Fatalf("seed action: %v", err)
		}

		req := withID(httptest.NewRequest(http.MethodGet, "/api/v1/actions/1", nil), "1")
		w := httptest.NewRecorder()

		handler.GetAction(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var action models.Action
		if err := json.NewDecoder(w.Body).Decode(&action); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if action.Command != "sell" {
			t.Errorf("expected sell, got %s", action.Command)
		}
	})

	t.Run("unknown action returns 404", func(t *testing.T) {
		f := newHandlerFixture()
		handler := NewActionHandler(f.actionService)

		req := withID(httptest.NewRequest(http.MethodGet, "/api/v1/actions/42", nil), "42")
		w := httptest.NewRecorder()

		handler.GetAction(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
		}
	})
}

func TestActionHandler_GetActions(t *testing.T) {
	f := newHandlerFixture()
	handler := NewActionHandler(f.actionService)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/actions", nil)
	w := httptest.NewRecorder()
	handler.GetActions(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var actions []*models.Action
	if err := json.NewDecoder(w.Body).Decode(&actions); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(actions) != 0 {
		t.Errorf("expected empty list, got %d", len(actions))
	}
}
