package pagination

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newContext(target string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestFromContext_Defaults(t *testing.T) {
	p := FromContext(newContext("/"))
	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset)
	}
}

func TestFromContext_LimitOffset(t *testing.T) {
	p := FromContext(newContext("/?limit=50&offset=10"))
	if p.Limit != 50 || p.Offset != 10 {
		t.Errorf("expected 50/10, got %d/%d", p.Limit, p.Offset)
	}
}

func TestFromContext_Clamps(t *testing.T) {
	p := FromContext(newContext("/?limit=5000&offset=-3"))
	if p.Limit != MaxLimit {
		t.Errorf("expected limit clamped to %d, got %d", MaxLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected offset clamped to 0, got %d", p.Offset)
	}
}

func TestFromContext_Page(t *testing.T) {
	p := FromContext(newContext("/?limit=10&page=3"))
	if p.Offset != 20 {
		t.Errorf("expected offset 20 for page 3, got %d", p.Offset)
	}
}

func TestFromContext_OffsetWinsOverPage(t *testing.T) {
	p := FromContext(newContext("/?limit=10&page=3&offset=4"))
	if p.Offset != 4 {
		t.Errorf("expected offset 4, got %d", p.Offset)
	}
}

func TestFromContext_Garbage(t *testing.T) {
	p := FromContext(newContext("/?limit=abc&offset=xyz"))
	if p.Limit != DefaultLimit || p.Offset != 0 {
		t.Errorf("expected defaults, got %d/%d", p.Limit, p.Offset)
	}
}

func TestParams_Next(t *testing.T) {
	next, ok := Params{Limit: 10, Offset: 0}.Next(25)
	if !ok || next.Offset != 10 {
		t.Errorf("expected next page at 10, got %v %v", next, ok)
	}
	if _, ok := (Params{Limit: 10, Offset: 20}).Next(25); ok {
		t.Error("expected no page after the last one")
	}
}

func TestNewResponse_HasMore(t *testing.T) {
	resp := NewResponse([]string{"a", "b"}, 5, Params{Limit: 2, Offset: 0})
	if !resp.HasMore {
		t.Error("expected has_more")
	}
	resp = NewResponse([]string{"e"}, 5, Params{Limit: 2, Offset: 4})
	if resp.HasMore {
		t.Error("expected no more results")
	}
}

func TestNewResponse_NilDataEncodesEmptyArray(t *testing.T) {
	var items []int
	b, err := json.Marshal(NewResponse(items, 0, Params{Limit: 20}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if arr, ok := out["data"].([]interface{}); !ok || len(arr) != 0 {
		t.Errorf("expected empty data array, got %v", out["data"])
	}
}
