package log

import "testing"

func TestLogFieldsBuilder(t *testing.T) {
	fields := NewFields().
		WithComponent(ComponentHTTP).
		WithRequestID("req_abc").
		WithClientIP("10.0.0.1").
		WithHTTPRequest("POST", "/api/chat", "", "curl/8.0").
		WithHTTPResponse(200, 12, true)

	want := map[string]any{
		FieldComponent:  ComponentHTTP,
		FieldRequestID:  "req_abc",
		FieldClientIP:   "10.0.0.1",
		FieldMethod:     "POST",
		FieldPath:       "/api/chat",
		FieldQuery:      "",
		FieldUserAgent:  "curl/8.0",
		FieldStatusCode: 200,
		FieldDuration:   int64(12),
		FieldSuccess:    true,
	}
	if len(fields) != len(want) {
		t.Fatalf("fields len = %d, want %d", len(fields), len(want))
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("fields[%q] = %v, want %v", k, fields[k], v)
		}
	}
}

func TestLogFieldsToSlice(t *testing.T) {
	fields := NewFields().WithRequestID("req_1").WithClientIP("127.0.0.1")

	slice := fields.ToSlice()
	if len(slice) != 4 {
		t.Fatalf("slice len = %d, want 4", len(slice))
	}
	got := map[any]any{}
	for i := 0; i < len(slice); i += 2 {
		got[slice[i]] = slice[i+1]
	}
	if got[FieldRequestID] != "req_1" || got[FieldClientIP] != "127.0.0.1" {
		t.Errorf("slice pairs = %v", got)
	}
}
