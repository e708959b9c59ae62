package parse

import "testing"

func TestObject_PlainJSON(t *testing.T) {
	var out map[string]int
	err := Object(`{"a": 1, "b": 2}`, &out)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if out["a"] != 1 || out["b"] != 2 {
		t.Errorf("Expected a=1 b=2, got %v", out)
	}
}

func TestObject_FencedWithProse(t *testing.T) {
	raw := "Here is the result:\n```json\n{\"score\": 7.5}\n```\nHope that helps."
	var out struct {
		Score float64 `json:"score"`
	}
	if err := Object(raw, &out); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if out.Score != 7.5 {
		t.Errorf("Expected score 7.5, got %v", out.Score)
	}
}

func TestObject_RepairsTrailingComma(t *testing.T) {
	var out map[string]string
	if err := Object(`{"name": "coverage",}`, &out); err != nil {
		t.Fatalf("Expected repair to succeed, got %v", err)
	}
	if out["name"] != "coverage" {
		t.Errorf("Expected name=coverage, got %v", out)
	}
}

func TestObject_NoObject(t *testing.T) {
	var out map[string]string
	if err := Object("I could not produce a rubric.", &out); err == nil {
		t.Error("Expected error for response without JSON object")
	}
}

func TestArray_StringList(t *testing.T) {
	raw := "```\n[\"first part\", \"second part\"]\n```"
	var out []string
	if err := Array(raw, &out); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("Expected 2 elements, got %d", len(out))
	}
	if out[0] != "first part" {
		t.Errorf("Expected 'first part', got %q", out[0])
	}
}

func TestExtractJSONObject_TakesOuterBraces(t *testing.T) {
	s, err := ExtractJSONObject(`noise {"a": {"b": 1}} trailing`)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if s != `{"a": {"b": 1}}` {
		t.Errorf("Expected outer object, got %q", s)
	}
}
