package interpret

import "testing"

func TestExtractJSONObject_Pure(t *testing.T) {
	in := `{"type": 1, "value": 150}`
	if got := extractJSONObject(in); got != in {
		t.Fatalf("expected object back untouched, got %q", got)
	}
}

func TestExtractJSONObject_CodeFence(t *testing.T) {
	in := "```json\n{\"type\": 0, \"value\": 2000}\n```"
	want := `{"type": 0, "value": 2000}`
	if got := extractJSONObject(in); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestExtractJSONObject_SurroundingProse(t *testing.T) {
	in := "Claro! Aqui está o JSON:\n{\"type\": 1, \"value\": 80}\nQualquer dúvida, avise."
	want := `{"type": 1, "value": 80}`
	if got := extractJSONObject(in); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestExtractJSONObject_NestedBraces(t *testing.T) {
	in := `prefix {"a": {"b": "}"}, "c": 1} suffix`
	want := `{"a": {"b": "}"}, "c": 1}`
	if got := extractJSONObject(in); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestExtractJSONObject_NoObject(t *testing.T) {
	if got := extractJSONObject("Olá, como vai?"); got != "" {
		t.Fatalf("expected empty result for plain text, got %q", got)
	}
}

func TestExtractJSONObject_Unbalanced(t *testing.T) {
	if got := extractJSONObject(`{"type": 1, "value":`); got != "" {
		t.Fatalf("expected empty result for unbalanced object, got %q", got)
	}
}

func TestSanitizeJSONEscapes_DropsInvalid(t *testing.T) {
	in := `{"description": "100\% do mercado"}`
	want := `{"description": "100% do mercado"}`
	if got := sanitizeJSONEscapes(in); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestSanitizeJSONEscapes_KeepsValid(t *testing.T) {
	in := `{"description": "linha1\nlinha2\ttab \"aspas\""}`
	if got := sanitizeJSONEscapes(in); got != in {
		t.Fatalf("valid escapes must not change:\n  got:  %q\n  want: %q", got, in)
	}
}
