package llm

import "testing"

func TestDecodeLLMJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{name: "plain", content: `{"pump_model":"X"}`},
		{name: "fenced", content: "```json\n{\"pump_model\":\"X\"}\n```"},
		{name: "prose", content: "Here is the data: {\"pump_model\":\"X\"} hope it helps"},
		{name: "empty", content: "   ", wantErr: true},
		{name: "garbage", content: "no json here", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out map[string]string
			err := DecodeLLMJSON(tt.content, &out)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", out)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeLLMJSON: %v", err)
			}
			if out["pump_model"] != "X" {
				t.Fatalf("unexpected payload %v", out)
			}
		})
	}
}

func TestDecodeObjectRejectsNonObjects(t *testing.T) {
	for _, content := range []string{`[1,2]`, `"text"`, `null`, `42`} {
		if _, err := DecodeObject(content); err == nil {
			t.Fatalf("expected %s to be rejected", content)
		}
	}
	obj, err := DecodeObject(`{"a":1}`)
	if err != nil || obj["a"] != float64(1) {
		t.Fatalf("unexpected result %v %v", obj, err)
	}
}
