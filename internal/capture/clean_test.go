package capture

import "testing"

func TestCleanTranscription(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello", "hello"},
		{"newlines", " hello\r\nthere\n", "hello there"},
		{"blank audio", "[BLANK_AUDIO]", ""},
		{"inline artifact", "turn (keyboard clicking) left", "turn left"},
		{"bracketed", "[Music] what time is it", "what time is it"},
		{"timestamp", "[00:00:00.000 --> 00:00:02.000]  hello", "hello"},
		{"hallucination", "Thank you.", ""},
		{"hallucination case", "  YOU ", ""},
		{"keeps real thanks", "thank you for the help", "thank you for the help"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanTranscription(tt.in); got != tt.want {
				t.Fatalf("CleanTranscription(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
