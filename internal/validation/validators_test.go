package validation

import (
	"strings"
	"testing"
)

func TestValidateLearningStyle(t *testing.T) {
	t.Parallel()

	valid := []string{"visual", "textual", "hands_on", "code_first"}
	for _, v := range valid {
		if err := ValidateLearningStyle(v); err != nil {
			t.Errorf("ValidateLearningStyle(%q) = %v, want nil", v, err)
		}
	}

	invalid := []string{"", "auditory", "VISUAL", "code-first"}
	for _, v := range invalid {
		if err := ValidateLearningStyle(v); err == nil {
			t.Errorf("ValidateLearningStyle(%q) = nil, want error", v)
		}
	}
}

func TestValidateDifficulty(t *testing.T) {
	t.Parallel()

	valid := []string{"beginner", "intermediate", "advanced"}
	for _, v := range valid {
		if err := ValidateDifficulty(v); err != nil {
			t.Errorf("ValidateDifficulty(%q) = %v, want nil", v, err)
		}
	}

	invalid := []string{"", "expert", "Beginner"}
	for _, v := range invalid {
		if err := ValidateDifficulty(v); err == nil {
			t.Errorf("ValidateDifficulty(%q) = nil, want error", v)
		}
	}
}

func TestValidateResponseFormat(t *testing.T) {
	t.Parallel()

	valid := []string{"text", "html", "markdown"}
	for _, v := range valid {
		if err := ValidateResponseFormat(v); err != nil {
			t.Errorf("ValidateResponseFormat(%q) = %v, want nil", v, err)
		}
	}

	invalid := []string{"", "json", "Markdown"}
	for _, v := range invalid {
		if err := ValidateResponseFormat(v); err == nil {
			t.Errorf("ValidateResponseFormat(%q) = nil, want error", v)
		}
	}
}

func TestValidateMessageRole(t *testing.T) {
	t.Parallel()

	valid := []string{"user", "assistant", "system"}
	for _, v := range valid {
		if err := ValidateMessageRole(v); err != nil {
			t.Errorf("ValidateMessageRole(%q) = %v, want nil", v, err)
		}
	}

	invalid := []string{"", "tool", "User"}
	for _, v := range invalid {
		if err := ValidateMessageRole(v); err == nil {
			t.Errorf("ValidateMessageRole(%q) = nil, want error", v)
		}
	}
}

func TestValidateUserID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{name: "simple id", value: "user-123"},
		{name: "uuid style", value: "4f2a6c1e-9b7d-4a3e-8a5f-1c2d3e4f5a6b"},
		{name: "empty", value: "", wantErr: true},
		{name: "too long", value: strings.Repeat("a", 65), wantErr: true},
		{name: "max length", value: strings.Repeat("a", 64)},
		{name: "contains space", value: "user 1", wantErr: true},
		{name: "contains newline", value: "user\n1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateUserID(tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUserID(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
		})
	}
}

func TestValidateSessionID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{name: "simple id", value: "session-abc"},
		{name: "empty", value: "", wantErr: true},
		{name: "max length", value: strings.Repeat("s", 128)},
		{name: "too long", value: strings.Repeat("s", 129), wantErr: true},
		{name: "contains tab", value: "sess\tion", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateSessionID(tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSessionID(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "trims whitespace", input: "  hello  ", want: "hello"},
		{name: "keeps newline and tab", input: "a\n\tb", want: "a\n\tb"},
		{name: "strips control characters", input: "a\x00b\x1bc", want: "abc"},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizeText(tt.input); got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRegisteredValidators(t *testing.T) {
	t.Parallel()

	type payload struct {
		Style  string `validate:"learning_style"`
		Level  string `validate:"difficulty"`
		Format string `validate:"response_format"`
		Role   string `validate:"message_role"`
	}

	good := payload{Style: "visual", Level: "beginner", Format: "text", Role: "user"}
	if err := Validate.Struct(good); err != nil {
		t.Errorf("Validate.Struct(valid payload) = %v, want nil", err)
	}

	bad := payload{Style: "psychic", Level: "beginner", Format: "text", Role: "user"}
	if err := Validate.Struct(bad); err == nil {
		t.Error("Validate.Struct(invalid payload) = nil, want error")
	}
}
