package models

import "encoding/json"

// LearningStyle represents how a user prefers material to be presented
type LearningStyle string

const (
	LearningStyleVisual    LearningStyle = "visual"
	LearningStyleTextual   LearningStyle = "textual"
	LearningStyleHandsOn   LearningStyle = "hands_on"
	LearningStyleCodeFirst LearningStyle = "code_first"
)

// Difficulty represents a difficulty level
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// ResponseFormat represents the preferred output format
type ResponseFormat string

const (
	ResponseFormatText     ResponseFormat = "text"
	ResponseFormatHTML     ResponseFormat = "html"
	ResponseFormatMarkdown ResponseFormat = "markdown"
)

// Preferences holds a user's learning preferences. Recognized keys are typed
// fields; unrecognized keys round-trip through Extra so callers can attach
// preference keys this service doesn't know about yet.
type Preferences struct {
	LearningStyle        *LearningStyle  `json:"learning_style,omitempty"`
	DifficultyPreference *Difficulty     `json:"difficulty_preference,omitempty"`
	Language             *string         `json:"language,omitempty"`
	IncludeCode          *bool           `json:"include_code,omitempty"`
	IncludeMath          *bool           `json:"include_math,omitempty"`
	ResponseFormat       *ResponseFormat `json:"response_format,omitempty"`
	Extra                map[string]any  `json:"-"`
}

// knownPreferenceKeys are the keys handled by typed fields
var knownPreferenceKeys = map[string]bool{
	"learning_style":        true,
	"difficulty_preference": true,
	"language":              true,
	"include_code":          true,
	"include_math":          true,
	"response_format":       true,
}

// DefaultPreferences returns the preferences a freshly created profile starts with
func DefaultPreferences() Preferences {
	style := LearningStyleTextual
	difficulty := DifficultyIntermediate
	language := "en-US"
	includeCode := true
	includeMath := true
	format := ResponseFormatHTML

	return Preferences{
		LearningStyle:        &style,
		DifficultyPreference: &difficulty,
		Language:             &language,
		IncludeCode:          &includeCode,
		IncludeMath:          &includeMath,
		ResponseFormat:       &format,
	}
}

// Merge overwrites keys present in delta, leaving unspecified keys untouched.
// Last write wins per key.
func (p *Preferences) Merge(delta Preferences) {
	if delta.LearningStyle != nil {
		v := *delta.LearningStyle
		p.LearningStyle = &v
	}
	if delta.DifficultyPreference != nil {
		v := *delta.DifficultyPreference
		p.DifficultyPreference = &v
	}
	if delta.Language != nil {
		v := *delta.Language
		p.Language = &v
	}
	if delta.IncludeCode != nil {
		v := *delta.IncludeCode
		p.IncludeCode = &v
	}
	if delta.IncludeMath != nil {
		v := *delta.IncludeMath
		p.IncludeMath = &v
	}
	if delta.ResponseFormat != nil {
		v := *delta.ResponseFormat
		p.ResponseFormat = &v
	}
	if len(delta.Extra) > 0 {
		if p.Extra == nil {
			p.Extra = make(map[string]any, len(delta.Extra))
		}
		for k, v := range delta.Extra {
			p.Extra[k] = v
		}
	}
}

// IsEmpty reports whether no preference key is set
func (p Preferences) IsEmpty() bool {
	return p.LearningStyle == nil &&
		p.DifficultyPreference == nil &&
		p.Language == nil &&
		p.IncludeCode == nil &&
		p.IncludeMath == nil &&
		p.ResponseFormat == nil &&
		len(p.Extra) == 0
}

// MarshalJSON flattens typed fields and Extra into a single object
func (p Preferences) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 6+len(p.Extra))
	for k, v := range p.Extra {
		if !knownPreferenceKeys[k] {
			out[k] = v
		}
	}
	if p.LearningStyle != nil {
		out["learning_style"] = *p.LearningStyle
	}
	if p.DifficultyPreference != nil {
		out["difficulty_preference"] = *p.DifficultyPreference
	}
	if p.Language != nil {
		out["language"] = *p.Language
	}
	if p.IncludeCode != nil {
		out["include_code"] = *p.IncludeCode
	}
	if p.IncludeMath != nil {
		out["include_math"] = *p.IncludeMath
	}
	if p.ResponseFormat != nil {
		out["response_format"] = *p.ResponseFormat
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits a flat object into typed fields plus the Extra overflow map
func (p *Preferences) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = Preferences{}
	for k, v := range raw {
		switch k {
		case "learning_style":
			var s LearningStyle
			if err := json.Unmarshal(v, &s); err != nil {
				return err
			}
			p.LearningStyle = &s
		case "difficulty_preference":
			var d Difficulty
			if err := json.Unmarshal(v, &d); err != nil {
				return err
			}
			p.DifficultyPreference = &d
		case "language":
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return err
			}
			p.Language = &s
		case "include_code":
			var b bool
			if err := json.Unmarshal(v, &b); err != nil {
				return err
			}
			p.IncludeCode = &b
		case "include_math":
			var b bool
			if err := json.Unmarshal(v, &b); err != nil {
				return err
			}
			p.IncludeMath = &b
		case "response_format":
			var f ResponseFormat
			if err := json.Unmarshal(v, &f); err != nil {
				return err
			}
			p.ResponseFormat = &f
		default:
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return err
			}
			if p.Extra == nil {
				p.Extra = make(map[string]any)
			}
			p.Extra[k] = val
		}
	}
	return nil
}
