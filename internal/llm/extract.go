package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON is returned when a completion contains no decodable JSON.
var ErrNoJSON = errors.New("llm: no JSON found in completion")

// ExtractArray decodes the outermost JSON array in a completion into out.
// Models wrap their JSON in prose and code fences, so the array is located
// by bracket scan: first '[' to last ']'.
func ExtractArray(completion string, out interface{}) error {
	start := strings.Index(completion, "[")
	end := strings.LastIndex(completion, "]")
	if start < 0 || end < start {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(completion[start:end+1]), out); err != nil {
		return errors.Join(ErrNoJSON, err)
	}
	return nil
}

// ExtractObject decodes the outermost JSON object in a completion into out,
// located by bracket scan: first '{' to last '}'.
func ExtractObject(completion string, out interface{}) error {
	start := strings.Index(completion, "{")
	end := strings.LastIndex(completion, "}")
	if start < 0 || end < start {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(completion[start:end+1]), out); err != nil {
		return errors.Join(ErrNoJSON, err)
	}
	return nil
}
