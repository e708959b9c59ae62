// Package parse turns raw LLM output into typed values. Model responses are
// never passed downstream as untyped text: every consumer goes through a
// strict parse step that either yields a value or a reason it failed.
package parse

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var fencePattern = regexp.MustCompile("(?is)^```(?:json)?\\s*|\\s*```$")

// StripFences removes Markdown code fences around a model response.
func StripFences(s string) string {
	return strings.TrimSpace(fencePattern.ReplaceAllString(strings.TrimSpace(s), ""))
}

// ExtractJSONObject returns the substring from the first '{' to the last '}'.
func ExtractJSONObject(s string) (string, error) {
	s = StripFences(s)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("no JSON object found in response")
	}
	return s[start : end+1], nil
}

// ExtractJSONArray returns the substring from the first '[' to the last ']'.
func ExtractJSONArray(s string) (string, error) {
	s = StripFences(s)
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("no JSON array found in response")
	}
	return s[start : end+1], nil
}

// Object unmarshals a model response into out, expecting a JSON object. A
// first strict pass is followed by a jsonrepair pass for the usual model
// damage (trailing commas, single quotes, truncated fences).
func Object(raw string, out any) error {
	block, err := ExtractJSONObject(raw)
	if err != nil {
		return err
	}
	return unmarshalRepaired(block, out)
}

// Array unmarshals a model response into out, expecting a JSON array.
func Array(raw string, out any) error {
	block, err := ExtractJSONArray(raw)
	if err != nil {
		return err
	}
	return unmarshalRepaired(block, out)
}

func unmarshalRepaired(block string, out any) error {
	if err := json.Unmarshal([]byte(block), out); err == nil {
		return nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(block)
	if repairErr != nil {
		return fmt.Errorf("unparsable JSON in response: %w", repairErr)
	}
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return fmt.Errorf("unparsable JSON in response: %w", err)
	}
	return nil
}
