// Package marker embeds machine-readable payloads inside plain transcript
// text. A marker is an HTML-comment line of the form
//
//	<!--parley:KIND:{...json...}-->
//
// which plain-text consumers render as nothing, while the engine can
// extract (and strip) payloads such as image attachments, weather
// snapshots, and turn-summary tips.
package marker

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Known marker kinds. Unknown kinds are passed through untouched so
// newer writers do not have their content corrupted by older readers.
const (
	KindImage   = "image"
	KindWeather = "weather"
	KindTip     = "tip"
)

var knownKinds = []string{KindImage, KindWeather, KindTip}

// ImagePayload describes an attached image: an opaque base64-encoded
// body plus its media type.
type ImagePayload struct {
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// WeatherPayload is a point-in-time weather snapshot produced by the
// weather tool.
type WeatherPayload struct {
	Location   string  `json:"location"`
	TempC      float64 `json:"temp_c"`
	Condition  string  `json:"condition"`
	ObservedAt string  `json:"observed_at"`
}

// TipPayload carries a model-produced summary of the turn.
type TipPayload struct {
	Summary string `json:"summary"`
}

const (
	prefix = "<!--parley:"
	suffix = "-->"
)

// markerPattern matches one marker of a specific kind. The payload is
// everything up to the closing delimiter on the same line.
func markerPattern(kind string) *regexp.Regexp {
	return regexp.MustCompile(`(?m)^` + regexp.QuoteMeta(prefix+kind+":") + `(.*?)` + regexp.QuoteMeta(suffix) + `[ \t]*$`)
}

var patterns = func() map[string]*regexp.Regexp {
	m := make(map[string]*regexp.Regexp, len(knownKinds))
	for _, kind := range knownKinds {
		m[kind] = markerPattern(kind)
	}
	return m
}()

// Encode serializes payload as compact JSON and wraps it in a marker
// line for the given kind.
func Encode(kind string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marker: encoding %s payload: %w", kind, err)
	}
	return prefix + kind + ":" + string(data) + suffix, nil
}

// Extract finds every marker of the given kind in content, in document
// order, and returns the raw JSON payloads together with the content
// with those marker lines removed. Markers whose payload fails to
// decode as JSON are dropped silently; extraction never fails.
func Extract(kind string, content string) ([]json.RawMessage, string) {
	pattern, ok := patterns[kind]
	if !ok {
		pattern = markerPattern(kind)
	}

	var payloads []json.RawMessage
	remaining := pattern.ReplaceAllStringFunc(content, func(match string) string {
		raw := strings.TrimSuffix(strings.TrimPrefix(strings.TrimRight(match, " \t"), prefix+kind+":"), suffix)
		if json.Valid([]byte(raw)) {
			payloads = append(payloads, json.RawMessage(raw))
		}
		return ""
	})

	return payloads, normalize(remaining)
}

// ExtractImages is a typed convenience over Extract for image markers.
func ExtractImages(content string) ([]ImagePayload, string) {
	raws, remaining := Extract(KindImage, content)
	images := make([]ImagePayload, 0, len(raws))
	for _, raw := range raws {
		var p ImagePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			continue
		}
		images = append(images, p)
	}
	return images, remaining
}

// ExtractTips is a typed convenience over Extract for tip markers.
func ExtractTips(content string) ([]TipPayload, string) {
	raws, remaining := Extract(KindTip, content)
	tips := make([]TipPayload, 0, len(raws))
	for _, raw := range raws {
		var p TipPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			continue
		}
		tips = append(tips, p)
	}
	return tips, remaining
}

// StripAll removes every marker of every known kind from content.
// Unknown kinds survive. The result is stable: stripping twice yields
// the same string.
func StripAll(content string) string {
	for _, kind := range knownKinds {
		content = patterns[kind].ReplaceAllString(content, "")
	}
	return normalize(content)
}

// HasKind reports whether content contains at least one marker of kind.
func HasKind(kind string, content string) bool {
	pattern, ok := patterns[kind]
	if !ok {
		pattern = markerPattern(kind)
	}
	return pattern.MatchString(content)
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

// normalize collapses the blank runs left behind by removed marker
// lines and trims surrounding whitespace.
func normalize(content string) string {
	content = blankRuns.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}
