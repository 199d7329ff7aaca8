// Package normalize extracts structured decisions from LLM output. Models are
// not trusted to honor exact key names or to skip Markdown code fences, so
// every stage response passes through the same tolerant parse path.
package normalize

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/askdb/internal/model"
)

// Schema declares the accepted key names for a stage's main field, in
// priority order. The first key is canonical: whichever alias is present in
// the response gets copied into it.
type Schema struct {
	Field string
	Keys  []string
}

// reasoningKeys are applied to every stage response.
var reasoningKeys = []string{"reasoning", "reason"}

// StripFences removes a Markdown code-fence wrapper if present. The opening
// and closing fences are stripped independently so degenerate output made of
// nothing but backticks cannot slice out of range.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimSpace(s[len("```json"):])
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimSpace(s[len("```"):])
	} else {
		return s
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(s[:len(s)-len("```")])
	}
	return s
}

// Parse decodes a raw stage response and resolves key aliases against the
// schema. It fails closed: any decode error yields nil, which the pipeline
// records as an absent decision and continues past.
func Parse(raw string, schema Schema) model.Decision {
	cleaned := StripFences(raw)
	if cleaned == "" {
		return nil
	}

	var d model.Decision
	if err := json.Unmarshal([]byte(cleaned), &d); err != nil {
		zap.L().Warn("normalize: model output is not valid JSON",
			zap.String("field", schema.Field),
			zap.Error(err),
		)
		return nil
	}

	resolve(d, schema.Field, schema.Keys)
	resolve(d, reasoningKeys[0], reasoningKeys)
	return d
}

// resolve copies the first present alias value into the canonical key.
func resolve(d model.Decision, canonical string, keys []string) {
	if v, ok := d[canonical]; ok && v != nil {
		return
	}
	for _, k := range keys {
		if v, ok := d[k]; ok && v != nil {
			d[canonical] = v
			return
		}
	}
}
