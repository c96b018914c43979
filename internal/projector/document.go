package projector

import (
	"encoding/json"

	"claimflow/internal/domain"
)

// EnvelopeDocument is the tree mapping paths are evaluated against. The fields
// of a JSON object response are at the root, so "/score/score" works, and the
// envelope fields sit beside them, so "$.rawResponse.answer" and
// "$.apiResponse.answer" work too. Envelope fields win on collision.
func EnvelopeDocument(env *domain.ResultEnvelope) map[string]any {
	doc := map[string]any{}
	var body map[string]any
	if err := json.Unmarshal([]byte(env.RawResponse), &body); err == nil {
		for k, v := range body {
			doc[k] = v
		}
	}
	for k, v := range env.Document() {
		doc[k] = v
	}
	doc["apiResponse"] = env.RawResponse
	return doc
}
