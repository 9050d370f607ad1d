package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"

	"alchemist/internal/services"
	"alchemist/internal/stage"
)

// URLPayload addresses a source page.
type URLPayload struct {
	URL string `json:"url"`
}

// RawPayload addresses a raw row.
type RawPayload struct {
	RawID int64 `json:"raw_id"`
}

// FactPayload addresses a fact and the language to write it in.
type FactPayload struct {
	FactID int64  `json:"fact_id"`
	Lang   string `json:"lang,omitempty"`
}

// ContentPayload addresses a content item.
type ContentPayload struct {
	ContentID int64 `json:"content_id"`
}

// PublishPayload addresses one content item on one platform.
type PublishPayload struct {
	ContentID int64  `json:"content_id"`
	Platform  string `json:"platform"`
}

func decodePayload[T any](task string, raw json.RawMessage) (T, error) {
	var out T
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, services.Wrap(services.ErrValidation, task, "payload", fmt.Sprintf("decode %s", raw), err)
	}
	return out, nil
}

func invalidPayload(task, message string) stage.Outcome {
	return stage.Reject("invalid payload", services.Wrap(services.ErrValidation, task, "payload", message, nil))
}
