package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/slok/extagger/internal/model"
	storageio "github.com/slok/extagger/internal/storage/io"
)

// JSONPrinter prints information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// listItem represents a handler in the list output (subset of fields).
type listItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Command   string    `json:"command"`
	Rules     int       `json:"rules"`
	CreatedAt time.Time `json:"created_at"`
}

// handlerOutput represents the full handler output, the definition uses the same
// layout as the handler YAML files.
type handlerOutput struct {
	ID         string            `json:"id"`
	CreatedAt  time.Time         `json:"created_at"`
	Definition storageio.Handler `json:"definition"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

// PrintHandlerList prints handlers in JSON format with a subset of fields.
func (j *JSONPrinter) PrintHandlerList(handlers []model.Handler) error {
	items := make([]listItem, len(handlers))
	for i, h := range handlers {
		items[i] = listItem{
			ID:        h.ID,
			Name:      h.Name,
			Command:   h.Config.Command,
			Rules:     len(h.Config.ExtractionRules),
			CreatedAt: h.CreatedAt.UTC(),
		}
	}

	return j.encode(items)
}

// PrintHandler prints a handler in JSON format.
func (j *JSONPrinter) PrintHandler(h model.Handler) error {
	return j.encode(handlerOutput{
		ID:         h.ID,
		CreatedAt:  h.CreatedAt.UTC(),
		Definition: storageio.FromModel(h),
	})
}

// PrintMetadata prints metadata as a JSON object of value arrays.
func (j *JSONPrinter) PrintMetadata(meta model.Metadata) error {
	if meta == nil {
		meta = model.Metadata{}
	}
	return j.encode(meta)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
