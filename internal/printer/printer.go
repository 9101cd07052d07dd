package printer

import "github.com/slok/extagger/internal/model"

// Printer knows how to print handlers and tagging results in different formats.
type Printer interface {
	PrintHandlerList(handlers []model.Handler) error
	PrintHandler(h model.Handler) error
	PrintMetadata(meta model.Metadata) error
	PrintMessage(msg string) error
}
