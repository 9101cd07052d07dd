// Package lib provides a Go SDK to tag documents with external handlers.
//
// An external handler is a command line program that receives a document (its
// content and metadata) through temporary files or stdin, and produces new
// metadata through its output streams, an output metadata file or both.
//
// # Quick Start
//
// Run a handler configuration on a document:
//
//	client, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	meta := lib.Metadata{"author": {"me"}}
//	res, err := client.TagWithConfig(ctx, lib.HandlerConfig{
//	    Command: "file --brief --mime-type ${INPUT}",
//	    ExtractionRules: []lib.ExtractionRule{
//	        {Pattern: `^(.+/.+)$`, Field: lib.FixedField{Name: "mime", ValueGroup: 1}},
//	    },
//	}, lib.TagOpts{Content: f, Metadata: meta})
//
// # Command Placeholders
//
// The handler command can reference these placeholders, they are replaced with
// temporary file paths (or values) on every execution:
//
//   - ${INPUT}: The document content file.
//   - ${OUTPUT}: The file where the handler writes the transformed content.
//   - ${INPUT_META}: The document metadata file, serialized with the input format.
//   - ${OUTPUT_META}: The file where the handler writes metadata, in the output format.
//   - ${REFERENCE}: The document reference.
//
// Without ${INPUT}, the content is written to the handler stdin.
//
// # Handler Registry
//
// Handler configurations can be registered with a name and used later:
//
//	client.RegisterHandler(ctx, lib.RegisterHandlerOpts{Name: "mime", Config: cfg})
//	client.Tag(ctx, "mime", lib.TagOpts{Content: f, Metadata: meta})
//	client.RemoveHandler(ctx, "mime")
//
// # Error Handling
//
// All methods return errors that can be inspected with [errors.Is]:
//
//   - [ErrNotFound]: Handler does not exist.
//   - [ErrAlreadyExists]: Handler with the same name already exists.
//   - [ErrNotValid]: Invalid handler definition.
//
// Tagging errors are [*TagError] values with the failed stage, and match one of
// [ErrConfiguration], [ErrProcessLaunch], [ErrProcessExecution], [ErrIO],
// [ErrTimeout] or [ErrExtraction].
//
// # Thread Safety
//
// A [Client] is safe for concurrent use from multiple goroutines. Every tagging
// uses its own temporary files.
package lib
