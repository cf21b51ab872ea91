// Package compiler turns a newsletter's ordered content blocks into one
// structured markup document. Block templates are rendered against resolved
// content fields; the assembled document wraps the fragments in fixed
// header/footer sections and document-level metadata.
package compiler

import (
	"fmt"
	"sort"

	"github.com/ignite/newsletter-engine/internal/domain"
	"github.com/ignite/newsletter-engine/internal/pkg/logger"
	"github.com/ignite/newsletter-engine/internal/template"
)

// CompileError reports a template failure for a specific block. It aborts
// compilation of the entire newsletter: a partially compiled document is
// unsafe to send.
type CompileError struct {
	BlockID string
	Err     error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compiling block %s: %v", e.BlockID, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// BlockOutput is the compiled fragment for one block, persisted back to the
// content store alongside the assembled document.
type BlockOutput struct {
	BlockID string
	MJML    string
}

// Document is the result of compiling a newsletter.
type Document struct {
	// MJML is the assembled structured markup (header + fragments + footer
	// wrapped in document metadata).
	MJML string

	// Blocks holds the per-block fragments in render order.
	Blocks []BlockOutput

	// Warnings lists blocks skipped for lacking a usable template.
	Warnings []string
}

// Compiler renders block templates and assembles newsletter documents.
type Compiler struct {
	templates    *template.Engine
	assetBaseURL string
	year         func() int
}

// New creates a compiler. The asset base URL sources the header brand image.
func New(engine *template.Engine, assetBaseURL string) *Compiler {
	return &Compiler{
		templates:    engine,
		assetBaseURL: assetBaseURL,
		year:         currentYear,
	}
}

// Compile produces the structured document for a newsletter.
//
// Blocks render in ascending sort order (ties keep their stored order). A
// block without a usable template is skipped with a warning; a template
// error aborts the whole compile with a *CompileError naming the block.
func (c *Compiler) Compile(n *domain.Newsletter) (*Document, error) {
	blocks := make([]domain.Block, len(n.Blocks))
	copy(blocks, n.Blocks)
	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].Sort < blocks[j].Sort })

	doc := &Document{}
	fragments := make([]string, 0, len(blocks))

	for i := range blocks {
		b := &blocks[i]
		if !b.HasTemplate() {
			msg := fmt.Sprintf("block %s has no template", b.ID)
			doc.Warnings = append(doc.Warnings, msg)
			logger.Warn("skipping block without template",
				"newsletter_id", n.ID, "block_id", b.ID)
			continue
		}

		fragment, err := c.templates.Render(b.BlockType.MJMLTemplate, resolveFields(b, b.BlockType.MJMLTemplate))
		if err != nil {
			return nil, &CompileError{BlockID: b.ID, Err: err}
		}

		doc.Blocks = append(doc.Blocks, BlockOutput{BlockID: b.ID, MJML: fragment})
		fragments = append(fragments, fragment)
	}

	doc.MJML = assembleDocument(n, fragments, c.assetBaseURL, c.year())
	return doc, nil
}
