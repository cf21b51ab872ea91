// Package compile orchestrates newsletter compilation: render every block
// template, assemble the document, convert it to email-safe HTML, and
// persist the result as the newsletter's compiled cache.
package compile

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignite/newsletter-engine/internal/compiler"
	"github.com/ignite/newsletter-engine/internal/domain"
	"github.com/ignite/newsletter-engine/internal/markup"
	"github.com/ignite/newsletter-engine/internal/pkg/distlock"
	"github.com/ignite/newsletter-engine/internal/pkg/logger"
	"github.com/ignite/newsletter-engine/internal/store"
)

// ErrInProgress is returned when another compile of the same newsletter
// holds the lock.
var ErrInProgress = errors.New("compile already in progress for this newsletter")

// Result reports a successful compile.
type Result struct {
	NewsletterID   string   `json:"newsletter_id"`
	BlocksCompiled int      `json:"blocks_compiled"`
	Warnings       []string `json:"warnings,omitempty"`
	MJML           string   `json:"-"`
	HTML           string   `json:"-"`
}

// Service runs the compilation pipeline behind a per-newsletter lock so
// concurrent requests never interleave cache writes.
type Service struct {
	repo     store.Repository
	compiler *compiler.Compiler
	locks    *distlock.Factory
}

// NewService creates a compile service.
func NewService(repo store.Repository, comp *compiler.Compiler, locks *distlock.Factory) *Service {
	return &Service{repo: repo, compiler: comp, locks: locks}
}

// Compile compiles one newsletter end to end.
//
// Per-block fragments are persisted best effort; a block write failure is
// logged but does not fail the compile. The newsletter's compiled MJML and
// HTML are replaced together in a single update, so readers see either the
// old cache or the new one, never a mix. A draft newsletter is promoted to
// ready once it has a compiled document.
func (s *Service) Compile(ctx context.Context, newsletterID string) (*Result, error) {
	lock := s.locks.ForKey("compile:newsletter:" + newsletterID)
	ok, err := lock.TryAcquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire compile lock: %w", err)
	}
	if !ok {
		return nil, ErrInProgress
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			logger.Warn("compile lock release failed",
				"newsletter_id", newsletterID, "error", err.Error())
		}
	}()

	newsletter, err := s.repo.GetNewsletterWithBlocks(ctx, newsletterID)
	if err != nil {
		return nil, err
	}

	doc, err := s.compiler.Compile(newsletter)
	if err != nil {
		return nil, err
	}

	for _, b := range doc.Blocks {
		mjml := b.MJML
		if err := s.repo.UpdateBlock(ctx, b.BlockID, store.BlockUpdate{MJMLOutput: &mjml}); err != nil {
			logger.Warn("block output write failed",
				"newsletter_id", newsletterID, "block_id", b.BlockID, "error", err.Error())
		}
	}

	rendered := markup.Render(doc.MJML)

	update := store.NewsletterUpdate{
		CompiledMJML: &doc.MJML,
		CompiledHTML: &rendered.HTML,
	}
	if newsletter.Status == domain.NewsletterDraft {
		ready := domain.NewsletterReady
		update.Status = &ready
	}
	if err := s.repo.UpdateNewsletter(ctx, newsletterID, update); err != nil {
		return nil, fmt.Errorf("persist compiled newsletter: %w", err)
	}

	warnings := append([]string{}, doc.Warnings...)
	warnings = append(warnings, rendered.Warnings...)

	logger.Info("newsletter compiled",
		"newsletter_id", newsletterID,
		"blocks", len(doc.Blocks),
		"warnings", len(warnings))

	return &Result{
		NewsletterID:   newsletterID,
		BlocksCompiled: len(doc.Blocks),
		Warnings:       warnings,
		MJML:           doc.MJML,
		HTML:           rendered.HTML,
	}, nil
}
