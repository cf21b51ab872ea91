package compile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/newsletter-engine/internal/compiler"
	"github.com/ignite/newsletter-engine/internal/domain"
	"github.com/ignite/newsletter-engine/internal/pkg/distlock"
	"github.com/ignite/newsletter-engine/internal/store"
	"github.com/ignite/newsletter-engine/internal/template"
)

type fakeRepo struct {
	newsletter *domain.Newsletter

	blockUpdates      map[string]store.BlockUpdate
	newsletterUpdates []store.NewsletterUpdate
	blockUpdateErr    error
	newsletterErr     error
}

func (r *fakeRepo) GetNewsletterWithBlocks(_ context.Context, id string) (*domain.Newsletter, error) {
	if r.newsletter == nil || r.newsletter.ID != id {
		return nil, store.ErrNotFound
	}
	return r.newsletter, nil
}

func (r *fakeRepo) GetSendRecordWithAudience(_ context.Context, _ string) (*domain.SendRecord, *domain.MailingList, error) {
	return nil, nil, store.ErrNotFound
}

func (r *fakeRepo) UpdateBlock(_ context.Context, id string, u store.BlockUpdate) error {
	if r.blockUpdateErr != nil {
		return r.blockUpdateErr
	}
	if r.blockUpdates == nil {
		r.blockUpdates = map[string]store.BlockUpdate{}
	}
	r.blockUpdates[id] = u
	return nil
}

func (r *fakeRepo) UpdateNewsletter(_ context.Context, _ string, u store.NewsletterUpdate) error {
	if r.newsletterErr != nil {
		return r.newsletterErr
	}
	r.newsletterUpdates = append(r.newsletterUpdates, u)
	return nil
}

func (r *fakeRepo) UpdateSendRecord(_ context.Context, _ string, _ store.SendRecordUpdate) error {
	return nil
}

func blockType(template string) *domain.BlockType {
	return &domain.BlockType{ID: "bt-1", Name: "text", MJMLTemplate: template}
}

func testNewsletter() *domain.Newsletter {
	return &domain.Newsletter{
		ID:          "nl-1",
		Title:       "Weekly",
		SubjectLine: "This Week",
		Status:      domain.NewsletterDraft,
		Blocks: []domain.Block{
			{
				ID:        "b-1",
				Sort:      1,
				Title:     "Intro",
				BlockType: blockType(`<mj-text>{{ title }}</mj-text>`),
			},
			{
				ID:          "b-2",
				Sort:        2,
				TextContent: "read on",
				BlockType:   blockType(`<mj-text>{{ text_content }}</mj-text>`),
			},
		},
	}
}

func testService(repo *fakeRepo) *Service {
	comp := compiler.New(template.NewEngine(), "https://example.com")
	return NewService(repo, comp, distlock.NewFactory(nil, nil, time.Minute))
}

func TestCompilePersistsDocument(t *testing.T) {
	repo := &fakeRepo{newsletter: testNewsletter()}
	svc := testService(repo)

	result, err := svc.Compile(context.Background(), "nl-1")
	require.NoError(t, err)

	assert.Equal(t, 2, result.BlocksCompiled)
	assert.Contains(t, result.MJML, "<mj-text>Intro</mj-text>")
	assert.Contains(t, result.MJML, "<mj-text>read on</mj-text>")
	assert.Contains(t, result.HTML, "Intro")

	// per-block fragments were written back
	require.Len(t, repo.blockUpdates, 2)
	assert.Equal(t, "<mj-text>Intro</mj-text>", *repo.blockUpdates["b-1"].MJMLOutput)

	// one cache update carrying both representations plus the promotion
	require.Len(t, repo.newsletterUpdates, 1)
	u := repo.newsletterUpdates[0]
	require.NotNil(t, u.CompiledMJML)
	require.NotNil(t, u.CompiledHTML)
	assert.Equal(t, result.MJML, *u.CompiledMJML)
	assert.Equal(t, result.HTML, *u.CompiledHTML)
	require.NotNil(t, u.Status)
	assert.Equal(t, domain.NewsletterReady, *u.Status)
}

func TestCompileKeepsNonDraftStatus(t *testing.T) {
	repo := &fakeRepo{newsletter: testNewsletter()}
	repo.newsletter.Status = domain.NewsletterSent
	svc := testService(repo)

	_, err := svc.Compile(context.Background(), "nl-1")
	require.NoError(t, err)
	require.Len(t, repo.newsletterUpdates, 1)
	assert.Nil(t, repo.newsletterUpdates[0].Status)
}

func TestCompileNotFound(t *testing.T) {
	svc := testService(&fakeRepo{})
	_, err := svc.Compile(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCompileTemplateErrorNamesBlock(t *testing.T) {
	repo := &fakeRepo{newsletter: testNewsletter()}
	repo.newsletter.Blocks[1].BlockType = blockType(`{% broken`)
	svc := testService(repo)

	_, err := svc.Compile(context.Background(), "nl-1")
	require.Error(t, err)

	var cerr *compiler.CompileError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "b-2", cerr.BlockID)

	// nothing was persisted after the abort
	assert.Empty(t, repo.newsletterUpdates)
}

func TestCompileBlockWriteFailureIsNonFatal(t *testing.T) {
	repo := &fakeRepo{newsletter: testNewsletter()}
	repo.blockUpdateErr = errors.New("store hiccup")
	svc := testService(repo)

	result, err := svc.Compile(context.Background(), "nl-1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.BlocksCompiled)
	require.Len(t, repo.newsletterUpdates, 1)
}

func TestCompileSkipsBlockWithoutTemplate(t *testing.T) {
	repo := &fakeRepo{newsletter: testNewsletter()}
	repo.newsletter.Blocks[0].BlockType = nil
	svc := testService(repo)

	result, err := svc.Compile(context.Background(), "nl-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.BlocksCompiled)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "b-1")
}

func TestCompileLockExcludesConcurrentRun(t *testing.T) {
	repo := &fakeRepo{newsletter: testNewsletter()}
	comp := compiler.New(template.NewEngine(), "https://example.com")
	locks := distlock.NewFactory(nil, nil, time.Minute)
	svc := NewService(repo, comp, locks)

	// Hold the lock the service will ask for.
	lock := locks.ForKey("compile:newsletter:nl-1")
	ok, err := lock.TryAcquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	defer func() { _ = lock.Release(context.Background()) }()

	_, err = svc.Compile(context.Background(), "nl-1")
	assert.ErrorIs(t, err, ErrInProgress)
}

func TestCompileReleasesLock(t *testing.T) {
	repo := &fakeRepo{newsletter: testNewsletter()}
	svc := testService(repo)

	_, err := svc.Compile(context.Background(), "nl-1")
	require.NoError(t, err)

	// a second run acquires the lock again
	_, err = svc.Compile(context.Background(), "nl-1")
	require.NoError(t, err)
}
