package jobs

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Source provides the postings of the remote listing.
type Source interface {
	Fetch(ctx context.Context) ([]Posting, error)
}

// Board holds the fetched postings together with the saved and applied sets.
type Board struct {
	source  Source
	storage Storage

	mu       sync.RWMutex
	state    LoadState
	postings []Posting
}

// NewBoard returns Board.
func NewBoard(source Source, storage Storage) *Board {
	return &Board{
		source:  source,
		storage: storage,
	}
}

// Load fetches postings once per session. Calls made while a fetch is in
// flight or after a successful one are no-ops. A failed fetch leaves the
// postings empty and may be repeated by a later call.
func (b *Board) Load(ctx context.Context) error {
	b.mu.Lock()
	if b.state == Loading || b.state == Loaded {
		b.mu.Unlock()
		return nil
	}
	b.state = Loading
	b.mu.Unlock()

	postings, err := b.source.Fetch(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.state = Failed
		b.postings = nil
		return err
	}
	b.state = Loaded
	b.postings = postings
	logrus.WithField("count", len(postings)).Info("Postings loaded")
	return nil
}

// State returns the current load state.
func (b *Board) State() LoadState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Postings returns all loaded postings in listing order.
func (b *Board) Postings() []Posting {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Posting, len(b.postings))
	copy(out, b.postings)
	return out
}

// Search returns loaded postings filtered by title.
func (b *Board) Search(query string) []Posting {
	return Filter(b.Postings(), query)
}

// Posting looks a loaded posting up by id.
func (b *Board) Posting(id string) (Posting, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, p := range b.postings {
		if p.ID == id {
			return p, true
		}
	}
	return Posting{}, false
}

// AddToSaved saves p unless a posting with the same id is already saved.
func (b *Board) AddToSaved(p Posting) error {
	return errors.Wrap(b.storage.AddSaved(p), "failed to save posting")
}

// RemoveFromSaved drops the saved posting with id, if any.
func (b *Board) RemoveFromSaved(id string) error {
	return errors.Wrap(b.storage.RemoveSaved(id), "failed to remove saved posting")
}

// MarkApplied records an application for id. It can't be undone.
func (b *Board) MarkApplied(id string) error {
	return errors.Wrap(b.storage.MarkApplied(id), "failed to mark posting applied")
}

// Saved returns the saved postings in the order they were saved.
func (b *Board) Saved() ([]Posting, error) {
	saved, err := b.storage.GetAllSaved()
	return saved, errors.Wrap(err, "failed to list saved postings")
}

// Applied returns the applied posting ids.
func (b *Board) Applied() ([]string, error) {
	applied, err := b.storage.GetAllApplied()
	return applied, errors.Wrap(err, "failed to list applied postings")
}

// IsSaved reports whether the posting with id is saved.
func (b *Board) IsSaved(id string) (bool, error) {
	ok, err := b.storage.CheckSaved(id)
	return ok, errors.Wrap(err, "failed to check saved posting")
}

// IsApplied reports whether an application for id was submitted.
func (b *Board) IsApplied(id string) (bool, error) {
	ok, err := b.storage.CheckApplied(id)
	return ok, errors.Wrap(err, "failed to check applied posting")
}
