package catalog

import (
	"context"
	"strings"

	"github.com/ent0n29/sashi/internal/model"
)

const defaultNoteTitle = "Untitled"

type NoteInput struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// ListNotes returns notes, most recently edited first.
func (s *Service) ListNotes(ctx context.Context) ([]model.Note, error) {
	out, err := s.store.ListNotes(ctx)
	if err != nil {
		return nil, s.report.Wrap("notes.list", "", err)
	}
	return out, nil
}

func (s *Service) CreateNote(ctx context.Context, in NoteInput) (model.Note, error) {
	title := strings.TrimSpace(model.StringValue(in.Title))
	if title == "" {
		title = defaultNoteTitle
	}
	now := s.now()
	n := model.Note{
		ID:        model.NewID(),
		Title:     title,
		Content:   model.StringValue(in.Content),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateNote(ctx, n); err != nil {
		return model.Note{}, s.report.Wrap("notes.create", n.ID, err)
	}
	return n, nil
}

func (s *Service) GetNote(ctx context.Context, id string) (model.Note, error) {
	id = strings.TrimSpace(id)
	n, err := s.store.GetNote(ctx, id)
	if err != nil {
		return model.Note{}, s.report.Wrap("notes.get", id, err)
	}
	return n, nil
}

func (s *Service) UpdateNote(ctx context.Context, id string, in NoteInput) (model.Note, error) {
	id = strings.TrimSpace(id)
	if in.Title == nil && in.Content == nil {
		return model.Note{}, model.NewValidationError("", "no fields to update")
	}
	n, err := s.store.GetNote(ctx, id)
	if err != nil {
		return model.Note{}, s.report.Wrap("notes.update", id, err)
	}
	if in.Title != nil {
		n.Title = strings.TrimSpace(*in.Title)
		if n.Title == "" {
			n.Title = defaultNoteTitle
		}
	}
	if in.Content != nil {
		n.Content = *in.Content
	}
	n.UpdatedAt = s.now()
	if err := s.store.UpdateNote(ctx, n); err != nil {
		return model.Note{}, s.report.Wrap("notes.update", id, err)
	}
	return n, nil
}

// DeleteNote succeeds whether or not the note existed.
func (s *Service) DeleteNote(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if _, err := s.store.DeleteNote(ctx, id); err != nil {
		return s.report.Wrap("notes.delete", id, err)
	}
	return nil
}
