package contract

import (
	"errors"
	"testing"

	"jobledger/internal/domain"
)

func TestValidateDocument(t *testing.T) {
	doc := domain.Document{
		ID:    "7c9f2a4e-2222-4d3b-9a5e-000000000002",
		Name:  "structural-survey.pdf",
		Hash:  "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		Owner: contractor,
	}

	if err := ValidateDocument(AddDocument{}, nil, []domain.Document{doc}); err != nil {
		t.Fatalf("register document: %v", err)
	}

	t.Run("consumes a job input", func(t *testing.T) {
		err := ValidateDocument(AddDocument{}, []domain.Job{agreedJob()}, []domain.Document{doc})
		if !errors.Is(err, ErrDocumentInputs) {
			t.Fatalf("got %v, want %v", err, ErrDocumentInputs)
		}
	})
	t.Run("no output", func(t *testing.T) {
		err := ValidateDocument(AddDocument{}, nil, nil)
		if !errors.Is(err, ErrOneDocumentOutput) {
			t.Fatalf("got %v, want %v", err, ErrOneDocumentOutput)
		}
	})
	t.Run("two outputs", func(t *testing.T) {
		err := ValidateDocument(AddDocument{}, nil, []domain.Document{doc, doc})
		if !errors.Is(err, ErrOneDocumentOutput) {
			t.Fatalf("got %v, want %v", err, ErrOneDocumentOutput)
		}
	})
	t.Run("job command", func(t *testing.T) {
		err := ValidateDocument(AgreeJob{}, nil, []domain.Document{doc})
		if !errors.Is(err, ErrUnrecognisedCommand) {
			t.Fatalf("got %v, want %v", err, ErrUnrecognisedCommand)
		}
	})
}
