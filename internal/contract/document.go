package contract

import (
	"jobledger/internal/domain"
)

// ValidateDocument is the document-registration contract: a single rule
// with no state machine behind it. Registering a document consumes no job
// state and produces exactly one record.
func ValidateDocument(cmd Command, jobInputs []domain.Job, outputs []domain.Document) error {
	switch cmd.(type) {
	case AddDocument:
		if len(jobInputs) != 0 {
			return ErrDocumentInputs
		}
		if len(outputs) != 1 {
			return ErrOneDocumentOutput
		}
		return nil
	default:
		return ErrUnrecognisedCommand
	}
}
