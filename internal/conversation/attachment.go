package conversation

import (
	"context"
	"fmt"
	"strings"
)

// OutcomeKind classifies what the user sent at the attachment stage.
type OutcomeKind int

const (
	// OutcomeInvalid means the input cannot be used; the user is asked again.
	OutcomeInvalid OutcomeKind = iota
	// OutcomeSkipped means the user declined to attach anything.
	OutcomeSkipped
	// OutcomeDocument carries a downloaded document.
	OutcomeDocument
	// OutcomeImage carries the largest variant of a downloaded photo.
	OutcomeImage
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeDocument:
		return "document"
	case OutcomeImage:
		return "image"
	default:
		return "invalid"
	}
}

// Outcome is the result of resolving an attachment-stage event.
type Outcome struct {
	Kind       OutcomeKind
	Attachment *Attachment
}

// Accepted reports whether the outcome lets the conversation finish.
func (o Outcome) Accepted() bool {
	return o.Kind != OutcomeInvalid
}

// Resolver turns attachment-stage events into attachments.
type Resolver struct {
	fetcher FileFetcher
}

// NewResolver builds a Resolver that downloads files through fetcher.
func NewResolver(fetcher FileFetcher) *Resolver {
	return &Resolver{fetcher: fetcher}
}

// Resolve classifies ev and downloads its payload when it carries one.
// Download failures are returned as ErrTransport; an unusable event is not an
// error but an OutcomeInvalid.
func (r *Resolver) Resolve(ctx context.Context, ev Event) (Outcome, error) {
	switch {
	case ev.Document != nil && ev.Document.FileID != "":
		data, err := r.fetch(ctx, ev.Document.FileRef)
		if err != nil {
			return Outcome{}, err
		}
		name := strings.TrimSpace(ev.Document.FileName)
		if name == "" {
			name = "document_" + ev.Document.FileID
		}
		return Outcome{
			Kind:       OutcomeDocument,
			Attachment: &Attachment{Kind: AttachmentDocument, FileName: name, Data: data},
		}, nil

	case len(ev.Images) > 0:
		largest := ev.Images[len(ev.Images)-1]
		if largest.FileID == "" {
			return Outcome{Kind: OutcomeInvalid}, nil
		}
		data, err := r.fetch(ctx, largest.FileRef)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{
			Kind:       OutcomeImage,
			Attachment: &Attachment{Kind: AttachmentImage, FileName: "photo_" + largest.FileID + ".jpg", Data: data},
		}, nil

	case ev.Kind == KindText && isSkipToken(ev.Text):
		return Outcome{Kind: OutcomeSkipped}, nil
	}
	return Outcome{Kind: OutcomeInvalid}, nil
}

func (r *Resolver) fetch(ctx context.Context, ref FileRef) ([]byte, error) {
	if r.fetcher == nil {
		return nil, wrap(ErrTransport, fmt.Errorf("no file fetcher configured"))
	}
	data, err := r.fetcher.FetchBytes(ctx, ref)
	if err != nil {
		return nil, wrap(ErrTransport, fmt.Errorf("fetch %s: %w", ref.FileID, err))
	}
	return data, nil
}
