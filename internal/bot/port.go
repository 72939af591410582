package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/m3rciful/mailbot/core/logger"
	tghelpers "github.com/m3rciful/mailbot/core/telegram/helpers"
	"github.com/m3rciful/mailbot/internal/conversation"

	tele "gopkg.in/telebot.v4"
)

var (
	errNotBound = errors.New("telegram transport not started")
	// ErrFileTooLarge is returned for files above the configured limit.
	ErrFileTooLarge = errors.New("file exceeds size limit")
)

// Transport is the part of *tele.Bot the conversation needs.
type Transport interface {
	tghelpers.Sender
	File(file *tele.File) (io.ReadCloser, error)
}

// Port adapts the Telegram bot to conversation.Replier and
// conversation.FileFetcher. The bot only exists once the runtime starts, so
// it is bound late.
type Port struct {
	maxBytes int64

	mu sync.RWMutex
	tr Transport
}

// NewPort returns an unbound Port.
func NewPort(maxBytes int64) *Port {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxAttachmentBytes
	}
	return &Port{maxBytes: maxBytes}
}

// Bind attaches the transport; nil detaches it.
func (p *Port) Bind(tr Transport) {
	p.mu.Lock()
	p.tr = tr
	p.mu.Unlock()
}

func (p *Port) current() Transport {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tr
}

// Reply implements conversation.Replier. Private chats share the user's id.
func (p *Port) Reply(ctx context.Context, userID int64, text string) {
	tr := p.current()
	if tr == nil {
		logger.Warn(ctx, "tg", "reply.drop",
			slog.Int64("user_id", userID),
			slog.String("err", errNotBound.Error()),
		)
		return
	}
	if err := tghelpers.SendTo(ctx, tr, userID, text); err != nil {
		logger.Error(ctx, "tg", "reply.send",
			slog.Int64("user_id", userID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
}

// FetchBytes implements conversation.FileFetcher.
func (p *Port) FetchBytes(ctx context.Context, ref conversation.FileRef) ([]byte, error) {
	if ref.Size > p.maxBytes {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrFileTooLarge, ref.Size, p.maxBytes)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tr := p.current()
	if tr == nil {
		return nil, errNotBound
	}

	rc, err := tr.File(&tele.File{FileID: ref.FileID})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", ref.FileID, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref.FileID, err)
	}
	if int64(len(data)) > p.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, p.maxBytes)
	}
	return data, nil
}
