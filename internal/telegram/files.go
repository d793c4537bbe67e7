package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/set-night/dispatchbot/internal/domain"
)

const maxPhotoBytes = 20 << 20

var downloadClient = &http.Client{Timeout: 30 * time.Second}

// DownloadPhoto fetches the largest size of a photo message. The returned
// ImageRef carries the bytes inline for the next chat request and keeps
// Telegram's file path for storage.
func DownloadPhoto(ctx context.Context, b *bot.Bot, sizes []models.PhotoSize) (*domain.ImageRef, error) {
	if len(sizes) == 0 {
		return nil, nil
	}
	photo := sizes[len(sizes)-1]

	file, err := b.GetFile(ctx, &bot.GetFileParams{FileID: photo.FileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.FileDownloadLink(file), nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}

	resp, err := downloadClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
	if err != nil {
		return nil, fmt.Errorf("read file data: %w", err)
	}

	return &domain.ImageRef{
		Path:       file.FilePath,
		MIMEType:   http.DetectContentType(data),
		InlineData: data,
	}, nil
}
