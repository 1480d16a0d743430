package service

import (
	"context"
	"fmt"
	"mime"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/clinicdesk/whatsapp-server-go/internal/model"
	"github.com/clinicdesk/whatsapp-server-go/internal/observability"
	"github.com/clinicdesk/whatsapp-server-go/internal/storage"
)

// MediaClient is the inbound media side of the messaging provider: resolve a
// media id to a short-lived URL, then download it.
type MediaClient interface {
	MediaURL(ctx context.Context, cred *model.ChannelCredential, mediaID string) (string, string, error)
	Download(ctx context.Context, cred *model.ChannelCredential, url string) ([]byte, error)
}

// MediaService copies provider media into durable object storage. Provider
// media URLs expire quickly, so the copy happens during ingestion.
type MediaService struct {
	client MediaClient
	store  storage.ObjectStore
}

func NewMediaService(client MediaClient, store storage.ObjectStore) *MediaService {
	return &MediaService{client: client, store: store}
}

var preferredExtensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"audio/ogg":       ".ogg",
	"audio/mpeg":      ".mp3",
	"audio/mp4":       ".m4a",
	"video/mp4":       ".mp4",
	"video/3gpp":      ".3gp",
	"application/pdf": ".pdf",
}

// FetchAndPersist resolves, downloads, and stores one media object. Returns
// the durable URL, or nil on any failure; the caller substitutes a
// placeholder body so ingestion never blocks on media.
func (s *MediaService) FetchAndPersist(ctx context.Context, cred *model.ChannelCredential, mediaID, mimeHint string) *string {
	if s.store == nil {
		return nil
	}

	url, mimeType, err := s.client.MediaURL(ctx, cred, mediaID)
	if err != nil {
		observability.MediaFetches.WithLabelValues("lookup_error").Inc()
		log.Warn().Err(err).Str("mediaId", mediaID).Msg("media url lookup failed")
		return nil
	}
	if mimeType == "" {
		mimeType = mimeHint
	}

	data, err := s.client.Download(ctx, cred, url)
	if err != nil {
		observability.MediaFetches.WithLabelValues("download_error").Inc()
		log.Warn().Err(err).Str("mediaId", mediaID).Msg("media download failed")
		return nil
	}

	key := fmt.Sprintf("tenants/%s/media/%s%s", cred.TenantID, mediaID, extensionFor(mimeType))
	publicURL, err := s.store.Put(ctx, key, data, mimeType)
	if err != nil {
		observability.MediaFetches.WithLabelValues("store_error").Inc()
		log.Warn().Err(err).Str("mediaId", mediaID).Str("key", key).Msg("media store failed")
		return nil
	}

	observability.MediaFetches.WithLabelValues("ok").Inc()
	return &publicURL
}

func extensionFor(mimeType string) string {
	base := mimeType
	if idx := strings.Index(base, ";"); idx >= 0 {
		base = strings.TrimSpace(base[:idx])
	}
	if ext, ok := preferredExtensions[base]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(base); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
