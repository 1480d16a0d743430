package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/clinicdesk/whatsapp-server-go/internal/model"
)

// Inbound media downloads are larger than API responses; cap them rather
// than trusting the provider's ephemeral CDN.
const maxMediaBytes = 64 << 20

type mediaLookup struct {
	URL      string      `json:"url"`
	MimeType string      `json:"mime_type"`
	Error    *graphError `json:"error"`
}

// MediaURL resolves a provider media id into its ephemeral download URL.
func (c *Client) MediaURL(ctx context.Context, cred *model.ChannelCredential, mediaID string) (string, string, error) {
	endpoint := fmt.Sprintf("%s/%s", c.baseURL, mediaID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("media lookup: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	var lookup mediaLookup
	if err := json.Unmarshal(body, &lookup); err != nil {
		return "", "", fmt.Errorf("media lookup decode: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || lookup.URL == "" {
		sendErr := &SendError{StatusCode: resp.StatusCode}
		if lookup.Error != nil {
			sendErr.Code = lookup.Error.Code
			sendErr.Message = lookup.Error.Message
		}
		return "", "", sendErr
	}

	return lookup.URL, lookup.MimeType, nil
}

// Download fetches the media bytes from the ephemeral URL. The URL requires
// the same bearer token as the API.
func (c *Client) Download(ctx context.Context, cred *model.ChannelCredential, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("media download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("media download failed with status %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes))
}
