package entase

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"stagehall/utils"
)

const sniffBytes = 512

// AssetVerifier performs best-effort reachability checks on upstream image
// URLs. Verification is opt-in per sync run; when disabled every URL passes
// through unchanged. Network trouble during a check means "unreachable" and
// is never surfaced as an error.
type AssetVerifier struct {
	httpc   *http.Client
	enabled bool
}

// NewAssetVerifier creates a verifier. A nil httpc gets a short-timeout
// default so a slow image host cannot stall a sync run.
func NewAssetVerifier(enabled bool, httpc *http.Client) *AssetVerifier {
	if httpc == nil {
		httpc = &http.Client{Timeout: 10 * time.Second}
	}
	return &AssetVerifier{httpc: httpc, enabled: enabled}
}

// Verify returns the URL if it looks reachable, nil otherwise. The check is
// a HEAD request; hosts that reject HEAD (405/501) get a ranged GET whose
// first bytes are sniffed to confirm the target is an image.
func (v *AssetVerifier) Verify(ctx context.Context, rawURL string) *string {
	if !v.enabled {
		return &rawURL
	}

	// Upstream photo URLs occasionally carry raw spaces.
	checkURL, err := utils.EncodeURLWithSpaces(rawURL)
	if err != nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, checkURL, nil)
	if err != nil {
		return nil
	}
	resp, err := v.httpc.Do(req)
	if err != nil {
		return nil
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return &rawURL
	case resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented:
		if v.sniffImage(ctx, checkURL) {
			return &rawURL
		}
	}
	return nil
}

// sniffImage fetches the first bytes of the URL and checks the detected
// content type, for hosts that do not support HEAD.
func (v *AssetVerifier) sniffImage(ctx context.Context, checkURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, checkURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Range", "bytes=0-511")

	resp, err := v.httpc.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false
	}

	head, err := io.ReadAll(io.LimitReader(resp.Body, sniffBytes))
	if err != nil || len(head) == 0 {
		return false
	}
	return strings.HasPrefix(mimetype.Detect(head).String(), "image/")
}
