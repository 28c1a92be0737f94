package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"

	"golang.org/x/oauth2"
)

// AuthCodeURL builds the consent URL with state and the S256 challenge of verifier.
func AuthCodeURL(cfg *oauth2.Config, state, verifier string, scopes []string) string {
	c := *cfg
	if len(scopes) > 0 {
		c.Scopes = slices.Clone(scopes)
	}
	return c.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// Exchange redeems code with the PKCE verifier. Every failure maps to
// ErrProviderExchangeFailed (wrapped).
func Exchange(ctx context.Context, cfg *oauth2.Config, client *http.Client, code, verifier string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, client)
	tok, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderExchangeFailed, err)
	}
	return tok, nil
}

// FetchJSON does GET url with the bearer token and decodes into out.
// Non-2xx or undecodable bodies map to ErrProfileFetchFailed.
func FetchJSON(ctx context.Context, client *http.Client, url, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProfileFetchFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProfileFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("%w: status %d", ErrProfileFetchFailed, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %w", ErrProfileFetchFailed, err)
	}
	return nil
}
