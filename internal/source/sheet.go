package source

import (
	"context"
	"fmt"
	"net/http"

	"studycore/pkg/domain"
)

// Authenticator supplies credentials for a remote sheet export. Authenticate
// refreshes the credential state and Apply decorates an outgoing request.
type Authenticator interface {
	Authenticate(ctx context.Context) error
	Apply(req *http.Request) error
}

// SheetSource fetches a spreadsheet published as CSV over HTTP. On any fetch
// failure it re-authenticates once and retries before giving up, so an expired
// credential does not abort a scheduled ingestion run.
type SheetSource struct {
	URL    string
	Auth   Authenticator
	Client *http.Client
}

// NewSheetSource constructs a source for the given export URL. A nil client
// falls back to http.DefaultClient.
func NewSheetSource(url string, auth Authenticator, client *http.Client) *SheetSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &SheetSource{URL: url, Auth: auth, Client: client}
}

// Fetch downloads and parses the sheet export. The retry is blind: any error
// from the first attempt triggers exactly one re-authentication and re-fetch.
func (s *SheetSource) Fetch(ctx context.Context) (Table, error) {
	table, err := s.fetchOnce(ctx)
	if err == nil {
		return table, nil
	}
	if s.Auth != nil {
		if authErr := s.Auth.Authenticate(ctx); authErr != nil {
			return Table{}, &domain.ExternalSourceError{Endpoint: s.URL, Err: fmt.Errorf("re-authenticate: %w", authErr)}
		}
		table, retryErr := s.fetchOnce(ctx)
		if retryErr == nil {
			return table, nil
		}
		err = retryErr
	}
	return Table{}, &domain.ExternalSourceError{Endpoint: s.URL, Err: err}
}

func (s *SheetSource) fetchOnce(ctx context.Context) (Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return Table{}, fmt.Errorf("build request: %w", err)
	}
	if s.Auth != nil {
		if err := s.Auth.Apply(req); err != nil {
			return Table{}, fmt.Errorf("apply credentials: %w", err)
		}
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return Table{}, fmt.Errorf("fetch sheet: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Table{}, fmt.Errorf("fetch sheet: unexpected status %d", resp.StatusCode)
	}
	return ParseCSV(resp.Body)
}

// StaticTokenAuthenticator applies a fixed bearer token. Authenticate is a
// no-op; it exists for deployments where the token is minted out of band.
type StaticTokenAuthenticator struct {
	Token string
}

func (a *StaticTokenAuthenticator) Authenticate(context.Context) error { return nil }

func (a *StaticTokenAuthenticator) Apply(req *http.Request) error {
	if a.Token != "" {
		req.Header.Set("Authorization", "Bearer "+a.Token)
	}
	return nil
}
