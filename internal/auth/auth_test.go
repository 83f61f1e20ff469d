package auth

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestFileTokenStore_SaveAndLoad(t *testing.T) {
	store := NewFileTokenStore(filepath.Join(t.TempDir(), "token.json"))

	token := &oauth2.Token{
		AccessToken:  "access-123",
		RefreshToken: "refresh-456",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour).Truncate(time.Second),
	}

	if err := store.SaveToken(token); err != nil {
		t.Fatalf("SaveToken() returned an error: %v", err)
	}

	loaded, err := store.LoadToken()
	if err != nil {
		t.Fatalf("LoadToken() returned an error: %v", err)
	}
	if loaded == nil {
		t.Fatal("LoadToken() returned nil for a saved token")
	}

	if loaded.AccessToken != token.AccessToken {
		t.Errorf("Expected access token %q, got %q", token.AccessToken, loaded.AccessToken)
	}
	if loaded.RefreshToken != token.RefreshToken {
		t.Errorf("Expected refresh token %q, got %q", token.RefreshToken, loaded.RefreshToken)
	}
	if !loaded.Expiry.Equal(token.Expiry) {
		t.Errorf("Expected expiry %v, got %v", token.Expiry, loaded.Expiry)
	}
}

func TestFileTokenStore_LoadMissing(t *testing.T) {
	store := NewFileTokenStore(filepath.Join(t.TempDir(), "token.json"))

	token, err := store.LoadToken()
	if err != nil {
		t.Fatalf("LoadToken() returned an error for a missing file: %v", err)
	}
	if token != nil {
		t.Errorf("Expected nil token for a missing file, got %+v", token)
	}
}

// staticTokenSource returns a fixed sequence of tokens.
type staticTokenSource struct {
	tokens []*oauth2.Token
	calls  int
}

func (s *staticTokenSource) Token() (*oauth2.Token, error) {
	if s.calls >= len(s.tokens) {
		return nil, fmt.Errorf("no more tokens")
	}
	token := s.tokens[s.calls]
	s.calls++
	return token, nil
}

func TestAutoSaveTokenSource_SavesRefreshedToken(t *testing.T) {
	store := NewFileTokenStore(filepath.Join(t.TempDir(), "token.json"))

	initial := &oauth2.Token{AccessToken: "old"}
	refreshed := &oauth2.Token{AccessToken: "new"}

	source := &autoSaveTokenSource{
		source:     &staticTokenSource{tokens: []*oauth2.Token{initial, refreshed}},
		tokenStore: store,
		lastToken:  initial,
	}

	// Same token again: nothing to save.
	if _, err := source.Token(); err != nil {
		t.Fatalf("Token() returned an error: %v", err)
	}
	if saved, _ := store.LoadToken(); saved != nil {
		t.Error("Expected no save while the access token is unchanged")
	}

	// Refreshed token: must be persisted.
	if _, err := source.Token(); err != nil {
		t.Fatalf("Token() returned an error: %v", err)
	}
	saved, err := store.LoadToken()
	if err != nil {
		t.Fatalf("LoadToken() returned an error: %v", err)
	}
	if saved == nil || saved.AccessToken != "new" {
		t.Errorf("Expected the refreshed token to be saved, got %+v", saved)
	}
}
