package prcheck

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParsePRURL(t *testing.T) {
	tests := map[string]struct {
		url             string
		want            Ref
		wantErr         bool
		wantUnsupported bool
	}{
		"github pull request": {
			url:  "https://github.com/acme/widgets/pull/123",
			want: Ref{Owner: "acme", Repo: "widgets", Number: 123},
		},
		"github with www": {
			url:  "https://www.github.com/acme/widgets/pull/7",
			want: Ref{Owner: "acme", Repo: "widgets", Number: 7},
		},
		"trailing whitespace": {
			url:  "https://github.com/acme/widgets/pull/9  \n",
			want: Ref{Owner: "acme", Repo: "widgets", Number: 9},
		},
		"gitlab merge request": {
			url:             "https://gitlab.com/acme/widgets/-/merge_requests/5",
			wantErr:         true,
			wantUnsupported: true,
		},
		"not a pull path": {
			url:     "https://github.com/acme/widgets/issues/123",
			wantErr: true,
		},
		"non-numeric number": {
			url:     "https://github.com/acme/widgets/pull/abc",
			wantErr: true,
		},
		"missing scheme": {
			url:     "github.com/acme/widgets/pull/123",
			wantErr: true,
		},
		"empty": {
			url:     "",
			wantErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ParsePRURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePRURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
			if tt.wantUnsupported && !errors.Is(err, ErrUnsupportedHost) {
				t.Errorf("ParsePRURL(%q) error = %v, want ErrUnsupportedHost", tt.url, err)
			}
			if err == nil && got != tt.want {
				t.Errorf("ParsePRURL(%q) = %+v, want %+v", tt.url, got, tt.want)
			}
		})
	}
}

func TestCheck(t *testing.T) {
	tests := map[string]struct {
		state  string
		merged bool
		draft  bool
	}{
		"open":   {state: "open"},
		"merged": {state: "closed", merged: true},
		"draft":  {state: "open", draft: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				wantPath := "/api/v3/repos/acme/widgets/pulls/42"
				if r.URL.Path != wantPath {
					t.Errorf("unexpected path: got %s, want %s", r.URL.Path, wantPath)
				}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(map[string]any{
					"number": 42,
					"state":  tt.state,
					"merged": tt.merged,
					"draft":  tt.draft,
					"title":  "Add widget polish",
				})
			}))
			defer server.Close()

			c := NewCheckerWithHTTPClient(server.Client(), server.URL)
			st, err := c.Check(context.Background(), "https://github.com/acme/widgets/pull/42")
			if err != nil {
				t.Fatalf("Check: %v", err)
			}
			if st.State != tt.state || st.Merged != tt.merged || st.Draft != tt.draft {
				t.Errorf("got %+v, want state=%s merged=%v draft=%v", st, tt.state, tt.merged, tt.draft)
			}
			if st.Title != "Add widget polish" {
				t.Errorf("title = %q", st.Title)
			}
		})
	}
}

func TestCheck_UnsupportedHost(t *testing.T) {
	c := NewChecker("")
	_, err := c.Check(context.Background(), "https://gitlab.com/acme/widgets/-/merge_requests/5")
	if !errors.Is(err, ErrUnsupportedHost) {
		t.Errorf("error = %v, want ErrUnsupportedHost", err)
	}
}

func TestCheck_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message": "Not Found"}`))
	}))
	defer server.Close()

	c := NewCheckerWithHTTPClient(server.Client(), server.URL)
	if _, err := c.Check(context.Background(), "https://github.com/acme/widgets/pull/42"); err == nil {
		t.Error("expected error for 404 response")
	}
}

func TestNewChecker(t *testing.T) {
	for _, token := range []string{"", "ghp_xxxxxxxxxxxxxxxx"} {
		c := NewChecker(token)
		if c == nil || c.client == nil {
			t.Fatalf("NewChecker(%q) returned nil client", token)
		}
	}
}
