package githost

import (
	"net/http/httptest"
	"net/url"
	"os"
	"testing"

	"github.com/google/go-github/v71/github"

	"github.com/xpertslabs/docstrap/internal/prompts"
)

func TestMain(m *testing.M) {
	prompts.AssumeYes = true
	os.Exit(m.Run())
}

// newTestSession wires a Session against a local httptest server.
func newTestSession(t *testing.T, ts *httptest.Server) *Session {
	t.Helper()
	client := github.NewClient(ts.Client())
	base, err := url.Parse(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	client.BaseURL = base
	client.UploadURL = base
	return &Session{Owner: "xpertslabs", Token: "test-token", Client: client}
}
