package githost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/xpertslabs/docstrap/internal/models"
)

func TestEnsureRepositoriesCreatesMissing(t *testing.T) {
	created := []string{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/xpertslabs/existing", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name":"existing"}`)
	})
	mux.HandleFunc("GET /repos/xpertslabs/missing", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	})
	mux.HandleFunc("POST /user/repos", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name    string `json:"name"`
			Private bool   `json:"private"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if !body.Private {
			t.Error("created repository should be private")
		}
		created = append(created, body.Name)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"name":%q}`, body.Name)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	sess := newTestSession(t, ts)
	if err := EnsureRepositories(context.Background(), sess, []string{"existing", "missing"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(created) != 1 || created[0] != "missing" {
		t.Errorf("created = %v, want [missing]", created)
	}
}

func TestEnsureRepositoriesSurfacesCreateFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/xpertslabs/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	})
	mux.HandleFunc("POST /user/repos", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"quota exceeded"}`, http.StatusForbidden)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	err := EnsureRepositories(context.Background(), newTestSession(t, ts), []string{"broken"})
	var provErr *models.ProvisionError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected *ProvisionError, got %T: %v", err, err)
	}
	if provErr.Resource != "broken" {
		t.Errorf("Resource = %q", provErr.Resource)
	}
}

func TestSyncDeployKeyRotation(t *testing.T) {
	// The repository starts with an old sentinel key plus an unmanaged key.
	type key struct {
		ID    int64  `json:"id"`
		Title string `json:"title"`
		Key   string `json:"key"`
	}
	keys := []key{
		{ID: 1, Title: SentinelKeyTitle, Key: "ssh-ed25519 OLDOLD"},
		{ID: 2, Title: "someone-elses-key", Key: "ssh-ed25519 OTHER"},
	}
	nextID := int64(3)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/xpertslabs/docs/keys", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(keys)
	})
	mux.HandleFunc("DELETE /repos/xpertslabs/docs/keys/", func(w http.ResponseWriter, r *http.Request) {
		idStr := strings.TrimPrefix(r.URL.Path, "/repos/xpertslabs/docs/keys/")
		id, _ := strconv.ParseInt(idStr, 10, 64)
		kept := keys[:0]
		for _, k := range keys {
			if k.ID != id {
				kept = append(kept, k)
			}
		}
		keys = kept
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /repos/xpertslabs/docs/keys", func(w http.ResponseWriter, r *http.Request) {
		var body key
		_ = json.NewDecoder(r.Body).Decode(&body)
		body.ID = nextID
		nextID++
		keys = append(keys, body)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(body)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	pub := []byte("ssh-ed25519 AAAANEWKEY comment\n")
	if err := SyncDeployKey(context.Background(), newTestSession(t, ts), "docs", pub); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sentinels := 0
	for _, k := range keys {
		if k.Title == SentinelKeyTitle {
			sentinels++
			if k.Key != "ssh-ed25519 AAAANEWKEY comment" {
				t.Errorf("sentinel key material = %q, want the fresh public key", k.Key)
			}
		}
	}
	if sentinels != 1 {
		t.Errorf("expected exactly one sentinel-titled key, got %d", sentinels)
	}
	// The unmanaged key must survive rotation.
	found := false
	for _, k := range keys {
		if k.ID == 2 {
			found = true
		}
	}
	if !found {
		t.Error("unmanaged key was deleted during rotation")
	}
}

func TestSyncDeployKeyAbortsWhenStaleKeyCannotBeDeleted(t *testing.T) {
	created := 0
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/xpertslabs/docs/keys", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `[{"id":1,"title":%q,"key":"ssh-ed25519 OLDOLD"}]`, SentinelKeyTitle)
	})
	mux.HandleFunc("DELETE /repos/xpertslabs/docs/keys/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"server error"}`, http.StatusInternalServerError)
	})
	mux.HandleFunc("POST /repos/xpertslabs/docs/keys", func(w http.ResponseWriter, r *http.Request) {
		created++
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":2}`)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	err := SyncDeployKey(context.Background(), newTestSession(t, ts), "docs", []byte("ssh-ed25519 NEW\n"))
	var provErr *models.ProvisionError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected *ProvisionError, got %T: %v", err, err)
	}
	// The old key is still in place, so uploading would leave two
	// sentinel-titled keys.
	if created != 0 {
		t.Errorf("expected no key upload after a failed delete, got %d", created)
	}
}

func TestSyncDeployKeySurfacesListFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/xpertslabs/docs/keys", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"server error"}`, http.StatusInternalServerError)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	err := SyncDeployKey(context.Background(), newTestSession(t, ts), "docs", []byte("ssh-ed25519 NEW\n"))
	var provErr *models.ProvisionError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected *ProvisionError, got %T: %v", err, err)
	}
}
