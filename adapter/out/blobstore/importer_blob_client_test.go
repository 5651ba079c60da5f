package blobstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"drive_import_server/core/domain"
	"drive_import_server/pkg/apperr"

	json "github.com/goccy/go-json"
)

type doc struct {
	Value string `json:"value"`
}

func TestGetJSONFoundAndMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Tenant-Account") != "acme" {
			t.Errorf("missing tenant header, got %q", r.Header.Get("X-Tenant-Account"))
		}
		switch r.URL.Path {
		case "/buckets/acme/drive-import/files/token.json":
			json.NewEncoder(w).Encode(doc{Value: "hello"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	tenant := domain.NewTenantContext("acme")

	var got doc
	found, err := c.GetJSON(context.Background(), tenant, "drive-import", "token.json", &got)
	if err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if !found || got.Value != "hello" {
		t.Errorf("found=%v got=%+v", found, got)
	}

	found, err = c.GetJSON(context.Background(), tenant, "drive-import", "absent.json", &got)
	if err != nil {
		t.Fatalf("GetJSON missing: %v", err)
	}
	if found {
		t.Error("404 must report found=false, not an error")
	}
}

func TestGetJSONUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	var got doc
	_, err := c.GetJSON(context.Background(), domain.NewTenantContext("acme"), "b", "k", &got)
	if !apperr.IsCode(err, apperr.CodeUpstreamFailure) {
		t.Errorf("expected UPSTREAM_FAILURE, got %v", err)
	}
}

func TestSaveJSONPutsDocument(t *testing.T) {
	var gotMethod, gotPath, gotAuth string
	var gotBody doc
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	tenant := domain.NewTenantContext("acme").WithBearer("tok-1")

	if err := c.SaveJSON(context.Background(), tenant, "drive-import", "folders.json", doc{Value: "v"}); err != nil {
		t.Fatalf("SaveJSON: %v", err)
	}
	if gotMethod != http.MethodPut {
		t.Errorf("method = %s, want PUT", gotMethod)
	}
	if gotPath != "/buckets/acme/drive-import/files/folders.json" {
		t.Errorf("path = %s", gotPath)
	}
	if gotAuth != "Bearer tok-1" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotBody.Value != "v" {
		t.Errorf("body = %+v", gotBody)
	}
}
