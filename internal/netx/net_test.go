package netx

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestUploadToS3PresignedURL(t *testing.T) {
	// The client uploads nonce||ciphertext; the store never sees plaintext.
	blob := append([]byte{0xde, 0xad, 0xbe, 0xef}, []byte("opaque ciphertext bytes")...)

	t.Run("success", func(t *testing.T) {
		var gotMethod, gotContentType string
		var gotBody []byte

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotContentType = r.Header.Get("Content-Type")
			gotBody, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusOK)
		}))
		defer ts.Close()

		err := UploadToS3PresignedURL(ts.URL+"/blobs/identity-1/k?X-Amz-Signature=abc", blob)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if gotMethod != http.MethodPut {
			t.Fatalf("method = %q, want PUT", gotMethod)
		}
		if gotContentType != "application/octet-stream" {
			t.Fatalf("Content-Type = %q, want application/octet-stream", gotContentType)
		}
		if !bytes.Equal(gotBody, blob) {
			t.Fatalf("uploaded body does not match blob")
		}
	})

	t.Run("expired signature is surfaced", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte("Request has expired"))
		}))
		defer ts.Close()

		err := UploadToS3PresignedURL(ts.URL, blob)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "upload failed: 403") {
			t.Fatalf("error = %q, want 403 status", err.Error())
		}
		if !strings.Contains(err.Error(), "Request has expired") {
			t.Fatalf("error = %q, want store response body included", err.Error())
		}
	})

	t.Run("unreachable store", func(t *testing.T) {
		ts := httptest.NewServer(http.NotFoundHandler())
		ts.Close()

		err := UploadToS3PresignedURL(ts.URL, blob)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if strings.Contains(err.Error(), "upload failed") {
			t.Fatalf("transport error misreported as store rejection: %v", err)
		}
	})
}
