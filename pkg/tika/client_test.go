package tika

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"music-copilot-go/internal/config"
)

func TestExtractText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/tika", r.URL.Path)
		assert.Equal(t, "application/pdf", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		fmt.Fprintf(w, "extracted:%s", body)
	}))
	defer srv.Close()

	c := NewClient(config.TikaConfig{ServerURL: srv.URL})
	text, err := c.ExtractText(context.Background(), strings.NewReader("raw"), "规则.pdf")
	require.NoError(t, err)
	assert.Equal(t, "extracted:raw", text)
}

func TestExtractText_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := NewClient(config.TikaConfig{ServerURL: srv.URL}).ExtractText(context.Background(), strings.NewReader("x"), "a.doc")
	assert.ErrorContains(t, err, "422")
}

func TestDetectMimeType(t *testing.T) {
	assert.Equal(t, "application/octet-stream", DetectMimeType("noext"))
	assert.Equal(t, "application/octet-stream", DetectMimeType("a.unknownext"))
}
