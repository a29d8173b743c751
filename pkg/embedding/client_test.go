package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"music-copilot-go/internal/config"
)

func TestNewClient_DisabledWithoutModel(t *testing.T) {
	assert.Nil(t, NewClient(config.EmbeddingConfig{}))
}

func TestCreateEmbeddings_KeepsInputOrder(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","model":"emb","data":[
			{"object":"embedding","index":1,"embedding":[0.3,0.4]},
			{"object":"embedding","index":0,"embedding":[0.1,0.2]}],
			"usage":{"prompt_tokens":2,"total_tokens":2}}`)
	}))
	defer srv.Close()

	c := NewClient(config.EmbeddingConfig{APIKey: "k", BaseURL: srv.URL + "/v1/", Model: "emb", Dimensions: 2},
		option.WithMaxRetries(0))
	require.NotNil(t, c)

	vectors, err := c.CreateEmbeddings(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.1, 0.2}, {0.3, 0.4}}, vectors)
	assert.Equal(t, "emb", body["model"])
	assert.Equal(t, float64(2), body["dimensions"])
}
