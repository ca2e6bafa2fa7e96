package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a live stack (API + Postgres + MinIO). Set E2E_BASE_URL to
// enable, e.g. E2E_BASE_URL=http://localhost:8080.
func baseURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("E2E_BASE_URL")
	if url == "" {
		t.Skip("E2E_BASE_URL not set; skipping end-to-end test")
	}
	return url
}

func TestShareFullWorkflow(t *testing.T) {
	base := baseURL(t)
	client := &http.Client{Timeout: 30 * time.Second}

	// 1. Share a file.
	content := []byte("e2e file payload")
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "e2e.txt")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	writer.Close()

	req, _ := http.NewRequest("POST", base+"/v1/buckets", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := client.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		ID         string `json:"id"`
		OwnerToken string `json:"owner_token"`
	}
	body, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(body, &created))
	resp.Body.Close()

	require.Len(t, created.ID, 5)
	require.NotEmpty(t, created.OwnerToken)

	// 2. Anyone with the id can read the metadata, token excluded.
	req, _ = http.NewRequest("GET", base+"/v1/buckets/"+created.ID, nil)
	resp, err = client.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "e2e.txt")
	assert.NotContains(t, string(body), created.OwnerToken)

	// 3. Download round-trips the bytes.
	req, _ = http.NewRequest("GET", base+"/v1/buckets/"+created.ID+"/download", nil)
	resp, err = client.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	downloaded, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, content, downloaded)

	// 4. Deleting without the owner token is refused.
	req, _ = http.NewRequest("DELETE", base+"/v1/buckets/"+created.ID, nil)
	req.Header.Set("X-Owner-Token", "not-the-token")
	resp, err = client.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// 5. The owner token deletes the bucket.
	req, _ = http.NewRequest("DELETE", base+"/v1/buckets/"+created.ID, nil)
	req.Header.Set("X-Owner-Token", created.OwnerToken)
	resp, err = client.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	// 6. The bucket is gone.
	req, _ = http.NewRequest("GET", base+"/v1/buckets/"+created.ID, nil)
	resp, err = client.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestTextShareWorkflow(t *testing.T) {
	base := baseURL(t)
	client := &http.Client{Timeout: 30 * time.Second}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("text", "hello from e2e"))
	writer.Close()

	req, _ := http.NewRequest("POST", base+"/v1/buckets", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := client.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		ID         string `json:"id"`
		OwnerToken string `json:"owner_token"`
	}
	body, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(body, &created))
	resp.Body.Close()

	req, _ = http.NewRequest("GET", base+"/v1/buckets/"+created.ID, nil)
	resp, err = client.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "hello from e2e")

	req, _ = http.NewRequest("DELETE", base+"/v1/buckets/"+created.ID, nil)
	req.Header.Set("X-Owner-Token", created.OwnerToken)
	resp, err = client.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()
}
