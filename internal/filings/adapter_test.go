package filings

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilingIndexURL(t *testing.T) {
	url := filingIndexURL("320193", "0000320193-24-000123")
	assert.Equal(t, "https://www.sec.gov/Archives/edgar/data/320193/000032019324000123/0000320193-24-000123-index.html", url)
}

func TestFilingIndexURL_EmptyInputs(t *testing.T) {
	assert.Empty(t, filingIndexURL("", "0000320193-24-000123"))
	assert.Empty(t, filingIndexURL("320193", ""))
}

func TestAdapter_GetSetsUserAgentAndReturnsBody(t *testing.T) {
	var gotUserAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	a := New(Config{UserAgent: "test-agent (test@example.com)"})
	body, err := a.get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "test-agent (test@example.com)", gotUserAgent)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestAdapter_GetNonOKStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	a := New(Config{})
	_, err := a.get(context.Background(), server.URL)
	assert.Error(t, err)
}
