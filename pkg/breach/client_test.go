package breach

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hashParts(password string) (string, string) {
	sum := sha1.Sum([]byte(password))
	hash := strings.ToUpper(hex.EncodeToString(sum[:]))
	return hash[:prefixLength], hash[prefixLength:]
}

func TestCheckPassword_Compromised(t *testing.T) {
	password := "password123"
	prefix, suffix := hashParts(password)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only the five-character prefix may reach the service.
		require.Equal(t, "/"+prefix, r.URL.Path)

		fmt.Fprintf(w, "0018A45C4D1DEF81644B54AB7F969B88D65:3\r\n")
		fmt.Fprintf(w, "%s:2340\r\n", suffix)
		fmt.Fprintf(w, "011053FD0102E94D6AE2F8B83D76FAF94F6:1\r\n")
	}))
	defer server.Close()

	client := NewClient(WithEndpoint(server.URL))

	count, err := client.CheckPassword(context.Background(), password)
	require.NoError(t, err)
	assert.Equal(t, 2340, count)

	compromised, err := client.IsCompromised(context.Background(), password)
	require.NoError(t, err)
	assert.True(t, compromised)
}

func TestCheckPassword_Clean(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "0018A45C4D1DEF81644B54AB7F969B88D65:3\r\n")
	}))
	defer server.Close()

	client := NewClient(WithEndpoint(server.URL))

	compromised, err := client.IsCompromised(context.Background(), "Xk9$mP2!vLq7wRt")
	require.NoError(t, err)
	assert.False(t, compromised)
}

// A failed lookup must degrade to "not compromised" rather than blocking the
// user. The error is still reported for logging.
func TestIsCompromised_FailOpenOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(WithEndpoint(server.URL))

	compromised, err := client.IsCompromised(context.Background(), "anything")
	assert.Error(t, err)
	assert.False(t, compromised)
}

func TestIsCompromised_FailOpenOnNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	client := NewClient(WithEndpoint(server.URL))

	compromised, err := client.IsCompromised(context.Background(), "anything")
	assert.Error(t, err)
	assert.False(t, compromised)
}

func TestCheckPassword_Cancelled(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewClient(WithEndpoint(server.URL))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := client.CheckPassword(ctx, "password123")
		errCh <- err
	}()

	<-started
	cancel()

	err := <-errCh
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStatus_String(t *testing.T) {
	cases := map[Status]string{
		StatusUnknown:     "unknown",
		StatusChecking:    "checking",
		StatusCompromised: "compromised",
		StatusClean:       "clean",
		Status(42):        "invalid",
	}

	for status, want := range cases {
		assert.Equal(t, want, status.String())
	}
}
