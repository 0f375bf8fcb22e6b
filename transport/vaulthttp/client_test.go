package vaulthttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/keywarden/crypto"
	"github.com/jmcleod/keywarden/transport"
)

// newFakeVault spins up a vault server double covering the four session
// endpoints for the "alice"/"pw1" account.
func newFakeVault(t *testing.T, challenge *crypto.Challenge) (*httptest.Server, *fakeVaultState) {
	t.Helper()
	state := &fakeVaultState{}

	r := chi.NewRouter()
	r.Route("/v1/session", func(r chi.Router) {
		r.Post("/request", func(w http.ResponseWriter, req *http.Request) {
			state.requests++
			assert.NotEmpty(t, req.Header.Get("X-Request-ID"))
			var body struct {
				User string `json:"user"`
			}
			assert.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			assert.Equal(t, "alice", body.User)
			json.NewEncoder(w).Encode(transport.SessionReply{
				SessionID: "sess-1",
				Challenge: challenge,
			})
		})
		r.Post("/open", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				SessionID string `json:"session_id"`
				Solution  string `json:"solution"`
			}
			assert.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			state.lastSolution = body.Solution
			assert.Equal(t, "sess-1", body.SessionID)
			json.NewEncoder(w).Encode(transport.OpenReply{
				Success: true,
				Keys:    map[string][]byte{crypto.SchemeCSE: []byte("BLOB1")},
			})
		})
		r.Post("/keepalive", func(w http.ResponseWriter, req *http.Request) {
			state.keepalives++
			json.NewEncoder(w).Encode(transport.KeepaliveReply{Success: true})
		})
		r.Post("/close", func(w http.ResponseWriter, req *http.Request) {
			state.closes++
			w.WriteHeader(http.StatusOK)
		})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, state
}

type fakeVaultState struct {
	requests     int
	keepalives   int
	closes       int
	lastSolution string
}

func TestClient_RequestSession(t *testing.T) {
	ch, err := crypto.NewChallenge("pw1")
	require.NoError(t, err)
	srv, state := newFakeVault(t, ch)

	c := New(WithHTTPClient(srv.Client()))
	ep := transport.Endpoint{Server: srv.URL, User: "alice"}

	reply, err := c.RequestSession(context.Background(), ep)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", reply.SessionID)
	require.NotNil(t, reply.Challenge)
	assert.Equal(t, crypto.SchemePWD, reply.Challenge.Scheme)
	assert.Equal(t, 1, state.requests)
}

func TestClient_OpenSession(t *testing.T) {
	srv, state := newFakeVault(t, nil)

	c := New(WithHTTPClient(srv.Client()))
	ep := transport.Endpoint{Server: srv.URL, User: "alice", SessionID: "sess-1"}

	reply, err := c.OpenSession(context.Background(), ep, "proof")
	require.NoError(t, err)
	assert.True(t, reply.Success)
	assert.Equal(t, []byte("BLOB1"), reply.Keys[crypto.SchemeCSE])
	assert.Equal(t, "proof", state.lastSolution)
}

func TestClient_KeepaliveAndClose(t *testing.T) {
	srv, state := newFakeVault(t, nil)

	c := New(WithHTTPClient(srv.Client()))
	ep := transport.Endpoint{Server: srv.URL, User: "alice", SessionID: "sess-1"}

	reply, err := c.KeepaliveSession(context.Background(), ep)
	require.NoError(t, err)
	assert.True(t, reply.Success)
	assert.Equal(t, 1, state.keepalives)

	require.NoError(t, c.CloseSession(context.Background(), ep))
	assert.Equal(t, 1, state.closes)
}

func TestClient_TransportFailure(t *testing.T) {
	c := New()
	ep := transport.Endpoint{Server: "http://127.0.0.1:1", User: "alice"}

	_, err := c.RequestSession(context.Background(), ep)
	require.Error(t, err)
}

func TestClient_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	c := New(WithHTTPClient(srv.Client()))
	_, err := c.OpenSession(context.Background(), transport.Endpoint{Server: srv.URL, User: "alice"}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
