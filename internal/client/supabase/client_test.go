package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{APIKey: "k"})
	require.Error(t, err)

	_, err = New(Config{URL: "http://x"})
	require.Error(t, err)
}

func TestUpsert_SendsMergeDuplicatesAndOnConflict(t *testing.T) {
	var (
		gotPath   string
		gotQuery  string
		gotPrefer string
		gotKey    string
		gotAuth   string
		gotBody   map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("on_conflict")
		gotPrefer = r.Header.Get("Prefer")
		gotKey = r.Header.Get("apikey")
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c, err := New(Config{URL: srv.URL + "/", APIKey: "secret"})
	require.NoError(t, err)

	resp, err := c.From("user_push_tokens").Upsert("user_id").ExecuteInsert(context.Background(), map[string]string{
		"user_id": "user-1",
		"token":   "tok",
	})
	require.NoError(t, err)
	require.NoError(t, resp.Error())

	assert.Equal(t, "/rest/v1/user_push_tokens", gotPath)
	assert.Equal(t, "user_id", gotQuery)
	assert.Equal(t, "resolution=merge-duplicates,return=minimal", gotPrefer)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "tok", gotBody["token"])
}

func TestExecute_SingleWithFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eq.user-1", r.URL.Query().Get("user_id"))
		assert.Equal(t, "user_id,token", r.URL.Query().Get("select"))
		assert.Equal(t, "application/vnd.pgrst.object+json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"user_id":"user-1","token":"tok"}`))
	}))
	defer srv.Close()

	c, err := New(Config{URL: srv.URL, APIKey: "k"})
	require.NoError(t, err)

	resp, err := c.From("user_push_tokens").Select("user_id,token").Eq("user_id", "user-1").Single().Execute(context.Background())
	require.NoError(t, err)

	var row struct {
		Token string `json:"token"`
	}
	require.NoError(t, resp.JSON(&row))
	assert.Equal(t, "tok", row.Token)
}

func TestResponse_Error(t *testing.T) {
	r := &Response{StatusCode: http.StatusNotAcceptable, Body: []byte(`{"code":"PGRST116","message":"no rows"}`)}
	err := r.Error()
	require.Error(t, err)

	var sErr *Error
	require.True(t, errors.As(err, &sErr))
	assert.Equal(t, "PGRST116", sErr.Code)

	r = &Response{StatusCode: http.StatusBadGateway, Body: []byte("<html>")}
	require.ErrorContains(t, r.Error(), "502")

	r = &Response{StatusCode: http.StatusOK}
	require.NoError(t, r.Error())
}
