package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

func withTmpConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return filepath.Join(dir, "trustlend")
}

type call struct {
	method string
	req    map[string]any
	bearer string
}

type fakeServer struct {
	calls []call
	reply map[string]any
	err   error
}

func (f *fakeServer) connect(_ context.Context, _ *rootOptions, bearer string) (caller, func() error, error) {
	return fakeCaller{f, bearer}, func() error { return nil }, nil
}

type fakeCaller struct {
	f      *fakeServer
	bearer string
}

func (c fakeCaller) Call(_ context.Context, method string, in *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	c.f.calls = append(c.f.calls, call{method: method, req: in.AsMap(), bearer: c.bearer})
	if c.f.err != nil {
		return nil, c.f.err
	}
	return structpb.NewStruct(c.f.reply)
}

func run(t *testing.T, f *fakeServer, argv ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(&rootOptions{connect: f.connect})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(argv)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func Test_token_SaveLoadRemove(t *testing.T) {
	dir := withTmpConfig(t)
	require.Equal(t, dir, cfgDir())

	_, err := loadToken()
	require.Error(t, err)

	require.NoError(t, saveToken(tokenFile{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Minute)}))
	tok, err := loadToken()
	require.NoError(t, err)
	require.Equal(t, "tok", tok)

	st, err := os.Stat(tokenPath())
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), st.Mode().Perm())

	require.NoError(t, saveToken(tokenFile{AccessToken: "old", ExpiresAt: time.Now().Add(-time.Minute)}))
	_, err = loadToken()
	require.Error(t, err)

	require.NoError(t, removeToken())
	require.NoError(t, removeToken())
}

func TestLogin_SavesToken(t *testing.T) {
	withTmpConfig(t)
	exp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	f := &fakeServer{reply: map[string]any{
		"access_token": "jwt",
		"user_id":      "u-1",
		"expires_at":   exp.Format(time.RFC3339),
	}}

	out, err := run(t, f, "login", "-u", "alice", "-p", "secret123")
	require.NoError(t, err)
	require.Contains(t, out, "ok u-1")
	require.Equal(t, "Login", f.calls[0].method)
	require.Equal(t, map[string]any{"username": "alice", "password": "secret123"}, f.calls[0].req)
	require.Empty(t, f.calls[0].bearer)

	tok, err := loadToken()
	require.NoError(t, err)
	require.Equal(t, "jwt", tok)
}

func TestCommands_BuildRequests(t *testing.T) {
	withTmpConfig(t)
	require.NoError(t, saveToken(tokenFile{AccessToken: "jwt", ExpiresAt: time.Now().Add(time.Hour)}))

	tests := []struct {
		argv   []string
		method string
		req    map[string]any
	}{
		{[]string{"trust", "set", "u-2", "3"}, "SetTrust", map[string]any{"trustee_id": "u-2", "level": float64(3)}},
		{[]string{"trust", "request", "u-1", "--message", "hi"}, "RequestTrust", map[string]any{"target_id": "u-1", "message": "hi"}},
		{[]string{"trust", "incoming"}, "ListIncomingTrustRequests", map[string]any{}},
		{[]string{"item", "add", "--title", "Drill", "--level", "2", "--hidden"}, "CreateItem", map[string]any{
			"title": "Drill", "description": "", "category": "", "required_trust_level": float64(2), "hidden": true,
		}},
		{[]string{"item", "search", "drill"}, "SearchItems", map[string]any{"query": "drill"}},
		{[]string{"loan", "request", "i-1", "--start", "2024-01-01", "--end", "2024-01-05"}, "CreateLoanRequest",
			map[string]any{"item_id": "i-1", "start": "2024-01-01", "end": "2024-01-05"}},
		{[]string{"loan", "lend", "i-1", "u-2", "--start", "2024-01-01", "--end", "2024-01-05"}, "LendDirect",
			map[string]any{"item_id": "i-1", "borrower_id": "u-2", "start": "2024-01-01", "end": "2024-01-05"}},
		{[]string{"loan", "return", "l-1"}, "MarkReturned", map[string]any{"loan_id": "l-1"}},
		{[]string{"loan", "list", "--role", "lender", "--status", "overdue"}, "ListLoans", map[string]any{"role": "lender", "status": "overdue"}},
	}
	for _, tc := range tests {
		f := &fakeServer{reply: map[string]any{}}
		_, err := run(t, f, tc.argv...)
		require.NoError(t, err, tc.argv)
		require.Len(t, f.calls, 1)
		require.Equal(t, tc.method, f.calls[0].method)
		require.Equal(t, tc.req, f.calls[0].req)
		require.Equal(t, "jwt", f.calls[0].bearer)
	}
}

func TestCommands_Errors(t *testing.T) {
	withTmpConfig(t)
	f := &fakeServer{}

	_, err := run(t, f, "item", "mine")
	require.ErrorContains(t, err, "not logged in")
	require.Empty(t, f.calls)

	_, err = run(t, f, "trust", "set", "u-2", "high")
	require.Error(t, err)

	_, err = run(t, f, "loan", "request", "i-1", "--start", "2024-01-01")
	require.Error(t, err, "missing --end")
	require.Empty(t, f.calls)

	f.err = errors.New("unavailable")
	require.NoError(t, saveToken(tokenFile{AccessToken: "jwt", ExpiresAt: time.Now().Add(time.Hour)}))
	_, err = run(t, f, "item", "mine")
	require.ErrorIs(t, err, f.err)
}

func TestScan_AnonymousAndPrints(t *testing.T) {
	withTmpConfig(t)
	f := &fakeServer{reply: map[string]any{"outcome": "login"}}

	out, err := run(t, f, "scan", "i-1")
	require.NoError(t, err)
	require.Empty(t, f.calls[0].bearer)
	require.Contains(t, out, `"outcome"`)
	require.Contains(t, out, `"login"`)
}
