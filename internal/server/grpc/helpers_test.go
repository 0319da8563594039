package grpcserver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	pkgcrypto "github.com/and161185/trustlend/internal/crypto"
	"github.com/and161185/trustlend/internal/limiter"
	"github.com/and161185/trustlend/internal/repository/memory"
	"github.com/and161185/trustlend/internal/service"
)

func makeJWT(t *testing.T, sub string, key []byte, method jwt.SigningMethod, iat time.Time, ttl time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(iat),
		NotBefore: jwt.NewNumericDate(iat),
		ExpiresAt: jwt.NewNumericDate(iat.Add(ttl)),
	}
	token := jwt.NewWithClaims(method, claims)
	s, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return s
}

func ctxWithAuth(token string) context.Context {
	md := metadata.New(map[string]string{
		"authorization": "Bearer " + token,
	})
	return metadata.NewIncomingContext(context.Background(), md)
}

const bufSize = 1 << 20

var testKey = []byte("test-secret")

// testPolicy blocks on the second failure.
var testPolicy = limiter.Policy{Window: time.Minute, MaxFails: 2, BlockFor: time.Minute}

func startBufGRPC(t *testing.T, srv LendingServer) *Client {
	t.Helper()
	log := zaptest.NewLogger(t)
	lis := bufconn.Listen(bufSize)
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(
		RecoverUnary(log),
		AuthUnary(testKey),
		LoggingUnary(log),
	))
	RegisterLendingServer(gs, srv)
	go func() { _ = gs.Serve(lis) }()
	dialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }
	//nolint:staticcheck // DialContext is supported through 1.x; migrate when grpc.NewClient is stable
	cc, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close(); gs.Stop(); _ = lis.Close() })
	return NewClient(cc)
}

// startEngine serves the real services over an in-memory store.
func startEngine(t *testing.T) *Client {
	t.Helper()
	st := memory.New()
	e := service.NewEngine(st.Repos(), service.AuthConfig{
		SignKey:   testKey,
		AccessTTL: time.Hour,
		Limiter:   limiter.NewMemory(testPolicy),
		Hash:      pkgcrypto.Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16},
	}, zaptest.NewLogger(t))
	srv := New(Services{
		Auth:    e.Auth,
		Trust:   e.Trust,
		Catalog: e.Catalog,
		Vis:     e.Vis,
		Loans:   e.Loans,
		Access:  e.Access,
	}, zaptest.NewLogger(t))
	return startBufGRPC(t, srv)
}

func args(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	return s
}

func bearer(token string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
}

// signUp registers and logs in, returning the user id and an authed context.
func signUp(t *testing.T, c *Client, name string) (string, context.Context) {
	t.Helper()
	cred := map[string]any{"username": name, "password": "correct horse"}
	r, err := c.Call(context.Background(), "Register", args(t, cred))
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	l, err := c.Call(context.Background(), "Login", args(t, cred))
	if err != nil {
		t.Fatalf("login %s: %v", name, err)
	}
	id := r.GetFields()["user_id"].GetStringValue()
	if got := l.GetFields()["user_id"].GetStringValue(); got != id {
		t.Fatalf("login user_id %q, register %q", got, id)
	}
	return id, bearer(l.GetFields()["access_token"].GetStringValue())
}

func str(s *structpb.Struct, path ...string) string {
	v := field(s, path...)
	return v.GetStringValue()
}

func field(s *structpb.Struct, path ...string) *structpb.Value {
	var v *structpb.Value
	for _, p := range path {
		v = s.GetFields()[p]
		s = v.GetStructValue()
	}
	return v
}
