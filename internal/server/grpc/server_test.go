package grpcserver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/trustlend/internal/limiter"
)

func wantCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	if got := status.Code(err); got != want {
		t.Fatalf("code = %v, want %v (err=%v)", got, want, err)
	}
}

func outcome(t *testing.T, c *Client, ctx context.Context, itemID string) *structpb.Struct {
	t.Helper()
	d, err := c.Call(ctx, "Scan", args(t, map[string]any{"item_id": itemID}))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	return d
}

func TestServer_E2E_TrustToLoanToReturn(t *testing.T) {
	t.Parallel()
	c := startEngine(t)

	aliceID, alice := signUp(t, c, "alice")
	bobID, bob := signUp(t, c, "bob")

	_, err := c.Call(alice, "SetTrust", args(t, map[string]any{"trustee_id": aliceID, "level": 3}))
	wantCode(t, err, codes.InvalidArgument)

	created, err := c.Call(alice, "CreateItem", args(t, map[string]any{
		"title":                "Drill",
		"category":             "tools",
		"required_trust_level": 3,
	}))
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	itemID := str(created, "item", "id")

	// anonymous scan asks for login
	if got := str(outcome(t, c, context.Background(), itemID), "outcome"); got != "login" {
		t.Fatalf("anonymous outcome %q", got)
	}

	d := outcome(t, c, bob, itemID)
	if str(d, "outcome") != "request_trust" || field(d, "trust_request_pending").GetBoolValue() {
		t.Fatalf("stranger decision: %v", d)
	}
	if str(d, "owner", "username") != "alice" {
		t.Fatalf("owner summary: %v", d)
	}

	req, err := c.Call(bob, "RequestTrust", args(t, map[string]any{"target_id": aliceID, "message": "hi"}))
	if err != nil {
		t.Fatalf("request trust: %v", err)
	}
	if _, ok := field(req, "request").GetStructValue().GetFields()["level"]; ok {
		t.Fatalf("trust request carries a level")
	}
	if str(req, "request", "requester_id") != bobID {
		t.Fatalf("requester: %v", req)
	}

	_, err = c.Call(bob, "RequestTrust", args(t, map[string]any{"target_id": aliceID}))
	wantCode(t, err, codes.AlreadyExists)

	if !field(outcome(t, c, bob, itemID), "trust_request_pending").GetBoolValue() {
		t.Fatalf("pending request not reported")
	}

	in, err := c.Call(alice, "ListIncomingTrustRequests", nil)
	if err != nil {
		t.Fatalf("incoming: %v", err)
	}
	if n := len(field(in, "requests").GetListValue().GetValues()); n != 1 {
		t.Fatalf("incoming requests = %d", n)
	}

	// level 2 is below the item's requirement
	if _, err = c.Call(alice, "SetTrust", args(t, map[string]any{"trustee_id": bobID, "level": 2})); err != nil {
		t.Fatalf("set trust: %v", err)
	}
	d = outcome(t, c, bob, itemID)
	if str(d, "outcome") != "insufficient_trust" ||
		field(d, "required_level").GetNumberValue() != 3 || field(d, "current_level").GetNumberValue() != 2 {
		t.Fatalf("insufficient decision: %v", d)
	}
	_, err = c.Call(bob, "GetItem", args(t, map[string]any{"item_id": itemID}))
	wantCode(t, err, codes.NotFound)

	out, err := c.Call(bob, "ListOutgoingTrustRequests", nil)
	if err != nil {
		t.Fatalf("outgoing: %v", err)
	}
	reqs := field(out, "requests").GetListValue().GetValues()
	if len(reqs) != 1 || reqs[0].GetStructValue().GetFields()["status"].GetStringValue() != "approved" {
		t.Fatalf("request not approved by SetTrust: %v", out)
	}

	if _, err = c.Call(alice, "SetTrust", args(t, map[string]any{"trustee_id": bobID, "level": 3})); err != nil {
		t.Fatalf("raise trust: %v", err)
	}
	vis, err := c.Call(bob, "VisibleItems", nil)
	if err != nil {
		t.Fatalf("visible: %v", err)
	}
	if n := len(field(vis, "items").GetListValue().GetValues()); n != 1 {
		t.Fatalf("visible items = %d", n)
	}
	d = outcome(t, c, bob, itemID)
	if str(d, "outcome") != "view" || !field(d, "available").GetBoolValue() {
		t.Fatalf("view decision: %v", d)
	}

	now := time.Now().UTC()
	lr, err := c.Call(bob, "CreateLoanRequest", args(t, map[string]any{
		"item_id": itemID,
		"start":   now.Add(-time.Hour).Format(time.RFC3339),
		"end":     now.Add(7 * 24 * time.Hour).Format(time.RFC3339),
	}))
	if err != nil {
		t.Fatalf("loan request: %v", err)
	}
	reqID := str(lr, "request", "id")

	_, err = c.Call(bob, "ApproveLoanRequest", args(t, map[string]any{"request_id": reqID}))
	wantCode(t, err, codes.PermissionDenied)

	loan, err := c.Call(alice, "ApproveLoanRequest", args(t, map[string]any{"request_id": reqID}))
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if str(loan, "loan", "status") != "active" || str(loan, "loan", "request_id") != reqID {
		t.Fatalf("loan: %v", loan)
	}
	loanID := str(loan, "loan", "id")

	_, err = c.Call(alice, "ApproveLoanRequest", args(t, map[string]any{"request_id": reqID}))
	wantCode(t, err, codes.FailedPrecondition)

	_, err = c.Call(alice, "LendDirect", args(t, map[string]any{
		"item_id":     itemID,
		"borrower_id": bobID,
		"start":       now.Format("2006-01-02"),
		"end":         now.Add(48 * time.Hour).Format("2006-01-02"),
	}))
	wantCode(t, err, codes.FailedPrecondition)

	if field(outcome(t, c, bob, itemID), "available").GetBoolValue() {
		t.Fatalf("item on loan reported available")
	}
	active, err := c.Call(bob, "ActiveLoan", args(t, map[string]any{"item_id": itemID}))
	if err != nil || str(active, "loan", "id") != loanID {
		t.Fatalf("active loan: %v %v", active, err)
	}

	ret, err := c.Call(bob, "MarkReturned", args(t, map[string]any{"loan_id": loanID}))
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if str(ret, "loan", "status") != "returned" || str(ret, "loan", "actual_end_date") == "" {
		t.Fatalf("returned loan: %v", ret)
	}
	_, err = c.Call(alice, "MarkReturned", args(t, map[string]any{"loan_id": loanID}))
	wantCode(t, err, codes.FailedPrecondition)

	active, err = c.Call(alice, "ActiveLoan", args(t, map[string]any{"item_id": itemID}))
	if err != nil {
		t.Fatalf("active after return: %v", err)
	}
	if _, isNull := field(active, "loan").GetKind().(*structpb.Value_NullValue); !isNull {
		t.Fatalf("loan still active: %v", active)
	}

	hist, err := c.Call(bob, "ListLoans", args(t, map[string]any{"role": "borrower", "status": "returned"}))
	if err != nil {
		t.Fatalf("list loans: %v", err)
	}
	if n := len(field(hist, "loans").GetListValue().GetValues()); n != 1 {
		t.Fatalf("returned loans = %d", n)
	}
}

func TestServer_Unauthenticated(t *testing.T) {
	t.Parallel()
	c := startEngine(t)

	for _, m := range []string{"VisibleItems", "ListTrustees", "ListOwnItems", "ListLoans"} {
		_, err := c.Call(context.Background(), m, nil)
		wantCode(t, err, codes.Unauthenticated)
	}

	_, err := c.Call(bearer("garbage"), "VisibleItems", nil)
	wantCode(t, err, codes.Unauthenticated)

	wrongKey := makeJWT(t, "00000000-0000-0000-0000-000000000001", []byte("other"),
		jwt.SigningMethodHS256, time.Now().Add(-time.Minute), time.Hour)
	_, err = c.Call(bearer(wrongKey), "VisibleItems", nil)
	wantCode(t, err, codes.Unauthenticated)
}

func TestServer_ErrorMapping(t *testing.T) {
	t.Parallel()
	c := startEngine(t)
	_, alice := signUp(t, c, "alice")

	_, err := c.Call(context.Background(), "Register",
		args(t, map[string]any{"username": "alice", "password": "correct horse"}))
	wantCode(t, err, codes.AlreadyExists)

	_, err = c.Call(context.Background(), "Register", args(t, map[string]any{"username": "x"}))
	wantCode(t, err, codes.InvalidArgument)

	_, err = c.Call(alice, "GetItem", args(t, map[string]any{"item_id": "not-a-uuid"}))
	wantCode(t, err, codes.InvalidArgument)

	_, err = c.Call(alice, "GetItem", args(t, map[string]any{"item_id": "00000000-0000-0000-0000-000000000009"}))
	wantCode(t, err, codes.NotFound)

	_, err = c.Call(alice, "CreateItem", args(t, map[string]any{"title": "x", "required_trust_level": 9}))
	wantCode(t, err, codes.InvalidArgument)

	_, err = c.Call(alice, "CreateItem", args(t, map[string]any{"title": "x", "required_trust_level": 2.5}))
	wantCode(t, err, codes.InvalidArgument)

	_, err = c.Call(alice, "ListLoans", args(t, map[string]any{"role": "thief"}))
	wantCode(t, err, codes.InvalidArgument)
}

func TestServer_LoginLimiter(t *testing.T) {
	t.Parallel()
	c := startEngine(t)
	signUp(t, c, "carol")

	bad := args(t, map[string]any{"username": "carol", "password": "wrong password"})
	_, err := c.Call(context.Background(), "Login", bad)
	wantCode(t, err, codes.Unauthenticated)

	_, err = c.Call(context.Background(), "Login", bad)
	wantCode(t, err, codes.ResourceExhausted)

	good := args(t, map[string]any{"username": "carol", "password": "correct horse"})
	_, err = c.Call(context.Background(), "Login", good)
	wantCode(t, err, codes.ResourceExhausted)
}

func TestRemoteIP_DropsPort(t *testing.T) {
	t.Parallel()

	withPeer := func(a net.Addr) context.Context {
		return peer.NewContext(context.Background(), &peer.Peer{Addr: a})
	}
	ip := net.ParseIP("203.0.113.7")
	c1 := withPeer(&net.TCPAddr{IP: ip, Port: 50001})
	c2 := withPeer(&net.TCPAddr{IP: ip, Port: 50002})

	require.Equal(t, "203.0.113.7", remoteIP(c1))
	require.Equal(t, limiter.HashIP(remoteIP(c1)), limiter.HashIP(remoteIP(c2)))

	v6 := withPeer(&net.TCPAddr{IP: net.ParseIP("2001:db8::1"), Port: 443})
	require.Equal(t, "2001:db8::1", remoteIP(v6))

	// bufconn and unix sockets carry no port
	require.Equal(t, "bufconn", remoteIP(withPeer(&net.UnixAddr{Name: "bufconn", Net: "unix"})))
	require.Empty(t, remoteIP(context.Background()))
}
