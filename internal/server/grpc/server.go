// Package grpcserver exposes the lending engine over gRPC.
package grpcserver

import (
	"context"
	"errors"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/trustlend/internal/convert"
	"github.com/and161185/trustlend/internal/errs"
	"github.com/and161185/trustlend/internal/model"
	"github.com/and161185/trustlend/internal/service"
)

// Services groups the engine components the server delegates to.
type Services struct {
	Auth    service.AuthService
	Trust   service.TrustService
	Catalog service.CatalogService
	Vis     service.VisibilityService
	Loans   service.LoanService
	Access  service.AccessService
}

// Server wires services into gRPC handlers.
type Server struct {
	Services
	log *zap.Logger
}

var _ LendingServer = (*Server)(nil)

// New constructs a gRPC server with injected services.
func New(svc Services, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{Services: svc, log: log}
}

func empty() *structpb.Struct { return &structpb.Struct{} }

func (s *Server) reply(op string, m map[string]any) (*structpb.Struct, error) {
	out, err := convert.Encode(m)
	if err != nil {
		return nil, s.toStatus(op, err)
	}
	return out, nil
}

// remoteIP returns the peer host without its port, so reconnects share a limiter key.
func remoteIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// --- Auth ---

// Register creates an account. In: username, password. Out: user_id.
func (s *Server) Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := convert.Read(req)
	username, err := f.String("username")
	if err != nil {
		return nil, s.toStatus("register", err)
	}
	password, err := f.String("password")
	if err != nil {
		return nil, s.toStatus("register", err)
	}
	if username == "" || password == "" {
		return nil, status.Error(codes.InvalidArgument, "empty username/password")
	}
	id, err := s.Auth.Register(ctx, username, password)
	if err != nil {
		return nil, s.toStatus("register", err)
	}
	return s.reply("register", map[string]any{"user_id": id.String()})
}

// Login authenticates a user. In: username, password. Out: access_token,
// expires_at, user_id.
func (s *Server) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := convert.Read(req)
	username, err := f.String("username")
	if err != nil {
		return nil, s.toStatus("login", err)
	}
	password, err := f.String("password")
	if err != nil {
		return nil, s.toStatus("login", err)
	}
	tok, u, err := s.Auth.LoginWithIP(ctx, username, password, remoteIP(ctx))
	if err != nil {
		if errors.Is(err, errs.ErrUnauthorized) {
			return nil, status.Error(codes.Unauthenticated, "bad credentials")
		}
		return nil, s.toStatus("login", err)
	}
	return s.reply("login", map[string]any{
		"access_token": tok.AccessToken,
		"expires_at":   tok.ExpiresAt.UTC().Format(convert.TimeLayout),
		"user_id":      u.ID.String(),
	})
}

// --- Trust ---

// SetTrust grants trust. In: trustee_id, level.
func (s *Server) SetTrust(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	f := convert.Read(req)
	trustee, err := f.UUID("trustee_id")
	if err != nil {
		return nil, s.toStatus("set trust", err)
	}
	level, err := f.Int("level")
	if err != nil {
		return nil, s.toStatus("set trust", err)
	}
	edge, err := s.Trust.SetTrust(ctx, me, trustee, level)
	if err != nil {
		return nil, s.toStatus("set trust", err)
	}
	return s.reply("set trust", convert.Edge(edge))
}

// GetTrust returns the caller's level for trustee_id; 0 when none.
func (s *Server) GetTrust(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	trustee, err := convert.Read(req).UUID("trustee_id")
	if err != nil {
		return nil, s.toStatus("get trust", err)
	}
	level, err := s.Trust.GetTrust(ctx, me, trustee)
	if err != nil {
		return nil, s.toStatus("get trust", err)
	}
	return s.reply("get trust", map[string]any{"level": level})
}

// ListTrustees returns the caller's connections.
func (s *Server) ListTrustees(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	xs, err := s.Trust.ListTrustees(ctx, me)
	if err != nil {
		return nil, s.toStatus("list trustees", err)
	}
	return s.reply("list trustees", map[string]any{"trustees": convert.Trustees(xs)})
}

// RequestTrust asks target_id to trust the caller. In: target_id, message.
func (s *Server) RequestTrust(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	f := convert.Read(req)
	target, err := f.UUID("target_id")
	if err != nil {
		return nil, s.toStatus("request trust", err)
	}
	msg, err := f.String("message")
	if err != nil {
		return nil, s.toStatus("request trust", err)
	}
	tr, err := s.Trust.RequestTrust(ctx, me, target, msg)
	if err != nil {
		return nil, s.toStatus("request trust", err)
	}
	return s.reply("request trust", map[string]any{"request": convert.TrustRequest(*tr)})
}

// DenyTrustRequest turns request_id down.
func (s *Server) DenyTrustRequest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	id, err := convert.Read(req).UUID("request_id")
	if err != nil {
		return nil, s.toStatus("deny trust request", err)
	}
	if err := s.Trust.DenyTrustRequest(ctx, id, me); err != nil {
		return nil, s.toStatus("deny trust request", err)
	}
	return empty(), nil
}

// ListIncomingTrustRequests returns pending requests addressed to the caller.
func (s *Server) ListIncomingTrustRequests(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	xs, err := s.Trust.ListIncomingTrustRequests(ctx, me)
	if err != nil {
		return nil, s.toStatus("list incoming trust requests", err)
	}
	return s.reply("list incoming trust requests", map[string]any{"requests": convert.TrustRequests(xs)})
}

// ListOutgoingTrustRequests returns the caller's requests.
func (s *Server) ListOutgoingTrustRequests(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	xs, err := s.Trust.ListOutgoingTrustRequests(ctx, me)
	if err != nil {
		return nil, s.toStatus("list outgoing trust requests", err)
	}
	return s.reply("list outgoing trust requests", map[string]any{"requests": convert.TrustRequests(xs)})
}

// --- Items ---

// CreateItem adds an item. In: title, description, category,
// required_trust_level, hidden.
func (s *Server) CreateItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	d, err := convert.Read(req).Draft()
	if err != nil {
		return nil, s.toStatus("create item", err)
	}
	it, err := s.Catalog.CreateItem(ctx, me, d)
	if err != nil {
		return nil, s.toStatus("create item", err)
	}
	return s.reply("create item", map[string]any{"item": convert.Item(*it)})
}

// UpdateItem overwrites item_id with the draft fields of CreateItem.
func (s *Server) UpdateItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	f := convert.Read(req)
	id, err := f.UUID("item_id")
	if err != nil {
		return nil, s.toStatus("update item", err)
	}
	d, err := f.Draft()
	if err != nil {
		return nil, s.toStatus("update item", err)
	}
	it, err := s.Catalog.UpdateItem(ctx, me, id, d)
	if err != nil {
		return nil, s.toStatus("update item", err)
	}
	return s.reply("update item", map[string]any{"item": convert.Item(*it)})
}

// DeleteItem removes item_id.
func (s *Server) DeleteItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	id, err := convert.Read(req).UUID("item_id")
	if err != nil {
		return nil, s.toStatus("delete item", err)
	}
	if err := s.Catalog.DeleteItem(ctx, me, id); err != nil {
		return nil, s.toStatus("delete item", err)
	}
	return empty(), nil
}

// GetItem returns item_id if the caller owns it or may see it.
func (s *Server) GetItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	id, err := convert.Read(req).UUID("item_id")
	if err != nil {
		return nil, s.toStatus("get item", err)
	}
	it, err := s.Catalog.GetItem(ctx, me, id)
	if err != nil {
		return nil, s.toStatus("get item", err)
	}
	return s.reply("get item", map[string]any{"item": convert.VisibleItem(*it)})
}

// ListOwnItems returns the caller's items.
func (s *Server) ListOwnItems(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	xs, err := s.Catalog.ListOwnItems(ctx, me)
	if err != nil {
		return nil, s.toStatus("list own items", err)
	}
	return s.reply("list own items", map[string]any{"items": convert.Items(xs)})
}

// VisibleItems returns what the caller may see.
func (s *Server) VisibleItems(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	xs, err := s.Vis.VisibleItems(ctx, me)
	if err != nil {
		return nil, s.toStatus("visible items", err)
	}
	return s.reply("visible items", map[string]any{"items": convert.VisibleItems(xs)})
}

// SearchItems filters VisibleItems by query.
func (s *Server) SearchItems(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	q, err := convert.Read(req).String("query")
	if err != nil {
		return nil, s.toStatus("search items", err)
	}
	xs, err := s.Vis.SearchItems(ctx, me, q)
	if err != nil {
		return nil, s.toStatus("search items", err)
	}
	return s.reply("search items", map[string]any{"items": convert.VisibleItems(xs)})
}

// --- Loans ---

// CreateLoanRequest asks to borrow item_id from start to end.
func (s *Server) CreateLoanRequest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	f := convert.Read(req)
	id, err := f.UUID("item_id")
	if err != nil {
		return nil, s.toStatus("create loan request", err)
	}
	start, err := f.Time("start")
	if err != nil {
		return nil, s.toStatus("create loan request", err)
	}
	end, err := f.Time("end")
	if err != nil {
		return nil, s.toStatus("create loan request", err)
	}
	msg, err := f.String("message")
	if err != nil {
		return nil, s.toStatus("create loan request", err)
	}
	lr, err := s.Loans.CreateLoanRequest(ctx, me, id, start, end, msg)
	if err != nil {
		return nil, s.toStatus("create loan request", err)
	}
	return s.reply("create loan request", map[string]any{"request": convert.LoanRequest(*lr)})
}

// ApproveLoanRequest turns request_id into an active loan.
func (s *Server) ApproveLoanRequest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	id, err := convert.Read(req).UUID("request_id")
	if err != nil {
		return nil, s.toStatus("approve loan request", err)
	}
	l, err := s.Loans.ApproveLoanRequest(ctx, id, me)
	if err != nil {
		return nil, s.toStatus("approve loan request", err)
	}
	return s.reply("approve loan request", map[string]any{"loan": convert.Loan(*l)})
}

// DenyLoanRequest turns request_id down.
func (s *Server) DenyLoanRequest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	id, err := convert.Read(req).UUID("request_id")
	if err != nil {
		return nil, s.toStatus("deny loan request", err)
	}
	if err := s.Loans.DenyLoanRequest(ctx, id, me); err != nil {
		return nil, s.toStatus("deny loan request", err)
	}
	return empty(), nil
}

// ListIncomingLoanRequests returns pending requests for the caller's items.
func (s *Server) ListIncomingLoanRequests(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	xs, err := s.Loans.ListIncomingLoanRequests(ctx, me)
	if err != nil {
		return nil, s.toStatus("list incoming loan requests", err)
	}
	return s.reply("list incoming loan requests", map[string]any{"requests": convert.LoanRequests(xs)})
}

// ListOutgoingLoanRequests returns the caller's loan requests.
func (s *Server) ListOutgoingLoanRequests(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	xs, err := s.Loans.ListOutgoingLoanRequests(ctx, me)
	if err != nil {
		return nil, s.toStatus("list outgoing loan requests", err)
	}
	return s.reply("list outgoing loan requests", map[string]any{"requests": convert.LoanRequests(xs)})
}

// LendDirect records handing item_id to borrower_id from start to end.
func (s *Server) LendDirect(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	f := convert.Read(req)
	item, err := f.UUID("item_id")
	if err != nil {
		return nil, s.toStatus("lend direct", err)
	}
	borrower, err := f.UUID("borrower_id")
	if err != nil {
		return nil, s.toStatus("lend direct", err)
	}
	start, err := f.Time("start")
	if err != nil {
		return nil, s.toStatus("lend direct", err)
	}
	end, err := f.Time("end")
	if err != nil {
		return nil, s.toStatus("lend direct", err)
	}
	l, err := s.Loans.LendDirect(ctx, me, borrower, item, start, end)
	if err != nil {
		return nil, s.toStatus("lend direct", err)
	}
	return s.reply("lend direct", map[string]any{"loan": convert.Loan(*l)})
}

// MarkReturned closes loan_id; actual_end defaults to now.
func (s *Server) MarkReturned(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	f := convert.Read(req)
	id, err := f.UUID("loan_id")
	if err != nil {
		return nil, s.toStatus("mark returned", err)
	}
	end, err := f.OptTime("actual_end")
	if err != nil {
		return nil, s.toStatus("mark returned", err)
	}
	l, err := s.Loans.MarkReturned(ctx, id, me, end)
	if err != nil {
		return nil, s.toStatus("mark returned", err)
	}
	return s.reply("mark returned", map[string]any{"loan": convert.Loan(*l)})
}

// ActiveLoan returns the active loan of item_id to its parties; loan is null
// when the item is not out.
func (s *Server) ActiveLoan(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	id, err := convert.Read(req).UUID("item_id")
	if err != nil {
		return nil, s.toStatus("active loan", err)
	}
	l, err := s.Loans.ActiveLoanSeenBy(ctx, me, id)
	if err != nil {
		return nil, s.toStatus("active loan", err)
	}
	out := map[string]any{"loan": nil}
	if l != nil {
		out["loan"] = convert.Loan(*l)
	}
	return s.reply("active loan", out)
}

// ListLoans returns the caller's loans. In: role (lender|borrower), optional
// status (active|overdue|returned).
func (s *Server) ListLoans(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	f := convert.Read(req)
	role, err := f.String("role")
	if err != nil {
		return nil, s.toStatus("list loans", err)
	}
	st, err := f.String("status")
	if err != nil {
		return nil, s.toStatus("list loans", err)
	}
	xs, err := s.Loans.ListLoans(ctx, me, model.LoanRole(role), model.LoanStatus(st))
	if err != nil {
		return nil, s.toStatus("list loans", err)
	}
	return s.reply("list loans", map[string]any{"loans": convert.Loans(xs)})
}

// --- Access ---

// Scan routes a scanned item code. Anonymous callers are answered with the
// login outcome rather than Unauthenticated.
func (s *Server) Scan(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := convert.Read(req).UUID("item_id")
	if err != nil {
		return nil, s.toStatus("scan", err)
	}
	me, _ := UserIDFromCtx(ctx) // uuid.Nil when anonymous
	d, err := s.Access.Scan(ctx, me, id)
	if err != nil {
		return nil, s.toStatus("scan", err)
	}
	return s.reply("scan", convert.Decision(d))
}
