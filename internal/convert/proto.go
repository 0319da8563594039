// Package convert maps domain values to and from the protobuf Struct messages
// carried by the lending API.
package convert

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/trustlend/internal/errs"
	"github.com/and161185/trustlend/internal/model"
)

const (
	// TimeLayout is the wire format of every timestamp.
	TimeLayout = time.RFC3339
	// DateLayout is accepted for date-only input besides RFC 3339.
	DateLayout = "2006-01-02"
)

// --- helpers ---

func ts(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(TimeLayout)
}

func optTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return ts(*t)
}

func list[T any](xs []T, f func(T) map[string]any) []any {
	out := make([]any, 0, len(xs))
	for _, x := range xs {
		out = append(out, f(x))
	}
	return out
}

// Encode builds a Struct from plain Go values.
func Encode(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return s, nil
}

// --- domain -> wire ---

// Item encodes an item.
func Item(it model.Item) map[string]any {
	return map[string]any{
		"id":                   it.ID.String(),
		"owner_id":             it.OwnerID.String(),
		"title":                it.Title,
		"description":          it.Description,
		"category":             it.Category,
		"required_trust_level": it.RequiredTrustLevel,
		"hidden":               it.Hidden,
		"created_at":           ts(it.CreatedAt),
		"updated_at":           ts(it.UpdatedAt),
	}
}

// Items encodes a list of items.
func Items(xs []model.Item) []any { return list(xs, Item) }

// VisibleItem encodes an item with its owner summary.
func VisibleItem(it model.ItemWithOwnerSummary) map[string]any {
	m := Item(it.Item)
	m["owner"] = map[string]any{"id": it.Owner.ID.String(), "username": it.Owner.Username}
	return m
}

// VisibleItems encodes a list of visible items.
func VisibleItems(xs []model.ItemWithOwnerSummary) []any { return list(xs, VisibleItem) }

// Edge encodes a trust edge as seen by its truster.
func Edge(e model.TrustEdge) map[string]any {
	return map[string]any{
		"truster_id": e.TrusterID.String(),
		"trustee_id": e.TrusteeID.String(),
		"level":      e.Level,
		"updated_at": ts(e.UpdatedAt),
	}
}

// Trustee encodes one connection of a truster.
func Trustee(t model.Trustee) map[string]any {
	return map[string]any{"user_id": t.TrusteeID.String(), "username": t.Username, "level": t.Level}
}

// Trustees encodes a truster's connection list.
func Trustees(xs []model.Trustee) []any { return list(xs, Trustee) }

// TrustRequest encodes a trust request. It has no level by construction.
func TrustRequest(tr model.TrustRequest) map[string]any {
	m := map[string]any{
		"id":           tr.ID.String(),
		"requester_id": tr.RequesterID.String(),
		"target_id":    tr.TargetID.String(),
		"status":       string(tr.Status),
		"message":      tr.Message,
		"created_at":   ts(tr.CreatedAt),
		"resolved_at":  optTS(tr.ResolvedAt),
	}
	if tr.RequesterName != "" {
		m["requester_name"] = tr.RequesterName
	}
	if tr.TargetName != "" {
		m["target_name"] = tr.TargetName
	}
	return m
}

// TrustRequests encodes a list of trust requests.
func TrustRequests(xs []model.TrustRequest) []any { return list(xs, TrustRequest) }

// LoanRequest encodes a loan request.
func LoanRequest(lr model.LoanRequest) map[string]any {
	m := map[string]any{
		"id":              lr.ID.String(),
		"item_id":         lr.ItemID.String(),
		"borrower_id":     lr.BorrowerID.String(),
		"requested_start": ts(lr.RequestedStartDate),
		"requested_end":   ts(lr.RequestedEndDate),
		"status":          string(lr.Status),
		"message":         lr.Message,
		"created_at":      ts(lr.CreatedAt),
		"resolved_at":     optTS(lr.ResolvedAt),
		"item_title":      lr.ItemTitle,
	}
	if lr.BorrowerName != "" {
		m["borrower_name"] = lr.BorrowerName
	}
	return m
}

// LoanRequests encodes a list of loan requests.
func LoanRequests(xs []model.LoanRequest) []any { return list(xs, LoanRequest) }

// Loan encodes a loan with whatever status the caller derived.
func Loan(l model.Loan) map[string]any {
	m := map[string]any{
		"id":                l.ID.String(),
		"item_id":           l.ItemID.String(),
		"item_title":        l.ItemTitle,
		"borrower_id":       l.BorrowerID.String(),
		"lender_id":         l.LenderID.String(),
		"start_date":        ts(l.StartDate),
		"expected_end_date": ts(l.ExpectedEndDate),
		"actual_end_date":   optTS(l.ActualEndDate),
		"status":            string(l.Status),
		"created_at":        ts(l.CreatedAt),
		"request_id":        nil,
	}
	if l.RequestID != nil {
		m["request_id"] = l.RequestID.String()
	}
	return m
}

// Loans encodes a list of loans.
func Loans(xs []model.Loan) []any { return list(xs, Loan) }

// Decision encodes a scan outcome with only the fields relevant to it.
func Decision(d model.AccessDecision) map[string]any {
	m := map[string]any{"outcome": string(d.Outcome)}
	if d.Outcome != model.OutcomeLogin {
		m["owner"] = map[string]any{"id": d.Owner.ID.String(), "username": d.Owner.Username}
	}
	switch d.Outcome {
	case model.OutcomeRequestTrust:
		m["trust_request_pending"] = d.TrustRequestPending
	case model.OutcomeInsufficientTrust:
		m["required_level"] = d.RequiredLevel
		m["current_level"] = d.CurrentLevel
	case model.OutcomeView:
		if d.Item != nil {
			m["item"] = VisibleItem(*d.Item)
		}
		m["is_owner"] = d.IsOwner
		m["available"] = d.Available
	}
	return m
}

// --- wire -> domain ---

// Fields reads typed arguments out of a request Struct. Every failure wraps
// errs.ErrInvalidInput.
type Fields struct {
	f map[string]*structpb.Value
}

// Read wraps a request; a nil request reads as empty.
func Read(s *structpb.Struct) Fields {
	return Fields{f: s.GetFields()}
}

func bad(key, why string) error {
	return fmt.Errorf("field %q: %s: %w", key, why, errs.ErrInvalidInput)
}

// Has reports whether key is present and not null.
func (r Fields) Has(key string) bool {
	v, ok := r.f[key]
	if !ok {
		return false
	}
	_, isNull := v.GetKind().(*structpb.Value_NullValue)
	return !isNull
}

// String returns a string field, "" when absent.
func (r Fields) String(key string) (string, error) {
	if !r.Has(key) {
		return "", nil
	}
	sv, ok := r.f[key].GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", bad(key, "want string")
	}
	return sv.StringValue, nil
}

// Bool returns a bool field, false when absent.
func (r Fields) Bool(key string) (bool, error) {
	if !r.Has(key) {
		return false, nil
	}
	bv, ok := r.f[key].GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return false, bad(key, "want bool")
	}
	return bv.BoolValue, nil
}

// Int returns an integral number field, 0 when absent.
func (r Fields) Int(key string) (int, error) {
	if !r.Has(key) {
		return 0, nil
	}
	nv, ok := r.f[key].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, bad(key, "want number")
	}
	n := nv.NumberValue
	if n != float64(int(n)) {
		return 0, bad(key, "want integer")
	}
	return int(n), nil
}

// UUID returns a required id field.
func (r Fields) UUID(key string) (uuid.UUID, error) {
	s, err := r.String(key)
	if err != nil {
		return uuid.Nil, err
	}
	if s == "" {
		return uuid.Nil, bad(key, "required")
	}
	id, err := uuid.FromString(s)
	if err != nil {
		return uuid.Nil, bad(key, "not a uuid")
	}
	return id, nil
}

// Time returns a required timestamp (RFC 3339 or YYYY-MM-DD, UTC).
func (r Fields) Time(key string) (time.Time, error) {
	t, err := r.OptTime(key)
	if err != nil {
		return time.Time{}, err
	}
	if t == nil {
		return time.Time{}, bad(key, "required")
	}
	return *t, nil
}

// OptTime returns a timestamp or nil when absent.
func (r Fields) OptTime(key string) (*time.Time, error) {
	s, err := r.String(key)
	if err != nil || s == "" {
		return nil, err
	}
	for _, layout := range []string{time.RFC3339Nano, DateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, bad(key, "want RFC 3339 time or YYYY-MM-DD")
}

// Draft reads the mutable attributes of an item.
func (r Fields) Draft() (model.ItemDraft, error) {
	var (
		d   model.ItemDraft
		err error
	)
	if d.Title, err = r.String("title"); err != nil {
		return d, err
	}
	if d.Description, err = r.String("description"); err != nil {
		return d, err
	}
	if d.Category, err = r.String("category"); err != nil {
		return d, err
	}
	if d.RequiredTrustLevel, err = r.Int("required_trust_level"); err != nil {
		return d, err
	}
	if d.Hidden, err = r.Bool("hidden"); err != nil {
		return d, err
	}
	return d, nil
}
