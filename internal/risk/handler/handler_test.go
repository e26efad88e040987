package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custos/internal/risk"
	"custos/internal/transaction"
	id "custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/testutil"
)

type stubScorer struct {
	result *risk.Result
	err    error
	gotReq risk.ScoreRequest
}

func (s *stubScorer) ScoreTransaction(_ context.Context, req risk.ScoreRequest) (*risk.Result, error) {
	s.gotReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func newRiskRouter(svc Service) chi.Router {
	r := chi.NewRouter()
	New(svc, nil).Register(r)
	return r
}

func TestHandleScore(t *testing.T) {
	subject := id.NewAccountID()
	proposedAt := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	stub := &stubScorer{result: &risk.Result{
		Score:   42.5,
		Level:   transaction.RiskAmber,
		Factors: []string{"unusual quantity"},
	}}
	router := newRiskRouter(stub)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/transactions/score", map[string]any{
		"subject_id": subject.String(),
		"quantity":   25,
		"item_type":  "firearm",
	})
	req = testutil.WithRequestID(req, "score-test")
	req = testutil.WithRequestTime(req, proposedAt)
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatusOK(t, rr)
	result := testutil.UnmarshalResponse[risk.Result](t, rr)
	assert.InDelta(t, 42.5, result.Score, 0.001)
	assert.Equal(t, transaction.RiskAmber, result.Level)
	assert.Equal(t, []string{"unusual quantity"}, result.Factors)

	require.Equal(t, subject, stub.gotReq.SubjectID)
	assert.Equal(t, 25, stub.gotReq.Quantity)
	assert.Equal(t, proposedAt, stub.gotReq.ProposedAt)
}

func TestHandleScoreRejectsBadSubjectID(t *testing.T) {
	router := newRiskRouter(&stubScorer{result: &risk.Result{}})

	req := testutil.NewJSONRequest(t, http.MethodPost, "/transactions/score", map[string]any{
		"subject_id": "not-a-uuid",
		"quantity":   1,
		"item_type":  "firearm",
	})
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation")
}

func TestHandleScoreRejectsBadCounterpartyID(t *testing.T) {
	router := newRiskRouter(&stubScorer{result: &risk.Result{}})

	req := testutil.NewJSONRequest(t, http.MethodPost, "/transactions/score", map[string]any{
		"subject_id":      id.NewAccountID().String(),
		"counterparty_id": "bogus",
		"quantity":        1,
		"item_type":       "firearm",
	})
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation")
}

func TestHandleScoreRejectsMalformedBody(t *testing.T) {
	router := newRiskRouter(&stubScorer{result: &risk.Result{}})

	req := testutil.NewRequestWithBody(t, http.MethodPost, "/transactions/score", "{not json")
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
}

func TestHandleScoreRejectsUnknownFields(t *testing.T) {
	router := newRiskRouter(&stubScorer{result: &risk.Result{}})

	req := testutil.NewJSONRequest(t, http.MethodPost, "/transactions/score", map[string]any{
		"subject_id": id.NewAccountID().String(),
		"quantity":   1,
		"item_type":  "firearm",
		"surprise":   true,
	})
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
}

func TestHandleScoreMapsServiceErrors(t *testing.T) {
	router := newRiskRouter(&stubScorer{err: dErrors.New(dErrors.CodeValidation, "quantity must be positive")})

	req := testutil.NewJSONRequest(t, http.MethodPost, "/transactions/score", map[string]any{
		"subject_id": id.NewAccountID().String(),
		"quantity":   -1,
		"item_type":  "firearm",
	})
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation")
}
