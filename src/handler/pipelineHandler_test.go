package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/sangrokhan/ko-stock-filter-sub001/src/execution"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/model"
	"github.com/sangrokhan/ko-stock-filter-sub001/src/pipeline"
)

type mockEntryRunner struct {
	report     *pipeline.Report
	err        error
	candidates []string
}

func (m *mockEntryRunner) RunEntries(_ context.Context, candidates []string) (*pipeline.Report, error) {
	m.candidates = candidates
	return m.report, m.err
}

type mockCanceller struct {
	trade   *model.Trade
	err     error
	orderID string
	reason  string
}

func (m *mockCanceller) CancelOrder(_ context.Context, orderID, reason string) (*model.Trade, error) {
	m.orderID = orderID
	m.reason = reason
	return m.trade, m.err
}

func TestRunEntriesHandler_Success(t *testing.T) {
	runner := &mockEntryRunner{report: &pipeline.Report{Execution: &execution.Result{Executed: 1}}}
	handler := RunEntriesHandler(runner)

	req := httptest.NewRequest(http.MethodPost, "/pipeline/entries",
		strings.NewReader(`{"tickers":["005930","000660"]}`))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if len(runner.candidates) != 2 || runner.candidates[0] != "005930" {
		t.Fatalf("candidates not passed through: %v", runner.candidates)
	}
	if !strings.Contains(rr.Body.String(), `"executed":1`) {
		t.Fatalf("report not encoded: %s", rr.Body.String())
	}
}

func TestRunEntriesHandler_EmptyTickers(t *testing.T) {
	handler := RunEntriesHandler(&mockEntryRunner{})

	req := httptest.NewRequest(http.MethodPost, "/pipeline/entries", strings.NewReader(`{"tickers":[]}`))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestRunEntriesHandler_BadBody(t *testing.T) {
	handler := RunEntriesHandler(&mockEntryRunner{})

	req := httptest.NewRequest(http.MethodPost, "/pipeline/entries", strings.NewReader("not json"))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func cancelRequestFor(orderID, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/orders/%s/cancel", orderID), strings.NewReader(body))

	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("orderID", orderID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestCancelOrderHandler_Success(t *testing.T) {
	canceller := &mockCanceller{trade: &model.Trade{OrderID: "abc", Status: model.OrderStatusCancelled}}
	handler := CancelOrderHandler(canceller)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, cancelRequestFor("abc", `{"reason":"operator request"}`))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if canceller.orderID != "abc" || canceller.reason != "operator request" {
		t.Fatalf("unexpected canceller call: %q %q", canceller.orderID, canceller.reason)
	}
}

func TestCancelOrderHandler_NotFound(t *testing.T) {
	canceller := &mockCanceller{err: fmt.Errorf("%w: abc", execution.ErrOrderNotFound)}
	handler := CancelOrderHandler(canceller)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, cancelRequestFor("abc", ""))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestCancelOrderHandler_Terminal(t *testing.T) {
	canceller := &mockCanceller{err: fmt.Errorf("%w: abc is EXECUTED", execution.ErrOrderTerminal)}
	handler := CancelOrderHandler(canceller)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, cancelRequestFor("abc", ""))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}
