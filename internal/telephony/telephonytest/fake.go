// Package telephonytest provides a scriptable telephony.Provider for tests.
package telephonytest

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonathan/autodialer/internal/telephony"
)

// FakeProvider implements telephony.Provider. Unset hooks succeed: CreateCall
// returns sequential IDs ("CA1", "CA2", ...), FetchCall reports completed and
// FetchAccount reports an active account. Every request is recorded.
type FakeProvider struct {
	CreateCallFunc   func(ctx context.Context, req telephony.CallRequest) (string, error)
	FetchCallFunc    func(ctx context.Context, callID string) (telephony.CallInfo, error)
	FetchAccountFunc func(ctx context.Context) (telephony.AccountInfo, error)

	mu       sync.Mutex
	requests []telephony.CallRequest
	created  int
}

var _ telephony.Provider = (*FakeProvider)(nil)

// CreateCall records req and calls CreateCallFunc when set
func (f *FakeProvider) CreateCall(ctx context.Context, req telephony.CallRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.created++
	n := f.created
	f.mu.Unlock()

	if f.CreateCallFunc != nil {
		return f.CreateCallFunc(ctx, req)
	}
	return fmt.Sprintf("CA%d", n), nil
}

// FetchCall calls FetchCallFunc when set
func (f *FakeProvider) FetchCall(ctx context.Context, callID string) (telephony.CallInfo, error) {
	if f.FetchCallFunc != nil {
		return f.FetchCallFunc(ctx, callID)
	}
	return telephony.CallInfo{ID: callID, Status: telephony.MapStatus("completed"), RawStatus: "completed"}, nil
}

// FetchAccount calls FetchAccountFunc when set
func (f *FakeProvider) FetchAccount(ctx context.Context) (telephony.AccountInfo, error) {
	if f.FetchAccountFunc != nil {
		return f.FetchAccountFunc(ctx)
	}
	return telephony.AccountInfo{Status: "active", FriendlyName: "test"}, nil
}

// Requests returns every CreateCall request received so far
func (f *FakeProvider) Requests() []telephony.CallRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]telephony.CallRequest(nil), f.requests...)
}

// FailWith returns a CreateCallFunc that always fails with err
func FailWith(err error) func(context.Context, telephony.CallRequest) (string, error) {
	return func(context.Context, telephony.CallRequest) (string, error) {
		return "", err
	}
}
