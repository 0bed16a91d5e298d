package browseragenttest

import (
	"context"
	"sync"

	"browseragent/internal/browseragent/bgerr"
	"browseragent/internal/browseragent/chatmodel"
)

// FakeChatModel returns a scripted sequence of InvokeResults, one per call,
// looping the last one if the script is exhausted. A nil entry in Script
// means "fail this call" (simulating a MODEL_FORMAT error).
type FakeChatModel struct {
	mu       sync.Mutex
	Script   []*chatmodel.InvokeResult
	calls    int
	Requests []chatmodel.InvokeRequest
}

func NewFakeChatModel(script ...*chatmodel.InvokeResult) *FakeChatModel {
	return &FakeChatModel{Script: script}
}

func (f *FakeChatModel) Invoke(ctx context.Context, req chatmodel.InvokeRequest) (chatmodel.InvokeResult, error) {
	if err := ctx.Err(); err != nil {
		return chatmodel.InvokeResult{}, bgerr.Wrap(bgerr.RequestCancelled, err, "cancelled")
	}

	f.mu.Lock()
	idx := f.calls
	f.calls++
	f.Requests = append(f.Requests, req)
	f.mu.Unlock()

	if len(f.Script) == 0 {
		return chatmodel.InvokeResult{}, bgerr.New(bgerr.ModelFormat, "no script configured", nil)
	}
	if idx >= len(f.Script) {
		idx = len(f.Script) - 1
	}
	result := f.Script[idx]
	if result == nil {
		return chatmodel.InvokeResult{}, bgerr.New(bgerr.ModelFormat, "scripted failure", nil)
	}
	return *result, nil
}

// CallCount returns how many times Invoke has been called so far.
func (f *FakeChatModel) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
