package conversation

import (
	"context"
	"errors"
	"sync"
)

// stubLLMClient replays scripted responses and errors in call order. When
// respond is set it takes precedence over the scripts.
type stubLLMClient struct {
	mu        sync.Mutex
	response  LLMResponse
	err       error
	lastReq   LLMRequest
	requests  []LLMRequest
	responses []LLMResponse
	errs      []error
	calls     int
	respond   func(req LLMRequest) (LLMResponse, error)
}

func (s *stubLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastReq = req
	s.requests = append(s.requests, req)

	if s.respond != nil {
		s.calls++
		return s.respond(req)
	}
	if s.calls < len(s.errs) && s.errs[s.calls] != nil {
		err := s.errs[s.calls]
		s.calls++
		return LLMResponse{}, err
	}
	if len(s.responses) > 0 {
		if s.calls >= len(s.responses) {
			s.calls++
			return LLMResponse{}, errors.New("no scripted response")
		}
		resp := s.responses[s.calls]
		s.calls++
		return resp, nil
	}
	s.calls++
	return s.response, s.err
}

func (s *stubLLMClient) requestsFor(purpose string) []LLMRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []LLMRequest
	for _, req := range s.requests {
		if req.Purpose == purpose {
			out = append(out, req)
		}
	}
	return out
}

// byPurpose answers need, reply, and reflection calls independently.
func byPurpose(need, reply, reflection string) func(LLMRequest) (LLMResponse, error) {
	return func(req LLMRequest) (LLMResponse, error) {
		switch req.Purpose {
		case "need":
			return LLMResponse{Text: need}, nil
		case "reflection":
			return LLMResponse{Text: reflection}, nil
		default:
			return LLMResponse{Text: reply}, nil
		}
	}
}

const okReply = `{"analysis": "不安を感じている", "needs": "傾聴", "reply": "話してくれてありがとう。"}`
