package conversation

import (
	"errors"
	"net/http"

	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FailureKind classifies why a reply could not be generated.
type FailureKind string

const (
	FailureNone        FailureKind = ""
	FailureRateLimited FailureKind = "rate_limited"
	FailureAuth        FailureKind = "auth"
	FailureUnknown     FailureKind = "unknown"
)

// Advisory returns the user-facing message for a failure kind.
func (k FailureKind) Advisory() string {
	switch k {
	case FailureNone:
		return ""
	case FailureRateLimited:
		return RateLimitedMessage
	default:
		return GenerationFailureMessage
	}
}

// ClassifyGenerationError maps a provider error onto a FailureKind. Errors are
// inspected through wrapping, so callers may add context freely.
func ClassifyGenerationError(err error) FailureKind {
	if err == nil {
		return FailureNone
	}

	var throttled *brtypes.ThrottlingException
	var quota *brtypes.ServiceQuotaExceededException
	if errors.As(err, &throttled) || errors.As(err, &quota) {
		return FailureRateLimited
	}
	var denied *brtypes.AccessDeniedException
	if errors.As(err, &denied) {
		return FailureAuth
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		if kind := kindFromHTTP(apiErr.HTTPCode()); kind != FailureUnknown {
			return kind
		}
		if st := apiErr.GRPCStatus(); st != nil {
			if kind := kindFromGRPC(st.Code()); kind != FailureUnknown {
				return kind
			}
		}
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		if kind := kindFromHTTP(gErr.Code); kind != FailureUnknown {
			return kind
		}
	}

	if st, ok := status.FromError(err); ok {
		return kindFromGRPC(st.Code())
	}
	return FailureUnknown
}

func kindFromHTTP(code int) FailureKind {
	switch code {
	case http.StatusTooManyRequests:
		return FailureRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return FailureAuth
	default:
		return FailureUnknown
	}
}

func kindFromGRPC(code codes.Code) FailureKind {
	switch code {
	case codes.ResourceExhausted:
		return FailureRateLimited
	case codes.Unauthenticated, codes.PermissionDenied:
		return FailureAuth
	default:
		return FailureUnknown
	}
}
