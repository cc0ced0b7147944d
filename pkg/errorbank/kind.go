package errorbank

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Kind enumerates supported application error categories.
type Kind string

const (
	KindBadRequest          Kind = "bad_request"
	KindConflict            Kind = "conflict"
	KindNotFound            Kind = "not_found"
	KindUnprocessableEntity Kind = "unprocessable_entity"
	// KindUnavailable means neither the remote store nor the local fallback
	// could serve the request.
	KindUnavailable Kind = "unavailable"
	KindTimeout     Kind = "timeout"
	KindCanceled    Kind = "canceled"
	KindInternal    Kind = "internal"
)

// statusClientClosedRequest is nginx's 499, used when the caller went away.
const statusClientClosedRequest = 499

type mapping struct {
	http int
	grpc codes.Code
	// public kinds may show their message and details to clients.
	public bool
}

var kinds = map[Kind]mapping{
	KindBadRequest:          {http.StatusBadRequest, codes.InvalidArgument, true},
	KindConflict:            {http.StatusConflict, codes.AlreadyExists, true},
	KindNotFound:            {http.StatusNotFound, codes.NotFound, true},
	KindUnprocessableEntity: {http.StatusUnprocessableEntity, codes.FailedPrecondition, true},
	KindUnavailable:         {http.StatusServiceUnavailable, codes.Unavailable, true},
	KindTimeout:             {http.StatusGatewayTimeout, codes.DeadlineExceeded, true},
	KindCanceled:            {statusClientClosedRequest, codes.Canceled, true},
	KindInternal:            {http.StatusInternalServerError, codes.Internal, false},
}

func lookup(k Kind) mapping {
	if m, ok := kinds[k]; ok {
		return m
	}
	return kinds[KindInternal]
}

// Public reports whether errors of kind k may expose their message and
// details to API clients.
func (k Kind) Public() bool { return lookup(k).public }
