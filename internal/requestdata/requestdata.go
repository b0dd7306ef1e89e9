package requestdata

import (
	"context"

	"github.com/google/uuid"
)

var requestDataKey = struct{}{}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	val := ctx.Value(requestDataKey)
	if rd, ok := val.(*RequestData); ok {
		return rd
	}
	return nil
}

type RequestData struct {
	TokenString string
	ProfileID   uuid.UUID
	MemberID    uuid.UUID
	Role        string
}

// IsPrivileged reports whether the caller may act on other members' records.
// The circulation engine only ever consumes this boolean, never the raw role.
func (rd *RequestData) IsPrivileged() bool {
	if rd == nil {
		return false
	}
	return rd.Role == "admin" || rd.Role == "librarian"
}
