package external

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"hubrelay/internal/types"
)

const maxErrorBody = 512

// readErrorBody returns at most maxErrorBody bytes of a failed response.
func readErrorBody(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody+1))
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "...(truncated)"
	}
	return string(body)
}

// wrapTransport keeps AppErrors from BaseClient and wraps anything else
// under code.
func wrapTransport(code types.ErrorCode, op string, err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return types.NewAppError(code, fmt.Sprintf("%s request failed", op), err)
}
