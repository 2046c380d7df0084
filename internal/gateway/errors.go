package gateway

import "fmt"

// UpstreamError is a broker-reported error code. When correlated it
// resolves the pending call that caused it; either way it is appended to
// the global error log.
type UpstreamError struct {
	ReqID   int64
	Code    int64
	Message string
}

func (e UpstreamError) Error() string {
	return fmt.Sprintf("upstream error %d: %s", e.Code, e.Message)
}
