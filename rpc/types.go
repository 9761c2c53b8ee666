package rpc

import (
	"net/http"

	mkterrors "nftmarket/core/errors"
	"nftmarket/core/types"
	"nftmarket/native/marketplace"
)

// ExecuteRequest is the body of POST /v1/execute. The sender comes from the
// bearer token, never from the body.
type ExecuteRequest struct {
	Msg   marketplace.ExecuteMsg `json:"msg"`
	Funds types.Coins            `json:"funds,omitempty"`
}

// ExecuteResult reports a committed call.
type ExecuteResult struct {
	RequestID string          `json:"request_id"`
	Height    uint64          `json:"height"`
	Sender    string          `json:"sender"`
	Response  *types.Response `json:"response"`
}

// ErrorBody is returned for every failed request.
type ErrorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// statusFor maps an error kind onto an HTTP status.
func statusFor(kind mkterrors.Kind) int {
	switch kind {
	case mkterrors.KindAuthorization:
		return http.StatusForbidden
	case mkterrors.KindValidation:
		return http.StatusBadRequest
	case mkterrors.KindConflict:
		return http.StatusConflict
	case mkterrors.KindNotFound:
		return http.StatusNotFound
	case mkterrors.KindFunds:
		return http.StatusPaymentRequired
	case mkterrors.KindStateGate:
		return http.StatusLocked
	default:
		return http.StatusInternalServerError
	}
}
