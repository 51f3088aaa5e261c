package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/xai-network/xaid/mempool"
	"github.com/xai-network/xaid/txn"
	"github.com/xai-network/xaid/validator"
)

// handleSubmitTx implements POST /tx (spec §6: "submit a transaction; 200
// on admission, 400/422 on validation failure, 429 on sender ban").
func (s *Server) handleSubmitTx(r *http.Request, _ map[string]string) (interface{}, *HandlerError) {
	var tx txn.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		return nil, errValidation("request body is not a valid transaction").WithDetails(err.Error())
	}

	if err := s.pool.Admit(&tx); err != nil {
		return nil, mapAdmitError(err)
	}

	s.hub.Publish(TopicNewTx, map[string]string{"txid": tx.TxID, "sender": tx.Sender})
	return map[string]string{"status": "admitted", "txid": tx.TxID}, nil
}

func mapAdmitError(err error) *HandlerError {
	rejectErr, ok := err.(*mempool.RejectError)
	if !ok {
		if vErr, ok := err.(*validator.Error); ok {
			return errValidation(vErr.Error())
		}
		return errInternal(err.Error())
	}

	switch rejectErr.Reason {
	case mempool.ReasonBanned:
		return errRateLimited(rejectErr.Error())
	case mempool.ReasonInvalid:
		return errValidation(rejectErr.Error())
	default:
		return NewHandlerError(http.StatusBadRequest, CodeValidationError, rejectErr.Error())
	}
}

// handleGetBlock implements GET /blocks/{height}.
func (s *Server) handleGetBlock(_ *http.Request, vars map[string]string) (interface{}, *HandlerError) {
	height, err := strconv.ParseUint(vars["height"], 10, 64)
	if err != nil {
		return nil, errValidation("height must be a non-negative integer")
	}

	b, err := s.store.BlockByHeight(height)
	if err != nil {
		return nil, errNotFound("no block at that height")
	}
	return b, nil
}

// handleGetHeaders implements GET /headers?from=&count=.
func (s *Server) handleGetHeaders(r *http.Request, _ map[string]string) (interface{}, *HandlerError) {
	from, err := parseUintQuery(r, "from", 0)
	if err != nil {
		return nil, errValidation("from must be a non-negative integer")
	}
	count, err := parseUintQuery(r, "count", lightclientDefaultCount)
	if err != nil {
		return nil, errValidation("count must be a non-negative integer")
	}

	return s.lc.GetRecentHeaders(from, count), nil
}

const lightclientDefaultCount = 20

func parseUintQuery(r *http.Request, key string, def uint64) (uint64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.ParseUint(raw, 10, 64)
}

// handleGetProof implements GET /proof/{txid}.
func (s *Server) handleGetProof(_ *http.Request, vars map[string]string) (interface{}, *HandlerError) {
	proof, err := s.lc.GetTransactionProof(vars["txid"])
	if err != nil {
		return nil, errNotFound("no on-chain transaction with that id")
	}
	return proof, nil
}
