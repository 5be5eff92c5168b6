package server

import (
	"encoding/json"
)

const (
	jsonRpcVersion    = "2.0"
	methodMessageSend = "message/send"

	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

// RpcRequest is the JSON-RPC 2.0 envelope paid resources are called with
type RpcRequest struct {
	JsonRpc string          `json:"jsonrpc"`
	Id      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

func (r *RpcRequest) Validate() bool {
	return r.JsonRpc == jsonRpcVersion && r.Method == methodMessageSend
}

type RpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type RpcResponse struct {
	JsonRpc string          `json:"jsonrpc"`
	Id      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *RpcError       `json:"error,omitempty"`
}

func newRpcResult(id json.RawMessage, result interface{}) *RpcResponse {
	return &RpcResponse{
		JsonRpc: jsonRpcVersion,
		Id:      id,
		Result:  result,
	}
}

func newRpcError(id json.RawMessage, code int, message string, data interface{}) *RpcResponse {
	return &RpcResponse{
		JsonRpc: jsonRpcVersion,
		Id:      id,
		Error: &RpcError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}
