package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"github.com/zeroclaw-labs/zeroclaw-sub002/internal/observability"
	"github.com/zeroclaw-labs/zeroclaw-sub002/pkg/memory"
)

type method struct {
	handler RequestHandler
	schema  *gojsonschema.Schema
}

// registerBuiltinMethods registers all built-in RPC methods with their
// parameter schemas.
func (s *Server) registerBuiltinMethods() error {
	specs := []struct {
		name       string
		handler    RequestHandler
		properties map[string]interface{}
		required   []string
	}{
		{
			name:    "memory.store",
			handler: s.handleStore,
			properties: map[string]interface{}{
				"key":        map[string]interface{}{"type": "string"},
				"content":    map[string]interface{}{"type": "string"},
				"category":   map[string]interface{}{"type": "string"},
				"session_id": map[string]interface{}{"type": "string"},
			},
			required: []string{"key", "content"},
		},
		{
			name:    "memory.recall",
			handler: s.handleRecall,
			properties: map[string]interface{}{
				"query":      map[string]interface{}{"type": "string"},
				"limit":      map[string]interface{}{"type": "integer", "minimum": 0},
				"session_id": map[string]interface{}{"type": "string"},
			},
			required: []string{"query"},
		},
		{
			name:    "memory.get",
			handler: s.handleGet,
			properties: map[string]interface{}{
				"key": map[string]interface{}{"type": "string"},
			},
			required: []string{"key"},
		},
		{
			name:    "memory.list",
			handler: s.handleList,
			properties: map[string]interface{}{
				"category":   map[string]interface{}{"type": "string"},
				"session_id": map[string]interface{}{"type": "string"},
			},
		},
		{
			name:    "memory.forget",
			handler: s.handleForget,
			properties: map[string]interface{}{
				"key": map[string]interface{}{"type": "string"},
			},
			required: []string{"key"},
		},
		{name: "memory.count", handler: s.handleCount, properties: map[string]interface{}{}},
		{name: "memory.health", handler: s.handleHealth, properties: map[string]interface{}{}},
		{name: "memory.reindex", handler: s.handleReindex, properties: map[string]interface{}{}},
		{name: "memory.status", handler: s.handleStatus, properties: map[string]interface{}{}},
	}

	for _, spec := range specs {
		schema, err := buildSchema(spec.properties, spec.required)
		if err != nil {
			return fmt.Errorf("failed to build schema for %s: %w", spec.name, err)
		}
		s.methods[spec.name] = method{handler: spec.handler, schema: schema}
	}
	return nil
}

// buildSchema compiles an object schema that rejects unknown parameters.
func buildSchema(properties map[string]interface{}, required []string) (*gojsonschema.Schema, error) {
	schemaMap := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           properties,
	}
	if len(required) > 0 {
		schemaMap["required"] = required
	}

	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
}

// validateParams validates parameters against a JSON Schema
func validateParams(schema *gojsonschema.Schema, params map[string]interface{}) error {
	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return err
	}

	if !result.Valid() {
		errors := []string{}
		for _, err := range result.Errors() {
			errors = append(errors, err.String())
		}
		return fmt.Errorf("validation errors: %v", errors)
	}
	return nil
}

// route dispatches one parsed request to its handler.
func (s *Server) route(ctx context.Context, actor string, req *RPCRequest) RPCResponse {
	start := time.Now()

	m, ok := s.methods[req.Method]
	if !ok {
		observability.RecordRPCRequest(req.Method, time.Since(start), false)
		return errorResponse(req.ID, MethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}

	params := req.Params
	if params == nil {
		params = map[string]interface{}{}
	}
	if err := validateParams(m.schema, params); err != nil {
		observability.RecordRPCRequest(req.Method, time.Since(start), false)
		return errorResponse(req.ID, InvalidParams, err.Error())
	}

	result, err := m.handler(ctx, actor, params)
	if err != nil {
		observability.RecordRPCRequest(req.Method, time.Since(start), false)
		return errorResponse(req.ID, InternalError, err.Error())
	}

	observability.RecordRPCRequest(req.Method, time.Since(start), true)
	return RPCResponse{ID: req.ID, JSONRPC: "2.0", Result: result}
}

func errorResponse(id string, code int, message string) RPCResponse {
	return RPCResponse{
		ID:      id,
		JSONRPC: "2.0",
		Error:   &RPCError{Code: code, Message: message},
	}
}

func strParam(params map[string]interface{}, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

func intParam(params map[string]interface{}, key string) int {
	if v, ok := params[key].(float64); ok {
		return int(v)
	}
	return 0
}

func (s *Server) handleStore(ctx context.Context, actor string, params map[string]interface{}) (interface{}, error) {
	key := strParam(params, "key")
	category := memory.ParseCategory(strParam(params, "category"))

	err := s.engine.Store(ctx, key, strParam(params, "content"), category, strParam(params, "session_id"))
	if err != nil {
		observability.RecordMemoryAudit(ctx, "store:"+key, actor, "failure", nil)
		return nil, err
	}

	observability.RecordMemoryAudit(ctx, "store:"+key, actor, "success", nil)
	s.broadcast("memory.stored", map[string]interface{}{"key": key})
	return map[string]interface{}{"stored": true}, nil
}

func (s *Server) handleRecall(ctx context.Context, _ string, params map[string]interface{}) (interface{}, error) {
	entries, err := s.engine.Recall(ctx, strParam(params, "query"), memory.RecallOptions{
		Limit:     intParam(params, "limit"),
		SessionID: strParam(params, "session_id"),
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"entries": entries}, nil
}

func (s *Server) handleGet(ctx context.Context, _ string, params map[string]interface{}) (interface{}, error) {
	entry, err := s.engine.Get(ctx, strParam(params, "key"))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"entry": entry}, nil
}

func (s *Server) handleList(ctx context.Context, _ string, params map[string]interface{}) (interface{}, error) {
	entries, err := s.engine.List(ctx, memory.ListOptions{
		Category:  memory.Category(strParam(params, "category")),
		SessionID: strParam(params, "session_id"),
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"entries": entries}, nil
}

func (s *Server) handleForget(ctx context.Context, actor string, params map[string]interface{}) (interface{}, error) {
	key := strParam(params, "key")

	removed, err := s.engine.Forget(ctx, key)
	if err != nil {
		observability.RecordMemoryAudit(ctx, "forget:"+key, actor, "failure", nil)
		return nil, err
	}

	observability.RecordMemoryAudit(ctx, "forget:"+key, actor, "success", nil)
	if removed {
		s.broadcast("memory.forgotten", map[string]interface{}{"key": key})
	}
	return map[string]interface{}{"removed": removed}, nil
}

func (s *Server) handleCount(ctx context.Context, _ string, _ map[string]interface{}) (interface{}, error) {
	count, err := s.engine.Count(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"count": count}, nil
}

func (s *Server) handleHealth(ctx context.Context, _ string, _ map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{"healthy": s.engine.HealthCheck(ctx)}, nil
}

func (s *Server) handleReindex(ctx context.Context, actor string, _ map[string]interface{}) (interface{}, error) {
	reembedded, err := s.engine.Reindex(ctx)
	if err != nil {
		observability.RecordMemoryAudit(ctx, "reindex", actor, "failure", nil)
		return nil, err
	}

	observability.RecordMemoryAudit(ctx, "reindex", actor, "success", nil)
	s.broadcast("memory.reindexed", map[string]interface{}{"reembedded": reembedded})
	return map[string]interface{}{"reembedded": reembedded}, nil
}

func (s *Server) handleStatus(ctx context.Context, _ string, _ map[string]interface{}) (interface{}, error) {
	status, err := s.engine.Status(ctx)
	if err != nil {
		return nil, err
	}
	return status, nil
}
