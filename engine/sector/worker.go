package sector

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/oxy-stream/common"
	"github.com/Carmen-Shannon/oxy-stream/engine/sector_cache"
	"github.com/Carmen-Shannon/oxy-stream/engine/worker_rpc"
)

// ParseSectorMethod is the worker method that parses an encoded sector.
const ParseSectorMethod = "parseSector"

// RegisterWorkerMethods adds the sector methods to methods, creating the map if needed.
// parseSector takes the encoded sector as a *common.ArrayBuffer and moves the parsed
// payload back to the caller.
//
// Parameters:
//   - methods: the registry to extend, may be nil
//
// Returns:
//   - worker_rpc.Methods: the extended registry
func RegisterWorkerMethods(methods worker_rpc.Methods) worker_rpc.Methods {
	if methods == nil {
		methods = worker_rpc.Methods{}
	}
	methods[ParseSectorMethod] = worker_rpc.Typed1[*common.ArrayBuffer, *Parsed]{
		Fn: func(_ context.Context, data *common.ArrayBuffer) (*Parsed, error) {
			return Parse(data.Bytes())
		},
		Pick: func(p *Parsed) []any {
			if p == nil || p.Payload == nil {
				return nil
			}
			return []any{p.Payload}
		},
	}
	return methods
}

// LocalParser parses sectors on the calling goroutine.
func LocalParser() sector_cache.ParseFunc[uint32, *Parsed] {
	return func(_ context.Context, id uint32, data []byte) (*Parsed, error) {
		p, err := Parse(data)
		if err != nil {
			return nil, err
		}
		if p.ID != id {
			return nil, fmt.Errorf("sector %d: file holds sector %d", id, p.ID)
		}
		return p, nil
	}
}

// RemoteParser parses sectors on a worker reached through client. The encoded bytes are
// transferred to the worker and the parsed payload is transferred back.
//
// Parameters:
//   - client: the RPC client connected to a dispatcher serving RegisterWorkerMethods
//
// Returns:
//   - sector_cache.ParseFunc[uint32, *Parsed]: the parse function
func RemoteParser(client worker_rpc.Client) sector_cache.ParseFunc[uint32, *Parsed] {
	return func(ctx context.Context, id uint32, data []byte) (*Parsed, error) {
		buf := common.WrapArrayBuffer(data)
		p, err := worker_rpc.Invoke[*Parsed](ctx, client, ParseSectorMethod, []any{buf}, []any{buf})
		if err != nil {
			return nil, fmt.Errorf("sector %d: %w", id, err)
		}
		if p == nil || p.ID != id {
			return nil, fmt.Errorf("sector %d: worker returned the wrong sector", id)
		}
		return p, nil
	}
}
