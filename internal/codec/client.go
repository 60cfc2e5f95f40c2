package codec

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/persona-sim/go-controller/internal/turn"
)

// GenerateMethod is the full gRPC method name of the turn service.
const GenerateMethod = "/persona.v1.TurnService/Generate"

// #region client-struct
// GRPCTurnClient calls the turn service over gRPC. Requests and responses travel as
// google.protobuf.Struct so the service schema can evolve without regenerating stubs.
type GRPCTurnClient struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}
// #endregion client-struct

// #region constructor
// NewGRPCTurnClient connects to the turn service.
func NewGRPCTurnClient(addr string) (*GRPCTurnClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &GRPCTurnClient{conn: conn, cc: conn}, nil
}

// NewGRPCTurnClientWithConn creates a client over an injected connection.
// Used for testing without a real gRPC server.
func NewGRPCTurnClientWithConn(cc grpc.ClientConnInterface) *GRPCTurnClient {
	return &GRPCTurnClient{cc: cc}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *GRPCTurnClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
// #endregion close

// #region generate
// Generate runs one turn on the service.
func (c *GRPCTurnClient) Generate(ctx context.Context, req turn.Request) (turn.Response, error) {
	in, err := toStruct(req)
	if err != nil {
		return turn.Response{}, fmt.Errorf("encode request: %w", err)
	}
	out := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, GenerateMethod, in, out); err != nil {
		return turn.Response{}, fmt.Errorf("generate rpc: %w", err)
	}
	var resp turn.Response
	if err := fromStruct(out, &resp); err != nil {
		return turn.Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}
// #endregion generate

// #region struct-conversion
func toStruct(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func fromStruct(s *structpb.Struct, v interface{}) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
// #endregion struct-conversion
