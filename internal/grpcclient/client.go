package grpcclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"avl-svr/internal/pipeline"
)

const sendDataMethod = "/forwarder.Forwarder/SendData"

// GRPCClient forwards every tracking object to the forwarder service as
// {device_id, payload} where payload is the tracking JSON.
type GRPCClient struct {
	conn    *grpc.ClientConn
	log     *slog.Logger
	timeout time.Duration
}

func NewGRPCClient(addr string, lg *slog.Logger, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &GRPCClient{conn: conn, log: lg.With("component", "grpc"), timeout: 5 * time.Second}, nil
}

func (g *GRPCClient) Name() string { return "grpc" }

func (g *GRPCClient) Close() error {
	return g.conn.Close()
}

// SendData makes one unary call. A false reply is logged, not returned.
func (g *GRPCClient) SendData(ctx context.Context, deviceID, payload string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := structpb.NewStruct(map[string]interface{}{
		"device_id": deviceID,
		"payload":   payload,
	})
	if err != nil {
		return err
	}
	res := &wrapperspb.BoolValue{}
	if err := g.conn.Invoke(ctx, sendDataMethod, req, res); err != nil {
		return fmt.Errorf("forwarder send %s: %w", deviceID, err)
	}
	if !res.GetValue() {
		g.log.Warn("forwarder rejected data", "imei", deviceID)
	}
	return nil
}

func (g *GRPCClient) Publish(ctx context.Context, b *pipeline.Batch) error {
	for _, tr := range b.Tracks {
		doc, err := json.Marshal(tr)
		if err != nil {
			return err
		}
		if err := g.SendData(ctx, tr.IMEI, string(doc)); err != nil {
			return err
		}
	}
	return nil
}
