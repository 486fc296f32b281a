package service

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/SyedDaiam9101/onnxrun/internal/tensor"
)

// Client is a typed client for the Inference service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// ModelInfo asks the server which model it serves.
func (c *Client) ModelInfo(ctx context.Context, opts ...grpc.CallOption) (*ModelInfo, error) {
	in := dynamicpb.NewMessage(schema.modelInfoRequest)
	out := dynamicpb.NewMessage(schema.modelInfoResponse)
	if err := c.cc.Invoke(ctx, modelInfoMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return modelInfoFromMessage(out), nil
}

// Infer runs one inference on the server.
func (c *Client) Infer(ctx context.Context, inputs []*tensor.Tensor, opts ...grpc.CallOption) (*InferResult, error) {
	in, err := inferRequestMessage(inputs)
	if err != nil {
		return nil, fmt.Errorf("encode inputs: %w", err)
	}
	out := dynamicpb.NewMessage(schema.inferResponse)
	if err := c.cc.Invoke(ctx, inferMethod, in, out, opts...); err != nil {
		return nil, err
	}
	res, err := inferResultFromMessage(out)
	if err != nil {
		return nil, fmt.Errorf("decode outputs: %w", err)
	}
	return res, nil
}
