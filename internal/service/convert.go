package service

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/SyedDaiam9101/onnxrun/internal/onnxpb"
	"github.com/SyedDaiam9101/onnxrun/internal/tensor"
)

// ModelInfo describes the served model.
type ModelInfo struct {
	Model   string
	Inputs  []tensor.Info
	Outputs []tensor.Info
}

// InferResult is the typed form of InferResponse.
type InferResult struct {
	Outputs          []*tensor.Tensor
	Cached           bool
	RequestID        string
	InferenceSeconds float64
}

func fieldOf(md protoreflect.MessageDescriptor, name protoreflect.Name) protoreflect.FieldDescriptor {
	fd := md.Fields().ByName(name)
	if fd == nil {
		panic(fmt.Sprintf("service: %s has no field %s", md.FullName(), name))
	}
	return fd
}

// tensorMessage re-reads the onnxpb encoding of t as a dynamic TensorProto.
func tensorMessage(t *tensor.Tensor) (*dynamicpb.Message, error) {
	b, err := onnxpb.MarshalTensor(t)
	if err != nil {
		return nil, err
	}
	m := dynamicpb.NewMessage(schema.tensorProto)
	if err := proto.Unmarshal(b, m); err != nil {
		return nil, fmt.Errorf("tensor %s: %w", t.Name, err)
	}
	return m, nil
}

func tensorFromMessage(m protoreflect.Message) (*tensor.Tensor, error) {
	b, err := proto.Marshal(m.Interface())
	if err != nil {
		return nil, err
	}
	return onnxpb.UnmarshalTensor(b)
}

func setTensors(m *dynamicpb.Message, name protoreflect.Name, tensors []*tensor.Tensor) error {
	list := m.Mutable(fieldOf(m.Descriptor(), name)).List()
	for _, t := range tensors {
		tm, err := tensorMessage(t)
		if err != nil {
			return err
		}
		list.Append(protoreflect.ValueOfMessage(tm))
	}
	return nil
}

func getTensors(m protoreflect.Message, name protoreflect.Name) ([]*tensor.Tensor, error) {
	list := m.Get(fieldOf(m.Descriptor(), name)).List()
	tensors := make([]*tensor.Tensor, list.Len())
	for i := range tensors {
		t, err := tensorFromMessage(list.Get(i).Message())
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", name, i, err)
		}
		tensors[i] = t
	}
	return tensors, nil
}

func infoMessage(info tensor.Info) *dynamicpb.Message {
	md := schema.tensorInfo
	m := dynamicpb.NewMessage(md)
	m.Set(fieldOf(md, "name"), protoreflect.ValueOfString(info.Name))
	m.Set(fieldOf(md, "elem_type"), protoreflect.ValueOfInt32(int32(info.Type)))
	dims := m.Mutable(fieldOf(md, "dims")).List()
	for _, d := range info.Shape {
		dims.Append(protoreflect.ValueOfInt64(d))
	}
	params := m.Mutable(fieldOf(md, "dim_params")).List()
	for _, p := range info.Params {
		params.Append(protoreflect.ValueOfString(p))
	}
	return m
}

func infoFromMessage(m protoreflect.Message) tensor.Info {
	md := m.Descriptor()
	info := tensor.Info{
		Name: m.Get(fieldOf(md, "name")).String(),
		Type: tensor.DataType(m.Get(fieldOf(md, "elem_type")).Int()),
	}
	dims := m.Get(fieldOf(md, "dims")).List()
	info.Shape = make(tensor.Shape, dims.Len())
	for i := range info.Shape {
		info.Shape[i] = dims.Get(i).Int()
	}
	params := m.Get(fieldOf(md, "dim_params")).List()
	for i := 0; i < params.Len(); i++ {
		info.Params = append(info.Params, params.Get(i).String())
	}
	return info
}

func modelInfoMessage(mi *ModelInfo) *dynamicpb.Message {
	md := schema.modelInfoResponse
	m := dynamicpb.NewMessage(md)
	m.Set(fieldOf(md, "model"), protoreflect.ValueOfString(mi.Model))
	for _, side := range []struct {
		name  protoreflect.Name
		infos []tensor.Info
	}{{"inputs", mi.Inputs}, {"outputs", mi.Outputs}} {
		list := m.Mutable(fieldOf(md, side.name)).List()
		for _, info := range side.infos {
			list.Append(protoreflect.ValueOfMessage(infoMessage(info)))
		}
	}
	return m
}

func modelInfoFromMessage(m protoreflect.Message) *ModelInfo {
	md := m.Descriptor()
	mi := &ModelInfo{Model: m.Get(fieldOf(md, "model")).String()}
	for _, side := range []struct {
		name protoreflect.Name
		dst  *[]tensor.Info
	}{{"inputs", &mi.Inputs}, {"outputs", &mi.Outputs}} {
		list := m.Get(fieldOf(md, side.name)).List()
		for i := 0; i < list.Len(); i++ {
			*side.dst = append(*side.dst, infoFromMessage(list.Get(i).Message()))
		}
	}
	return mi
}

func inferRequestMessage(inputs []*tensor.Tensor) (*dynamicpb.Message, error) {
	m := dynamicpb.NewMessage(schema.inferRequest)
	if err := setTensors(m, "inputs", inputs); err != nil {
		return nil, err
	}
	return m, nil
}

func inferResponseMessage(res *InferResult) (*dynamicpb.Message, error) {
	md := schema.inferResponse
	m := dynamicpb.NewMessage(md)
	if err := setTensors(m, "outputs", res.Outputs); err != nil {
		return nil, err
	}
	m.Set(fieldOf(md, "cached"), protoreflect.ValueOfBool(res.Cached))
	m.Set(fieldOf(md, "request_id"), protoreflect.ValueOfString(res.RequestID))
	m.Set(fieldOf(md, "inference_seconds"), protoreflect.ValueOfFloat64(res.InferenceSeconds))
	return m, nil
}

func inferResultFromMessage(m protoreflect.Message) (*InferResult, error) {
	md := m.Descriptor()
	outputs, err := getTensors(m, "outputs")
	if err != nil {
		return nil, err
	}
	return &InferResult{
		Outputs:          outputs,
		Cached:           m.Get(fieldOf(md, "cached")).Bool(),
		RequestID:        m.Get(fieldOf(md, "request_id")).String(),
		InferenceSeconds: m.Get(fieldOf(md, "inference_seconds")).Float(),
	}, nil
}
