package service

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// The wire schema is assembled from descriptors at init and registered in
// protoregistry.GlobalFiles, so server reflection and grpcurl see it like
// generated code. TensorProto keeps the onnx field numbers, which lets
// onnxpb decode the same bytes.
const (
	ServiceName   = "onnxrun.v1.Inference"
	tensorFile    = "onnx/tensor.proto"
	inferenceFile = "onnxrun/v1/inference.proto"

	modelInfoMethod = "/" + ServiceName + "/ModelInfo"
	inferMethod     = "/" + ServiceName + "/Infer"
)

type descriptors struct {
	tensorProto       protoreflect.MessageDescriptor
	tensorInfo        protoreflect.MessageDescriptor
	modelInfoRequest  protoreflect.MessageDescriptor
	modelInfoResponse protoreflect.MessageDescriptor
	inferRequest      protoreflect.MessageDescriptor
	inferResponse     protoreflect.MessageDescriptor
}

var schema = mustRegister()

type (
	fieldType  = descriptorpb.FieldDescriptorProto_Type
	fieldLabel = descriptorpb.FieldDescriptorProto_Label
)

const (
	optional = descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
	repeated = descriptorpb.FieldDescriptorProto_LABEL_REPEATED
)

func field(name string, num int32, label fieldLabel, typ fieldType, typeName string) *descriptorpb.FieldDescriptorProto {
	f := &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(num),
		Label:  label.Enum(),
		Type:   typ.Enum(),
	}
	if typeName != "" {
		f.TypeName = proto.String(typeName)
	}
	return f
}

func message(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{Name: proto.String(name), Field: fields}
}

func tensorFileProto() *descriptorpb.FileDescriptorProto {
	const (
		i32   = descriptorpb.FieldDescriptorProto_TYPE_INT32
		i64   = descriptorpb.FieldDescriptorProto_TYPE_INT64
		u64   = descriptorpb.FieldDescriptorProto_TYPE_UINT64
		f32   = descriptorpb.FieldDescriptorProto_TYPE_FLOAT
		f64   = descriptorpb.FieldDescriptorProto_TYPE_DOUBLE
		str   = descriptorpb.FieldDescriptorProto_TYPE_STRING
		bytes = descriptorpb.FieldDescriptorProto_TYPE_BYTES
	)
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String(tensorFile),
		Package: proto.String("onnx"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			message("TensorProto",
				field("dims", 1, repeated, i64, ""),
				field("data_type", 2, optional, i32, ""),
				field("float_data", 4, repeated, f32, ""),
				field("int32_data", 5, repeated, i32, ""),
				field("string_data", 6, repeated, bytes, ""),
				field("int64_data", 7, repeated, i64, ""),
				field("name", 8, optional, str, ""),
				field("raw_data", 9, optional, bytes, ""),
				field("double_data", 10, repeated, f64, ""),
				field("uint64_data", 11, repeated, u64, ""),
				field("doc_string", 12, optional, str, ""),
			),
		},
	}
}

func inferenceFileProto() *descriptorpb.FileDescriptorProto {
	const (
		i32     = descriptorpb.FieldDescriptorProto_TYPE_INT32
		i64     = descriptorpb.FieldDescriptorProto_TYPE_INT64
		f64     = descriptorpb.FieldDescriptorProto_TYPE_DOUBLE
		boolean = descriptorpb.FieldDescriptorProto_TYPE_BOOL
		str     = descriptorpb.FieldDescriptorProto_TYPE_STRING
		msg     = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE
	)
	method := func(name, in, out string) *descriptorpb.MethodDescriptorProto {
		return &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(name),
			InputType:  proto.String(".onnxrun.v1." + in),
			OutputType: proto.String(".onnxrun.v1." + out),
		}
	}
	return &descriptorpb.FileDescriptorProto{
		Name:       proto.String(inferenceFile),
		Package:    proto.String("onnxrun.v1"),
		Syntax:     proto.String("proto3"),
		Dependency: []string{tensorFile},
		MessageType: []*descriptorpb.DescriptorProto{
			message("TensorInfo",
				field("name", 1, optional, str, ""),
				field("elem_type", 2, optional, i32, ""),
				field("dims", 3, repeated, i64, ""),
				field("dim_params", 4, repeated, str, ""),
			),
			message("ModelInfoRequest"),
			message("ModelInfoResponse",
				field("model", 1, optional, str, ""),
				field("inputs", 2, repeated, msg, ".onnxrun.v1.TensorInfo"),
				field("outputs", 3, repeated, msg, ".onnxrun.v1.TensorInfo"),
			),
			message("InferRequest",
				field("inputs", 1, repeated, msg, ".onnx.TensorProto"),
			),
			message("InferResponse",
				field("outputs", 1, repeated, msg, ".onnx.TensorProto"),
				field("cached", 2, optional, boolean, ""),
				field("request_id", 3, optional, str, ""),
				field("inference_seconds", 4, optional, f64, ""),
			),
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("Inference"),
			Method: []*descriptorpb.MethodDescriptorProto{
				method("ModelInfo", "ModelInfoRequest", "ModelInfoResponse"),
				method("Infer", "InferRequest", "InferResponse"),
			},
		}},
	}
}

func mustRegister() descriptors {
	d, err := register(protoregistry.GlobalFiles)
	if err != nil {
		panic(fmt.Sprintf("service: %v", err))
	}
	return d
}

func register(files *protoregistry.Files) (descriptors, error) {
	var d descriptors
	for _, fdp := range []*descriptorpb.FileDescriptorProto{tensorFileProto(), inferenceFileProto()} {
		fd, err := protodesc.NewFile(fdp, files)
		if err != nil {
			return d, fmt.Errorf("build %s: %w", fdp.GetName(), err)
		}
		if err := files.RegisterFile(fd); err != nil {
			return d, fmt.Errorf("register %s: %w", fdp.GetName(), err)
		}
	}

	lookup := func(name protoreflect.FullName) (protoreflect.MessageDescriptor, error) {
		desc, err := files.FindDescriptorByName(name)
		if err != nil {
			return nil, err
		}
		md, ok := desc.(protoreflect.MessageDescriptor)
		if !ok {
			return nil, fmt.Errorf("%s is not a message", name)
		}
		return md, nil
	}

	var err error
	for name, dst := range map[protoreflect.FullName]*protoreflect.MessageDescriptor{
		"onnx.TensorProto":             &d.tensorProto,
		"onnxrun.v1.TensorInfo":        &d.tensorInfo,
		"onnxrun.v1.ModelInfoRequest":  &d.modelInfoRequest,
		"onnxrun.v1.ModelInfoResponse": &d.modelInfoResponse,
		"onnxrun.v1.InferRequest":      &d.inferRequest,
		"onnxrun.v1.InferResponse":     &d.inferResponse,
	} {
		if *dst, err = lookup(name); err != nil {
			return d, err
		}
	}
	return d, nil
}
