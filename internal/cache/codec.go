package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/SyedDaiam9101/onnxrun/internal/onnxpb"
	"github.com/SyedDaiam9101/onnxrun/internal/tensor"
)

// Encode writes tensors as a sequence of length-delimited TensorProto
// records.
func Encode(tensors []*tensor.Tensor) ([]byte, error) {
	var b []byte
	for i, t := range tensors {
		rec, err := onnxpb.MarshalTensor(t)
		if err != nil {
			return nil, fmt.Errorf("tensor %d: %w", i, err)
		}
		b = protowire.AppendBytes(b, rec)
	}
	return b, nil
}

// Decode reverses Encode.
func Decode(b []byte) ([]*tensor.Tensor, error) {
	var tensors []*tensor.Tensor
	for len(b) > 0 {
		rec, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", onnxpb.ErrMalformed, protowire.ParseError(n))
		}
		t, err := onnxpb.UnmarshalTensor(rec)
		if err != nil {
			return nil, fmt.Errorf("tensor %d: %w", len(tensors), err)
		}
		tensors = append(tensors, t)
		b = b[n:]
	}
	return tensors, nil
}

// Key derives the cache key of a request from the model digest and the
// encoded inputs. Input names are part of the encoding, so the same values
// fed under different names hash differently.
func Key(modelDigest string, inputs []*tensor.Tensor) (string, error) {
	enc, err := Encode(inputs)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(modelDigest))
	h.Write([]byte{0})
	h.Write(enc)
	return keyPrefix + hex.EncodeToString(h.Sum(nil)), nil
}
