// Copyright 2026 The Mountbay Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

// sampleRequest is a representative control socket request using cbor
// struct tags (the convention for purely-internal types).
type sampleRequest struct {
	Action string `cbor:"action"`
	Device string `cbor:"device,omitempty"`
	Limit  int    `cbor:"limit"`
}

// sampleDualRecord uses json struct tags (the convention for types
// that serve both JSON and CBOR, relying on fxamacker's fallback).
type sampleDualRecord struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleRequest{
		Action: "mount",
		Device: "sdb",
		Limit:  42,
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	if len(data) == 0 {
		t.Fatal("Marshal produced empty output")
	}

	var decoded sampleRequest
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded != original {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	request := sampleRequest{
		Action: "journal",
		Device: "sdc",
		Limit:  7,
	}

	first, err := Marshal(request)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}

	second, err := Marshal(request)
	if err != nil {
		t.Fatalf("second Marshal: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Errorf("deterministic encoding violated: %x != %x", first, second)
	}
}

func TestEncoderDecoderStreamRoundtrip(t *testing.T) {
	requests := []sampleRequest{
		{Action: "mount", Device: "sdb", Limit: 1},
		{Action: "umount", Device: "sdc", Limit: 2},
		{Action: "status", Limit: 0},
	}

	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, request := range requests {
		if err := encoder.Encode(request); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for i, want := range requests {
		var got sampleRequest
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode request %d: %v", i, err)
		}
		if got != want {
			t.Errorf("request %d: got %+v, want %+v", i, got, want)
		}
	}
}

func TestJSONTagFallback(t *testing.T) {
	// Types with json tags (no cbor tags) should encode/decode
	// correctly through our modes, using json tag names as CBOR
	// map keys.
	original := sampleDualRecord{Status: 201, Message: "OK"}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sampleDualRecord
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded != original {
		t.Errorf("json-tag roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestOmitemptyRespected(t *testing.T) {
	// A zero-value omitempty field should not appear in output.
	withDevice := sampleRequest{Action: "a", Device: "x", Limit: 1}
	withoutDevice := sampleRequest{Action: "a", Limit: 1}

	dataWith, err := Marshal(withDevice)
	if err != nil {
		t.Fatal(err)
	}
	dataWithout, err := Marshal(withoutDevice)
	if err != nil {
		t.Fatal(err)
	}

	// The encoding without the device field should be shorter because
	// the omitted field is not present.
	if len(dataWithout) >= len(dataWith) {
		t.Errorf("omitempty not effective: without=%d bytes, with=%d bytes",
			len(dataWithout), len(dataWith))
	}
}

func TestUnmarshalInvalidCBOR(t *testing.T) {
	var request sampleRequest
	err := Unmarshal([]byte{0xFF, 0xFE, 0xFD}, &request)
	if err == nil {
		t.Error("Unmarshal should reject invalid CBOR")
	}
}

func TestAnyTargetDecodesStringKeyedMaps(t *testing.T) {
	// When decoding into any, map values must come back as
	// map[string]any, not map[interface{}]interface{}. The CLI decodes
	// unknown response data this way before printing.
	data, err := Marshal(map[string]any{
		"mounts": map[string]any{"sdb": "/tmp/sdb.fuzzy/content"},
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	top, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded type = %T, want map[string]any", decoded)
	}
	if _, ok := top["mounts"].(map[string]any); !ok {
		t.Fatalf("nested type = %T, want map[string]any", top["mounts"])
	}
}

func TestRawMessageDelaysDecoding(t *testing.T) {
	data, err := Marshal(map[string]any{
		"action": "mount",
		"device": "sdb",
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var envelope struct {
		Action string     `cbor:"action"`
		Rest   RawMessage `cbor:"-"`
	}
	if err := Unmarshal(data, &envelope); err != nil {
		t.Fatalf("Unmarshal envelope: %v", err)
	}
	if envelope.Action != "mount" {
		t.Errorf("action = %q, want %q", envelope.Action, "mount")
	}

	// The full raw bytes can be re-decoded into a richer type later.
	var full struct {
		Device string `cbor:"device"`
	}
	if err := Unmarshal(data, &full); err != nil {
		t.Fatalf("Unmarshal full: %v", err)
	}
	if full.Device != "sdb" {
		t.Errorf("device = %q, want %q", full.Device, "sdb")
	}
}

func BenchmarkMarshal(b *testing.B) {
	request := sampleRequest{
		Action: "mount",
		Device: "sdb",
		Limit:  42,
	}

	b.ReportAllocs()
	for b.Loop() {
		Marshal(request)
	}
}

func BenchmarkUnmarshal(b *testing.B) {
	request := sampleRequest{
		Action: "mount",
		Device: "sdb",
		Limit:  42,
	}
	data, err := Marshal(request)
	if err != nil {
		b.Fatal(err)
	}

	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	for b.Loop() {
		var decoded sampleRequest
		Unmarshal(data, &decoded)
	}
}
