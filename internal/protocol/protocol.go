// Package protocol defines the recipe and station command packets and their
// binary encoding. Frames are a VarInt packet id followed by the payload,
// built from Minecraft protocol primitives.
package protocol

import (
	"bytes"
	"fmt"
	"io"

	pk "github.com/Tnze/go-mc/net/packet"
)

const Version = "1.0"

// Packet ids.
const (
	PacketRecipeRequest  int32 = 0x01
	PacketRecipeResponse int32 = 0x02
	PacketStationCommand int32 = 0x03
	PacketStationResult  int32 = 0x04
)

// MaxFrameBytes bounds a single frame on the wire.
const MaxFrameBytes = 1 << 20

// EncodeFrame marshals fields into a frame with the given packet id.
func EncodeFrame(id int32, fields ...pk.FieldEncoder) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := pk.VarInt(id).WriteTo(&buf); err != nil {
		return nil, err
	}
	for _, f := range fields {
		if _, err := f.WriteTo(&buf); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// DecodeFrame splits a frame into its packet id and payload.
func DecodeFrame(b []byte) (pk.Packet, error) {
	if len(b) > MaxFrameBytes {
		return pk.Packet{}, fmt.Errorf("frame too large: %d bytes", len(b))
	}
	r := bytes.NewReader(b)
	var id pk.VarInt
	if _, err := id.ReadFrom(r); err != nil {
		return pk.Packet{}, fmt.Errorf("read packet id: %w", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return pk.Packet{}, err
	}
	return pk.Packet{ID: int32(id), Data: data}, nil
}

// Decode reads a frame and checks it carries the wanted packet.
func Decode(b []byte, want int32, into pk.FieldDecoder) error {
	p, err := DecodeFrame(b)
	if err != nil {
		return err
	}
	if p.ID != want {
		return fmt.Errorf("unexpected packet id 0x%02x, want 0x%02x", p.ID, want)
	}
	r := bytes.NewReader(p.Data)
	if _, err := into.ReadFrom(r); err != nil {
		return err
	}
	if r.Len() != 0 {
		return fmt.Errorf("packet 0x%02x: %d trailing bytes", p.ID, r.Len())
	}
	return nil
}
