package probe

import (
	"fmt"
	"math"
	"time"

	"NetSentry/internal/model"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Marshal encodes a packet record as a protobuf Struct.
func Marshal(rec *model.PacketRecord) ([]byte, error) {
	var ts int64
	if !rec.Timestamp.IsZero() {
		ts = rec.Timestamp.UnixMicro()
	}
	s, err := structpb.NewStruct(map[string]interface{}{
		"ts_us":     ts,
		"src_ip":    rec.SrcIP,
		"dst_ip":    rec.DstIP,
		"protocol":  int64(rec.Protocol),
		"src_port":  int64(rec.SrcPort),
		"dst_port":  int64(rec.DstPort),
		"fwd_bytes": int64(rec.FwdBytes),
		"rev_bytes": int64(rec.RevBytes),
		"has_tcp":   rec.HasTCP,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build packet struct: %w", err)
	}
	return proto.Marshal(s)
}

// Unmarshal decodes a record produced by Marshal.
func Unmarshal(data []byte) (*model.PacketRecord, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal packet struct: %w", err)
	}
	f := s.GetFields()

	rec := &model.PacketRecord{}
	var err error
	if rec.SrcIP, err = stringField(f, "src_ip"); err != nil {
		return nil, err
	}
	if rec.DstIP, err = stringField(f, "dst_ip"); err != nil {
		return nil, err
	}

	protocol, err := numberField(f, "protocol", math.MaxUint8)
	if err != nil {
		return nil, err
	}
	srcPort, err := numberField(f, "src_port", math.MaxUint16)
	if err != nil {
		return nil, err
	}
	dstPort, err := numberField(f, "dst_port", math.MaxUint16)
	if err != nil {
		return nil, err
	}
	fwd, err := numberField(f, "fwd_bytes", math.MaxInt32)
	if err != nil {
		return nil, err
	}
	rev, err := numberField(f, "rev_bytes", math.MaxInt32)
	if err != nil {
		return nil, err
	}
	rec.Protocol = uint8(protocol)
	rec.SrcPort = uint16(srcPort)
	rec.DstPort = uint16(dstPort)
	rec.FwdBytes = int(fwd)
	rec.RevBytes = int(rev)
	rec.HasTCP = f["has_tcp"].GetBoolValue()
	if ts := int64(f["ts_us"].GetNumberValue()); ts != 0 {
		rec.Timestamp = time.UnixMicro(ts)
	}
	return rec, nil
}

func stringField(f map[string]*structpb.Value, name string) (string, error) {
	v, ok := f[name]
	if !ok {
		return "", fmt.Errorf("packet struct is missing field '%s'", name)
	}
	return v.GetStringValue(), nil
}

func numberField(f map[string]*structpb.Value, name string, max float64) (float64, error) {
	v, ok := f[name]
	if !ok {
		return 0, fmt.Errorf("packet struct is missing field '%s'", name)
	}
	n := v.GetNumberValue()
	if n < 0 || n > max || n != math.Trunc(n) {
		return 0, fmt.Errorf("packet struct field '%s' out of range: %v", name, n)
	}
	return n, nil
}
