// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package compilerpb

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
)

// Message is implemented by every wire message in this package.
type Message interface {
	appendWire(b []byte) []byte
	unmarshalField(num protowire.Number, typ protowire.Type, b []byte) (int, error)
}

// Marshal encodes m.
func Marshal(m Message) []byte { return m.appendWire(nil) }

// Unmarshal decodes b into m. Unknown fields are skipped.
func Unmarshal(b []byte, m Message) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		n, err := m.unmarshalField(num, typ, b)
		if err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		b = b[n:]
	}
	return nil
}

// Codec is the gRPC codec for this package's messages. Registered protobuf messages,
// such as the health service's, are passed to the standard protobuf encoder.
type Codec struct{}

// Name implements encoding.Codec. The content-subtype stays "proto" so the codec
// interoperates with any protobuf peer.
func (Codec) Name() string { return "proto" }

// Marshal implements encoding.Codec.
func (Codec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case Message:
		return Marshal(m), nil
	case proto.Message:
		return proto.Marshal(m)
	}
	return nil, fmt.Errorf("compilerpb: cannot marshal %T", v)
}

// Unmarshal implements encoding.Codec.
func (Codec) Unmarshal(data []byte, v any) error {
	switch m := v.(type) {
	case Message:
		return Unmarshal(data, m)
	case proto.Message:
		return proto.Unmarshal(data, m)
	}
	return fmt.Errorf("compilerpb: cannot unmarshal into %T", v)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendRepeatedString(b []byte, num protowire.Number, ss []string) []byte {
	for _, s := range ss {
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendString(b, s)
	}
	return b
}

func appendVarint(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendMessage(b []byte, num protowire.Number, m Message) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m.appendWire(nil))
}

func consumeString(typ protowire.Type, b []byte, dst *string) (int, error) {
	if typ != protowire.BytesType {
		return 0, fmt.Errorf("wire type %d, want bytes", typ)
	}
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = v
	return n, nil
}

func consumeRepeatedString(typ protowire.Type, b []byte, dst *[]string) (int, error) {
	var s string
	n, err := consumeString(typ, b, &s)
	if err != nil {
		return 0, err
	}
	*dst = append(*dst, s)
	return n, nil
}

func consumeVarint(typ protowire.Type, b []byte) (int64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, fmt.Errorf("wire type %d, want varint", typ)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return int64(v), n, nil
}

func consumeMessage(typ protowire.Type, b []byte, m Message) (int, error) {
	if typ != protowire.BytesType {
		return 0, fmt.Errorf("wire type %d, want bytes", typ)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	if err := Unmarshal(v, m); err != nil {
		return 0, err
	}
	return n, nil
}

func skipField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return n, nil
}

func (x *CompileDocument) appendWire(b []byte) []byte {
	b = appendString(b, 1, x.Url)
	return appendString(b, 2, x.Content)
}

func (x *CompileDocument) unmarshalField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case 1:
		return consumeString(typ, b, &x.Url)
	case 2:
		return consumeString(typ, b, &x.Content)
	}
	return skipField(num, typ, b)
}

func (x *SqlBlockSchema) appendWire(b []byte) []byte {
	b = appendString(b, 1, x.Name)
	b = appendString(b, 2, x.Sql)
	return appendString(b, 3, x.Schema)
}

func (x *SqlBlockSchema) unmarshalField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case 1:
		return consumeString(typ, b, &x.Name)
	case 2:
		return consumeString(typ, b, &x.Sql)
	case 3:
		return consumeString(typ, b, &x.Schema)
	}
	return skipField(num, typ, b)
}

func (x *QueryResult) appendWire(b []byte) []byte {
	b = appendString(b, 1, x.Data)
	return appendVarint(b, 2, int64(x.TotalRows))
}

func (x *QueryResult) unmarshalField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case 1:
		return consumeString(typ, b, &x.Data)
	case 2:
		v, n, err := consumeVarint(typ, b)
		x.TotalRows = int32(v)
		return n, err
	}
	return skipField(num, typ, b)
}

func (x *CompileRequest) appendWire(b []byte) []byte {
	b = appendVarint(b, 1, int64(x.Type))
	if x.Document != nil {
		b = appendMessage(b, 2, x.Document)
	}
	for _, r := range x.References {
		b = appendMessage(b, 3, r)
	}
	b = appendString(b, 4, x.Schema)
	for _, s := range x.SqlBlockSchemas {
		b = appendMessage(b, 5, s)
	}
	b = appendString(b, 6, x.Query)
	b = appendString(b, 7, x.NamedQuery)
	b = appendVarint(b, 8, int64(x.Mode))
	if x.QueryResult != nil {
		b = appendMessage(b, 9, x.QueryResult)
	}
	return b
}

func (x *CompileRequest) unmarshalField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case 1:
		v, n, err := consumeVarint(typ, b)
		x.Type = CompileRequest_Type(v)
		return n, err
	case 2:
		x.Document = &CompileDocument{}
		return consumeMessage(typ, b, x.Document)
	case 3:
		doc := &CompileDocument{}
		x.References = append(x.References, doc)
		return consumeMessage(typ, b, doc)
	case 4:
		return consumeString(typ, b, &x.Schema)
	case 5:
		s := &SqlBlockSchema{}
		x.SqlBlockSchemas = append(x.SqlBlockSchemas, s)
		return consumeMessage(typ, b, s)
	case 6:
		return consumeString(typ, b, &x.Query)
	case 7:
		return consumeString(typ, b, &x.NamedQuery)
	case 8:
		v, n, err := consumeVarint(typ, b)
		x.Mode = CompileRequest_Mode(v)
		return n, err
	case 9:
		x.QueryResult = &QueryResult{}
		return consumeMessage(typ, b, x.QueryResult)
	}
	return skipField(num, typ, b)
}

func (x *CompileResponse) appendWire(b []byte) []byte {
	b = appendString(b, 1, x.Model)
	return appendString(b, 2, x.Sql)
}

func (x *CompileResponse) unmarshalField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case 1:
		return consumeString(typ, b, &x.Model)
	case 2:
		return consumeString(typ, b, &x.Sql)
	}
	return skipField(num, typ, b)
}

func (x *TableSchema) appendWire(b []byte) []byte {
	b = appendString(b, 1, x.Key)
	b = appendString(b, 2, x.Connection)
	return appendString(b, 3, x.Table)
}

func (x *TableSchema) unmarshalField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case 1:
		return consumeString(typ, b, &x.Key)
	case 2:
		return consumeString(typ, b, &x.Connection)
	case 3:
		return consumeString(typ, b, &x.Table)
	}
	return skipField(num, typ, b)
}

func (x *SqlBlock) appendWire(b []byte) []byte {
	b = appendString(b, 1, x.Name)
	b = appendString(b, 2, x.Sql)
	return appendString(b, 3, x.Connection)
}

func (x *SqlBlock) unmarshalField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case 1:
		return consumeString(typ, b, &x.Name)
	case 2:
		return consumeString(typ, b, &x.Sql)
	case 3:
		return consumeString(typ, b, &x.Connection)
	}
	return skipField(num, typ, b)
}

func (x *Problem) appendWire(b []byte) []byte {
	b = appendString(b, 1, x.Severity)
	b = appendString(b, 2, x.Message)
	return appendVarint(b, 3, int64(x.Line))
}

func (x *Problem) unmarshalField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case 1:
		return consumeString(typ, b, &x.Severity)
	case 2:
		return consumeString(typ, b, &x.Message)
	case 3:
		v, n, err := consumeVarint(typ, b)
		x.Line = int32(v)
		return n, err
	}
	return skipField(num, typ, b)
}

func (x *CompilerRequest) appendWire(b []byte) []byte {
	b = appendVarint(b, 1, int64(x.Type))
	b = appendRepeatedString(b, 2, x.ImportUrls)
	for _, t := range x.TableSchemas {
		b = appendMessage(b, 3, t)
	}
	if x.SqlBlock != nil {
		b = appendMessage(b, 4, x.SqlBlock)
	}
	b = appendRepeatedString(b, 5, x.Connections)
	b = appendString(b, 6, x.Content)
	b = appendString(b, 7, x.Connection)
	b = appendString(b, 8, x.RenderContent)
	for _, p := range x.Problems {
		b = appendMessage(b, 9, p)
	}
	return appendString(b, 10, x.PreparedResult)
}

func (x *CompilerRequest) unmarshalField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	switch num {
	case 1:
		v, n, err := consumeVarint(typ, b)
		x.Type = CompilerRequest_Type(v)
		return n, err
	case 2:
		return consumeRepeatedString(typ, b, &x.ImportUrls)
	case 3:
		t := &TableSchema{}
		x.TableSchemas = append(x.TableSchemas, t)
		return consumeMessage(typ, b, t)
	case 4:
		x.SqlBlock = &SqlBlock{}
		return consumeMessage(typ, b, x.SqlBlock)
	case 5:
		return consumeRepeatedString(typ, b, &x.Connections)
	case 6:
		return consumeString(typ, b, &x.Content)
	case 7:
		return consumeString(typ, b, &x.Connection)
	case 8:
		return consumeString(typ, b, &x.RenderContent)
	case 9:
		p := &Problem{}
		x.Problems = append(x.Problems, p)
		return consumeMessage(typ, b, p)
	case 10:
		return consumeString(typ, b, &x.PreparedResult)
	}
	return skipField(num, typ, b)
}
