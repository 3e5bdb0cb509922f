// Package protowire oferece um encoder/decoder orientado a campos sobre o
// formato wire do protobuf (google.golang.org/protobuf/encoding/protowire).
// Usado pelo arquivo de foliage e pelas mensagens de rede, que não têm .proto gerado.
package protowire

import (
	"errors"
	"fmt"
	"math"

	pw "google.golang.org/protobuf/encoding/protowire"
)

// WireType constantes do protobuf
const (
	WireVarint          = int(pw.VarintType)
	Wire64Bit           = int(pw.Fixed64Type)
	WireLengthDelimited = int(pw.BytesType)
	Wire32Bit           = int(pw.Fixed32Type)
)

// ErrTruncated indica que o buffer acabou no meio de um campo.
var ErrTruncated = errors.New("protowire: buffer truncado")

// ---------- ENCODER ----------

// Encoder acumula bytes no formato protobuf.
type Encoder struct {
	buf []byte
}

// NewEncoder cria um encoder vazio.
func NewEncoder() *Encoder {
	return &Encoder{buf: make([]byte, 0, 256)}
}

// Bytes retorna o buffer serializado.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Reset limpa o buffer.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
}

func (e *Encoder) tag(fieldNum int, wireType int) {
	e.buf = pw.AppendTag(e.buf, pw.Number(fieldNum), pw.Type(wireType))
}

// EncodeVarint codifica um campo varint; zero não é serializado (proto3).
func (e *Encoder) EncodeVarint(fieldNum int, v int64) {
	if v == 0 {
		return
	}
	e.EncodeVarintForce(fieldNum, v)
}

// EncodeVarintForce codifica varint mesmo que seja zero.
func (e *Encoder) EncodeVarintForce(fieldNum int, v int64) {
	e.tag(fieldNum, WireVarint)
	e.buf = pw.AppendVarint(e.buf, uint64(v))
}

// EncodeUvarint codifica uint64.
func (e *Encoder) EncodeUvarint(fieldNum int, v uint64) {
	if v == 0 {
		return
	}
	e.tag(fieldNum, WireVarint)
	e.buf = pw.AppendVarint(e.buf, v)
}

// EncodeSint codifica um inteiro com sinal em zigzag.
func (e *Encoder) EncodeSint(fieldNum int, v int64) {
	if v == 0 {
		return
	}
	e.tag(fieldNum, WireVarint)
	e.buf = pw.AppendVarint(e.buf, pw.EncodeZigZag(v))
}

// EncodeBool codifica um boolean.
func (e *Encoder) EncodeBool(fieldNum int, v bool) {
	if !v {
		return
	}
	e.tag(fieldNum, WireVarint)
	e.buf = pw.AppendVarint(e.buf, pw.EncodeBool(v))
}

// EncodeBytes codifica bytes raw (length-delimited).
func (e *Encoder) EncodeBytes(fieldNum int, v []byte) {
	if len(v) == 0 {
		return
	}
	e.tag(fieldNum, WireLengthDelimited)
	e.buf = pw.AppendBytes(e.buf, v)
}

// EncodeString codifica uma string.
func (e *Encoder) EncodeString(fieldNum int, v string) {
	if v == "" {
		return
	}
	e.tag(fieldNum, WireLengthDelimited)
	e.buf = pw.AppendString(e.buf, v)
}

// EncodeSubmessage codifica uma submensagem, mesmo vazia (presença importa em listas).
func (e *Encoder) EncodeSubmessage(fieldNum int, sub []byte) {
	e.tag(fieldNum, WireLengthDelimited)
	e.buf = pw.AppendBytes(e.buf, sub)
}

// EncodeFixed32 codifica um float32 como fixed32.
func (e *Encoder) EncodeFixed32(fieldNum int, v float32) {
	e.tag(fieldNum, Wire32Bit)
	e.buf = pw.AppendFixed32(e.buf, math.Float32bits(v))
}

// EncodeDouble codifica um float64 como fixed64; zero não é serializado.
func (e *Encoder) EncodeDouble(fieldNum int, v float64) {
	if v == 0 && !math.Signbit(v) {
		return
	}
	e.tag(fieldNum, Wire64Bit)
	e.buf = pw.AppendFixed64(e.buf, math.Float64bits(v))
}

// EncodePackedDouble codifica um repeated double como packed.
func (e *Encoder) EncodePackedDouble(fieldNum int, values []float64) {
	if len(values) == 0 {
		return
	}
	sub := make([]byte, 0, 8*len(values))
	for _, v := range values {
		sub = pw.AppendFixed64(sub, math.Float64bits(v))
	}
	e.EncodeBytes(fieldNum, sub)
}

// EncodePackedVarint codifica um repeated field como packed varint.
func (e *Encoder) EncodePackedVarint(fieldNum int, values []int64) {
	if len(values) == 0 {
		return
	}
	var sub []byte
	for _, v := range values {
		sub = pw.AppendVarint(sub, uint64(v))
	}
	e.EncodeBytes(fieldNum, sub)
}

// ---------- DECODER ----------

// Decoder lê campos protobuf de um buffer.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder cria um decoder sobre um buffer.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Done retorna true se não há mais bytes.
func (d *Decoder) Done() bool {
	return d.pos >= len(d.buf)
}

// Remaining retorna os bytes restantes.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.pos
}

func (d *Decoder) consumed(n int) error {
	if n < 0 {
		if err := pw.ParseError(n); err != nil {
			return fmt.Errorf("%w: %v", ErrTruncated, err)
		}
		return ErrTruncated
	}
	d.pos += n
	return nil
}

// ReadTag lê o número do campo e o tipo de wire do próximo campo.
func (d *Decoder) ReadTag() (fieldNum int, wireType int, err error) {
	num, typ, n := pw.ConsumeTag(d.buf[d.pos:])
	if err := d.consumed(n); err != nil {
		return 0, 0, err
	}
	return int(num), int(typ), nil
}

// ReadVarint lê um valor varint (após o tag já ter sido lido).
func (d *Decoder) ReadVarint() (int64, error) {
	v, n := pw.ConsumeVarint(d.buf[d.pos:])
	if err := d.consumed(n); err != nil {
		return 0, err
	}
	return int64(v), nil
}

// ReadUvarint lê um varint sem sinal.
func (d *Decoder) ReadUvarint() (uint64, error) {
	v, n := pw.ConsumeVarint(d.buf[d.pos:])
	if err := d.consumed(n); err != nil {
		return 0, err
	}
	return v, nil
}

// ReadSint lê um inteiro zigzag.
func (d *Decoder) ReadSint() (int64, error) {
	v, err := d.ReadUvarint()
	return pw.DecodeZigZag(v), err
}

// ReadBool lê um boolean.
func (d *Decoder) ReadBool() (bool, error) {
	v, err := d.ReadUvarint()
	return v != 0, err
}

// ReadBytes lê um campo length-delimited. O slice aponta para o buffer original.
func (d *Decoder) ReadBytes() ([]byte, error) {
	v, n := pw.ConsumeBytes(d.buf[d.pos:])
	if err := d.consumed(n); err != nil {
		return nil, err
	}
	return v, nil
}

// ReadString lê uma string.
func (d *Decoder) ReadString() (string, error) {
	b, err := d.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadFixed32 lê um float32 / fixed32.
func (d *Decoder) ReadFixed32() (float32, error) {
	v, n := pw.ConsumeFixed32(d.buf[d.pos:])
	if err := d.consumed(n); err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadDouble lê um float64 codificado em fixed64.
func (d *Decoder) ReadDouble() (float64, error) {
	v, n := pw.ConsumeFixed64(d.buf[d.pos:])
	if err := d.consumed(n); err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// SkipField pula um campo baseado no wire type.
func (d *Decoder) SkipField(fieldNum, wireType int) error {
	n := pw.ConsumeFieldValue(pw.Number(fieldNum), pw.Type(wireType), d.buf[d.pos:])
	return d.consumed(n)
}

// ReadPackedDouble lê um packed repeated double.
func (d *Decoder) ReadPackedDouble() ([]float64, error) {
	data, err := d.ReadBytes()
	if err != nil {
		return nil, err
	}
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("%w: packed double com %d bytes", ErrTruncated, len(data))
	}
	out := make([]float64, 0, len(data)/8)
	for len(data) > 0 {
		v, n := pw.ConsumeFixed64(data)
		if n < 0 {
			return out, ErrTruncated
		}
		out = append(out, math.Float64frombits(v))
		data = data[n:]
	}
	return out, nil
}

// ReadPackedVarint lê um packed repeated varint field.
func (d *Decoder) ReadPackedVarint() ([]int64, error) {
	data, err := d.ReadBytes()
	if err != nil {
		return nil, err
	}
	var out []int64
	for len(data) > 0 {
		v, n := pw.ConsumeVarint(data)
		if n < 0 {
			return out, ErrTruncated
		}
		out = append(out, int64(v))
		data = data[n:]
	}
	return out, nil
}
