package types

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
)

// cursor is a minimal forward-only byte reader, in the style used across
// this protocol's peer implementations for hand-rolled wire codecs.
type cursor struct {
	b   []byte
	pos int
}

func newCursor(b []byte) *cursor {
	return &cursor{b: b}
}

func (c *cursor) remaining() int {
	if c.pos >= len(c.b) {
		return 0
	}
	return len(c.b) - c.pos
}

func (c *cursor) readExact(n int) ([]byte, error) {
	if n < 0 || c.remaining() < n {
		return nil, fmt.Errorf("types: wire: truncated message")
	}
	start := c.pos
	c.pos += n
	return c.b[start:c.pos], nil
}

func (c *cursor) readHash() (Hash, error) {
	b, err := c.readExact(HashSize)
	if err != nil {
		return Hash{}, err
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

func (c *cursor) readU32LE() (uint32, error) {
	b, err := c.readExact(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *cursor) readI64LE() (int64, error) {
	b, err := c.readExact(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

func (c *cursor) readVarBytes() ([]byte, error) {
	n, err := c.readU32LE()
	if err != nil {
		return nil, err
	}
	return c.readExact(int(n))
}

func (c *cursor) readOutpoint() (Outpoint, error) {
	h, err := c.readHash()
	if err != nil {
		return Outpoint{}, err
	}
	idx, err := c.readU32LE()
	if err != nil {
		return Outpoint{}, err
	}
	return Outpoint{Hash: h, Index: idx}, nil
}

func appendUint32LE(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendInt64LE(buf []byte, v int64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	return append(buf, tmp[:]...)
}

func appendVarBytes(buf, data []byte) []byte {
	buf = appendUint32LE(buf, uint32(len(data)))
	return append(buf, data...)
}

func appendOutpoint(buf []byte, o Outpoint) []byte {
	buf = append(buf, o.Hash[:]...)
	return appendUint32LE(buf, o.Index)
}

// EncodeVote serializes a vote to its wire form:
//
//	tx_hash(32) | input(36) | signer(36) | created_at(8) | confirmed_height(8) | sig(varbytes)
func EncodeVote(v *Vote) []byte {
	buf := make([]byte, 0, 32+36+36+8+8+4+len(v.Signature))
	buf = append(buf, v.TxHash[:]...)
	buf = appendOutpoint(buf, v.Input)
	buf = appendOutpoint(buf, v.Signer)
	buf = appendInt64LE(buf, v.CreatedAt)
	buf = appendInt64LE(buf, v.ConfirmedHeight)
	buf = appendVarBytes(buf, v.Signature)
	return buf
}

// DecodeVote parses the wire form produced by EncodeVote.
func DecodeVote(data []byte) (*Vote, error) {
	c := newCursor(data)
	txHash, err := c.readHash()
	if err != nil {
		return nil, fmt.Errorf("types: decode vote: tx_hash: %w", err)
	}
	input, err := c.readOutpoint()
	if err != nil {
		return nil, fmt.Errorf("types: decode vote: input: %w", err)
	}
	signer, err := c.readOutpoint()
	if err != nil {
		return nil, fmt.Errorf("types: decode vote: signer: %w", err)
	}
	createdAt, err := c.readI64LE()
	if err != nil {
		return nil, fmt.Errorf("types: decode vote: created_at: %w", err)
	}
	confirmedHeight, err := c.readI64LE()
	if err != nil {
		return nil, fmt.Errorf("types: decode vote: confirmed_height: %w", err)
	}
	sig, err := c.readVarBytes()
	if err != nil {
		return nil, fmt.Errorf("types: decode vote: signature: %w", err)
	}
	return &Vote{
		TxHash:          txHash,
		Input:           input,
		Signer:          signer,
		Signature:       NewSignature(sig),
		CreatedAt:       createdAt,
		ConfirmedHeight: confirmedHeight,
	}, nil
}

// EncodeRequest serializes a lock request to its wire form:
//
//	tx_hash(32) | vin_count(4) | vin[outpoint(36)]... | vout_count(4) | vout[amount(8) script(varbytes)]...
func EncodeRequest(r *Request) []byte {
	buf := make([]byte, 0, 32+4+36*len(r.Vin)+4)
	buf = append(buf, r.TxHash[:]...)
	buf = appendUint32LE(buf, uint32(len(r.Vin)))
	for _, in := range r.Vin {
		buf = appendOutpoint(buf, in)
	}
	buf = appendUint32LE(buf, uint32(len(r.Vout)))
	for _, out := range r.Vout {
		buf = appendInt64LE(buf, int64(out.Amount))
		buf = appendVarBytes(buf, out.Script)
	}
	return buf
}

// DecodeRequest parses the wire form produced by EncodeRequest.
func DecodeRequest(data []byte) (*Request, error) {
	c := newCursor(data)
	txHash, err := c.readHash()
	if err != nil {
		return nil, fmt.Errorf("types: decode request: tx_hash: %w", err)
	}
	vinCount, err := c.readU32LE()
	if err != nil {
		return nil, fmt.Errorf("types: decode request: vin_count: %w", err)
	}
	vin := make([]Outpoint, 0, vinCount)
	for i := uint32(0); i < vinCount; i++ {
		in, err := c.readOutpoint()
		if err != nil {
			return nil, fmt.Errorf("types: decode request: vin[%d]: %w", i, err)
		}
		vin = append(vin, in)
	}
	voutCount, err := c.readU32LE()
	if err != nil {
		return nil, fmt.Errorf("types: decode request: vout_count: %w", err)
	}
	vout := make([]TxOut, 0, voutCount)
	for i := uint32(0); i < voutCount; i++ {
		amount, err := c.readI64LE()
		if err != nil {
			return nil, fmt.Errorf("types: decode request: vout[%d].amount: %w", i, err)
		}
		script, err := c.readVarBytes()
		if err != nil {
			return nil, fmt.Errorf("types: decode request: vout[%d].script: %w", i, err)
		}
		vout = append(vout, TxOut{Amount: btcutil.Amount(amount), Script: script})
	}
	return &Request{TxHash: txHash, Vin: vin, Vout: vout}, nil
}
