package types

import "github.com/btcsuite/btcd/btcutil"

// ScriptClass classifies an output script for well-formedness checks.
type ScriptClass int

const (
	// ScriptClassUnknown is any script this protocol does not recognize
	// as either a normal payment or a data-carrier output.
	ScriptClassUnknown ScriptClass = iota
	// ScriptClassPayment is an ordinary spendable payment script.
	ScriptClassPayment
	// ScriptClassUnspendable is a provably unspendable data-carrier
	// script (an OP_RETURN-style output).
	ScriptClassUnspendable
)

// opReturn is the standard data-carrier script opcode.
const opReturn = 0x6a

// ClassifyScript gives a best-effort classification of an output script.
// A script beginning with OP_RETURN is unspendable; anything else short
// enough to be a standard payment script (P2PKH/P2SH/P2WPKH length range)
// is treated as a normal payment. This mirrors the coarse classification a
// lock request's well-formedness check performs: the engine does not
// execute scripts, it only rejects the obviously wrong shapes.
func ClassifyScript(script []byte) ScriptClass {
	if len(script) == 0 {
		return ScriptClassUnknown
	}
	if script[0] == opReturn {
		return ScriptClassUnspendable
	}
	if len(script) >= 3 && len(script) <= 40 {
		return ScriptClassPayment
	}
	return ScriptClassUnknown
}

// TxOut is one output of a lock request's transaction.
type TxOut struct {
	Amount btcutil.Amount
	Script []byte
}

// Request is the transaction nominated for locking.
type Request struct {
	TxHash Hash
	Vin    []Outpoint
	Vout   []TxOut
}

// Coin is an unspent output resolvable through the host's UTXO view.
type Coin struct {
	Height int64
	Value  btcutil.Amount
	Script []byte
}
