package types

import (
	"errors"
	"math/big"

	"github.com/eth2030/eth2030/rlp"
	"golang.org/x/crypto/sha3"
)

var (
	errInvalidSig     = errors.New("invalid transaction signature")
	errInvalidChainID = errors.New("invalid chain ID for signer")
	errNoRecovery     = errors.New("public key recovery failed")
)

// secp256k1 curve order, used for signature validation.
var secp256k1NCopy, _ = new(big.Int).SetString(
	"fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141", 16,
)

var secp256k1HalfNCopy = new(big.Int).Rsh(secp256k1NCopy, 1)

// secp256k1 curve parameters for local recovery. Duplicated from the crypto
// package rather than imported: crypto imports core/types for
// PubkeyToAddress, so importing crypto here would close an import cycle.
var (
	secp256k1P, _  = new(big.Int).SetString("fffffffffffffffffffffffffffffffffffffffffffffffffffffffefffffc2f", 16)
	secp256k1Gx, _ = new(big.Int).SetString("79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798", 16)
	secp256k1Gy, _ = new(big.Int).SetString("483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8", 16)
	secp256k1B     = big.NewInt(7)
)

// Signer provides methods for hashing transactions and recovering the sender,
// parameterized over the fork rules in effect (chain-ID replay protection,
// low-S enforcement).
type Signer interface {
	// ChainID returns the chain ID this signer operates on, or zero for a
	// signer that predates EIP-155 replay protection.
	ChainID() uint64

	// Hash returns the signing hash for the given transaction.
	Hash(tx *Transaction) Hash

	// Sender recovers the sender address from the transaction's signature.
	Sender(tx *Transaction) (Address, error)
}

// FrontierSigner implements Signer for the original, chain-ID-agnostic
// signature scheme: V is 27 or 28 and carries no replay protection.
type FrontierSigner struct{}

// NewFrontierSigner creates a signer for pre-Homestead legacy transactions.
func NewFrontierSigner() FrontierSigner { return FrontierSigner{} }

// ChainID returns zero: Frontier signatures carry no chain ID.
func (s FrontierSigner) ChainID() uint64 { return 0 }

// Hash returns the signing hash for a legacy transaction.
func (s FrontierSigner) Hash(tx *Transaction) Hash {
	return legacySigningHash(tx, 0)
}

// Sender recovers the sender address from a legacy transaction's signature.
func (s FrontierSigner) Sender(tx *Transaction) (Address, error) {
	v, r, ss := tx.RawSignatureValues()
	if v == nil || r == nil || ss == nil {
		return Address{}, errInvalidSig
	}
	recovery, err := frontierRecoveryID(v)
	if err != nil {
		return Address{}, err
	}
	return RecoverPlain(s.Hash(tx), r, ss, recovery, false)
}

// HomesteadSigner is FrontierSigner plus the Homestead low-S requirement
// (EIP-2): malleable signatures with s in the upper half of the curve order
// are rejected rather than silently accepted.
type HomesteadSigner struct{ FrontierSigner }

// NewHomesteadSigner creates a signer enforcing the Homestead low-S rule.
func NewHomesteadSigner() HomesteadSigner { return HomesteadSigner{} }

// Sender recovers the sender address, rejecting malleable (high-S) signatures.
func (s HomesteadSigner) Sender(tx *Transaction) (Address, error) {
	v, r, ss := tx.RawSignatureValues()
	if v == nil || r == nil || ss == nil {
		return Address{}, errInvalidSig
	}
	recovery, err := frontierRecoveryID(v)
	if err != nil {
		return Address{}, err
	}
	return RecoverPlain(s.Hash(tx), r, ss, recovery, true)
}

// EIP155Signer implements Signer for chain-ID replay-protected legacy
// transactions, as introduced by EIP-155 (Spurious Dragon). It is carried
// here, ahead of that fork, so conformance fixtures encoding an EIP-155
// style V against an earlier ruleset still decode; MakeSigner picks the
// fork-appropriate signer for sender recovery.
type EIP155Signer struct {
	chainID    uint64
	chainIDBig *big.Int
}

// NewEIP155Signer creates a signer for EIP-155 legacy transactions.
func NewEIP155Signer(chainID uint64) EIP155Signer {
	return EIP155Signer{
		chainID:    chainID,
		chainIDBig: new(big.Int).SetUint64(chainID),
	}
}

// ChainID returns the chain ID.
func (s EIP155Signer) ChainID() uint64 { return s.chainID }

// Hash returns the signing hash for a legacy transaction.
func (s EIP155Signer) Hash(tx *Transaction) Hash {
	return legacySigningHash(tx, s.chainID)
}

// Sender recovers the sender address from a legacy transaction's signature.
func (s EIP155Signer) Sender(tx *Transaction) (Address, error) {
	v, r, ss := tx.RawSignatureValues()
	if v == nil || r == nil || ss == nil {
		return Address{}, errInvalidSig
	}

	var recovery byte
	vVal := v.Uint64()
	switch vVal {
	case 27, 28:
		recovery = byte(vVal - 27)
	default:
		// EIP-155: V = chainID*2 + 35 + recoveryID.
		if vVal < 35 {
			return Address{}, errInvalidSig
		}
		chainID := new(big.Int).Sub(v, big.NewInt(35))
		recovery = byte(new(big.Int).And(chainID, big.NewInt(1)).Uint64())
		chainID.Rsh(chainID, 1)
		if chainID.Uint64() != s.chainID {
			return Address{}, errInvalidChainID
		}
	}
	if recovery > 1 {
		return Address{}, errInvalidSig
	}
	return RecoverPlain(s.Hash(tx), r, ss, recovery, true)
}

// LatestSigner returns the most permissive signer for the given chain ID.
func LatestSigner(chainID uint64) Signer {
	return NewEIP155Signer(chainID)
}

// MakeSigner returns the signer matching the named fork rule set.
// homestead enables the low-S requirement; eip155 enables chain-ID replay
// protection (named for Spurious Dragon but accepted here so fixtures
// carrying an EIP-155-shaped V still recover against it).
func MakeSigner(chainID uint64, homestead, eip155 bool) Signer {
	switch {
	case eip155:
		return NewEIP155Signer(chainID)
	case homestead:
		return NewHomesteadSigner()
	default:
		return NewFrontierSigner()
	}
}

// frontierRecoveryID normalizes a legacy V (27 or 28) to a 0/1 recovery ID.
func frontierRecoveryID(v *big.Int) (byte, error) {
	vVal := v.Uint64()
	if vVal != 27 && vVal != 28 {
		return 0, errInvalidSig
	}
	return byte(vVal - 27), nil
}

// legacySigningHash computes the signing hash for a legacy transaction.
// chainID == 0 yields the pre-EIP-155 hash:
//
//	Keccak256(RLP([nonce, gasPrice, gas, to, value, data]))
//
// chainID != 0 yields the EIP-155 replay-protected hash:
//
//	Keccak256(RLP([nonce, gasPrice, gas, to, value, data, chainID, 0, 0]))
func legacySigningHash(tx *Transaction, chainID uint64) Hash {
	toBytes := make([]byte, 0)
	if tx.inner.To != nil {
		toBytes = tx.inner.To[:]
	}

	var items [][]byte
	enc := func(v interface{}) {
		b, _ := rlp.EncodeToBytes(v)
		items = append(items, b)
	}

	enc(tx.inner.Nonce)
	enc(bigOrZero(tx.inner.GasPrice))
	enc(tx.inner.Gas)
	enc(toBytes)
	enc(bigOrZero(tx.inner.Value))
	enc(tx.inner.Data)

	if chainID != 0 {
		enc(new(big.Int).SetUint64(chainID))
		enc(uint(0))
		enc(uint(0))
	}

	var payload []byte
	for _, item := range items {
		payload = append(payload, item...)
	}
	encoded := rlp.WrapList(payload)

	d := sha3.NewLegacyKeccak256()
	d.Write(encoded)
	var h Hash
	copy(h[:], d.Sum(nil))
	return h
}

// RecoverPlain recovers the sender address from an ECDSA signature.
// sighash is the 32-byte message hash, r and s are the signature values,
// and v is the recovery ID (0 or 1). When homestead is true, signatures
// with s above the curve's half order are rejected (EIP-2 malleability fix).
func RecoverPlain(sighash Hash, r, s *big.Int, v byte, homestead bool) (Address, error) {
	if v > 1 {
		return Address{}, errInvalidSig
	}
	if r.Sign() <= 0 || s.Sign() <= 0 {
		return Address{}, errInvalidSig
	}
	if r.Cmp(secp256k1NCopy) >= 0 || s.Cmp(secp256k1NCopy) >= 0 {
		return Address{}, errInvalidSig
	}
	if homestead && s.Cmp(secp256k1HalfNCopy) > 0 {
		return Address{}, errInvalidSig
	}

	pub, err := recoverPubkey(sighash[:], r, s, v)
	if err != nil {
		return Address{}, err
	}

	// Address = Keccak256(pub[1:])[12:] where pub is 65-byte uncompressed.
	d := sha3.NewLegacyKeccak256()
	d.Write(pub[1:])
	hash := d.Sum(nil)
	return BytesToAddress(hash[12:]), nil
}

// recoverPubkey recovers the uncompressed public key (65 bytes, 0x04 prefix)
// from a hash, signature r/s values, and recovery ID v.
func recoverPubkey(hash []byte, r, s *big.Int, v byte) ([]byte, error) {
	x := new(big.Int).Set(r)
	if x.Cmp(secp256k1P) >= 0 {
		return nil, errNoRecovery
	}

	y := signerComputeY(x)
	if y == nil {
		return nil, errNoRecovery
	}
	if y.Bit(0) != uint(v&1) {
		y.Sub(secp256k1P, y)
	}

	rInv := new(big.Int).ModInverse(r, secp256k1NCopy)
	if rInv == nil {
		return nil, errNoRecovery
	}
	e := new(big.Int).SetBytes(hash)

	sRx, sRy := signerScalarMult(x, y, s)
	eGx, eGy := signerScalarMult(secp256k1Gx, secp256k1Gy, e)

	negEGy := new(big.Int).Sub(secp256k1P, eGy)
	negEGy.Mod(negEGy, secp256k1P)

	diffX, diffY := signerPointAdd(sRx, sRy, eGx, negEGy)
	qx, qy := signerScalarMult(diffX, diffY, rInv)

	if qx.Sign() == 0 && qy.Sign() == 0 {
		return nil, errNoRecovery
	}
	if !signerVerify(hash, r, s, qx, qy) {
		return nil, errNoRecovery
	}

	pub := make([]byte, 65)
	pub[0] = 0x04
	xBytes := qx.Bytes()
	yBytes := qy.Bytes()
	copy(pub[1+32-len(xBytes):33], xBytes)
	copy(pub[33+32-len(yBytes):65], yBytes)
	return pub, nil
}

// signerComputeY computes y = sqrt(x^3 + 7) mod p for secp256k1.
func signerComputeY(x *big.Int) *big.Int {
	x3 := new(big.Int).Mul(x, x)
	x3.Mod(x3, secp256k1P)
	x3.Mul(x3, x)
	x3.Mod(x3, secp256k1P)
	x3.Add(x3, secp256k1B)
	x3.Mod(x3, secp256k1P)

	// p = 3 mod 4, so sqrt(a) = a^((p+1)/4).
	exp := new(big.Int).Add(secp256k1P, big.NewInt(1))
	exp.Rsh(exp, 2)
	y := new(big.Int).Exp(x3, exp, secp256k1P)

	y2 := new(big.Int).Mul(y, y)
	y2.Mod(y2, secp256k1P)
	if y2.Cmp(x3) != 0 {
		return nil
	}
	return y
}

// signerPointAdd adds two points on the secp256k1 curve.
func signerPointAdd(x1, y1, x2, y2 *big.Int) (*big.Int, *big.Int) {
	if x1.Sign() == 0 && y1.Sign() == 0 {
		return new(big.Int).Set(x2), new(big.Int).Set(y2)
	}
	if x2.Sign() == 0 && y2.Sign() == 0 {
		return new(big.Int).Set(x1), new(big.Int).Set(y1)
	}
	if x1.Cmp(x2) == 0 && y1.Cmp(y2) == 0 {
		return signerPointDouble(x1, y1)
	}
	if x1.Cmp(x2) == 0 {
		return new(big.Int), new(big.Int)
	}
	p := secp256k1P
	dy := new(big.Int).Sub(y2, y1)
	dy.Mod(dy, p)
	dx := new(big.Int).Sub(x2, x1)
	dx.Mod(dx, p)
	dxInv := new(big.Int).ModInverse(dx, p)
	if dxInv == nil {
		return new(big.Int), new(big.Int)
	}
	slope := new(big.Int).Mul(dy, dxInv)
	slope.Mod(slope, p)
	x3 := new(big.Int).Mul(slope, slope)
	x3.Sub(x3, x1)
	x3.Sub(x3, x2)
	x3.Mod(x3, p)
	y3 := new(big.Int).Sub(x1, x3)
	y3.Mul(y3, slope)
	y3.Sub(y3, y1)
	y3.Mod(y3, p)
	return x3, y3
}

// signerPointDouble doubles a point on the secp256k1 curve.
func signerPointDouble(x1, y1 *big.Int) (*big.Int, *big.Int) {
	if y1.Sign() == 0 {
		return new(big.Int), new(big.Int)
	}
	p := secp256k1P
	x1sq := new(big.Int).Mul(x1, x1)
	x1sq.Mod(x1sq, p)
	num := new(big.Int).Mul(big.NewInt(3), x1sq)
	num.Mod(num, p)
	den := new(big.Int).Mul(big.NewInt(2), y1)
	den.Mod(den, p)
	denInv := new(big.Int).ModInverse(den, p)
	if denInv == nil {
		return new(big.Int), new(big.Int)
	}
	slope := new(big.Int).Mul(num, denInv)
	slope.Mod(slope, p)
	x3 := new(big.Int).Mul(slope, slope)
	x3.Sub(x3, new(big.Int).Mul(big.NewInt(2), x1))
	x3.Mod(x3, p)
	y3 := new(big.Int).Sub(x1, x3)
	y3.Mul(y3, slope)
	y3.Sub(y3, y1)
	y3.Mod(y3, p)
	return x3, y3
}

// signerScalarMult computes k * (px, py) on secp256k1 using double-and-add.
func signerScalarMult(px, py, k *big.Int) (*big.Int, *big.Int) {
	scalar := new(big.Int).Set(k)
	scalar.Mod(scalar, secp256k1NCopy)
	if scalar.Sign() == 0 {
		return new(big.Int), new(big.Int)
	}
	rx, ry := new(big.Int), new(big.Int)
	bx, by := new(big.Int).Set(px), new(big.Int).Set(py)
	for i := scalar.BitLen() - 1; i >= 0; i-- {
		rx, ry = signerPointDouble(rx, ry)
		if scalar.Bit(i) == 1 {
			rx, ry = signerPointAdd(rx, ry, bx, by)
		}
	}
	return rx, ry
}

// signerVerify verifies an ECDSA signature using the recovered public key.
// This avoids elliptic.CurveParams.ScalarMult, which panics for secp256k1.
func signerVerify(hash []byte, r, s, qx, qy *big.Int) bool {
	n := secp256k1NCopy
	if r.Sign() <= 0 || r.Cmp(n) >= 0 {
		return false
	}
	if s.Sign() <= 0 || s.Cmp(n) >= 0 {
		return false
	}
	e := new(big.Int).SetBytes(hash)
	sInv := new(big.Int).ModInverse(s, n)
	if sInv == nil {
		return false
	}
	u1 := new(big.Int).Mul(e, sInv)
	u1.Mod(u1, n)
	u2 := new(big.Int).Mul(r, sInv)
	u2.Mod(u2, n)

	x1, y1 := signerScalarMult(secp256k1Gx, secp256k1Gy, u1)
	x2, y2 := signerScalarMult(qx, qy, u2)
	rx, _ := signerPointAdd(x1, y1, x2, y2)

	rx.Mod(rx, n)
	return rx.Cmp(r) == 0
}

// Ensure the fork signers satisfy the Signer interface.
var (
	_ Signer = FrontierSigner{}
	_ Signer = HomesteadSigner{}
	_ Signer = EIP155Signer{}
)
