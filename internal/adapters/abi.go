package adapters

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Pool contract call selectors (spec.md §6), computed once at init from
// their canonical signatures rather than hand-concatenated — the checked
// ABI encoder spec.md §9 calls for in place of ad-hoc string building.
var (
	selShieldNative [4]byte
	selShieldToken  [4]byte
	selTransfer     [4]byte
	selUnshield     [4]byte
	selSwap         [4]byte

	poolABI abi.ABI
)

const poolABIJSON = `[
	{"type":"function","name":"shieldNative","stateMutability":"payable","inputs":[{"name":"commitment","type":"bytes32"}],"outputs":[]},
	{"type":"function","name":"shieldToken","stateMutability":"nonpayable","inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"},{"name":"commitment","type":"bytes32"}],"outputs":[]},
	{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"proof","type":"bytes"},{"name":"root","type":"bytes32"},{"name":"nullifierHash","type":"bytes32"},{"name":"outCommitment1","type":"bytes32"},{"name":"outCommitment2","type":"bytes32"},{"name":"encryptedMemo1","type":"bytes"},{"name":"encryptedMemo2","type":"bytes"},{"name":"fee","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"unshield","stateMutability":"nonpayable","inputs":[{"name":"proof","type":"bytes"},{"name":"root","type":"bytes32"},{"name":"nullifierHash","type":"bytes32"},{"name":"recipient","type":"address"},{"name":"token","type":"address"},{"name":"netAmount","type":"uint256"},{"name":"fee","type":"uint256"},{"name":"changeCommitment","type":"bytes32"}],"outputs":[]},
	{"type":"function","name":"swap","stateMutability":"nonpayable","inputs":[{"name":"proof","type":"bytes"},{"name":"root","type":"bytes32"},{"name":"nullifierHash","type":"bytes32"},{"name":"tokenIn","type":"address"},{"name":"tokenOut","type":"address"},{"name":"amountIn","type":"uint256"},{"name":"minOut","type":"uint256"},{"name":"outCommitment1","type":"bytes32"},{"name":"outCommitment2","type":"bytes32"}],"outputs":[]},
	{"type":"event","name":"Shield","inputs":[{"name":"commitment","type":"bytes32","indexed":true},{"name":"leafIndex","type":"uint256","indexed":true},{"name":"token","type":"address","indexed":true},{"name":"amount","type":"uint256"},{"name":"timestamp","type":"uint256"}],"anonymous":false},
	{"type":"event","name":"Transfer","inputs":[{"name":"nullifierHash","type":"bytes32","indexed":true},{"name":"outCommitment1","type":"bytes32"},{"name":"outCommitment2","type":"bytes32"},{"name":"encryptedMemo1","type":"bytes"},{"name":"encryptedMemo2","type":"bytes"},{"name":"leafIndex1","type":"uint256"},{"name":"leafIndex2","type":"uint256"},{"name":"fee","type":"uint256"},{"name":"timestamp","type":"uint256"}],"anonymous":false},
	{"type":"event","name":"Unshield","inputs":[{"name":"nullifierHash","type":"bytes32","indexed":true},{"name":"recipient","type":"address","indexed":true},{"name":"token","type":"address","indexed":true},{"name":"amount","type":"uint256"},{"name":"relayer","type":"address"},{"name":"fee","type":"uint256"},{"name":"timestamp","type":"uint256"}],"anonymous":false}
]`

func init() {
	parsed, err := abi.JSON(strings.NewReader(poolABIJSON))
	if err != nil {
		panic("adapters: pool ABI failed to parse: " + err.Error())
	}
	poolABI = parsed

	copy(selShieldNative[:], crypto.Keccak256([]byte("shieldNative(bytes32)"))[:4])
	copy(selShieldToken[:], crypto.Keccak256([]byte("shieldToken(address,uint256,bytes32)"))[:4])
	copy(selTransfer[:], crypto.Keccak256([]byte("transfer(bytes,bytes32,bytes32,bytes32,bytes32,bytes,bytes,uint256)"))[:4])
	copy(selUnshield[:], crypto.Keccak256([]byte("unshield(bytes,bytes32,bytes32,address,address,uint256,uint256,bytes32)"))[:4])
	copy(selSwap[:], crypto.Keccak256([]byte("swap(bytes,bytes32,bytes32,address,address,uint256,uint256,bytes32,bytes32)"))[:4])
}

// EncodeShieldNative packs a shieldNative(bytes32) call; the amount is
// carried as the transaction's value, not an argument (spec.md §6).
func EncodeShieldNative(commitment [32]byte) ([]byte, error) {
	return poolABI.Pack("shieldNative", commitment)
}

func EncodeShieldToken(token common.Address, amount *big.Int, commitment [32]byte) ([]byte, error) {
	return poolABI.Pack("shieldToken", token, amount, commitment)
}

func EncodeTransfer(proof []byte, root, nullifierHash, outCommitment1, outCommitment2 [32]byte, encryptedMemo1, encryptedMemo2 []byte, fee *big.Int) ([]byte, error) {
	return poolABI.Pack("transfer", proof, root, nullifierHash, outCommitment1, outCommitment2, encryptedMemo1, encryptedMemo2, fee)
}

func EncodeUnshield(proof []byte, root, nullifierHash [32]byte, recipient, token common.Address, netAmount, fee *big.Int, changeCommitment [32]byte) ([]byte, error) {
	return poolABI.Pack("unshield", proof, root, nullifierHash, recipient, token, netAmount, fee, changeCommitment)
}

func EncodeSwap(proof []byte, root, nullifierHash [32]byte, tokenIn, tokenOut common.Address, amountIn, minOut *big.Int, outCommitment1, outCommitment2 [32]byte) ([]byte, error) {
	return poolABI.Pack("swap", proof, root, nullifierHash, tokenIn, tokenOut, amountIn, minOut, outCommitment1, outCommitment2)
}

// DecodeEvent unpacks a log's non-indexed data fields into out (a pointer
// to a struct tagged the way go-ethereum's abi package expects) given the
// event name carried in eventName.
func DecodeEvent(eventName string, data []byte, out interface{}) error {
	return poolABI.UnpackIntoInterface(out, eventName, data)
}

// ShieldNativeSelector and friends expose the precomputed 4-byte selectors for
// callers (and tests) that need to recognize a call without fully
// decoding it — the literal values spec.md §6 names.
func ShieldNativeSelector() [4]byte { return selShieldNative }
func ShieldTokenSelector() [4]byte  { return selShieldToken }
func TransferSelector() [4]byte     { return selTransfer }
func UnshieldSelector() [4]byte     { return selUnshield }
func SwapSelector() [4]byte         { return selSwap }
