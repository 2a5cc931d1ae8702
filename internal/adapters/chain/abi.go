package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	methodExplain = "explain_clause"
	methodGet     = "get_explanation"
)

const contractABI = `[
  {
    "type": "function",
    "name": "explain_clause",
    "stateMutability": "nonpayable",
    "inputs": [{"name": "clause", "type": "string"}],
    "outputs": []
  },
  {
    "type": "function",
    "name": "get_explanation",
    "stateMutability": "view",
    "inputs": [{"name": "key", "type": "string"}],
    "outputs": [{"name": "", "type": "string"}]
  }
]`

// ABI returns the parsed contract interface
func ABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(contractABI))
	if err != nil {
		panic("chain: bad embedded ABI: " + err.Error())
	}
	return parsed
}
