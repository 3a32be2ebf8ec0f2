package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20BalanceOfABIJSON = `[
  {"inputs": [{"internalType": "address", "name": "account", "type": "address"}], "name": "balanceOf", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

var (
	balanceOfABI    abi.ABI
	balanceOfOnce   sync.Once
	balanceOfABIErr error
)

func getBalanceOfABI() (abi.ABI, error) {
	balanceOfOnce.Do(func() {
		balanceOfABI, balanceOfABIErr = abi.JSON(strings.NewReader(erc20BalanceOfABIJSON))
	})
	return balanceOfABI, balanceOfABIErr
}

// ERC20BalanceOf returns the ERC-20 balance of owner on the token contract
// at the given block (nil for latest).
func (c *Client) ERC20BalanceOf(ctx context.Context, token, owner common.Address, blockNumber *big.Int) (*big.Int, error) {
	balanceABI, err := getBalanceOfABI()
	if err != nil {
		return nil, err
	}

	data, err := balanceABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}

	msg := ethereum.CallMsg{To: &token, Data: data}
	resp, err := c.CallContract(ctx, msg, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("call balanceOf: %w", err)
	}

	values, err := balanceABI.Unpack("balanceOf", resp)
	if err != nil {
		return nil, fmt.Errorf("unpack balanceOf: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("balanceOf return size %d", len(values))
	}
	bal, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf unexpected type %T", values[0])
	}
	return bal, nil
}
