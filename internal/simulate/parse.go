package simulate

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ParseAddresses converts string addresses into common.Address, skipping blanks.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("invalid address: %s", input)
		}
		addresses = append(addresses, common.HexToAddress(input))
	}
	return addresses, nil
}

func parseAddress(field, input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return common.Address{}, fmt.Errorf("%w: %s is required", ErrInvalidOperation, field)
	}
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("%w: invalid %s address %q", ErrInvalidOperation, field, input)
	}
	return common.HexToAddress(input), nil
}

// parseAddressOr returns fallback when input is blank.
func parseAddressOr(field, input string, fallback common.Address) (common.Address, error) {
	if strings.TrimSpace(input) == "" {
		return fallback, nil
	}
	return parseAddress(field, input)
}

// ParseAmount parses a base-10 amount. Blank input is zero.
func ParseAmount(input string) (*uint256.Int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return new(uint256.Int), nil
	}
	value, err := uint256.FromDecimal(input)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", input, err)
	}
	return value, nil
}

func parseAmount(field, input string) (*uint256.Int, error) {
	value, err := ParseAmount(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidOperation, field, err)
	}
	return value, nil
}
