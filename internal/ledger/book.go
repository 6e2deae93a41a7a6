package ledger

import (
	"bytes"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

const defaultDecimals = 18

// Book holds one Token per asset address.
type Book struct {
	mu     sync.RWMutex
	tokens map[common.Address]*Token
}

func NewBook() *Book {
	return &Book{tokens: make(map[common.Address]*Token)}
}

// Token returns the ledger for address, creating an 18-decimal one on first use.
func (b *Book) Token(address common.Address) *Token {
	b.mu.RLock()
	token, ok := b.tokens[address]
	b.mu.RUnlock()
	if ok {
		return token
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if token, ok := b.tokens[address]; ok {
		return token
	}
	token = NewToken(address, "", defaultDecimals)
	b.tokens[address] = token
	return token
}

// Register adds token unless the address is already known, and returns the
// ledger now stored for it.
func (b *Book) Register(token *Token) *Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.tokens[token.Address()]; ok {
		return existing
	}
	b.tokens[token.Address()] = token
	return token
}

func (b *Book) Lookup(address common.Address) (*Token, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	token, ok := b.tokens[address]
	return token, ok
}

// Tokens returns every ledger ordered by address.
func (b *Book) Tokens() []*Token {
	b.mu.RLock()
	out := make([]*Token, 0, len(b.tokens))
	for _, token := range b.tokens {
		out = append(out, token)
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].address.Bytes(), out[j].address.Bytes()) < 0
	})
	return out
}
