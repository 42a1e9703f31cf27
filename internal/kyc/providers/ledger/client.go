// Package ledger registers verification hashes with the KYC registry
// contract over Ethereum JSON-RPC.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hyperledger/firefly-signer/pkg/abi"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/hyperledger/firefly-signer/pkg/rpcbackend"

	"kycgate/internal/kyc/hashing"
	"kycgate/internal/kyc/ports"
	"kycgate/internal/kyc/providers"
	id "kycgate/pkg/domain"
	"kycgate/pkg/platform/circuit"
)

const providerID = "ledger"

var registerVerificationABI = &abi.Entry{
	Type: abi.Function,
	Name: "registerVerification",
	Inputs: abi.ParameterArray{
		{Name: "userIdHash", Type: "bytes32"},
		{Name: "verificationHash", Type: "bytes32"},
		{Name: "merkleRoot", Type: "bytes32"},
		{Name: "documentNumberHash", Type: "bytes32"},
		{Name: "confidenceBps", Type: "uint16"},
	},
}

var isVerifiedABI = &abi.Entry{
	Type: abi.Function,
	Name: "isVerified",
	Inputs: abi.ParameterArray{
		{Name: "userIdHash", Type: "bytes32"},
	},
	Outputs: abi.ParameterArray{
		{Name: "verified", Type: "bool"},
	},
}

// Client submits node-signed transactions (eth_sendTransaction) from a
// configured account and waits for their receipts.
type Client struct {
	rpc            rpcbackend.RPC
	contract       string
	from           string
	receiptPoll    time.Duration
	receiptTimeout time.Duration
	breaker        *circuit.Breaker
}

type Option func(*Client)

func WithReceiptPolling(interval, timeout time.Duration) Option {
	return func(c *Client) {
		c.receiptPoll = interval
		c.receiptTimeout = timeout
	}
}

// WithBreaker fails registrations fast while the node is unreachable.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

// New dials nothing; the first call opens the HTTP connection.
func New(rpcURL, contract, from string, timeout time.Duration, opts ...Option) (*Client, error) {
	if _, err := ethtypes.NewAddress(contract); err != nil {
		return nil, fmt.Errorf("invalid contract address %q: %w", contract, err)
	}
	if _, err := ethtypes.NewAddress(from); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", from, err)
	}
	c := &Client{
		rpc:            rpcbackend.NewRPCClient(resty.New().SetBaseURL(rpcURL).SetTimeout(timeout)),
		contract:       contract,
		from:           from,
		receiptPoll:    time.Second,
		receiptTimeout: time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type txRequest struct {
	From string                    `json:"from,omitempty"`
	To   string                    `json:"to"`
	Data ethtypes.HexBytes0xPrefix `json:"data"`
}

type txReceipt struct {
	TransactionHash ethtypes.HexBytes0xPrefix `json:"transactionHash"`
	BlockNumber     *ethtypes.HexInteger      `json:"blockNumber"`
	Status          *ethtypes.HexInteger      `json:"status"`
}

// Register commits the payload's verification hash and returns the mined receipt.
func (c *Client) Register(ctx context.Context, userID id.UserID, payload ports.LedgerPayload) (*ports.LedgerReceipt, error) {
	return providers.Guard(ctx, c.breaker, providerID, func(ctx context.Context) (*ports.LedgerReceipt, error) {
		return c.register(ctx, userID, payload)
	})
}

func (c *Client) register(ctx context.Context, userID id.UserID, payload ports.LedgerPayload) (*ports.LedgerReceipt, error) {
	verificationHash, err := hashing.VerificationHash(payload)
	if err != nil {
		return nil, providers.NewProviderError(providers.ErrorInternal, providerID, "hash payload", err)
	}

	userIDHash := payload.UserIDHash
	if userIDHash == "" {
		userIDHash = hashing.HashUserID(userID.String())
	}

	args, err := json.Marshal(map[string]any{
		"userIdHash":         "0x" + strings.TrimPrefix(userIDHash, "0x"),
		"verificationHash":   verificationHash,
		"merkleRoot":         "0x" + payload.MerkleRoot,
		"documentNumberHash": "0x" + payload.DocumentNumberHash,
		"confidenceBps":      int(payload.AIConfidence * 10000),
	})
	if err != nil {
		return nil, providers.NewProviderError(providers.ErrorInternal, providerID, "encode arguments", err)
	}
	data, err := registerVerificationABI.EncodeCallDataJSONCtx(ctx, args)
	if err != nil {
		return nil, providers.NewProviderError(providers.ErrorBadData, providerID, "encode call data", err)
	}

	var txHash ethtypes.HexBytes0xPrefix
	if rpcErr := c.rpc.CallRPC(ctx, &txHash, "eth_sendTransaction", &txRequest{From: c.from, To: c.contract, Data: data}); rpcErr != nil {
		return nil, classify(ctx, "eth_sendTransaction", rpcErr.Error())
	}

	receipt, err := c.waitForReceipt(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if receipt.Status != nil && receipt.Status.BigInt().Sign() == 0 {
		return nil, providers.NewProviderError(providers.ErrorRejected, providerID, "transaction reverted: "+txHash.String(), nil)
	}

	return &ports.LedgerReceipt{
		TxHash:           txHash.String(),
		BlockNumber:      receipt.BlockNumber.BigInt().Uint64(),
		VerificationHash: verificationHash,
	}, nil
}

func (c *Client) waitForReceipt(ctx context.Context, txHash ethtypes.HexBytes0xPrefix) (*txReceipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.receiptTimeout)
	defer cancel()

	ticker := time.NewTicker(c.receiptPoll)
	defer ticker.Stop()
	for {
		var receipt *txReceipt
		if rpcErr := c.rpc.CallRPC(ctx, &receipt, "eth_getTransactionReceipt", txHash); rpcErr != nil {
			return nil, classify(ctx, "eth_getTransactionReceipt", rpcErr.Error())
		}
		if receipt != nil && receipt.BlockNumber != nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, providers.NewProviderError(providers.ErrorTimeout, providerID, "receipt not available for "+txHash.String(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// IsVerified asks the contract whether the user's hash has a registration.
func (c *Client) IsVerified(ctx context.Context, userID id.UserID) (bool, error) {
	args, err := json.Marshal(map[string]any{"userIdHash": "0x" + hashing.HashUserID(userID.String())})
	if err != nil {
		return false, err
	}
	data, err := isVerifiedABI.EncodeCallDataJSONCtx(ctx, args)
	if err != nil {
		return false, providers.NewProviderError(providers.ErrorBadData, providerID, "encode call data", err)
	}

	var out ethtypes.HexBytes0xPrefix
	if rpcErr := c.rpc.CallRPC(ctx, &out, "eth_call", &txRequest{To: c.contract, Data: data}, "latest"); rpcErr != nil {
		return false, classify(ctx, "eth_call", rpcErr.Error())
	}
	// a single ABI-encoded bool occupies one 32-byte word
	if len(out) < 32 {
		return false, providers.NewProviderError(providers.ErrorBadData, providerID, fmt.Sprintf("isVerified returned %d bytes", len(out)), nil)
	}
	return out[31] == 1, nil
}

// Health checks the node answers eth_blockNumber.
func (c *Client) Health(ctx context.Context) error {
	var block ethtypes.HexInteger
	if rpcErr := c.rpc.CallRPC(ctx, &block, "eth_blockNumber"); rpcErr != nil {
		return classify(ctx, "eth_blockNumber", rpcErr.Error())
	}
	return nil
}

func classify(ctx context.Context, method string, err error) *providers.ProviderError {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return providers.FromTransportError(providerID, ctxErr)
	}
	msg := method + " failed"
	if strings.Contains(strings.ToLower(err.Error()), "revert") {
		return providers.NewProviderError(providers.ErrorRejected, providerID, msg, err)
	}
	return providers.NewProviderError(providers.ErrorProviderOutage, providerID, msg, err)
}
