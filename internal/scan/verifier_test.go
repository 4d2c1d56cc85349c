package scan

import (
	"context"
	"errors"
	"io"
	"log"
	"math/big"
	"testing"

	"deposit-reconciler/internal/domain"
	"deposit-reconciler/internal/ethrpc"
	"deposit-reconciler/internal/idhash"
)

// stubNode is a canned-response ethrpc.NodeClient for tests.
type stubNode struct {
	txs    map[string]*ethrpc.Transaction
	blocks map[int64]*ethrpc.Block
	head   int64

	txErr    error
	blockErr error
	headErr  error
}

func (n *stubNode) GetTransaction(_ context.Context, hash string) (*ethrpc.Transaction, error) {
	if n.txErr != nil {
		return nil, n.txErr
	}
	return n.txs[hash], nil
}

func (n *stubNode) GetBlock(_ context.Context, number int64) (*ethrpc.Block, error) {
	if n.blockErr != nil {
		return nil, n.blockErr
	}
	return n.blocks[number], nil
}

func (n *stubNode) LatestBlockNumber(_ context.Context) (int64, error) {
	if n.headErr != nil {
		return 0, n.headErr
	}
	return n.head, nil
}

var _ ethrpc.NodeClient = (*stubNode)(nil)

func strPtr(s string) *string { return &s }
func i64Ptr(n int64) *int64   { return &n }

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

const testSweepAccount = "0xAaBbCcDdEeFf00112233445566778899aAbBcCdD"

func testOrder() *domain.Order {
	return &domain.Order{
		ID:             "ord-1",
		DepositAddress: "0x1111111111111111111111111111111111111111",
		Method:         "ETH",
		CreatedAt:      1_700_000_000,
		CreationBlock:  100,
	}
}

// minedSweepTx is a valid legacy sweep transaction mined in block 105.
func minedSweepTx(hash string) *ethrpc.Transaction {
	return &ethrpc.Transaction{
		Hash:        hash,
		From:        "0x1111111111111111111111111111111111111111",
		To:          strPtr(testSweepAccount),
		Value:       big.NewInt(5_000_000),
		Gas:         21000,
		GasPrice:    big.NewInt(1_000),
		BlockHash:   strPtr("0xblock105"),
		BlockNumber: i64Ptr(105),
	}
}

func testBlocks() map[int64]*ethrpc.Block {
	return map[int64]*ethrpc.Block{
		105: {Number: 105, Hash: "0xblock105", Timestamp: 1_700_000_500},
		90:  {Number: 90, Hash: "0xblock90", Timestamp: 1_699_999_000},
	}
}

func TestVerifyQualifyingSweep(t *testing.T) {
	node := &stubNode{
		txs:    map[string]*ethrpc.Transaction{"0xAbC": minedSweepTx("0xAbC")},
		blocks: testBlocks(),
	}
	v := NewVerifier(VerifierOptions{Node: node, SweepAccount: testSweepAccount, Logger: testLogger()})
	order := testOrder()

	candidate, err := v.Verify(context.Background(), order, domain.TransactionSummary{Hash: "0xAbC"})
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	// total = value + gas * gasPrice = 5_000_000 + 21000*1000
	wantTotal := big.NewInt(5_000_000 + 21_000_000)
	if candidate.Total.Cmp(wantTotal) != 0 {
		t.Errorf("Expected total %s, got %s", wantTotal, candidate.Total)
	}

	wantKey := idhash.ComputeDepositID("ETH", "0xAbC")
	if candidate.DedupKey != wantKey {
		t.Errorf("Expected dedup key %s, got %s", wantKey, candidate.DedupKey)
	}

	if candidate.Tx.BlockNumber != 105 {
		t.Errorf("Expected block number 105, got %d", candidate.Tx.BlockNumber)
	}
	if candidate.Tx.BlockTime != 1_700_000_500 {
		t.Errorf("Expected block time 1700000500, got %d", candidate.Tx.BlockTime)
	}
	if candidate.Order != order {
		t.Error("Expected candidate to reference the verified order")
	}
}

func TestVerifyAddressCompareCaseInsensitive(t *testing.T) {
	tx := minedSweepTx("0xcase")
	tx.From = "0xdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"
	tx.To = strPtr("0xaabbccddeeff00112233445566778899aabbccdd")
	node := &stubNode{
		txs:    map[string]*ethrpc.Transaction{"0xcase": tx},
		blocks: testBlocks(),
	}
	v := NewVerifier(VerifierOptions{Node: node, SweepAccount: testSweepAccount, Logger: testLogger()})

	order := testOrder()
	order.DepositAddress = "0xDeadBeefDeadBeefDeadBeefDeadBeefDeadBeef"

	if _, err := v.Verify(context.Background(), order, domain.TransactionSummary{Hash: "0xcase"}); err != nil {
		t.Fatalf("Expected mixed-case sender and recipient to match, got %v", err)
	}
}

func TestVerifyRejections(t *testing.T) {
	pending := minedSweepTx("0xpending")
	pending.BlockHash = nil
	pending.BlockNumber = nil

	stale := minedSweepTx("0xstale")
	stale.BlockNumber = i64Ptr(90)
	stale.BlockHash = strPtr("0xblock90")

	creation := minedSweepTx("0xcreate")
	creation.To = nil

	emptyTo := minedSweepTx("0xemptyto")
	emptyTo.To = strPtr("")

	inbound := minedSweepTx("0xinbound")
	inbound.From = "0x3333333333333333333333333333333333333333"
	inbound.To = strPtr("0x1111111111111111111111111111111111111111")

	notSweep := minedSweepTx("0xother")
	notSweep.To = strPtr("0x9999999999999999999999999999999999999999")

	zero := minedSweepTx("0xzero")
	zero.Value = big.NewInt(0)

	node := &stubNode{
		txs: map[string]*ethrpc.Transaction{
			"0xpending": pending,
			"0xstale":   stale,
			"0xcreate":  creation,
			"0xemptyto": emptyTo,
			"0xinbound": inbound,
			"0xother":   notSweep,
			"0xzero":    zero,
		},
		blocks: testBlocks(),
	}
	v := NewVerifier(VerifierOptions{Node: node, SweepAccount: testSweepAccount, Logger: testLogger()})

	tests := []struct {
		name string
		hash string
		want RejectReason
	}{
		{"unknown transaction", "0xmissing", RejectNotFound},
		{"pending transaction", "0xpending", RejectPending},
		{"mined before order creation", "0xstale", RejectStale},
		{"contract creation", "0xcreate", RejectContractCreation},
		{"empty recipient", "0xemptyto", RejectContractCreation},
		{"inbound transfer to the deposit address", "0xinbound", RejectSenderMismatch},
		{"recipient is not the sweep account", "0xother", RejectNotASweep},
		{"zero value", "0xzero", RejectZeroValue},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), testOrder(), domain.TransactionSummary{Hash: tc.hash})
			var rejection *Rejection
			if !errors.As(err, &rejection) {
				t.Fatalf("Expected rejection, got %v", err)
			}
			if rejection.Reason != tc.want {
				t.Errorf("Expected reason %s, got %s", tc.want, rejection.Reason)
			}
			if rejection.TxHash != tc.hash {
				t.Errorf("Expected tx hash %s, got %s", tc.hash, rejection.TxHash)
			}
		})
	}
}

func TestVerifyUnsupportedFeeModel(t *testing.T) {
	tx := minedSweepTx("0xfee")
	tx.GasPrice = nil
	node := &stubNode{
		txs:    map[string]*ethrpc.Transaction{"0xfee": tx},
		blocks: testBlocks(),
	}
	v := NewVerifier(VerifierOptions{Node: node, SweepAccount: testSweepAccount, Logger: testLogger()})

	_, err := v.Verify(context.Background(), testOrder(), domain.TransactionSummary{Hash: "0xfee"})
	if !errors.Is(err, ErrUnsupportedFeeModel) {
		t.Fatalf("Expected ErrUnsupportedFeeModel, got %v", err)
	}

	var rejection *Rejection
	if errors.As(err, &rejection) {
		t.Error("Unsupported fee model must be a hard error, not a rejection")
	}
}

func TestVerifyNodeErrors(t *testing.T) {
	t.Run("transaction fetch error", func(t *testing.T) {
		node := &stubNode{txErr: errors.New("node down")}
		v := NewVerifier(VerifierOptions{Node: node, SweepAccount: testSweepAccount, Logger: testLogger()})

		_, err := v.Verify(context.Background(), testOrder(), domain.TransactionSummary{Hash: "0xAbC"})
		if err == nil {
			t.Fatal("Expected error")
		}
		var rejection *Rejection
		if errors.As(err, &rejection) {
			t.Error("Node failure must be a hard error, not a rejection")
		}
	})

	t.Run("block fetch error", func(t *testing.T) {
		node := &stubNode{
			txs:      map[string]*ethrpc.Transaction{"0xAbC": minedSweepTx("0xAbC")},
			blockErr: errors.New("node down"),
		}
		v := NewVerifier(VerifierOptions{Node: node, SweepAccount: testSweepAccount, Logger: testLogger()})

		if _, err := v.Verify(context.Background(), testOrder(), domain.TransactionSummary{Hash: "0xAbC"}); err == nil {
			t.Fatal("Expected error")
		}
	})

	t.Run("missing block for mined transaction", func(t *testing.T) {
		node := &stubNode{
			txs:    map[string]*ethrpc.Transaction{"0xAbC": minedSweepTx("0xAbC")},
			blocks: map[int64]*ethrpc.Block{},
		}
		v := NewVerifier(VerifierOptions{Node: node, SweepAccount: testSweepAccount, Logger: testLogger()})

		_, err := v.Verify(context.Background(), testOrder(), domain.TransactionSummary{Hash: "0xAbC"})
		if err == nil {
			t.Fatal("Expected error for mined transaction with a missing block")
		}
		var rejection *Rejection
		if errors.As(err, &rejection) {
			t.Error("Missing block must be a hard error, not a rejection")
		}
	})
}
