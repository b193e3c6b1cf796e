package ledger

import (
	"sync"
	"testing"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestCreateAccountAndBalance(t *testing.T) {
	l := openTestLedger(t)
	if err := l.CreateAccount("alice", 300, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	bal, unlim, err := l.Balance("alice")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if unlim {
		t.Fatalf("expected limited account")
	}
	if bal != 300 {
		t.Fatalf("expected balance 300 got %d", bal)
	}
	// the signup grant must be journaled
	txs, err := l.History("alice", 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(txs) != 1 || txs[0].Delta != 300 || txs[0].Reason != "signup_bonus" {
		t.Fatalf("expected one signup_bonus tx got %+v", txs)
	}
}

func TestCreateAccountDuplicate(t *testing.T) {
	l := openTestLedger(t)
	if err := l.CreateAccount("alice", 0, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := l.CreateAccount("alice", 0, false)
	if !IsAccountExists(err) {
		t.Fatalf("expected account-exists error got %v", err)
	}
}

func TestCreateAccountNegativeInitial(t *testing.T) {
	l := openTestLedger(t)
	if err := l.CreateAccount("alice", -1, false); !IsInvalidAmount(err) {
		t.Fatalf("expected invalid-amount error got %v", err)
	}
}

func TestBalanceUnknownUser(t *testing.T) {
	l := openTestLedger(t)
	if _, _, err := l.Balance("ghost"); !IsUserNotFound(err) {
		t.Fatalf("expected user-not-found got %v", err)
	}
}

func TestTryDeductSuccessAndInsufficient(t *testing.T) {
	l := openTestLedger(t)
	if err := l.CreateAccount("bob", 100, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	ok, err := l.TryDeduct("bob", 30, "generation", "task-1")
	if err != nil || !ok {
		t.Fatalf("expected deduct to succeed, ok=%v err=%v", ok, err)
	}
	bal, _, _ := l.Balance("bob")
	if bal != 70 {
		t.Fatalf("expected 70 got %d", bal)
	}
	// insufficient: no error, no side effect
	ok, err = l.TryDeduct("bob", 1000, "generation", "task-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected denial on insufficient balance")
	}
	bal, _, _ = l.Balance("bob")
	if bal != 70 {
		t.Fatalf("denied deduct mutated balance: %d", bal)
	}
	txs, _ := l.History("bob", 0)
	if len(txs) != 2 {
		t.Fatalf("denied deduct must not journal, got %d txs", len(txs))
	}
}

func TestTryDeductExactBalance(t *testing.T) {
	l := openTestLedger(t)
	if err := l.CreateAccount("bob", 50, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	ok, err := l.TryDeduct("bob", 50, "generation", "")
	if err != nil || !ok {
		t.Fatalf("deduct of exact balance must succeed, ok=%v err=%v", ok, err)
	}
	bal, _, _ := l.Balance("bob")
	if bal != 0 {
		t.Fatalf("expected 0 got %d", bal)
	}
}

func TestTryDeductInvalidAmount(t *testing.T) {
	l := openTestLedger(t)
	if err := l.CreateAccount("bob", 10, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := l.TryDeduct("bob", 0, "x", ""); !IsInvalidAmount(err) {
		t.Fatalf("expected invalid-amount got %v", err)
	}
	if _, err := l.TryDeduct("bob", -5, "x", ""); !IsInvalidAmount(err) {
		t.Fatalf("expected invalid-amount got %v", err)
	}
}

func TestTryDeductUnknownUser(t *testing.T) {
	l := openTestLedger(t)
	if _, err := l.TryDeduct("ghost", 10, "x", ""); !IsUserNotFound(err) {
		t.Fatalf("expected user-not-found got %v", err)
	}
}

// With balance B, N concurrent deducts of B must yield exactly one success.
func TestTryDeductConcurrentExactlyOneWinner(t *testing.T) {
	l := openTestLedger(t)
	if err := l.CreateAccount("carol", 100, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	const n = 32
	var wg sync.WaitGroup
	results := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.TryDeduct("carol", 100, "generation", "")
			if err != nil {
				t.Errorf("deduct: %v", err)
				return
			}
			results <- ok
		}()
	}
	wg.Wait()
	close(results)
	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly 1 winner got %d", wins)
	}
	bal, _, _ := l.Balance("carol")
	if bal != 0 {
		t.Fatalf("expected 0 got %d", bal)
	}
}

func TestUnlimitedAccount(t *testing.T) {
	l := openTestLedger(t)
	if err := l.CreateAccount("vip", 0, true); err != nil {
		t.Fatalf("create: %v", err)
	}
	bal, unlim, err := l.Balance("vip")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !unlim || bal != UnlimitedBalance {
		t.Fatalf("expected unlimited sentinel got bal=%d unlim=%v", bal, unlim)
	}
	for i := 0; i < 3; i++ {
		ok, err := l.TryDeduct("vip", 1_000_000, "generation", "")
		if err != nil || !ok {
			t.Fatalf("unlimited deduct must succeed, ok=%v err=%v", ok, err)
		}
	}
	bal, unlim, _ = l.Balance("vip")
	if !unlim || bal != UnlimitedBalance {
		t.Fatalf("unlimited balance mutated: %d", bal)
	}
	// attempts are still journaled with delta 0
	txs, _ := l.History("vip", 0)
	if len(txs) != 3 {
		t.Fatalf("expected 3 txs got %d", len(txs))
	}
	for _, tx := range txs {
		if tx.Delta != 0 {
			t.Fatalf("unlimited tx delta must be 0 got %d", tx.Delta)
		}
	}
}

func TestCreditAndHistoryOrder(t *testing.T) {
	l := openTestLedger(t)
	if err := l.CreateAccount("dave", 0, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := l.Credit("dave", 100, "purchase", "order-1"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if ok, _ := l.TryDeduct("dave", 40, "generation", "task-1"); !ok {
		t.Fatalf("deduct failed")
	}
	if err := l.Credit("dave", 5, "bonus", ""); err != nil {
		t.Fatalf("credit: %v", err)
	}
	txs, err := l.History("dave", 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("expected 3 got %d", len(txs))
	}
	// newest first
	if txs[0].Delta != 5 || txs[1].Delta != -40 || txs[2].Delta != 100 {
		t.Fatalf("unexpected order: %+v", txs)
	}
	if txs[1].BalanceAfter != 60 {
		t.Fatalf("expected balance_after 60 got %d", txs[1].BalanceAfter)
	}
	// limit truncates from the newest end
	txs, _ = l.History("dave", 2)
	if len(txs) != 2 || txs[0].Delta != 5 {
		t.Fatalf("limit mis-applied: %+v", txs)
	}
}

func TestCreditInvalidAmountAndUnknownUser(t *testing.T) {
	l := openTestLedger(t)
	if err := l.CreateAccount("dave", 0, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := l.Credit("dave", 0, "x", ""); !IsInvalidAmount(err) {
		t.Fatalf("expected invalid-amount got %v", err)
	}
	if err := l.Credit("ghost", 10, "x", ""); !IsUserNotFound(err) {
		t.Fatalf("expected user-not-found got %v", err)
	}
}

// Reopening a ledger must rebuild balances by summing journal deltas.
func TestReopenReplaysJournal(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := l.CreateAccount("erin", 200, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	if ok, _ := l.TryDeduct("erin", 75, "generation", "task-1"); !ok {
		t.Fatalf("deduct failed")
	}
	if err := l.Credit("erin", 25, "refund", "task-1"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	l2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l2.Close()
	bal, _, err := l2.Balance("erin")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal != 150 {
		t.Fatalf("expected replayed balance 150 got %d", bal)
	}
	txs, _ := l2.History("erin", 0)
	if len(txs) != 3 {
		t.Fatalf("expected 3 replayed txs got %d", len(txs))
	}
}

func TestExists(t *testing.T) {
	l := openTestLedger(t)
	if l.Exists("nobody") {
		t.Fatalf("expected missing account")
	}
	if err := l.CreateAccount("frank", 0, false); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !l.Exists("frank") {
		t.Fatalf("expected account")
	}
}
