// Package ledger implements the per-user credit balance and its
// append-only transaction history. The journal is the source of truth;
// balances are a projection rebuilt from it at open.
package ledger

import (
	"math"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vividd/internal/store"
	"vividd/pkg/types"
)

// UnlimitedBalance is the sentinel reported for top-tier accounts.
// Callers must branch on the unlimited flag, not compare magnitudes.
const UnlimitedBalance = int64(math.MaxInt64)

const (
	accountsFile = "accounts.json"
	journalFile  = "transactions.log"
)

type account struct {
	UserID    string    `json:"user_id"`
	Unlimited bool      `json:"unlimited"`
	CreatedAt time.Time `json:"created_at"`

	// balance and history are projections of the journal, not persisted
	// in the accounts document.
	balance int64
	history []types.Transaction
}

// Ledger gates and accounts for every paid operation.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[string]*account
	locks    map[string]*sync.Mutex

	journal      *store.Journal
	accountsPath string
	log          zerolog.Logger
	now          func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger installs a structured logger.
func WithLogger(l zerolog.Logger) Option { return func(lg *Ledger) { lg.log = l } }

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option { return func(lg *Ledger) { lg.now = now } }

// Open loads the ledger stored under dir, rebuilding balances and history
// by replaying the transaction journal.
func Open(dir string, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		accounts:     make(map[string]*account),
		locks:        make(map[string]*sync.Mutex),
		accountsPath: filepath.Join(dir, accountsFile),
		log:          zerolog.Nop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	var persisted map[string]*account
	if _, err := store.LoadJSON(l.accountsPath, &persisted); err != nil {
		return nil, err
	}
	for id, acc := range persisted {
		acc.UserID = id
		l.accounts[id] = acc
	}

	journalPath := filepath.Join(dir, journalFile)
	err := store.ReplayJournal(journalPath, func(tx types.Transaction) error {
		acc, ok := l.accounts[tx.UserID]
		if !ok {
			// Journal records for accounts the snapshot no longer knows
			// about are kept out of the projection but not an error.
			return nil
		}
		acc.balance += tx.Delta
		acc.history = append(acc.history, tx)
		return nil
	})
	if err != nil {
		return nil, err
	}

	j, err := store.OpenJournal(journalPath)
	if err != nil {
		return nil, err
	}
	l.journal = j
	return l, nil
}

// Close releases the journal file.
func (l *Ledger) Close() error { return l.journal.Close() }

// userLock returns the mutex serializing balance mutations for userID,
// creating it on first use. Locks are never removed; the arena is bounded
// by the account count.
func (l *Ledger) userLock(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	mu, ok := l.locks[userID]
	if !ok {
		mu = &sync.Mutex{}
		l.locks[userID] = mu
	}
	return mu
}

// CreateAccount registers userID with an initial grant. The grant is
// recorded as a transaction so the journal stays the complete history.
func (l *Ledger) CreateAccount(userID string, initial int64, unlimited bool) error {
	if initial < 0 {
		return ErrInvalidAmount("initial grant must be non-negative")
	}
	l.mu.Lock()
	if _, exists := l.accounts[userID]; exists {
		l.mu.Unlock()
		return accountExistsError{userID: userID}
	}
	acc := &account{UserID: userID, Unlimited: unlimited, CreatedAt: l.now()}
	l.accounts[userID] = acc
	l.mu.Unlock()

	if err := l.persistAccounts(); err != nil {
		return err
	}
	l.log.Info().Str("user", userID).Bool("unlimited", unlimited).Int64("initial", initial).Msg("account created")
	if initial > 0 {
		return l.Credit(userID, initial, "signup_bonus", "")
	}
	return nil
}

// Balance returns the current balance and whether the account is
// unlimited-tier. Unlimited accounts report the sentinel value.
func (l *Ledger) Balance(userID string) (int64, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[userID]
	if !ok {
		return 0, false, userNotFoundError{userID: userID}
	}
	if acc.Unlimited {
		return UnlimitedBalance, true, nil
	}
	return acc.balance, false, nil
}

// TryDeduct atomically checks balance >= amount and, if so, decrements it
// and appends a transaction. Returns false with no side effect when the
// balance is insufficient. Unlimited accounts always succeed without
// mutating balance; the attempt is still journaled with delta 0.
func (l *Ledger) TryDeduct(userID string, amount int64, reason, referenceID string) (bool, error) {
	if amount <= 0 {
		return false, ErrInvalidAmount("deduct amount must be positive")
	}
	l.mu.RLock()
	acc, ok := l.accounts[userID]
	l.mu.RUnlock()
	if !ok {
		return false, userNotFoundError{userID: userID}
	}

	mu := l.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	if acc.Unlimited {
		if err := l.append(acc, 0, reason, referenceID); err != nil {
			return false, err
		}
		return true, nil
	}
	if acc.balance < amount {
		l.log.Debug().Str("user", userID).Int64("amount", amount).Int64("balance", acc.balance).Msg("deduct denied")
		return false, nil
	}
	if err := l.append(acc, -amount, reason, referenceID); err != nil {
		return false, err
	}
	l.log.Info().Str("user", userID).Int64("amount", amount).Str("reason", reason).Msg("credits deducted")
	return true, nil
}

// Credit adds funds (purchases, refunds, bonuses) and records a
// transaction. It always succeeds for existing accounts.
func (l *Ledger) Credit(userID string, amount int64, reason, referenceID string) error {
	if amount <= 0 {
		return ErrInvalidAmount("credit amount must be positive")
	}
	l.mu.RLock()
	acc, ok := l.accounts[userID]
	l.mu.RUnlock()
	if !ok {
		return userNotFoundError{userID: userID}
	}

	mu := l.userLock(userID)
	mu.Lock()
	defer mu.Unlock()
	if err := l.append(acc, amount, reason, referenceID); err != nil {
		return err
	}
	l.log.Info().Str("user", userID).Int64("amount", amount).Str("reason", reason).Msg("credits added")
	return nil
}

// append journals one transaction and applies it to the projection.
// Callers hold the user lock. The journal write happens first so a crash
// never leaves an applied balance without its record.
func (l *Ledger) append(acc *account, delta int64, reason, referenceID string) error {
	tx := types.Transaction{
		ID:           uuid.NewString(),
		UserID:       acc.UserID,
		Delta:        delta,
		BalanceAfter: acc.balance + delta,
		Reason:       reason,
		ReferenceID:  referenceID,
		Timestamp:    l.now(),
	}
	if err := l.journal.Append(tx); err != nil {
		return err
	}
	l.mu.Lock()
	acc.balance += delta
	acc.history = append(acc.history, tx)
	l.mu.Unlock()
	return nil
}

// History returns up to limit transactions for userID, newest first.
func (l *Ledger) History(userID string, limit int) ([]types.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[userID]
	if !ok {
		return nil, userNotFoundError{userID: userID}
	}
	n := len(acc.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]types.Transaction, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, acc.history[i])
	}
	return out, nil
}

// Exists reports whether userID has an account.
func (l *Ledger) Exists(userID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.accounts[userID]
	return ok
}

func (l *Ledger) persistAccounts() error {
	l.mu.RLock()
	snap := make(map[string]*account, len(l.accounts))
	for id, acc := range l.accounts {
		snap[id] = &account{UserID: acc.UserID, Unlimited: acc.Unlimited, CreatedAt: acc.CreatedAt}
	}
	l.mu.RUnlock()
	return store.SaveJSON(l.accountsPath, snap)
}
