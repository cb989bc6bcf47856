package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/arosales/juntas-seguras/internal/models"
	"github.com/arosales/juntas-seguras/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "juntas-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func testPool(t *testing.T, store *SQLiteStore, memberCount int) *models.Pool {
	t.Helper()

	members := make([]models.PoolMember, memberCount)
	names := []string{"Ana", "Beto", "Carla", "Diego", "Elena", "Fede"}
	for i := 0; i < memberCount; i++ {
		role := models.RoleMember
		if i == 0 {
			role = models.RoleAdmin
		}
		members[i] = models.PoolMember{
			UserID:   names[i],
			Name:     names[i],
			Role:     role,
			Position: i + 1,
		}
	}

	pool, err := models.NewPool("Test Pool", 10000, members)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	if err := store.CreatePool(context.Background(), pool); err != nil {
		t.Fatalf("CreatePool failed: %v", err)
	}
	return pool
}

// completedContribution inserts a settled contribution for a member/round.
func completedContribution(t *testing.T, store *SQLiteStore, pool *models.Pool, userID string, round int) {
	t.Helper()
	ctx := context.Background()

	payment, err := models.NewPayment(userID, pool.ID, pool.ContributionAmount, models.PaymentContribution, round)
	if err != nil {
		t.Fatalf("NewPayment failed: %v", err)
	}
	entry := &models.PoolTransaction{
		UserID:     userID,
		MemberName: userID,
		Type:       models.TxContribution,
		Amount:     payment.Amount,
		Round:      round,
		Status:     models.TxPending,
		PaymentID:  payment.PaymentID,
	}
	if err := store.CreatePaymentWithLedger(ctx, payment, entry); err != nil {
		t.Fatalf("CreatePaymentWithLedger failed: %v", err)
	}
	if err := store.CompleteContribution(ctx, payment.PaymentID); err != nil {
		t.Fatalf("CompleteContribution failed: %v", err)
	}
}

func TestPoolRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pool := testPool(t, store, 3)

	got, err := store.GetPool(ctx, pool.ID)
	if err != nil {
		t.Fatalf("GetPool failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected pool, got nil")
	}
	if got.CurrentRound != 1 {
		t.Errorf("expected round 1, got %d", got.CurrentRound)
	}
	if len(got.Members) != 3 {
		t.Fatalf("expected 3 members, got %d", len(got.Members))
	}
	if got.Members[0].Status != models.MemberCurrent {
		t.Errorf("position-1 member should start current, got %s", got.Members[0].Status)
	}
	if got.Members[1].Status != models.MemberActive {
		t.Errorf("position-2 member should start active, got %s", got.Members[1].Status)
	}

	missing, err := store.GetPool(ctx, "nope")
	if err != nil {
		t.Fatalf("GetPool for missing id errored: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing pool")
	}
}

func TestCompleteContribution(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pool := testPool(t, store, 3)
	completedContribution(t, store, pool, "Beto", 1)

	got, err := store.GetPool(ctx, pool.ID)
	if err != nil {
		t.Fatalf("GetPool failed: %v", err)
	}
	if got.TotalAmount != 10000 {
		t.Errorf("expected balance 10000 after contribution, got %d", got.TotalAmount)
	}
	if len(got.Transactions) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(got.Transactions))
	}
	if got.Transactions[0].Status != models.TxCompleted {
		t.Errorf("expected completed ledger entry, got %s", got.Transactions[0].Status)
	}

	// Completing the same payment twice must hit the forward-only guard.
	payment, err := store.GetPaymentByIntent(ctx, "")
	if err != nil || payment != nil {
		t.Fatalf("empty intent lookup should be nil/nil, got %v/%v", payment, err)
	}
	err = store.CompleteContribution(ctx, got.Transactions[0].PaymentID)
	if !errors.Is(err, storage.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition on re-complete, got %v", err)
	}
}

func TestBeginPayoutGuard(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pool := testPool(t, store, 3)
	recipient := pool.Members[0]

	payment, err := models.NewPayment(recipient.UserID, pool.ID, 20000, models.PaymentPayout, 1)
	if err != nil {
		t.Fatalf("NewPayment failed: %v", err)
	}

	prev, err := store.BeginPayout(ctx, pool.ID, recipient.UserID, payment)
	if err != nil {
		t.Fatalf("BeginPayout failed: %v", err)
	}
	if prev != models.MemberCurrent {
		t.Errorf("expected prior status current, got %s", prev)
	}

	if err := store.CompletePayout(ctx, pool.ID, payment.PaymentID, "tr_1"); err != nil {
		t.Fatalf("CompletePayout failed: %v", err)
	}

	// A second payout attempt for the paid member loses the guard.
	second, err := models.NewPayment(recipient.UserID, pool.ID, 20000, models.PaymentPayout, 1)
	if err != nil {
		t.Fatalf("NewPayment failed: %v", err)
	}
	_, err = store.BeginPayout(ctx, pool.ID, recipient.UserID, second)
	if !errors.Is(err, storage.ErrPayoutAlreadyReceived) {
		t.Errorf("expected ErrPayoutAlreadyReceived, got %v", err)
	}
}

func TestBeginPayoutInFlightGuard(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pool := testPool(t, store, 3)
	recipient := pool.Members[0]

	payment, err := models.NewPayment(recipient.UserID, pool.ID, 20000, models.PaymentPayout, 1)
	if err != nil {
		t.Fatalf("NewPayment failed: %v", err)
	}
	if _, err := store.BeginPayout(ctx, pool.ID, recipient.UserID, payment); err != nil {
		t.Fatalf("BeginPayout failed: %v", err)
	}

	// The first reservation is still pending (its transfer has not
	// settled), so a second reservation for the round must lose.
	second, err := models.NewPayment(recipient.UserID, pool.ID, 20000, models.PaymentPayout, 1)
	if err != nil {
		t.Fatalf("NewPayment failed: %v", err)
	}
	_, err = store.BeginPayout(ctx, pool.ID, recipient.UserID, second)
	if !errors.Is(err, storage.ErrPayoutAlreadyReceived) {
		t.Errorf("expected ErrPayoutAlreadyReceived, got %v", err)
	}

	// Compensation fails the first payment, which frees the round for a
	// fresh attempt.
	if err := store.CompensatePayout(ctx, payment.PaymentID, pool.ID, recipient.UserID, models.MemberCurrent); err != nil {
		t.Fatalf("CompensatePayout failed: %v", err)
	}
	retry, err := models.NewPayment(recipient.UserID, pool.ID, 20000, models.PaymentPayout, 1)
	if err != nil {
		t.Fatalf("NewPayment failed: %v", err)
	}
	if _, err := store.BeginPayout(ctx, pool.ID, recipient.UserID, retry); err != nil {
		t.Errorf("BeginPayout after compensation failed: %v", err)
	}
}

func TestCompensatePayout(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pool := testPool(t, store, 3)
	recipient := pool.Members[0]

	payment, err := models.NewPayment(recipient.UserID, pool.ID, 20000, models.PaymentPayout, 1)
	if err != nil {
		t.Fatalf("NewPayment failed: %v", err)
	}
	prev, err := store.BeginPayout(ctx, pool.ID, recipient.UserID, payment)
	if err != nil {
		t.Fatalf("BeginPayout failed: %v", err)
	}

	if err := store.CompensatePayout(ctx, payment.PaymentID, pool.ID, recipient.UserID, prev); err != nil {
		t.Fatalf("CompensatePayout failed: %v", err)
	}

	got, err := store.GetPayment(ctx, payment.PaymentID)
	if err != nil {
		t.Fatalf("GetPayment failed: %v", err)
	}
	if got.Status != models.PaymentFailed {
		t.Errorf("expected failed payment after compensation, got %s", got.Status)
	}

	reloaded, err := store.GetPool(ctx, pool.ID)
	if err != nil {
		t.Fatalf("GetPool failed: %v", err)
	}
	m := reloaded.Member(recipient.UserID)
	if m.Status != prev {
		t.Errorf("expected recipient status restored to %s, got %s", prev, m.Status)
	}
	if m.PayoutReceived {
		t.Error("compensation must not mark the recipient paid")
	}
	// The pool keeps its balance; nothing moved.
	if reloaded.TotalAmount != 0 {
		t.Errorf("expected untouched balance, got %d", reloaded.TotalAmount)
	}
}

func TestCompletePayoutAdvancesRound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pool := testPool(t, store, 4)
	// Fund the pool: everyone but the recipient contributes for round 1.
	for _, m := range pool.Members[1:] {
		completedContribution(t, store, pool, m.UserID, 1)
	}

	recipient := pool.Members[0]
	payment, err := models.NewPayment(recipient.UserID, pool.ID, 30000, models.PaymentPayout, 1)
	if err != nil {
		t.Fatalf("NewPayment failed: %v", err)
	}
	if _, err := store.BeginPayout(ctx, pool.ID, recipient.UserID, payment); err != nil {
		t.Fatalf("BeginPayout failed: %v", err)
	}
	if err := store.CompletePayout(ctx, pool.ID, payment.PaymentID, "tr_42"); err != nil {
		t.Fatalf("CompletePayout failed: %v", err)
	}

	got, err := store.GetPool(ctx, pool.ID)
	if err != nil {
		t.Fatalf("GetPool failed: %v", err)
	}
	if got.CurrentRound != 2 {
		t.Errorf("expected round advanced to 2, got %d", got.CurrentRound)
	}
	if got.TotalAmount != 0 {
		t.Errorf("expected balance 30000-30000=0, got %d", got.TotalAmount)
	}
	if got.Status != models.PoolActive {
		t.Errorf("pool should remain active, got %s", got.Status)
	}

	paid := got.Member(recipient.UserID)
	if !paid.PayoutReceived || paid.Status != models.MemberCompleted {
		t.Errorf("recipient should be paid and completed, got received=%v status=%s", paid.PayoutReceived, paid.Status)
	}
	next := got.Recipient()
	if next == nil || next.Position != 2 || next.Status != models.MemberCurrent {
		t.Errorf("position-2 member should be the new current recipient, got %+v", next)
	}

	p, err := store.GetPayment(ctx, payment.PaymentID)
	if err != nil {
		t.Fatalf("GetPayment failed: %v", err)
	}
	if p.Status != models.PaymentCompleted || p.StripeTransferID != "tr_42" {
		t.Errorf("expected completed payment with transfer id, got %s/%s", p.Status, p.StripeTransferID)
	}
}

func TestCompletePayoutFinalRound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pool := testPool(t, store, 2)

	// Settle round 1 for the position-1 member.
	first := pool.Members[0]
	p1, _ := models.NewPayment(first.UserID, pool.ID, 10000, models.PaymentPayout, 1)
	if _, err := store.BeginPayout(ctx, pool.ID, first.UserID, p1); err != nil {
		t.Fatalf("BeginPayout round 1 failed: %v", err)
	}
	if err := store.CompletePayout(ctx, pool.ID, p1.PaymentID, "tr_1"); err != nil {
		t.Fatalf("CompletePayout round 1 failed: %v", err)
	}

	// Round 2 is final: completing it completes the pool, round unchanged.
	second := pool.Members[1]
	p2, _ := models.NewPayment(second.UserID, pool.ID, 10000, models.PaymentPayout, 2)
	if _, err := store.BeginPayout(ctx, pool.ID, second.UserID, p2); err != nil {
		t.Fatalf("BeginPayout round 2 failed: %v", err)
	}
	if err := store.CompletePayout(ctx, pool.ID, p2.PaymentID, "tr_2"); err != nil {
		t.Fatalf("CompletePayout round 2 failed: %v", err)
	}

	got, err := store.GetPool(ctx, pool.ID)
	if err != nil {
		t.Fatalf("GetPool failed: %v", err)
	}
	if got.Status != models.PoolCompleted {
		t.Errorf("expected completed pool, got %s", got.Status)
	}
	if got.CurrentRound != 2 {
		t.Errorf("final round should leave current_round unchanged, got %d", got.CurrentRound)
	}
}

func TestUserRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := models.NewUser("ana@example.com", "Ana", "hash")
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	if err := store.SetStripeCustomer(ctx, user.ID, "cus_123"); err != nil {
		t.Fatalf("SetStripeCustomer failed: %v", err)
	}
	if err := store.SetConnectAccount(ctx, user.ID, "acct_123"); err != nil {
		t.Fatalf("SetConnectAccount failed: %v", err)
	}
	if err := store.SetConnectStatus(ctx, user.ID, true, true); err != nil {
		t.Fatalf("SetConnectStatus failed: %v", err)
	}

	got, err := store.GetUserByStripeAccount(ctx, "acct_123")
	if err != nil {
		t.Fatalf("GetUserByStripeAccount failed: %v", err)
	}
	if got == nil || got.ID != user.ID {
		t.Fatalf("expected user %s by stripe account, got %+v", user.ID, got)
	}
	if got.StripeCustomerID != "cus_123" || !got.PayoutsEnabled || !got.DetailsSubmitted {
		t.Errorf("unexpected stripe fields: %+v", got)
	}
}

func TestIdempotencyKeys(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, _, ok, err := store.GetIdempotencyKey(ctx, "k1")
	if err != nil {
		t.Fatalf("GetIdempotencyKey failed: %v", err)
	}
	if ok {
		t.Error("expected miss for unknown key")
	}

	if err := store.PutIdempotencyKey(ctx, "k1", 200, []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("PutIdempotencyKey failed: %v", err)
	}
	// First write wins.
	if err := store.PutIdempotencyKey(ctx, "k1", 500, []byte(`{"ok":false}`)); err != nil {
		t.Fatalf("second PutIdempotencyKey failed: %v", err)
	}

	status, body, ok, err := store.GetIdempotencyKey(ctx, "k1")
	if err != nil {
		t.Fatalf("GetIdempotencyKey failed: %v", err)
	}
	if !ok || status != 200 || string(body) != `{"ok":true}` {
		t.Errorf("unexpected cached response: ok=%v status=%d body=%s", ok, status, body)
	}
}
