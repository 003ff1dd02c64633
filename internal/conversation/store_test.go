package conversation

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Vovarama1992/voice_assistant/internal/ports"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestGetOrCreateIssuesFreshID(t *testing.T) {
	s := NewStore(Options{})

	id, c := s.GetOrCreate("")
	require.True(t, strings.HasPrefix(id, "conv-"))
	require.Equal(t, id, c.ID)
	require.Zero(t, c.Len())

	again, same := s.GetOrCreate(id)
	require.Equal(t, id, again)
	require.Same(t, c, same)

	other, _ := s.GetOrCreate("conv-unknown")
	require.NotEqual(t, "conv-unknown", other)
	require.NotEqual(t, id, other)
	require.Equal(t, 2, s.Len())
}

func TestAppendRoundTripPreservesContent(t *testing.T) {
	s := NewStore(Options{})
	id, _ := s.GetOrCreate("")

	user := "  Привет!\n  <b>tags</b> & emoji 🎤  "
	assistant := strings.Repeat("long answer ", 500)

	require.NoError(t, s.AppendUser(id, "first"))
	require.NoError(t, s.AppendAssistant(id, "reply"))
	require.NoError(t, s.AppendUser(id, user))
	require.NoError(t, s.AppendAssistant(id, assistant))

	h, err := s.History(id)
	require.NoError(t, err)
	require.Equal(t, []Message{
		{Role: RoleUser, Content: "first"},
		{Role: RoleAssistant, Content: "reply"},
		{Role: RoleUser, Content: user},
		{Role: RoleAssistant, Content: assistant},
	}, h)
}

func TestHistoryIsACopy(t *testing.T) {
	s := NewStore(Options{})
	id, _ := s.GetOrCreate("")
	require.NoError(t, s.AppendTurn(id, "q", "a"))

	h, err := s.History(id)
	require.NoError(t, err)
	h[0].Content = "mutated"

	h2, err := s.History(id)
	require.NoError(t, err)
	require.Equal(t, "q", h2[0].Content)
}

func TestUnknownIDIsNotFound(t *testing.T) {
	s := NewStore(Options{})

	require.ErrorIs(t, s.AppendUser("conv-missing", "x"), ports.ErrNotFound)
	_, err := s.History("conv-missing")
	require.ErrorIs(t, err, ports.ErrNotFound)
}

func TestConversationsAreIsolated(t *testing.T) {
	s := NewStore(Options{})
	a, _ := s.GetOrCreate("")
	b, _ := s.GetOrCreate("")

	require.NoError(t, s.AppendTurn(a, "a-q", "a-a"))
	require.NoError(t, s.AppendTurn(b, "b-q", "b-a"))

	ha, _ := s.History(a)
	hb, _ := s.History(b)
	require.Equal(t, "a-q", ha[0].Content)
	require.Equal(t, "b-q", hb[0].Content)
	require.Len(t, ha, 2)
	require.Len(t, hb, 2)
}

func TestLockSerializesTurnsOfOneConversation(t *testing.T) {
	s := NewStore(Options{})
	_, c := s.GetOrCreate("")
	ctx := context.Background()

	unlock, err := s.Lock(ctx, c)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		u, err := s.Lock(ctx, c)
		if err == nil {
			close(acquired)
			u()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second turn entered while first holds the lock")
	case <-time.After(30 * time.Millisecond):
	}

	unlock()
	unlock() // повторный вызов безопасен
	require.Eventually(t, func() bool {
		select {
		case <-acquired:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestLockDoesNotBlockOtherConversations(t *testing.T) {
	s := NewStore(Options{})
	_, a := s.GetOrCreate("")
	_, b := s.GetOrCreate("")
	ctx := context.Background()

	unlockA, err := s.Lock(ctx, a)
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	unlockB, err := s.Lock(ctx, b)
	require.NoError(t, err)
	unlockB()
}

func TestLockHonoursContext(t *testing.T) {
	s := NewStore(Options{})
	_, c := s.GetOrCreate("")

	unlock, err := s.Lock(context.Background(), c)
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Lock(ctx, c)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConcurrentTurnsKeepPairsTogether(t *testing.T) {
	s := NewStore(Options{})
	id, c := s.GetOrCreate("")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := s.Lock(ctx, c)
			if err != nil {
				return
			}
			defer unlock()
			n := len(c.Messages())
			require.NoError(t, s.AppendUser(id, "q"))
			require.NoError(t, s.AppendAssistant(id, "a"))
			require.Equal(t, n+2, len(c.Messages()))
		}()
	}
	wg.Wait()

	h, err := s.History(id)
	require.NoError(t, err)
	require.Len(t, h, 100)
	for i, m := range h {
		if i%2 == 0 {
			require.Equal(t, RoleUser, m.Role)
		} else {
			require.Equal(t, RoleAssistant, m.Role)
		}
	}
}

func TestTTLExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	s := NewStore(Options{TTL: time.Hour})
	s.now = clock.Now

	old, _ := s.GetOrCreate("")
	clock.Advance(30 * time.Minute)
	fresh, _ := s.GetOrCreate("")

	clock.Advance(45 * time.Minute)
	require.Equal(t, 1, s.Sweep())
	require.Equal(t, 1, s.Len())

	_, err := s.History(old)
	require.ErrorIs(t, err, ports.ErrNotFound)
	_, err = s.History(fresh)
	require.NoError(t, err)

	// истёкший id ведёт себя как неизвестный
	clock.Advance(2 * time.Hour)
	id, _ := s.GetOrCreate(fresh)
	require.NotEqual(t, fresh, id)
}

func TestLRUCap(t *testing.T) {
	s := NewStore(Options{MaxConversations: 2})

	a, _ := s.GetOrCreate("")
	b, _ := s.GetOrCreate("")
	_, _ = s.GetOrCreate(a) // a свежее b
	c, _ := s.GetOrCreate("")

	require.Equal(t, 2, s.Len())
	_, err := s.History(b)
	require.ErrorIs(t, err, ports.ErrNotFound)
	_, err = s.History(a)
	require.NoError(t, err)
	_, err = s.History(c)
	require.NoError(t, err)
}

func TestRunJanitor(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	s := NewStore(Options{TTL: time.Minute})
	s.now = clock.Now
	s.GetOrCreate("")
	clock.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	swept := make(chan int, 10)
	go s.RunJanitor(ctx, 5*time.Millisecond, func(removed, left int) {
		if removed > 0 {
			swept <- left
		}
	})

	select {
	case left := <-swept:
		require.Zero(t, left)
	case <-time.After(time.Second):
		t.Fatal("janitor never swept")
	}
}
