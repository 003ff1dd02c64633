package conversation

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Vovarama1992/voice_assistant/internal/ports"
	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation — упорядоченная история одного диалога.
// turn держится на всё время хода (история → LLM → запись), mu — только на доступ к messages.
type Conversation struct {
	ID string

	turn chan struct{}

	mu       sync.Mutex
	messages []Message
	lastUsed time.Time
	elem     *list.Element
}

func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func (c *Conversation) append(msgs ...Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msgs...)
}

type Options struct {
	// сколько диалог живёт без обращений; 0 — без TTL
	TTL time.Duration
	// максимум диалогов в памяти, лишние вытесняются по LRU; 0 — без лимита
	MaxConversations int
}

// Store — все диалоги процесса. Создаётся в main и передаётся в движок.
// Живёт столько же, сколько процесс; на диск ничего не пишет.
type Store struct {
	opts Options
	now  func() time.Time

	mu    sync.Mutex
	items map[string]*Conversation
	lru   *list.List // front — самый свежий
}

func NewStore(opts Options) *Store {
	return &Store{
		opts:  opts,
		now:   time.Now,
		items: make(map[string]*Conversation),
		lru:   list.New(),
	}
}

func NewID() string {
	return "conv-" + uuid.NewString()
}

// GetOrCreate возвращает диалог по id. Пустой или неизвестный id —
// новый диалог со свежим id; иначе диалоги не появляются.
func (s *Store) GetOrCreate(id string) (string, *Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if c, ok := s.items[id]; ok && id != "" {
		if !s.expired(c, now) {
			s.touch(c, now)
			return c.ID, c
		}
		s.remove(c)
	}

	c := &Conversation{ID: NewID(), turn: make(chan struct{}, 1), lastUsed: now}
	c.elem = s.lru.PushFront(c)
	s.items[c.ID] = c
	s.evictOverflow()
	return c.ID, c
}

func (s *Store) get(id string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.items[id]
	if !ok || s.expired(c, s.now()) {
		return nil, fmt.Errorf("conversation %q: %w", id, ports.ErrNotFound)
	}
	s.touch(c, s.now())
	return c, nil
}

func (s *Store) AppendUser(id, text string) error {
	c, err := s.get(id)
	if err != nil {
		return err
	}
	c.append(Message{Role: RoleUser, Content: text})
	return nil
}

func (s *Store) AppendAssistant(id, text string) error {
	c, err := s.get(id)
	if err != nil {
		return err
	}
	c.append(Message{Role: RoleAssistant, Content: text})
	return nil
}

// AppendTurn атомарно дописывает пару user+assistant
func (s *Store) AppendTurn(id, userText, assistantText string) error {
	c, err := s.get(id)
	if err != nil {
		return err
	}
	c.append(
		Message{Role: RoleUser, Content: userText},
		Message{Role: RoleAssistant, Content: assistantText},
	)
	return nil
}

// History — копия истории в порядке добавления
func (s *Store) History(id string) ([]Message, error) {
	c, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return c.Messages(), nil
}

// Lock захватывает диалог на один ход. Разные диалоги друг друга не ждут.
func (s *Store) Lock(ctx context.Context, c *Conversation) (unlock func(), err error) {
	select {
	case c.turn <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-c.turn }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Sweep удаляет диалоги, не использовавшиеся дольше TTL. Возвращает сколько удалено.
func (s *Store) Sweep() int {
	if s.opts.TTL <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for e := s.lru.Back(); e != nil; {
		c := e.Value.(*Conversation)
		prev := e.Prev()
		if !s.expired(c, now) {
			break
		}
		s.remove(c)
		removed++
		e = prev
	}
	return removed
}

// RunJanitor периодически вызывает Sweep, пока ctx не отменён
func (s *Store) RunJanitor(ctx context.Context, every time.Duration, onSweep func(removed, left int)) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := s.Sweep()
			if onSweep != nil {
				onSweep(removed, s.Len())
			}
		}
	}
}

func (s *Store) expired(c *Conversation, now time.Time) bool {
	return s.opts.TTL > 0 && now.Sub(c.lastUsed) > s.opts.TTL
}

func (s *Store) touch(c *Conversation, now time.Time) {
	c.lastUsed = now
	s.lru.MoveToFront(c.elem)
}

func (s *Store) remove(c *Conversation) {
	s.lru.Remove(c.elem)
	delete(s.items, c.ID)
}

func (s *Store) evictOverflow() {
	if s.opts.MaxConversations <= 0 {
		return
	}
	for s.lru.Len() > s.opts.MaxConversations {
		oldest := s.lru.Back().Value.(*Conversation)
		s.remove(oldest)
	}
}
