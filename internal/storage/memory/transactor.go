package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type journalKey struct{}

// journal накапливает компенсирующие действия изменений, сделанных внутри транзакции.
type journal struct {
	undo []func()
}

func (j *journal) rollback() {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
}

// Transactor: in-memory аналог транзакции: сериализует вызовы WithinTx
// и откатывает изменения репозиториев, если fn вернула ошибку.
type Transactor struct {
	mu sync.Mutex
}

// NewTransactor создаёт in-memory Transactor.
func NewTransactor() *Transactor {
	return &Transactor{}
}

// WithinTx выполняет fn под общим замком. Вложенный вызов присоединяется к внешнему.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := journalFromContext(ctx); ok {
		return fn(ctx)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	j := &journal{}
	if err := fn(context.WithValue(ctx, journalKey{}, j)); err != nil {
		j.rollback()
		return err
	}
	return nil
}

// recordUndo регистрирует откат изменения, если вызов идёт внутри транзакции.
func recordUndo(ctx context.Context, undo func()) {
	if j, ok := journalFromContext(ctx); ok {
		j.undo = append(j.undo, undo)
	}
}

func journalFromContext(ctx context.Context) (*journal, bool) {
	j, ok := ctx.Value(journalKey{}).(*journal)
	return j, ok && j != nil
}

var _ domain.Transactor = (*Transactor)(nil)
