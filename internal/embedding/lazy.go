package embedding

import (
	"sync"
)

// Lazy defers embedder construction until the first Embed call, so commands
// that never touch vectors (keyword-only search, stats) pay no startup cost
// and need no embedding credentials.
type Lazy struct {
	construct func() (Embedder, error)
	once      sync.Once
	inner     Embedder
	err       error
}

// NewLazy wraps a constructor. The constructor runs at most once; its error
// is sticky and returned from every subsequent call.
func NewLazy(construct func() (Embedder, error)) *Lazy {
	return &Lazy{construct: construct}
}

func (l *Lazy) load() (Embedder, error) {
	l.once.Do(func() {
		l.inner, l.err = l.construct()
	})
	return l.inner, l.err
}

func (l *Lazy) Embed(text string) ([]float32, error) {
	e, err := l.load()
	if err != nil {
		return nil, err
	}
	return e.Embed(text)
}

func (l *Lazy) EmbedBatch(texts []string) ([][]float32, error) {
	e, err := l.load()
	if err != nil {
		return nil, err
	}
	return e.EmbedBatch(texts)
}

// Dimension forces construction; 0 means the embedder failed to load.
func (l *Lazy) Dimension() int {
	e, err := l.load()
	if err != nil {
		return 0
	}
	return e.Dimension()
}
