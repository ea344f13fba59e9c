package goroutine

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSafeGo_RecoversPanic(t *testing.T) {
	out := &syncBuffer{}
	l := logrus.New()
	l.SetOutput(out)
	rh := NewRecoveryHandler(l)

	done := make(chan struct{})
	rh.SafeGo(func() {
		defer close(done)
		panic("boom")
	})

	<-done
	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("boom"))
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, out.String(), "panic в горутине")
}

func TestSafeGoWithContext_PassesContext(t *testing.T) {
	l := logrus.New()
	l.SetOutput(&syncBuffer{})
	rh := NewRecoveryHandler(l)

	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")
	got := make(chan interface{}, 1)

	rh.SafeGoWithContext(ctx, func(ctx context.Context) {
		got <- ctx.Value(key{})
	})

	select {
	case v := <-got:
		assert.Equal(t, "v", v)
	case <-time.After(time.Second):
		t.Fatal("горутина не запустилась")
	}
}
