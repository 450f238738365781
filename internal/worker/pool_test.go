package worker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestOrderedMapPreservesOrder(t *testing.T) {
	in := make([]int, 200)
	for i := range in {
		in[i] = i
	}
	out, err := OrderedMap(context.Background(), 8, in, func(_ context.Context, i int, v int) (int, error) {
		if v%7 == 0 {
			time.Sleep(time.Millisecond)
		}
		return v * v, nil
	})
	if err != nil {
		t.Fatalf("OrderedMap: %v", err)
	}
	for i, v := range out {
		if v != i*i {
			t.Fatalf("out[%d] = %d, want %d", i, v, i*i)
		}
	}
}

func TestOrderedMapEmpty(t *testing.T) {
	out, err := OrderedMap(context.Background(), 0, []string(nil), func(context.Context, int, string) (int, error) {
		return 0, nil
	})
	if err != nil || len(out) != 0 {
		t.Errorf("out=%v err=%v", out, err)
	}
}

func TestOrderedMapError(t *testing.T) {
	boom := errors.New("boom")
	_, err := OrderedMap(context.Background(), 4, []int{1, 2, 3}, func(_ context.Context, _ int, v int) (int, error) {
		if v == 2 {
			return 0, boom
		}
		return v, nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestOrderedMapRecoversPanic(t *testing.T) {
	_, err := OrderedMap(context.Background(), 2, []int{1, 2}, func(_ context.Context, _ int, v int) (int, error) {
		if v == 2 {
			panic("bad row")
		}
		return v, nil
	})
	if err == nil || !strings.Contains(err.Error(), "bad row") {
		t.Errorf("err = %v", err)
	}
}

func TestOrderedMapCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := OrderedMap(ctx, 2, []int{1, 2, 3}, func(_ context.Context, _ int, v int) (int, error) {
		return v, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
