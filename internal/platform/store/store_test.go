package store

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// pingableTx is a TxRunner fake with a controllable Ping
type pingableTx struct {
	fakeQuerier
	pingErr  error
	closed   bool
	closeErr error
}

func (p *pingableTx) Tx(_ context.Context, fn func(q RowQuerier) error) error {
	return fn(&p.fakeQuerier)
}

func (p *pingableTx) Ping(context.Context) error { return p.pingErr }
func (p *pingableTx) Close() error               { p.closed = true; return p.closeErr }

type fakeCH struct {
	pingErr error
	closed  bool
}

func (f *fakeCH) Insert(context.Context, string, [][]any) error { return nil }
func (f *fakeCH) Query(context.Context, string, ...any) (Rows, error) {
	return &fakeRows{}, nil
}
func (f *fakeCH) Close() error               { f.closed = true; return nil }
func (f *fakeCH) Ping(context.Context) error { return f.pingErr }

func TestGuard(t *testing.T) {
	t.Run("zero store passes", func(t *testing.T) {
		var s Store
		if err := s.Guard(context.Background()); err != nil {
			t.Fatalf("Guard on zero store: %v", err)
		}
	})

	t.Run("healthy seams pass", func(t *testing.T) {
		s := &Store{PG: &pingableTx{}, CH: &fakeCH{}}
		if err := s.Guard(context.Background()); err != nil {
			t.Fatalf("Guard: %v", err)
		}
	})

	t.Run("failures are joined and labelled", func(t *testing.T) {
		s := &Store{
			PG: &pingableTx{pingErr: errors.New("pg down")},
			CH: &fakeCH{pingErr: errors.New("ch down")},
		}
		err := s.Guard(context.Background())
		if err == nil {
			t.Fatalf("Guard should fail")
		}
		msg := err.Error()
		if !strings.Contains(msg, "pg:") || !strings.Contains(msg, "ch:") {
			t.Fatalf("Guard error missing backend labels: %q", msg)
		}
	})

	t.Run("nil store fails", func(t *testing.T) {
		var s *Store
		if err := s.Guard(context.Background()); err == nil {
			t.Fatalf("Guard on nil store should fail")
		}
	})
}

func TestClose(t *testing.T) {
	pg := &pingableTx{}
	ch := &fakeCH{}
	s := &Store{PG: pg, CH: ch}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !pg.closed || !ch.closed {
		t.Fatalf("Close skipped a backend: pg=%v ch=%v", pg.closed, ch.closed)
	}

	pg = &pingableTx{closeErr: errors.New("pg close boom")}
	s = &Store{PG: pg}
	if err := s.Close(context.Background()); err == nil {
		t.Fatalf("Close should surface backend errors")
	}
}

func TestOpenDisabledBackends(t *testing.T) {
	s, err := Open(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.PG != nil || s.CH != nil {
		t.Fatalf("disabled backends should stay nil")
	}
}
