package wire

import (
	"context"
	"net"
	"testing"
	"time"
)

func newMuxerPair(t *testing.T) (*Muxer, *Muxer) {
	t.Helper()
	a, b := net.Pipe()
	ma := NewMuxer(a, Outbound)
	mb := NewMuxer(b, Inbound)
	t.Cleanup(func() {
		ma.Close()
		mb.Close()
	})
	return ma, mb
}

func TestMuxerOpenGitRoundTrip(t *testing.T) {
	a, b := newMuxerPair(t)
	ctx := context.Background()

	id, err := a.OpenStream(ctx)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := a.SendGit(ctx, id, []byte("pack data")); err != nil {
			t.Error(err)
		}
	}()

	// b must observe the Open before it can receive on id.
	time.Sleep(10 * time.Millisecond)
	body, err := b.Recv(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "pack data" {
		t.Errorf("body = %q", body)
	}
	<-done

	sent, _, ok := a.Counters(id)
	if !ok || sent != uint64(len("pack data")) {
		t.Errorf("sent counter = %d, ok=%v", sent, ok)
	}
}

func TestMuxerGossipStream(t *testing.T) {
	a, b := newMuxerPair(t)
	ctx := context.Background()

	go func() {
		_ = a.SendGossip(ctx, []byte("inventory"))
	}()

	body, err := b.Recv(ctx, GossipStreamID)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "inventory" {
		t.Errorf("body = %q", body)
	}
}

func TestMuxerCloseStreamEndsRecv(t *testing.T) {
	a, b := newMuxerPair(t)
	ctx := context.Background()

	id, err := a.OpenStream(ctx)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)

	go func() {
		_ = a.CloseStream(ctx, id)
	}()

	_, err = b.Recv(ctx, id)
	if err != ErrStreamClosed {
		t.Fatalf("err = %v, want ErrStreamClosed", err)
	}
}

func TestMuxerRecvTimesOutWithoutData(t *testing.T) {
	a, b := newMuxerPair(t)
	b.SetTimeout(20 * time.Millisecond)
	ctx := context.Background()

	id, err := a.OpenStream(ctx)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)

	_, err = b.Recv(ctx, id)
	if err != ErrBackpressureTimeout {
		t.Fatalf("err = %v, want ErrBackpressureTimeout", err)
	}
}

func TestMuxerRecvUnknownStream(t *testing.T) {
	a, b := newMuxerPair(t)
	_ = a
	_, err := b.Recv(context.Background(), 999)
	if err != ErrUnknownStream {
		t.Fatalf("err = %v, want ErrUnknownStream", err)
	}
}
