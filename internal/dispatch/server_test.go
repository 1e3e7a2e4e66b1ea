package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/shannmu/tcsp-server/internal/buffer"
	"github.com/shannmu/tcsp-server/internal/chanadaptor"
	"github.com/shannmu/tcsp-server/internal/envelope"
)

// echoApp answers every request with its payload unchanged, mirroring the
// spec's echo application (id 2).
type echoApp struct{}

func (echoApp) ApplicationID() uint8 { return AppEcho }
func (echoApp) Name() string         { return "echo" }
func (echoApp) Handle(_ context.Context, req *envelope.Frame, _ int) (*envelope.Frame, error) {
	return envelope.NewFrame(AppEcho, req.Buf.Meta, append([]byte(nil), req.Buf.Data()...))
}

func TestNewServerRejectsDuplicateApplicationID(t *testing.T) {
	ch := chanadaptor.NewLoopback()
	_, err := NewServer(ch, []Application{echoApp{}, echoApp{}})
	if err == nil {
		t.Fatal("expected an error constructing a server with two handlers for the same application id")
	}
}

func TestServeEchoRoundTrip(t *testing.T) {
	ch := chanadaptor.NewLoopback()
	srv, err := NewServer(ch, []Application{echoApp{}})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	<-srv.Ready()

	// echo request 0x20 0x02 0x01 0x02 ... -> identical response.
	req, err := envelope.NewFrame(AppEcho, buffer.Meta{}, []byte{0x01, 0x02})
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	reqBuf, err := envelope.Encode(req)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := ch.Send(reqBuf); err != nil {
		t.Fatalf("Send: %v", err)
	}

	respBuf, err := ch.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	data := respBuf.Data()
	if len(data) != 4 || data[0] != envelope.VersionID || data[1] != AppEcho || data[2] != 0x01 || data[3] != 0x02 {
		t.Fatalf("unexpected echo response wire bytes: % x", data)
	}

	cancel()
	ch.Close() // unblocks the in-flight Recv so the loop notices ctx.Done()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}

func TestServeUnknownApplicationIsSkipped(t *testing.T) {
	ch := chanadaptor.NewLoopback()
	srv, err := NewServer(ch, []Application{echoApp{}})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer ch.Close()
	go srv.Serve(ctx)
	<-srv.Ready()

	req, _ := envelope.NewFrame(99, buffer.Meta{}, []byte{0xff})
	reqBuf, _ := envelope.Encode(req)
	if err := ch.Send(reqBuf); err != nil {
		t.Fatalf("Send: %v", err)
	}

	got := make(chan *buffer.Buffer, 1)
	go func() {
		if buf, err := ch.Recv(); err == nil {
			got <- buf
		}
	}()
	select {
	case <-got:
		t.Fatal("expected no response for an unregistered application id")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestShutdownTimesOutWhenServeNeverReturns(t *testing.T) {
	ch := chanadaptor.NewLoopback()
	srv, err := NewServer(ch, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	blocked, cancelBlocked := context.WithCancel(context.Background())
	defer cancelBlocked()
	go srv.Serve(blocked)
	<-srv.Ready()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err == nil {
		t.Fatal("expected Shutdown to time out while Serve is still blocked on Recv")
	}
}
