package corerpc

import "testing"

func TestFlowControlSendWindowAccounting(t *testing.T) {
	fc := newFlowControl(100)

	if n := fc.canSend(150); n != 100 {
		t.Fatalf("canSend: got %d want 100", n)
	}
	fc.consumeSend(100)
	if n := fc.canSend(1); n != 0 {
		t.Fatalf("canSend after exhaustion: got %d want 0", n)
	}

	if err := fc.receiveWindowUpdate(50); err != nil {
		t.Fatalf("receiveWindowUpdate: %v", err)
	}
	if n := fc.canSend(1000); n != 50 {
		t.Fatalf("canSend after update: got %d want 50", n)
	}
}

func TestFlowControlSendWindowOverflow(t *testing.T) {
	fc := newFlowControl(MaxWindowSize)
	if err := fc.receiveWindowUpdate(1); err == nil {
		t.Fatal("expected overflow error")
	}
}

func TestFlowControlRecvWindowUnderflow(t *testing.T) {
	fc := newFlowControl(10)
	if _, _, err := fc.consumeRecv(11); err != ErrWindowUnderflow {
		t.Fatalf("got %v want ErrWindowUnderflow", err)
	}
}

func TestFlowControlRecvWindowUpdateThreshold(t *testing.T) {
	fc := newFlowControl(100)

	if _, needUpdate, err := fc.consumeRecv(40); err != nil || needUpdate {
		t.Fatalf("consuming 40/100 should not yet trigger an update: needUpdate=%v err=%v", needUpdate, err)
	}

	inc, needUpdate, err := fc.consumeRecv(20)
	if err != nil {
		t.Fatalf("consumeRecv: %v", err)
	}
	if !needUpdate {
		t.Fatal("expected update once window dropped below 50%")
	}
	if inc != 60 {
		t.Fatalf("increment: got %d want 60", inc)
	}
}
