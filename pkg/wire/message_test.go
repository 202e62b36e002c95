package wire

import "testing"

func TestCodePredicates(t *testing.T) {
	tests := []struct {
		code      Code
		str       string
		isRequest bool
		isError   bool
	}{
		{CodeEmpty, "0.00", false, false},
		{CodeGET, "0.01", true, false},
		{CodeContent, "2.05", false, false},
		{CodeNotFound, "4.04", false, true},
		{CodeInternalServerError, "5.00", false, true},
	}

	for _, tc := range tests {
		if got := tc.code.String(); got != tc.str {
			t.Errorf("%v.String() = %q, want %q", uint8(tc.code), got, tc.str)
		}
		if got := tc.code.IsRequest(); got != tc.isRequest {
			t.Errorf("%s.IsRequest() = %v, want %v", tc.str, got, tc.isRequest)
		}
		if got := tc.code.IsError(); got != tc.isError {
			t.Errorf("%s.IsError() = %v, want %v", tc.str, got, tc.isError)
		}
	}
}

func TestObserveTruncatedTo24Bits(t *testing.T) {
	msg := NewRequest(TypeConfirmable, CodeGET, 1, nil)
	msg.SetObserve(1 << 25)

	seq, ok := msg.Observe()
	if !ok {
		t.Fatal("Observe option missing after SetObserve")
	}
	if seq != (1<<25)&0xFFFFFF {
		t.Errorf("Observe() = %d, want 24-bit truncation %d", seq, (1<<25)&0xFFFFFF)
	}
}

func TestSetPathSegments(t *testing.T) {
	msg := NewRequest(TypeConfirmable, CodeGET, 1, nil)
	msg.SetPath("/a/b//c")

	if got := msg.Path(); got != "/a/b/c" {
		t.Errorf("Path() = %q, want /a/b/c", got)
	}

	msg.SetPath("")
	if got := msg.Path(); got != "/" {
		t.Errorf("Path() after empty SetPath = %q, want /", got)
	}
}

func TestIsNotification(t *testing.T) {
	resp := &Message{Type: TypeAcknowledgement, Code: CodeContent, MessageID: 1, Token: Token{0x01}}
	if resp.IsNotification() {
		t.Error("plain response reported as notification")
	}

	resp.SetObserve(7)
	if !resp.IsNotification() {
		t.Error("response with Observe option not reported as notification")
	}

	req := NewRequest(TypeConfirmable, CodeGET, 1, nil)
	req.SetObserve(ObserveRegister)
	if req.IsNotification() {
		t.Error("observe request reported as notification")
	}
}

func TestEmptyMessageValidation(t *testing.T) {
	bad := &Message{Type: TypeReset, Code: CodeEmpty, MessageID: 1, Token: Token{0x01}}
	if err := bad.Validate(); err == nil {
		t.Error("empty-code message with token passed validation")
	}
}

func TestUintOptionRoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 1, 255, 256, 65535, 65536, 0xFFFFFF} {
		if got := decodeUint(encodeUint(v)); got != v {
			t.Errorf("decodeUint(encodeUint(%d)) = %d", v, got)
		}
	}
}
