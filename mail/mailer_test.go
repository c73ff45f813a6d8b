package mail

import (
	"bytes"
	"context"
	"log"
	"strings"
	"testing"
)

func TestLogMailerWritesCode(t *testing.T) {
	var buf bytes.Buffer
	m := NewLogMailer(log.New(&buf, "", 0))

	if err := m.SendTwoFactorCode(context.Background(), "alice@avans.nl", "123456"); err != nil {
		t.Fatalf("SendTwoFactorCode failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "[Mock Mail]") || !strings.Contains(out, "alice@avans.nl") || !strings.Contains(out, "123456") {
		t.Fatalf("log output = %q", out)
	}
}

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("noreply@keuzekompas.nl", "bob@avans.nl", "654321"))

	for _, want := range []string{
		"From: noreply@keuzekompas.nl",
		"To: bob@avans.nl",
		"Subject: ",
		"654321",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
	if !strings.Contains(msg, "\r\n\r\n") {
		t.Error("message has no header/body separator")
	}
}
