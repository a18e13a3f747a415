package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alphazee/agencyhub/backend/internal/config"
)

func TestBuildMessage(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	msg := buildMessage("AlphaZee <noreply@alphazee.com>", []string{"a@example.com", "b@example.com"}, "Contract Ready – Review", "<p>Hi</p>", now)

	head, body, ok := strings.Cut(msg, "\r\n\r\n")
	if !ok {
		t.Fatalf("message has no header/body separator: %q", msg)
	}
	if body != "<p>Hi</p>" {
		t.Errorf("body = %q", body)
	}

	expected := []string{
		"From: AlphaZee <noreply@alphazee.com>",
		"To: a@example.com, b@example.com",
		"Subject: =?utf-8?q?Contract_Ready_=E2=80=93_Review?=",
		"Date: Sun, 18 Oct 2026 09:30:00 +0000",
		"Content-Type: text/html; charset=UTF-8",
	}
	for _, line := range expected {
		if !strings.Contains(head, line+"\r\n") && !strings.HasSuffix(head, line) {
			t.Errorf("missing header %q in:\n%s", line, head)
		}
	}
	if !strings.Contains(head, "@alphazee.com>") {
		t.Errorf("Message-ID should use the sender domain:\n%s", head)
	}
}

func TestBuildMessage_ASCIISubjectUnchanged(t *testing.T) {
	msg := buildMessage("noreply@alphazee.com", []string{"a@example.com"}, "Welcome to AlphaZee Platform", "", time.Now())
	if !strings.Contains(msg, "Subject: Welcome to AlphaZee Platform\r\n") {
		t.Errorf("ASCII subject should not be encoded:\n%s", msg)
	}
}

func TestValidRecipients(t *testing.T) {
	got := validRecipients([]string{"a@example.com", "not an address", "Bob <b@example.com>", ""})
	if len(got) != 2 || got[0] != "a@example.com" || got[1] != "b@example.com" {
		t.Errorf("validRecipients() = %v", got)
	}
}

func TestEmailService_DisabledIsNoop(t *testing.T) {
	s := NewEmailService(&config.MailConfig{Enabled: false})
	if err := s.Send(context.Background(), &EmailTask{Kind: "welcome", To: []string{"a@example.com"}}); err != nil {
		t.Errorf("Send() error = %v, expected nil when mail is disabled", err)
	}

	enabled := NewEmailService(&config.MailConfig{Enabled: true, Host: "smtp.invalid", Port: 25})
	if err := enabled.Send(context.Background(), &EmailTask{Kind: "welcome", To: []string{"garbage"}}); err != nil {
		t.Errorf("Send() with no valid recipients error = %v, expected nil", err)
	}
}
