package services

import (
	"errors"
	"testing"

	"github.com/alphazee/agencyhub/backend/internal/config"
	"github.com/go-ldap/ldap/v3"
)

func TestUserFromEntry(t *testing.T) {
	tests := []struct {
		name     string
		attrs    map[string][]string
		username string
		expected LDAPUser
	}{
		{
			name:     "openldap",
			attrs:    map[string][]string{"uid": {"jdoe"}, "givenName": {"Jane"}, "sn": {"Doe"}, "mail": {"Jane.Doe@Example.com"}},
			username: "jdoe",
			expected: LDAPUser{Username: "jdoe", FirstName: "Jane", LastName: "Doe", Email: "jane.doe@example.com"},
		},
		{
			name:     "active directory",
			attrs:    map[string][]string{"sAMAccountName": {"JDOE"}, "cn": {"Jane Doe"}, "userPrincipalName": {"jdoe@corp.example.com"}},
			username: "jdoe",
			expected: LDAPUser{Username: "JDOE", FirstName: "Jane Doe", Email: "jdoe@corp.example.com"},
		},
		{
			name:     "email login without mail attribute",
			attrs:    map[string][]string{"cn": {"Ops"}},
			username: "Ops@Example.com",
			expected: LDAPUser{Username: "Ops@Example.com", FirstName: "Ops", Email: "ops@example.com"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := userFromEntry(ldap.NewEntry("cn=x,dc=example,dc=com", tt.attrs), tt.username)
			tt.expected.DN = "cn=x,dc=example,dc=com"
			if *got != tt.expected {
				t.Errorf("userFromEntry() = %+v, expected %+v", *got, tt.expected)
			}
		})
	}
}

func TestLDAPService_Guards(t *testing.T) {
	disabled := NewLDAPService(&config.LDAPConfig{Enabled: false})
	if _, err := disabled.Authenticate("jdoe", "pw"); !errors.Is(err, ErrLDAPDisabled) {
		t.Errorf("disabled: error = %v", err)
	}

	enabled := NewLDAPService(&config.LDAPConfig{Enabled: true, Host: "ldap.example.com", Port: 636, UseSSL: true})
	if _, err := enabled.Authenticate("jdoe", ""); !errors.Is(err, ErrLDAPCredentials) {
		t.Errorf("empty password: error = %v", err)
	}
	if got := enabled.url(); got != "ldaps://ldap.example.com:636" {
		t.Errorf("url() = %q", got)
	}
}
