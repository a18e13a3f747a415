package services

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/alphazee/agencyhub/backend/internal/config"
	"github.com/go-ldap/ldap/v3"
)

const ldapTimeout = 10 * time.Second

var (
	ErrLDAPDisabled     = errors.New("LDAP is not enabled")
	ErrLDAPCredentials  = errors.New("invalid directory credentials")
	ErrLDAPUserNotFound = errors.New("user not found in directory")
)

var ldapAttributes = []string{"cn", "givenName", "sn", "mail", "uid", "sAMAccountName", "userPrincipalName"}

// LDAPUser is the directory identity of a staff member.
type LDAPUser struct {
	DN        string
	Username  string
	Email     string
	FirstName string
	LastName  string
}

// LDAPService checks staff credentials against the company directory.
type LDAPService struct {
	config *config.LDAPConfig
}

func NewLDAPService(cfg *config.LDAPConfig) *LDAPService {
	return &LDAPService{config: cfg}
}

func (s *LDAPService) Enabled() bool {
	return s.config != nil && s.config.Enabled
}

func (s *LDAPService) url() string {
	scheme := "ldap"
	if s.config.UseSSL {
		scheme = "ldaps"
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port)))
}

func (s *LDAPService) dial() (*ldap.Conn, error) {
	conn, err := ldap.DialURL(s.url(),
		ldap.DialWithDialer(&net.Dialer{Timeout: ldapTimeout}),
		ldap.DialWithTLSConfig(&tls.Config{ServerName: s.config.Host, MinVersion: tls.VersionTLS12}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to directory: %w", err)
	}
	conn.SetTimeout(ldapTimeout)
	return conn, nil
}

// Authenticate finds username with the service account, then binds as the
// matched entry to verify password.
func (s *LDAPService) Authenticate(username, password string) (*LDAPUser, error) {
	if !s.Enabled() {
		return nil, ErrLDAPDisabled
	}
	// An empty password would be an unauthenticated bind, which many servers accept.
	if password == "" {
		return nil, ErrLDAPCredentials
	}

	conn, err := s.dial()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if s.config.BindDN != "" {
		if err := conn.Bind(s.config.BindDN, s.config.BindPassword); err != nil {
			return nil, fmt.Errorf("bind service account: %w", err)
		}
	}

	result, err := conn.Search(ldap.NewSearchRequest(
		s.config.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 2, int(ldapTimeout.Seconds()), false,
		fmt.Sprintf(s.config.UserFilter, ldap.EscapeFilter(username)),
		ldapAttributes,
		nil,
	))
	if err != nil && !ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded) {
		return nil, fmt.Errorf("directory search: %w", err)
	}
	if result == nil || len(result.Entries) != 1 {
		return nil, ErrLDAPUserNotFound
	}

	entry := result.Entries[0]
	if err := conn.Bind(entry.DN, password); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			return nil, ErrLDAPCredentials
		}
		return nil, fmt.Errorf("bind user: %w", err)
	}
	return userFromEntry(entry, username), nil
}

// userFromEntry maps OpenLDAP and Active Directory attributes onto LDAPUser.
func userFromEntry(entry *ldap.Entry, username string) *LDAPUser {
	user := &LDAPUser{
		DN:        entry.DN,
		Username:  firstNonEmpty(entry.GetAttributeValue("uid"), entry.GetAttributeValue("sAMAccountName"), username),
		FirstName: firstNonEmpty(entry.GetAttributeValue("givenName"), entry.GetAttributeValue("cn")),
		LastName:  entry.GetAttributeValue("sn"),
	}
	email := firstNonEmpty(entry.GetAttributeValue("mail"), entry.GetAttributeValue("userPrincipalName"))
	if email == "" && strings.Contains(username, "@") {
		email = username
	}
	user.Email = strings.ToLower(strings.TrimSpace(email))
	return user
}
