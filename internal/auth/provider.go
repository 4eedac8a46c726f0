package auth

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// AuthStateListener observes session lifecycle changes: active is true on
// sign-in and false on sign-out or revocation.
type AuthStateListener func(identity Identity, active bool)

// Provider is the identity provider boundary: it registers users, issues
// and revokes session tokens, and pushes auth-state changes to listeners.
// Users and revocations live in process memory.
type Provider struct {
	secret []byte
	ttl    time.Duration

	mu        sync.Mutex
	users     map[string]userRecord
	revoked   map[string]struct{}
	listeners map[int]AuthStateListener
	nextID    int
}

type userRecord struct {
	id           string
	passwordHash []byte
}

// NewProvider constructs a provider.
func NewProvider(secret []byte, ttl time.Duration) (*Provider, error) {
	if len(secret) == 0 {
		return nil, ErrInvalidToken
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Provider{
		secret:    secret,
		ttl:       ttl,
		users:     make(map[string]userRecord),
		revoked:   make(map[string]struct{}),
		listeners: make(map[int]AuthStateListener),
	}, nil
}

// Register creates a user and returns its identity.
func (p *Provider) Register(email, password string) (Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Identity{}, ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Identity{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.users[email]; ok {
		return Identity{}, ErrUserExists
	}
	record := userRecord{id: uuid.NewString(), passwordHash: hash}
	p.users[email] = record
	return Identity{UserID: record.id}, nil
}

// Login verifies credentials and issues a session token.
func (p *Provider) Login(email, password string) (string, Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	p.mu.Lock()
	record, ok := p.users[email]
	p.mu.Unlock()
	if !ok {
		return "", Identity{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(record.passwordHash, []byte(password)); err != nil {
		return "", Identity{}, ErrInvalidCredentials
	}

	token, err := SignJWT(p.secret, record.id, uuid.NewString(), p.ttl)
	if err != nil {
		return "", Identity{}, err
	}
	identity := Identity{UserID: record.id}
	p.notify(identity, true)
	return token, identity, nil
}

// CurrentUser resolves the identity behind a token, or ErrUnauthenticated
// when the token is absent, expired, or revoked.
func (p *Provider) CurrentUser(token string) (Identity, error) {
	claims, err := ParseJWT(token, p.secret)
	if err != nil {
		return Identity{}, err
	}

	p.mu.Lock()
	_, revoked := p.revoked[claims.ID]
	p.mu.Unlock()
	if revoked {
		return Identity{}, ErrUnauthenticated
	}
	return Identity{UserID: claims.Subject}, nil
}

// SignOut revokes the session behind a token and notifies listeners. The
// token must still parse; an already-revoked session signs out cleanly.
func (p *Provider) SignOut(token string) error {
	claims, err := ParseJWT(token, p.secret)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if claims.ID != "" {
		p.revoked[claims.ID] = struct{}{}
	}
	p.mu.Unlock()

	p.notify(Identity{UserID: claims.Subject}, false)
	return nil
}

// OnAuthStateChanged registers a listener for session lifecycle changes
// and returns its deregistration func.
func (p *Provider) OnAuthStateChanged(fn AuthStateListener) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

func (p *Provider) notify(identity Identity, active bool) {
	p.mu.Lock()
	listeners := make([]AuthStateListener, 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(identity, active)
	}
}
